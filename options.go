package donorsearch

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Scheduler.
type Option interface {
	apply(*schedulerConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*schedulerConfig)

func (f optionFunc) apply(c *schedulerConfig) { f(c) }

type schedulerConfig struct {
	cfg        Config
	logger     *slog.Logger
	metricsReg prometheus.Registerer
	now        func() time.Time
}

// WithConfig sets strategies and parameters. Unset fields keep their defaults.
func WithConfig(cfg Config) Option {
	return optionFunc(func(c *schedulerConfig) {
		c.cfg = cfg
	})
}

// WithLogger enables structured logging of decisions.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *schedulerConfig) {
		c.logger = l
	})
}

// WithPrometheus registers decision, delay and operation metrics on the given registerer.
// Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *schedulerConfig) {
		c.metricsReg = reg
	})
}

// WithClock overrides time.Now for delay calculations.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(c *schedulerConfig) {
		c.now = now
	})
}
