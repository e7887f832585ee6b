package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Scheduler holds the donor search decision, delay, worker and session metrics.
// A nil *Scheduler is valid and records nothing.
type Scheduler struct {
	decisions *prometheus.CounterVec
	delay     *prometheus.HistogramVec
	workerDue *prometheus.CounterVec
	sessions  *prometheus.CounterVec
}

// NewScheduler creates unregistered scheduler metrics.
func NewScheduler() *Scheduler {
	return &Scheduler{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Search expansion decisions by outcome.",
		}, []string{"outcome"}),
		delay: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delay_seconds",
			Help:      "Computed wake-up delays in seconds.",
			// 30m .. ~3.5d
			Buckets: prometheus.ExponentialBuckets(1800, 2, 8),
		}, []string{"strategy"}),
		workerDue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_due_total",
			Help:      "Due wake-ups handled by the worker by result.",
		}, []string{"result"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Search sessions entering a status.",
		}, []string{"status"}),
	}
}

// Register registers all collectors, reusing ones already present on reg.
func (s *Scheduler) Register(reg prometheus.Registerer) error {
	if err := registerOrReuse(reg, &s.decisions); err != nil {
		return err
	}
	if err := registerOrReuse(reg, &s.delay); err != nil {
		return err
	}
	if err := registerOrReuse(reg, &s.workerDue); err != nil {
		return err
	}
	return registerOrReuse(reg, &s.sessions)
}

// Decision counts one expansion outcome (satisfied, exhausted, continue).
func (s *Scheduler) Decision(outcome string) {
	if s == nil {
		return
	}
	s.decisions.WithLabelValues(outcome).Inc()
}

// Delay observes a computed delay.
func (s *Scheduler) Delay(strategy string, seconds int) {
	if s == nil {
		return
	}
	s.delay.WithLabelValues(strategy).Observe(float64(seconds))
}

// WorkerDue counts a due entry handled by the worker (published, dropped, error).
func (s *Scheduler) WorkerDue(result string) {
	if s == nil {
		return
	}
	s.workerDue.WithLabelValues(result).Inc()
}

// Session counts a session entering status.
func (s *Scheduler) Session(status string) {
	if s == nil {
		return
	}
	s.sessions.WithLabelValues(status).Inc()
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("register metric: %w", err)
	}
	return nil
}
