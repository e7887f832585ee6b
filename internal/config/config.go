package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/urgency"
)

// Strategy names accepted in the scheduler section.
const (
	TargetBuffer         = "buffer"
	TargetMultiplier     = "multiplier"
	DelayRetryBudget     = "retry_budget"
	DelayUrgencyClamped  = "urgency_clamped"
	defaultSubjectPrefix = "donorsearch"

	defaultDelayBetweenExecution = 1
)

// Config holds the donor search service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	NATS      NATSConfig      `yaml:"nats"`
	Worker    WorkerConfig    `yaml:"worker"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix      string `yaml:"key_prefix"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"` // per-session pass lock
}

// NATSConfig holds event publishing settings. An empty URL disables publishing.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Name          string `yaml:"name"`
}

// WorkerConfig holds wake-up worker settings.
type WorkerConfig struct {
	Enabled         bool `yaml:"enabled"`
	PollIntervalSec int  `yaml:"poll_interval_sec"`
	BatchSize       int  `yaml:"batch_size"`
	LeaseSeconds    int  `yaml:"lease_seconds"`
}

// HourRange is an inclusive range of hours.
type HourRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// SchedulerConfig holds the donor-count, expansion and delay parameters.
type SchedulerConfig struct {
	TargetStrategy string `yaml:"target_strategy"` // buffer | multiplier
	DelayStrategy  string `yaml:"delay_strategy"`  // retry_budget | urgency_clamped

	ExtraDonors       map[string]int `yaml:"extra_donors"`
	UrgencyMultiplier map[string]int `yaml:"urgency_multiplier"`
	DonorsPerBag      int            `yaml:"donors_per_bag"`

	MinDelaySeconds               int `yaml:"min_delay_seconds"`
	MaxGeohashNeighborSearchLevel int `yaml:"max_geohash_neighbor_search_level"`
	MaxGeohashesPerExecution      int `yaml:"max_geohashes_per_execution"`
	MaxInitiatingRetryCount       int `yaml:"max_initiating_retry_count"`
	// DelayBetweenExecutionSeconds is nil when the key is absent; an explicit 0 is kept.
	DelayBetweenExecutionSeconds *float64 `yaml:"delay_between_execution_seconds"`

	DelayPeriodWeight float64              `yaml:"delay_period_weight"`
	UrgencyDelayHours map[string]HourRange `yaml:"urgency_delay_hours"`

	NeighborSearchGeohashPrefixLength int `yaml:"neighbor_search_geohash_prefix_length"`
}

// MinDelay returns the retry-budget floor as a duration.
func (s SchedulerConfig) MinDelay() time.Duration {
	return time.Duration(s.MinDelaySeconds) * time.Second
}

// DelayBetweenExecution returns the pause between search executions as a duration.
func (s SchedulerConfig) DelayBetweenExecution() time.Duration {
	if s.DelayBetweenExecutionSeconds == nil {
		return defaultDelayBetweenExecution * time.Second
	}
	return time.Duration(*s.DelayBetweenExecutionSeconds * float64(time.Second))
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "donorsearch:"
	}
	if c.Storage.LockTTLSeconds <= 0 {
		c.Storage.LockTTLSeconds = 30
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = defaultSubjectPrefix
	}
	if c.NATS.Name == "" {
		c.NATS.Name = "donorsearch"
	}
	if c.Worker.PollIntervalSec <= 0 {
		c.Worker.PollIntervalSec = 5
	}
	if c.Worker.BatchSize <= 0 {
		c.Worker.BatchSize = 100
	}
	if c.Worker.LeaseSeconds <= 0 {
		c.Worker.LeaseSeconds = 300
	}
	c.Scheduler.ApplyDefaults()
}

// ApplyDefaults fills empty scheduler fields with the production values.
func (s *SchedulerConfig) ApplyDefaults() {
	if s.TargetStrategy == "" {
		s.TargetStrategy = TargetBuffer
	}
	if s.DelayStrategy == "" {
		s.DelayStrategy = DelayRetryBudget
	}
	if s.ExtraDonors == nil {
		s.ExtraDonors = map[string]int{string(urgency.Urgent): 2, string(urgency.Regular): 1}
	}
	if s.UrgencyMultiplier == nil {
		s.UrgencyMultiplier = map[string]int{string(urgency.Urgent): 2, string(urgency.Regular): 1}
	}
	if s.DonorsPerBag <= 0 {
		s.DonorsPerBag = 2
	}
	if s.MinDelaySeconds <= 0 {
		s.MinDelaySeconds = 1800
	}
	if s.MaxGeohashNeighborSearchLevel <= 0 {
		s.MaxGeohashNeighborSearchLevel = 3
	}
	if s.MaxGeohashesPerExecution <= 0 {
		s.MaxGeohashesPerExecution = 50
	}
	if s.MaxInitiatingRetryCount <= 0 {
		s.MaxInitiatingRetryCount = 5
	}
	if s.DelayBetweenExecutionSeconds == nil {
		d := float64(defaultDelayBetweenExecution)
		s.DelayBetweenExecutionSeconds = &d
	}
	if s.DelayPeriodWeight <= 0 {
		s.DelayPeriodWeight = 7
	}
	if s.UrgencyDelayHours == nil {
		s.UrgencyDelayHours = map[string]HourRange{
			string(urgency.Urgent):  {Min: 5, Max: 10},
			string(urgency.Regular): {Min: 7, Max: 15},
		}
	}
	if s.NeighborSearchGeohashPrefixLength <= 0 {
		s.NeighborSearchGeohashPrefixLength = 7
	}
}

// Validate checks the configuration for correctness.
// Errors wrap domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: http.port must be between 1 and 65535, got %d", domain.ErrInvalidConfig, c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("%w: database.addrs is required", domain.ErrInvalidConfig)
	}
	return c.Scheduler.Validate()
}

// Validate checks strategy names and that every per-urgency map covers each urgency.
// Errors wrap domain.ErrInvalidConfig.
func (s *SchedulerConfig) Validate() error {
	if err := s.validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	return nil
}

func (s *SchedulerConfig) validate() error {
	if s.DelayBetweenExecutionSeconds != nil && *s.DelayBetweenExecutionSeconds < 0 {
		return fmt.Errorf(
			"scheduler.delay_between_execution_seconds must not be negative, got %v",
			*s.DelayBetweenExecutionSeconds,
		)
	}
	switch s.TargetStrategy {
	case TargetBuffer, TargetMultiplier:
	default:
		return fmt.Errorf(
			"scheduler.target_strategy must be %q or %q, got %q",
			TargetBuffer, TargetMultiplier, s.TargetStrategy,
		)
	}
	switch s.DelayStrategy {
	case DelayRetryBudget, DelayUrgencyClamped:
	default:
		return fmt.Errorf(
			"scheduler.delay_strategy must be %q or %q, got %q",
			DelayRetryBudget, DelayUrgencyClamped, s.DelayStrategy,
		)
	}

	if err := validateUrgencyKeys("scheduler.extra_donors", keys(s.ExtraDonors)); err != nil {
		return err
	}
	if err := validateUrgencyKeys("scheduler.urgency_multiplier", keys(s.UrgencyMultiplier)); err != nil {
		return err
	}
	if err := validateUrgencyKeys("scheduler.urgency_delay_hours", keys(s.UrgencyDelayHours)); err != nil {
		return err
	}

	for u, n := range s.ExtraDonors {
		if n < 0 {
			return fmt.Errorf("scheduler.extra_donors.%s must not be negative, got %d", u, n)
		}
	}
	for u, n := range s.UrgencyMultiplier {
		if n < 1 {
			return fmt.Errorf("scheduler.urgency_multiplier.%s must be at least 1, got %d", u, n)
		}
	}
	for u, r := range s.UrgencyDelayHours {
		if r.Min < 0 || r.Max < r.Min {
			return fmt.Errorf("scheduler.urgency_delay_hours.%s must satisfy 0 <= min <= max, got %v..%v", u, r.Min, r.Max)
		}
	}
	return nil
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func validateUrgencyKeys(path string, got []string) error {
	seen := make(map[string]bool, len(got))
	for _, k := range got {
		if !urgency.Urgency(k).IsValid() {
			return fmt.Errorf("%s: unknown urgency %q", path, k)
		}
		seen[k] = true
	}
	for _, u := range urgency.All() {
		if !seen[string(u)] {
			return fmt.Errorf("%s: missing urgency %q", path, u)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
