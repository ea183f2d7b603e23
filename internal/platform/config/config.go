package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	platformstrings "ekyc/pkg/platform/strings"
)

// Config aggregates every tunable of the verification core and its adapters.
type Config struct {
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
	Retry      RetryConfig     `yaml:"retry"`
	Thresholds ThresholdConfig `yaml:"thresholds"`
	Providers  ProvidersConfig `yaml:"providers"`
	Redis      RedisConfig     `yaml:"redis"`
	Kafka      KafkaConfig     `yaml:"kafka"`
	Logging    LoggingConfig   `yaml:"logging"`
	Metrics    MetricsConfig   `yaml:"metrics"`
}

// RateLimitConfig sets the per-service admission quota.
type RateLimitConfig struct {
	Quota        int           `yaml:"quota"`
	Window       time.Duration `yaml:"window"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// RetryConfig sets the retry budget for one provider call.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	Multiplier     float64       `yaml:"multiplier"`
}

// ThresholdConfig holds the decision-rule confidence thresholds.
type ThresholdConfig struct {
	DocumentConfidence  int     `yaml:"document_confidence"`
	BiometricConfidence int     `yaml:"biometric_confidence"`
	BiometricSimilarity float64 `yaml:"biometric_similarity"`
	AddressConfidence   int     `yaml:"address_confidence"`
}

// EndpointConfig locates one verification service.
type EndpointConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ProvidersConfig locates the four verification services.
type ProvidersConfig struct {
	Document  EndpointConfig `yaml:"document"`
	Biometric EndpointConfig `yaml:"biometric"`
	Address   EndpointConfig `yaml:"address"`
	Sanctions EndpointConfig `yaml:"sanctions"`
}

// RedisConfig configures the shared admission store. An empty URL keeps the
// limiter in memory.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KafkaConfig configures the audit sink. No brokers means audit events go to
// the log only.
type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	AuditTopic string   `yaml:"audit_topic"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text|json
}

// MetricsConfig controls the optional /metrics listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

const (
	defaultQuota            = 10
	defaultWindow           = time.Minute
	defaultPollInterval     = time.Second
	defaultMaxAttempts      = 3
	defaultInitialBackoff   = 100 * time.Millisecond
	defaultMultiplier       = 2.0
	defaultDocumentMin      = 85
	defaultBiometricMin     = 85
	defaultSimilarityMin    = 85.0
	defaultAddressMin       = 80
	defaultAuditTopic       = "ekyc.decisions"
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "text"
	defaultRedisPoolSize    = 10
	defaultRedisDialTimeout = 5 * time.Second
	defaultRedisIOTimeout   = 3 * time.Second
)

// ConfigFileEnv names the env var pointing at an optional YAML file.
const ConfigFileEnv = "EKYC_CONFIG_FILE"

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		RateLimit: RateLimitConfig{
			Quota:        defaultQuota,
			Window:       defaultWindow,
			PollInterval: defaultPollInterval,
		},
		Retry: RetryConfig{
			MaxAttempts:    defaultMaxAttempts,
			InitialBackoff: defaultInitialBackoff,
			Multiplier:     defaultMultiplier,
		},
		Thresholds: ThresholdConfig{
			DocumentConfidence:  defaultDocumentMin,
			BiometricConfidence: defaultBiometricMin,
			BiometricSimilarity: defaultSimilarityMin,
			AddressConfidence:   defaultAddressMin,
		},
		Providers: ProvidersConfig{
			Document:  EndpointConfig{URL: "http://localhost:8081/api/v1/verify-document", Timeout: 5 * time.Second},
			Biometric: EndpointConfig{URL: "http://localhost:8082/api/v1/face-match", Timeout: 8 * time.Second},
			Address:   EndpointConfig{URL: "http://localhost:8083/api/v1/verify-address", Timeout: 5 * time.Second},
			Sanctions: EndpointConfig{URL: "http://localhost:8084/api/v1/check-sanctions", Timeout: 3 * time.Second},
		},
		Redis: RedisConfig{
			PoolSize:     defaultRedisPoolSize,
			DialTimeout:  defaultRedisDialTimeout,
			ReadTimeout:  defaultRedisIOTimeout,
			WriteTimeout: defaultRedisIOTimeout,
		},
		Kafka: KafkaConfig{
			AuditTopic: defaultAuditTopic,
		},
		Logging: LoggingConfig{
			Level:  defaultLoggingLevel,
			Format: defaultLoggingFormat,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (or at
// $EKYC_CONFIG_FILE when path is empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	e := &envReader{}

	cfg.RateLimit.Quota = e.intVar("EKYC_RATE_LIMIT_QUOTA", cfg.RateLimit.Quota)
	cfg.RateLimit.Window = e.durationVar("EKYC_RATE_LIMIT_WINDOW", cfg.RateLimit.Window)
	cfg.RateLimit.PollInterval = e.durationVar("EKYC_RATE_LIMIT_POLL_INTERVAL", cfg.RateLimit.PollInterval)

	cfg.Retry.MaxAttempts = e.intVar("EKYC_RETRY_MAX_ATTEMPTS", cfg.Retry.MaxAttempts)
	cfg.Retry.InitialBackoff = e.durationVar("EKYC_RETRY_INITIAL_BACKOFF", cfg.Retry.InitialBackoff)
	cfg.Retry.Multiplier = e.floatVar("EKYC_RETRY_MULTIPLIER", cfg.Retry.Multiplier)

	cfg.Thresholds.DocumentConfidence = e.intVar("EKYC_THRESHOLD_DOCUMENT", cfg.Thresholds.DocumentConfidence)
	cfg.Thresholds.BiometricConfidence = e.intVar("EKYC_THRESHOLD_BIOMETRIC", cfg.Thresholds.BiometricConfidence)
	cfg.Thresholds.BiometricSimilarity = e.floatVar("EKYC_THRESHOLD_SIMILARITY", cfg.Thresholds.BiometricSimilarity)
	cfg.Thresholds.AddressConfidence = e.intVar("EKYC_THRESHOLD_ADDRESS", cfg.Thresholds.AddressConfidence)

	e.endpoint("EKYC_DOCUMENT", &cfg.Providers.Document)
	e.endpoint("EKYC_BIOMETRIC", &cfg.Providers.Biometric)
	e.endpoint("EKYC_ADDRESS", &cfg.Providers.Address)
	e.endpoint("EKYC_SANCTIONS", &cfg.Providers.Sanctions)

	cfg.Redis.URL = valueOrDefault("EKYC_REDIS_URL", cfg.Redis.URL)
	cfg.Redis.PoolSize = e.intVar("EKYC_REDIS_POOL_SIZE", cfg.Redis.PoolSize)

	if brokers := os.Getenv("EKYC_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = platformstrings.SplitList(brokers, ",")
	}
	cfg.Kafka.AuditTopic = valueOrDefault("EKYC_KAFKA_AUDIT_TOPIC", cfg.Kafka.AuditTopic)

	cfg.Logging.Level = valueOrDefault("EKYC_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = valueOrDefault("EKYC_LOG_FORMAT", cfg.Logging.Format)

	cfg.Metrics.Addr = valueOrDefault("EKYC_METRICS_ADDR", cfg.Metrics.Addr)

	return e.err()
}

// Validate rejects settings the core cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.RateLimit.Quota <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.quota must be positive, got %d", c.RateLimit.Quota))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.window must be positive, got %s", c.RateLimit.Window))
	}
	if c.RateLimit.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.poll_interval must be positive, got %s", c.RateLimit.PollInterval))
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.InitialBackoff < 0 {
		errs = append(errs, fmt.Errorf("retry.initial_backoff must not be negative, got %s", c.Retry.InitialBackoff))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("retry.multiplier must be at least 1, got %g", c.Retry.Multiplier))
	}
	for _, th := range []struct {
		name  string
		value float64
	}{
		{"thresholds.document_confidence", float64(c.Thresholds.DocumentConfidence)},
		{"thresholds.biometric_confidence", float64(c.Thresholds.BiometricConfidence)},
		{"thresholds.biometric_similarity", c.Thresholds.BiometricSimilarity},
		{"thresholds.address_confidence", float64(c.Thresholds.AddressConfidence)},
	} {
		if th.value < 0 || th.value > 100 {
			errs = append(errs, fmt.Errorf("%s must be within [0, 100], got %g", th.name, th.value))
		}
	}
	for _, p := range []struct {
		name string
		ep   EndpointConfig
	}{
		{"providers.document", c.Providers.Document},
		{"providers.biometric", c.Providers.Biometric},
		{"providers.address", c.Providers.Address},
		{"providers.sanctions", c.Providers.Sanctions},
	} {
		if p.ep.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required", p.name))
		}
		if p.ep.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("%s.timeout must be positive, got %s", p.name, p.ep.Timeout))
		}
	}
	return errors.Join(errs...)
}

// envReader parses typed env overrides and collects every malformed value so
// one run reports them all.
type envReader struct {
	errs []error
}

func (e *envReader) intVar(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s value %q: %w", key, v, err))
		return fallback
	}
	return n
}

func (e *envReader) floatVar(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s value %q: %w", key, v, err))
		return fallback
	}
	return f
}

func (e *envReader) durationVar(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s value %q: %w", key, v, err))
		return fallback
	}
	return d
}

func (e *envReader) endpoint(prefix string, ep *EndpointConfig) {
	ep.URL = valueOrDefault(prefix+"_URL", ep.URL)
	ep.Timeout = e.durationVar(prefix+"_TIMEOUT", ep.Timeout)
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
