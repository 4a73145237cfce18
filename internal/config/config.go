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
)

// Config holds the skuindex configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Storage    StorageConfig    `yaml:"storage"`
	Auth       AuthConfig       `yaml:"auth"`
	Search     SearchConfig     `yaml:"search"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	Outbox     OutboxConfig     `yaml:"outbox"`
	Events     EventsConfig     `yaml:"events"`
	Dictionary DictionaryConfig `yaml:"dictionary"`
	Timeouts   TimeoutsConfig   `yaml:"timeouts"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Database drivers.
const (
	DriverRedis = "redis"
	DriverBleve = "bleve"
)

// DatabaseConfig selects and connects the search store.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, bleve (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	Path             string   `yaml:"path"` // bleve only; empty = in memory
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// CatalogConfig locates the relational catalog.
type CatalogConfig struct {
	DSN string `yaml:"dsn"` // sqlite file path; empty = in memory
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// AuthConfig holds API authentication settings for write routes.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// SearchConfig holds read-path settings.
type SearchConfig struct {
	DefaultLimit int     `yaml:"default_limit"`
	MaxLimit     int     `yaml:"max_limit"`
	Overfetch    int     `yaml:"overfetch"`
	MaxFetch     int     `yaml:"max_fetch"`
	MaxScan      int     `yaml:"max_scan"`
	TimeoutMS    int     `yaml:"timeout_ms"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"` // 0 = unlimited
	Burst        int     `yaml:"burst"`
	CacheSize    int     `yaml:"parse_cache_size"`
}

// BreakerConfig tunes the search circuit breaker.
type BreakerConfig struct {
	MaxRequests  uint32  `yaml:"max_requests"`
	IntervalSec  int     `yaml:"interval_sec"`
	TimeoutSec   int     `yaml:"timeout_sec"`
	FailureRatio float64 `yaml:"failure_ratio"`
	MinRequests  uint32  `yaml:"min_requests"`
}

// OutboxConfig tunes the sync relay.
type OutboxConfig struct {
	PollIntervalMS int `yaml:"poll_interval_ms"`
	BatchSize      int `yaml:"batch_size"`
	MaxAttempts    int `yaml:"max_attempts"`
	LeaseSec       int `yaml:"lease_sec"`
}

// EventsConfig enables the product-changed consumer.
type EventsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RedisAddr   string `yaml:"redis_addr"`
	Password    string `yaml:"password"`
	Concurrency int    `yaml:"concurrency"`
	Queue       string `yaml:"queue"`
}

// DictionaryConfig locates the attribute dictionary.
type DictionaryConfig struct {
	Path string `yaml:"path"` // empty = built-in table
}

// TimeoutsConfig bounds external store calls on the sync path.
type TimeoutsConfig struct {
	StoreMS int `yaml:"store_ms"`
	IndexMS int `yaml:"index_ms"`
	AsyncMS int `yaml:"async_ms"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
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
	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "skuindex:"
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 20
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 100
	}
	if c.Search.Overfetch <= 0 {
		c.Search.Overfetch = 5
	}
	if c.Search.MaxFetch <= 0 {
		c.Search.MaxFetch = 500
	}
	if c.Search.MaxScan <= 0 {
		c.Search.MaxScan = 10000
	}
	if c.Search.TimeoutMS <= 0 {
		c.Search.TimeoutMS = 2000
	}
	if c.Search.RateLimitRPS > 0 && c.Search.Burst <= 0 {
		c.Search.Burst = int(c.Search.RateLimitRPS) + 1
	}
	if c.Search.CacheSize <= 0 {
		c.Search.CacheSize = 4096
	}
	if c.Breaker.MaxRequests == 0 {
		c.Breaker.MaxRequests = 3
	}
	if c.Breaker.IntervalSec <= 0 {
		c.Breaker.IntervalSec = 10
	}
	if c.Breaker.TimeoutSec <= 0 {
		c.Breaker.TimeoutSec = 30
	}
	if c.Breaker.FailureRatio <= 0 {
		c.Breaker.FailureRatio = 0.6
	}
	if c.Breaker.MinRequests == 0 {
		c.Breaker.MinRequests = 5
	}
	if c.Outbox.PollIntervalMS <= 0 {
		c.Outbox.PollIntervalMS = 2000
	}
	if c.Outbox.BatchSize <= 0 {
		c.Outbox.BatchSize = 50
	}
	if c.Outbox.MaxAttempts <= 0 {
		c.Outbox.MaxAttempts = 10
	}
	if c.Outbox.LeaseSec <= 0 {
		c.Outbox.LeaseSec = 60
	}
	if c.Events.Concurrency <= 0 {
		c.Events.Concurrency = 10
	}
	if c.Events.Queue == "" {
		c.Events.Queue = "default"
	}
	if c.Timeouts.StoreMS <= 0 {
		c.Timeouts.StoreMS = 5000
	}
	if c.Timeouts.IndexMS <= 0 {
		c.Timeouts.IndexMS = 10000
	}
	if c.Timeouts.AsyncMS <= 0 {
		c.Timeouts.AsyncMS = 30000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for the redis driver")
		}
	case DriverBleve:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverRedis, DriverBleve, c.Database.Driver)
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit (%d) exceeds search.max_limit (%d)",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if c.Search.RateLimitRPS < 0 {
		return fmt.Errorf("search.rate_limit_rps must not be negative")
	}
	if c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("breaker.failure_ratio must be in (0, 1], got %v", c.Breaker.FailureRatio)
	}
	if c.Events.Enabled && c.Events.RedisAddr == "" {
		return fmt.Errorf("events.redis_addr is required when events are enabled")
	}
	return nil
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// Seconds converts a second setting to a duration.
func Seconds(sec int) time.Duration { return time.Duration(sec) * time.Second }

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
