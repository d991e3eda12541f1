package config

import (
	"strings"
	"time"
)

// Config represents the complete application configuration.
// Values are layered as: built-in defaults, config file, environment
// variables, runtime overrides.
type Config struct {
	Server     ServerConfig               `mapstructure:"server"`
	Store      StoreConfig                `mapstructure:"store"`
	Resume     ResumeConfig               `mapstructure:"resume"`
	HTTP       HTTPConfig                 `mapstructure:"http"`
	Search     SearchConfig               `mapstructure:"search"`
	Collectors map[string]CollectorConfig `mapstructure:"collectors"`
	Logging    LoggingConfig              `mapstructure:"logging"`
	Metrics    MetricsConfig              `mapstructure:"metrics"`
	Health     HealthConfig               `mapstructure:"health"`
	Workers    int                        `mapstructure:"workers"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso or a local
// SQLite file.
type StoreConfig struct {
	// Driver is "libsql" (default) or "sqlite" (pure Go, no cgo).
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// ResumeConfig selects where resume pages are kept.
type ResumeConfig struct {
	// Backend is "sql" (the configured store) or "redis".
	Backend   string `mapstructure:"backend"`
	RedisURL  string `mapstructure:"redis_url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// HTTPConfig configures the outbound client shared by collectors.
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// SearchConfig tunes the page boundary search.
type SearchConfig struct {
	Step        int `mapstructure:"step"`
	NarrowWidth int `mapstructure:"narrow_width"`
	// MaxFetches caps page requests per search; 0 means unlimited.
	MaxFetches int `mapstructure:"max_fetches"`
}

// CollectorConfig overrides the built-in settings of one collector.
type CollectorConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	PageSize int           `mapstructure:"page_size"`
	Step     int           `mapstructure:"step"`
	Interval time.Duration `mapstructure:"interval"`
	Enabled  *bool         `mapstructure:"enabled"`
}

// Collector returns the overrides for a collector flag.
func (c *Config) Collector(flag string) CollectorConfig {
	if c == nil || c.Collectors == nil {
		return CollectorConfig{}
	}
	return c.Collectors[strings.ToLower(strings.TrimSpace(flag))]
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
