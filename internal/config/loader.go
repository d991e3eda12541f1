// Package config provides centralized configuration management for itemtally.
// Layers, lowest to highest precedence:
// built-in defaults, the YAML config file, ITEMTALLY_* environment variables,
// runtime overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is used for XDG directories and the store file name.
	AppName = "itemtally"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "ITEMTALLY_"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// Load reads configuration. configFile may be empty, in which case the XDG
// config directory and ./config are searched for config.yaml; a missing file
// is not an error.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, configFile string, runtimeOverrides ...map[string]any) (*Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if strings.TrimSpace(configFile) != "" {
		v.SetConfigFile(configFile)
	} else {
		if dir := gfconfig.GetAppConfigDir(AppName); strings.TrimSpace(dir) != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || strings.TrimSpace(configFile) != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Load environment variable overrides
	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	for _, overrides := range append([]map[string]any{envOverrides}, runtimeOverrides...) {
		applyOverrides(v, "", overrides)
	}

	// Unmarshal into typed config struct
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	normalizeCollectors(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Store the loaded config
	setConfig(cfg)

	return cfg, nil
}

// Validate rejects settings the collectors cannot run with.
func (c *Config) Validate() error {
	if c.Search.Step < 0 {
		return fmt.Errorf("search.step must be at least 1, got %d", c.Search.Step)
	}
	if c.Search.MaxFetches < 0 {
		return fmt.Errorf("search.max_fetches must not be negative, got %d", c.Search.MaxFetches)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	switch strings.ToLower(strings.TrimSpace(c.Resume.Backend)) {
	case "", "sql":
	case "redis":
		if strings.TrimSpace(c.Resume.RedisURL) == "" {
			return errors.New("resume.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported resume backend: %s", c.Resume.Backend)
	}
	for flag, cc := range c.Collectors {
		if cc.PageSize < 0 {
			return fmt.Errorf("collectors.%s.page_size must be positive", flag)
		}
		if cc.Step < 0 {
			return fmt.Errorf("collectors.%s.step must be at least 1", flag)
		}
		if cc.Interval < 0 {
			return fmt.Errorf("collectors.%s.interval must not be negative", flag)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "SIMPLE")

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("resume.backend", "sql")
	v.SetDefault("resume.redis_url", "")
	v.SetDefault("resume.key_prefix", AppName+":")

	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.user_agent", AppName)

	v.SetDefault("search.step", 250)
	v.SetDefault("search.narrow_width", 5)
	v.SetDefault("search.max_fetches", 0)

	v.SetDefault("collectors", map[string]any{})

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("health.enabled", true)

	v.SetDefault("workers", 1)
}

// applyOverrides sets every leaf of a nested override map on v.
func applyOverrides(v *viper.Viper, prefix string, overrides map[string]any) {
	for key, value := range overrides {
		path := strings.ToLower(key)
		if prefix != "" {
			path = prefix + "." + path
		}
		if nested, ok := value.(map[string]any); ok {
			applyOverrides(v, path, nested)
			continue
		}
		v.Set(path, value)
	}
}

func normalizeCollectors(cfg *Config) {
	if len(cfg.Collectors) == 0 {
		return
	}
	normalized := make(map[string]CollectorConfig, len(cfg.Collectors))
	for flag, cc := range cfg.Collectors {
		normalized[strings.ToLower(strings.TrimSpace(flag))] = cc
	}
	cfg.Collectors = normalized
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// getEnvSpecs returns environment variable specifications for config mapping
func getEnvSpecs() []EnvVarSpec {
	prefix := EnvPrefix
	return []EnvVarSpec{
		// Server config
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},

		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		// Store config
		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},

		// Resume backend
		{Name: prefix + "RESUME_BACKEND", Path: []string{"resume", "backend"}, Type: EnvString},
		{Name: prefix + "REDIS_URL", Path: []string{"resume", "redis_url"}, Type: EnvString},
		{Name: prefix + "RESUME_KEY_PREFIX", Path: []string{"resume", "key_prefix"}, Type: EnvString},

		{Name: prefix + "HTTP_TIMEOUT", Path: []string{"http", "timeout"}, Type: EnvString},
		{Name: prefix + "USER_AGENT", Path: []string{"http", "user_agent"}, Type: EnvString},

		{Name: prefix + "SEARCH_STEP", Path: []string{"search", "step"}, Type: EnvInt},
		{Name: prefix + "SEARCH_MAX_FETCHES", Path: []string{"search", "max_fetches"}, Type: EnvInt},

		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},
		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},

		{Name: prefix + "WORKERS", Path: []string{"workers"}, Type: EnvInt},
	}
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(AppName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}
