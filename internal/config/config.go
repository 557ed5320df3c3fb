package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Match   MatchConfig   `yaml:"match" mapstructure:"match"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// SourcesConfig locates the input datasets. Locations are http(s)://,
// ftp:// or file:// URLs, or plain paths.
type SourcesConfig struct {
	Features        string `yaml:"features" mapstructure:"features"`
	FeaturesObject  string `yaml:"features_object" mapstructure:"features_object"`
	Statistics      string `yaml:"statistics" mapstructure:"statistics"`
	StatisticsPath  string `yaml:"statistics_path" mapstructure:"statistics_path"`
	StatisticsSheet string `yaml:"statistics_sheet" mapstructure:"statistics_sheet"`
	Hierarchy       string `yaml:"hierarchy" mapstructure:"hierarchy"`
}

// FetchConfig configures source downloads.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TempDir     string  `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// Timeout returns TimeoutSecs as a duration.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// MatchConfig configures reconciliation and the fill scale.
type MatchConfig struct {
	MinFuzzyLength int    `yaml:"min_fuzzy_length" mapstructure:"min_fuzzy_length"`
	FillField      string `yaml:"fill_field" mapstructure:"fill_field"`
}

// CacheConfig configures the region tree cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// TTL returns TTLMinutes as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Source keys are registered empty so env vars bind to them.
	v.SetDefault("sources.features", "")
	v.SetDefault("sources.features_object", "")
	v.SetDefault("sources.statistics", "")
	v.SetDefault("sources.statistics_path", "")
	v.SetDefault("sources.statistics_sheet", "")
	v.SetDefault("sources.hierarchy", "")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.user_agent", "region-atlas/1.0")
	v.SetDefault("fetch.rate_per_sec", 5)
	v.SetDefault("fetch.temp_dir", "/tmp/region-atlas")
	v.SetDefault("match.min_fuzzy_length", 4)
	v.SetDefault("match.fill_field", "Confirmed")
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "serve" and "report".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "report":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Sources.Features == "" {
		errs = append(errs, "sources.features is required")
	}
	if c.Sources.Statistics == "" {
		errs = append(errs, "sources.statistics is required")
	}
	if c.Fetch.TimeoutSecs <= 0 {
		errs = append(errs, "fetch.timeout_secs must be > 0")
	}
	if c.Fetch.RatePerSec < 0 {
		errs = append(errs, "fetch.rate_per_sec must be >= 0")
	}
	if c.Match.MinFuzzyLength < 1 {
		errs = append(errs, "match.min_fuzzy_length must be >= 1")
	}
	if c.Match.FillField == "" {
		errs = append(errs, "match.fill_field is required")
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Sprintf("cache.max_entries must be >= 0, got %d", c.Cache.MaxEntries))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
