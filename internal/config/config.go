// Package config loads habitat settings from config.yaml and HABITAT_*
// environment variables.
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
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver           string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL      string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns         int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns         int32  `yaml:"min_conns" mapstructure:"min_conns"`
	ConnectAttempts  int    `yaml:"connect_attempts" mapstructure:"connect_attempts"`
	ConnectBackoffMs int    `yaml:"connect_backoff_ms" mapstructure:"connect_backoff_ms"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	UploadDir          string   `yaml:"upload_dir" mapstructure:"upload_dir"`
	MaxUploadMB        int64    `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// RequestTimeout returns the per-request timeout.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSecs) * time.Second
}

// IngestConfig configures dataset ingestion.
type IngestConfig struct {
	LedgerPath    string `yaml:"ledger_path" mapstructure:"ledger_path"`
	HashAlgorithm string `yaml:"hash_algorithm" mapstructure:"hash_algorithm"`
	ProfilesPath  string `yaml:"profiles_path" mapstructure:"profiles_path"`
	WatchSettleMs int    `yaml:"watch_settle_ms" mapstructure:"watch_settle_ms"`
}

// CacheConfig configures the Redis score cache. An empty URL disables it.
type CacheConfig struct {
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	TTLSecs  int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSecs) * time.Second
}

// FetchConfig configures remote dataset downloads.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	TempDir     string  `yaml:"temp_dir" mapstructure:"temp_dir"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml in the working directory (if
// present), then environment variables with the HABITAT_ prefix.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("HABITAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.connect_attempts", 5)
	v.SetDefault("store.connect_backoff_ms", 1000)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.upload_dir", "/tmp/habitat/uploads")
	v.SetDefault("server.max_upload_mb", 256)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 60)
	v.SetDefault("ingest.ledger_path", "completed.txt")
	v.SetDefault("ingest.hash_algorithm", "sha1")
	v.SetDefault("ingest.profiles_path", "")
	v.SetDefault("ingest.watch_settle_ms", 2000)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl_secs", 300)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.rate_per_sec", 2)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.temp_dir", "/tmp/habitat/fetch")
	v.SetDefault("fetch.user_agent", "habitat-api/1.0")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command needs. mode is one of "serve",
// "ingest", "watch", "fetch", "migrate" or "score".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		problems = append(problems, c.validateStore()...)
		problems = append(problems, c.validateIngest()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, fmt.Sprintf("server.port must be > 0 and <= 65535, got %d", c.Server.Port))
		}
		if c.Server.MaxUploadMB <= 0 {
			problems = append(problems, "server.max_upload_mb must be > 0")
		}
		if c.Server.UploadDir == "" {
			problems = append(problems, "server.upload_dir is required")
		}
	case "ingest", "watch":
		problems = append(problems, c.validateStore()...)
		problems = append(problems, c.validateIngest()...)
	case "fetch":
		problems = append(problems, c.validateStore()...)
		problems = append(problems, c.validateIngest()...)
		if c.Fetch.TempDir == "" {
			problems = append(problems, "fetch.temp_dir is required")
		}
	case "migrate", "score":
		problems = append(problems, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var problems []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	case "sqlite":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required (sqlite file path)")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
	}
	if c.Store.MinConns > c.Store.MaxConns {
		problems = append(problems, "store.min_conns must be <= store.max_conns")
	}
	return problems
}

func (c *Config) validateIngest() []string {
	var problems []string
	if c.Ingest.LedgerPath == "" {
		problems = append(problems, "ingest.ledger_path is required")
	}
	switch strings.ToLower(c.Ingest.HashAlgorithm) {
	case "sha1", "blake2b":
	default:
		problems = append(problems, fmt.Sprintf("ingest.hash_algorithm must be sha1 or blake2b, got %q", c.Ingest.HashAlgorithm))
	}
	return problems
}

// InitLogger installs the global zap logger.
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
