// Package config loads paxcast's runtime configuration from the environment
// (PAXCAST_* variables, optionally seeded from a .env file) and the ETL job
// description from YAML.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "PAXCAST"

// Config validation errors
var (
	ErrInvalidListenAddr     = errors.New("listen_addr cannot be empty")
	ErrInvalidDataPath       = errors.New("data_path cannot be empty")
	ErrInvalidModelDir       = errors.New("model_dir cannot be empty")
	ErrInvalidDBDriver       = errors.New("db_driver must be 'duckdb' or 'sqlite'")
	ErrInvalidDBPath         = errors.New("db_path cannot be empty")
	ErrInvalidLogFormat      = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel       = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidModelCacheSize = errors.New("model_cache_size must be positive")
	ErrInvalidMaxBodyBytes   = errors.New("max_body_bytes must be positive")
	ErrInvalidShutdown       = errors.New("shutdown_timeout must be positive")
)

// Config is the service configuration.
type Config struct {
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8000"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"` // empty disables the Prometheus listener

	DataPath string `envconfig:"DATA_PATH" default:"data/processed.parquet"`
	ModelDir string `envconfig:"MODEL_DIR" default:"model_artifacts"`

	DBDriver string `envconfig:"DB_DRIVER" default:"duckdb"`
	DBPath   string `envconfig:"DB_PATH" default:"db"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogFile   string `envconfig:"LOG_FILE"`

	ModelCacheSize  int           `envconfig:"MODEL_CACHE_SIZE" default:"4"`
	MaxBodyBytes    int64         `envconfig:"MAX_BODY_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":8000",
		MetricsAddr:     ":9090",
		DataPath:        "data/processed.parquet",
		ModelDir:        "model_artifacts",
		DBDriver:        "duckdb",
		DBPath:          "db",
		LogLevel:        "info",
		LogFormat:       "json",
		ModelCacheSize:  4,
		MaxBodyBytes:    1 << 20,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Load reads .env files (missing files are ignored), then PAXCAST_* variables,
// and validates the result.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		// 既存の環境変数は上書きしない
		if err := godotenv.Load(f); err != nil {
			return Config{}, pkgerrors.Wrapf(err, "load %s", f)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, pkgerrors.Wrap(err, "process environment")
	}
	if err := ValidateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.ListenAddr == "" {
		return ErrInvalidListenAddr
	}
	if cfg.DataPath == "" {
		return ErrInvalidDataPath
	}
	if cfg.ModelDir == "" {
		return ErrInvalidModelDir
	}
	if cfg.DBDriver != "duckdb" && cfg.DBDriver != "sqlite" {
		return ErrInvalidDBDriver
	}
	if cfg.DBPath == "" {
		return ErrInvalidDBPath
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	if cfg.ModelCacheSize <= 0 {
		return ErrInvalidModelCacheSize
	}
	if cfg.MaxBodyBytes <= 0 {
		return ErrInvalidMaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		return ErrInvalidShutdown
	}
	return nil
}
