package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PAXCAST_LISTEN_ADDR", "127.0.0.1:8080")
	t.Setenv("PAXCAST_DB_DRIVER", "sqlite")
	t.Setenv("PAXCAST_MODEL_CACHE_SIZE", "8")
	t.Setenv("PAXCAST_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 8, cfg.ModelCacheSize)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PAXCAST_MODEL_DIR="+dir+"/models\nPAXCAST_LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("PAXCAST_MODEL_DIR")
		_ = os.Unsetenv("PAXCAST_LOG_LEVEL")
	})

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, dir+"/models", cfg.ModelDir)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("PAXCAST_DB_DRIVER", "postgres")
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.ErrorIs(t, err, ErrInvalidDBDriver)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"empty listen", func(c *Config) { c.ListenAddr = "" }, ErrInvalidListenAddr},
		{"empty data path", func(c *Config) { c.DataPath = "" }, ErrInvalidDataPath},
		{"empty model dir", func(c *Config) { c.ModelDir = "" }, ErrInvalidModelDir},
		{"bad driver", func(c *Config) { c.DBDriver = "mysql" }, ErrInvalidDBDriver},
		{"empty db path", func(c *Config) { c.DBPath = "" }, ErrInvalidDBPath},
		{"bad format", func(c *Config) { c.LogFormat = "text" }, ErrInvalidLogFormat},
		{"bad level", func(c *Config) { c.LogLevel = "trace" }, ErrInvalidLogLevel},
		{"zero cache", func(c *Config) { c.ModelCacheSize = 0 }, ErrInvalidModelCacheSize},
		{"zero body", func(c *Config) { c.MaxBodyBytes = 0 }, ErrInvalidMaxBodyBytes},
		{"zero shutdown", func(c *Config) { c.ShutdownTimeout = 0 }, ErrInvalidShutdown},
		{"metrics disabled is fine", func(c *Config) { c.MetricsAddr = "" }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(&cfg)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseETLConfig(t *testing.T) {
	yml := []byte(`
input_path: data/raw.parquet
output_path: data/processed.parquet
drop_columns: [EMPRESA_SIGLA]
replace_comma_with_dot_columns: [ASK]
set_empty_to_null_columns: [ASK]
numeric_columns: [ASK, ATK]
date_columns: [ANO, MES]
new_date_column: DATA
`)
	cfg, err := ParseETLConfig(yml)
	require.NoError(t, err)
	assert.Equal(t, []string{"EMPRESA_SIGLA"}, cfg.DropColumns)
	assert.Equal(t, []string{"ASK", "ATK"}, cfg.NumericColumns)
	assert.Equal(t, "-01", cfg.DateConcatFormat)
	assert.Equal(t, "DATA", cfg.NewDateColumn)
}

func TestParseETLConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":       "input_path: [",
		"missing input":  "output_path: out.parquet",
		"missing output": "input_path: in.parquet",
		"one date col":   "input_path: a\noutput_path: b\nnew_date_column: D\ndate_columns: [ANO]",
	}
	for name, yml := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseETLConfig([]byte(yml))
			var ve *pkgerrors.ValidationError
			assert.True(t, pkgerrors.As(err, &ve), "got %v", err)
		})
	}
}

func TestLoadETLConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("input_path: in.parquet\noutput_path: out.parquet\n"), 0o600))

	cfg, err := LoadETLConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "in.parquet", cfg.InputPath)

	_, err = LoadETLConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
