package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	pkgerrors "github.com/YuminosukeSato/paxcast/pkg/errors"
)

// Config controls the process-wide logger.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is "json" or "console".
	Format string
	// File, when set, receives log output through a rotating writer instead of stderr.
	File string
	// MaxSizeMB and MaxBackups bound the rotated files.
	MaxSizeMB  int
	MaxBackups int
}

// ParseLevel converts a level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, pkgerrors.NewValidationError("log_level", "must be one of debug, info, warn, error", s)
	}
}

// SetupLogger installs a zerolog-backed provider as the global provider and
// routes pkg/errors warnings through it. The returned Closer releases the
// log file, if any.
func SetupLogger(cfg Config) (io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var (
		out    io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			Compress:   true,
		}
		out, closer = rotating, rotating
	}

	switch strings.ToLower(cfg.Format) {
	case "", "json":
	case "console":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: cfg.File != ""}
	default:
		return nil, pkgerrors.NewValidationError("log_format", "must be json or console", cfg.Format)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	SetProvider(NewZerologProvider(out, level))
	return closer, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
