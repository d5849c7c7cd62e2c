// Testing helpers for structured logging.
//
// TestLogger captures records as JSON lines in memory so tests can assert on
// what a component logged without touching the global provider's output.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// sink is the shared buffer behind a TestLogger and its children.
// HTTP handlers log from server goroutines, so writes are serialized.
type sink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// TestLogger is a logger implementation designed for testing.
type TestLogger struct {
	sink   *sink
	level  *atomic.Int64
	fields map[string]any
}

// NewTestLogger creates a TestLogger capturing records at or above level.
//
// Example:
//
//	logger := log.NewTestLogger(log.LevelDebug)
//	svc := service.New(store, db, service.WithLogger(logger))
//	...
//	assert.True(t, logger.ContainsField(log.ModelKindKey, "baseline"))
func NewTestLogger(level Level) *TestLogger {
	lv := &atomic.Int64{}
	lv.Store(int64(level))
	return &TestLogger{
		sink:   &sink{},
		level:  lv,
		fields: map[string]any{},
	}
}

// Debug implements Logger.Debug.
func (t *TestLogger) Debug(msg string, fields ...any) { t.log(LevelDebug, msg, fields) }

// Info implements Logger.Info.
func (t *TestLogger) Info(msg string, fields ...any) { t.log(LevelInfo, msg, fields) }

// Warn implements Logger.Warn.
func (t *TestLogger) Warn(msg string, fields ...any) { t.log(LevelWarn, msg, fields) }

// Error implements Logger.Error.
func (t *TestLogger) Error(msg string, fields ...any) {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			fields = append([]any{ErrAttrKey, err}, fields[1:]...)
		}
	}
	t.log(LevelError, msg, fields)
}

// With implements Logger.With.
func (t *TestLogger) With(fields ...any) Logger {
	merged := make(map[string]any, len(t.fields)+len(fields)/2)
	for k, v := range t.fields {
		merged[k] = v
	}
	addFields(merged, fields)
	return &TestLogger{sink: t.sink, level: t.level, fields: merged}
}

// Enabled implements Logger.Enabled.
func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	return Level(t.level.Load()) <= level
}

func (t *TestLogger) log(level Level, msg string, fields []any) {
	if !t.Enabled(context.Background(), level) {
		return
	}
	entry := map[string]any{
		"level":   level.String(),
		"message": msg,
	}
	for k, v := range t.fields {
		entry[k] = v
	}
	addFields(entry, fields)

	line, err := json.Marshal(entry)
	if err != nil {
		line = []byte(fmt.Sprintf(`{"level":%q,"message":%q}`, level.String(), msg))
	}
	t.sink.mu.Lock()
	t.sink.buf.Write(line)
	t.sink.buf.WriteByte('\n')
	t.sink.mu.Unlock()
}

func addFields(dst map[string]any, fields []any) {
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if err, ok := fields[i+1].(error); ok {
			dst[key] = err.Error()
			continue
		}
		dst[key] = fields[i+1]
	}
}

// String returns everything captured so far.
func (t *TestLogger) String() string {
	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	return t.sink.buf.String()
}

// GetLogEntries parses the captured output into one map per record.
func (t *TestLogger) GetLogEntries() ([]map[string]any, error) {
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(t.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether any record's text contains message.
func (t *TestLogger) ContainsMessage(message string) bool {
	return strings.Contains(t.String(), message)
}

// ContainsField reports whether any record has key set to value.
// Numbers are compared after JSON decoding, so pass float64 for numeric fields.
func (t *TestLogger) ContainsField(key string, value any) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if v, ok := entry[key]; ok && v == value {
			return true
		}
	}
	return false
}

// Clear drops all captured records.
func (t *TestLogger) Clear() {
	t.sink.mu.Lock()
	t.sink.buf.Reset()
	t.sink.mu.Unlock()
}

// TestLoggerProvider implements LoggerProvider on top of a single TestLogger.
type TestLoggerProvider struct {
	Logger *TestLogger
}

// NewTestLoggerProvider creates a provider whose loggers all share one capture buffer.
func NewTestLoggerProvider(level Level) *TestLoggerProvider {
	return &TestLoggerProvider{Logger: NewTestLogger(level)}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *TestLoggerProvider) GetLogger() Logger { return p.Logger }

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.Logger.With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *TestLoggerProvider) SetLevel(level Level) {
	p.Logger.level.Store(int64(level))
}
