package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/flowbuild/internal/errors"
)

func newJSONLogger(buf *bytes.Buffer, level Level) *Logger {
	return New(Config{Level: level, Format: FormatJSON, Output: NewOutput(buf)})
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "output: %s", buf.String())
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestLevelToSlog(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelDebug.ToSlogLevel())
	assert.Equal(t, slog.LevelWarn, LevelWarn.ToSlogLevel())
	assert.Equal(t, slog.LevelInfo, Level(99).ToSlogLevel())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat(""))
	assert.Equal(t, "json", FormatJSON.String())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, LevelInfo, cfg.Level)
	assert.Equal(t, FormatText, cfg.Format)
	assert.Equal(t, "flowbuild", cfg.ServiceName)

	dev := DevelopmentConfig()
	assert.Equal(t, LevelDebug, dev.Level)
	assert.True(t, dev.AddSource)
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	assert.Zero(t, buf.Len(), "debug/info should be filtered at warn level")

	logger.Warn("warn message")
	assert.NotZero(t, buf.Len())
}

func TestJSONFormatOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:       LevelInfo,
		Format:      FormatJSON,
		Output:      NewOutput(&buf),
		ServiceName: "flowbuild",
	})

	logger.Info("target finished", "target", "raw", "duration_ms", 42)

	entry := decode(t, &buf)
	assert.Equal(t, "target finished", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "raw", entry["target"])
	assert.Equal(t, float64(42), entry["duration_ms"])
	assert.Equal(t, "flowbuild", entry["service"])
}

func TestTextFormatOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatText, Output: NewOutput(&buf)})

	logger.Info("phase started", "phase", "build")

	assert.Contains(t, buf.String(), "phase started")
	assert.Contains(t, buf.String(), "phase=build")
}

func TestWithAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, LevelInfo)

	logger.With("phase", "create").WithGroup("target").Info("msg", "name", "raw")

	entry := decode(t, &buf)
	assert.Equal(t, "create", entry["phase"])
	group, ok := entry["target"].(map[string]any)
	require.True(t, ok, "expected target group")
	assert.Equal(t, "raw", group["name"])
}

func TestWithError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  bool
		wantSuggs bool
	}{
		{name: "nil error"},
		{name: "plain error", err: fmt.Errorf("boom")},
		{name: "coded error", err: errors.New(errors.ErrCodeGraphCycle, "cycle"), wantCode: true},
		{
			name:      "wrapped coded error with suggestions",
			err:       fmt.Errorf("run: %w", errors.NewCycleError(fmt.Errorf("a -> b -> a"))),
			wantCode:  true,
			wantSuggs: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			newJSONLogger(&buf, LevelInfo).WithError(tt.err).Info("test")

			entry := decode(t, &buf)
			if tt.err == nil {
				assert.NotContains(t, entry, "error")
				return
			}
			assert.Contains(t, entry, "error")
			if tt.wantCode {
				assert.Contains(t, entry, "error_code")
			}
			if tt.wantSuggs {
				assert.Contains(t, entry, "suggestions")
			}
		})
	}
}

func TestLogErrorContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, LevelInfo)

	cause := fmt.Errorf("no such file")
	logger.LogErrorContext(context.Background(), errors.Wrap(errors.ErrCodeProjectNotFound, "project missing", cause).
		WithDocs("https://example.com/docs"))

	entry := decode(t, &buf)
	assert.Equal(t, "PROJECT-001", entry["error_code"])
	assert.Equal(t, "project missing", entry["error_message"])
	assert.Equal(t, "no such file", entry["cause"])
	assert.Equal(t, "https://example.com/docs", entry["docs_url"])

	buf.Reset()
	logger.LogErrorContext(context.Background(), nil)
	assert.Zero(t, buf.Len())
}

func TestWithContextRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, LevelInfo)

	ctx := ContextWithRunID(context.Background(), "run-123")
	logger.WithContext(ctx).Info("started")
	assert.Equal(t, "run-123", decode(t, &buf)["run_id"])

	buf.Reset()
	logger.WithContext(context.Background()).Info("started")
	assert.NotContains(t, decode(t, &buf), "run_id")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.False(t, logger.Enabled(context.Background(), LevelInfo))
	logger.Error("dropped")
}

func TestDefaultLogger(t *testing.T) {
	original := defaultLogger
	defer func() { defaultLogger = original }()

	defaultLogger = nil
	logger := DefaultLogger()
	require.NotNil(t, logger)
	assert.Same(t, logger, DefaultLogger())

	custom := New(DevelopmentConfig())
	SetDefaultLogger(custom)
	assert.Same(t, custom, DefaultLogger())
}

func TestDefaultLoggerConcurrency(t *testing.T) {
	original := defaultLogger
	defer func() { defaultLogger = original }()
	defaultLogger = nil

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotNil(t, DefaultLogger())
		}()
	}
	wg.Wait()
}
