package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func setup(t *testing.T, opts Options) *SlogManager {
	t.Helper()
	m := NewSlogManager()
	require.NoError(t, m.Setup(opts))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestSetup_FileOnly_NoConsole(t *testing.T) {
	var fileBuf, console bytes.Buffer
	m := setup(t, Options{File: &fileBuf, Console: &console, Level: "info"})
	m.Logger().Info("hello file")

	assert.Contains(t, fileBuf.String(), "hello file", "log should appear in file")
	// The "Logging initialized" message from Setup also goes to file
	assert.Empty(t, console.String(), "nothing should reach the console when a file is provided")
}

func TestSetup_NoFile_WritesToConsole(t *testing.T) {
	var console bytes.Buffer
	m := setup(t, Options{Console: &console, Level: "info"})
	m.Logger().Info("hello console")

	assert.Contains(t, console.String(), "hello console", "log should appear on the console")
}

func TestSetup_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	m := setup(t, Options{File: &buf, Level: "debug"})

	m.Logger().Debug("debug msg")
	m.Logger().Info("info msg")

	output := buf.String()
	assert.Contains(t, output, "debug msg")
	assert.Contains(t, output, "info msg")
}

func TestSetup_InfoLevel_FiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	m := setup(t, Options{File: &buf, Level: "info"})

	m.Logger().Debug("should be filtered")
	m.Logger().Info("should appear")

	output := buf.String()
	assert.NotContains(t, output, "should be filtered")
	assert.Contains(t, output, "should appear")
}

func TestSetup_ReplacesLogger(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	m := setup(t, Options{File: &buf1, Level: "info"})
	m.Logger().Info("first")

	require.NoError(t, m.Setup(Options{File: &buf2, Level: "info"}))
	m.Logger().Info("second")

	assert.Contains(t, buf1.String(), "first")
	assert.NotContains(t, buf1.String(), "second", "old file should not receive new logs")
	assert.Contains(t, buf2.String(), "second")
}

func TestSetup_ContextProvider(t *testing.T) {
	var buf bytes.Buffer
	tick := 0
	m := setup(t, Options{File: &buf, Level: "info", Context: func() []slog.Attr {
		tick++
		return []slog.Attr{slog.String("demo", "match.dem"), slog.Int("tick", tick)}
	}})

	m.Logger().Info("with context")
	assert.Contains(t, buf.String(), "demo=match.dem")
	assert.Contains(t, buf.String(), "tick=2")
}

func TestSetup_Graylog(t *testing.T) {
	reader, err := gelf.NewReader("127.0.0.1:0")
	require.NoError(t, err)

	var buf bytes.Buffer
	m := setup(t, Options{File: &buf, Level: "info", GraylogAddress: reader.Addr()})
	m.Logger().Info("to graylog", "fires", 3)

	// the first message is "Logging initialized"
	var msgs []*gelf.Message
	done := make(chan struct{})
	go func() {
		defer close(done)
		for len(msgs) < 2 {
			msg, err := reader.ReadMessage()
			if err != nil {
				return
			}
			msgs = append(msgs, msg)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for GELF messages")
	}
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Short, "to graylog")
	assert.Equal(t, ServiceName, msgs[1].Facility)
}

func TestSetup_GraylogBadAddress(t *testing.T) {
	m := NewSlogManager()
	assert.Error(t, m.Setup(Options{GraylogAddress: "no-port"}))
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	m := NewSlogManager()
	logger := m.Logger()
	assert.Equal(t, slog.Default(), logger)
}

func TestFlush_NilProvider(t *testing.T) {
	m := NewSlogManager()
	err := m.Flush(context.Background())
	assert.NoError(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"trace", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{"", slog.LevelInfo},
		{"invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestFlush_WithProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider() // no exporter, just validates non-nil path
	m := NewSlogManager()

	var buf bytes.Buffer
	require.NoError(t, m.Setup(Options{File: &buf, Level: "info", Provider: provider}))

	err := m.Flush(context.Background())
	assert.NoError(t, err)
}

func TestSetup_WithOTelProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()

	var buf bytes.Buffer
	m := setup(t, Options{File: &buf, Level: "info", Provider: provider})

	m.Logger().Info("otel integrated")
	assert.Contains(t, buf.String(), "otel integrated")
}

func TestClose_WithoutGraylog(t *testing.T) {
	m := NewSlogManager()
	assert.NoError(t, m.Close())
}
