package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextHandler_AddsProviderAttrs(t *testing.T) {
	var buf bytes.Buffer
	line := 0
	h := NewContextHandler(slog.NewTextHandler(&buf, nil), func() []slog.Attr {
		line++
		return []slog.Attr{slog.Int("line", line)}
	})

	logger := slog.New(h)
	logger.Info("first")
	logger.Info("second")

	assert.Contains(t, buf.String(), "msg=first line=1")
	assert.Contains(t, buf.String(), "msg=second line=2")
}

func TestContextHandler_NilProvider(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), nil))
	logger.Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestContextHandler_WithAttrsKeepsProvider(t *testing.T) {
	var buf bytes.Buffer
	h := NewContextHandler(slog.NewTextHandler(&buf, nil), func() []slog.Attr {
		return []slog.Attr{slog.String("demo", "match.dem")}
	})

	slog.New(h).With("component", "engine").WithGroup("").Info("grouped")
	assert.Contains(t, buf.String(), "component=engine")
	assert.Contains(t, buf.String(), "demo=match.dem")
}
