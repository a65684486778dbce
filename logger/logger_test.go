package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := With(FromZap(zap.New(core)), map[string]any{"payment": "p1", "state": "idle"})

	l.Info("transition", map[string]any{"state": "submitting"})
	l.Error("failed", map[string]any{"error": errors.New("boom")})

	entries := logs.All()
	require.Len(t, entries, 2)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "p1", ctx["payment"])
	assert.Equal(t, "submitting", ctx["state"])

	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zap.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zap.InfoLevel, parseLevel("bogus"))
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NoopLogger{}
	l.Info("ignored", nil)
	With(nil, nil).Warn("ignored", map[string]any{"k": 1})
}
