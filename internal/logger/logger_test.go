package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("loud")
	require.False(t, ok)
}

// TestContextHelpers ensures named and keyed loggers travel with the context.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := ToContext(context.Background(), New(zapcore.DebugLevel, &buf))
	ctx = WithName(ctx, "controller")
	ctx = WithKV(ctx, "source", "internal")

	InfoKV(ctx, "Transport changed", "state", "running")

	out := buf.String()
	require.Contains(t, out, "controller")
	require.Contains(t, out, "Transport changed")
	require.Contains(t, out, "internal")
	require.Contains(t, out, "running")
}

// TestFromContext_FallsBackToGlobal checks that an empty context yields the global logger.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestWithLevelContext verifies that a per-context level filters entries.
func TestWithLevelContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := ToContext(context.Background(), New(zapcore.DebugLevel, &buf))
	quiet := WithLevelContext(ctx, zapcore.WarnLevel)

	DebugKV(quiet, "pulse forwarded")
	require.Empty(t, buf.String())

	WarnKV(quiet, "pulse late")
	require.Contains(t, buf.String(), "pulse late")
}
