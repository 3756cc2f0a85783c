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
		"warn":    zapcore.WarnLevel,
		"WARNING": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestNewWithWriters_SplitsByLevel checks that errors go to the diagnostic writer only.
func TestNewWithWriters_SplitsByLevel(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer

	l := NewWithWriters(zapcore.DebugLevel, &out, &errOut)
	ctx := ToContext(context.Background(), l)

	InfoKV(ctx, "progress message", "step", "resolve")
	ErrorKV(ctx, "failure message", "kind", "remote")

	require.Contains(t, out.String(), "progress message")
	require.NotContains(t, out.String(), "failure message")
	require.Contains(t, errOut.String(), "failure message")
	require.NotContains(t, errOut.String(), "progress message")
}

// TestWithName_ScopesLogger ensures named loggers are carried through the context.
func TestWithName_ScopesLogger(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	ctx := ToContext(context.Background(), NewWithWriters(zapcore.InfoLevel, &out, &out))
	ctx = WithName(ctx, "julia-updater")
	ctx = WithKV(ctx, "version", "1.9.2")

	Info(ctx, "hello")

	require.Contains(t, out.String(), "julia-updater")
	require.Contains(t, out.String(), "1.9.2")
}

// TestFromContext_FallsBackToGlobal verifies the global logger is used for bare contexts.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, global, FromContext(context.Background()))
}
