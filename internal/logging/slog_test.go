package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newBufLogger() (*SlogLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	l, buf := newBufLogger()
	ctx := context.Background()

	l.Debug(ctx, "dbg", "k", "v")
	l.Info(ctx, "inf")
	l.Warn(ctx, "wrn")
	l.Error(ctx, "err")

	out := buf.String()
	require.Contains(t, out, "level=DEBUG")
	require.Contains(t, out, "level=INFO")
	require.Contains(t, out, "level=WARN")
	require.Contains(t, out, "level=ERROR")
	require.Contains(t, out, "k=v")
}

func TestSlogLogger_With(t *testing.T) {
	l, buf := newBufLogger()
	child := l.With("component", "session")
	child.Info(context.Background(), "hello")

	require.True(t, strings.Contains(buf.String(), "component=session"))
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	// must not panic, With must keep returning a usable logger
	l.With("a", 1).Info(context.Background(), "ignored")
}
