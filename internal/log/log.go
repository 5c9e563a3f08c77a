// Package log provides the leveled, structured logger used throughout the
// node. Calls take a message followed by alternating key/value pairs,
// mirroring the convention the rest of the stack logs with.
package log

import (
	"context"
	"log/slog"
	"os"
)

var root = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetHandler replaces the backend handler, e.g. to raise verbosity or emit JSON.
func SetHandler(h slog.Handler) {
	root = slog.New(h)
}

func Trace(msg string, ctx ...any) { root.Log(context.Background(), slog.LevelDebug-4, msg, ctx...) }
func Debug(msg string, ctx ...any) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...any)  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...any)  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...any) { root.Error(msg, ctx...) }

// Crit logs at the highest level and terminates the process. Reserved for
// store initialization failure, missing genesis, and similar fatal
// conditions per spec §7 class 4.
func Crit(msg string, ctx ...any) {
	root.Log(context.Background(), slog.LevelError+4, msg, ctx...)
	os.Exit(1)
}

// New returns a child logger with ctx bound to every subsequent call.
func New(ctx ...any) *slog.Logger {
	return root.With(ctx...)
}
