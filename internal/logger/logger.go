// Package logger provides a thin wrapper around zerolog.Logger used by every
// component of the sync engine.
//
// The Logger type embeds zerolog.Logger so all standard zerolog methods
// (Debug, Info, Warn, Error, etc.) are available directly on *Logger.
// Components hold a *Logger scoped to their name via Scope; tests pass Nop().
package logger

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a thin wrapper around zerolog.Logger. Embedding exposes the full
// zerolog API while allowing scoping helpers on top.
type Logger struct {
	zerolog.Logger
}

// New constructs a *Logger writing JSON to w with a timestamp on every entry.
// If w is nil it writes to os.Stdout.
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	l := zerolog.New(w).With().Timestamp().Logger()
	return &Logger{l}
}

// Nop returns a *Logger that discards all output. Intended for tests.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// Scope returns a child logger carrying a "scope" field, e.g. "sync",
// "merger". The receiver is not modified.
func (l *Logger) Scope(name string) *Logger {
	return &Logger{l.With().Str("scope", name).Logger()}
}

// WithContext stores the logger in ctx for retrieval via FromContext.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return l.Logger.WithContext(ctx)
}

// FromContext extracts the zerolog.Logger stored in ctx. If none was
// attached zerolog falls back to its global logger, so the result is never
// nil.
func FromContext(ctx context.Context) *Logger {
	return &Logger{*log.Ctx(ctx)}
}
