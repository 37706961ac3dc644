package dbsession

import (
	"context"

	"github.com/go-logr/logr"
)

// Logger is the write-only sink a Session reports to. It is never consulted
// for control flow.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

// Debug implements Logger.
func (NoOpLogger) Debug(_ context.Context, _ string, _ ...any) {}

// Error implements Logger.
func (NoOpLogger) Error(_ context.Context, _ string, _ ...any) {}

// LogrLogger adapts a logr.Logger. Debug messages are emitted at V(1).
type LogrLogger struct {
	l logr.Logger
}

// NewLogrLogger returns a Logger writing to l.
func NewLogrLogger(l logr.Logger) *LogrLogger {
	return &LogrLogger{l: l}
}

// Debug implements Logger. A logger stored in ctx with logr.NewContext wins
// over the one given at construction.
func (a *LogrLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	a.from(ctx).V(1).Info(msg, keyvals...)
}

// Error implements Logger. keyvals may carry an "err" pair; it is passed on as
// the logr error.
func (a *LogrLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	var err error
	rest := make([]any, 0, len(keyvals))
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 < len(keyvals) && keyvals[i] == "err" {
			if e, ok := keyvals[i+1].(error); ok {
				err = e
				continue
			}
		}
		rest = append(rest, keyvals[i])
		if i+1 < len(keyvals) {
			rest = append(rest, keyvals[i+1])
		}
	}
	a.from(ctx).Error(err, msg, rest...)
}

func (a *LogrLogger) from(ctx context.Context) logr.Logger {
	if ctx != nil {
		if l, err := logr.FromContext(ctx); err == nil {
			return l
		}
	}
	return a.l
}
