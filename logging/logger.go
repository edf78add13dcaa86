// Package logging implements the types.Logger contract on top of log/slog.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/slackmgr/types"
)

// LevelFatal is logged by Fatal and Fatalf before the process exits.
const LevelFatal = slog.Level(12)

// Logger adapts a *slog.Logger to types.Logger.
type Logger struct {
	logger *slog.Logger
	exit   func(code int)
}

var _ types.Logger = (*Logger)(nil)

// New creates a Logger writing to w at the given level ("debug", "info",
// "warn" or "error"). JSON output is used when json is true, text otherwise.
func New(w io.Writer, level string, json bool) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if l, ok := a.Value.Any().(slog.Level); ok && l == LevelFatal {
					a.Value = slog.StringValue("FATAL")
				}
			}
			return a
		},
	}

	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	return &Logger{logger: slog.New(h), exit: os.Exit}, nil
}

// FromSlog wraps an existing *slog.Logger.
func FromSlog(l *slog.Logger) *Logger {
	return &Logger{logger: l, exit: os.Exit}
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}

// Slog returns the underlying *slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

//nolint:ireturn // Must return interface to implement types.Logger
func (l *Logger) WithField(key string, value any) types.Logger {
	return &Logger{logger: l.logger.With(key, value), exit: l.exit}
}

//nolint:ireturn // Must return interface to implement types.Logger
func (l *Logger) WithFields(fields map[string]any) types.Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}

	return &Logger{logger: l.logger.With(args...), exit: l.exit}
}

func (l *Logger) Debug(msg string)                  { l.logger.Debug(msg) }
func (l *Logger) Debugf(format string, args ...any) { l.logf(slog.LevelDebug, format, args...) }
func (l *Logger) Info(msg string)                   { l.logger.Info(msg) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(slog.LevelInfo, format, args...) }
func (l *Logger) Warn(msg string)                   { l.logger.Warn(msg) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(slog.LevelWarn, format, args...) }
func (l *Logger) Error(msg string)                  { l.logger.Error(msg) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(slog.LevelError, format, args...) }

// Fatal logs msg and exits the process with status 1.
func (l *Logger) Fatal(msg string) {
	l.logger.Log(context.Background(), LevelFatal, msg)
	l.exit(1)
}

func (l *Logger) Fatalf(format string, args ...any) {
	l.logf(LevelFatal, format, args...)
	l.exit(1)
}

func (l *Logger) logf(level slog.Level, format string, args ...any) {
	ctx := context.Background()

	if !l.logger.Enabled(ctx, level) {
		return
	}

	l.logger.Log(ctx, level, fmt.Sprintf(format, args...))
}
