// Package logger emits one JSON object per line on stdout. Every service
// gets its own Logger; call sites chain Action/With before logging.
package logger

import (
	"log/slog"
	"os"
	"runtime"
)

type Logger struct {
	sl *slog.Logger
}

func New(service string) Logger {
	hostname, _ := os.Hostname()
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	return Logger{
		sl: slog.New(handler).With("service", service, "hostname", hostname),
	}
}

// Action tags every entry logged through the returned Logger.
func (l Logger) Action(action string) Logger {
	return Logger{sl: l.logger().With("action", action)}
}

func (l Logger) With(args ...any) Logger {
	return Logger{sl: l.logger().With(args...)}
}

func (l Logger) WithGroup(name string) Logger {
	return Logger{sl: l.logger().WithGroup(name)}
}

func (l Logger) Info(message string) {
	l.logger().Info(message)
}

func (l Logger) Debug(message string) {
	l.logger().Debug(message)
}

func (l Logger) Warn(message string) {
	l.logger().Warn(message)
}

func (l Logger) Error(message string, err error) {
	if err == nil {
		l.logger().Error(message)
		return
	}
	buf := make([]byte, 1024)
	n := runtime.Stack(buf, false)
	l.logger().Error(message, "error", err.Error(), "stack", string(buf[:n]))
}

// logger tolerates the zero value so forgotten injection never panics.
func (l Logger) logger() *slog.Logger {
	if l.sl == nil {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return l.sl
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() Logger {
	return Logger{sl: slog.New(slog.DiscardHandler)}
}
