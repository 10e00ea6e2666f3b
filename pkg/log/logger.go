package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass an error value to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// SetupLogger installs a JSON slog logger at the given level as the process
// default. Error attributes are expanded with stack traces from
// cockroachdb/errors by the wrapping handler.
func SetupLogger(loglevel string) {
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     ToLogLevel(loglevel),
	}
	handler := slog.NewJSONHandler(os.Stdout, &ops)
	slog.SetDefault(slog.New(NewStackTraceHandler(handler)))
}

// ToLogLevel converts a level name to a slog.Level.
func ToLogLevel(level string) slog.Level {
	switch level {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}

// slogLogger adapts *slog.Logger to the Logger interface.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps an existing *slog.Logger. Passing nil wraps the
// process default logger.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

func (s *slogLogger) Debug(msg string, fields ...any) { s.l.Debug(msg, fields...) }
func (s *slogLogger) Info(msg string, fields ...any)  { s.l.Info(msg, fields...) }
func (s *slogLogger) Warn(msg string, fields ...any)  { s.l.Warn(msg, fields...) }
func (s *slogLogger) Error(msg string, fields ...any) { s.l.Error(msg, fields...) }

func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{l: s.l.With(fields...)}
}

func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.l.Enabled(ctx, slog.Level(level))
}

// loggerHolder wraps the installed Logger so that defaultLogger always
// stores one concrete type; atomic.Value panics when consecutive stores
// carry different dynamic types.
type loggerHolder struct {
	l Logger
}

// defaultLogger holds the library-wide logger. It defaults to a slog-backed
// logger and can be replaced for tests or embedding applications.
var defaultLogger atomic.Value

func init() {
	defaultLogger.Store(loggerHolder{l: NewSlogLogger(nil)})
}

// GetLogger returns the library-wide logger.
func GetLogger() Logger {
	return defaultLogger.Load().(loggerHolder).l
}

// SetLogger replaces the library-wide logger. Passing nil restores the
// slog-backed default.
func SetLogger(l Logger) {
	if l == nil {
		l = NewSlogLogger(nil)
	}
	defaultLogger.Store(loggerHolder{l: l})
}

// GetLoggerWithName returns the library-wide logger with a component name attached.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}
