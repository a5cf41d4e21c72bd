package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	base = zap.New(
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(os.Stdout),
			level,
		),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	)
)

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	NameKey:        "name",
	CallerKey:      "caller",
	MessageKey:     "message",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.StringDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// SetLevel changes the level of every logger; unknown values fall back to info
func SetLevel(l string) {
	switch l {
	case LevelDebug:
		level.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		level.SetLevel(zapcore.WarnLevel)
	case LevelError:
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

// Logger provides structured logging for the worker
type Logger struct {
	prefix string
	sugar  *zap.SugaredLogger
}

// NewLogger creates a new logger with a prefix
func NewLogger(prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		sugar:  base.Named(prefix).Sugar(),
	}
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	return &Logger{prefix: "nop", sugar: zap.NewNop().Sugar()}
}

// With returns a child logger that always carries the given key-value pairs
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{prefix: l.prefix, sugar: l.sugar.With(keysAndValues...)}
}

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Sync flushes buffered log entries
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
