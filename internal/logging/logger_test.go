package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel(LevelInfo) })

	cases := []struct {
		in       string
		expected zapcore.Level
	}{
		{LevelDebug, zapcore.DebugLevel},
		{LevelInfo, zapcore.InfoLevel},
		{LevelWarn, zapcore.WarnLevel},
		{LevelError, zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, c := range cases {
		SetLevel(c.in)
		if got := level.Level(); got != c.expected {
			t.Fatalf("SetLevel(%q) = %v; want %v", c.in, got, c.expected)
		}
	}
}

func TestLoggerWithDoesNotPanic(t *testing.T) {
	l := NewNopLogger().With("job", "abc")
	l.Info("processing", "step", 1)
	l.Debug("odd pairs are tolerated", "dangling")
}
