package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewZapLoggerHonoursLevel(t *testing.T) {
	l := NewZapLogger(&ZapLoggerConfig{Encoding: "console", Level: "warn"})
	zl, ok := l.(*zap.Logger)
	if !ok {
		t.Fatalf("expected *zap.Logger, got %T", l)
	}
	if zl.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
	if !zl.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("warn should be enabled")
	}
}

func TestNewZapLoggerFallsBackToInfo(t *testing.T) {
	zl := NewZapLogger(&ZapLoggerConfig{Level: "loud"}).(*zap.Logger)
	if zl.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug should be disabled by default")
	}
	if !zl.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be enabled by default")
	}
}
