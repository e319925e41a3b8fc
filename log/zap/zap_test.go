package zap

import (
	"errors"
	"testing"

	"github.com/unkn0wn-root/nscache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Debug("d", nil)
	l.Info("i", nscache.Fields{"ns": "users"})
	l.Warn("w", nscache.Fields{"err": errors.New("boom"), "key": "k"})
	l.Error("e", nscache.Fields{})

	entries := logs.AllUntimed()
	if len(entries) != 4 {
		t.Fatalf("want 4 entries, got %d", len(entries))
	}
	wantLevels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != wantLevels[i] {
			t.Fatalf("entry %d: level=%v want %v", i, e.Level, wantLevels[i])
		}
		if e.LoggerName != "nscache" {
			t.Fatalf("entry %d: logger name=%q", i, e.LoggerName)
		}
	}

	ctx := entries[2].ContextMap()
	if ctx["err"] != "boom" || ctx["key"] != "k" {
		t.Fatalf("warn fields=%v", ctx)
	}
	if got := entries[2].Context[0].Key; got != "err" {
		t.Fatalf("fields not sorted: first=%q", got)
	}
}

func TestNewNil(t *testing.T) {
	New(nil).Info("dropped", nscache.Fields{"a": 1})
}
