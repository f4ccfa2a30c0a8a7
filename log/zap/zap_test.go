package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/epochcache"
)

func TestLoggerForwardsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Warn("epoch fetch failed", epochcache.Fields{"epoch": uint64(9), "err": errors.New("down")})
	l.Debug("quiet", nil)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	e := entries[0]
	if e.Message != "epoch fetch failed" || e.Level != zapcore.WarnLevel || e.LoggerName != "epochcache" {
		t.Fatalf("unexpected entry %+v", e.Entry)
	}
	ctx := e.ContextMap()
	if ctx["epoch"] != uint64(9) || ctx["error"] != "down" {
		t.Fatalf("fields=%v", ctx)
	}
}
