package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/epochcache"
)

func TestLoggerForwardsFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Error("epoch fetch failed", epochcache.Fields{"epoch": uint64(3), "err": errors.New("down")})

	e := hook.LastEntry()
	if e == nil {
		t.Fatalf("no entry logged")
	}
	if e.Level != logrus.ErrorLevel || e.Message != "epoch fetch failed" {
		t.Fatalf("unexpected entry %v %q", e.Level, e.Message)
	}
	if e.Data["component"] != "epochcache" || e.Data["epoch"] != uint64(3) {
		t.Fatalf("data=%v", e.Data)
	}
	if err, ok := e.Data[logrus.ErrorKey].(error); !ok || err.Error() != "down" {
		t.Fatalf("error field=%v", e.Data[logrus.ErrorKey])
	}
}
