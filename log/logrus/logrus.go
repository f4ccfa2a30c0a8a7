// Package logrus adapts a *logrus.Entry to epochcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/epochcache"
)

var _ epochcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every line with component=epochcache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "epochcache")}
}

func (l Logger) Debug(msg string, f epochcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f epochcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f epochcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f epochcache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f epochcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	e := l.E
	if err, ok := f["err"].(error); ok {
		e = e.WithError(err)
	}
	rest := make(logrus.Fields, len(f))
	for k, v := range f {
		if k == "err" {
			continue
		}
		rest[k] = v
	}
	return e.WithFields(rest)
}
