// Package zap adapts a *zap.Logger to epochcache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/epochcache"
)

var _ epochcache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New names the logger "epochcache" so index output can be filtered.
func New(l *zap.Logger) Logger { return Logger{L: l.Named("epochcache")} }

func (z Logger) Debug(msg string, f epochcache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f epochcache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f epochcache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f epochcache.Fields) { z.L.Error(msg, fields(f)...) }

// fields emits keys in sorted order; errors under "err" become zap.Error.
func fields(f epochcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok && k == "err" {
			out = append(out, zap.Error(err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
