// Package zap adapts a *zap.Logger to nscache.Logger.
package zap

import (
	"sort"

	"github.com/unkn0wn-root/nscache"
	"go.uber.org/zap"
)

var _ nscache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New names the logger "nscache". A nil l yields a no-op logger.
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return Logger{L: l.Named("nscache")}
}

func (z Logger) Debug(msg string, f nscache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f nscache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f nscache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f nscache.Fields) { z.L.Error(msg, fields(f)...) }

// fields emits keys in sorted order; errors keep zap's error encoding.
func fields(f nscache.Fields) []zap.Field {
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
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
