// Package logrus adapts logrus to nscache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/nscache"
)

var _ nscache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every entry with component=nscache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "nscache")}
}

func (l Logger) Debug(msg string, f nscache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f nscache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f nscache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f nscache.Fields) { l.with(f).Error(msg) }

// with maps an "err" field to logrus.ErrorKey.
func (l Logger) with(f nscache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	lf := make(logrus.Fields, len(f))
	for k, v := range f {
		if k == "err" {
			k = logrus.ErrorKey
		}
		lf[k] = v
	}
	return l.E.WithFields(lf)
}
