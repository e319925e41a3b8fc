package nscache

import (
	"os"
	"time"
)

// Standard time intervals for TTLs.
const (
	Minute = time.Minute
	Hour   = time.Hour
	Day    = 24 * Hour
	Week   = 7 * Day
	Month  = 30 * Day
	Year   = 365 * Day
)

const (
	DefaultNamespace = "default"
	DefaultBaseDir   = "./data/cache"
	DefaultGC        = 1000

	DefaultDirPerm  os.FileMode = 0o700
	DefaultFilePerm os.FileMode = 0o600
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
