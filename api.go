package nscache

import (
	"context"
	"time"
)

// Status is the outcome of a cache operation.
type Status uint8

const (
	// Disabled means the cache is switched off and did nothing. It is never
	// reported as OK or Failed so callers can tell "off" from "tried".
	Disabled Status = iota
	// OK is a successful write/remove/clear, or a hit for Get.
	OK
	// Failed means the operation was attempted and did not complete.
	Failed
	// Miss is Get's result for absent, expired or unreadable entries.
	Miss
)

func (s Status) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case OK:
		return "ok"
	case Failed:
		return "failed"
	case Miss:
		return "miss"
	default:
		return "unknown"
	}
}

type Adapter[V any] = Cache[V] // alias -> nscache.Adapter[User] or nscache.Cache[User]

// Cache is the capability contract every backend satisfies. One instance
// serves one namespace; WithNamespace derives siblings that share
// configuration. V is the caller's value type, serialized by a codec.
type Cache[V any] interface {
	Namespace() string
	Enabled() bool
	// SetEnabled switches the cache on or off. Switching on prepares backing
	// storage and fails with a *ConfigError if it cannot.
	SetEnabled(on bool) error

	// Set stores value for ttl; ttl == 0 means the configured default TTL.
	Set(ctx context.Context, key string, value V, ttl time.Duration) Status
	Get(ctx context.Context, key string) (V, Status)
	Remove(ctx context.Context, key string) Status
	ClearNamespace(ctx context.Context) Status
	ClearExpired(ctx context.Context) Status

	// WithNamespace returns the registered instance for name, creating it from
	// this instance's configuration when none exists yet.
	WithNamespace(name string) (Cache[V], error)

	// Release ends one usage scope. It may run a garbage-collection sweep
	// inline; the instance stays usable afterwards.
	Release(ctx context.Context) error
}
