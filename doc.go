// Package nscache implements a namespaced, TTL-aware key/value cache backed by
// the filesystem, plus a factory that builds caches from configuration.
//
// Components:
//   - FileCache[V]: one directory per namespace, one file per key. A file's
//     modification time is its expiry instant; there is no metadata header.
//   - ProviderCache[V]: the same contract over an in-memory or redis byte store
//     (see package provider), for deployments that do not want disk entries.
//   - Namespaces[V]: registry that keeps one instance per namespace name.
//   - Factory[V]: turns a Config (defaults + named adapters) into caches.
//   - Codec[V] (package codec) and hashing.Func (package hashing) are pluggable.
//
// Layout:
//
//	<basedir>/<hash(namespace)>/<hash(key)>.dat
//
// Usage:
//
//	c, _ := nscache.New[User](nscache.Options[User]{
//	    BaseDir:    "/var/cache/app",
//	    Namespace:  "users",
//	    DefaultTTL: nscache.Hour,
//	    Enabled:    true,
//	})
//	defer c.Release(ctx) // 1/GC chance of sweeping expired entries
//
//	c.Set(ctx, "u:1", u, 0)
//	if v, st := c.Get(ctx, "u:1"); st == nscache.OK { ... }
//
// A default TTL of 0 is honored literally: entries written without an explicit
// TTL expire at write time and read back as a miss.
package nscache
