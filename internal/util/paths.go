package util

import (
	"path/filepath"
)

// EntryExt is the suffix of every entry file. Sweeps match on it.
const EntryExt = ".dat"

// PathFor maps a namespace (and optionally a key) to a filesystem path:
//
//	PathFor(base, ns, h)      -> base/h(ns)
//	PathFor(base, ns, h, key) -> base/h(ns)/h(key).dat
//
// Only an absent key yields the namespace directory; "" is a key like any
// other. Keys whose hashes collide share a file.
func PathFor(baseDir, namespace string, h func(string) string, key ...string) string {
	dir := filepath.Join(baseDir, h(namespace))
	if len(key) == 0 {
		return dir
	}
	return filepath.Join(dir, h(key[0])+EntryExt)
}

// StorageKey returns the flat key used for byte stores that have no directories.
func StorageKey(prefix, namespace, key string, h func(string) string) string {
	return prefix + h(namespace) + ":" + h(key)
}
