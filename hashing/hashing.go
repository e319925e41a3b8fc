// Package hashing maps algorithm names to functions that turn arbitrary
// strings into short, filesystem-safe path segments (lowercase hex).
//
// None of these need to be cryptographic. Collisions make two keys share one
// entry; pick a wider algorithm (sha256, xxhash) for large keyspaces.
package hashing

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"hash/fnv"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Func hashes a name into a path segment. It must be deterministic.
type Func func(string) string

// Default is the algorithm used when none is configured. "crc32" is the IEEE
// polynomial, the variant some tools name "crc32b"; it is not the BZIP2 CRC.
const Default = "crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var algorithms = map[string]Func{
	"crc32": func(s string) string {
		return fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(s)))
	},
	"crc32c": func(s string) string {
		return fmt.Sprintf("%08x", crc32.Checksum([]byte(s), castagnoli))
	},
	"fnv1a32": func(s string) string {
		h := fnv.New32a()
		_, _ = h.Write([]byte(s))
		return fmt.Sprintf("%08x", h.Sum32())
	},
	"fnv1a64": func(s string) string {
		h := fnv.New64a()
		_, _ = h.Write([]byte(s))
		return fmt.Sprintf("%016x", h.Sum64())
	},
	"md5": func(s string) string {
		sum := md5.Sum([]byte(s))
		return hex.EncodeToString(sum[:])
	},
	"sha1": func(s string) string {
		sum := sha1.Sum([]byte(s))
		return hex.EncodeToString(sum[:])
	},
	"sha256": func(s string) string {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:])
	},
	"xxhash": func(s string) string {
		return fmt.Sprintf("%016x", xxhash.Sum64String(s))
	},
}

// Lookup returns the hash function registered under name.
func Lookup(name string) (Func, error) {
	f, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("unknown hashing algorithm %s", strconv.Quote(name))
	}
	return f, nil
}

// Names lists the supported algorithm names in sorted order.
func Names() []string {
	out := make([]string, 0, len(algorithms))
	for n := range algorithms {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
