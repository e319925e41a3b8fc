// Package codec holds the storing/restoring filters a cache uses to turn values
// into entry bytes and back.
package codec

import (
	"fmt"
	"strconv"
)

// Codec encodes/decodes values V to []byte for storage.
// Decode errors are treated by caches as a miss, never as a crash.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// ByName resolves a codec by configuration name:
// json, msgpack, cbor, cbor-deterministic, string (V=string), bytes (V=[]byte).
func ByName[V any](name string) (Codec[V], error) {
	switch name {
	case "", "json":
		return JSON[V]{}, nil
	case "msgpack":
		return Msgpack[V]{}, nil
	case "cbor", "cbor-deterministic":
		c, err := NewCBOR[V](name == "cbor-deterministic")
		if err != nil {
			return nil, err
		}
		return c, nil
	case "string":
		if c, ok := any(String{}).(Codec[V]); ok {
			return c, nil
		}
		return nil, fmt.Errorf("codec %q requires string values", name)
	case "bytes":
		if c, ok := any(Bytes{}).(Codec[V]); ok {
			return c, nil
		}
		return nil, fmt.Errorf("codec %q requires []byte values", name)
	}
	return nil, fmt.Errorf("unknown codec %s", strconv.Quote(name))
}
