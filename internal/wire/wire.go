package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const version byte = 1

var (
	ErrCorrupt = errors.New("nscache: corrupt entry")
	magic4     = [...]byte{'N', 'S', 'C', 'E'}
)

const hdrLen = 4 + 1 + 8 + 8 + 4

// Entry is a decoded frame. Payload aliases the input slice.
type Entry struct {
	Gen       uint64    // namespace generation at write time
	ExpiresAt time.Time // absolute expiry
	Payload   []byte
}

// Encode frames an entry for byte stores that carry no metadata:
//
//	magic(4) | ver(1) | gen(u64 be) | expires(unix nanos, i64 be) | vlen(u32 be) | payload(vlen)
func Encode(gen uint64, expiresAt time.Time, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], gen)
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(expiresAt.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode parses a frame produced by Encode. Trailing bytes are rejected.
func Decode(b []byte) (Entry, error) {
	if len(b) < hdrLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != version {
		return Entry{}, ErrCorrupt
	}
	off := 5

	gen := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	exp := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen != len(b)-off {
		return Entry{}, ErrCorrupt
	}

	return Entry{
		Gen:       gen,
		ExpiresAt: time.Unix(0, exp),
		Payload:   b[off:],
	}, nil
}
