package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("epochcache: corrupt entry")
	magic4     = [...]byte{'E', 'P', 'C', 'H'}
)

// Encode frames payload with its generation:
//
//	magic(4) | ver(1) | gen(u64 be) | vlen(u32 be) | payload(vlen)
func Encode(gen uint64, payload []byte) []byte {
	out := make([]byte, hdrLen+len(payload))
	copy(out, magic4[:])
	out[4] = version
	binary.BigEndian.PutUint64(out[5:], gen)
	binary.BigEndian.PutUint32(out[13:], uint32(len(payload)))
	copy(out[hdrLen:], payload)
	return out
}

// Decode parses an entry produced by Encode. Anything else, including
// trailing bytes after the payload, is ErrCorrupt.
func Decode(b []byte) (gen uint64, payload []byte, err error) {
	if len(b) < hdrLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != version {
		return 0, nil, ErrCorrupt
	}
	gen = binary.BigEndian.Uint64(b[5:13])
	vlen := binary.BigEndian.Uint32(b[13:hdrLen])
	if uint64(vlen) != uint64(len(b)-hdrLen) {
		return 0, nil, ErrCorrupt
	}
	return gen, b[hdrLen:], nil
}
