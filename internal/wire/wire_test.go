package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func mustDecode(t *testing.T, b []byte) (uint64, []byte) {
	t.Helper()
	gen, p, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	return gen, p
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		gen     uint64
		payload []byte
	}{
		{0, nil},
		{42, []byte("epoch payload")},
		{math.MaxUint64, []byte{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		gen, p := mustDecode(t, Encode(tc.gen, tc.payload))
		if gen != tc.gen {
			t.Fatalf("gen mismatch: got %d want %d", gen, tc.gen)
		}
		if !bytes.Equal(p, tc.payload) {
			t.Fatalf("payload mismatch: got %x want %x", p, tc.payload)
		}
	}
}

func TestRejectsTrailingBytes(t *testing.T) {
	enc := append(Encode(7, []byte("x")), 0xDE, 0xAD)
	if _, _, err := Decode(enc); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt on trailing bytes, got %v", err)
	}
}

func TestRejectsCorruptHeaders(t *testing.T) {
	good := Encode(1, []byte("abc"))

	cases := map[string]func([]byte) []byte{
		"empty":     func([]byte) []byte { return nil },
		"short":     func(b []byte) []byte { return b[:hdrLen-1] },
		"magic":     func(b []byte) []byte { b[0] = 'X'; return b },
		"version":   func(b []byte) []byte { b[4] = 99; return b },
		"truncated": func(b []byte) []byte { return b[:len(b)-1] },
		"vlen": func(b []byte) []byte {
			binary.BigEndian.PutUint32(b[13:], math.MaxUint32)
			return b
		},
		"foreign": func([]byte) []byte { return []byte(`{"quorum_id":1}`) },
	}
	for name, mutate := range cases {
		b := mutate(bytes.Clone(good))
		if _, _, err := Decode(b); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("%s: expected ErrCorrupt, got %v", name, err)
		}
	}
}
