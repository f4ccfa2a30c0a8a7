// Package codec serializes epoch payloads for remote sources and memo stores.
package codec

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// ByName returns a codec for the given name: "json", "cbor" or "msgpack".
// CBOR is returned in deterministic mode so identical payloads hash identically.
func ByName[V any](name string) (Codec[V], error) {
	switch name {
	case "", "cbor":
		return NewCBOR[V](true)
	case "json":
		return JSON[V]{}, nil
	case "msgpack":
		return Msgpack[V]{}, nil
	default:
		return nil, &UnknownError{Name: name}
	}
}

// UnknownError reports an unsupported codec name.
type UnknownError struct{ Name string }

func (e *UnknownError) Error() string { return "codec: unknown codec " + `"` + e.Name + `"` }
