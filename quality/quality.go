// Package quality derives per-slice mining quality values and compares them
// against a task's difficulty target.
//
// Qualities are 256-bit unsigned integers in big-endian byte form. For
// big-endian encodings of equal width, lexicographic byte order equals numeric
// order, so admission is a plain bytes.Compare against the target.
package quality

import (
	"bytes"
	"encoding/binary"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// Size is the width of a quality value in bytes.
const Size = 32

// Func derives the quality of one storage slice for one task.
// Implementations must be pure: identical inputs always give identical output.
type Func func(taskHash [32]byte, epoch, quorumID uint64, storageRoot [32]byte, index uint64) [Size]byte

var _ Func = Keccak

// Keccak is the default derivation:
//
//	keccak256(taskHash | be64(epoch) | be64(quorumID) | storageRoot | be64(index))
func Keccak(taskHash [32]byte, epoch, quorumID uint64, storageRoot [32]byte, index uint64) [Size]byte {
	var buf [32 + 8 + 8 + 32 + 8]byte
	off := copy(buf[:], taskHash[:])
	binary.BigEndian.PutUint64(buf[off:], epoch)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], quorumID)
	off += 8
	off += copy(buf[off:], storageRoot[:])
	binary.BigEndian.PutUint64(buf[off:], index)

	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(buf[:])

	var out [Size]byte
	h.Sum(out[:0])
	return out
}

// Meets reports whether q satisfies threshold (q <= threshold).
// The comparison is inclusive.
func Meets(q, threshold [Size]byte) bool {
	return bytes.Compare(q[:], threshold[:]) <= 0
}

// ToBytes returns the big-endian encoding of v.
func ToBytes(v uint256.Int) [Size]byte {
	return v.Bytes32()
}

// FromBytes interprets b as a big-endian unsigned integer.
func FromBytes(b [Size]byte) uint256.Int {
	var v uint256.Int
	v.SetBytes32(b[:])
	return v
}

// Max returns 2^256-1, a target every slice satisfies.
func Max() uint256.Int {
	var v uint256.Int
	v.SetAllOne()
	return v
}
