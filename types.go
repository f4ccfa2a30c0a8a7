package epochcache

import (
	"bytes"
	"cmp"
	"slices"

	"github.com/holiman/uint256"
)

// BlobInfo describes one stored blob within an epoch.
// Indices is an ordered set of the slice indices present in the blob.
type BlobInfo struct {
	QuorumID    uint64   `json:"quorum_id" cbor:"1,keyasint" msgpack:"q"`
	StorageRoot [32]byte `json:"storage_root" cbor:"2,keyasint" msgpack:"r"`
	Indices     []uint32 `json:"indices" cbor:"3,keyasint" msgpack:"i"`
}

// Compare orders blobs by quorum, then root, then index set.
func (b BlobInfo) Compare(o BlobInfo) int {
	if c := cmp.Compare(b.QuorumID, o.QuorumID); c != 0 {
		return c
	}
	if c := bytes.Compare(b.StorageRoot[:], o.StorageRoot[:]); c != 0 {
		return c
	}
	return slices.Compare(b.Indices, o.Indices)
}

// Equal reports full equality (quorum, root and index set).
func (b BlobInfo) Equal(o BlobInfo) bool { return b.Compare(o) == 0 }

func (b BlobInfo) normalized() BlobInfo {
	idx := slices.Clone(b.Indices)
	slices.Sort(idx)
	b.Indices = slices.Compact(idx)
	return b
}

// EpochInfo is the sorted, deduplicated set of blobs known for one epoch.
type EpochInfo []BlobInfo

// NewEpochInfo normalizes blobs into a set. The input is not modified.
func NewEpochInfo(blobs ...BlobInfo) EpochInfo {
	out := make(EpochInfo, 0, len(blobs))
	for _, b := range blobs {
		out = append(out, b.normalized())
	}
	slices.SortFunc(out, BlobInfo.Compare)
	return slices.CompactFunc(out, BlobInfo.Equal)
}

// Len returns the number of distinct blobs.
func (e EpochInfo) Len() int { return len(e) }

// Slices returns the total number of slice indices across all blobs.
func (e EpochInfo) Slices() int {
	n := 0
	for _, b := range e {
		n += len(b.Indices)
	}
	return n
}

// union merges two normalized sets; existing members are kept.
func (e EpochInfo) union(more EpochInfo) EpochInfo {
	if len(more) == 0 {
		return e
	}
	out := make(EpochInfo, 0, len(e)+len(more))
	out = append(out, e...)
	out = append(out, more...)
	slices.SortStableFunc(out, BlobInfo.Compare)
	return slices.CompactFunc(out, BlobInfo.Equal)
}

// SliceIndex is the fully-qualified coordinate of one storage slice.
type SliceIndex struct {
	Epoch       uint64
	QuorumID    uint64
	StorageRoot [32]byte
	Index       uint64
}

// SampleTask is a caller-supplied mining task.
// A slice qualifies when its derived quality is <= Quality.
type SampleTask struct {
	Hash    [32]byte
	Quality uint256.Int
}

// LineCandidate is a slice whose quality satisfied a task's target.
type LineCandidate struct {
	Slice   SliceIndex
	Task    SampleTask
	Quality uint256.Int
}
