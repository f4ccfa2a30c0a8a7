// Package genstore keeps per-key generation counters for source/memo.
//
// A memo entry is written with the generation observed before the remote
// call and is served only while that generation is still current. Bumping a
// key's generation (memo.Invalidate) therefore retires every copy of it,
// including a write racing with the invalidation.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// Use LocalGenStore for one process, RedisGenStore when several miners share a memo.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, storageKey string) (uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, storageKey string) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
