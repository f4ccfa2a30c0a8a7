// Package epochcache keeps an epoch-indexed view of blobs stored in a
// data-availability system and scans it for mining candidates.
//
// Components:
//   - Index: ordered epoch -> EpochInfo cache plus an ordered set of epochs
//     still to be fetched. Append-only, single owner, no locking.
//   - Source: remote epoch lookup (see source/redis and source/memo).
//   - quality.Func: per-slice quality derivation (quality.Keccak by default).
//
// Session pattern:
//
//	ix := epochcache.New(epochcache.Options{})
//	ix.EnqueueRange(epochcache.Span(from, tip))
//	if ix.NeedsFetch() {
//		_ = ix.FetchPending(ctx, src, 200*time.Millisecond) // bounded drain
//	}
//	cands, last, ok := ix.Scan(cursor, 16, task)
//	if ok {
//		cursor = last + 1
//	}
//
// Epochs the source reports as empty are never cached, so enqueuing them again
// reaches the source again. Wrap the source with source/memo to memoize
// empty answers for a bounded time if that is not wanted.
package epochcache
