package epochcache

import (
	"context"
	"iter"
	"slices"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/btree"

	"github.com/unkn0wn-root/epochcache/quality"
)

const btreeDegree = 32

type epochEntry struct {
	epoch uint64
	info  EpochInfo
}

func lessEntry(a, b epochEntry) bool { return a.epoch < b.epoch }
func lessEpoch(a, b uint64) bool     { return a < b }

// Index maps epochs to the blobs known in them and tracks epochs still to be
// fetched. Cached epochs are append-only; nothing is evicted.
//
// Index is not safe for concurrent use. One goroutine owns it for the
// lifetime of a mining session.
type Index struct {
	data    *btree.BTreeG[epochEntry]
	pending *btree.BTreeG[uint64]

	log     Logger
	hooks   Hooks
	clock   clock.Clock
	quality quality.Func
}

func newIndex(opts Options) *Index {
	ix := &Index{
		data:    btree.NewG(btreeDegree, lessEntry),
		pending: btree.NewG(btreeDegree, lessEpoch),
	}
	ix.log = coalesce[Logger](opts.Logger, NopLogger{})
	ix.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	ix.clock = coalesce[clock.Clock](opts.Clock, clock.New())
	ix.quality = opts.Quality
	if ix.quality == nil {
		ix.quality = quality.Keccak
	}
	return ix
}

// NeedsFetch reports whether any epoch is pending.
func (ix *Index) NeedsFetch() bool { return ix.pending.Len() > 0 }

// Enqueue marks epoch as pending. Enqueuing a pending or cached epoch is
// harmless; the drain drops cached epochs without a remote call.
func (ix *Index) Enqueue(epoch uint64) {
	ix.pending.ReplaceOrInsert(epoch)
}

// EnqueueRange marks every epoch in epochs as pending. Order does not matter.
func (ix *Index) EnqueueRange(epochs iter.Seq[uint64]) {
	for e := range epochs {
		ix.pending.ReplaceOrInsert(e)
	}
}

// FetchPending drains pending epochs in ascending order until none remain or
// the budget runs out. The deadline is checked between epochs only, so a call
// can overrun the budget by at most one in-flight src call.
//
// A source error stops the drain and is returned as *FetchError. Epochs cached
// earlier in the same call are kept, and the failed epoch is not re-queued.
// Epochs the source reports as empty are not cached.
func (ix *Index) FetchPending(ctx context.Context, src Source, budget time.Duration) error {
	deadline := ix.clock.Now().Add(budget)

	for ix.clock.Now().Before(deadline) {
		epoch, ok := ix.pending.DeleteMin()
		if !ok {
			return nil
		}

		if ix.data.Has(epochEntry{epoch: epoch}) {
			ix.hooks.EpochSkipped(epoch)
			continue
		}

		started := ix.clock.Now()
		blobs, err := src.EpochInfo(ctx, epoch)
		took := ix.clock.Since(started)
		if err != nil {
			ix.log.Warn("epoch fetch failed", Fields{"epoch": epoch, "err": err})
			ix.hooks.FetchFailed(epoch, err)
			return &FetchError{Epoch: epoch, Err: err}
		}

		info := NewEpochInfo(blobs...)
		if len(info) == 0 {
			ix.log.Debug("epoch empty; not cached", Fields{"epoch": epoch})
			ix.hooks.EpochEmpty(epoch, took)
			continue
		}
		ix.data.ReplaceOrInsert(epochEntry{epoch: epoch, info: info})
		ix.log.Debug("epoch cached", Fields{"epoch": epoch, "blobs": len(info), "took": took})
		ix.hooks.EpochFetched(epoch, len(info), took)
	}

	if n := ix.pending.Len(); n > 0 {
		ix.log.Debug("fetch budget exhausted", Fields{"pending": n, "budget": budget})
		ix.hooks.BudgetExhausted(n)
	}
	return nil
}

// Insert merges blobs into the cached set for epoch. Existing blobs are kept;
// an empty blobs list never creates an entry. It does not touch the pending set.
func (ix *Index) Insert(epoch uint64, blobs ...BlobInfo) {
	info := NewEpochInfo(blobs...)
	if len(info) == 0 {
		return
	}
	if cur, ok := ix.data.Get(epochEntry{epoch: epoch}); ok {
		info = cur.info.union(info)
	}
	ix.data.ReplaceOrInsert(epochEntry{epoch: epoch, info: info})
}

// Has reports whether epoch is cached (and therefore had content).
func (ix *Index) Has(epoch uint64) bool {
	return ix.data.Has(epochEntry{epoch: epoch})
}

// Epoch returns a copy of the cached blob set for epoch.
func (ix *Index) Epoch(epoch uint64) (EpochInfo, bool) {
	e, ok := ix.data.Get(epochEntry{epoch: epoch})
	if !ok {
		return nil, false
	}
	return slices.Clone(e.info), true
}

// Len returns the number of cached epochs.
func (ix *Index) Len() int { return ix.data.Len() }

// MaxEpoch returns the highest cached epoch.
func (ix *Index) MaxEpoch() (uint64, bool) {
	e, ok := ix.data.Max()
	return e.epoch, ok
}

// Pending returns the pending epochs in ascending order.
func (ix *Index) Pending() []uint64 {
	out := make([]uint64, 0, ix.pending.Len())
	ix.pending.Ascend(func(e uint64) bool {
		out = append(out, e)
		return true
	})
	return out
}
