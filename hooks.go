package epochcache

import "time"

// Hooks are lightweight callbacks for high-signal index events.
// Implementations MUST be cheap and non-blocking; they run inside the
// fetch loop and count against its time budget.
type Hooks interface {
	// An epoch was fetched and cached with the given number of distinct blobs.
	EpochFetched(epoch uint64, blobs int, took time.Duration)

	// The source reported no blobs for an epoch; nothing was cached.
	EpochEmpty(epoch uint64, took time.Duration)

	// A pending epoch was already cached and dropped without a remote call.
	EpochSkipped(epoch uint64)

	// The source failed; the drain stopped at this epoch.
	FetchFailed(epoch uint64, err error)

	// The drain hit its deadline with epochs still pending.
	BudgetExhausted(pending int)

	// A scan finished. visited counts epochs, candidates counts emitted slices.
	ScanCompleted(start uint64, visited, candidates int)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) EpochFetched(uint64, int, time.Duration) {}
func (NopHooks) EpochEmpty(uint64, time.Duration)        {}
func (NopHooks) EpochSkipped(uint64)                     {}
func (NopHooks) FetchFailed(uint64, error)               {}
func (NopHooks) BudgetExhausted(int)                     {}
func (NopHooks) ScanCompleted(uint64, int, int)          {}
