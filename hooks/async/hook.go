// Package asynchook moves epochcache.Hooks calls off the fetch loop.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SkippedEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	ix := epochcache.New(epochcache.Options{Hooks: hooks})
//
// Events are dropped, not queued, when the buffer is full. Dropped reports
// how many were lost.
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/epochcache"
)

type Hooks struct {
	inner   epochcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against sends on a closed q
	closed  bool
	dropped atomic.Uint64
}

var _ epochcache.Hooks = (*Hooks)(nil)

func New(inner epochcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) EpochFetched(e uint64, n int, d time.Duration) {
	h.try(func() { h.inner.EpochFetched(e, n, d) })
}
func (h *Hooks) EpochEmpty(e uint64, d time.Duration) { h.try(func() { h.inner.EpochEmpty(e, d) }) }
func (h *Hooks) EpochSkipped(e uint64)                { h.try(func() { h.inner.EpochSkipped(e) }) }
func (h *Hooks) FetchFailed(e uint64, err error)      { h.try(func() { h.inner.FetchFailed(e, err) }) }
func (h *Hooks) BudgetExhausted(n int)                { h.try(func() { h.inner.BudgetExhausted(n) }) }
func (h *Hooks) ScanCompleted(s uint64, v, c int) {
	h.try(func() { h.inner.ScanCompleted(s, v, c) })
}
