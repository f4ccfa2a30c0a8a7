// Package memo wraps an epochcache.Source with a read-through memo kept in a
// provider.Provider.
//
// Entries are written CAS-style: the generation of the epoch key is
// snapshotted before the remote call and the result is stored only if the
// generation is unchanged afterwards. Invalidate bumps the generation, so a
// reader never gets an entry written before the invalidation.
//
// Empty answers are not memoized unless CacheEmpty is set, matching the
// index, which also re-asks the source for epochs that had no blobs.
package memo

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/epochcache"
	c "github.com/unkn0wn-root/epochcache/codec"
	gen "github.com/unkn0wn-root/epochcache/genstore"
	"github.com/unkn0wn-root/epochcache/internal/util"
	"github.com/unkn0wn-root/epochcache/internal/wire"
	pr "github.com/unkn0wn-root/epochcache/provider"
)

const (
	defaultTTL          = 10 * time.Minute
	defaultEmptyTTL     = 30 * time.Second
	defaultGenSweep     = time.Hour
	defaultGenRetention = 24 * time.Hour
)

type Options struct {
	// Required
	Namespace string
	Source    epochcache.Source
	Provider  pr.Provider

	Codec      c.Codec[[]epochcache.BlobInfo] // nil => deterministic CBOR
	GenStore   gen.GenStore                   // nil => LocalGenStore (owned, closed by Close)
	TTL        time.Duration                  // non-empty epochs; 0 => 10m
	CacheEmpty bool                           // memoize "no blobs yet" answers
	EmptyTTL   time.Duration                  // 0 => 30s; only with CacheEmpty
	Logger     epochcache.Logger              // nil => NopLogger
}

// Stats are monotonically increasing counters.
type Stats struct {
	Hits, Misses, SelfHeals, StaleWrites uint64
}

type Memo struct {
	ns         string
	src        epochcache.Source
	provider   pr.Provider
	codec      c.Codec[[]epochcache.BlobInfo]
	gen        gen.GenStore
	ownsGen    bool
	ttl        time.Duration
	cacheEmpty bool
	emptyTTL   time.Duration
	log        epochcache.Logger

	hits, misses, selfHeals, staleWrites atomic.Uint64
}

var _ epochcache.Source = (*Memo)(nil)

func New(opts Options) (*Memo, error) {
	if opts.Source == nil {
		return nil, errors.New("memo: source is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("memo: provider is required")
	}
	if opts.Namespace == "" {
		return nil, errors.New("memo: namespace is required")
	}

	m := &Memo{
		ns:         opts.Namespace,
		src:        opts.Source,
		provider:   opts.Provider,
		codec:      opts.Codec,
		gen:        opts.GenStore,
		cacheEmpty: opts.CacheEmpty,
	}
	if m.codec == nil {
		cb, err := c.NewCBOR[[]epochcache.BlobInfo](true)
		if err != nil {
			return nil, err
		}
		m.codec = cb
	}
	if m.gen == nil {
		m.gen = gen.NewLocalGenStore(defaultGenSweep, defaultGenRetention)
		m.ownsGen = true
	}
	m.ttl = coalesce(opts.TTL, defaultTTL)
	m.emptyTTL = coalesce(opts.EmptyTTL, defaultEmptyTTL)
	m.log = coalesce[epochcache.Logger](opts.Logger, epochcache.NopLogger{})
	return m, nil
}

// EpochInfo serves epoch from the memo, or asks the wrapped source and
// memoizes the answer. Memo failures are logged and never fail the call.
func (m *Memo) EpochInfo(ctx context.Context, epoch uint64) ([]epochcache.BlobInfo, error) {
	k := util.EpochKey(m.ns, epoch)

	if blobs, ok := m.lookup(ctx, k); ok {
		m.hits.Add(1)
		return blobs, nil
	}
	m.misses.Add(1)

	obs := m.snapshotGen(ctx, k)
	blobs, err := m.src.EpochInfo(ctx, epoch)
	if err != nil {
		return nil, err
	}

	ttl := m.ttl
	if len(blobs) == 0 {
		if !m.cacheEmpty {
			return blobs, nil
		}
		ttl = m.emptyTTL
	}
	m.store(ctx, k, obs, blobs, ttl)
	return blobs, nil
}

func (m *Memo) lookup(ctx context.Context, k string) ([]epochcache.BlobInfo, bool) {
	raw, ok, err := m.provider.Get(ctx, k)
	if err != nil {
		m.log.Warn("memo get failed", epochcache.Fields{"key": k, "err": err})
		return nil, false
	}
	if !ok {
		return nil, false
	}
	g, payload, err := wire.Decode(raw)
	if err != nil {
		m.selfHeal(ctx, k, "corrupt")
		return nil, false
	}
	if g != m.snapshotGen(ctx, k) {
		m.selfHeal(ctx, k, "gen_mismatch")
		return nil, false
	}
	blobs, err := m.codec.Decode(payload)
	if err != nil {
		m.selfHeal(ctx, k, "value_decode")
		return nil, false
	}
	return blobs, true
}

func (m *Memo) store(ctx context.Context, k string, obs uint64, blobs []epochcache.BlobInfo, ttl time.Duration) {
	if m.snapshotGen(ctx, k) != obs {
		// invalidated while the source call was in flight
		m.staleWrites.Add(1)
		m.log.Debug("memo write skipped (gen mismatch)", epochcache.Fields{"key": k, "obs": obs})
		return
	}
	payload, err := m.codec.Encode(blobs)
	if err != nil {
		m.log.Warn("memo encode failed", epochcache.Fields{"key": k, "err": err})
		return
	}
	b := wire.Encode(obs, payload)
	ok, err := m.provider.Set(ctx, k, b, int64(len(b)), ttl)
	if err != nil {
		m.log.Warn("memo set failed", epochcache.Fields{"key": k, "err": err})
		return
	}
	if !ok {
		m.log.Debug("memo set rejected by provider (pressure)", epochcache.Fields{"key": k})
		return
	}
	if f, ok := m.provider.(pr.Flusher); ok {
		f.Wait()
	}
}

func (m *Memo) selfHeal(ctx context.Context, k, reason string) {
	m.selfHeals.Add(1)
	_ = m.provider.Del(ctx, k)
	m.log.Debug("memo entry dropped", epochcache.Fields{"key": k, "reason": reason})
}

// Invalidate retires the memoized answer for epoch. The next EpochInfo for it
// reaches the wrapped source.
func (m *Memo) Invalidate(ctx context.Context, epoch uint64) error {
	k := util.EpochKey(m.ns, epoch)
	_, bumpErr := m.gen.Bump(ctx, k)
	delErr := m.provider.Del(ctx, k)
	if bumpErr != nil || delErr != nil {
		return &InvalidateError{Epoch: epoch, BumpErr: bumpErr, DelErr: delErr}
	}
	return nil
}

func (m *Memo) Stats() Stats {
	return Stats{
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		SelfHeals:   m.selfHeals.Load(),
		StaleWrites: m.staleWrites.Load(),
	}
}

// Close closes an owned generation store, then the provider.
func (m *Memo) Close(ctx context.Context) error {
	if m.ownsGen {
		_ = m.gen.Close(ctx)
	}
	return m.provider.Close(ctx)
}

func (m *Memo) snapshotGen(ctx context.Context, k string) uint64 {
	g, err := m.gen.Snapshot(ctx, k)
	if err != nil {
		// Conservative: 0 makes entries with a real generation self-heal.
		m.log.Warn("gen snapshot error", epochcache.Fields{"key": k, "err": err})
		return 0
	}
	return g
}

func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
