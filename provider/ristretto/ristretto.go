package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/epochcache/provider"
)

// Provider keeps memoized epoch payloads in process.
//
// Writes are buffered by Ristretto. source/memo calls Wait (Flusher) after
// each stored epoch, so a read of that epoch right after hits.
type Provider struct {
	c        *rc.Cache
	maxBytes int64
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Flusher  = (*Provider)(nil)
)

type Config struct {
	Epochs   int64 // expected number of memoized epochs; sizes the admission counters
	MaxBytes int64 // total payload bytes
	Metrics  bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.Epochs <= 0 || cfg.MaxBytes <= 0 {
		return nil, errors.New("ristretto: Epochs and MaxBytes must be positive")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.Epochs * 10,
		MaxCost:     cfg.MaxBytes,
		BufferItems: 64,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, maxBytes: cfg.MaxBytes}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set charges len(value) when cost <= 0. A payload larger than the whole
// cache is refused up front with ok=false instead of being dropped silently
// by the admission policy.
func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if cost <= 0 {
		cost = int64(len(value))
	}
	if cost > p.maxBytes {
		return false, nil
	}
	if ttl < 0 {
		ttl = 0
	}
	return p.c.SetWithTTL(key, value, cost, ttl), nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

// Wait blocks until buffered writes are applied.
func (p *Provider) Wait() { p.c.Wait() }

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// HitRatio reports Ristretto's hit ratio; 0 unless Config.Metrics is set.
func (p *Provider) HitRatio() float64 {
	if p.c.Metrics == nil {
		return 0
	}
	return p.c.Metrics.Ratio()
}
