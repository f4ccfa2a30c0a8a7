// Package sloghooks logs epochcache.Hooks events through log/slog.
package sloghooks

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/epochcache"
)

type Options struct {
	// Sampling to avoid floods on large backfills; 0/1 = log all.
	FetchedEvery uint64
	SkippedEvery uint64
	EmptyEvery   uint64
	// Scans visiting nothing useful are logged at debug only.
	QuietScans bool
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	fetchedCtr atomic.Uint64
	skippedCtr atomic.Uint64
	emptyCtr   atomic.Uint64
}

var _ epochcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) EpochFetched(epoch uint64, blobs int, took time.Duration) {
	if h.l == nil || !sample(h.opts.FetchedEvery, &h.fetchedCtr) {
		return
	}
	h.l.Debug("epochcache.epoch_fetched",
		"epoch", epoch,
		"blobs", blobs,
		"took", took)
}

func (h *Hooks) EpochEmpty(epoch uint64, took time.Duration) {
	if h.l == nil || !sample(h.opts.EmptyEvery, &h.emptyCtr) {
		return
	}
	h.l.Debug("epochcache.epoch_empty",
		"epoch", epoch,
		"took", took)
}

func (h *Hooks) EpochSkipped(epoch uint64) {
	if h.l == nil || !sample(h.opts.SkippedEvery, &h.skippedCtr) {
		return
	}
	h.l.Debug("epochcache.epoch_skipped", "epoch", epoch)
}

func (h *Hooks) FetchFailed(epoch uint64, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("epochcache.fetch_failed",
		"epoch", epoch,
		"err", err)
}

func (h *Hooks) BudgetExhausted(pending int) {
	if h.l == nil {
		return
	}
	h.l.Info("epochcache.budget_exhausted", "pending", pending)
}

func (h *Hooks) ScanCompleted(start uint64, visited, candidates int) {
	if h.l == nil {
		return
	}
	level := slog.LevelInfo
	if h.opts.QuietScans && candidates == 0 {
		level = slog.LevelDebug
	}
	h.l.Log(context.Background(), level, "epochcache.scan_completed",
		"start", start,
		"visited", visited,
		"candidates", candidates)
}
