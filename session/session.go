// Package session drives an epochcache.Index the way a miner does: follow the
// published tip, drain new epochs under a time budget, and scan forward for
// candidates of the current sampling task.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/unkn0wn-root/epochcache"
)

const (
	defaultBatchSize   = 16
	defaultFetchBudget = 200 * time.Millisecond
	windowFactor       = 64
)

// TipSource reports the highest epoch published so far. ok=false means
// nothing has been published yet.
type TipSource interface {
	Tip(ctx context.Context) (tip uint64, ok bool, err error)
}

// TaskSource returns the sampling task to mine against right now.
type TaskSource interface {
	Task(ctx context.Context) (epochcache.SampleTask, error)
}

// Sink receives the candidates of one scan. It is not called for empty scans.
type Sink interface {
	Emit(ctx context.Context, cands []epochcache.LineCandidate) error
}

type Config struct {
	// Required
	Index  *epochcache.Index
	Source epochcache.Source
	Tips   TipSource
	Tasks  TaskSource
	Sink   Sink

	StartEpoch  uint64        // first epoch tracked and the scan wrap point
	BatchSize   int           // epochs per scan; 0 => 16
	FetchBudget time.Duration // per-step drain budget; 0 => 200ms
	// EnqueueWindow caps how many epochs are queued at once while catching
	// up to the tip. The next window is queued once the pending set drains.
	// 0 => BatchSize*64.
	EnqueueWindow int
	Clock       clock.Clock   // nil => real clock
	Logger      epochcache.Logger
}

// Result summarizes one Step.
type Result struct {
	Tip        uint64
	Pending    int
	Visited    bool
	Cursor     uint64
	Candidates int
}

// Runner is single-goroutine, like the Index it owns.
type Runner struct {
	ix     *epochcache.Index
	src    epochcache.Source
	tips   TipSource
	tasks  TaskSource
	sink   Sink
	start  uint64
	batch  int
	budget time.Duration
	window uint64
	clock  clock.Clock
	log    epochcache.Logger

	next    uint64 // first epoch not yet enqueued
	done    bool   // math.MaxUint64 has been enqueued
	haveTip bool
	tip     uint64
	cursor  uint64

	// Scan pass state. A pass runs from start up to the newest cached epoch;
	// it only restarts when the task changes, so a static task never sees
	// the same epoch twice.
	passTask  [32]byte
	passBegun bool
	passStale bool // task changed mid-pass
	atEnd     bool // math.MaxUint64 scanned; the cursor cannot advance
}

func New(cfg Config) (*Runner, error) {
	switch {
	case cfg.Index == nil:
		return nil, errors.New("session: index is required")
	case cfg.Source == nil:
		return nil, errors.New("session: source is required")
	case cfg.Tips == nil:
		return nil, errors.New("session: tip source is required")
	case cfg.Tasks == nil:
		return nil, errors.New("session: task source is required")
	case cfg.Sink == nil:
		return nil, errors.New("session: sink is required")
	}
	r := &Runner{
		ix:     cfg.Index,
		src:    cfg.Source,
		tips:   cfg.Tips,
		tasks:  cfg.Tasks,
		sink:   cfg.Sink,
		start:  cfg.StartEpoch,
		next:   cfg.StartEpoch,
		cursor: cfg.StartEpoch,
		batch:  cfg.BatchSize,
		budget: cfg.FetchBudget,
		clock:  cfg.Clock,
		log:    cfg.Logger,
	}
	if r.batch <= 0 {
		r.batch = defaultBatchSize
	}
	if r.budget <= 0 {
		r.budget = defaultFetchBudget
	}
	if cfg.EnqueueWindow > 0 {
		r.window = uint64(cfg.EnqueueWindow)
	} else {
		r.window = uint64(r.batch) * windowFactor
	}
	if r.clock == nil {
		r.clock = clock.New()
	}
	if r.log == nil {
		r.log = epochcache.NopLogger{}
	}
	return r, nil
}

// Cursor is the epoch the next scan starts from.
func (r *Runner) Cursor() uint64 { return r.cursor }

// Step runs one tip/fetch/scan round.
//
// A fetch failure re-queues the failed epoch and is returned after the scan,
// so cached epochs keep being mined while the source is down. Tip, task and
// sink errors abort the step.
//
// Once the cursor passes the newest cached epoch it waits there for new
// epochs. It goes back to StartEpoch only when the task hash differs from
// the one the finished pass was scanned with.
func (r *Runner) Step(ctx context.Context) (Result, error) {
	if err := r.followTip(ctx); err != nil {
		return Result{}, err
	}

	var fetchErr error
	if r.ix.NeedsFetch() {
		fetchErr = r.ix.FetchPending(ctx, r.src, r.budget)
		var fe *epochcache.FetchError
		if errors.As(fetchErr, &fe) {
			r.ix.Enqueue(fe.Epoch)
		}
	}

	task, err := r.tasks.Task(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("session: task: %w", err)
	}

	res := Result{Tip: r.tip}
	var (
		cands []epochcache.LineCandidate
		last  uint64
		ok    bool
	)
	if !r.atEnd {
		cands, last, ok = r.ix.Scan(r.cursor, r.batch, task)
	}
	if ok {
		res.Visited = true
		res.Candidates = len(cands)
		if len(cands) > 0 {
			if err := r.sink.Emit(ctx, cands); err != nil {
				return Result{}, fmt.Errorf("session: emit: %w", err)
			}
		}
		switch {
		case !r.passBegun:
			r.passTask, r.passBegun = task.Hash, true
		case task.Hash != r.passTask:
			r.passStale = true
		}
		if last == math.MaxUint64 {
			r.atEnd = true
		} else {
			r.cursor = last + 1
		}
	} else if r.passBegun && (r.passStale || task.Hash != r.passTask) {
		r.log.Debug("task changed, scan wrapped", epochcache.Fields{"from": r.cursor, "to": r.start})
		r.cursor = r.start
		r.passBegun, r.passStale, r.atEnd = false, false, false
	}

	res.Cursor = r.cursor
	res.Pending = len(r.ix.Pending())
	return res, fetchErr
}

func (r *Runner) followTip(ctx context.Context) error {
	tip, ok, err := r.tips.Tip(ctx)
	if err != nil {
		return fmt.Errorf("session: tip: %w", err)
	}
	if !ok {
		return nil
	}
	if !r.haveTip || tip > r.tip {
		r.tip, r.haveTip = tip, true
	}
	// One window at a time: the next is queued after the last one drained.
	if r.done || r.tip < r.next || r.ix.NeedsFetch() {
		return nil
	}
	end := r.tip
	if end-r.next >= r.window {
		end = r.next + r.window - 1
	}
	r.ix.EnqueueRange(epochcache.Span(r.next, end))
	r.log.Debug("epochs enqueued", epochcache.Fields{"from": r.next, "to": end, "tip": r.tip})
	if end == math.MaxUint64 {
		r.done = true
	} else {
		r.next = end + 1
	}
	return nil
}

// Run steps every interval until ctx is done. Step errors are logged and the
// loop continues; only ctx ends it.
func (r *Runner) Run(ctx context.Context, every time.Duration) error {
	t := r.clock.Ticker(every)
	defer t.Stop()
	for {
		res, err := r.Step(ctx)
		if err != nil {
			r.log.Warn("session step failed", epochcache.Fields{"err": err})
		} else if res.Candidates > 0 {
			r.log.Info("candidates emitted", epochcache.Fields{"count": res.Candidates, "cursor": res.Cursor})
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
