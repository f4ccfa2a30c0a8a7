package epochcache

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// fakeSource serves epochs from a map and records every call in order.
// latency, when set, advances the mock clock on each call.
type fakeSource struct {
	epochs  map[uint64][]BlobInfo
	fail    map[uint64]error
	calls   []uint64
	clk     *clock.Mock
	latency time.Duration
}

var _ Source = (*fakeSource)(nil)

func newFakeSource() *fakeSource {
	return &fakeSource{
		epochs: make(map[uint64][]BlobInfo),
		fail:   make(map[uint64]error),
	}
}

func (s *fakeSource) EpochInfo(_ context.Context, epoch uint64) ([]BlobInfo, error) {
	s.calls = append(s.calls, epoch)
	if s.clk != nil && s.latency > 0 {
		s.clk.Add(s.latency)
	}
	if err := s.fail[epoch]; err != nil {
		return nil, err
	}
	return s.epochs[epoch], nil
}

func blob(quorum uint64, root byte, idx ...uint32) BlobInfo {
	return BlobInfo{QuorumID: quorum, StorageRoot: [32]byte{root}, Indices: idx}
}

func newTestIndex(t *testing.T, optsOpt func(*Options)) *Index {
	t.Helper()
	var opts Options
	if optsOpt != nil {
		optsOpt(&opts)
	}
	return New(opts)
}

// ==============================
// Enqueue / drain
// ==============================

func TestNeedsFetchTracksPending(t *testing.T) {
	ix := newTestIndex(t, nil)
	if ix.NeedsFetch() {
		t.Fatalf("fresh index must not need fetch")
	}
	ix.Enqueue(7)
	if !ix.NeedsFetch() {
		t.Fatalf("NeedsFetch=false after Enqueue")
	}

	src := newFakeSource()
	if err := ix.FetchPending(context.Background(), src, time.Minute); err != nil {
		t.Fatalf("FetchPending: %v", err)
	}
	if ix.NeedsFetch() {
		t.Fatalf("NeedsFetch=true after full drain, pending=%v", ix.Pending())
	}
}

// Repeated enqueues produce one remote call and one cache entry.
func TestEnqueueIdempotent(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, nil)
	src := newFakeSource()
	src.epochs[4] = []BlobInfo{blob(1, 'a', 0, 1)}

	for i := 0; i < 5; i++ {
		ix.Enqueue(4)
	}
	if got := ix.Pending(); !slices.Equal(got, []uint64{4}) {
		t.Fatalf("pending=%v want [4]", got)
	}
	if err := ix.FetchPending(ctx, src, time.Minute); err != nil {
		t.Fatalf("FetchPending: %v", err)
	}
	if len(src.calls) != 1 || ix.Len() != 1 {
		t.Fatalf("calls=%v len=%d; want one call, one entry", src.calls, ix.Len())
	}

	// Re-enqueue a cached epoch: drained without a remote call, still one entry.
	ix.Enqueue(4)
	if err := ix.FetchPending(ctx, src, time.Minute); err != nil {
		t.Fatalf("FetchPending: %v", err)
	}
	if len(src.calls) != 1 || ix.Len() != 1 {
		t.Fatalf("cached epoch refetched: calls=%v len=%d", src.calls, ix.Len())
	}
	if ix.NeedsFetch() {
		t.Fatalf("cached epoch left pending")
	}
}

// Drain order is ascending regardless of enqueue order.
func TestDrainAscending(t *testing.T) {
	ix := newTestIndex(t, nil)
	src := newFakeSource()

	ix.EnqueueRange(slices.Values([]uint64{5, 1, 3}))
	if err := ix.FetchPending(context.Background(), src, time.Minute); err != nil {
		t.Fatalf("FetchPending: %v", err)
	}
	if want := []uint64{1, 3, 5}; !slices.Equal(src.calls, want) {
		t.Fatalf("calls=%v want %v", src.calls, want)
	}
}

func TestSpan(t *testing.T) {
	cases := []struct {
		from, to uint64
		want     []uint64
	}{
		{3, 6, []uint64{3, 4, 5, 6}},
		{9, 9, []uint64{9}},
		{6, 3, nil},
		{^uint64(0) - 1, ^uint64(0), []uint64{^uint64(0) - 1, ^uint64(0)}},
	}
	for _, tc := range cases {
		got := slices.Collect(Span(tc.from, tc.to))
		if !slices.Equal(got, tc.want) {
			t.Fatalf("Span(%d,%d)=%v want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

// Empty results are not cached and are fetched again on re-enqueue.
func TestEmptyEpochNotCached(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, nil)
	src := newFakeSource()

	ix.Enqueue(8)
	if err := ix.FetchPending(ctx, src, time.Minute); err != nil {
		t.Fatalf("FetchPending: %v", err)
	}
	if ix.NeedsFetch() {
		t.Fatalf("empty epoch still pending")
	}
	if ix.Has(8) || ix.Len() != 0 {
		t.Fatalf("empty epoch cached: has=%v len=%d", ix.Has(8), ix.Len())
	}

	ix.Enqueue(8)
	if err := ix.FetchPending(ctx, src, time.Minute); err != nil {
		t.Fatalf("FetchPending: %v", err)
	}
	if want := []uint64{8, 8}; !slices.Equal(src.calls, want) {
		t.Fatalf("calls=%v want %v", src.calls, want)
	}

	// Content appears later and is picked up.
	src.epochs[8] = []BlobInfo{blob(1, 'x', 2)}
	ix.Enqueue(8)
	if err := ix.FetchPending(ctx, src, time.Minute); err != nil {
		t.Fatalf("FetchPending: %v", err)
	}
	if !ix.Has(8) {
		t.Fatalf("epoch with content not cached")
	}
}

func TestFetchFailureKeepsProgress(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, nil)
	src := newFakeSource()
	src.epochs[1] = []BlobInfo{blob(1, 'a', 0)}
	src.epochs[3] = []BlobInfo{blob(1, 'c', 0)}
	boom := errors.New("node unreachable")
	src.fail[2] = boom

	ix.EnqueueRange(Span(1, 3))
	err := ix.FetchPending(ctx, src, time.Minute)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("want *FetchError, got %T %v", err, err)
	}
	if fe.Epoch != 2 || !errors.Is(err, boom) {
		t.Fatalf("FetchError=%+v; want epoch 2 wrapping boom", fe)
	}
	if !ix.Has(1) {
		t.Fatalf("epoch fetched before the failure was rolled back")
	}
	// Failed epoch is dropped from pending; later epochs stay queued.
	if got := ix.Pending(); !slices.Equal(got, []uint64{3}) {
		t.Fatalf("pending=%v want [3]", got)
	}
	if want := []uint64{1, 2}; !slices.Equal(src.calls, want) {
		t.Fatalf("calls=%v want %v", src.calls, want)
	}

	// Caller retries by re-enqueueing.
	delete(src.fail, 2)
	ix.Enqueue(2)
	if err := ix.FetchPending(ctx, src, time.Minute); err != nil {
		t.Fatalf("retry FetchPending: %v", err)
	}
	if ix.NeedsFetch() || !ix.Has(3) {
		t.Fatalf("retry did not finish drain: pending=%v", ix.Pending())
	}
}

// A drain returns within budget plus one in-flight call.
func TestFetchRespectsBudget(t *testing.T) {
	clk := clock.NewMock()
	ix := newTestIndex(t, func(o *Options) { o.Clock = clk })
	src := newFakeSource()
	src.clk = clk
	src.latency = 30 * time.Millisecond

	ix.EnqueueRange(Span(1, 100))

	const budget = 100 * time.Millisecond
	start := clk.Now()
	if err := ix.FetchPending(context.Background(), src, budget); err != nil {
		t.Fatalf("FetchPending: %v", err)
	}
	elapsed := clk.Now().Sub(start)

	if elapsed > budget+src.latency {
		t.Fatalf("elapsed=%v exceeds budget %v + latency %v", elapsed, budget, src.latency)
	}
	// 0,30,60,90 are before the deadline -> four calls.
	if len(src.calls) != 4 {
		t.Fatalf("calls=%d want 4 (%v)", len(src.calls), src.calls)
	}
	if !ix.NeedsFetch() {
		t.Fatalf("budget exhausted but nothing pending")
	}

	// Repeated small-budget calls still drain everything, in order.
	for i := 0; ix.NeedsFetch(); i++ {
		if i > 100 {
			t.Fatalf("drain made no progress; pending=%d", len(ix.Pending()))
		}
		if err := ix.FetchPending(context.Background(), src, time.Millisecond); err != nil {
			t.Fatalf("FetchPending: %v", err)
		}
	}
	if !slices.Equal(src.calls, slices.Collect(Span(1, 100))) {
		t.Fatalf("calls out of order or duplicated: %v", src.calls)
	}
}

func TestFetchZeroBudget(t *testing.T) {
	clk := clock.NewMock()
	ix := newTestIndex(t, func(o *Options) { o.Clock = clk })
	src := newFakeSource()

	ix.Enqueue(1)
	if err := ix.FetchPending(context.Background(), src, 0); err != nil {
		t.Fatalf("FetchPending: %v", err)
	}
	if len(src.calls) != 0 || !ix.NeedsFetch() {
		t.Fatalf("zero budget with frozen clock must not fetch: calls=%v", src.calls)
	}
}

// ==============================
// Insert / normalization
// ==============================

func TestInsertDedupAndAppendOnly(t *testing.T) {
	ix := newTestIndex(t, nil)

	ix.Insert(10, blob(1, 'r', 2, 0, 1, 1), blob(1, 'r', 0, 1, 2))
	info, ok := ix.Epoch(10)
	if !ok || info.Len() != 1 {
		t.Fatalf("dedup failed: ok=%v info=%v", ok, info)
	}
	if !slices.Equal(info[0].Indices, []uint32{0, 1, 2}) {
		t.Fatalf("indices not normalized: %v", info[0].Indices)
	}

	ix.Insert(10, blob(2, 'r', 5))
	ix.Insert(10) // no-op
	info, _ = ix.Epoch(10)
	if info.Len() != 2 || info.Slices() != 4 {
		t.Fatalf("append-only merge lost data: %v", info)
	}

	ix.Insert(11)
	if ix.Has(11) {
		t.Fatalf("empty insert created an entry")
	}
	if top, ok := ix.MaxEpoch(); !ok || top != 10 {
		t.Fatalf("MaxEpoch=%d,%v want 10,true", top, ok)
	}
}

func TestNewEpochInfoOrdering(t *testing.T) {
	in := []BlobInfo{
		blob(2, 'a', 1),
		blob(1, 'b', 1),
		blob(1, 'a', 3),
		blob(1, 'a', 1, 2),
		blob(1, 'a', 1),
	}
	got := NewEpochInfo(in...)
	want := EpochInfo{
		blob(1, 'a', 1),
		blob(1, 'a', 1, 2),
		blob(1, 'a', 3),
		blob(1, 'b', 1),
		blob(2, 'a', 1),
	}
	if len(got) != len(want) {
		t.Fatalf("len=%d want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("at %d: got %+v want %+v", i, got[i], want[i])
		}
	}
	// input untouched
	if in[0].QuorumID != 2 {
		t.Fatalf("input reordered")
	}
}

// ==============================
// Hooks
// ==============================

type recHooks struct {
	NopHooks
	fetched, empty, skipped, failed []uint64
	exhausted                       []int
	scans                           int
}

func (h *recHooks) EpochFetched(e uint64, _ int, _ time.Duration) { h.fetched = append(h.fetched, e) }
func (h *recHooks) EpochEmpty(e uint64, _ time.Duration)          { h.empty = append(h.empty, e) }
func (h *recHooks) EpochSkipped(e uint64)                         { h.skipped = append(h.skipped, e) }
func (h *recHooks) FetchFailed(e uint64, _ error)                 { h.failed = append(h.failed, e) }
func (h *recHooks) BudgetExhausted(n int)                         { h.exhausted = append(h.exhausted, n) }
func (h *recHooks) ScanCompleted(uint64, int, int)                { h.scans++ }

func TestHooksObserveDrain(t *testing.T) {
	h := &recHooks{}
	ix := newTestIndex(t, func(o *Options) { o.Hooks = h })
	src := newFakeSource()
	src.epochs[1] = []BlobInfo{blob(1, 'a', 0)}
	src.fail[4] = errors.New("x")

	ix.Insert(3, blob(1, 'c', 0))
	ix.EnqueueRange(Span(1, 4))
	_ = ix.FetchPending(context.Background(), src, time.Minute)

	if !slices.Equal(h.fetched, []uint64{1}) ||
		!slices.Equal(h.empty, []uint64{2}) ||
		!slices.Equal(h.skipped, []uint64{3}) ||
		!slices.Equal(h.failed, []uint64{4}) {
		t.Fatalf("hooks=%+v", h)
	}
}
