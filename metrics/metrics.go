// Package metrics exports epochcache.Hooks events as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/epochcache"
)

const namespace = "epochcache"

// Hooks implements epochcache.Hooks. All methods are nil-safe.
type Hooks struct {
	// EpochsTotal counts drained epochs by outcome.
	// Label values: "cached", "empty", "skipped", "failed".
	EpochsTotal *prometheus.CounterVec

	// FetchSeconds observes source latency for epochs that returned.
	FetchSeconds prometheus.Histogram

	// BlobsCached counts distinct blobs added by fetches.
	BlobsCached prometheus.Counter

	// BudgetExhaustedTotal counts drains that stopped on their deadline.
	BudgetExhaustedTotal prometheus.Counter

	// PendingEpochs is the pending count left by the last exhausted drain.
	PendingEpochs prometheus.Gauge

	// ScansTotal and ScanCandidatesTotal track Scan calls and their output.
	ScansTotal          prometheus.Counter
	ScanEpochsTotal     prometheus.Counter
	ScanCandidatesTotal prometheus.Counter
}

var _ epochcache.Hooks = (*Hooks)(nil)

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered. Registering twice on the same registry reuses the
// collectors already there.
func New(reg prometheus.Registerer) *Hooks {
	h := &Hooks{
		EpochsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "epochs_total",
			Help:      "Pending epochs drained, by outcome",
		}, []string{"outcome"}),
		FetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Latency of a single epoch lookup against the source",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		BlobsCached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "blobs_cached_total",
			Help:      "Distinct blobs cached by fetched epochs",
		}),
		BudgetExhaustedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "budget_exhausted_total",
			Help:      "Drains that hit their deadline with epochs still pending",
		}),
		PendingEpochs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "pending_epochs",
			Help:      "Epochs left pending by the last exhausted drain",
		}),
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "total",
			Help:      "Completed scans",
		}),
		ScanEpochsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "epochs_total",
			Help:      "Cached epochs visited by scans",
		}),
		ScanCandidatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "candidates_total",
			Help:      "Slices emitted as mining candidates",
		}),
	}

	if reg != nil {
		h.EpochsTotal = registerOrReuse(reg, h.EpochsTotal).(*prometheus.CounterVec)
		h.FetchSeconds = registerOrReuse(reg, h.FetchSeconds).(prometheus.Histogram)
		h.BlobsCached = registerOrReuse(reg, h.BlobsCached).(prometheus.Counter)
		h.BudgetExhaustedTotal = registerOrReuse(reg, h.BudgetExhaustedTotal).(prometheus.Counter)
		h.PendingEpochs = registerOrReuse(reg, h.PendingEpochs).(prometheus.Gauge)
		h.ScansTotal = registerOrReuse(reg, h.ScansTotal).(prometheus.Counter)
		h.ScanEpochsTotal = registerOrReuse(reg, h.ScanEpochsTotal).(prometheus.Counter)
		h.ScanCandidatesTotal = registerOrReuse(reg, h.ScanCandidatesTotal).(prometheus.Counter)
	}
	return h
}

// registerOrReuse panics on failures other than AlreadyRegisteredError.
func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

func (h *Hooks) EpochFetched(_ uint64, blobs int, took time.Duration) {
	if h == nil {
		return
	}
	h.EpochsTotal.WithLabelValues("cached").Inc()
	h.FetchSeconds.Observe(took.Seconds())
	h.BlobsCached.Add(float64(blobs))
}

func (h *Hooks) EpochEmpty(_ uint64, took time.Duration) {
	if h == nil {
		return
	}
	h.EpochsTotal.WithLabelValues("empty").Inc()
	h.FetchSeconds.Observe(took.Seconds())
}

func (h *Hooks) EpochSkipped(uint64) {
	if h == nil {
		return
	}
	h.EpochsTotal.WithLabelValues("skipped").Inc()
}

func (h *Hooks) FetchFailed(uint64, error) {
	if h == nil {
		return
	}
	h.EpochsTotal.WithLabelValues("failed").Inc()
}

func (h *Hooks) BudgetExhausted(pending int) {
	if h == nil {
		return
	}
	h.BudgetExhaustedTotal.Inc()
	h.PendingEpochs.Set(float64(pending))
}

func (h *Hooks) ScanCompleted(_ uint64, visited, candidates int) {
	if h == nil {
		return
	}
	h.ScansTotal.Inc()
	h.ScanEpochsTotal.Add(float64(visited))
	h.ScanCandidatesTotal.Add(float64(candidates))
}
