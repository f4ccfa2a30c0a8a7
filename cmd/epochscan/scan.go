package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/epochcache"
	"github.com/unkn0wn-root/epochcache/genstore"
	"github.com/unkn0wn-root/epochcache/metrics"
	pr "github.com/unkn0wn-root/epochcache/provider"
	bigcacheprovider "github.com/unkn0wn-root/epochcache/provider/bigcache"
	redisprovider "github.com/unkn0wn-root/epochcache/provider/redis"
	ristrettoprovider "github.com/unkn0wn-root/epochcache/provider/ristretto"
	"github.com/unkn0wn-root/epochcache/quality"
	"github.com/unkn0wn-root/epochcache/session"
	"github.com/unkn0wn-root/epochcache/source/memo"
	redissrc "github.com/unkn0wn-root/epochcache/source/redis"
)

func newScanCmd(a *app) *cobra.Command {
	var (
		taskHash string
		target   string
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Follow the published tip and print mining candidates as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			task, err := parseTask(taskHash, target)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.scan(ctx, task, once, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&taskHash, "task", "", "sampling task hash (32 bytes hex)")
	cmd.Flags().StringVar(&target, "target", "max", `quality target: decimal, 0x-hex or "max"`)
	cmd.Flags().BoolVar(&once, "once", false, "run a single step and exit")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func (a *app) scan(ctx context.Context, task epochcache.SampleTask, once bool, out io.Writer) error {
	log := a.logger()
	c, err := a.codec()
	if err != nil {
		return err
	}
	remote, err := redissrc.New(redissrc.Config{
		Client:     a.rdb,
		Namespace:  a.cfg.Redis.Namespace,
		Codec:      c,
		MaxPayload: a.cfg.Redis.MaxPayload,
	})
	if err != nil {
		return err
	}

	var src epochcache.Source = remote
	if a.cfg.Memo.Provider != "" {
		m, err := a.newMemo(ctx, remote, log)
		if err != nil {
			return err
		}
		defer m.Close(context.Background())
		src = m
	}

	reg := prometheus.NewRegistry()
	hooks := metrics.New(reg)
	if addr := a.cfg.Metrics.Addr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics listener stopped", epochcache.Fields{"addr": addr, "err": err})
			}
		}()
		defer srv.Close()
	}

	r, err := session.New(session.Config{
		Index:       epochcache.New(epochcache.Options{Logger: log, Hooks: hooks}),
		Source:      src,
		Tips:        remote,
		Tasks:       staticTask(task),
		Sink:        jsonSink{enc: json.NewEncoder(out)},
		StartEpoch:  a.cfg.Session.StartEpoch,
		BatchSize:   a.cfg.Session.BatchSize,
		FetchBudget: a.cfg.Session.FetchBudget,
		Logger:      log,

		EnqueueWindow: a.cfg.Session.EnqueueWindow,
	})
	if err != nil {
		return err
	}

	if once {
		_, err := r.Step(ctx)
		return err
	}
	if err := r.Run(ctx, a.cfg.Session.Interval); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *app) newMemo(ctx context.Context, inner epochcache.Source, log epochcache.Logger) (*memo.Memo, error) {
	mc := a.cfg.Memo
	var (
		p   pr.Provider
		gs  genstore.GenStore
		err error
	)
	switch mc.Provider {
	case "ristretto":
		p, err = ristrettoprovider.New(ristrettoprovider.Config{
			Epochs:   10_000,
			MaxBytes: mc.MaxBytes,
		})
	case "bigcache":
		p, err = bigcacheprovider.New(ctx, bigcacheprovider.Config{
			LifeWindow:         mc.TTL,
			HardMaxCacheSizeMB: int(mc.MaxBytes >> 20),
		})
	case "redis":
		// Shared memo: generations must be shared too.
		p, err = redisprovider.New(redisprovider.Config{
			Client:        a.rdb,
			Prefix:        "memo:",
			MaxEntryBytes: a.cfg.Redis.MaxPayload,
		})
		gs = genstore.NewRedisGenStoreWithTTL(a.rdb, a.cfg.Redis.Namespace, 24*time.Hour)
	default:
		return nil, fmt.Errorf("unknown memo provider %q", mc.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("memo provider %s: %w", mc.Provider, err)
	}
	return memo.New(memo.Options{
		Namespace:  a.cfg.Redis.Namespace + ":memo",
		Source:     inner,
		Provider:   p,
		GenStore:   gs,
		TTL:        mc.TTL,
		CacheEmpty: mc.CacheEmpty,
		EmptyTTL:   mc.EmptyTTL,
		Logger:     log,
	})
}

type staticTask epochcache.SampleTask

func (t staticTask) Task(context.Context) (epochcache.SampleTask, error) {
	return epochcache.SampleTask(t), nil
}

func parseTask(hash, target string) (epochcache.SampleTask, error) {
	var task epochcache.SampleTask
	h, err := parseHash(hash)
	if err != nil {
		return task, fmt.Errorf("task hash: %w", err)
	}
	task.Hash = h

	switch target {
	case "max":
		task.Quality = quality.Max()
	default:
		q, err := uint256.FromDecimal(target)
		if err != nil {
			if q, err = uint256.FromHex(target); err != nil {
				return task, fmt.Errorf("target %q: %w", target, err)
			}
		}
		task.Quality = *q
	}
	return task, nil
}

// candidateLine is one JSON line of scan output.
type candidateLine struct {
	Epoch       uint64 `json:"epoch"`
	QuorumID    uint64 `json:"quorum_id"`
	StorageRoot string `json:"storage_root"`
	Index       uint64 `json:"index"`
	Quality     string `json:"quality"`
}

type jsonSink struct{ enc *json.Encoder }

func (s jsonSink) Emit(_ context.Context, cands []epochcache.LineCandidate) error {
	for _, c := range cands {
		line := candidateLine{
			Epoch:       c.Slice.Epoch,
			QuorumID:    c.Slice.QuorumID,
			StorageRoot: "0x" + hex.EncodeToString(c.Slice.StorageRoot[:]),
			Index:       c.Slice.Index,
			Quality:     c.Quality.Hex(),
		}
		if err := s.enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}
