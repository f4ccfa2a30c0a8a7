package main

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/epochcache"
	"github.com/unkn0wn-root/epochcache/codec"
	"github.com/unkn0wn-root/epochcache/config"
	zaplog "github.com/unkn0wn-root/epochcache/log/zap"
)

type app struct {
	cfgFile string
	cfg     config.Config
	log     *zap.Logger
	rdb     goredis.UniversalClient
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "epochscan",
		Short: "Epoch-indexed blob cache and mining candidate scanner",
		Long: `epochscan follows epoch payloads published to Redis, keeps them in an
ordered in-memory index and scans it for slices whose quality meets the
current sampling target.

Configuration is read from --config (YAML) and EPOCHSCAN_* environment
variables, e.g. EPOCHSCAN_REDIS_ADDR=10.0.0.5:6379.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML)")

	root.AddCommand(newScanCmd(a))
	root.AddCommand(newPublishCmd(a))
	root.AddCommand(newListCmd(a))
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	zcfg := zap.NewProductionConfig()
	if cfg.Log.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zcfg.Level = lvl
	if a.log, err = zcfg.Build(); err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	a.rdb = goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
	}
	return nil
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func (a *app) logger() epochcache.Logger { return zaplog.New(a.log) }

func (a *app) codec() (codec.Codec[[]epochcache.BlobInfo], error) {
	return codec.ByName[[]epochcache.BlobInfo](a.cfg.Redis.Codec)
}
