// Package config loads epochscan settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Redis   RedisConfig   `yaml:"redis"`
	Memo    MemoConfig    `yaml:"memo"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	Namespace  string `yaml:"namespace"`
	Codec      string `yaml:"codec"` // cbor | json | msgpack
	MaxPayload int    `yaml:"max_payload"`
}

type MemoConfig struct {
	// Provider: "" disables the memo; ristretto | bigcache | redis.
	Provider   string        `yaml:"provider"`
	TTL        time.Duration `yaml:"ttl"`
	CacheEmpty bool          `yaml:"cache_empty"`
	EmptyTTL   time.Duration `yaml:"empty_ttl"`
	MaxBytes   int64         `yaml:"max_bytes"`
}

type SessionConfig struct {
	StartEpoch  uint64        `yaml:"start_epoch"`
	BatchSize   int           `yaml:"batch_size"`
	FetchBudget time.Duration `yaml:"fetch_budget"`
	Interval    time.Duration `yaml:"interval"`
	// EnqueueWindow bounds epochs queued per catch-up chunk; 0 => batch_size*64.
	EnqueueWindow int `yaml:"enqueue_window"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the /metrics listener
}

func Default() Config {
	return Config{
		Redis: RedisConfig{
			Addr:       "127.0.0.1:6379",
			Namespace:  "mainnet",
			Codec:      "cbor",
			MaxPayload: 4 << 20,
		},
		Memo: MemoConfig{
			TTL:      10 * time.Minute,
			EmptyTTL: 30 * time.Second,
			MaxBytes: 64 << 20,
		},
		Session: SessionConfig{
			BatchSize:   16,
			FetchBudget: 200 * time.Millisecond,
			Interval:    time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults (an empty path skips the file) and then
// applies EPOCHSCAN_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	cfg.Redis.Addr = getenvDefault("EPOCHSCAN_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getenvDefault("EPOCHSCAN_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.Namespace = getenvDefault("EPOCHSCAN_NAMESPACE", cfg.Redis.Namespace)
	cfg.Log.Level = getenvDefault("EPOCHSCAN_LOG_LEVEL", cfg.Log.Level)
	cfg.Metrics.Addr = getenvDefault("EPOCHSCAN_METRICS_ADDR", cfg.Metrics.Addr)

	if v := os.Getenv("EPOCHSCAN_START_EPOCH"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: EPOCHSCAN_START_EPOCH: %w", err)
		}
		cfg.Session.StartEpoch = n
	}
	if v := os.Getenv("EPOCHSCAN_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: EPOCHSCAN_REDIS_DB: %w", err)
		}
		cfg.Redis.DB = n
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	if c.Redis.Namespace == "" {
		errs = append(errs, errors.New("redis.namespace is required"))
	}
	switch c.Redis.Codec {
	case "", "cbor", "json", "msgpack":
	default:
		errs = append(errs, fmt.Errorf("redis.codec %q is not one of cbor, json, msgpack", c.Redis.Codec))
	}
	switch c.Memo.Provider {
	case "", "ristretto", "bigcache", "redis":
	default:
		errs = append(errs, fmt.Errorf("memo.provider %q is not one of ristretto, bigcache, redis", c.Memo.Provider))
	}
	if c.Memo.Provider != "" && c.Memo.MaxBytes <= 0 {
		errs = append(errs, errors.New("memo.max_bytes must be positive"))
	}
	if c.Session.BatchSize <= 0 {
		errs = append(errs, errors.New("session.batch_size must be positive"))
	}
	if c.Session.FetchBudget <= 0 {
		errs = append(errs, errors.New("session.fetch_budget must be positive"))
	}
	if c.Session.EnqueueWindow < 0 {
		errs = append(errs, errors.New("session.enqueue_window must not be negative"))
	}
	if c.Session.Interval <= 0 {
		errs = append(errs, errors.New("session.interval must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
