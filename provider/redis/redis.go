package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/epochcache/provider"
)

const defaultPrefix = "memo:"

var ErrNilClient = errors.New("redis provider: nil client")

// Redis shares memoized epoch payloads across miner processes.
//
// Keys are stored under Prefix, so a memo sharing a database with
// source/redis never writes into the published "epoch:<ns>:" keyspace.
type Redis struct {
	rdb         goredis.UniversalClient
	prefix      string
	maxEntry    int
	closeClient bool
}

var _ pr.Provider = (*Redis)(nil)

type Config struct {
	Client goredis.UniversalClient
	// Prefix is prepended to every key; "" => "memo:".
	Prefix string
	// MaxEntryBytes rejects larger values with ok=false; 0 => no limit.
	MaxEntryBytes int
	// CloseClient hands the client to the provider. Leave false when the
	// client is shared with source/redis or genstore.
	CloseClient bool
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Redis{
		rdb:         cfg.Client,
		prefix:      prefix,
		maxEntry:    cfg.MaxEntryBytes,
		closeClient: cfg.CloseClient,
	}, nil
}

func (p *Redis) key(k string) string { return p.prefix + k }

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, p.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set ignores cost; size is bounded by MaxEntryBytes instead. ttl <= 0 stores
// without expiry.
func (p *Redis) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if p.maxEntry > 0 && len(value) > p.maxEntry {
		return false, nil
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := p.rdb.Set(ctx, p.key(key), value, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, p.key(key)).Err()
}

// Close releases the client only when CloseClient was set. Safe to call
// multiple times.
func (p *Redis) Close(context.Context) error {
	if !p.closeClient {
		return nil
	}
	if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}
