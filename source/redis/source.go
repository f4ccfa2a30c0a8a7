// Package redis reads and publishes epoch payloads stored in Redis.
//
// Layout (ns = namespace):
//
//	epoch:<ns>:<020d epoch> - encoded []epochcache.BlobInfo
//	epoch:<ns>:tip          - highest published epoch, zero-padded to 20 digits
//
// A missing epoch key is a valid empty answer: nothing has been stored yet.
package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/epochcache"
	"github.com/unkn0wn-root/epochcache/codec"
	"github.com/unkn0wn-root/epochcache/internal/util"
)

var (
	ErrNilClient      = errors.New("redis source: nil client")
	ErrEmptyNamespace = errors.New("redis source: namespace is required")
)

type Config struct {
	Client    goredis.UniversalClient
	Namespace string
	// Codec for epoch payloads; nil => deterministic CBOR.
	Codec codec.Codec[[]epochcache.BlobInfo]
	// MaxPayload caps decoded payload size in bytes; 0 => unlimited.
	MaxPayload int
}

// Source implements epochcache.Source over Redis.
type Source struct {
	rdb   goredis.UniversalClient
	ns    string
	codec codec.Codec[[]epochcache.BlobInfo]
}

var _ epochcache.Source = (*Source)(nil)

func New(cfg Config) (*Source, error) {
	rdb, ns, c, err := resolve(cfg)
	if err != nil {
		return nil, err
	}
	return &Source{rdb: rdb, ns: ns, codec: c}, nil
}

func resolve(cfg Config) (goredis.UniversalClient, string, codec.Codec[[]epochcache.BlobInfo], error) {
	if cfg.Client == nil {
		return nil, "", nil, ErrNilClient
	}
	if cfg.Namespace == "" {
		return nil, "", nil, ErrEmptyNamespace
	}
	c := cfg.Codec
	if c == nil {
		cb, err := codec.NewCBOR[[]epochcache.BlobInfo](true)
		if err != nil {
			return nil, "", nil, err
		}
		c = cb
	}
	if cfg.MaxPayload > 0 {
		c = codec.Limit[[]epochcache.BlobInfo]{Inner: c, MaxDecode: cfg.MaxPayload}
	}
	return cfg.Client, cfg.Namespace, c, nil
}

func (s *Source) EpochInfo(ctx context.Context, epoch uint64) ([]epochcache.BlobInfo, error) {
	b, err := s.rdb.Get(ctx, util.EpochKey(s.ns, epoch)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	blobs, err := s.codec.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("redis source: decode epoch %d: %w", epoch, err)
	}
	return blobs, nil
}

// Published lists the epochs that have a stored payload, ascending.
// Epochs published empty have no payload and are not listed.
func (s *Source) Published(ctx context.Context) ([]uint64, error) {
	var out []uint64
	iter := s.rdb.Scan(ctx, 0, util.EpochPattern(s.ns), 512).Iterator()
	for iter.Next(ctx) {
		if e, ok := util.ParseEpochKey(s.ns, iter.Val()); ok {
			out = append(out, e)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis source: scan epochs: %w", err)
	}
	slices.Sort(out)
	return out, nil
}

// Tip returns the highest published epoch. ok is false when nothing was published.
func (s *Source) Tip(ctx context.Context) (tip uint64, ok bool, err error) {
	return readTip(ctx, s.rdb, s.ns)
}

func readTip(ctx context.Context, rdb goredis.UniversalClient, ns string) (uint64, bool, error) {
	res, err := rdb.Get(ctx, util.TipKey(ns)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	tip, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis source: parse tip %q: %w", res, err)
	}
	return tip, true, nil
}
