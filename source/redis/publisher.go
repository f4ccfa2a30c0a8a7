package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/epochcache"
	"github.com/unkn0wn-root/epochcache/codec"
	"github.com/unkn0wn-root/epochcache/internal/util"
)

// raiseTip sets KEYS[1] to ARGV[1] only if it is higher. Both are zero-padded
// to the same width, so string order is numeric order and no precision is
// lost to Lua numbers.
var raiseTip = goredis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if (not cur) or ARGV[1] > cur then
  redis.call('SET', KEYS[1], ARGV[1])
  return 1
end
return 0
`)

// Publisher writes epoch payloads in the layout Source reads.
type Publisher struct {
	rdb   goredis.UniversalClient
	ns    string
	codec codec.Codec[[]epochcache.BlobInfo]
}

func NewPublisher(cfg Config) (*Publisher, error) {
	rdb, ns, c, err := resolve(cfg)
	if err != nil {
		return nil, err
	}
	return &Publisher{rdb: rdb, ns: ns, codec: c}, nil
}

// Publish stores the normalized blob set for epoch and raises the tip.
// An empty set still raises the tip but stores no payload.
func (p *Publisher) Publish(ctx context.Context, epoch uint64, blobs []epochcache.BlobInfo) error {
	info := epochcache.NewEpochInfo(blobs...)
	if len(info) > 0 {
		b, err := p.codec.Encode([]epochcache.BlobInfo(info))
		if err != nil {
			return fmt.Errorf("redis publisher: encode epoch %d: %w", epoch, err)
		}
		if err := p.rdb.Set(ctx, util.EpochKey(p.ns, epoch), b, 0).Err(); err != nil {
			return fmt.Errorf("redis publisher: store epoch %d: %w", epoch, err)
		}
	}
	tip := fmt.Sprintf("%020d", epoch)
	if err := raiseTip.Run(ctx, p.rdb, []string{util.TipKey(p.ns)}, tip).Err(); err != nil {
		return fmt.Errorf("redis publisher: raise tip to %d: %w", epoch, err)
	}
	return nil
}

// Tip returns the highest published epoch.
func (p *Publisher) Tip(ctx context.Context) (uint64, bool, error) {
	return readTip(ctx, p.rdb, p.ns)
}
