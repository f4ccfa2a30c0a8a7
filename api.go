package epochcache

import (
	"context"
	"iter"

	"github.com/benbjohnson/clock"

	"github.com/unkn0wn-root/epochcache/quality"
)

// Source retrieves the blobs stored in one epoch.
// It must be idempotent per epoch. An empty result with a nil error is a valid
// response meaning "no blobs exist yet for this epoch".
type Source interface {
	EpochInfo(ctx context.Context, epoch uint64) ([]BlobInfo, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context, epoch uint64) ([]BlobInfo, error)

func (f SourceFunc) EpochInfo(ctx context.Context, epoch uint64) ([]BlobInfo, error) {
	return f(ctx, epoch)
}

// Options tune the index. All fields are optional.
type Options struct {
	Logger  Logger       // if nil, NopLogger is used
	Hooks   Hooks        // if nil, NopHooks is used
	Clock   clock.Clock  // deadline source for FetchPending; nil => wall clock
	Quality quality.Func // slice quality derivation; nil => quality.Keccak
}

// New returns an empty index.
func New(opts Options) *Index {
	return newIndex(opts)
}

// Span yields from..to inclusive in ascending order. It yields nothing when from > to.
func Span(from, to uint64) iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		if from > to {
			return
		}
		for e := from; ; e++ {
			if !yield(e) || e == to {
				return
			}
		}
	}
}
