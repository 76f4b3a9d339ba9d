package store

import (
	"context"
	"iter"

	"github.com/atmx/price-feed/internal/feed"
	"github.com/atmx/price-feed/internal/model"
)

// Replay serves the feed operations from a recorded history instead of
// generating records on the fly.
type Replay struct {
	store     Store
	batchSize int
}

var _ feed.Feed = (*Replay)(nil)

// NewReplay creates a replay over st that pages through the history
// batchSize records at a time.
func NewReplay(st Store, batchSize int) *Replay {
	return &Replay{store: st, batchSize: pageLimit(batchSize)}
}

// GenerateLatest returns the newest recorded points.
func (r *Replay) GenerateLatest(ctx context.Context, limit int) ([]model.PricePoint, error) {
	return r.store.LatestPrices(ctx, feed.ClampLatestLimit(limit))
}

// GenerateBulk streams up to q.Count recorded points in insertion order.
// A zero Start or End leaves that side of the range open.
func (r *Replay) GenerateBulk(ctx context.Context, q feed.BulkQuery) iter.Seq2[model.PricePoint, error] {
	return func(yield func(model.PricePoint, error) bool) {
		remaining := q.Count
		var after int64
		for remaining > 0 {
			page, err := r.store.BulkPrices(ctx, BulkQuery{
				After: after,
				Limit: min(r.batchSize, remaining),
				Start: q.Start,
				End:   q.End,
			})
			if err != nil {
				yield(model.PricePoint{}, err)
				return
			}
			for _, p := range page.Points {
				if !yield(p, nil) {
					return
				}
				remaining--
			}
			if page.Done {
				return
			}
			after = page.Next
		}
	}
}
