package feed

import (
	"context"
	"iter"
	"time"

	"github.com/atmx/price-feed/internal/model"
)

// BulkQuery selects a historical series. A zero Start/End selects
// DefaultBulkSpan ending now; Count <= 0 selects nothing.
type BulkQuery struct {
	Count int
	Start time.Time
	End   time.Time
}

// Resolve fills a zero range relative to now.
func (q BulkQuery) Resolve(now time.Time) BulkQuery {
	if q.End.IsZero() {
		q.End = now
	}
	if q.Start.IsZero() {
		q.Start = q.End.Add(-DefaultBulkSpan)
	}
	return q
}

// Feed is anything that can serve the two feed operations: the synthetic
// Engine and the store-backed replay both implement it.
type Feed interface {
	GenerateLatest(ctx context.Context, limit int) ([]model.PricePoint, error)
	GenerateBulk(ctx context.Context, q BulkQuery) iter.Seq2[model.PricePoint, error]
}

// Engine serves the Feed interface straight from a Generator.
type Engine struct {
	gen *Generator
}

var _ Feed = (*Engine)(nil)

// NewEngine wraps gen.
func NewEngine(gen *Generator) *Engine {
	return &Engine{gen: gen}
}

// Generator returns the wrapped generator.
func (e *Engine) Generator() *Generator { return e.gen }

// GenerateLatest returns a snapshot of recent records.
func (e *Engine) GenerateLatest(ctx context.Context, limit int) ([]model.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.gen.Latest(limit), nil
}

// GenerateBulk streams the series selected by q, stopping with the
// context's error once ctx is done.
func (e *Engine) GenerateBulk(ctx context.Context, q BulkQuery) iter.Seq2[model.PricePoint, error] {
	q = q.Resolve(e.gen.Now())
	return func(yield func(model.PricePoint, error) bool) {
		for p := range e.gen.Bulk(q.Count, q.Start, q.End) {
			if err := ctx.Err(); err != nil {
				yield(model.PricePoint{}, err)
				return
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}
