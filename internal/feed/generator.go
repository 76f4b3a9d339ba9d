// Package feed turns the catalog and price model into streams of price
// point records: a "latest" snapshot of recent observations and a bulk
// historical series.
package feed

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"iter"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/price-feed/internal/catalog"
	"github.com/atmx/price-feed/internal/corruption"
	"github.com/atmx/price-feed/internal/model"
	"github.com/atmx/price-feed/internal/pricing"
	"github.com/atmx/price-feed/internal/seed"
)

const (
	// DefaultLatestLimit is the snapshot size used when none is given.
	DefaultLatestLimit = 100
	// MaxLatestLimit caps a single snapshot.
	MaxLatestLimit = 1000
	// LatestWindow bounds how far back a snapshot record may lie.
	LatestWindow = 2 * time.Hour

	// DefaultBulkCount is the size of the default historical series.
	DefaultBulkCount = 50_000
	// DefaultBulkSpan is the length of the default historical series.
	DefaultBulkSpan = 365 * 24 * time.Hour

	// MaxHistoryDays caps a generated card history.
	MaxHistoryDays = 365

	maxLatestVolume = 100
	maxBulkVolume   = 1000
)

// ErrUnknownCard is returned for card ids not in the catalog.
var ErrUnknownCard = errors.New("feed: unknown card")

// Generator produces price point records. It is safe for concurrent use:
// the catalog is read-only, the model guards its own state and every record
// draws from its own seeded streams.
type Generator struct {
	catalog *catalog.Catalog
	model   *pricing.Model
	policy  corruption.Policy
	sources []model.Source
	now     func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock replaces time.Now as the source of "now".
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithModel sets the price model. Sharing one model between generators
// shares its episode table.
func WithModel(m *pricing.Model) Option {
	return func(g *Generator) { g.model = m }
}

// WithPolicy sets the corruption policy.
func WithPolicy(p corruption.Policy) Option {
	return func(g *Generator) { g.policy = p }
}

// NewGenerator creates a generator over cat. A nil or empty catalog is a
// programming error.
func NewGenerator(cat *catalog.Catalog, opts ...Option) *Generator {
	if cat == nil || cat.Len() == 0 {
		panic("feed: generator requires a non-empty catalog")
	}
	g := &Generator{
		catalog: cat,
		policy:  corruption.Default(),
		sources: model.Sources(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.model == nil {
		g.model = pricing.NewModel(pricing.Params{})
	}
	return g
}

// Catalog returns the catalog the generator draws from.
func (g *Generator) Catalog() *catalog.Catalog { return g.catalog }

// Model returns the price model.
func (g *Generator) Model() *pricing.Model { return g.model }

// Now returns the generator's current time, truncated to milliseconds.
func (g *Generator) Now() time.Time {
	return g.now().UTC().Truncate(time.Millisecond)
}

// Latest returns up to limit recent observations, newest first. limit is
// clamped to [1, MaxLatestLimit]. Uncorrupted records lie within
// LatestWindow before now.
func (g *Generator) Latest(limit int) []model.PricePoint {
	limit = ClampLatestLimit(limit)
	now := g.Now()
	nowMillis := now.UnixMilli()

	out := make([]model.PricePoint, 0, limit)
	for i := range limit {
		rng := seed.New(seed.Key("latest", nowMillis, i))

		item := g.catalog.At(rng.Intn(g.catalog.Len()))
		source := g.sources[rng.Intn(len(g.sources))]
		ago := time.Duration(rng.Float64() * float64(LatestWindow)).Truncate(time.Millisecond)
		ts := now.Add(-ago)
		volume := rng.Intn(maxLatestVolume) + 1

		p := g.point(item, source, ts, volume, recordID(item.ID, string(source), model.FormatTimestamp(ts)))
		g.policy.Apply(&p, now)
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Bulk returns a finite, restartable sequence of count records spread over
// [start, end). count <= 0 yields nothing; a reversed range is swapped.
// Uncorrupted records have non-decreasing timestamps inside the range.
// Corruption is anchored at end.
func (g *Generator) Bulk(count int, start, end time.Time) iter.Seq[model.PricePoint] {
	if end.Before(start) {
		start, end = end, start
	}
	start = start.UTC().Truncate(time.Millisecond)
	end = end.UTC().Truncate(time.Millisecond)
	span := end.Sub(start).Milliseconds()

	return func(yield func(model.PricePoint) bool) {
		for i := 0; i < count; i++ {
			if !yield(g.bulkRecord(i, count, start, end, span)) {
				return
			}
		}
	}
}

// DefaultBulk is Bulk(DefaultBulkCount) over the year ending now.
func (g *Generator) DefaultBulk() iter.Seq[model.PricePoint] {
	end := g.Now()
	return g.Bulk(DefaultBulkCount, end.Add(-DefaultBulkSpan), end)
}

func (g *Generator) bulkRecord(i, count int, start, end time.Time, span int64) model.PricePoint {
	rng := seed.New(seed.Key("bulk", i))

	item := g.catalog.At(rng.Intn(g.catalog.Len()))
	source := g.sources[rng.Intn(len(g.sources))]

	// The jitter stays inside the record's own step, so offsets are
	// non-decreasing in i and strictly below span.
	jitter := rng.Float64()
	offset := int64((float64(i) + jitter) * float64(span) / float64(count))
	if offset >= span && span > 0 {
		offset = span - 1
	}
	ts := start.Add(time.Duration(offset) * time.Millisecond)
	volume := rng.Intn(maxBulkVolume) + 1

	id := recordID(item.ID, string(source), model.FormatTimestamp(ts), strconv.Itoa(i))
	p := g.point(item, source, ts, volume, id)
	g.policy.Apply(&p, end)
	return p
}

// History returns the clean hourly price series of one card on every
// source over the last days days, oldest first.
func (g *Generator) History(cardID string, days int) ([]model.PricePoint, error) {
	item, ok := g.catalog.Get(cardID)
	if !ok {
		return nil, ErrUnknownCard
	}
	days = max(1, min(days, MaxHistoryDays))

	end := g.Now().Truncate(time.Hour)
	hours := days * 24
	out := make([]model.PricePoint, 0, hours*len(g.sources))
	for h := hours - 1; h >= 0; h-- {
		ts := end.Add(-time.Duration(h) * time.Hour)
		for _, source := range g.sources {
			rng := seed.New(seed.Key("history", item.ID, string(source), seed.HourBucket(ts)))
			volume := rng.Intn(maxBulkVolume) + 1
			out = append(out, g.point(item, source, ts, volume,
				recordID(item.ID, string(source), model.FormatTimestamp(ts))))
		}
	}
	return out, nil
}

// PriceAt exposes the model for a catalog card.
func (g *Generator) PriceAt(cardID string, source model.Source, t time.Time) (decimal.Decimal, error) {
	item, ok := g.catalog.Get(cardID)
	if !ok {
		return decimal.Zero, ErrUnknownCard
	}
	return g.model.PriceAt(item, source, t), nil
}

func (g *Generator) point(item model.Item, source model.Source, ts time.Time, volume int, id string) model.PricePoint {
	return model.PricePoint{
		ID:        id,
		CardID:    item.ID,
		OracleID:  item.OracleID,
		CardName:  item.Name,
		Source:    source,
		Price:     decimal.NewNullDecimal(g.model.PriceAt(item, source, ts)),
		Currency:  model.CurrencyUSD,
		Timestamp: ts,
		Volume:    model.IntPtr(volume),
	}
}

// ClampLatestLimit maps any requested snapshot size into [1, MaxLatestLimit].
func ClampLatestLimit(limit int) int {
	return max(1, min(limit, MaxLatestLimit))
}

// recordID is the hex md5 of the hyphen-joined parts.
func recordID(parts ...string) string {
	h := md5.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{'-'})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
