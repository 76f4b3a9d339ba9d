package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/price-feed/internal/catalog"
	"github.com/atmx/price-feed/internal/corruption"
	"github.com/atmx/price-feed/internal/model"
)

var fixedNow = time.Date(2024, 6, 1, 12, 30, 15, 123_000_000, time.UTC)

func newTestGenerator(opts ...Option) *Generator {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewGenerator(catalog.New(catalog.Curated()), opts...)
}

var minPrice = decimal.RequireFromString("0.10")

func TestLatest_LimitAndWindow(t *testing.T) {
	g := newTestGenerator()
	prices := g.Latest(50)
	if len(prices) != 50 {
		t.Fatalf("expected 50 records, got %d", len(prices))
	}

	var last time.Time
	for i, p := range prices {
		if i > 0 && p.Timestamp.After(prices[i-1].Timestamp) {
			t.Fatalf("record %d is newer than its predecessor", i)
		}
		if p.IsCorrupted {
			continue
		}
		if p.Timestamp.After(fixedNow) || fixedNow.Sub(p.Timestamp) >= LatestWindow {
			t.Errorf("record %d timestamp %v outside the last 2h", i, p.Timestamp)
		}
		if !last.IsZero() && p.Timestamp.After(last) {
			t.Errorf("uncorrupted records out of order at %d", i)
		}
		last = p.Timestamp
		if !p.Price.Valid || p.Price.Decimal.LessThan(minPrice) {
			t.Errorf("record %d has invalid clean price %v", i, p.Price)
		}
		if *p.Volume < 1 || *p.Volume > maxLatestVolume {
			t.Errorf("record %d volume %d outside 1..100", i, *p.Volume)
		}
		if p.Currency != model.CurrencyUSD || len(p.ID) != 32 {
			t.Errorf("record %d has unexpected shape: %+v", i, p)
		}
	}
}

func TestLatest_DeterministicForSameInstant(t *testing.T) {
	a := newTestGenerator().Latest(100)
	b := newTestGenerator().Latest(100)
	for i := range a {
		if a[i].ID != b[i].ID || !a[i].Timestamp.Equal(b[i].Timestamp) {
			t.Fatalf("record %d differs between runs", i)
		}
	}
}

func TestLatest_ClampsLimit(t *testing.T) {
	g := newTestGenerator()
	tests := []struct {
		limit, want int
	}{
		{0, 1},
		{-5, 1},
		{1, 1},
		{1000, 1000},
		{5000, 1000},
	}
	for _, tt := range tests {
		if got := len(g.Latest(tt.limit)); got != tt.want {
			t.Errorf("Latest(%d) returned %d records, want %d", tt.limit, got, tt.want)
		}
	}
}

func TestBulk_Empty(t *testing.T) {
	g := newTestGenerator()
	start := fixedNow.Add(-24 * time.Hour)
	for _, count := range []int{0, -1} {
		for range g.Bulk(count, start, fixedNow) {
			t.Fatalf("Bulk(%d) should yield nothing", count)
		}
	}
}

func TestBulk_RangeOrderAndCorruptionRate(t *testing.T) {
	g := newTestGenerator()
	start := fixedNow.Add(-DefaultBulkSpan)
	const count = 10_000

	var n, corrupted int
	var last time.Time
	for p := range g.Bulk(count, start, fixedNow) {
		n++
		if p.IsCorrupted {
			corrupted++
			continue
		}
		if p.Timestamp.Before(start) || !p.Timestamp.Before(fixedNow) {
			t.Fatalf("record %d timestamp %v outside range", n, p.Timestamp)
		}
		if p.Timestamp.Before(last) {
			t.Fatalf("record %d timestamp %v before previous %v", n, p.Timestamp, last)
		}
		last = p.Timestamp
		if p.Price.Decimal.LessThan(minPrice) {
			t.Fatalf("record %d price %s below floor", n, p.Price.Decimal)
		}
		if *p.Volume < 1 || *p.Volume > maxBulkVolume {
			t.Fatalf("record %d volume %d outside 1..1000", n, *p.Volume)
		}
	}
	if n != count {
		t.Fatalf("expected %d records, got %d", count, n)
	}
	frac := float64(corrupted) / count
	if frac < 0.04 || frac > 0.06 {
		t.Errorf("corrupted fraction %.4f, want ≈ 0.05", frac)
	}
}

func TestBulk_Restartable(t *testing.T) {
	g := newTestGenerator()
	seq := g.Bulk(200, fixedNow.Add(-time.Hour), fixedNow)

	var first []string
	for p := range seq {
		first = append(first, p.ID)
	}
	var i int
	for p := range seq {
		if p.ID != first[i] {
			t.Fatalf("record %d differs on second pass", i)
		}
		i++
	}
	if i != len(first) {
		t.Errorf("second pass yielded %d records, want %d", i, len(first))
	}
}

func TestBulk_EarlyStop(t *testing.T) {
	g := newTestGenerator()
	var n int
	for range g.Bulk(1000, fixedNow.Add(-time.Hour), fixedNow) {
		n++
		if n == 10 {
			break
		}
	}
	if n != 10 {
		t.Errorf("expected to stop after 10, got %d", n)
	}
}

func TestBulk_SwapsReversedRange(t *testing.T) {
	g := newTestGenerator(WithPolicy(corruption.Policy{}))
	start := fixedNow.Add(-6 * time.Hour)
	for p := range g.Bulk(100, fixedNow, start) {
		if p.Timestamp.Before(start) || p.Timestamp.After(fixedNow) {
			t.Fatalf("timestamp %v outside swapped range", p.Timestamp)
		}
	}
}

func TestBulk_DistinctIDs(t *testing.T) {
	g := newTestGenerator(WithPolicy(corruption.Policy{}))
	seen := make(map[string]bool)
	for p := range g.Bulk(5000, fixedNow.Add(-30*24*time.Hour), fixedNow) {
		if seen[p.ID] {
			t.Fatalf("duplicate id %s", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestDefaultBulk(t *testing.T) {
	g := newTestGenerator()
	var n int
	var first model.PricePoint
	for p := range g.DefaultBulk() {
		if n == 0 {
			first = p
		}
		n++
		if n == 100 {
			break
		}
	}
	if n != 100 {
		t.Fatalf("expected at least 100 records, got %d", n)
	}
	if !first.IsCorrupted && first.Timestamp.Before(fixedNow.Add(-DefaultBulkSpan)) {
		t.Errorf("first record %v before the default range", first.Timestamp)
	}
}

func TestHistory(t *testing.T) {
	g := newTestGenerator()
	if _, err := g.History("nope", 30); !errors.Is(err, ErrUnknownCard) {
		t.Fatalf("expected ErrUnknownCard, got %v", err)
	}

	points, err := g.History("0e2749a9-c857-4b59", 1)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if want := 24 * len(model.Sources()); len(points) != want {
		t.Fatalf("expected %d points, got %d", want, len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].Timestamp.Before(points[i-1].Timestamp) {
			t.Fatalf("history out of order at %d", i)
		}
	}
	for _, p := range points {
		if p.IsCorrupted || p.CardName != "Black Lotus" {
			t.Fatalf("unexpected history point %+v", p)
		}
	}
}

func TestPriceAt_ExampleCard(t *testing.T) {
	item := model.Item{
		ID:         "X",
		Name:       "Example",
		Rarity:     model.RarityRare,
		BasePrice:  decimal.NewFromInt(100),
		Volatility: 0.1,
	}
	g := NewGenerator(catalog.New([]model.Item{item}))
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a, err := g.PriceAt("X", model.SourceTCGPlayer, ts)
	if err != nil {
		t.Fatalf("PriceAt failed: %v", err)
	}
	b, _ := g.PriceAt("X", model.SourceTCGPlayer, ts)
	if !a.Equal(b) {
		t.Errorf("same inputs gave %s and %s", a, b)
	}
	if a.LessThan(minPrice) || a.Exponent() < -2 {
		t.Errorf("unexpected price %s", a)
	}
	if _, err := g.PriceAt("Y", model.SourceTCGPlayer, ts); !errors.Is(err, ErrUnknownCard) {
		t.Errorf("expected ErrUnknownCard, got %v", err)
	}
}

func TestNewGenerator_NilCatalogPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewGenerator(nil) should panic")
		}
	}()
	NewGenerator(nil)
}

func TestEngine_GenerateBulk(t *testing.T) {
	e := NewEngine(newTestGenerator())

	var n int
	for _, err := range e.GenerateBulk(context.Background(), BulkQuery{Count: 25}) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		n++
	}
	if n != 25 {
		t.Errorf("expected 25 records, got %d", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var gotErr error
	for _, err := range e.GenerateBulk(ctx, BulkQuery{Count: 25}) {
		gotErr = err
	}
	if !errors.Is(gotErr, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", gotErr)
	}
}

func TestEngine_GenerateLatest(t *testing.T) {
	e := NewEngine(newTestGenerator())
	prices, err := e.GenerateLatest(context.Background(), 10)
	if err != nil || len(prices) != 10 {
		t.Fatalf("GenerateLatest = %d records, %v", len(prices), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.GenerateLatest(ctx, 10); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBulkQuery_Resolve(t *testing.T) {
	q := BulkQuery{Count: 5}.Resolve(fixedNow)
	if !q.End.Equal(fixedNow) || !q.Start.Equal(fixedNow.Add(-DefaultBulkSpan)) {
		t.Errorf("unexpected resolved range %v..%v", q.Start, q.End)
	}

	start := fixedNow.Add(-time.Hour)
	q = BulkQuery{Count: 5, Start: start}.Resolve(fixedNow)
	if !q.Start.Equal(start) || !q.End.Equal(fixedNow) {
		t.Errorf("explicit start should be kept: %v..%v", q.Start, q.End)
	}
}
