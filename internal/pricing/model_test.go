package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/atmx/price-feed/internal/model"
	"github.com/atmx/price-feed/internal/seed"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func testItem() model.Item {
	return model.Item{
		ID:         "X",
		Name:       "Test Card",
		Rarity:     model.RarityRare,
		BasePrice:  d(100),
		Volatility: 0.1,
	}
}

var newYear = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestPriceAt_Deterministic(t *testing.T) {
	item := testItem()
	a := NewModel(Params{})
	b := NewModel(Params{})

	first := a.PriceAt(item, model.SourceTCGPlayer, newYear)
	second := a.PriceAt(item, model.SourceTCGPlayer, newYear)
	other := b.PriceAt(item, model.SourceTCGPlayer, newYear)

	if !first.Equal(second) || !first.Equal(other) {
		t.Errorf("expected identical prices, got %s, %s, %s", first, second, other)
	}
	if first.LessThan(d(MinPrice)) {
		t.Errorf("price %s below floor", first)
	}
	if first.Exponent() < -PriceScale {
		t.Errorf("price %s has more than %d decimals", first, PriceScale)
	}
	if first.LessThan(d(50)) || first.GreaterThan(d(150)) {
		t.Errorf("price %s implausibly far from base 100", first)
	}
}

func TestPriceAt_SameHourSameWalk(t *testing.T) {
	// Within an hour only the trend terms move, and they move very slowly.
	m := NewModel(Params{ManipulationChance: -1})
	item := testItem()
	p1 := m.PriceAt(item, model.SourceTCGPlayer, newYear)
	p2 := m.PriceAt(item, model.SourceTCGPlayer, newYear.Add(30*time.Second))
	if p1.Sub(p2).Abs().GreaterThan(d(0.05)) {
		t.Errorf("prices within one minute differ too much: %s vs %s", p1, p2)
	}
}

func TestPriceAt_SourceSkew(t *testing.T) {
	m := NewModel(Params{ManipulationChance: -1, MeanReversion: -1})
	item := testItem()
	item.Volatility = 0

	tcg := m.PriceAt(item, model.SourceTCGPlayer, newYear)
	mkm := m.PriceAt(item, model.SourceCardmarket, newYear)
	scg := m.PriceAt(item, model.SourceStarCityGames, newYear)

	if !mkm.LessThan(tcg) || !scg.GreaterThan(tcg) {
		t.Errorf("expected cardmarket < tcgplayer < starcitygames, got %s %s %s", mkm, tcg, scg)
	}
}

func TestPriceAt_FloorsCheapCards(t *testing.T) {
	m := NewModel(Params{})
	item := testItem()
	item.BasePrice = d(0.01)

	if got := m.PriceAt(item, model.SourceCardmarket, newYear); !got.Equal(d(MinPrice)) {
		t.Errorf("expected floor price %v, got %s", MinPrice, got)
	}

	item.BasePrice = decimal.Zero
	if got := m.PriceAt(item, model.SourceTCGPlayer, newYear); !got.Equal(d(MinPrice)) {
		t.Errorf("zero base price should floor, got %s", got)
	}
}

func TestPriceAt_NeverBelowFloor(t *testing.T) {
	m := NewModel(Params{ManipulationChance: 0.5})
	sources := model.Sources()

	rapid.Check(t, func(t *rapid.T) {
		item := model.Item{
			ID:         rapid.StringMatching(`[a-z0-9-]{1,20}`).Draw(t, "id"),
			BasePrice:  d(rapid.Float64Range(0, 50000).Draw(t, "base")),
			Volatility: rapid.Float64Range(0, 0.25).Draw(t, "vol"),
		}
		source := sources[rapid.IntRange(0, len(sources)-1).Draw(t, "source")]
		ms := rapid.Int64Range(0, 4102444800000).Draw(t, "millis")

		p := m.PriceAt(item, source, time.UnixMilli(ms))
		if p.LessThan(d(MinPrice)) {
			t.Fatalf("price %s below floor for %+v", p, item)
		}
	})
}

// Prices must not change across releases; these pin the documented example
// item on every source at the start of 2024.
func TestPriceAt_Golden(t *testing.T) {
	item := testItem()
	tests := []struct {
		source model.Source
		params Params
		want   string
	}{
		{model.SourceTCGPlayer, Params{}, "97.26"},
		{model.SourceTCGPlayer, Params{ManipulationChance: -1}, "97.00"},
		{model.SourceCardmarket, Params{}, "88.12"},
		{model.SourceStarCityGames, Params{}, "104.99"},
		{model.SourceCoolStuffInc, Params{}, "96.30"},
	}
	for _, tt := range tests {
		got := NewModel(tt.params).PriceAt(item, tt.source, newYear)
		if want := decimal.RequireFromString(tt.want); !got.Equal(want) {
			t.Errorf("%s %+v: price = %s, want %s", tt.source, tt.params, got, want)
		}
	}
}

func TestEpisode_Golden(t *testing.T) {
	m := NewModel(Params{})
	ep := m.episode("X", model.SourceTCGPlayer, newYear, seed.HourBucket(newYear))
	if !ep.Active {
		t.Fatal("expected the episode started at 2023-12-31T20:00Z to cover the new year")
	}
	if want := time.UnixMilli(1704052800000).UTC(); !ep.Start.Equal(want) {
		t.Errorf("start = %v, want %v", ep.Start, want)
	}
	if want := time.UnixMilli(1704198263300).UTC(); !ep.End.Equal(want) {
		t.Errorf("end = %v, want %v", ep.End, want)
	}
	if ep.Multiplier != 1.5745975298329236 {
		t.Errorf("multiplier = %v, want 1.5745975298329236", ep.Multiplier)
	}
}

func TestEpisodes_ChangePrices(t *testing.T) {
	item := testItem()
	always := NewModel(Params{ManipulationChance: 1})
	never := NewModel(Params{ManipulationChance: -1})

	var differ int
	for h := 0; h < maxEpisodeHours; h++ {
		ts := newYear.Add(time.Duration(h) * time.Hour)
		if !always.PriceAt(item, model.SourceTCGPlayer, ts).Equal(never.PriceAt(item, model.SourceTCGPlayer, ts)) {
			differ++
		}
	}
	if differ == 0 {
		t.Error("an active episode should change at least one hourly price")
	}
}

func TestEpisodes_OrderIndependent(t *testing.T) {
	item := testItem()
	forward := NewModel(Params{ManipulationChance: 0.05})
	backward := NewModel(Params{ManipulationChance: 0.05})
	scattered := NewModel(Params{ManipulationChance: 0.05})

	const hours = 20 * maxEpisodeHours
	want := make([]decimal.Decimal, hours)
	for h := 0; h < hours; h++ {
		want[h] = forward.PriceAt(item, model.SourceCoolStuffInc, newYear.Add(time.Duration(h)*time.Hour))
	}
	for h := hours - 1; h >= 0; h-- {
		got := backward.PriceAt(item, model.SourceCoolStuffInc, newYear.Add(time.Duration(h)*time.Hour))
		if !got.Equal(want[h]) {
			t.Fatalf("hour %d: backward query changed price: %s vs %s", h, got, want[h])
		}
	}
	for i := 0; i < hours; i++ {
		h := (i * 7919) % hours
		got := scattered.PriceAt(item, model.SourceCoolStuffInc, newYear.Add(time.Duration(h)*time.Hour))
		if !got.Equal(want[h]) {
			t.Fatalf("hour %d: scattered query changed price: %s vs %s", h, got, want[h])
		}
	}
}

func TestEpisodes_StartRate(t *testing.T) {
	m := NewModel(Params{})
	const hours = 100_000

	at := func(h int) time.Time {
		return newYear.Add(time.Duration(h)*time.Hour + 30*time.Minute)
	}

	prev := m.episode("X", model.SourceTCGPlayer, at(-1), seed.HourBucket(at(-1)))
	var inactive, starts, active int
	for h := 0; h < hours; h++ {
		ts := at(h)
		ep := m.episode("X", model.SourceTCGPlayer, ts, seed.HourBucket(ts))
		if ep.Active {
			active++
		}
		if !prev.Active {
			inactive++
			if ep.Active && ep.Start.Equal(ts.Truncate(time.Hour)) {
				starts++
			}
		}
		prev = ep
	}

	rate := float64(starts) / float64(inactive)
	if rate < 0.008 || rate > 0.012 {
		t.Errorf("starts per inactive hour = %.4f, want ≈ %.2f", rate, DefaultManipulationChance)
	}
	frac := float64(active) / hours
	if frac < 0.25 || frac > 0.45 {
		t.Errorf("active fraction = %.3f, want ≈ 0.36", frac)
	}
}

func TestRollEpisode_Bounds(t *testing.T) {
	for hour := int64(473352); hour < 473352+500; hour++ {
		ep := rollEpisode("X", model.SourceTCGPlayer, hour, 1)
		if !ep.Active {
			t.Fatalf("hour %d: chance 1 should always start an episode", hour)
		}
		if want := time.UnixMilli(hour * millisPerHour).UTC(); !ep.Start.Equal(want) {
			t.Errorf("hour %d: start %v, want top of the hour %v", hour, ep.Start, want)
		}
		dur := ep.End.Sub(ep.Start)
		if dur < minEpisodeHours*time.Hour || dur > maxEpisodeHours*time.Hour {
			t.Errorf("hour %d: duration %v outside 24h..72h", hour, dur)
		}
		if ep.Multiplier < minMultiplier || ep.Multiplier >= maxMultiplier {
			t.Errorf("hour %d: multiplier %v outside [1.3, 1.7)", hour, ep.Multiplier)
		}
	}
}

func TestSnapshot(t *testing.T) {
	m := NewModel(Params{})
	if len(m.Snapshot()) != 0 {
		t.Fatal("fresh model should have no episodes")
	}

	item := testItem()
	m.PriceAt(item, model.SourceTCGPlayer, newYear)

	snap := m.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 active episode, got %d", len(snap))
	}
	if snap[0].ItemID != "X" || snap[0].Source != model.SourceTCGPlayer {
		t.Errorf("unexpected snapshot entry: %+v", snap[0])
	}

	// Passing the end clears the entry.
	m.PriceAt(item, model.SourceTCGPlayer, snap[0].End.Add(time.Minute))
	if len(m.Snapshot()) != 0 {
		t.Error("episode should be cleared once the clock passes its end")
	}
}

func TestMultiplier(t *testing.T) {
	tests := []struct {
		source model.Source
		want   float64
	}{
		{model.SourceTCGPlayer, 1.0},
		{model.SourceCardmarket, 0.95},
		{model.SourceStarCityGames, 1.08},
		{model.SourceCoolStuffInc, 1.03},
		{"unknown", 1.0},
	}
	for _, tt := range tests {
		if got := Multiplier(tt.source); got != tt.want {
			t.Errorf("Multiplier(%s) = %v, want %v", tt.source, got, tt.want)
		}
	}
}
