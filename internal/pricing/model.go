// Package pricing computes deterministic card prices.
//
// A price is a pure function of (item, source, timestamp): the source skew,
// two overlaid cyclical trends (≈30 and ≈7 day periods), a seeded single-step
// random walk, a small pull toward the base price, and occasional
// manipulation episodes that amplify the hour-over-hour change.
//
// Prices are computed in float64 and converted to decimal only at the end,
// rounded to cents half away from zero.
package pricing

import (
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/price-feed/internal/model"
	"github.com/atmx/price-feed/internal/seed"
)

const (
	// MinPrice is the floor of every price produced by the model.
	MinPrice = 0.10

	// PriceScale is the number of decimal places prices are rounded to.
	PriceScale int32 = 2

	millisPerDay  = 86_400_000.0
	millisPerHour = 3_600_000

	longTrendPeriodDays  = 30
	longTrendAmplitude   = 0.1
	shortTrendPeriodDays = 7
	shortTrendAmplitude  = 0.05

	minEpisodeHours = 24
	maxEpisodeHours = 72
	minMultiplier   = 1.3
	maxMultiplier   = 1.7

	// maxSeriesHours bounds the rolled hour range memoised per series.
	maxSeriesHours = 30 * 24
)

// Defaults for Params.
const (
	DefaultManipulationChance = 0.01
	DefaultMeanReversion      = 0.002
)

// Params tunes the stateful parts of the model. Zero values select defaults;
// a negative value disables the corresponding term.
type Params struct {
	ManipulationChance float64
	MeanReversion      float64
}

func (p Params) withDefaults() Params {
	if p.ManipulationChance == 0 {
		p.ManipulationChance = DefaultManipulationChance
	}
	if p.ManipulationChance < 0 {
		p.ManipulationChance = 0
	}
	if p.MeanReversion == 0 {
		p.MeanReversion = DefaultMeanReversion
	}
	if p.MeanReversion < 0 {
		p.MeanReversion = 0
	}
	return p
}

// Episode is a transient manipulation of one (item, source) series.
type Episode struct {
	Active     bool      `json:"active"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Multiplier float64   `json:"multiplier"`
}

// covers reports whether t falls inside the episode.
func (e Episode) covers(t time.Time) bool {
	return e.Active && !t.Before(e.Start) && !t.After(e.End)
}

type episodeKey struct {
	itemID string
	source model.Source
}

// series memoises the hourly rolls of one (item, source). Hours lo..hi
// (inclusive) have been rolled; starts holds the ones that triggered, in
// hour order. current is the episode last resolved for the series.
type series struct {
	lo, hi  int64
	starts  []Episode
	current Episode
}

// Model prices items. The episode table is the only mutable state and is
// guarded by mu; it memoises seeded rolls for each (item, source) and never
// changes what PriceAt returns.
type Model struct {
	params Params

	mu       sync.Mutex
	episodes map[episodeKey]*series
}

// NewModel creates a model with its own episode table.
func NewModel(params Params) *Model {
	return &Model{
		params:   params.withDefaults(),
		episodes: make(map[episodeKey]*series),
	}
}

// PriceAt returns the price of item on source at t, rounded to cents and
// never below MinPrice.
func (m *Model) PriceAt(item model.Item, source model.Source, t time.Time) decimal.Decimal {
	return decimal.NewFromFloat(m.priceAt(item, source, t)).Round(PriceScale)
}

func (m *Model) priceAt(item model.Item, source model.Source, t time.Time) float64 {
	base := item.BasePrice.InexactFloat64() * Multiplier(source)
	if base <= 0 {
		return MinPrice
	}

	hour := seed.HourBucket(t)
	raw := rawPrice(item, source, base, t, hour)
	prev := rawPrice(item, source, base, t.Add(-time.Hour), hour-1)

	change := raw - prev
	if ep := m.episode(item.ID, source, t, hour); ep.Active {
		change *= ep.Multiplier
	}

	deviation := (prev - base) / base
	price := prev + change - deviation*m.params.MeanReversion*prev

	return math.Max(MinPrice, price)
}

// rawPrice is the stateless core: source-skewed base price moved by the two
// cyclical trends and the hour bucket's seeded random walk.
func rawPrice(item model.Item, source model.Source, base float64, t time.Time, hour int64) float64 {
	rng := seed.New(seed.Key(item.ID, string(source), hour))

	days := float64(t.UnixMilli()) / millisPerDay
	longTrend := math.Sin(days/longTrendPeriodDays) * longTrendAmplitude
	shortTrend := math.Sin(days/shortTrendPeriodDays) * shortTrendAmplitude
	randomWalk := (rng.Float64() - 0.5) * item.Volatility

	return base * (1 + longTrend + shortTrend + randomWalk)
}

// episode returns the manipulation episode covering t, if any. Every hour
// bucket rolls once for a start; the earliest start within the last
// maxEpisodeHours buckets whose episode still covers t wins.
func (m *Model) episode(itemID string, source model.Source, t time.Time, hour int64) Episode {
	if m.params.ManipulationChance == 0 {
		return Episode{}
	}
	key := episodeKey{itemID: itemID, source: source}
	from := hour - maxEpisodeHours

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.episodes[key]
	if !ok {
		s = &series{lo: from, hi: from - 1}
		m.episodes[key] = s
	}
	s.extend(itemID, source, from, hour, m.params.ManipulationChance)

	s.current = Episode{}
	for _, ep := range s.starts {
		if ep.Start.After(t) {
			break
		}
		if seed.HourBucket(ep.Start) >= from && ep.covers(t) {
			s.current = ep
			break
		}
	}
	return s.current
}

// extend rolls the hours in [from, to] that the series has not rolled yet.
// A window disjoint from the rolled range, or one that would stretch it past
// maxSeriesHours, starts the range over.
func (s *series) extend(itemID string, source model.Source, from, to int64, chance float64) {
	if to < s.lo-1 || from > s.hi+1 || max(to, s.hi)-min(from, s.lo) > maxSeriesHours {
		s.lo, s.hi, s.starts = from, from-1, nil
	}

	var before []Episode
	for h := from; h < s.lo; h++ {
		if ep := rollEpisode(itemID, source, h, chance); ep.Active {
			before = append(before, ep)
		}
	}
	if len(before) > 0 {
		s.starts = append(before, s.starts...)
	}
	s.lo = min(s.lo, from)

	for h := s.hi + 1; h <= to; h++ {
		if ep := rollEpisode(itemID, source, h, chance); ep.Active {
			s.starts = append(s.starts, ep)
		}
	}
	s.hi = max(s.hi, to)
}

// rollEpisode decides, from the hour bucket's own seed, whether an episode
// starts at the top of that hour and, if so, how long and how strong.
func rollEpisode(itemID string, source model.Source, hour int64, chance float64) Episode {
	rng := seed.New(seed.Key("episode", itemID, string(source), hour))
	if rng.Float64() >= chance {
		return Episode{}
	}

	hours := rng.Range(minEpisodeHours, maxEpisodeHours)
	multiplier := rng.Range(minMultiplier, maxMultiplier)

	start := hour * millisPerHour
	end := start + int64(hours*millisPerHour)

	return Episode{
		Active:     true,
		Start:      time.UnixMilli(start).UTC(),
		End:        time.UnixMilli(end).UTC(),
		Multiplier: multiplier,
	}
}

// ActiveEpisode pairs an episode with the series it belongs to.
type ActiveEpisode struct {
	ItemID string       `json:"item_id"`
	Source model.Source `json:"source"`
	Episode
}

// Snapshot lists the episodes that were active at the last query of each
// series. A series whose last query fell past its episode's end is absent.
func (m *Model) Snapshot() []ActiveEpisode {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ActiveEpisode
	for k, s := range m.episodes {
		if s.current.Active {
			out = append(out, ActiveEpisode{ItemID: k.itemID, Source: k.source, Episode: s.current})
		}
	}
	return out
}

// Multiplier returns the price skew applied to source.
func Multiplier(source model.Source) float64 {
	return source.Multiplier()
}
