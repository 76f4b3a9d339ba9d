// Package catalog holds the read-only list of cards the feed prices.
//
// A catalog comes from one of three places: the curated list compiled into
// the binary, an external card snapshot on disk, or, when the snapshot is
// unusable, a minimal fallback set. Loading never fails; it degrades.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/price-feed/internal/model"
)

// Source selectors for Options.Source.
const (
	SourceCurated  = "curated"
	SourceSnapshot = "snapshot"
)

// DefaultMaxVolatility caps derived volatility coefficients.
const DefaultMaxVolatility = 0.25

var (
	rarityBaseVolatility = map[model.Rarity]float64{
		model.RarityCommon:   0.05,
		model.RarityUncommon: 0.08,
		model.RarityRare:     0.12,
		model.RarityMythic:   0.18,
	}

	// Used when a snapshot entry carries no usable price.
	rarityDefaultPrice = map[model.Rarity]decimal.Decimal{
		model.RarityCommon:   decimal.RequireFromString("0.50"),
		model.RarityUncommon: decimal.RequireFromString("1.50"),
		model.RarityRare:     decimal.RequireFromString("8.00"),
		model.RarityMythic:   decimal.RequireFromString("25.00"),
	}

	minBasePrice = decimal.RequireFromString("0.10")

	// Namespace for ids derived from card names when a snapshot omits them.
	cardNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("price-feed:card"))
)

// Catalog is an ordered, immutable list of items. Safe for concurrent reads.
type Catalog struct {
	items []model.Item
	byID  map[string]int
}

// New builds a catalog from items. An empty list is a programming error.
func New(items []model.Item) *Catalog {
	if len(items) == 0 {
		panic("catalog: empty item list")
	}
	c := &Catalog{
		items: make([]model.Item, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	copy(c.items, items)
	for i, it := range c.items {
		c.byID[it.ID] = i
	}
	return c
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.items) }

// At returns the i-th item.
func (c *Catalog) At(i int) model.Item { return c.items[i] }

// Get looks up an item by id.
func (c *Catalog) Get(id string) (model.Item, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Item{}, false
	}
	return c.items[i], true
}

// Items returns a copy of the item list.
func (c *Catalog) Items() []model.Item {
	out := make([]model.Item, len(c.items))
	copy(out, c.items)
	return out
}

// Options controls Load.
type Options struct {
	// Source is SourceCurated (default) or SourceSnapshot.
	Source string
	// Path of the snapshot file; required for SourceSnapshot.
	Path string
	// MaxVolatility clamps derived volatility; 0 means DefaultMaxVolatility.
	MaxVolatility float64
	Logger        *slog.Logger
}

// Load returns the catalog selected by opts. A missing or unusable snapshot
// degrades to the fallback set with a warning; Load never fails.
func Load(opts Options) *Catalog {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Source != SourceSnapshot {
		return New(Curated())
	}

	items, err := LoadSnapshot(opts.Path, opts.MaxVolatility)
	if err != nil {
		logger.Warn("card snapshot unavailable, using fallback catalog",
			"path", opts.Path,
			"err", err,
		)
		return New(Fallback())
	}

	logger.Info("catalog loaded from snapshot", "path", opts.Path, "items", len(items))
	return New(items)
}

// snapshotCard is one entry of an external card snapshot (the "selected
// cards" export of a Scryfall bulk download).
type snapshotCard struct {
	ID       string `json:"id"`
	OracleID string `json:"oracle_id"`
	Name     string `json:"name"`
	Rarity   string `json:"rarity"`
	Set      string `json:"set"`
	SetName  string `json:"set_name"`
	Prices   struct {
		USD     *string `json:"usd"`
		USDFoil *string `json:"usd_foil"`
	} `json:"prices"`
	EstimatedPrice float64 `json:"estimated_price"`
}

// LoadSnapshot reads and maps a card snapshot file. Entries without a name
// and duplicate ids are skipped.
func LoadSnapshot(path string, maxVolatility float64) ([]model.Item, error) {
	if path == "" {
		return nil, fmt.Errorf("catalog: no snapshot path configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read snapshot: %w", err)
	}

	var cards []snapshotCard
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("catalog: parse snapshot: %w", err)
	}

	items := make([]model.Item, 0, len(cards))
	seen := make(map[string]bool, len(cards))
	for _, sc := range cards {
		if sc.Name == "" {
			continue
		}
		it := mapSnapshotCard(sc, maxVolatility)
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		items = append(items, it)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("catalog: snapshot %s has no usable cards", path)
	}
	return items, nil
}

func mapSnapshotCard(sc snapshotCard, maxVolatility float64) model.Item {
	rarity := model.ParseRarity(sc.Rarity)

	id := sc.ID
	if id == "" {
		id = uuid.NewSHA1(cardNamespace, []byte(sc.Name)).String()
	}

	price := snapshotPrice(sc, rarity)
	pf, _ := price.Float64()

	return model.Item{
		ID:         id,
		OracleID:   sc.OracleID,
		Name:       sc.Name,
		Rarity:     rarity,
		Set:        sc.Set,
		SetName:    sc.SetName,
		BasePrice:  price,
		Volatility: DeriveVolatility(rarity, pf, maxVolatility),
	}
}

func snapshotPrice(sc snapshotCard, rarity model.Rarity) decimal.Decimal {
	candidates := []*string{sc.Prices.USD, sc.Prices.USDFoil}
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if f, err := strconv.ParseFloat(*c, 64); err == nil && f > 0 {
			return clampPrice(decimal.NewFromFloat(f))
		}
	}
	if sc.EstimatedPrice > 0 {
		return clampPrice(decimal.NewFromFloat(sc.EstimatedPrice))
	}
	return rarityDefaultPrice[rarity]
}

func clampPrice(p decimal.Decimal) decimal.Decimal {
	p = p.Round(2)
	if p.LessThan(minBasePrice) {
		return minBasePrice
	}
	return p
}

// DeriveVolatility computes
//
//	rarityBase(rarity) * (1 + log10(max(1, price)) * 0.05)
//
// clamped to maxVolatility (DefaultMaxVolatility when <= 0).
func DeriveVolatility(rarity model.Rarity, price, maxVolatility float64) float64 {
	if maxVolatility <= 0 {
		maxVolatility = DefaultMaxVolatility
	}
	base, ok := rarityBaseVolatility[rarity]
	if !ok {
		base = rarityBaseVolatility[model.RarityCommon]
	}
	v := base * (1 + math.Log10(math.Max(1, price))*0.05)
	return math.Min(v, maxVolatility)
}
