// Package model defines the core domain types shared across the price feed.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rarity is the printed rarity class of a card.
type Rarity string

const (
	RarityCommon   Rarity = "common"
	RarityUncommon Rarity = "uncommon"
	RarityRare     Rarity = "rare"
	RarityMythic   Rarity = "mythic"
)

// ParseRarity maps a catalog rarity string onto the four known classes.
// The scarce printings "special" and "bonus" price as mythic; unknown values
// become common.
func ParseRarity(s string) Rarity {
	switch Rarity(s) {
	case RarityUncommon, RarityRare, RarityMythic:
		return Rarity(s)
	case "special", "bonus":
		return RarityMythic
	default:
		return RarityCommon
	}
}

// Source is one of the simulated marketplaces.
type Source string

const (
	SourceTCGPlayer     Source = "tcgplayer"
	SourceCardmarket    Source = "cardmarket"
	SourceStarCityGames Source = "starcitygames"
	SourceCoolStuffInc  Source = "coolstuffinc"
)

// sources is ordered; selection indexes into it, so the order is part of the
// deterministic output format.
var sources = []Source{SourceTCGPlayer, SourceCardmarket, SourceStarCityGames, SourceCoolStuffInc}

var sourceMultipliers = map[Source]float64{
	SourceTCGPlayer:     1.0,
	SourceCardmarket:    0.95,
	SourceStarCityGames: 1.08,
	SourceCoolStuffInc:  1.03,
}

// Sources returns the marketplaces in their canonical order.
func Sources() []Source {
	out := make([]Source, len(sources))
	copy(out, sources)
	return out
}

// Multiplier returns the static price skew of the source. Unknown sources
// are priced at par.
func (s Source) Multiplier() float64 {
	if m, ok := sourceMultipliers[s]; ok {
		return m
	}
	return 1.0
}

// Valid reports whether s is one of the known marketplaces.
func (s Source) Valid() bool {
	_, ok := sourceMultipliers[s]
	return ok
}

// Item is a catalog entry. Items are immutable once the catalog is loaded.
type Item struct {
	ID         string          `json:"id" db:"id"`
	OracleID   string          `json:"oracle_id,omitempty" db:"oracle_id"`
	Name       string          `json:"name" db:"name"`
	Rarity     Rarity          `json:"rarity" db:"rarity"`
	Set        string          `json:"set,omitempty" db:"set_code"`
	SetName    string          `json:"set_name,omitempty" db:"set_name"`
	BasePrice  decimal.Decimal `json:"base_price" db:"base_price"`
	Volatility float64         `json:"volatility" db:"volatility"`
}

// Currency codes emitted by the feed.
const (
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
)

// PricePoint is one generated observation of a card's price on a source.
// A clean record has Price >= 0.10, Volume >= 1 and every field present;
// corrupted records may violate any of those.
type PricePoint struct {
	ID          string
	CardID      string
	OracleID    string
	CardName    string
	Source      Source
	Price       decimal.NullDecimal
	Currency    string
	Timestamp   time.Time
	Volume      *int
	IsCorrupted bool

	// Corruption names the applied corruption kind, empty when clean.
	Corruption string
	// Missing names the wire field dropped from the record, if any.
	Missing string
}

// IntPtr is a small helper for building nullable volumes.
func IntPtr(v int) *int { return &v }

// Stats summarises a persisted price history.
type Stats struct {
	TotalPrices      int64     `json:"total_prices"`
	TotalCards       int64     `json:"total_cards"`
	CorruptedRecords int64     `json:"corrupted_records"`
	CorruptionRate   string    `json:"corruption_rate"`
	DateRange        DateRange `json:"date_range"`
}

// DateRange bounds the timestamps of a stored history.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}
