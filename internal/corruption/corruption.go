// Package corruption injects realistic data-quality defects into generated
// price points so downstream cleaning pipelines have something to catch.
//
// Whether a record is corrupted, and how, depends only on its id and the
// reference time passed in, so replaying a feed reproduces its defects.
package corruption

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/price-feed/internal/model"
	"github.com/atmx/price-feed/internal/seed"
)

// DefaultRate is the fraction of records that get corrupted.
const DefaultRate = 0.05

// Kind names a corruption. The zero value means the record is clean.
type Kind string

const (
	None             Kind = ""
	NullPrice        Kind = "null_price"
	NegativePrice    Kind = "negative_price"
	MissingField     Kind = "missing_field"
	DuplicateID      Kind = "duplicate_id"
	OutlierPrice     Kind = "outlier_price"
	FutureTimestamp  Kind = "future_timestamp"
	InvalidReference Kind = "invalid_reference"
	ZeroVolume       Kind = "zero_volume"
	WrongCurrency    Kind = "wrong_currency"
)

// band maps the half-open interval [previous upper, upper) of the second
// draw onto a kind.
type band struct {
	upper float64
	kind  Kind
}

var bands = []band{
	{0.2, NullPrice},
	{0.3, NegativePrice},
	{0.4, MissingField},
	{0.5, DuplicateID},
	{0.6, OutlierPrice},
	{0.7, FutureTimestamp},
	{0.8, InvalidReference},
	{0.9, ZeroVolume},
	{1.0, WrongCurrency},
}

// Kinds returns every corruption kind in band order.
func Kinds() []Kind {
	out := make([]Kind, len(bands))
	for i, b := range bands {
		out[i] = b.kind
	}
	return out
}

var droppable = []string{
	model.FieldCardID,
	model.FieldCardName,
	model.FieldSource,
	model.FieldTimestamp,
}

var (
	outlierFactor    = decimal.NewFromInt(1000)
	zeroVolumeFactor = decimal.NewFromInt(10)
)

const (
	duplicateIDs      = 100
	invalidRefLength  = 7
	maxFutureDays     = 30
	base36            = 36
	invalidRefPrefix  = "invalid-"
	duplicateIDPrefix = "duplicate-"
)

// Policy decides and applies corruption.
type Policy struct {
	// Rate is the probability a record is corrupted. 0 disables corruption.
	Rate float64
}

// Default returns the policy with DefaultRate.
func Default() Policy {
	return Policy{Rate: DefaultRate}
}

// Apply corrupts p in place with probability Rate and returns the kind
// applied, None when p was left clean. The decision is drawn from the stream
// keyed by p.ID; now anchors future timestamps.
func (pol Policy) Apply(p *model.PricePoint, now time.Time) Kind {
	rng := seed.New(p.ID)
	if rng.Float64() >= pol.Rate {
		return None
	}

	kind := pick(rng.Float64())
	switch kind {
	case NullPrice:
		p.Price = decimal.NullDecimal{}
	case NegativePrice:
		p.Price.Decimal = p.Price.Decimal.Abs().Neg()
	case MissingField:
		p.Missing = droppable[rng.Intn(len(droppable))]
	case DuplicateID:
		p.ID = duplicateIDPrefix + strconv.Itoa(rng.Intn(duplicateIDs))
	case OutlierPrice:
		p.Price.Decimal = p.Price.Decimal.Mul(outlierFactor)
	case FutureTimestamp:
		days := 1 + rng.Intn(maxFutureDays)
		p.Timestamp = now.UTC().AddDate(0, 0, days)
	case InvalidReference:
		p.CardID = invalidReference(rng)
	case ZeroVolume:
		p.Volume = model.IntPtr(0)
		p.Price.Decimal = p.Price.Decimal.Mul(zeroVolumeFactor)
	case WrongCurrency:
		p.Currency = model.CurrencyEUR
	}

	p.IsCorrupted = true
	p.Corruption = string(kind)
	return kind
}

func pick(r float64) Kind {
	for _, b := range bands {
		if r < b.upper {
			return b.kind
		}
	}
	return bands[len(bands)-1].kind
}

func invalidReference(rng *seed.Stream) string {
	buf := make([]byte, 0, len(invalidRefPrefix)+invalidRefLength)
	buf = append(buf, invalidRefPrefix...)
	for range invalidRefLength {
		buf = strconv.AppendInt(buf, int64(rng.Intn(base36)), base36)
	}
	return string(buf)
}
