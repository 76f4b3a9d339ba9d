package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the ISO-8601 instant format used on the wire
// (UTC, millisecond precision).
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Wire field names that a corrupted record may drop.
const (
	FieldCardID    = "card_id"
	FieldCardName  = "card_name"
	FieldSource    = "source"
	FieldTimestamp = "timestamp"
)

// FormatTimestamp renders t in the wire layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

type wirePricePoint struct {
	ID          string          `json:"id"`
	CardID      *string         `json:"card_id,omitempty"`
	OracleID    string          `json:"oracle_id,omitempty"`
	CardName    *string         `json:"card_name,omitempty"`
	Source      *Source         `json:"source,omitempty"`
	Price       json.RawMessage `json:"price"`
	Currency    string          `json:"currency"`
	Timestamp   *string         `json:"timestamp,omitempty"`
	Volume      *int            `json:"volume"`
	IsCorrupted *bool           `json:"is_corrupted,omitempty"`
	Corruption  string          `json:"corruption,omitempty"`
}

type wirePricePointIn struct {
	ID          string              `json:"id"`
	CardID      *string             `json:"card_id"`
	OracleID    string              `json:"oracle_id"`
	CardName    *string             `json:"card_name"`
	Source      *Source             `json:"source"`
	Price       decimal.NullDecimal `json:"price"`
	Currency    string              `json:"currency"`
	Timestamp   *string             `json:"timestamp"`
	Volume      *int                `json:"volume"`
	IsCorrupted bool                `json:"is_corrupted"`
	Corruption  string              `json:"corruption"`
}

// MarshalJSON emits the public feed shape: the internal corruption flag is
// not exposed and a dropped field is omitted entirely.
func (p PricePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.wire(false))
}

// UnmarshalJSON accepts both the public and the flagged shape.
func (p *PricePoint) UnmarshalJSON(data []byte) error {
	var in wirePricePointIn
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	out := PricePoint{
		ID:          in.ID,
		OracleID:    in.OracleID,
		Price:       in.Price,
		Currency:    in.Currency,
		Volume:      in.Volume,
		IsCorrupted: in.IsCorrupted,
		Corruption:  in.Corruption,
	}
	switch {
	case in.CardID == nil:
		out.Missing = FieldCardID
	case in.CardName == nil:
		out.Missing = FieldCardName
	case in.Source == nil:
		out.Missing = FieldSource
	case in.Timestamp == nil:
		out.Missing = FieldTimestamp
	}
	if in.CardID != nil {
		out.CardID = *in.CardID
	}
	if in.CardName != nil {
		out.CardName = *in.CardName
	}
	if in.Source != nil {
		out.Source = *in.Source
	}
	if in.Timestamp != nil {
		ts, err := time.Parse(time.RFC3339Nano, *in.Timestamp)
		if err != nil {
			return fmt.Errorf("model: invalid timestamp %q: %w", *in.Timestamp, err)
		}
		out.Timestamp = ts.UTC()
	}

	*p = out
	return nil
}

func (p PricePoint) wire(flagged bool) wirePricePoint {
	w := wirePricePoint{
		ID:       p.ID,
		OracleID: p.OracleID,
		Currency: p.Currency,
		Volume:   p.Volume,
	}
	if p.Price.Valid {
		w.Price = json.RawMessage(p.Price.Decimal.String())
	}
	if p.Missing != FieldCardID {
		id := p.CardID
		w.CardID = &id
	}
	if p.Missing != FieldCardName {
		name := p.CardName
		w.CardName = &name
	}
	if p.Missing != FieldSource {
		src := p.Source
		w.Source = &src
	}
	if p.Missing != FieldTimestamp {
		ts := FormatTimestamp(p.Timestamp)
		w.Timestamp = &ts
	}
	if flagged {
		corrupted := p.IsCorrupted
		w.IsCorrupted = &corrupted
		w.Corruption = p.Corruption
	}
	return w
}

// Flagged is a PricePoint whose JSON form carries the internal corruption
// flag. Persistence layers and caches use it; the public feed does not.
type Flagged PricePoint

// MarshalJSON emits the public shape plus is_corrupted and corruption.
func (f Flagged) MarshalJSON() ([]byte, error) {
	return json.Marshal(PricePoint(f).wire(true))
}

// UnmarshalJSON decodes the flagged shape.
func (f *Flagged) UnmarshalJSON(data []byte) error {
	var p PricePoint
	if err := p.UnmarshalJSON(data); err != nil {
		return err
	}
	*f = Flagged(p)
	return nil
}
