package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/price-feed/internal/model"
)

// priceRow is the column layout of the prices table, shared by the pgx and
// gorm backends. Dropped fields and null prices are NULL columns.
type priceRow struct {
	Seq         int64      `gorm:"column:seq;primaryKey;autoIncrement"`
	ID          string     `gorm:"column:id;type:varchar(64);uniqueIndex;not null"`
	CardID      *string    `gorm:"column:card_id;type:varchar(64);index:idx_prices_card_ts,priority:1"`
	OracleID    *string    `gorm:"column:oracle_id;type:varchar(64)"`
	CardName    *string    `gorm:"column:card_name;type:varchar(255)"`
	Source      *string    `gorm:"column:source;type:varchar(32)"`
	Price       *string    `gorm:"column:price;type:decimal(20,2)"`
	Currency    string     `gorm:"column:currency;type:varchar(3);not null"`
	Timestamp   *time.Time `gorm:"column:ts;type:datetime(3);index;index:idx_prices_card_ts,priority:2"`
	Volume      *int       `gorm:"column:volume"`
	IsCorrupted bool       `gorm:"column:is_corrupted;not null"`
	Corruption  *string    `gorm:"column:corruption;type:varchar(32)"`
}

func (priceRow) TableName() string { return "prices" }

// itemRow is the column layout of the cards table.
type itemRow struct {
	ID         string  `gorm:"column:id;primaryKey;type:varchar(64)"`
	OracleID   string  `gorm:"column:oracle_id;type:varchar(64)"`
	Name       string  `gorm:"column:name;type:varchar(255);not null"`
	Rarity     string  `gorm:"column:rarity;type:varchar(16);not null"`
	SetCode    string  `gorm:"column:set_code;type:varchar(16)"`
	SetName    string  `gorm:"column:set_name;type:varchar(255)"`
	BasePrice  string  `gorm:"column:base_price;type:decimal(20,2);not null"`
	Volatility float64 `gorm:"column:volatility;not null"`
}

func (itemRow) TableName() string { return "cards" }

func rowFromPoint(p model.PricePoint) priceRow {
	r := priceRow{
		ID:          p.ID,
		OracleID:    optional(p.OracleID),
		Currency:    p.Currency,
		Volume:      p.Volume,
		IsCorrupted: p.IsCorrupted,
		Corruption:  optional(p.Corruption),
	}
	if p.Missing != model.FieldCardID {
		r.CardID = optional(p.CardID)
	}
	if p.Missing != model.FieldCardName {
		r.CardName = optional(p.CardName)
	}
	if p.Missing != model.FieldSource {
		r.Source = optional(string(p.Source))
	}
	if p.Missing != model.FieldTimestamp {
		ts := p.Timestamp.UTC()
		r.Timestamp = &ts
	}
	if p.Price.Valid {
		s := p.Price.Decimal.StringFixed(2)
		r.Price = &s
	}
	return r
}

func (r priceRow) point() model.PricePoint {
	p := model.PricePoint{
		ID:          r.ID,
		OracleID:    deref(r.OracleID),
		CardID:      deref(r.CardID),
		CardName:    deref(r.CardName),
		Source:      model.Source(deref(r.Source)),
		Currency:    r.Currency,
		Volume:      r.Volume,
		IsCorrupted: r.IsCorrupted,
		Corruption:  deref(r.Corruption),
	}
	if r.Price != nil {
		if d, err := decimal.NewFromString(*r.Price); err == nil {
			p.Price = decimal.NewNullDecimal(d)
		}
	}
	if r.Timestamp != nil {
		p.Timestamp = r.Timestamp.UTC()
	}
	switch {
	case r.CardID == nil:
		p.Missing = model.FieldCardID
	case r.CardName == nil:
		p.Missing = model.FieldCardName
	case r.Source == nil:
		p.Missing = model.FieldSource
	case r.Timestamp == nil:
		p.Missing = model.FieldTimestamp
	}
	return p
}

func rowFromItem(it model.Item) itemRow {
	return itemRow{
		ID:         it.ID,
		OracleID:   it.OracleID,
		Name:       it.Name,
		Rarity:     string(it.Rarity),
		SetCode:    it.Set,
		SetName:    it.SetName,
		BasePrice:  it.BasePrice.StringFixed(2),
		Volatility: it.Volatility,
	}
}

func (r itemRow) item() model.Item {
	price, _ := decimal.NewFromString(r.BasePrice)
	return model.Item{
		ID:         r.ID,
		OracleID:   r.OracleID,
		Name:       r.Name,
		Rarity:     model.Rarity(r.Rarity),
		Set:        r.SetCode,
		SetName:    r.SetName,
		BasePrice:  price,
		Volatility: r.Volatility,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
