package store

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atmx/price-feed/internal/model"
)

func TestPriceRow_PreservesCorruption(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.PricePoint)
		check  func(*testing.T, model.PricePoint)
	}{
		{
			name:   "null price",
			mutate: func(p *model.PricePoint) { p.Price = decimal.NullDecimal{} },
			check: func(t *testing.T, p model.PricePoint) {
				if p.Price.Valid {
					t.Errorf("expected null price, got %s", p.Price.Decimal)
				}
			},
		},
		{
			name:   "negative price",
			mutate: func(p *model.PricePoint) { p.Price.Decimal = p.Price.Decimal.Neg() },
			check: func(t *testing.T, p model.PricePoint) {
				if !p.Price.Decimal.Equal(decimal.RequireFromString("-4.5")) {
					t.Errorf("expected -4.50, got %s", p.Price.Decimal)
				}
			},
		},
		{
			name:   "missing card name",
			mutate: func(p *model.PricePoint) { p.Missing = model.FieldCardName },
			check: func(t *testing.T, p model.PricePoint) {
				if p.Missing != model.FieldCardName || p.CardName != "" {
					t.Errorf("expected dropped card_name, got %+v", p)
				}
			},
		},
		{
			name:   "missing source",
			mutate: func(p *model.PricePoint) { p.Missing = model.FieldSource },
			check: func(t *testing.T, p model.PricePoint) {
				if p.Missing != model.FieldSource || p.Source != "" {
					t.Errorf("expected dropped source, got %+v", p)
				}
			},
		},
		{
			name:   "zero volume",
			mutate: func(p *model.PricePoint) { p.Volume = model.IntPtr(0) },
			check: func(t *testing.T, p model.PricePoint) {
				if p.Volume == nil || *p.Volume != 0 {
					t.Errorf("expected zero volume, got %v", p.Volume)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPoint(3)
			p.IsCorrupted = true
			p.Corruption = tt.name
			tt.mutate(&p)

			got := rowFromPoint(p).point()
			if !got.IsCorrupted || got.Corruption != tt.name {
				t.Errorf("corruption flag lost: %+v", got)
			}
			if got.ID != p.ID || got.Currency != p.Currency {
				t.Errorf("identity lost: %+v", got)
			}
			tt.check(t, got)
		})
	}
}

func TestPriceRow_Clean(t *testing.T) {
	p := testPoint(1)
	p.OracleID = "oracle-1"
	got := rowFromPoint(p).point()

	if got.Missing != "" || got.IsCorrupted {
		t.Errorf("clean record came back altered: %+v", got)
	}
	if !got.Timestamp.Equal(p.Timestamp) || got.OracleID != "oracle-1" {
		t.Errorf("fields lost: %+v", got)
	}
	if got.Price.Decimal.StringFixed(2) != "2.50" {
		t.Errorf("price = %s, want 2.50", got.Price.Decimal)
	}
}

func TestItemRow(t *testing.T) {
	it := model.Item{
		ID:         "x",
		Name:       "Sol Ring",
		Rarity:     model.RarityUncommon,
		Set:        "cmm",
		SetName:    "Commander Masters",
		BasePrice:  decimal.RequireFromString("2.5"),
		Volatility: 0.06,
	}
	r := rowFromItem(it)
	if r.BasePrice != "2.50" || r.SetCode != "cmm" {
		t.Errorf("unexpected row %+v", r)
	}
	got := r.item()
	if !got.BasePrice.Equal(it.BasePrice) || got.Rarity != it.Rarity || got.SetName != it.SetName {
		t.Errorf("item round trip lost fields: %+v", got)
	}
}

func TestCorruptionRate(t *testing.T) {
	tests := []struct {
		corrupted, total int64
		want             string
	}{
		{0, 0, "0.00%"},
		{5, 100, "5.00%"},
		{1, 3, "33.33%"},
		{2500, 50000, "5.00%"},
	}
	for _, tt := range tests {
		if got := corruptionRate(tt.corrupted, tt.total); got != tt.want {
			t.Errorf("corruptionRate(%d, %d) = %s, want %s", tt.corrupted, tt.total, got, tt.want)
		}
	}
}
