// Package store defines the persistence interface for recorded price feeds.
// Implementations include PostgreSQL (pgx), MySQL (gorm), Redis (read-through
// cache) and in-memory (for testing and development).
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atmx/price-feed/internal/model"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// DefaultPageSize is used when a query gives no positive limit.
const DefaultPageSize = 1000

// BulkQuery selects one keyset page of the recorded history in insertion
// order. A zero Start or End leaves that side of the range open; records
// without a timestamp only match an unbounded query.
type BulkQuery struct {
	After int64 // sequence cursor; 0 starts from the beginning
	Limit int
	Start time.Time
	End   time.Time
}

// Page is one page of BulkPrices. Next is the cursor for the following
// page; Done reports that no further page exists.
type Page struct {
	Points []model.PricePoint
	Next   int64
	Done   bool
}

// Store is the persistence interface. Price points are append-only and
// deduplicated by id: the first record written under an id wins.
type Store interface {
	// --- Catalog ---

	// UpsertItems inserts or replaces catalog items.
	UpsertItems(ctx context.Context, items []model.Item) error

	// ListItems returns all items ordered by name.
	ListItems(ctx context.Context) ([]model.Item, error)

	// GetItem retrieves one item by id.
	GetItem(ctx context.Context, id string) (*model.Item, error)

	// --- Price history ---

	// InsertPricePoints appends points, skipping ids already present, and
	// returns how many were inserted.
	InsertPricePoints(ctx context.Context, points []model.PricePoint) (int64, error)

	// LatestPrices returns up to limit records, newest first.
	LatestPrices(ctx context.Context, limit int) ([]model.PricePoint, error)

	// BulkPrices returns one keyset page of the history.
	BulkPrices(ctx context.Context, q BulkQuery) (Page, error)

	// CardHistory returns a card's records since the given time, oldest first.
	CardHistory(ctx context.Context, cardID string, since time.Time) ([]model.PricePoint, error)

	// Stats summarises the recorded history.
	Stats(ctx context.Context) (*model.Stats, error)
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	return limit
}

// corruptionRate renders corrupted/total as a percentage with two decimals.
func corruptionRate(corrupted, total int64) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(corrupted)*100/float64(total))
}
