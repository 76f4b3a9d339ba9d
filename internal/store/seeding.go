package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atmx/price-feed/internal/feed"
	"github.com/atmx/price-feed/internal/metrics"
	"github.com/atmx/price-feed/internal/model"
)

// SeedResult reports one seeding run.
type SeedResult struct {
	RunID     string
	Items     int
	Generated int64
	Inserted  int64
	Duration  time.Duration
}

// SeedHistory writes the catalog and count bulk records over the year
// ending at the generator's now into st, batchSize records per write.
// Re-running it over the same instant inserts nothing new.
func SeedHistory(ctx context.Context, st Store, gen *feed.Generator, count, batchSize int, logger *slog.Logger) (SeedResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	batchSize = pageLimit(batchSize)
	start := time.Now()

	res := SeedResult{RunID: uuid.NewString()}
	logger = logger.With("run_id", res.RunID)

	items := gen.Catalog().Items()
	if err := st.UpsertItems(ctx, items); err != nil {
		return res, fmt.Errorf("seed cards: %w", err)
	}
	res.Items = len(items)
	logger.Info("cards seeded", "count", res.Items)

	end := gen.Now()
	batch := make([]model.PricePoint, 0, batchSize)
	flush := func() error {
		n, err := st.InsertPricePoints(ctx, batch)
		if err != nil {
			return fmt.Errorf("seed prices: %w", err)
		}
		res.Inserted += n
		metrics.SeededRecords.Add(float64(n))
		batch = batch[:0]
		return nil
	}

	for p := range gen.Bulk(count, end.Add(-feed.DefaultBulkSpan), end) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		batch = append(batch, p)
		res.Generated++
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return res, err
			}
			if res.Generated%(int64(batchSize)*10) == 0 {
				logger.Info("seeding progress", "generated", res.Generated, "inserted", res.Inserted)
			}
		}
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return res, err
		}
	}

	res.Duration = time.Since(start)
	logger.Info("price history seeded",
		"generated", res.Generated,
		"inserted", res.Inserted,
		"duration", res.Duration,
	)
	return res, nil
}
