// Command seed fills the configured database with a year of generated
// price history so the server can replay it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/atmx/price-feed/internal/config"
	"github.com/atmx/price-feed/internal/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	count := flag.Int("count", 0, "records to generate (default from config)")
	batch := flag.Int("batch", 0, "records per insert (default from config)")
	flag.Parse()

	if err := run(*configPath, *count, *batch); err != nil {
		slog.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, count, batch int) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver == "" {
		return errors.New("database.driver (or DATABASE_URL) is required to seed")
	}
	if count > 0 {
		cfg.Seed.Count = count
	}
	if batch > 0 {
		cfg.Seed.BatchSize = batch
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := store.Open(ctx, cfg.Database, cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	gen := cfg.NewGenerator(logger)
	logger.Info("seeding price history",
		"driver", cfg.Database.Driver,
		"cards", gen.Catalog().Len(),
		"count", cfg.Seed.Count,
		"batch_size", cfg.Seed.BatchSize,
	)

	res, err := store.SeedHistory(ctx, st, gen, cfg.Seed.Count, cfg.Seed.BatchSize, logger)
	if err != nil {
		return err
	}
	logger.Info("seed complete",
		"run_id", res.RunID,
		"cards", res.Items,
		"generated", res.Generated,
		"inserted", res.Inserted,
		"duplicates_skipped", res.Generated-res.Inserted,
	)
	return nil
}
