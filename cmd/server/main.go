package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atmx/price-feed/internal/api"
	"github.com/atmx/price-feed/internal/config"
	"github.com/atmx/price-feed/internal/feed"
	"github.com/atmx/price-feed/internal/metrics"
	"github.com/atmx/price-feed/internal/pricing"
	"github.com/atmx/price-feed/internal/publish"
	"github.com/atmx/price-feed/internal/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("price-feed failed", "err", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gen := cfg.NewGenerator(logger)

	// --- Initialize store ---
	st, closeStore, err := store.Open(ctx, cfg.Database, cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	var f feed.Feed = feed.NewEngine(gen)
	if st != nil {
		f = store.NewReplay(st, cfg.Feed.BulkBatchSize)
		logger.Info("serving recorded feed", "driver", cfg.Database.Driver)
	} else {
		logger.Info("serving generated feed", "cards", gen.Catalog().Len())
	}

	hub := api.NewHub(logger)
	srv := api.NewServer(f, gen, api.Options{
		Store:     st,
		Hub:       hub,
		BatchSize: cfg.Feed.BulkBatchSize,
		Chaos:     cfg.Chaos,
		Logger:    logger,
	})

	httpSrv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if cfg.Feed.WSInterval > 0 {
		g.Go(func() error {
			return hub.Stream(gctx, f, cfg.Feed.WSInterval, cfg.Feed.WSLimit)
		})
	}
	g.Go(func() error {
		trackEpisodes(gctx, gen.Model(), time.Minute)
		return nil
	})

	if cfg.Kafka.Enabled() && cfg.Kafka.Interval > 0 {
		pub := publish.NewKafkaPublisher(cfg.Kafka, logger)
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Warn("kafka writer close failed", "err", err)
			}
		}()
		g.Go(func() error {
			return pub.Run(gctx, f, cfg.Kafka.Interval, cfg.Kafka.Limit)
		})
	}

	g.Go(func() error {
		logger.Info("price-feed listening", "port", cfg.Server.Port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Graceful shutdown.
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		logger.Info("shutting down price-feed...")
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("price-feed stopped")
	return nil
}

// trackEpisodes publishes the number of tracked manipulation episodes.
func trackEpisodes(ctx context.Context, m *pricing.Model, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		metrics.ActiveEpisodes.Set(float64(len(m.Snapshot())))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
