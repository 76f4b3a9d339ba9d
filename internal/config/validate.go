package config

import (
	"errors"
	"fmt"

	"github.com/atmx/price-feed/internal/catalog"
)

// Database drivers understood by the store layer.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Catalog.Source {
	case catalog.SourceCurated:
	case catalog.SourceSnapshot:
		if c.Catalog.Path == "" {
			return errors.New("catalog.path is required for snapshot catalogs")
		}
	default:
		return fmt.Errorf("catalog.source must be %q or %q, got %q",
			catalog.SourceCurated, catalog.SourceSnapshot, c.Catalog.Source)
	}

	if c.Feed.CorruptionRate > 1 {
		return errors.New("feed.corruption_rate must be <= 1")
	}
	if c.Feed.ManipulationChance > 1 {
		return errors.New("feed.manipulation_chance must be <= 1")
	}
	if c.Feed.BulkBatchSize < 1 {
		return errors.New("feed.bulk_batch_size must be >= 1")
	}
	if c.Feed.WSLimit < 1 {
		return errors.New("feed.ws_limit must be >= 1")
	}

	if c.Chaos.OutageRate > 1 {
		return errors.New("chaos.outage_rate must be <= 1")
	}
	if c.Chaos.MinLatency > 0 && c.Chaos.MaxLatency > 0 && c.Chaos.MinLatency > c.Chaos.MaxLatency {
		return fmt.Errorf("chaos.min_latency (%s) cannot exceed max_latency (%s)",
			c.Chaos.MinLatency, c.Chaos.MaxLatency)
	}

	switch c.Database.Driver {
	case "":
		if c.Redis.URL != "" {
			return errors.New("redis.url requires database.driver")
		}
	case DriverPostgres, DriverMySQL:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q",
			DriverPostgres, DriverMySQL, c.Database.Driver)
	}

	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return errors.New("kafka.topic is required when brokers are set")
	}

	if c.Seed.BatchSize < 1 {
		return errors.New("seed.batch_size must be >= 1")
	}
	return nil
}
