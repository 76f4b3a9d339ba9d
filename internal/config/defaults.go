package config

import (
	"time"

	"github.com/atmx/price-feed/internal/catalog"
	"github.com/atmx/price-feed/internal/corruption"
	"github.com/atmx/price-feed/internal/feed"
	"github.com/atmx/price-feed/internal/pricing"
)

// Default values for optional configuration fields.
const (
	DefaultPort            = 3000
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 5 * time.Minute
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultLogLevel        = "info"
	DefaultBulkBatchSize   = 1000
	DefaultWSInterval      = 5 * time.Second
	DefaultWSLimit         = 20
	DefaultRateLimit       = 100
	DefaultMinLatency      = 50 * time.Millisecond
	DefaultMaxLatency      = 150 * time.Millisecond
	DefaultOutageRate      = 0.01
	DefaultMaxConns        = 10
	DefaultRedisTTL        = 30 * time.Second
	DefaultKafkaTopic      = "card.price"
	DefaultKafkaInterval   = 10 * time.Second
	DefaultKafkaLimit      = 100
	DefaultSeedCount       = feed.DefaultBulkCount
	DefaultSeedBatchSize   = 1000
)

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = DefaultIdleTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}

	// Catalog defaults
	if c.Catalog.Source == "" {
		c.Catalog.Source = catalog.SourceCurated
	}
	if c.Catalog.MaxVolatility == 0 {
		c.Catalog.MaxVolatility = catalog.DefaultMaxVolatility
	}

	// Feed defaults
	if c.Feed.CorruptionRate == 0 {
		c.Feed.CorruptionRate = corruption.DefaultRate
	}
	if c.Feed.ManipulationChance == 0 {
		c.Feed.ManipulationChance = pricing.DefaultManipulationChance
	}
	if c.Feed.MeanReversion == 0 {
		c.Feed.MeanReversion = pricing.DefaultMeanReversion
	}
	if c.Feed.BulkBatchSize == 0 {
		c.Feed.BulkBatchSize = DefaultBulkBatchSize
	}
	if c.Feed.WSInterval == 0 {
		c.Feed.WSInterval = DefaultWSInterval
	}
	if c.Feed.WSLimit == 0 {
		c.Feed.WSLimit = DefaultWSLimit
	}

	// Chaos defaults
	if c.Chaos.RateLimit == 0 {
		c.Chaos.RateLimit = DefaultRateLimit
	}
	if c.Chaos.MinLatency == 0 {
		c.Chaos.MinLatency = DefaultMinLatency
	}
	if c.Chaos.MaxLatency == 0 {
		c.Chaos.MaxLatency = DefaultMaxLatency
	}
	if c.Chaos.OutageRate == 0 {
		c.Chaos.OutageRate = DefaultOutageRate
	}

	// Backend defaults
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = DefaultRedisTTL
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = DefaultKafkaTopic
	}
	if c.Kafka.Interval == 0 {
		c.Kafka.Interval = DefaultKafkaInterval
	}
	if c.Kafka.Limit == 0 {
		c.Kafka.Limit = DefaultKafkaLimit
	}
	if c.Seed.Count == 0 {
		c.Seed.Count = DefaultSeedCount
	}
	if c.Seed.BatchSize == 0 {
		c.Seed.BatchSize = DefaultSeedBatchSize
	}
}
