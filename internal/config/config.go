// Package config loads the price feed's YAML configuration.
package config

import (
	"log/slog"
	"time"
)

// Config is the root configuration of a price feed instance.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Feed     FeedConfig     `yaml:"feed"`
	Chaos    ChaosConfig    `yaml:"chaos"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Seed     SeedConfig     `yaml:"seed"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"` // bulk streams can run for minutes
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// SlogLevel parses Level, falling back to info.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// CatalogConfig selects the card catalog.
type CatalogConfig struct {
	Source        string  `yaml:"source"` // curated or snapshot
	Path          string  `yaml:"path"`   // snapshot file
	MaxVolatility float64 `yaml:"max_volatility"`
}

// FeedConfig tunes the generator. Negative rates disable the term.
type FeedConfig struct {
	CorruptionRate     float64       `yaml:"corruption_rate"`
	ManipulationChance float64       `yaml:"manipulation_chance"`
	MeanReversion      float64       `yaml:"mean_reversion"`
	BulkBatchSize      int           `yaml:"bulk_batch_size"`
	WSInterval         time.Duration `yaml:"ws_interval"`
	WSLimit            int           `yaml:"ws_limit"`
}

// ChaosConfig controls the API's simulated upstream misbehaviour.
// Negative values disable the corresponding behaviour.
type ChaosConfig struct {
	RateLimit  int           `yaml:"rate_limit"` // requests per minute per client on /feed
	MinLatency time.Duration `yaml:"min_latency"`
	MaxLatency time.Duration `yaml:"max_latency"`
	OutageRate float64       `yaml:"outage_rate"`
}

// DatabaseConfig selects the optional persistence backend.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "", postgres or mysql
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// RedisConfig enables the read-through cache in front of the database.
type RedisConfig struct {
	URL string        `yaml:"url"`
	TTL time.Duration `yaml:"ttl"`
}

// KafkaConfig enables publishing latest snapshots to Kafka.
type KafkaConfig struct {
	Brokers  []string      `yaml:"brokers"`
	Topic    string        `yaml:"topic"`
	Interval time.Duration `yaml:"interval"`
	Limit    int           `yaml:"limit"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// SeedConfig controls the seed-database job.
type SeedConfig struct {
	Count     int `yaml:"count"`
	BatchSize int `yaml:"batch_size"`
}
