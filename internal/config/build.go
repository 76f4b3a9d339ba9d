package config

import (
	"log/slog"

	"github.com/atmx/price-feed/internal/catalog"
	"github.com/atmx/price-feed/internal/corruption"
	"github.com/atmx/price-feed/internal/feed"
	"github.com/atmx/price-feed/internal/pricing"
)

// NewGenerator loads the configured catalog and builds a generator with the
// configured price model and corruption policy.
func (c *Config) NewGenerator(logger *slog.Logger, opts ...feed.Option) *feed.Generator {
	cat := catalog.Load(catalog.Options{
		Source:        c.Catalog.Source,
		Path:          c.Catalog.Path,
		MaxVolatility: c.Catalog.MaxVolatility,
		Logger:        logger,
	})
	model := pricing.NewModel(pricing.Params{
		ManipulationChance: c.Feed.ManipulationChance,
		MeanReversion:      c.Feed.MeanReversion,
	})
	base := []feed.Option{
		feed.WithModel(model),
		feed.WithPolicy(corruption.Policy{Rate: c.Feed.CorruptionRate}),
	}
	return feed.NewGenerator(cat, append(base, opts...)...)
}
