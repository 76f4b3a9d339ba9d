package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/price-feed/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache. Writes
// go to the primary store and invalidate the affected keys; reads check
// Redis first then fall back to the primary. Redis errors never fail a read.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
		logger:  logger,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) UpsertItems(ctx context.Context, items []model.Item) error {
	if err := s.primary.UpsertItems(ctx, items); err != nil {
		return err
	}
	keys := []string{cardsKey(), statsKey()}
	for _, it := range items {
		keys = append(keys, cardKey(it.ID))
	}
	s.invalidate(ctx, keys...)
	return nil
}

func (s *CachedStore) InsertPricePoints(ctx context.Context, points []model.PricePoint) (int64, error) {
	n, err := s.primary.InsertPricePoints(ctx, points)
	if err != nil {
		return n, err
	}
	if n > 0 {
		// History entries age out on their TTL.
		s.invalidate(ctx, statsKey())
	}
	return n, nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) ListItems(ctx context.Context) ([]model.Item, error) {
	var items []model.Item
	if s.get(ctx, cardsKey(), &items) {
		return items, nil
	}

	items, err := s.primary.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	s.set(ctx, cardsKey(), items)
	return items, nil
}

func (s *CachedStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	var it model.Item
	if s.get(ctx, cardKey(id), &it) {
		return &it, nil
	}

	item, err := s.primary.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	s.set(ctx, cardKey(id), item)
	return item, nil
}

func (s *CachedStore) CardHistory(ctx context.Context, cardID string, since time.Time) ([]model.PricePoint, error) {
	key := historyKey(cardID, since)
	var flagged []model.Flagged
	if s.get(ctx, key, &flagged) {
		return unflag(flagged), nil
	}

	points, err := s.primary.CardHistory(ctx, cardID, since)
	if err != nil {
		return nil, err
	}
	s.set(ctx, key, flag(points))
	return points, nil
}

func (s *CachedStore) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	if s.get(ctx, statsKey(), &st) {
		return &st, nil
	}

	stats, err := s.primary.Stats(ctx)
	if err != nil {
		return nil, err
	}
	s.set(ctx, statsKey(), stats)
	return stats, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) LatestPrices(ctx context.Context, limit int) ([]model.PricePoint, error) {
	return s.primary.LatestPrices(ctx, limit)
}

func (s *CachedStore) BulkPrices(ctx context.Context, q BulkQuery) (Page, error) {
	return s.primary.BulkPrices(ctx, q)
}

// --- Cache helpers ---

func (s *CachedStore) get(ctx context.Context, key string, dst any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("cache read failed", "key", key, "err", err)
		}
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *CachedStore) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.Warn("cache write failed", "key", key, "err", err)
	}
}

func (s *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("cache invalidation failed", "keys", len(keys), "err", err)
	}
}

func flag(points []model.PricePoint) []model.Flagged {
	out := make([]model.Flagged, len(points))
	for i, p := range points {
		out[i] = model.Flagged(p)
	}
	return out
}

func unflag(flagged []model.Flagged) []model.PricePoint {
	out := make([]model.PricePoint, len(flagged))
	for i, f := range flagged {
		out[i] = model.PricePoint(f)
	}
	return out
}

const keyPrefix = "pricefeed:"

func cardsKey() string { return keyPrefix + "cards" }
func cardKey(id string) string { return fmt.Sprintf("%scard:%s", keyPrefix, id) }
func statsKey() string { return keyPrefix + "stats" }

func historyKey(cardID string, since time.Time) string {
	return fmt.Sprintf("%shistory:%s:%d", keyPrefix, cardID, since.Unix())
}
