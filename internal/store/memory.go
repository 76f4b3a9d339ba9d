package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/atmx/price-feed/internal/model"
)

// MemoryStore implements Store with in-memory slices. Used for testing
// and development. Not suitable for production (no persistence).
// Records go through the same row mapping as the SQL backends, so dropped
// fields read back exactly as they would from a database.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]model.Item
	rows  []priceRow
	ids   map[string]bool
	seq   int64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]model.Item),
		ids:   make(map[string]bool),
	}
}

func (s *MemoryStore) UpsertItems(_ context.Context, items []model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range items {
		s.items[it.ID] = it
	}
	return nil
}

func (s *MemoryStore) ListItems(_ context.Context) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]model.Item, 0, len(s.items))
	for _, it := range s.items {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *MemoryStore) GetItem(_ context.Context, id string) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &it, nil
}

func (s *MemoryStore) InsertPricePoints(_ context.Context, points []model.PricePoint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var inserted int64
	for _, p := range points {
		if s.ids[p.ID] {
			continue
		}
		s.seq++
		r := rowFromPoint(p)
		r.Seq = s.seq
		s.rows = append(s.rows, r)
		s.ids[p.ID] = true
		inserted++
	}
	return inserted, nil
}

func (s *MemoryStore) LatestPrices(_ context.Context, limit int) ([]model.PricePoint, error) {
	s.mu.RLock()
	rows := slices.Clone(s.rows)
	s.mu.RUnlock()

	// Newest first; rows without a timestamp sort last.
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Timestamp, rows[j].Timestamp
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	limit = min(pageLimit(limit), len(rows))
	out := make([]model.PricePoint, 0, limit)
	for _, r := range rows[:limit] {
		out = append(out, r.point())
	}
	return out, nil
}

func (s *MemoryStore) BulkPrices(_ context.Context, q BulkQuery) (Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := pageLimit(q.Limit)
	page := Page{Next: q.After}

	// Seq is dense and starts at 1, so the cursor indexes the slice.
	start := int(min(max(q.After, 0), int64(len(s.rows))))
	for _, r := range s.rows[start:] {
		if len(page.Points) == limit {
			return page, nil
		}
		page.Next = r.Seq
		if !inRange(r.Timestamp, q.Start, q.End) {
			continue
		}
		page.Points = append(page.Points, r.point())
	}
	page.Done = true
	return page, nil
}

func (s *MemoryStore) CardHistory(_ context.Context, cardID string, since time.Time) ([]model.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PricePoint
	for _, r := range s.rows {
		if r.CardID == nil || *r.CardID != cardID || r.Timestamp == nil || r.Timestamp.Before(since) {
			continue
		}
		out = append(out, r.point())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *MemoryStore) Stats(_ context.Context) (*model.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &model.Stats{
		TotalPrices: int64(len(s.rows)),
		TotalCards:  int64(len(s.items)),
	}
	for _, r := range s.rows {
		if r.IsCorrupted {
			st.CorruptedRecords++
		}
		if r.Timestamp == nil {
			continue
		}
		if st.DateRange.Start == nil || r.Timestamp.Before(*st.DateRange.Start) {
			ts := *r.Timestamp
			st.DateRange.Start = &ts
		}
		if st.DateRange.End == nil || r.Timestamp.After(*st.DateRange.End) {
			ts := *r.Timestamp
			st.DateRange.End = &ts
		}
	}
	st.CorruptionRate = corruptionRate(st.CorruptedRecords, st.TotalPrices)
	return st, nil
}

// inRange reports whether ts lies in [start, end); zero bounds are open.
func inRange(ts *time.Time, start, end time.Time) bool {
	if start.IsZero() && end.IsZero() {
		return true
	}
	if ts == nil {
		return false
	}
	if !start.IsZero() && ts.Before(start) {
		return false
	}
	if !end.IsZero() && !ts.Before(end) {
		return false
	}
	return true
}
