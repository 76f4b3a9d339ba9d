package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atmx/price-feed/internal/feed"
	"github.com/atmx/price-feed/internal/metrics"
	"github.com/atmx/price-feed/internal/model"
	"github.com/atmx/price-feed/internal/store"
)

const (
	// MaxBulkCount caps a single bulk export.
	MaxBulkCount = 1_000_000
	// DefaultHistoryDays is the card history window used when none is given.
	DefaultHistoryDays = 30
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
	Mode      string  `json:"mode"`
}

// LatestResponse is the body of GET /feed/latest.
type LatestResponse struct {
	Prices   []model.PricePoint `json:"prices"`
	Metadata Metadata           `json:"metadata"`
}

// CardsResponse is the body of GET /cards.
type CardsResponse struct {
	Cards []model.Item `json:"cards"`
	Count int          `json:"count"`
}

// HistoryResponse is the body of GET /cards/{cardID}/history.
type HistoryResponse struct {
	CardID string             `json:"card_id"`
	Days   int                `json:"days"`
	Prices []model.PricePoint `json:"prices"`
}

// Health handles GET /health
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	mode := "generated"
	if s.store != nil {
		mode = "replay"
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: model.FormatTimestamp(time.Now()),
		Uptime:    time.Since(s.started).Seconds(),
		Mode:      mode,
	})
}

// Latest handles GET /feed/latest?limit=N
func (s *Server) Latest(w http.ResponseWriter, r *http.Request) {
	limit := feed.DefaultLatestLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	prices, err := s.feed.GenerateLatest(r.Context(), limit)
	if err != nil {
		s.logger.Error("latest feed failed", "err", err)
		writeError(w, "Failed to generate price data", http.StatusInternalServerError)
		return
	}
	if prices == nil {
		prices = []model.PricePoint{}
	}
	countServed("latest", prices)

	writeJSON(w, http.StatusOK, LatestResponse{
		Prices:   prices,
		Metadata: newMetadata(time.Now(), len(prices)),
	})
}

// Bulk handles GET /feed/bulk?count=N&start=RFC3339&end=RFC3339
// The export is streamed as one JSON object, flushed every batch.
func (s *Server) Bulk(w http.ResponseWriter, r *http.Request) {
	q, err := parseBulkQuery(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	start := time.Now()
	rc := http.NewResponseController(w)
	served := metrics.RecordsServed.WithLabelValues("bulk")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"prices":[`)); err != nil {
		return
	}

	var n int
	for p, err := range s.feed.GenerateBulk(ctx, q) {
		if err != nil {
			// The status line is gone; an unterminated body tells the
			// client the export is incomplete.
			if ctx.Err() == nil {
				s.logger.Error("bulk stream failed", "records", n, "err", err)
			}
			return
		}
		data, err := json.Marshal(p)
		if err != nil {
			s.logger.Error("bulk record encode failed", "id", p.ID, "err", err)
			return
		}
		if n > 0 {
			data = append([]byte{','}, data...)
		}
		if _, err := w.Write(data); err != nil {
			return
		}
		n++
		served.Inc()
		if p.IsCorrupted {
			metrics.RecordsCorrupted.WithLabelValues(p.Corruption).Inc()
		}
		if n%s.batchSize == 0 {
			rc.Flush()
		}
	}

	tail, err := json.Marshal(newMetadata(time.Now(), n))
	if err != nil {
		s.logger.Error("bulk metadata encode failed", "err", err)
		return
	}
	tail = append([]byte(`],"metadata":`), tail...)
	tail = append(tail, '}')
	if _, err := w.Write(tail); err != nil {
		return
	}
	rc.Flush()

	metrics.BulkStreamDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("bulk stream complete", "records", n, "duration", time.Since(start))
}

func parseBulkQuery(r *http.Request) (feed.BulkQuery, error) {
	q := feed.BulkQuery{Count: feed.DefaultBulkCount}
	v := r.URL.Query()

	if c := v.Get("count"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n < 0 {
			return q, errors.New("count must be a non-negative integer")
		}
		q.Count = min(n, MaxBulkCount)
	}
	for _, f := range []struct {
		name string
		dst  *time.Time
	}{
		{"start", &q.Start},
		{"end", &q.End},
	} {
		raw := v.Get(f.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, errors.New(f.name + " must be an RFC3339 timestamp")
		}
		*f.dst = t.UTC()
	}
	return q, nil
}

// ListCards handles GET /cards
func (s *Server) ListCards(w http.ResponseWriter, r *http.Request) {
	var items []model.Item
	if s.store != nil {
		var err error
		items, err = s.store.ListItems(r.Context())
		if err != nil {
			s.logger.Error("list cards failed", "err", err)
			writeError(w, "Failed to list cards", http.StatusInternalServerError)
			return
		}
	} else {
		items = s.gen.Catalog().Items()
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, CardsResponse{Cards: items, Count: len(items)})
}

// CardHistory handles GET /cards/{cardID}/history?days=N
// Served from the store when one is configured, generated otherwise.
func (s *Server) CardHistory(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardID")

	days := DefaultHistoryDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = min(n, feed.MaxHistoryDays)
	}

	prices, err := s.history(r, cardID, days)
	switch {
	case errors.Is(err, feed.ErrUnknownCard), errors.Is(err, store.ErrNotFound):
		writeError(w, "card not found: "+cardID, http.StatusNotFound)
		return
	case err != nil:
		s.logger.Error("card history failed", "card_id", cardID, "err", err)
		writeError(w, "Failed to load card history", http.StatusInternalServerError)
		return
	}
	if prices == nil {
		prices = []model.PricePoint{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{CardID: cardID, Days: days, Prices: prices})
}

func (s *Server) history(r *http.Request, cardID string, days int) ([]model.PricePoint, error) {
	if s.store == nil {
		return s.gen.History(cardID, days)
	}
	ctx := r.Context()
	if _, err := s.store.GetItem(ctx, cardID); err != nil {
		return nil, err
	}
	// Hour-aligned so repeated requests share a cache entry.
	since := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour).Truncate(time.Hour)
	return s.store.CardHistory(ctx, cardID, since)
}

// Stats handles GET /stats
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, "stats require a configured database", http.StatusNotFound)
		return
	}
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", "err", err)
		writeError(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func countServed(channel string, prices []model.PricePoint) {
	metrics.RecordsServed.WithLabelValues(channel).Add(float64(len(prices)))
	for _, p := range prices {
		if p.IsCorrupted {
			metrics.RecordsCorrupted.WithLabelValues(p.Corruption).Inc()
		}
	}
}
