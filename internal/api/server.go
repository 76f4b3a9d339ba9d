// Package api serves the price feed over HTTP: latest snapshots, streaming
// bulk exports, card listings and histories, and a WebSocket of live
// snapshots, behind middleware that imitates a flaky upstream.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atmx/price-feed/internal/config"
	"github.com/atmx/price-feed/internal/feed"
	"github.com/atmx/price-feed/internal/metrics"
	"github.com/atmx/price-feed/internal/store"
)

// Options configures a Server. Zero values select defaults; a nil Store
// serves everything from the generator.
type Options struct {
	Store     store.Store
	Hub       *Hub
	BatchSize int
	Chaos     config.ChaosConfig
	Logger    *slog.Logger
	// Rand replaces the jitter source of the chaos middleware.
	Rand func() float64
}

// Server holds the handlers' dependencies.
type Server struct {
	feed      feed.Feed
	gen       *feed.Generator
	store     store.Store
	hub       *Hub
	batchSize int
	chaos     config.ChaosConfig
	rand      func() float64
	started   time.Time
	logger    *slog.Logger
}

// NewServer creates a server answering feed requests from f. gen backs the
// catalog and the generated card histories.
func NewServer(f feed.Feed, gen *feed.Generator, opts Options) *Server {
	s := &Server{
		feed:      f,
		gen:       gen,
		store:     opts.Store,
		hub:       opts.Hub,
		batchSize: opts.BatchSize,
		chaos:     opts.Chaos,
		rand:      opts.Rand,
		started:   time.Now(),
		logger:    opts.Logger,
	}
	if s.batchSize <= 0 {
		s.batchSize = config.DefaultBulkBatchSize
	}
	if s.rand == nil {
		s.rand = defaultRand
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Handler builds the HTTP router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors)
	r.Use(middleware.Compress(5, "application/json"))
	r.Use(Latency(s.chaos.MinLatency, s.chaos.MaxLatency, s.rand))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, "The requested resource was not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	r.Get("/health", s.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/feed", func(r chi.Router) {
		if s.chaos.RateLimit > 0 {
			r.Use(RateLimit(NewClientLimiter(s.chaos.RateLimit)))
		}
		r.Use(Outage(s.chaos.OutageRate, s.rand))

		r.Get("/latest", s.Latest)
		r.Get("/bulk", s.Bulk)
		if s.hub != nil {
			r.Get("/ws", s.hub.HandleWS)
		}
	})

	r.Get("/cards", s.ListCards)
	r.Get("/cards/{cardID}/history", s.CardHistory)
	r.Get("/stats", s.Stats)

	return r
}

// cors allows cross-origin reads from browser dashboards.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
