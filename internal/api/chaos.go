package api

import (
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/atmx/price-feed/internal/metrics"
)

const (
	// clientIdleTTL is how long an idle client's bucket is kept.
	clientIdleTTL = 3 * time.Minute
	// pruneThreshold is the bucket count above which idle buckets are swept.
	pruneThreshold = 10_000
)

// ClientLimiter hands out one token bucket per client address, refilling
// perMinute tokens a minute with a burst of the same size.
type ClientLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiter creates a limiter allowing perMinute requests a minute
// per client.
func NewClientLimiter(perMinute int) *ClientLimiter {
	return &ClientLimiter{
		clients: make(map[string]*client),
		limit:   rate.Every(time.Minute / time.Duration(max(perMinute, 1))),
		burst:   max(perMinute, 1),
		now:     time.Now,
	}
}

// Allow reports whether the client identified by key may make a request now.
func (l *ClientLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= pruneThreshold {
			l.prune(now)
		}
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *ClientLimiter) prune(now time.Time) {
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > clientIdleTTL {
			delete(l.clients, key)
		}
	}
}

// RateLimit rejects clients that exceed l with 429.
func RateLimit(l *ClientLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientKey(r)) {
				metrics.ChaosEvents.WithLabelValues("rate_limited").Inc()
				w.Header().Set("Retry-After", strconv.Itoa(60))
				writeError(w, "Too many requests from this IP, please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey is the request's client address without the port. RealIP has
// already replaced RemoteAddr when a proxy header is present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Latency delays every request by a uniform duration in [lo, hi). A
// non-positive hi disables it.
func Latency(lo, hi time.Duration, rnd func() float64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if hi <= 0 {
			return next
		}
		lo = min(max(lo, 0), hi)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			delay := lo + time.Duration(rnd()*float64(hi-lo))
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-r.Context().Done():
				timer.Stop()
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Outage fails a fraction of requests with 503. A non-positive fraction
// disables it.
func Outage(fraction float64, rnd func() float64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if fraction <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rnd() < fraction {
				metrics.ChaosEvents.WithLabelValues("outage").Inc()
				writeError(w, "The service is temporarily unavailable. Please try again later.", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// defaultRand is the process-wide jitter source for Latency and Outage.
func defaultRand() float64 { return rand.Float64() }
