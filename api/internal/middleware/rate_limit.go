package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"frontdesk-queue-system/shared/httpx"
)

// RateLimitMiddleware throttles requests per client IP. Only requests Match
// accepts are counted; everything else passes through.
type RateLimitMiddleware struct {
	Limiter *IPRateLimiter
	Match   func(*http.Request) bool
}

func (m RateLimitMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Limiter == nil || (m.Match != nil && !m.Match(r)) {
			next.ServeHTTP(w, r)
			return
		}
		key := httpx.ClientIP(r)
		if key == "" {
			key = "unknown"
		}
		if ok, retryAfter := m.Limiter.Allow(key); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			httpx.WriteError(w, r, http.StatusTooManyRequests, "RESOURCE_EXHAUSTED", "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type IPRateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIPRateLimiter(rps float64, burst int, ttl time.Duration) *IPRateLimiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &IPRateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
}

// Allow consumes a token for key. When refused it also reports how long
// until the next token.
func (l *IPRateLimiter) Allow(key string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanup(now)

	client, ok := l.clients[key]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = client
	}
	client.lastSeen = now

	res := client.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *IPRateLimiter) cleanup(now time.Time) {
	for key, client := range l.clients {
		if now.Sub(client.lastSeen) > l.ttl {
			delete(l.clients, key)
		}
	}
}
