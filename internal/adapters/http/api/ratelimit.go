package api

import (
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"

	"github.com/okian/profilequest/pkg/metrics"
)

type window struct {
	start time.Time
	count int
}

// RateLimiter is a fixed-window request counter per client key. Idle
// clients are forgotten after a window; at most maxClients are tracked.
type RateLimiter struct {
	mu      sync.Mutex
	clients *expirable.LRU[string, *window]
	limit   int
	window  time.Duration
	clock   clockwork.Clock
}

// NewRateLimiter allows limit requests per window for each key.
func NewRateLimiter(limit int, per time.Duration, maxClients int, clock clockwork.Clock) *RateLimiter {
	return &RateLimiter{
		clients: expirable.NewLRU[string, *window](maxClients, nil, per),
		limit:   limit,
		window:  per,
		clock:   clock,
	}
}

// Allow records a request for key. When the budget is spent it returns
// false and the time until the window resets.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	w, ok := l.clients.Get(key)
	if !ok || now.Sub(w.start) >= l.window {
		w = &window{start: now}
		l.clients.Add(key, w)
	}
	if w.count >= l.limit {
		return false, w.start.Add(l.window).Sub(now)
	}
	w.count++
	return true, 0
}

func (s *Server) rateLimit(scope string, l *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, retry := l.Allow(scope + "|" + clientIP(r, s.opts.trustedProxies))
		if !ok {
			metrics.RecordRateLimited(scope)
			secs := int(retry.Round(time.Second) / time.Second)
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			writeError(w, http.StatusTooManyRequests, "rate_limited", nil)
			return
		}
		next(w, r)
	}
}

// clientIP returns the connecting address, or the last X-Forwarded-For hop
// when the connection comes from a trusted proxy.
func clientIP(r *http.Request, trustedProxies []string) string {
	remote, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remote = r.RemoteAddr
	}
	if !slices.Contains(trustedProxies, remote) {
		return remote
	}
	fwd := r.Header.Get("X-Forwarded-For")
	if fwd == "" {
		return remote
	}
	hops := strings.Split(fwd, ",")
	if last := strings.TrimSpace(hops[len(hops)-1]); last != "" {
		return last
	}
	return remote
}
