package server

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/paperqa-go/internal/logging"
)

const (
	// defaultRateLimit is the per-IP requests/second on document routes.
	defaultRateLimit = 10
	// defaultRateBurst is the per-IP burst on document routes.
	defaultRateBurst = 20
	// limiterIdle is how long an IP's bucket survives without requests.
	limiterIdle = 5 * time.Minute
)

// ipLimiter is one IP's token bucket and when it was last used.
type ipLimiter struct {
	// limiter is the per-IP token bucket.
	limiter *rate.Limiter
	// lastSeen is refreshed on every request from this IP.
	lastSeen time.Time
}

// rateLimiter enforces a per-IP token-bucket limit. Idle buckets are
// evicted every minute to bound memory.
type rateLimiter struct {
	// mu protects limiters.
	mu sync.Mutex
	// limiters maps remote IP to its bucket.
	limiters map[string]*ipLimiter
	// rps is the sustained rate per IP.
	rps rate.Limit
	// burst is the instantaneous burst per IP.
	burst int
	// log records eviction sweeps.
	log *slog.Logger
}

// newRateLimiter constructs a rateLimiter and starts its eviction goroutine,
// which exits when the returned stop function is called.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		limiters: make(map[string]*ipLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		log:      log,
	}

	stopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				rl.evict(time.Now().Add(-limiterIdle))
			}
		}
	}()

	var once sync.Once
	return rl, func() { once.Do(func() { close(stopCh) }) }
}

// allow reports whether ip may make a request now.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()
	return entry.limiter.Allow()
}

// evict removes buckets last seen before cutoff.
func (rl *rateLimiter) evict(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	before := len(rl.limiters)
	for ip, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
		}
	}
	if n := before - len(rl.limiters); n > 0 {
		rl.log.Debug("ratelimit: evicted idle buckets", slog.Int("count", n))
	}
}

// middleware rejects requests over the limit with 429 and Retry-After.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			writeError(r.Context(), w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the remote IP without its port. X-Forwarded-For is not
// trusted.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if i := strings.LastIndexByte(r.RemoteAddr, ':'); i >= 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}
