// Package ratelimit provides per-client token bucket rate limiting for HTTP
// handlers.
package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/mailcheck/httputil"
	"golang.org/x/time/rate"
)

// KeyLimiter keeps one token bucket per key (usually the client IP). Keys
// idle for longer than ttl are evicted.
type KeyLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyLimiter allows perSecond events per key with the given burst.
func NewKeyLimiter(perSecond float64, burst int, ttl time.Duration) *KeyLimiter {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &KeyLimiter{
		limiters: make(map[string]*entry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Allow consumes one token for key. It returns false and the time until a
// token is available when the bucket is empty.
func (kl *KeyLimiter) Allow(key string) (bool, time.Duration) {
	kl.mu.Lock()
	now := kl.now()
	e, ok := kl.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(kl.limit, kl.burst)}
		kl.limiters[key] = e
	}
	e.lastSeen = now
	kl.mu.Unlock()

	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Size returns the number of tracked keys.
func (kl *KeyLimiter) Size() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.limiters)
}

// Sweep drops keys idle for longer than the ttl.
func (kl *KeyLimiter) Sweep() {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	now := kl.now()
	for key, e := range kl.limiters {
		if now.Sub(e.lastSeen) > kl.ttl {
			delete(kl.limiters, key)
		}
	}
}

// Run sweeps idle keys every ttl until ctx is done.
func (kl *KeyLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(kl.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			kl.Sweep()
		}
	}
}

// IPKey returns the client address without port. It expects RemoteAddr to
// have been rewritten by a trusted RealIP middleware when behind a proxy.
func IPKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// Middleware rejects requests over the per-IP budget with a JSON 429 and a
// Retry-After header in whole seconds.
func Middleware(kl *KeyLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := kl.Allow(IPKey(r))
			if !ok {
				secs := int(math.Ceil(wait.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				httputil.JSONError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
