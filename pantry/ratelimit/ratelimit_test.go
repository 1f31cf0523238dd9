package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(perSecond float64, burst int, ttl time.Duration) (*KeyLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	kl := NewKeyLimiter(perSecond, burst, ttl)
	kl.now = clock.Now
	return kl, clock
}

func TestKeyLimiter_Allow(t *testing.T) {
	kl, clock := newTestLimiter(1, 2, time.Minute)

	ok, _ := kl.Allow("a")
	assert.True(t, ok)
	ok, _ = kl.Allow("a")
	assert.True(t, ok)

	ok, wait := kl.Allow("a")
	assert.False(t, ok, "burst exhausted")
	assert.InDelta(t, time.Second, wait, float64(10*time.Millisecond))

	ok, _ = kl.Allow("b")
	assert.True(t, ok, "keys are independent")

	clock.Advance(time.Second)
	ok, _ = kl.Allow("a")
	assert.True(t, ok, "refilled after one interval")
}

func TestKeyLimiter_Sweep(t *testing.T) {
	kl, clock := newTestLimiter(1, 1, time.Minute)
	kl.Allow("a")
	clock.Advance(30 * time.Second)
	kl.Allow("b")
	require.Equal(t, 2, kl.Size())

	clock.Advance(45 * time.Second)
	kl.Sweep()
	assert.Equal(t, 1, kl.Size(), "only the idle key is dropped")
}

func TestKeyLimiter_RunStops(t *testing.T) {
	kl := NewKeyLimiter(1, 1, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		kl.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMiddleware(t *testing.T) {
	kl, _ := newTestLimiter(1, 1, time.Minute)
	h := Middleware(kl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/check?email=a@b.co", nil)
	req.RemoteAddr = "192.0.2.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"rate_limited"`)

	other := httptest.NewRequest(http.MethodGet, "/v1/check?email=a@b.co", nil)
	other.RemoteAddr = "192.0.2.2:5555"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIPKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", IPKey(req))

	req.RemoteAddr = "198.51.100.7"
	assert.Equal(t, "198.51.100.7", IPKey(req))
}
