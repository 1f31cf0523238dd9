// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dalemusser/mailcheck/httputil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultTimeout bounds each check when the caller passes no timeout.
const DefaultTimeout = 2 * time.Second

// Check is a single probe. It returns nil when healthy.
type Check func(ctx context.Context) error

// Response is the JSON body written by Handler.
type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler runs every check concurrently, each under timeout, and answers 200
// with status "ok" or 503 with status "error". With no checks it is a plain
// liveness probe.
func Handler(checks map[string]Check, timeout time.Duration, logger *zap.Logger) http.Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(checks) == 0 {
			httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok"})
			return
		}

		results := run(r.Context(), checks, timeout)

		resp := Response{Status: "ok", Checks: make(map[string]string, len(results))}
		status := http.StatusOK
		for name, err := range results {
			if err == nil {
				resp.Checks[name] = "ok"
				continue
			}
			resp.Status = "error"
			resp.Checks[name] = "error: " + err.Error()
			status = http.StatusServiceUnavailable
			logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
		}
		httputil.WriteJSON(w, status, resp)
	})
}

func run(ctx context.Context, checks map[string]Check, timeout time.Duration) map[string]error {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]error, len(checks))
	)
	for name, check := range checks {
		if check == nil {
			mu.Lock()
			results[name] = nil
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			err := check(cctx)
			mu.Lock()
			results[name] = err
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()
	return results
}

// Mount attaches Handler at /health.
func Mount(r chi.Router, checks map[string]Check, logger *zap.Logger) {
	MountAt(r, "/health", checks, logger)
}

// MountAt attaches Handler at path, e.g. "/ready".
func MountAt(r chi.Router, path string, checks map[string]Check, logger *zap.Logger) {
	r.Method(http.MethodGet, path, Handler(checks, DefaultTimeout, logger))
}
