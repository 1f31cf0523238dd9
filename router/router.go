// router/router.go
package router

import (
	"github.com/dalemusser/mailcheck/config"
	"github.com/dalemusser/mailcheck/logging"
	"github.com/dalemusser/mailcheck/metrics"
	"github.com/dalemusser/mailcheck/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// New creates a chi.Router wired with the standard middleware stack:
//   - RequestID, RealIP
//   - Recoverer (panic → JSON 500)
//   - API security headers
//   - CORS, when enabled
//   - body size limit (MaxRequestBodyBytes)
//   - response compression, when enabled
//   - HTTP metrics, when enabled
//   - request logging (probes and the metrics path log at debug)
//   - JSON NotFound / MethodNotAllowed
//
// Routes are mounted by the caller.
func New(coreCfg *config.CoreConfig, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.Recoverer(logger))
	r.Use(middleware.APIHeaders)
	r.Use(middleware.CORSFromConfig(&coreCfg.CORS))
	r.Use(middleware.LimitBodySize(coreCfg.MaxRequestBodyBytes))
	r.Use(middleware.Compress(coreCfg.EnableCompression))

	if coreCfg.EnableMetrics {
		r.Use(metrics.HTTPMetrics)
	}

	quiet := []string{"/health", "/version"}
	if coreCfg.EnableMetrics {
		quiet = append(quiet, coreCfg.MetricsPath)
	}
	r.Use(logging.RequestLogger(logger, quiet...))

	r.NotFound(middleware.NotFoundHandler(logger))
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler(logger))

	return r
}
