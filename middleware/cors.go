// middleware/cors.go
package middleware

import (
	"net/http"

	"github.com/dalemusser/mailcheck/config"
	"github.com/go-chi/cors"
)

// CORSFromConfig returns a go-chi/cors middleware built from cfg. When CORS
// is disabled (or cfg is nil) it returns an identity middleware, so it is
// safe to call unconditionally:
//
//	r.Use(middleware.CORSFromConfig(&coreCfg.CORS))
func CORSFromConfig(cfg *config.CORSConfig) func(next http.Handler) http.Handler {
	if cfg == nil || !cfg.EnableCORS {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		ExposedHeaders:   cfg.CORSExposedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAge,
	})
}
