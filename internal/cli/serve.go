package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/mailcheck/app"
	"github.com/dalemusser/mailcheck/auth/apikey"
	"github.com/dalemusser/mailcheck/config"
	"github.com/dalemusser/mailcheck/internal/checkapi"
	"github.com/dalemusser/mailcheck/metrics"
	"github.com/dalemusser/mailcheck/pantry/health"
	"github.com/dalemusser/mailcheck/pantry/pprof"
	"github.com/dalemusser/mailcheck/pantry/ratelimit"
	"github.com/dalemusser/mailcheck/pantry/version"
	"github.com/dalemusser/mailcheck/router"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP check service",
		Long: `Run the HTTP check service.

Configuration is read from config.{yaml,yml,json,toml} in the working
directory, MAILCHECK_* environment variables (a .env file is loaded first),
and the flags below, in increasing precedence.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := app.Run(cmd.Context(), app.Hooks{
				Name: "mailcheck",
				LoadConfig: func(logger *zap.Logger) (*config.CoreConfig, error) {
					return config.Load(logger, cmd.Flags())
				},
				BuildHandler: BuildHandler,
			})
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			return nil
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// BuildHandler assembles the service: the standard router plus health,
// version, metrics, optional pprof and the /v1 check routes.
func BuildHandler(ctx context.Context, coreCfg *config.CoreConfig, logger *zap.Logger) (http.Handler, error) {
	r := router.New(coreCfg, logger)

	health.Mount(r, nil, logger)
	version.Mount(r)
	if coreCfg.EnableMetrics {
		r.Method(http.MethodGet, coreCfg.MetricsPath, metrics.Handler())
	}
	if coreCfg.EnablePprof {
		logger.Warn("pprof enabled at /debug/pprof")
		r.Group(func(r chi.Router) {
			r.Use(apikey.Require(coreCfg.AdminAPIKey, apikey.Options{CookieName: "mailcheck_admin"}, logger))
			pprof.Mount(r)
		})
	}

	api := checkapi.NewHandler(coreCfg.MaxBatchSize, logger).Routes()
	if coreCfg.RateLimit > 0 {
		limiter := ratelimit.NewKeyLimiter(coreCfg.RateLimit, coreCfg.RateLimitBurst, time.Hour)
		go limiter.Run(ctx)
		logger.Info("rate limiting /v1",
			zap.Float64("per_second", coreCfg.RateLimit),
			zap.Int("burst", coreCfg.RateLimitBurst))
		r.With(ratelimit.Middleware(limiter)).Mount("/v1", api)
	} else {
		r.Mount("/v1", api)
	}
	return r, nil
}
