// app/app.go
package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/mailcheck/config"
	"github.com/dalemusser/mailcheck/httputil"
	"github.com/dalemusser/mailcheck/logging"
	"github.com/dalemusser/mailcheck/metrics"
	"github.com/dalemusser/mailcheck/server"
	"go.uber.org/zap"
)

// Hooks are the integration points a service provides to Run.
type Hooks struct {
	// Name is used only for logging.
	Name string

	// LoadConfig returns the validated core config, typically via
	// config.Load.
	LoadConfig func(logger *zap.Logger) (*config.CoreConfig, error)

	// BuildHandler constructs the final http.Handler: router, middleware
	// and routes. ctx is canceled at shutdown and may own background work.
	BuildHandler func(ctx context.Context, core *config.CoreConfig, logger *zap.Logger) (http.Handler, error)
}

// Run executes the startup sequence:
//
//  1. Bootstrap logger
//  2. Load config (Hooks.LoadConfig)
//  3. Build final logger from config
//  4. Register metrics, when enabled
//  5. Wire shutdown signals to a context
//  6. Build the HTTP handler (Hooks.BuildHandler)
//  7. Serve until shutdown
func Run(ctx context.Context, hooks Hooks) error {
	if hooks.LoadConfig == nil || hooks.BuildHandler == nil {
		return errors.New("app: LoadConfig and BuildHandler are required")
	}

	bootstrap := logging.BootstrapLogger()
	defer func() { _ = bootstrap.Sync() }()

	coreCfg, err := hooks.LoadConfig(bootstrap)
	if err != nil {
		bootstrap.Error("config load failed", zap.Error(err))
		return err
	}
	bootstrap.Info("config loaded",
		zap.String("env", coreCfg.Env),
		zap.String("log_level", coreCfg.LogLevel),
	)

	logger, err := logging.BuildLogger(coreCfg.LogLevel, coreCfg.Env)
	if err != nil {
		bootstrap.Error("logger build failed", zap.Error(err))
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("logger initialized", zap.String("app", hooks.Name))
	if ce := logger.Check(zap.DebugLevel, "effective config"); ce != nil {
		ce.Write(zap.String("config", coreCfg.Dump()))
	}
	httputil.SetLogger(logger)

	if coreCfg.EnableMetrics {
		metrics.RegisterDefault(logger)
	}

	ctx, cancel := server.WithShutdownSignals(ctx, logger)
	defer cancel()

	handler, err := hooks.BuildHandler(ctx, coreCfg, logger)
	if err != nil {
		logger.Error("handler build failed", zap.Error(err))
		return err
	}

	if err := server.ListenAndServeWithContext(ctx, coreCfg, handler, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
