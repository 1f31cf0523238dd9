// server/server.go
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dalemusser/mailcheck/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ShutdownGrace is the grace period used when none is configured.
const ShutdownGrace = 15 * time.Second

// WithShutdownSignals returns a context canceled on SIGINT or SIGTERM. The
// returned cancel also releases the signal handler.
func WithShutdownSignals(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			if logger != nil {
				logger.Info("shutdown signal received", zap.Any("signal", sig))
			}
			cancel()
		case <-ctx.Done():
		}
		// sigCh is left open; nothing reads it after Stop.
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// ListenAndServeWithContext serves handler over plain HTTP, or over HTTPS
// with the configured certificate pair plus an HTTP listener that redirects
// to HTTPS. It blocks until ctx is canceled (graceful shutdown bounded by
// cfg.HTTP.ShutdownTimeout) or a listener fails.
func ListenAndServeWithContext(
	ctx context.Context,
	cfg *config.CoreConfig,
	handler http.Handler,
	logger *zap.Logger,
) error {
	if cfg == nil {
		return errors.New("ListenAndServeWithContext: cfg is nil")
	}
	if handler == nil {
		return errors.New("ListenAndServeWithContext: handler is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpAddr := ":" + strconv.Itoa(cfg.HTTP.HTTPPort)

	if !cfg.HTTP.UseHTTPS {
		ln, err := net.Listen("tcp", httpAddr)
		if err != nil {
			return fmt.Errorf("listen http %s: %w", httpAddr, err)
		}
		logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
		return serve(ctx, cfg, newServer(cfg, handler, logger), ln, nil, logger)
	}

	tlsCfg, err := loadTLS(cfg, logger)
	if err != nil {
		return err
	}

	httpsAddr := ":" + strconv.Itoa(cfg.HTTP.HTTPSPort)
	baseLn, err := net.Listen("tcp", httpsAddr)
	if err != nil {
		return fmt.Errorf("listen https %s: %w", httpsAddr, err)
	}
	redirectLn, err := net.Listen("tcp", httpAddr)
	if err != nil {
		_ = baseLn.Close()
		return fmt.Errorf("listen http %s: %w", httpAddr, err)
	}

	srv := newServer(cfg, handler, logger)
	srv.TLSConfig = tlsCfg
	aux := newServer(cfg, httpRedirectHandler(cfg.HTTP.HTTPSPort), logger)

	logger.Info("HTTPS server listening",
		zap.String("addr", baseLn.Addr().String()),
		zap.String("cert_file", cfg.HTTP.CertFile))
	logger.Info("HTTP → HTTPS redirect listening", zap.String("addr", redirectLn.Addr().String()))

	return serve(ctx, cfg, srv, tls.NewListener(baseLn, tlsCfg), &auxServer{srv: aux, ln: redirectLn}, logger)
}

type auxServer struct {
	srv *http.Server
	ln  net.Listener
}

func newServer(cfg *config.CoreConfig, handler http.Handler, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	// stdlib server errors (TLS handshakes, bad requests) go to zap at warn.
	if stdlog, err := zap.NewStdLogAt(logger, zapcore.WarnLevel); err == nil {
		srv.ErrorLog = stdlog
	}
	return srv
}

// serve runs srv on ln (and aux, if any) until ctx is done or either server
// fails.
func serve(ctx context.Context, cfg *config.CoreConfig, srv *http.Server, ln net.Listener, aux *auxServer, logger *zap.Logger) error {
	serveErr := make(chan error, 1)
	go func() { serveErr <- serveOn(srv, ln) }()

	// A nil channel never receives, which disables that case without aux.
	var auxErr chan error
	if aux != nil {
		auxErr = make(chan error, 1)
		go func() { auxErr <- serveOn(aux.srv, aux.ln) }()
	}

	shutdownAux := func(ctx context.Context) {
		if aux != nil {
			_ = aux.srv.Shutdown(ctx)
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down server…")
			// ctx is already canceled; the grace period gets its own deadline.
			grace := cfg.HTTP.ShutdownTimeout
			if grace <= 0 {
				grace = ShutdownGrace
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
			defer cancel()
			shutdownAux(shutdownCtx)
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			logger.Info("server stopped gracefully")
			return nil

		case err := <-serveErr:
			shutdownAux(context.Background())
			if err != nil {
				return fmt.Errorf("primary server error: %w", err)
			}
			return nil

		case err := <-auxErr:
			if err != nil {
				if closeErr := srv.Close(); closeErr != nil {
					logger.Error("failed to close primary server after redirect server failure", zap.Error(closeErr))
				}
				return fmt.Errorf("redirect server error: %w", err)
			}
			aux = nil
			auxErr = nil
		}
	}
}

func serveOn(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// loadTLS checks the certificate pair and builds the TLS config. A key file
// readable by group or others is a warning in dev and an error in prod.
func loadTLS(cfg *config.CoreConfig, logger *zap.Logger) (*tls.Config, error) {
	if err := validateTLSFiles(cfg.HTTP.CertFile, cfg.HTTP.KeyFile); err != nil {
		var perm *keyPermissionError
		if !errors.As(err, &perm) {
			return nil, err
		}
		if cfg.Env == "prod" {
			return nil, fmt.Errorf("production security: %w", err)
		}
		logger.Warn("TLS key file security warning (would block in prod)", zap.Error(err))
	}

	cert, err := tls.LoadX509KeyPair(cfg.HTTP.CertFile, cfg.HTTP.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS cert/key: %w", err)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}, nil
}

type keyPermissionError struct {
	path string
	perm os.FileMode
}

func (e *keyPermissionError) Error() string {
	return fmt.Sprintf("TLS key file %s has overly permissive permissions %o (recommended: 0600)", e.path, e.perm)
}

func validateTLSFiles(certFile, keyFile string) error {
	if _, err := statFile("certificate", certFile); err != nil {
		return err
	}
	keyInfo, err := statFile("key", keyFile)
	if err != nil {
		return err
	}
	// Unix permission bits are meaningless on Windows.
	if runtime.GOOS != "windows" && keyInfo.Mode().Perm()&0o077 != 0 {
		return &keyPermissionError{path: keyFile, perm: keyInfo.Mode().Perm()}
	}
	return nil
}

func statFile(kind, path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("TLS %s file does not exist: %s", kind, path)
		}
		return nil, fmt.Errorf("cannot access TLS %s file %s: %w", kind, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("TLS %s path is a directory, not a file: %s", kind, path)
	}
	return info, nil
}

// httpRedirectHandler sends every request to the same host and URI over
// HTTPS. Hosts and URIs carrying control characters are rejected.
func httpRedirectHandler(httpsPort int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, ok := redirectHost(r.Host, httpsPort)
		reqURI := r.URL.RequestURI()
		if !ok || !isValidRequestURI(reqURI) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, "https://"+host+reqURI, http.StatusMovedPermanently)
	})
}

// redirectHost swaps any port on host for httpsPort, omitting it when 443.
func redirectHost(host string, httpsPort int) (string, bool) {
	if host == "" || strings.Contains(host, "://") || strings.HasPrefix(host, "/") {
		return "", false
	}
	for _, c := range host {
		if c < 0x20 || c == 0x7f {
			return "", false
		}
	}

	name := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		name = h
	} else if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		name = host[1 : len(host)-1]
	}
	if name == "" {
		return "", false
	}
	if strings.Contains(name, ":") {
		if net.ParseIP(strings.SplitN(name, "%", 2)[0]) == nil {
			return "", false
		}
		name = "[" + name + "]"
	}

	if httpsPort == 443 {
		return name, true
	}
	return name + ":" + strconv.Itoa(httpsPort), true
}

func isValidRequestURI(uri string) bool {
	for _, c := range uri {
		if (c < 0x20 && c != '\t') || c == 0x7f {
			return false
		}
	}
	return true
}
