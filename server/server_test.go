package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/dalemusser/mailcheck/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestServe_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := &config.CoreConfig{}
	cfg.HTTP.ShutdownTimeout = time.Second
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, newServer(cfg, h, zap.NewNop()), ln, nil, zap.NewNop()) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestListenAndServeWithContext_Args(t *testing.T) {
	h := http.NotFoundHandler()
	assert.Error(t, ListenAndServeWithContext(context.Background(), nil, h, nil))
	assert.Error(t, ListenAndServeWithContext(context.Background(), &config.CoreConfig{}, nil, nil))
}

func TestWithShutdownSignals_ParentCancel(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := WithShutdownSignals(parent, nil)
	defer cancel()

	cancelParent()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled with parent")
	}
}

func TestHTTPRedirectHandler(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		wantCode int
		wantLoc  string
	}{
		{"default port", "example.com:8080", 443, http.StatusMovedPermanently, "https://example.com/v1/check?email=a%40b.co"},
		{"custom port", "example.com", 8443, http.StatusMovedPermanently, "https://example.com:8443/v1/check?email=a%40b.co"},
		{"ipv6", "[::1]:8080", 8443, http.StatusMovedPermanently, "https://[::1]:8443/v1/check?email=a%40b.co"},
		{"scheme in host", "evil.com://x", 443, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/check?email=a%40b.co", nil)
			req.Host = tt.host
			rec := httptest.NewRecorder()
			httpRedirectHandler(tt.port).ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
		})
	}
}

func TestRedirectHost(t *testing.T) {
	host, ok := redirectHost("[::1]", 443)
	assert.True(t, ok)
	assert.Equal(t, "[::1]", host)

	_, ok = redirectHost("", 443)
	assert.False(t, ok)
	_, ok = redirectHost("bad\nhost", 443)
	assert.False(t, ok)
}

func TestLoadTLS(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeSelfSigned(t, dir)

	cfg := &config.CoreConfig{Env: "prod"}
	cfg.HTTP.CertFile = certFile
	cfg.HTTP.KeyFile = keyFile

	tlsCfg, err := loadTLS(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, tlsCfg.Certificates, 1)

	t.Run("missing file", func(t *testing.T) {
		bad := *cfg
		bad.HTTP.CertFile = filepath.Join(dir, "nope.pem")
		_, err := loadTLS(&bad, zap.NewNop())
		assert.ErrorContains(t, err, "does not exist")
	})

	t.Run("loose key permissions", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("unix permissions only")
		}
		require.NoError(t, os.Chmod(keyFile, 0o644))

		_, err := loadTLS(cfg, zap.NewNop())
		assert.ErrorContains(t, err, "production security")

		dev := *cfg
		dev.Env = "dev"
		_, err = loadTLS(&dev, zap.NewNop())
		assert.NoError(t, err)
	})
}

func writeSelfSigned(t *testing.T, dir string) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}
