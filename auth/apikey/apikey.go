// auth/apikey/apikey.go
package apikey

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dalemusser/mailcheck/httputil"
	"go.uber.org/zap"
)

// Options control how the API-key middleware behaves.
type Options struct {
	// Realm is used in the WWW-Authenticate header.
	Realm string

	// CookieName, if set, lets browser flows (e.g. /debug/pprof pages) keep
	// the key in an HttpOnly cookie after one authenticated request.
	CookieName string
}

// Require enforces a static API key, looked up in order from
//  1. Authorization: Bearer <token>
//  2. X-API-Key header
//  3. api_key query parameter
//  4. the cookie named by Options.CookieName
//
// An empty expected key rejects every request.
func Require(expected string, opts Options, logger *zap.Logger) func(next http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	if logger == nil {
		logger = zap.NewNop()
	}
	realm := strings.TrimSpace(opts.Realm)
	if realm == "" {
		realm = "mailcheck"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" {
				logger.Warn("apikey.Require used with empty expected key")
				httputil.JSONError(w, http.StatusInternalServerError, "misconfigured", "server misconfigured")
				return
			}

			key, ok := keyFromRequest(r, opts.CookieName)
			if !ok || subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
				logger.Warn("API key unauthorized",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("remote_ip", r.RemoteAddr),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="`+realm+`"`)
				httputil.JSONError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid API key")
				return
			}

			if opts.CookieName != "" {
				http.SetCookie(w, &http.Cookie{
					Name:     opts.CookieName,
					Value:    expected,
					Path:     "/",
					Secure:   true,
					HttpOnly: true,
					SameSite: http.SameSiteStrictMode,
				})
			}

			next.ServeHTTP(w, r)
		})
	}
}

func keyFromRequest(r *http.Request, cookieName string) (string, bool) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > len("bearer ") && strings.EqualFold(auth[:len("bearer ")], "bearer ") {
		if token := strings.TrimSpace(auth[len("bearer "):]); token != "" {
			return token, true
		}
	}
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, true
	}
	if key := strings.TrimSpace(r.URL.Query().Get("api_key")); key != "" {
		return key, true
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil {
			if val := strings.TrimSpace(c.Value); val != "" {
				return val, true
			}
		}
	}
	return "", false
}
