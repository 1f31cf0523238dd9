// middleware/compress.go
package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// compressionLevel is gzip/deflate level 5: a reasonable speed/size balance
// for JSON bodies.
const compressionLevel = 5

// Compress gzip/deflate-encodes JSON and plain-text responses when the client
// accepts it. enabled=false returns an identity middleware.
func Compress(enabled bool) func(next http.Handler) http.Handler {
	if !enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return chimw.Compress(compressionLevel, "application/json", "text/plain")
}
