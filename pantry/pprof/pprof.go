// Package pprof exposes the runtime profiler over HTTP.
package pprof

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Mount attaches /debug/pprof/* and /debug/vars. Mount it only behind an
// internal listener or auth; profiles leak memory contents and can be costly.
func Mount(r chi.Router) {
	r.Mount("/debug", chimw.Profiler())
}
