// Package version reports build information for the mailcheck binary.
package version

import (
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/dalemusser/mailcheck/httputil"
	"github.com/go-chi/chi/v5"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/dalemusser/mailcheck/pantry/version.Version=1.0.0 \
//	                   -X github.com/dalemusser/mailcheck/pantry/version.Commit=abc123 \
//	                   -X github.com/dalemusser/mailcheck/pantry/version.BuildTime=2024-01-15T10:30:00Z"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the JSON shape served at /version.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	OS        string `json:"os" yaml:"os"`
	Arch      string `json:"arch" yaml:"arch"`
}

// Get returns the build info. Values not set through ldflags are filled from
// the module's embedded VCS stamps when available (go install builds).
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(&info, bi)
	}
	return info
}

func fillFromBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && s.Value != "" {
				info.Commit = s.Value
				if len(info.Commit) > 12 {
					info.Commit = info.Commit[:12]
				}
			}
		case "vcs.time":
			if info.BuildTime == "unknown" && s.Value != "" {
				info.BuildTime = s.Value
			}
		}
	}
}

// Handler serves Get as JSON.
func Handler() http.Handler {
	info := Get()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, info)
	})
}

// Mount attaches Handler at /version.
func Mount(r chi.Router) {
	r.Method(http.MethodGet, "/version", Handler())
}

// String returns e.g. "1.2.3 (abc123, built 2024-01-15T10:30:00Z)", or just
// the version when nothing else is known.
func String() string {
	info := Get()
	if info.Commit == "unknown" && info.BuildTime == "unknown" {
		return info.Version
	}
	return info.Version + " (" + info.Commit + ", built " + info.BuildTime + ")"
}
