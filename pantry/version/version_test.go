package version

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	}

	t.Run("fills defaults", func(t *testing.T) {
		info := Info{Version: "dev", Commit: "unknown", BuildTime: "unknown"}
		fillFromBuildInfo(&info, bi)
		assert.Equal(t, "v1.4.0", info.Version)
		assert.Equal(t, "0123456789ab", info.Commit)
		assert.Equal(t, "2026-01-02T03:04:05Z", info.BuildTime)
	})

	t.Run("ldflags win", func(t *testing.T) {
		info := Info{Version: "2.0.0", Commit: "abc", BuildTime: "then"}
		fillFromBuildInfo(&info, bi)
		assert.Equal(t, Info{Version: "2.0.0", Commit: "abc", BuildTime: "then"}, info)
	})

	t.Run("devel main version ignored", func(t *testing.T) {
		info := Info{Version: "dev", Commit: "unknown", BuildTime: "unknown"}
		fillFromBuildInfo(&info, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
		assert.Equal(t, "dev", info.Version)
	})
}

func TestMount(t *testing.T) {
	r := chi.NewRouter()
	Mount(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, runtime.Version(), got.GoVersion)
	assert.Equal(t, runtime.GOOS, got.OS)
	assert.NotEmpty(t, got.Version)
}
