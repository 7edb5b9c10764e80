// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/vidgrab/internal/cache"
	"github.com/ManuGH/vidgrab/internal/config"
	"github.com/ManuGH/vidgrab/internal/extractor"
	"github.com/ManuGH/vidgrab/internal/log"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLauncher struct{}

func (stubLauncher) Launch(_ context.Context, inv extractor.Invocation, sink extractor.Sink) (extractor.Handle, error) {
	sink.Progress(50)
	p := filepath.Join(inv.Workspace, "youtube_abc.mp4")
	if err := os.WriteFile(p, []byte("payload"), 0o600); err != nil {
		return nil, err
	}
	return stubHandle{res: extractor.Result{Artifacts: []string{p}}}, nil
}

type stubHandle struct{ res extractor.Result }

func (h stubHandle) Wait() (extractor.Result, error) { return h.res, nil }
func (stubHandle) Stop()                             {}
func (stubHandle) PID() int                          { return 1 }

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	// Any resolvable executable keeps the extractor check healthy.
	bin, err := os.Executable()
	require.NoError(t, err)
	cfg.Extractor.Bin = bin
	cfg.Workspace.Root = t.TempDir()
	cfg.Cookies = config.CookiesConfig{}
	cfg.RateLimit.Enabled = false
	return cfg
}

func buildRuntime(t *testing.T, cfg config.AppConfig) *Runtime {
	t.Helper()
	rt, err := Build(context.Background(), cfg, stubLauncher{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func postDownload(t *testing.T, h http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/download",
		strings.NewReader(`{"url":"https://www.youtube.com/watch?v=abc","quality":"720"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuild_ServesDownloads(t *testing.T) {
	rt := buildRuntime(t, testConfig(t))

	rec := postDownload(t, rt.Server.Handler())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "payload", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.IsType(t, &cache.MemoryCache{}, rt.Cache)

	ready := httptest.NewRecorder()
	rt.Server.Handler().ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, ready.Code, ready.Body.String())
}

func TestRuntime_ApplyReloadsCookies(t *testing.T) {
	cfg := testConfig(t)
	rt := buildRuntime(t, cfg)

	next := cfg
	next.Cookies = config.CookiesConfig{Path: filepath.Join(t.TempDir(), "cookies.txt"), Required: true}
	next.Probe.CacheTTL = time.Minute
	next.Log.Level = "debug"
	rt.Apply(next)
	t.Cleanup(func() { _ = log.SetLevel("info") })

	assert.Equal(t, next.Cookies.Path, rt.Config().Cookies.Path)

	rec := postDownload(t, rt.Server.Handler())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "cookies.txt missing\n", rec.Body.String())

	ready := httptest.NewRecorder()
	rt.Server.Handler().ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, ready.Code)
	assert.Contains(t, ready.Body.String(), `"degraded"`, "missing cookies degrade readiness")
}

func TestBuild_UsesRedisWhenConfigured(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Cache.RedisAddr = mr.Addr()

	rt := buildRuntime(t, cfg)
	assert.IsType(t, &cache.RedisCache{}, rt.Cache)
	assert.NoError(t, rt.Cache.Ping(context.Background()))
}

func TestBuild_RedisUnavailableFallsBackToMemory(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t)
	cfg.Cache.RedisAddr = addr

	rt := buildRuntime(t, cfg)
	assert.IsType(t, &cache.MemoryCache{}, rt.Cache)
}
