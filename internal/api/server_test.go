// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/vidgrab/internal/bus"
	"github.com/ManuGH/vidgrab/internal/extractor"
	"github.com/ManuGH/vidgrab/internal/jobs"
	"github.com/ManuGH/vidgrab/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptFunc func(ctx context.Context, inv extractor.Invocation, sink extractor.Sink) (extractor.Result, error)

type fakeLauncher struct{ script scriptFunc }

func (l fakeLauncher) Launch(ctx context.Context, inv extractor.Invocation, sink extractor.Sink) (extractor.Handle, error) {
	h := &fakeHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.res, h.err = l.script(ctx, inv, sink)
	}()
	return h, nil
}

type fakeHandle struct {
	done chan struct{}
	res  extractor.Result
	err  error
}

func (h *fakeHandle) Wait() (extractor.Result, error) { <-h.done; return h.res, h.err }
func (h *fakeHandle) Stop()                           {}
func (h *fakeHandle) PID() int                        { return 1 }

func producing(name, payload string) scriptFunc {
	return func(_ context.Context, inv extractor.Invocation, sink extractor.Sink) (extractor.Result, error) {
		sink.Progress(10)
		sink.Log("[download] Destination: " + name)
		sink.Progress(60)
		p := filepath.Join(inv.Workspace, name)
		if err := os.WriteFile(p, []byte(payload), 0o600); err != nil {
			return extractor.Result{}, err
		}
		return extractor.Result{Artifacts: []string{p}}, nil
	}
}

// blocking reports start on started and waits for release or cancellation.
func blocking(started chan<- struct{}, release <-chan struct{}) scriptFunc {
	return func(ctx context.Context, inv extractor.Invocation, sink extractor.Sink) (extractor.Result, error) {
		close(started)
		select {
		case <-release:
			return producing("youtube_abc.mp4", "late")(ctx, inv, sink)
		case <-ctx.Done():
			return extractor.Result{}, context.Cause(ctx)
		}
	}
}

type fakeProber struct {
	mu  sync.Mutex
	got []extractor.ProbeRequest
	res extractor.ProbeResult
	err error
}

func (p *fakeProber) Probe(_ context.Context, req extractor.ProbeRequest) (extractor.ProbeResult, error) {
	p.mu.Lock()
	p.got = append(p.got, req)
	p.mu.Unlock()
	return p.res, p.err
}

type testEnv struct {
	srv    *Server
	orch   *jobs.Orchestrator
	prober *fakeProber
	root   string
}

func newTestEnv(t *testing.T, script scriptFunc, mutate ...func(*jobs.Config)) *testEnv {
	t.Helper()
	root := t.TempDir()
	cfg := jobs.Config{WorkspaceRoot: root}
	for _, m := range mutate {
		m(&cfg)
	}
	orch := jobs.New(cfg, fakeLauncher{script: script}, bus.New[int]("progress"), bus.New[string]("logs"))
	prober := &fakeProber{res: extractor.ProbeResult{Resolution: "720p", Codec: extractor.CodecH264, Size: "1.00 MB"}}
	srv := NewServer(Deps{
		Jobs:      orch,
		Prober:    prober,
		Cookies:   func() string { return cfg.CookiesPath },
		Heartbeat: time.Hour,
	})
	return &testEnv{srv: srv, orch: orch, prober: prober, root: root}
}

func (e *testEnv) do(t *testing.T, ctx context.Context, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

const ytBody = `{"url":"https://www.youtube.com/watch?v=abc","quality":"720p"}`

func TestInfo(t *testing.T) {
	env := newTestEnv(t, producing("x.mp4", "x"))

	rec := env.do(t, context.Background(), http.MethodPost, "/info", `{"url":"https://youtu.be/abc","quality":"1080","allowAV1":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res extractor.ProbeResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "720p", res.Resolution)

	require.Len(t, env.prober.got, 1)
	got := env.prober.got[0]
	assert.Equal(t, media.PlatformYouTube, got.Platform)
	assert.Equal(t, 1080, got.Quality.Height)
	assert.True(t, got.AllowAnyCodec)
	assert.Empty(t, got.CookiesPath)

	rec = env.do(t, context.Background(), http.MethodPost, "/info", `{"quality":"720"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.prober.err = extractor.ErrProbeFailed
	rec = env.do(t, context.Background(), http.MethodPost, "/info", ytBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "probe failed\n", rec.Body.String())
}

func TestDownload_StreamsAttachment(t *testing.T) {
	env := newTestEnv(t, producing("youtube_abc.mp4", "video-bytes"))

	rec := env.do(t, context.Background(), http.MethodPost, "/download", ytBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "video-bytes", rec.Body.String())
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=youtube_abc.mp4`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "11", rec.Header().Get("Content-Length"))

	entries, err := os.ReadDir(env.root)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace removed after streaming")
	assert.Equal(t, jobs.StateIdle, env.orch.State())
}

func TestDownload_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		script   scriptFunc
		mutate   func(*jobs.Config)
		body     string
		wantCode int
		wantBody string
	}{
		{
			name:     "missing url",
			script:   producing("x.mp4", "x"),
			body:     `{"quality":"720"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed json",
			script:   producing("x.mp4", "x"),
			body:     `{"url":`,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "extractor exit 1",
			script: func(context.Context, extractor.Invocation, extractor.Sink) (extractor.Result, error) {
				return extractor.Result{ExitCode: 1}, errors.Join(extractor.ErrExtractionFailed, &extractor.ExitError{Code: 1})
			},
			body:     ytBody,
			wantCode: http.StatusInternalServerError,
			wantBody: "download failed\n",
		},
		{
			name: "no output",
			script: func(context.Context, extractor.Invocation, extractor.Sink) (extractor.Result, error) {
				return extractor.Result{}, nil
			},
			body:     ytBody,
			wantCode: http.StatusInternalServerError,
			wantBody: "download failed: no output produced\n",
		},
		{
			name:   "cookies missing",
			script: producing("x.mp4", "x"),
			mutate: func(c *jobs.Config) {
				c.CookiesPath = "/nonexistent/cookies.txt"
				c.CookiesRequired = true
			},
			body:     ytBody,
			wantCode: http.StatusInternalServerError,
			wantBody: "cookies.txt missing\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mutate []func(*jobs.Config)
			if tt.mutate != nil {
				mutate = append(mutate, tt.mutate)
			}
			env := newTestEnv(t, tt.script, mutate...)
			rec := env.do(t, context.Background(), http.MethodPost, "/download", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
			assert.Empty(t, rec.Header().Get("Content-Disposition"))
			assert.Equal(t, jobs.StateIdle, env.orch.State())
		})
	}
}

func TestDownload_BusyWhileRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	env := newTestEnv(t, blocking(started, release))

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- env.do(t, context.Background(), http.MethodPost, "/download", ytBody) }()
	<-started

	rec := env.do(t, context.Background(), http.MethodPost, "/download", ytBody)
	assert.Equal(t, http.StatusConflict, rec.Code)

	status := env.do(t, context.Background(), http.MethodGet, "/status", "")
	var st statusResponse
	require.NoError(t, json.NewDecoder(status.Body).Decode(&st))
	assert.Equal(t, "running", st.State)
	require.NotNil(t, st.Job)
	assert.Equal(t, "youtube", st.Job.Platform)

	close(release)
	assert.Equal(t, http.StatusOK, (<-first).Code)
}

func TestDownload_ClientDisconnectCancels(t *testing.T) {
	started := make(chan struct{})
	env := newTestEnv(t, blocking(started, make(chan struct{})))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- env.do(t, ctx, http.MethodPost, "/download", ytBody) }()
	<-started
	cancel()

	rec := <-done
	assert.Empty(t, rec.Body.String(), "nothing is written to a departed client")
	assert.Equal(t, jobs.StateIdle, env.orch.State())
	entries, err := os.ReadDir(env.root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCancelEndpoint(t *testing.T) {
	started := make(chan struct{})
	env := newTestEnv(t, blocking(started, make(chan struct{})))

	assert.Equal(t, http.StatusNotFound, env.do(t, context.Background(), http.MethodDelete, "/download", "").Code)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- env.do(t, context.Background(), http.MethodPost, "/download", ytBody) }()
	<-started

	assert.Equal(t, http.StatusAccepted, env.do(t, context.Background(), http.MethodDelete, "/download", "").Code)
	rec := <-done
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "download cancelled\n", rec.Body.String())
}

// stallingWriter models a client that stopped reading: Write blocks until
// the write deadline passes, as a real connection would.
type stallingWriter struct {
	header  http.Header
	writing chan struct{}
	once    sync.Once

	mu       sync.Mutex
	code     int
	deadline time.Time
	changed  chan struct{}
}

func newStallingWriter() *stallingWriter {
	return &stallingWriter{
		header:  make(http.Header),
		writing: make(chan struct{}),
		changed: make(chan struct{}),
	}
}

func (w *stallingWriter) Header() http.Header { return w.header }

func (w *stallingWriter) WriteHeader(code int) {
	w.mu.Lock()
	w.code = code
	w.mu.Unlock()
}

func (w *stallingWriter) Write([]byte) (int, error) {
	w.once.Do(func() { close(w.writing) })
	for {
		w.mu.Lock()
		dl, changed := w.deadline, w.changed
		w.mu.Unlock()

		if !dl.IsZero() && !time.Now().Before(dl) {
			return 0, os.ErrDeadlineExceeded
		}
		var (
			timer   *time.Timer
			expired <-chan time.Time
		)
		if !dl.IsZero() {
			timer = time.NewTimer(time.Until(dl))
			expired = timer.C
		}
		select {
		case <-changed:
		case <-expired:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (w *stallingWriter) SetWriteDeadline(t time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deadline = t
	close(w.changed)
	w.changed = make(chan struct{})
	return nil
}

func (w *stallingWriter) serve(h http.Handler, body string) <-chan struct{} {
	done := make(chan struct{})
	req := httptest.NewRequest(http.MethodPost, "/download", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	go func() {
		defer close(done)
		h.ServeHTTP(w, req)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("%s did not return", what)
	}
}

func TestDownload_CancelUnblocksStalledDelivery(t *testing.T) {
	env := newTestEnv(t, producing("youtube_abc.mp4", "payload"))

	w := newStallingWriter()
	done := w.serve(env.srv.Handler(), ytBody)
	<-w.writing
	assert.Equal(t, jobs.StateFinalizing, env.orch.State())

	assert.Equal(t, http.StatusAccepted, env.do(t, context.Background(), http.MethodDelete, "/download", "").Code)
	waitDone(t, done, "stalled delivery")

	assert.Equal(t, jobs.StateIdle, env.orch.State())
	entries, err := os.ReadDir(env.root)
	require.NoError(t, err)
	assert.Empty(t, entries)

	rec := env.do(t, context.Background(), http.MethodPost, "/download", ytBody)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "payload", rec.Body.String())
}

func TestDownload_TimeoutBoundsStalledDelivery(t *testing.T) {
	env := newTestEnv(t, producing("youtube_abc.mp4", "payload"), func(c *jobs.Config) {
		c.Timeout = 200 * time.Millisecond
	})

	w := newStallingWriter()
	done := w.serve(env.srv.Handler(), ytBody)
	<-w.writing
	waitDone(t, done, "stalled delivery")

	assert.Equal(t, jobs.StateIdle, env.orch.State())
	w.mu.Lock()
	assert.Equal(t, http.StatusOK, w.code, "headers were committed before the stall")
	w.mu.Unlock()
}

// readEvents collects SSE data fields until the stream ends.
func readEvents(t *testing.T, resp *http.Response) []string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
			out = append(out, data)
		}
	}
	return out
}

func TestProgressAndLogsStreams(t *testing.T) {
	env := newTestEnv(t, producing("youtube_abc.mp4", "bytes"))
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	progressResp, err := http.Get(ts.URL + "/progress")
	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", progressResp.Header.Get("Content-Type"))
	logsResp, err := http.Get(ts.URL + "/logs")
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/download", "application/json", strings.NewReader(ytBody))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, []string{"10", "60", "100"}, readEvents(t, progressResp))
	logs := readEvents(t, logsResp)
	require.NotEmpty(t, logs)
	assert.Contains(t, logs, "[download] Destination: youtube_abc.mp4")
	assert.Equal(t, "Download complete: youtube_abc.mp4", logs[len(logs)-1])
}

func TestStatusIdle(t *testing.T) {
	env := newTestEnv(t, producing("x.mp4", "x"))
	rec := env.do(t, context.Background(), http.MethodGet, "/status", "")
	assert.JSONEq(t, `{"state":"idle"}`, rec.Body.String())
}

func TestOperationalEndpoints(t *testing.T) {
	env := newTestEnv(t, producing("x.mp4", "x"))
	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/openapi.yaml"} {
		rec := env.do(t, context.Background(), http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestSSEEventFraming(t *testing.T) {
	assert.Equal(t, "data: 42\n\n", string(sseEvent("42")))
	assert.Equal(t, "data: a\ndata: b\n\n", string(sseEvent("a\r\nb")))
}
