// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ManuGH/vidgrab/internal/extractor"
	"github.com/ManuGH/vidgrab/internal/jobs"
	"github.com/ManuGH/vidgrab/internal/log"
)

// decodeRequest reads the JSON job request body.
func decodeRequest(w http.ResponseWriter, r *http.Request) (jobs.Request, error) {
	var req jobs.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, fmt.Errorf("%w: empty body", jobs.ErrInvalidRequest)
		}
		return req, fmt.Errorf("%w: malformed JSON: %w", jobs.ErrInvalidRequest, err)
	}
	return req, nil
}

// handleInfo probes the URL and returns a pre-download preview.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	spec, err := req.Validate()
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.prober.Probe(r.Context(), extractor.ProbeRequest{
		URL:           spec.URL,
		Platform:      spec.Platform,
		Quality:       spec.Quality,
		AllowAnyCodec: spec.AllowAnyCodec,
		CookiesPath:   s.probeCookies(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// probeCookies returns the cookies path when the file exists. Probes never
// require cookies.
func (s *Server) probeCookies() string {
	path := s.cookies()
	if path == "" {
		return ""
	}
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return path
}

// handleDownload runs one job and streams its artifact as an attachment.
// The client disconnecting cancels the job.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	started := false
	err = s.jobs.Submit(r.Context(), req, func(ctx context.Context, a jobs.Artifact) error {
		started = true
		return serveArtifact(ctx, w, a)
	})
	if err == nil {
		return
	}
	if started {
		// Headers are gone; all that is left is to record the failure.
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "download.stream_failed").
			Msg("artifact stream interrupted")
		return
	}
	writeError(w, r, err)
}

// serveArtifact streams a to w. The copy is bound to the job context: its
// deadline becomes the write deadline and cancellation unblocks a stalled
// write, so a client that stops reading cannot hold the job slot.
func serveArtifact(ctx context.Context, w http.ResponseWriter, a jobs.Artifact) error {
	f, err := os.Open(a.Path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}

	rc := http.NewResponseController(w)
	if deadline, ok := ctx.Deadline(); ok {
		_ = rc.SetWriteDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = rc.SetWriteDeadline(time.Now())
	})
	defer stop()

	h := w.Header()
	h.Set("Content-Type", contentType(a.Name))
	h.Set("Content-Disposition", contentDisposition(a.Name))
	h.Set("Cache-Control", "no-store")
	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, contextReader{ctx: ctx, r: f})
	if err != nil {
		if cause := context.Cause(ctx); cause != nil {
			return fmt.Errorf("stream artifact after %d bytes: %w", n, errors.Join(err, cause))
		}
		return fmt.Errorf("stream artifact after %d bytes: %w", n, err)
	}
	return ctx.Err()
}

// contextReader stops a copy between chunks once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

// handleCancel cancels the active job.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if !s.jobs.CancelActive(errCancelledByRequest) {
		writeText(w, http.StatusNotFound, "no active download")
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldEvent, "download.cancel_requested").
		Msg("active download cancelled by request")
	w.WriteHeader(http.StatusAccepted)
}

type statusResponse struct {
	State string         `json:"state"`
	Job   *jobs.Snapshot `json:"job,omitempty"`
}

// handleStatus reports the lifecycle state and the active job, if any.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{State: string(s.jobs.State())}
	if snap, ok := s.jobs.Current(); ok {
		resp.State = string(snap.State)
		resp.Job = &snap
	}
	writeJSON(w, http.StatusOK, resp)
}
