// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ManuGH/vidgrab/internal/extractor"
	"github.com/ManuGH/vidgrab/internal/jobs"
	"github.com/ManuGH/vidgrab/internal/log"
)

// errCancelledByRequest is the cause recorded when DELETE /download stops a job.
var errCancelledByRequest = errors.New("cancelled by request")

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeText writes a short text/plain reason.
func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_, _ = fmt.Fprintln(w, msg)
}

// classify maps a domain error to an HTTP status and client message.
// A zero status means nothing should be written.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, jobs.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, jobs.ErrBusy):
		return http.StatusConflict, "another download is in progress"
	case errors.Is(err, jobs.ErrCookiesMissing):
		return http.StatusInternalServerError, "cookies.txt missing"
	case errors.Is(err, jobs.ErrNoOutputProduced):
		return http.StatusInternalServerError, "download failed: no output produced"
	case errors.Is(err, jobs.ErrAmbiguousOutput):
		return http.StatusInternalServerError, "download failed: ambiguous output"
	case errors.Is(err, extractor.ErrExtractionFailed):
		return http.StatusInternalServerError, "download failed"
	case errors.Is(err, extractor.ErrProbeFailed):
		return http.StatusInternalServerError, "probe failed"
	case errors.Is(err, jobs.ErrCancelled) && errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "download timed out"
	case errors.Is(err, jobs.ErrCancelled):
		return http.StatusServiceUnavailable, "download cancelled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError maps err to a response. Nothing is written once the client
// has gone away.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	if r.Context().Err() != nil {
		logger.Info().Err(err).Str(log.FieldEvent, "request.abandoned").Msg("client went away")
		return
	}

	code, msg := classify(err)
	evt := logger.Warn()
	if code >= http.StatusInternalServerError {
		evt = logger.Error()
	}
	evt.Err(err).Int("status", code).Str(log.FieldEvent, "request.failed").Msg("request failed")

	writeText(w, code, msg)
}
