// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the download orchestrator over HTTP: probe, download,
// progress and log streams, and operational endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ManuGH/vidgrab/internal/api/middleware"
	"github.com/ManuGH/vidgrab/internal/bus"
	"github.com/ManuGH/vidgrab/internal/extractor"
	"github.com/ManuGH/vidgrab/internal/health"
	"github.com/ManuGH/vidgrab/internal/jobs"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultHeartbeat is the SSE keep-alive comment interval.
const DefaultHeartbeat = 15 * time.Second

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// Jobs is the orchestrator surface the API drives.
type Jobs interface {
	Submit(ctx context.Context, req jobs.Request, deliver jobs.DeliverFunc) error
	Current() (jobs.Snapshot, bool)
	State() jobs.State
	CancelActive(cause error) bool
	Progress() *bus.Bus[int]
	Logs() *bus.Bus[string]
}

// Prober produces pre-download previews.
type Prober interface {
	Probe(ctx context.Context, req extractor.ProbeRequest) (extractor.ProbeResult, error)
}

// Deps wires the server.
type Deps struct {
	Jobs   Jobs
	Prober Prober
	Health *health.Manager
	// Cookies returns the current cookies path; it may change on reload.
	Cookies   func() string
	Stack     middleware.StackConfig
	Heartbeat time.Duration
}

// Server serves the HTTP API.
type Server struct {
	jobs      Jobs
	prober    Prober
	health    *health.Manager
	cookies   func() string
	heartbeat time.Duration
	router    chi.Router
}

// NewServer builds the server and its routes.
func NewServer(d Deps) *Server {
	s := &Server{
		jobs:      d.Jobs,
		prober:    d.Prober,
		health:    d.Health,
		cookies:   d.Cookies,
		heartbeat: d.Heartbeat,
	}
	if s.cookies == nil {
		s.cookies = func() string { return "" }
	}
	if s.heartbeat <= 0 {
		s.heartbeat = DefaultHeartbeat
	}
	if s.health == nil {
		s.health = health.NewManager("")
	}
	s.router = s.routes(d.Stack)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes(stack middleware.StackConfig) chi.Router {
	r := middleware.NewRouter(stack)

	r.Post("/info", s.handleInfo)
	r.Post("/download", s.handleDownload)
	r.Delete("/download", s.handleCancel)
	r.Get("/progress", s.handleProgress)
	r.Get("/logs", s.handleLogs)
	r.Get("/status", s.handleStatus)

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", serveOpenAPI)

	return r
}
