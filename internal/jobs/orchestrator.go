// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package jobs owns the single-flight download lifecycle: it admits at most
// one job at a time, provisions a private workspace, drives the extractor,
// hands the artifact to the caller, and always removes the workspace.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/vidgrab/internal/bus"
	"github.com/ManuGH/vidgrab/internal/extractor"
	"github.com/ManuGH/vidgrab/internal/fsm"
	"github.com/ManuGH/vidgrab/internal/log"
	"github.com/ManuGH/vidgrab/internal/media"
	"github.com/ManuGH/vidgrab/internal/metrics"
	"github.com/ManuGH/vidgrab/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Config holds orchestrator settings. Cookie settings may change at runtime
// via UpdateConfig; a running job keeps the settings it started with.
type Config struct {
	WorkspaceRoot   string        // parent of job workspaces, os.TempDir() when empty
	CookiesPath     string        // optional cookies file passed to the extractor
	CookiesRequired bool          // reject non-Facebook jobs when the file is absent
	Timeout         time.Duration // upper bound for one job, 0 for none
}

// Artifact is the single output file of a successful job.
type Artifact struct {
	Path string
	Name string
	Size int64
}

// DeliverFunc hands the artifact to the caller. The workspace is removed
// after it returns, so the file must be fully consumed inside the call.
type DeliverFunc func(ctx context.Context, a Artifact) error

// Snapshot describes the active job.
type Snapshot struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Platform  string    `json:"platform"`
	Quality   string    `json:"quality"`
	Kind      string    `json:"kind"`
	Progress  int       `json:"progress"`
	StartedAt time.Time `json:"startedAt"`
}

type job struct {
	id        string
	spec      Spec
	plan      media.Plan
	workspace string
	started   time.Time
	progress  atomic.Int32
	cancel    context.CancelCauseFunc
}

// Orchestrator runs at most one job at a time.
type Orchestrator struct {
	launcher extractor.Launcher
	progress *bus.Bus[int]
	logs     *bus.Bus[string]
	machine  *fsm.Machine[State, Event]

	mu      sync.Mutex
	cfg     Config
	current *job
}

// New creates an idle orchestrator publishing to the given buses.
func New(cfg Config, launcher extractor.Launcher, progress *bus.Bus[int], logs *bus.Bus[string]) *Orchestrator {
	o := &Orchestrator{
		launcher: launcher,
		progress: progress,
		logs:     logs,
		machine:  newMachine(),
		cfg:      cfg,
	}
	o.machine.Observe(func(from, to State, ev Event) {
		metrics.SetJobState(AllStates, string(to))
		logger := log.WithComponent("jobs")
		logger.Debug().
			Str(log.FieldOldState, string(from)).
			Str(log.FieldNewState, string(to)).
			Str(log.FieldEvent, string(ev)).
			Msg("job state transition")
	})
	metrics.SetJobState(AllStates, string(StateIdle))
	return o
}

// UpdateConfig replaces the settings used by subsequent jobs.
func (o *Orchestrator) UpdateConfig(cfg Config) {
	o.mu.Lock()
	o.cfg = cfg
	o.mu.Unlock()
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return o.machine.State()
}

// Progress returns the progress event bus.
func (o *Orchestrator) Progress() *bus.Bus[int] { return o.progress }

// Logs returns the log event bus.
func (o *Orchestrator) Logs() *bus.Bus[string] { return o.logs }

// Current returns a snapshot of the active job.
func (o *Orchestrator) Current() (Snapshot, bool) {
	o.mu.Lock()
	j := o.current
	o.mu.Unlock()
	if j == nil {
		return Snapshot{State: o.State()}, false
	}
	return Snapshot{
		ID:        j.id,
		State:     o.State(),
		Platform:  string(j.spec.Platform),
		Quality:   j.spec.Quality.String(),
		Kind:      string(j.plan.Kind),
		Progress:  int(j.progress.Load()),
		StartedAt: j.started,
	}, true
}

// CancelActive cancels the active job, if any, and reports whether one was
// cancelled. The job finalizes with ErrCancelled.
func (o *Orchestrator) CancelActive(cause error) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil || o.current.cancel == nil {
		return false
	}
	o.current.cancel(cause)
	return true
}

// Submit runs one job to completion. It returns ErrInvalidRequest or ErrBusy
// without side effects; once admitted, every exit path removes the workspace
// and returns the slot to idle before Submit returns.
func (o *Orchestrator) Submit(ctx context.Context, req Request, deliver DeliverFunc) (err error) {
	spec, err := req.Validate()
	if err != nil {
		return err
	}
	if _, ferr := o.machine.Fire(ctx, EventSubmit); ferr != nil {
		if errors.Is(ferr, fsm.ErrInvalidTransition) {
			metrics.IncBusyRejection()
			return fmt.Errorf("%w (state %s)", ErrBusy, o.machine.State())
		}
		return ferr
	}

	j := &job{id: uuid.NewString(), spec: spec, plan: spec.Plan(), started: time.Now()}

	ctx = log.ContextWithJobID(ctx, j.id)
	ctx, span := telemetry.Tracer().Start(ctx, "jobs.submit", trace.WithAttributes(
		telemetry.JobAttributes(j.id, string(spec.Platform), spec.Quality.String(), string(j.plan.Kind))...,
	))
	defer span.End()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	j.cancel = cancel

	o.mu.Lock()
	cfg := o.cfg
	o.current = j
	o.mu.Unlock()

	if cfg.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, cfg.Timeout)
		defer cancelTimeout()
	}

	logger := log.WithComponentFromContext(ctx, "jobs")
	logger.Info().
		Str(log.FieldEvent, "job.accepted").
		Str(log.FieldURL, spec.URL).
		Str(log.FieldPlatform, string(spec.Platform)).
		Str(log.FieldQuality, spec.Quality.String()).
		Msg("job accepted")

	defer func() {
		if r := recover(); r != nil {
			o.finish(ctx, j, fmt.Errorf("panic: %v", r))
			panic(r)
		}
		telemetry.RecordError(span, err, outcomeOf(err))
		o.finish(ctx, j, err)
	}()

	artifact, err := o.run(ctx, j, cfg)
	if err != nil {
		o.logs.Publish("Download failed: " + extractor.EscapeLine(err.Error()))
		o.progress.CloseSubscribers()
		o.logs.CloseSubscribers()
		return err
	}

	o.progress.Publish(100)
	j.progress.Store(100)
	o.logs.Publish("Download complete: " + artifact.Name)
	o.progress.CloseSubscribers()
	o.logs.CloseSubscribers()

	if deliver == nil {
		return nil
	}
	if err := deliver(ctx, artifact); err != nil {
		return fmt.Errorf("deliver artifact: %w", err)
	}
	return nil
}

// run covers Provisioning, Running and the artifact checks of Finalizing.
func (o *Orchestrator) run(ctx context.Context, j *job, cfg Config) (Artifact, error) {
	logger := log.WithComponentFromContext(ctx, "jobs")

	cookies, err := cookiesFor(j.spec, cfg)
	if err != nil {
		return Artifact{}, err
	}

	ws, err := os.MkdirTemp(cfg.WorkspaceRoot, "vidgrab-"+string(j.spec.Platform)+"-")
	if err != nil {
		return Artifact{}, fmt.Errorf("create workspace: %w", err)
	}
	j.workspace = ws

	for _, w := range j.plan.Warnings {
		logger.Warn().Str(log.FieldSelector, j.plan.Selector()).Msg(w)
		o.logs.Publish("WARNING: " + w)
	}
	o.logs.Publish(fmt.Sprintf("Starting %s download (%s)", j.spec.Platform, j.spec.Quality))

	if _, err := o.machine.Fire(ctx, EventStart); err != nil {
		return Artifact{}, err
	}

	inv := extractor.Invocation{
		URL:         j.spec.URL,
		Plan:        j.plan,
		Workspace:   ws,
		OutputName:  extractor.OutputTemplate(j.spec.Platform),
		CookiesPath: cookies,
	}
	h, err := o.launcher.Launch(ctx, inv, jobSink{o: o, j: j})
	if err != nil {
		return Artifact{}, err
	}
	res, waitErr := h.Wait()

	if _, err := o.machine.Fire(ctx, EventExit); err != nil {
		return Artifact{}, err
	}

	switch {
	case waitErr != nil && ctx.Err() != nil:
		return Artifact{}, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
	case waitErr != nil:
		return Artifact{}, waitErr
	case len(res.Artifacts) == 0:
		return Artifact{}, ErrNoOutputProduced
	case len(res.Artifacts) > 1:
		names := make([]string, 0, len(res.Artifacts))
		for _, p := range res.Artifacts {
			names = append(names, filepath.Base(p))
		}
		return Artifact{}, fmt.Errorf("%w: %v", ErrAmbiguousOutput, names)
	}

	path := res.Artifacts[0]
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: stat artifact: %w", extractor.ErrExtractionFailed, err)
	}
	return Artifact{Path: path, Name: filepath.Base(path), Size: info.Size()}, nil
}

// finish removes the workspace and walks the machine back to idle.
func (o *Orchestrator) finish(ctx context.Context, j *job, err error) {
	logger := log.WithComponentFromContext(ctx, "jobs")

	if j.workspace != "" {
		if rmErr := os.RemoveAll(j.workspace); rmErr != nil {
			metrics.IncWorkspaceCleanupError()
			logger.Error().Err(rmErr).Str(log.FieldWorkspace, j.workspace).Msg("workspace cleanup failed")
		}
	}

	o.releaseSlot(context.WithoutCancel(ctx))

	o.mu.Lock()
	if o.current == j {
		o.current = nil
	}
	o.mu.Unlock()

	outcome := outcomeOf(err)
	dur := time.Since(j.started)
	metrics.ObserveJob(string(j.spec.Platform), string(j.plan.Kind), outcome, dur)

	evt := logger.Info()
	if err != nil {
		evt = logger.Warn().Err(err)
	}
	evt.
		Str(log.FieldEvent, "job.finished").
		Str("outcome", outcome).
		Dur("duration", dur).
		Msg("job finished")
}

// releaseSlot fires whichever events lead from the current state to idle.
func (o *Orchestrator) releaseSlot(ctx context.Context) {
	for range AllStates {
		var ev Event
		switch o.machine.State() {
		case StateIdle:
			return
		case StateProvisioning:
			ev = EventAbort
		case StateRunning:
			ev = EventExit
		case StateFinalizing:
			ev = EventRelease
		}
		if _, err := o.machine.Fire(ctx, ev); err != nil {
			logger := log.WithComponent("jobs")
			logger.Error().Err(err).Msg("failed to release job slot")
			return
		}
	}
}

func cookiesFor(spec Spec, cfg Config) (string, error) {
	if cfg.CookiesPath == "" {
		if cfg.CookiesRequired && spec.Platform != media.PlatformFacebook {
			return "", fmt.Errorf("%w: no cookies path configured", ErrCookiesMissing)
		}
		return "", nil
	}
	info, err := os.Stat(cfg.CookiesPath)
	if err == nil && info.Mode().IsRegular() {
		return cfg.CookiesPath, nil
	}
	if cfg.CookiesRequired && spec.Platform != media.PlatformFacebook {
		return "", fmt.Errorf("%w: %s", ErrCookiesMissing, cfg.CookiesPath)
	}
	return "", nil
}

type jobSink struct {
	o *Orchestrator
	j *job
}

func (s jobSink) Progress(pct int) {
	s.j.progress.Store(int32(pct))
	s.o.progress.Publish(pct)
}

func (s jobSink) Log(line string) {
	s.o.logs.Publish(line)
}
