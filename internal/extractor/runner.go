// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package extractor supervises the external media extractor (yt-dlp): it
// spawns download processes, turns their output into progress and log
// events, and runs metadata probes.
package extractor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/vidgrab/internal/log"
	"github.com/ManuGH/vidgrab/internal/metrics"
	"github.com/ManuGH/vidgrab/internal/procgroup"
)

const (
	// DefaultBin is used when no binary is configured.
	DefaultBin = "yt-dlp"
	// StderrTailLines is how many stderr lines a failure reports.
	StderrTailLines  = 20
	defaultKillGrace = 5 * time.Second
	maxLineBytes     = 1 << 20
)

// ErrStopped is the cancellation cause when Stop is called.
var ErrStopped = errors.New("extractor stopped")

var partialSuffixes = []string{".part", ".ytdl", ".temp", ".tmp"}

// Sink receives events parsed from process output. Calls may arrive from
// the stdout and stderr readers concurrently.
type Sink interface {
	Progress(pct int)
	Log(line string)
}

// Launcher starts download processes.
type Launcher interface {
	Launch(ctx context.Context, inv Invocation, sink Sink) (Handle, error)
}

// Handle is a running download process.
type Handle interface {
	// Wait blocks until the process has exited and its output is drained.
	Wait() (Result, error)
	// Stop terminates the process group. It is idempotent.
	Stop()
	PID() int
}

// Result describes a finished process.
type Result struct {
	ExitCode   int
	Artifacts  []string // absolute paths, sorted
	StderrTail []string
	Duration   time.Duration
}

// Config configures the download runner.
type Config struct {
	Bin       string
	Args      []string // prefix arguments
	KillGrace time.Duration
}

// Runner spawns yt-dlp download processes.
type Runner struct {
	cfg Config
}

// NewRunner creates a Runner, applying defaults.
func NewRunner(cfg Config) *Runner {
	if cfg.Bin == "" {
		cfg.Bin = DefaultBin
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = defaultKillGrace
	}
	return &Runner{cfg: cfg}
}

// Launch implements Launcher.
func (r *Runner) Launch(ctx context.Context, inv Invocation, sink Sink) (Handle, error) {
	p, err := r.Start(ctx, inv, sink)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Start spawns the process in its own process group. Cancelling ctx
// terminates the group (SIGTERM, grace, SIGKILL).
func (r *Runner) Start(ctx context.Context, inv Invocation, sink Sink) (*Process, error) {
	if sink == nil {
		sink = nopSink{}
	}
	logger := log.WithComponentFromContext(ctx, "extractor")

	args := BuildArgs(r.cfg.Args, inv)
	cmd := exec.Command(r.cfg.Bin, args...) // #nosec G204 -- argv is built from validated input, no shell
	cmd.Dir = inv.Workspace
	procgroup.Set(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %w", ErrExtractionFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %w", ErrExtractionFailed, err)
	}

	if err := cmd.Start(); err != nil {
		metrics.IncExtractorStart("download", "error")
		return nil, fmt.Errorf("%w: start %s: %w", ErrExtractionFailed, r.cfg.Bin, err)
	}
	metrics.IncExtractorStart("download", "ok")

	p := &Process{
		cmd:       cmd,
		workspace: inv.Workspace,
		grace:     r.cfg.KillGrace,
		ring:      NewLineRing(StderrTailLines * 4),
		started:   time.Now(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	logger.Info().
		Str(log.FieldEvent, "extractor.started").
		Int(log.FieldPID, cmd.Process.Pid).
		Str(log.FieldSelector, inv.Plan.Selector()).
		Str(log.FieldWorkspace, inv.Workspace).
		Msg("extractor process started")

	var ioWg sync.WaitGroup
	ioWg.Add(2)
	go func() {
		defer ioWg.Done()
		pumpStdout(stdout, sink)
	}()
	go func() {
		defer ioWg.Done()
		pumpStderr(stderr, sink, p.ring)
	}()

	// Wait must not run before the pipes are drained.
	waitCh := make(chan error, 1)
	go func() {
		ioWg.Wait()
		waitCh <- cmd.Wait()
	}()

	go p.supervise(ctx, waitCh)
	return p, nil
}

// Process is a running download started by Runner.Start.
type Process struct {
	cmd       *exec.Cmd
	workspace string
	grace     time.Duration
	ring      *LineRing
	started   time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	result Result
	err    error
}

// PID returns the process id of the group leader.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Stop requests termination of the process group.
func (p *Process) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// Wait blocks until the process has exited. A zero exit returns the
// workspace artifacts; a non-zero exit returns an error wrapping
// ErrExtractionFailed and *ExitError; a cancelled process returns an error
// wrapping the cancellation cause.
func (p *Process) Wait() (Result, error) {
	<-p.done
	return p.result, p.err
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

func (p *Process) supervise(ctx context.Context, waitCh <-chan error) {
	defer close(p.done)
	logger := log.WithComponentFromContext(ctx, "extractor")

	var (
		waitErr error
		cause   error
	)
	select {
	case waitErr = <-waitCh:
	case <-ctx.Done():
		cause = context.Cause(ctx)
		waitErr = procgroup.Terminate(p.cmd, waitCh, p.grace)
	case <-p.stop:
		cause = ErrStopped
		waitErr = procgroup.Terminate(p.cmd, waitCh, p.grace)
	}

	code := exitCode(waitErr)
	p.result = Result{
		ExitCode:   code,
		StderrTail: p.ring.LastN(StderrTailLines),
		Duration:   time.Since(p.started),
	}

	reason := "clean"
	switch {
	case cause != nil:
		reason = "cancelled"
		p.err = fmt.Errorf("extractor cancelled: %w", cause)
	case code != 0:
		reason = "error"
		p.err = fmt.Errorf("%w: %w", ErrExtractionFailed, &ExitError{Code: code, StderrTail: p.result.StderrTail})
	default:
		artifacts, err := ListArtifacts(p.workspace)
		if err != nil {
			reason = "error"
			p.err = fmt.Errorf("%w: list workspace: %w", ErrExtractionFailed, err)
		}
		p.result.Artifacts = artifacts
	}
	metrics.ObserveExtractorExit(reason, code, p.result.Duration.Seconds())

	evt := logger.Info()
	if p.err != nil {
		evt = logger.Warn().Err(p.err).Strs("stderr", p.result.StderrTail)
	}
	evt.
		Str(log.FieldEvent, "extractor.exited").
		Int(log.FieldPID, p.cmd.Process.Pid).
		Int(log.FieldExitCode, code).
		Str("reason", reason).
		Int("artifacts", len(p.result.Artifacts)).
		Dur("duration", p.result.Duration).
		Msg("extractor process exited")
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func pumpStdout(r io.Reader, sink Sink) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	sc.Split(scanLines)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		sink.Log(EscapeLine(line))
		if pct, ok := ParseProgress(line); ok {
			sink.Progress(pct)
		}
	}
	// Keep the child from blocking on a full pipe after a scan error.
	_, _ = io.Copy(io.Discard, r)
}

func pumpStderr(r io.Reader, sink Sink, ring *LineRing) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	sc.Split(scanLines)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		ring.Add(line)
		sink.Log(StderrPrefix + EscapeLine(line))
	}
	_, _ = io.Copy(io.Discard, r)
}

// ListArtifacts returns the finished regular files in dir, sorted, skipping
// partial and temporary downloads.
func ListArtifacts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || isPartial(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func isPartial(name string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, ".part-frag") {
		return true
	}
	for _, suf := range partialSuffixes {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}
	return false
}

type nopSink struct{}

func (nopSink) Progress(int) {}
func (nopSink) Log(string)   {}
