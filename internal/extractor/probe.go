// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package extractor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ManuGH/vidgrab/internal/cache"
	"github.com/ManuGH/vidgrab/internal/log"
	"github.com/ManuGH/vidgrab/internal/media"
	"github.com/ManuGH/vidgrab/internal/metrics"
	"github.com/ManuGH/vidgrab/internal/procgroup"
	"github.com/ManuGH/vidgrab/internal/telemetry"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Codec buckets reported by probes.
const (
	CodecAV1     = "AV1"
	CodecVP9     = "VP9"
	CodecH264    = "H.264"
	CodecUnknown = "UNKNOWN"

	sizeUnknown         = "Unknown"
	defaultProbeTimeout = 30 * time.Second
)

// ProbeResult is the pre-download preview.
type ProbeResult struct {
	Resolution string `json:"resolution"`
	Codec      string `json:"codec"`
	Size       string `json:"size"`
}

// PlaceholderResult is returned for platforms whose metadata is unreliable.
var PlaceholderResult = ProbeResult{Resolution: "Auto", Codec: CodecH264, Size: sizeUnknown}

// ProbeRequest identifies what to probe.
type ProbeRequest struct {
	URL           string
	Platform      media.Platform
	Quality       media.Quality
	AllowAnyCodec bool
	CookiesPath   string
}

// ProberConfig configures metadata probes.
type ProberConfig struct {
	Bin      string
	Args     []string
	Timeout  time.Duration
	Rate     float64 // probe spawns per second, <= 0 disables limiting
	Burst    int
	CacheTTL time.Duration
}

// CommandFunc runs the extractor and returns its stdout and stderr.
type CommandFunc func(ctx context.Context, bin string, args []string) (stdout, stderr []byte, err error)

// Prober runs metadata-only extractor invocations. Identical concurrent
// probes share one process and results are cached for CacheTTL.
type Prober struct {
	cfg      ProberConfig
	limiter  *rate.Limiter
	group    singleflight.Group
	cache    *cache.JSON[ProbeResult]
	cacheTTL atomic.Int64
	run      CommandFunc
}

// NewProber creates a Prober. A nil backend disables caching.
func NewProber(cfg ProberConfig, backend cache.Cache) *Prober {
	if cfg.Bin == "" {
		cfg.Bin = DefaultBin
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProbeTimeout
	}
	p := &Prober{
		cfg:   cfg,
		cache: cache.NewJSON[ProbeResult](backend, "probe"),
		run:   runCommand,
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	p.cacheTTL.Store(int64(cfg.CacheTTL))
	return p
}

// SetCacheTTL changes the TTL applied to new cache entries.
func (p *Prober) SetCacheTTL(ttl time.Duration) {
	p.cacheTTL.Store(int64(ttl))
}

// WithCommand replaces the process runner. Used by tests and the CLI.
func (p *Prober) WithCommand(fn CommandFunc) *Prober {
	p.run = fn
	return p
}

// Cache returns the probe result cache backend.
func (p *Prober) Cache() cache.Cache { return p.cache.Backend() }

// Probe returns resolution, codec and approximate size for req. Failures
// wrap ErrProbeFailed.
func (p *Prober) Probe(ctx context.Context, req ProbeRequest) (ProbeResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "extractor.probe")
	defer span.End()
	logger := log.WithComponentFromContext(ctx, "probe")

	if req.Platform == media.PlatformFacebook {
		metrics.IncProbe(string(req.Platform), "placeholder")
		return PlaceholderResult, nil
	}

	key := probeKey(req)
	if res, ok := p.cache.Get(ctx, key); ok {
		metrics.IncProbeCache("hit")
		span.SetAttributes(telemetry.ProbeAttributes(res.Resolution, res.Codec, true)...)
		return res, nil
	}
	metrics.IncProbeCache("miss")

	ch := p.group.DoChan(key, func() (any, error) {
		// Detached from the first caller so a disconnect does not fail the
		// other callers sharing this probe.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.Timeout)
		defer cancel()
		return p.probeOnce(runCtx, req)
	})

	select {
	case <-ctx.Done():
		err := fmt.Errorf("%w: %w", ErrProbeFailed, ctx.Err())
		telemetry.RecordError(span, err, "probe_cancelled")
		return ProbeResult{}, err
	case r := <-ch:
		if r.Err != nil {
			metrics.IncProbe(string(req.Platform), "failure")
			telemetry.RecordError(span, r.Err, "probe_failed")
			logger.Warn().Err(r.Err).Str(log.FieldURL, req.URL).Msg("probe failed")
			return ProbeResult{}, r.Err
		}
		res := r.Val.(ProbeResult)
		if !r.Shared {
			if err := p.cache.Set(ctx, key, res, time.Duration(p.cacheTTL.Load())); err != nil {
				logger.Debug().Err(err).Msg("probe cache write failed")
			}
		}
		metrics.IncProbe(string(req.Platform), "success")
		span.SetAttributes(telemetry.ProbeAttributes(res.Resolution, res.Codec, false)...)
		logger.Debug().
			Str(log.FieldURL, req.URL).
			Str(log.FieldResolution, res.Resolution).
			Str(log.FieldCodec, res.Codec).
			Bool("shared", r.Shared).
			Msg("probe completed")
		return res, nil
	}
}

func (p *Prober) probeOnce(ctx context.Context, req ProbeRequest) (ProbeResult, error) {
	if p.limiter != nil && !p.limiter.Allow() {
		metrics.IncProbeThrottled()
		if err := p.limiter.Wait(ctx); err != nil {
			return ProbeResult{}, fmt.Errorf("%w: rate limit: %w", ErrProbeFailed, err)
		}
	}

	selector := media.ProbeSelector(req.Platform, req.Quality, req.AllowAnyCodec)
	args := BuildProbeArgs(p.cfg.Args, req.URL, selector, req.CookiesPath)

	start := time.Now()
	stdout, stderr, err := p.run(ctx, p.cfg.Bin, args)
	metrics.ObserveProbeDuration(time.Since(start).Seconds())
	if err != nil {
		if code := exitCode(err); code > 0 {
			tail := NewLineRing(StderrTailLines)
			_, _ = tail.Write(stderr)
			err = &ExitError{Code: code, StderrTail: tail.LastN(StderrTailLines)}
		}
		return ProbeResult{}, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	return ParseProbeOutput(stdout, req.Quality)
}

func probeKey(req ProbeRequest) string {
	sum := sha256.Sum256([]byte(req.URL + "|" + req.Quality.String() + "|" + strconv.FormatBool(req.AllowAnyCodec)))
	return hex.EncodeToString(sum[:])
}

func runCommand(ctx context.Context, bin string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...) // #nosec G204 -- argv only, no shell
	procgroup.Set(cmd)
	cmd.Cancel = func() error { return procgroup.Kill(cmd, syscall.SIGKILL) }
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	metrics.IncExtractorStart("probe", "ok")
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

type probeFormat struct {
	Height         *int     `json:"height"`
	VCodec         string   `json:"vcodec"`
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
}

type probeInfo struct {
	probeFormat
	RequestedFormats []probeFormat `json:"requested_formats"`
}

// ParseProbeOutput interprets `yt-dlp -j` output. Only the first JSON
// document is read.
func ParseProbeOutput(out []byte, q media.Quality) (ProbeResult, error) {
	dec := json.NewDecoder(bytes.NewReader(out))
	var info probeInfo
	if err := dec.Decode(&info); err != nil {
		return ProbeResult{}, fmt.Errorf("%w: decode metadata: %w", ErrProbeFailed, err)
	}

	return ProbeResult{
		Resolution: resolutionLabel(info, q),
		Codec:      CodecBucket(videoCodec(info)),
		Size:       sizeLabel(info),
	}, nil
}

func resolutionLabel(info probeInfo, q media.Quality) string {
	if q.Audio {
		return "audio"
	}
	if info.Height != nil && *info.Height > 0 {
		return strconv.Itoa(*info.Height) + "p"
	}
	for _, f := range info.RequestedFormats {
		if f.Height != nil && *f.Height > 0 {
			return strconv.Itoa(*f.Height) + "p"
		}
	}
	return "?p"
}

func videoCodec(info probeInfo) string {
	if c := info.VCodec; c != "" && c != "none" {
		return c
	}
	for _, f := range info.RequestedFormats {
		if f.VCodec != "" && f.VCodec != "none" {
			return f.VCodec
		}
	}
	return ""
}

// CodecBucket maps an extractor vcodec string to a display bucket.
func CodecBucket(vcodec string) string {
	c := strings.ToLower(strings.TrimSpace(vcodec))
	switch {
	case strings.HasPrefix(c, "av01"), strings.HasPrefix(c, "av1"):
		return CodecAV1
	case strings.HasPrefix(c, "vp09"), strings.HasPrefix(c, "vp9"):
		return CodecVP9
	case strings.HasPrefix(c, "avc1"), strings.HasPrefix(c, "avc"), strings.HasPrefix(c, "h264"):
		return CodecH264
	default:
		return CodecUnknown
	}
}

func sizeLabel(info probeInfo) string {
	if b, ok := positive(info.Filesize); ok {
		return formatMB(b)
	}
	if b, ok := positive(info.FilesizeApprox); ok {
		return formatMB(b)
	}
	var sum float64
	for _, f := range info.RequestedFormats {
		if b, ok := positive(f.Filesize); ok {
			sum += b
		} else if b, ok := positive(f.FilesizeApprox); ok {
			sum += b
		}
	}
	if sum > 0 {
		return formatMB(sum)
	}
	return sizeUnknown
}

func positive(v *float64) (float64, bool) {
	if v == nil || *v <= 0 {
		return 0, false
	}
	return *v, true
}

func formatMB(n float64) string {
	return fmt.Sprintf("%.2f MB", n/1024/1024)
}
