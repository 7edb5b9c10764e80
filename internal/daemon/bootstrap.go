// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires configuration into a running vidgrab server and owns
// its lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/ManuGH/vidgrab/internal/api"
	"github.com/ManuGH/vidgrab/internal/api/middleware"
	"github.com/ManuGH/vidgrab/internal/bus"
	"github.com/ManuGH/vidgrab/internal/cache"
	"github.com/ManuGH/vidgrab/internal/config"
	"github.com/ManuGH/vidgrab/internal/extractor"
	"github.com/ManuGH/vidgrab/internal/health"
	"github.com/ManuGH/vidgrab/internal/jobs"
	"github.com/ManuGH/vidgrab/internal/log"
	"github.com/ManuGH/vidgrab/internal/telemetry"
	"github.com/rs/zerolog"
)

const (
	cacheJanitorInterval = time.Minute
	cachePingTimeout     = 2 * time.Second
)

// Runtime bundles the components built from one configuration.
type Runtime struct {
	cfg atomic.Pointer[config.AppConfig]

	Orchestrator *jobs.Orchestrator
	Prober       *extractor.Prober
	Cache        cache.Cache
	Health       *health.Manager
	Server       *api.Server
	Telemetry    *telemetry.Provider

	logger zerolog.Logger
}

// Build constructs every component from cfg. Launcher may be nil to use the
// yt-dlp runner.
func Build(ctx context.Context, cfg config.AppConfig, launcher extractor.Launcher) (*Runtime, error) {
	rt := &Runtime{logger: log.WithComponent("daemon")}
	rt.cfg.Store(&cfg)

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		rt.logger.Warn().Err(err).Str(log.FieldEvent, "telemetry.init_failed").Msg("telemetry initialization failed, continuing without tracing")
		tp, _ = telemetry.NewProvider(ctx, telemetry.Config{})
	}
	rt.Telemetry = tp

	rt.Cache = newCache(ctx, cfg.Cache, rt.logger)

	rt.Prober = extractor.NewProber(extractor.ProberConfig{
		Bin:      cfg.Extractor.Bin,
		Args:     cfg.Extractor.Args,
		Timeout:  cfg.Probe.Timeout,
		Rate:     cfg.Probe.Rate,
		Burst:    cfg.Probe.Burst,
		CacheTTL: cfg.Probe.CacheTTL,
	}, rt.Cache)

	if launcher == nil {
		launcher = extractor.NewRunner(extractor.Config{
			Bin:       cfg.Extractor.Bin,
			Args:      cfg.Extractor.Args,
			KillGrace: cfg.Extractor.KillGrace,
		})
	}

	busOpts := []bus.Option{bus.WithBuffer(cfg.Bus.Buffer), bus.WithExclusive(cfg.Bus.Exclusive)}
	rt.Orchestrator = jobs.New(
		jobsConfig(cfg),
		launcher,
		bus.New[int]("progress", busOpts...),
		bus.New[string]("logs", busOpts...),
	)

	rt.Health = health.NewManager(cfg.Version)
	rt.Health.RegisterChecker(health.NewBinaryChecker("extractor", cfg.Extractor.Bin))
	// Facebook downloads need no cookies, so a missing file only degrades.
	rt.Health.RegisterChecker(health.NewFileChecker("cookies", rt.cookiesPath, health.StatusDegraded))
	rt.Health.RegisterChecker(health.NewPingChecker("cache", rt.Cache, cachePingTimeout))

	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = cfg.Log.Service
	}
	rt.Server = api.NewServer(api.Deps{
		Jobs:    rt.Orchestrator,
		Prober:  rt.Prober,
		Health:  rt.Health,
		Cookies: rt.cookiesPath,
		Stack: middleware.StackConfig{
			EnableCORS:            true,
			AllowedOrigins:        cfg.CORS.AllowedOrigins,
			EnableSecurityHeaders: true,
			CSP:                   middleware.DefaultCSP,
			EnableMetrics:         true,
			TracingService:        tracingService,
			EnableLogging:         true,
			EnableRateLimit:       cfg.RateLimit.Enabled,
			RequestsPerMinute:     cfg.RateLimit.RequestsPerMinute,
		},
	})

	return rt, nil
}

// newCache selects Redis when configured. An unreachable Redis falls back
// to memory so probes keep working.
func newCache(ctx context.Context, cfg config.CacheConfig, logger zerolog.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(cacheJanitorInterval)
	}
	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "cache.redis_unavailable").
			Str("addr", cfg.RedisAddr).
			Msg("redis unavailable, using in-memory probe cache")
		return cache.NewMemoryCache(cacheJanitorInterval)
	}
	return rc
}

func jobsConfig(cfg config.AppConfig) jobs.Config {
	return jobs.Config{
		WorkspaceRoot:   cfg.Workspace.Root,
		CookiesPath:     cfg.Cookies.Path,
		CookiesRequired: cfg.Cookies.Required,
		Timeout:         cfg.Job.Timeout,
	}
}

// Config returns the configuration currently in effect.
func (rt *Runtime) Config() config.AppConfig { return *rt.cfg.Load() }

func (rt *Runtime) cookiesPath() string { return rt.cfg.Load().Cookies.Path }

// Apply switches the runtime to cfg. Only settings that can change without
// rebinding take effect; the next job picks up the new job settings.
func (rt *Runtime) Apply(cfg config.AppConfig) {
	rt.cfg.Store(&cfg)

	if err := log.SetLevel(cfg.Log.Level); err != nil {
		rt.logger.Warn().Err(err).Str("level", cfg.Log.Level).Msg("invalid log level on reload")
	}
	rt.Orchestrator.UpdateConfig(jobsConfig(cfg))
	rt.Prober.SetCacheTTL(cfg.Probe.CacheTTL)

	rt.logger.Info().
		Str(log.FieldEvent, "config.applied").
		Str("log_level", cfg.Log.Level).
		Str("cookies", cfg.Cookies.Path).
		Dur("probe_cache_ttl", cfg.Probe.CacheTTL).
		Msg("runtime configuration applied")
}

// Close stops the active job and releases the cache and tracer.
func (rt *Runtime) Close(ctx context.Context) error {
	rt.Orchestrator.CancelActive(ErrShuttingDown)

	var errs []error
	if c, ok := rt.Cache.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if err := rt.Telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
	}
	return errors.Join(errs...)
}

// Options configures Run.
type Options struct {
	ConfigPath string
	Version    string
}

// Run loads configuration, builds the runtime, and serves until ctx ends.
func Run(ctx context.Context, opts Options) error {
	loader := config.NewLoader(opts.ConfigPath, opts.Version)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log.Configure(log.Config{
		Level:   cfg.Log.Level,
		Service: cfg.Log.Service,
		Version: opts.Version,
	})
	logger := log.WithComponent("daemon")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}

	rt, err := Build(ctx, cfg, nil)
	if err != nil {
		return err
	}

	mgr, err := NewManager(DefaultServerConfig(cfg.ListenAddr), Deps{
		Logger:     logger,
		APIHandler: rt.Server.Handler(),
	})
	if err != nil {
		return err
	}
	mgr.RegisterShutdownHook("runtime", rt.Close)

	logger.Info().
		Str("version", opts.Version).
		Str("listen", cfg.ListenAddr).
		Str("extractor", cfg.Extractor.Bin).
		Str(log.FieldWorkspace, cfg.Workspace.Root).
		Msg("Starting vidgrab daemon")

	holder := config.NewConfigHolder(cfg, loader)
	return NewApp(logger, mgr, holder, rt.Apply).Run(ctx)
}
