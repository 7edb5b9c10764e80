// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // every env key the loader looked at
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path, empty for ENV-only configuration.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envSlice(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseStringSlice(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults, then
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if cfg.Workspace.Root != "" {
		if abs, err := filepath.Abs(cfg.Workspace.Root); err == nil {
			cfg.Workspace.Root = abs
		}
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

// mergeEnv overrides cfg with VIDGRAB_* environment variables.
func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.ListenAddr = l.envString(EnvPrefix+"LISTEN_ADDR", cfg.ListenAddr)

	cfg.Log.Level = l.envString(EnvPrefix+"LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Service = l.envString(EnvPrefix+"LOG_SERVICE", cfg.Log.Service)

	cfg.Extractor.Bin = l.envString(EnvPrefix+"EXTRACTOR_BIN", cfg.Extractor.Bin)
	cfg.Extractor.Args = l.envSlice(EnvPrefix+"EXTRACTOR_ARGS", cfg.Extractor.Args)
	cfg.Extractor.KillGrace = l.envDuration(EnvPrefix+"EXTRACTOR_KILL_GRACE", cfg.Extractor.KillGrace)

	cfg.Job.Timeout = l.envDuration(EnvPrefix+"JOB_TIMEOUT", cfg.Job.Timeout)
	cfg.Workspace.Root = l.envString(EnvPrefix+"WORKSPACE_ROOT", cfg.Workspace.Root)

	cfg.Cookies.Path = l.envString(EnvPrefix+"COOKIES_PATH", cfg.Cookies.Path)
	cfg.Cookies.Required = l.envBool(EnvPrefix+"COOKIES_REQUIRED", cfg.Cookies.Required)

	cfg.Probe.Timeout = l.envDuration(EnvPrefix+"PROBE_TIMEOUT", cfg.Probe.Timeout)
	cfg.Probe.Rate = l.envFloat(EnvPrefix+"PROBE_RATE", cfg.Probe.Rate)
	cfg.Probe.Burst = l.envInt(EnvPrefix+"PROBE_BURST", cfg.Probe.Burst)
	cfg.Probe.CacheTTL = l.envDuration(EnvPrefix+"PROBE_CACHE_TTL", cfg.Probe.CacheTTL)

	cfg.Cache.RedisAddr = l.envString(EnvPrefix+"REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = l.envString(EnvPrefix+"REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = l.envInt(EnvPrefix+"REDIS_DB", cfg.Cache.RedisDB)

	cfg.Bus.Exclusive = l.envBool(EnvPrefix+"BUS_EXCLUSIVE", cfg.Bus.Exclusive)
	cfg.Bus.Buffer = l.envInt(EnvPrefix+"BUS_BUFFER", cfg.Bus.Buffer)

	cfg.RateLimit.Enabled = l.envBool(EnvPrefix+"RATELIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMinute = l.envInt(EnvPrefix+"RATELIMIT_RPM", cfg.RateLimit.RequestsPerMinute)

	cfg.CORS.AllowedOrigins = l.envSlice(EnvPrefix+"CORS_ORIGINS", cfg.CORS.AllowedOrigins)

	cfg.Telemetry.Enabled = l.envBool(EnvPrefix+"TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvPrefix+"TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvPrefix+"TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvPrefix+"TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}
