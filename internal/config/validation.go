// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"github.com/ManuGH/vidgrab/internal/validate"
)

// Validate validates an AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("ListenAddr", cfg.ListenAddr)
	v.LogLevel("Log.Level", cfg.Log.Level)

	v.NotEmpty("Extractor.Bin", cfg.Extractor.Bin)
	v.NonNegativeDuration("Extractor.KillGrace", cfg.Extractor.KillGrace)
	v.NonNegativeDuration("Job.Timeout", cfg.Job.Timeout)
	v.Directory("Workspace.Root", cfg.Workspace.Root, false)

	if cfg.Cookies.Required {
		v.NotEmpty("Cookies.Path", cfg.Cookies.Path)
	}

	v.PositiveDuration("Probe.Timeout", cfg.Probe.Timeout)
	// A zero rate disables probe limiting, and the burst with it.
	v.FloatRange("Probe.Rate", cfg.Probe.Rate, 0, 1000)
	if cfg.Probe.Rate > 0 {
		v.Range("Probe.Burst", cfg.Probe.Burst, 1, 1000)
	}
	v.NonNegativeDuration("Probe.CacheTTL", cfg.Probe.CacheTTL)
	v.Range("Cache.RedisDB", cfg.Cache.RedisDB, 0, 15)

	v.Range("Bus.Buffer", cfg.Bus.Buffer, 1, 65536)

	if cfg.RateLimit.Enabled {
		v.Positive("RateLimit.RequestsPerMinute", cfg.RateLimit.RequestsPerMinute)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
