// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for vidgrab.
//
// Precedence is ENV > YAML file > defaults. The YAML file is decoded
// strictly: unknown keys and multiple documents are rejected.
package config

import (
	"os"
	"time"
)

// AppConfig is the complete runtime configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	ListenAddr string          `yaml:"listen_addr"`
	Log        LogConfig       `yaml:"log"`
	Extractor  ExtractorConfig `yaml:"extractor"`
	Job        JobConfig       `yaml:"job"`
	Workspace  WorkspaceConfig `yaml:"workspace"`
	Cookies    CookiesConfig   `yaml:"cookies"`
	Probe      ProbeConfig     `yaml:"probe"`
	Cache      CacheConfig     `yaml:"cache"`
	Bus        BusConfig       `yaml:"bus"`
	RateLimit  RateLimitConfig `yaml:"ratelimit"`
	CORS       CORSConfig      `yaml:"cors"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

type ExtractorConfig struct {
	Bin       string        `yaml:"bin"`
	Args      []string      `yaml:"args"`
	KillGrace time.Duration `yaml:"kill_grace"`
}

type JobConfig struct {
	// Timeout bounds one download; 0 disables the bound.
	Timeout time.Duration `yaml:"timeout"`
}

type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

type CookiesConfig struct {
	Path     string `yaml:"path"`
	Required bool   `yaml:"required"`
}

type ProbeConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	Rate     float64       `yaml:"rate"`
	Burst    int           `yaml:"burst"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// CacheConfig selects the probe cache backend. An empty RedisAddr selects
// the in-memory cache.
type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type BusConfig struct {
	// Exclusive keeps only the newest subscriber per stream.
	Exclusive bool `yaml:"exclusive"`
	Buffer    int  `yaml:"buffer"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr: ":3000",
		Log:        LogConfig{Level: "info", Service: "vidgrab"},
		Extractor:  ExtractorConfig{Bin: "yt-dlp", KillGrace: 5 * time.Second},
		Job:        JobConfig{Timeout: 2 * time.Hour},
		Workspace:  WorkspaceConfig{Root: os.TempDir()},
		Cookies:    CookiesConfig{Path: "cookies.txt", Required: true},
		Probe: ProbeConfig{
			Timeout:  60 * time.Second,
			Rate:     2,
			Burst:    4,
			CacheTTL: 10 * time.Minute,
		},
		Bus:       BusConfig{Buffer: 256},
		RateLimit: RateLimitConfig{Enabled: true, RequestsPerMinute: 120},
		CORS:      CORSConfig{AllowedOrigins: []string{"*"}},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
