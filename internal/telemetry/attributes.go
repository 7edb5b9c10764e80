// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// Job attributes
	JobIDKey       = "job.id"
	JobPlatformKey = "job.platform"
	JobQualityKey  = "job.quality"
	JobKindKey     = "job.kind"
	JobOutcomeKey  = "job.outcome"

	// Extractor attributes
	ExtractorSelectorKey = "extractor.selector"
	ExtractorExitCodeKey = "extractor.exit_code"
	ExtractorPIDKey      = "extractor.pid"

	// Probe attributes
	ProbeCacheHitKey   = "probe.cache_hit"
	ProbeCodecKey      = "probe.codec"
	ProbeResolutionKey = "probe.resolution"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// JobAttributes creates job-related span attributes.
func JobAttributes(id, platform, quality, kind string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if id != "" {
		attrs = append(attrs, attribute.String(JobIDKey, id))
	}
	if platform != "" {
		attrs = append(attrs, attribute.String(JobPlatformKey, platform))
	}
	if quality != "" {
		attrs = append(attrs, attribute.String(JobQualityKey, quality))
	}
	if kind != "" {
		attrs = append(attrs, attribute.String(JobKindKey, kind))
	}
	return attrs
}

// ExtractorAttributes creates process-related span attributes.
func ExtractorAttributes(selector string, pid, exitCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ExtractorSelectorKey, selector),
		attribute.Int(ExtractorPIDKey, pid),
		attribute.Int(ExtractorExitCodeKey, exitCode),
	}
}

// ProbeAttributes creates probe-related span attributes.
func ProbeAttributes(resolution, codec string, cacheHit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ProbeResolutionKey, resolution),
		attribute.String(ProbeCodecKey, codec),
		attribute.Bool(ProbeCacheHitKey, cacheHit),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
