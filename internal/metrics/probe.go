// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	probeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidgrab_probe_total",
		Help: "Total number of metadata probes, by platform and result",
	}, []string{"platform", "result"}) // result=success|failure|placeholder

	probeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vidgrab_probe_duration_seconds",
		Help:    "Duration of extractor metadata probes",
		Buckets: prometheus.DefBuckets,
	})

	probeCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidgrab_probe_cache_total",
		Help: "Probe cache lookups, by result",
	}, []string{"result"}) // result=hit|miss|error

	probeThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidgrab_probe_throttled_total",
		Help: "Total number of probes that waited on the spawn rate limiter",
	})
)

// IncProbe records a probe result for platform.
func IncProbe(platform, result string) {
	probeTotal.WithLabelValues(labelOrUnknown(platform), labelOrUnknown(result)).Inc()
}

// ObserveProbeDuration records how long an extractor probe took.
func ObserveProbeDuration(seconds float64) {
	probeDuration.Observe(seconds)
}

// IncProbeCache records a cache lookup result.
func IncProbeCache(result string) {
	probeCache.WithLabelValues(result).Inc()
}

// IncProbeThrottled records a probe delayed by the spawn limiter.
func IncProbeThrottled() {
	probeThrottled.Inc()
}
