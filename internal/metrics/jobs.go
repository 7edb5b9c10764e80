// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job outcome labels. Bounded set, never the job id.
const (
	OutcomeSuccess         = "success"
	OutcomeExtraction      = "extraction_failed"
	OutcomeNoOutput        = "no_output"
	OutcomeAmbiguousOutput = "ambiguous_output"
	OutcomeCookiesMissing  = "cookies_missing"
	OutcomeCancelled       = "cancelled"
	OutcomeError           = "error"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidgrab_jobs_total",
		Help: "Total number of download jobs, by platform, kind and outcome",
	}, []string{"platform", "kind", "outcome"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidgrab_job_duration_seconds",
		Help:    "Wall-clock duration of download jobs from submit to release",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"outcome"})

	jobState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vidgrab_job_state",
		Help: "Current orchestrator state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	busyRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidgrab_job_busy_rejections_total",
		Help: "Total number of download requests rejected because a job was active",
	})

	workspaceCleanupErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidgrab_workspace_cleanup_errors_total",
		Help: "Total number of workspace removals that returned an error",
	})
)

// ObserveJob records one finished job.
func ObserveJob(platform, kind, outcome string, d time.Duration) {
	outcome = normalizeOutcome(outcome)
	jobsTotal.WithLabelValues(labelOrUnknown(platform), labelOrUnknown(kind), outcome).Inc()
	jobDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// SetJobState marks state as the active orchestrator state.
func SetJobState(states []string, active string) {
	for _, s := range states {
		v := 0.0
		if s == active {
			v = 1
		}
		jobState.WithLabelValues(s).Set(v)
	}
}

// IncBusyRejection records a submit rejected with Busy.
func IncBusyRejection() {
	busyRejections.Inc()
}

// IncWorkspaceCleanupError records a failed workspace removal.
func IncWorkspaceCleanupError() {
	workspaceCleanupErrors.Inc()
}

func normalizeOutcome(outcome string) string {
	switch outcome {
	case OutcomeSuccess, OutcomeExtraction, OutcomeNoOutput, OutcomeAmbiguousOutput,
		OutcomeCookiesMissing, OutcomeCancelled:
		return outcome
	default:
		return OutcomeError
	}
}

func labelOrUnknown(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "unknown"
	}
	return v
}
