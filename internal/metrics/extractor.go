// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	extractorStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidgrab_extractor_starts_total",
		Help: "Total number of extractor process spawns, by mode and result",
	}, []string{"mode", "result"})

	extractorExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidgrab_extractor_exits_total",
		Help: "Total number of extractor process exits, by reason",
	}, []string{"reason"})

	extractorExitCodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidgrab_extractor_exit_code_total",
		Help: "Total number of extractor process exits, by bounded exit code class",
	}, []string{"code"})

	extractorDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vidgrab_extractor_duration_seconds",
		Help:    "Runtime of extractor download processes",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
	})

	procTerminate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidgrab_proc_terminate_total",
		Help: "Process group termination signals, by signal and result",
	}, []string{"signal", "result"})

	procWait = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidgrab_proc_wait_total",
		Help: "Process wait outcomes after termination, by outcome",
	}, []string{"outcome"})
)

// IncExtractorStart records a spawn attempt for mode ("download" or "probe").
func IncExtractorStart(mode, result string) {
	extractorStarts.WithLabelValues(labelOrUnknown(mode), labelOrUnknown(result)).Inc()
}

// ObserveExtractorExit records a finished download process.
func ObserveExtractorExit(reason string, code int, seconds float64) {
	extractorExits.WithLabelValues(labelOrUnknown(reason)).Inc()
	extractorExitCodes.WithLabelValues(exitCodeClass(code)).Inc()
	extractorDuration.Observe(seconds)
}

// IncProcTerminate records a termination signal delivery.
func IncProcTerminate(signal, result string) {
	procTerminate.WithLabelValues(signal, result).Inc()
}

// IncProcWait records the wait outcome following a termination.
func IncProcWait(outcome string) {
	procWait.WithLabelValues(outcome).Inc()
}

func exitCodeClass(code int) string {
	switch {
	case code == 0:
		return "0"
	case code == 1 || code == 2:
		return strconv.Itoa(code)
	case code < 0:
		return "signal"
	case code > 128:
		return "gt128"
	default:
		return "other"
	}
}
