// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, gauge.Write(metric))
	return metric.GetGauge().GetValue()
}

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func TestIncBusDropReason_DefaultsLabels(t *testing.T) {
	before := getCounterValue(t, BusDroppedTotal.WithLabelValues("unknown", "unknown"))
	IncBusDropReason("", "")
	after := getCounterValue(t, BusDroppedTotal.WithLabelValues("unknown", "unknown"))
	assert.Equal(t, before+1, after)

	before = getCounterValue(t, BusDroppedTotal.WithLabelValues("progress", "full"))
	IncBusDrop("progress")
	assert.Equal(t, before+1, getCounterValue(t, BusDroppedTotal.WithLabelValues("progress", "full")))
}

func TestSetJobState_SingleActive(t *testing.T) {
	states := []string{"idle", "provisioning", "running", "finalizing"}
	SetJobState(states, "running")

	for _, s := range states {
		want := 0.0
		if s == "running" {
			want = 1
		}
		assert.Equal(t, want, getGaugeValue(t, jobState.WithLabelValues(s)), s)
	}
}

func TestObserveJob_NormalizesOutcome(t *testing.T) {
	before := getCounterValue(t, jobsTotal.WithLabelValues("youtube", "video", OutcomeError))
	ObserveJob("YouTube", "video", "weird", time.Second)
	after := getCounterValue(t, jobsTotal.WithLabelValues("youtube", "video", OutcomeError))
	assert.Equal(t, before+1, after)
}

func TestExitCodeClass(t *testing.T) {
	tests := map[int]string{0: "0", 1: "1", 2: "2", 3: "other", 137: "gt128", -1: "signal"}
	for code, want := range tests {
		assert.Equal(t, want, exitCodeClass(code), "code %d", code)
	}
}
