// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidgrab_bus_dropped_total",
		Help: "Total number of event bus deliveries dropped, by topic and reason",
	}, []string{"topic", "reason"})

	BusSubscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vidgrab_bus_subscribers",
		Help: "Current number of attached event bus subscribers, by topic",
	}, []string{"topic"})
)

// IncBusDrop records a delivery dropped because a subscriber buffer was full.
func IncBusDrop(topic string) {
	IncBusDropReason(topic, "full")
}

// IncBusDropReason records a dropped delivery with a concrete reason.
func IncBusDropReason(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	BusDroppedTotal.WithLabelValues(topic, reason).Inc()
}

// SetBusSubscribers records the number of attached subscribers for topic.
func SetBusSubscribers(topic string, n int) {
	if topic == "" {
		topic = "unknown"
	}
	BusSubscribers.WithLabelValues(topic).Set(float64(n))
}
