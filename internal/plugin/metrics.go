// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package plugin

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status constants for dispatch metrics.
const (
	StatusSuccess        = "success"
	StatusError          = "error"
	StatusInvalidCommand = "invalid_command"
	StatusUnknownPlugin  = "unknown_plugin"
	StatusUnavailable    = "unavailable"
	StatusUnsupported    = "unsupported"
	StatusTimeout        = "timeout"
)

// labelUnrouted keeps caller-controlled names out of label values.
const labelUnrouted = "_unrouted"

// Dispatches counts dispatched commands.
// Use RegisterMetrics to register this with a Prometheus registry.
var Dispatches = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "crossweb_dispatch_total",
		Help: "Total number of dispatched commands",
	},
	[]string{"plugin", "status"},
)

// DispatchDuration observes how long Invoke took to return.
var DispatchDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "crossweb_dispatch_duration_seconds",
		Help:    "Time spent in plugin Invoke",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"plugin"},
)

// PendingRequests is the number of requests awaiting a reply.
var PendingRequests = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "crossweb_pending_requests",
	Help: "Requests dispatched and not yet answered",
})

// RegisterMetrics registers plugin package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Dispatches)
	reg.MustRegister(DispatchDuration)
	reg.MustRegister(PendingRequests)
}

// RecordDispatch records one dispatch outcome.
func RecordDispatch(plugin, status string, d time.Duration) {
	Dispatches.WithLabelValues(plugin, status).Inc()
	DispatchDuration.WithLabelValues(plugin).Observe(d.Seconds())
}
