// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package ipc

import "github.com/prometheus/client_golang/prometheus"

// Frame results.
const (
	ResultAccepted       = "accepted"
	ResultInvalidFrame   = "invalid_frame"
	ResultInvalidPayload = "invalid_payload"
	ResultQueueFull      = "queue_full"
)

// FramesReceived counts inbound frames by result.
// Use RegisterMetrics to register this with a Prometheus registry.
var FramesReceived = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "crossweb_ipc_frames_received_total",
		Help: "Total number of inbound IPC frames",
	},
	[]string{"result"},
)

// ScriptsEvaluated counts native to web scripts by kind and outcome.
var ScriptsEvaluated = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "crossweb_ipc_scripts_evaluated_total",
		Help: "Total number of scripts pushed to the webview",
	},
	[]string{"kind", "status"},
)

// RegisterMetrics registers ipc metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(FramesReceived)
	reg.MustRegister(ScriptsEvaluated)
}
