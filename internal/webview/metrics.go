// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package webview

import "github.com/prometheus/client_golang/prometheus"

// Clients is the number of connected dev pages.
// Use RegisterMetrics to register this with a Prometheus registry.
var Clients = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "crossweb_webview_clients",
	Help: "Pages connected to the dev webview",
})

// RegisterMetrics registers webview metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Clients)
}
