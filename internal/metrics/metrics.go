// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Package metrics assembles the Prometheus registry served by the dev
// webview.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/crossweb-dev/crossweb/internal/ipc"
	"github.com/crossweb-dev/crossweb/internal/plugin"
	"github.com/crossweb-dev/crossweb/internal/reload"
	"github.com/crossweb-dev/crossweb/internal/webview"
)

// NewRegistry returns a registry holding the Go and process collectors and
// every crossweb metric.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	Register(registry)
	return registry
}

// Register adds the crossweb metrics to reg. It panics if any are already
// registered there.
func Register(reg prometheus.Registerer) {
	ipc.RegisterMetrics(reg)
	plugin.RegisterMetrics(reg)
	reload.RegisterMetrics(reg)
	webview.RegisterMetrics(reg)
}
