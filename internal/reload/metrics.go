// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package reload

import "github.com/prometheus/client_golang/prometheus"

// Reload results.
const (
	ResultSwapped     = "swapped"
	ResultBuildFailed = "build_failed"
	ResultLoadFailed  = "load_failed"
	ResultBindFailed  = "bind_failed"
	ResultInitFailed  = "init_failed"
	ResultStateFailed = "state_failed"
)

// Attempts counts reload attempts by result.
// Use RegisterMetrics to register this with a Prometheus registry.
var Attempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "crossweb_reload_attempts_total",
		Help: "Total number of module reload attempts",
	},
	[]string{"result"},
)

// BoundGeneration is the generation of the currently bound module.
var BoundGeneration = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "crossweb_reload_generation",
	Help: "Generation of the bound module",
})

// RegisterMetrics registers reload metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Attempts)
	reg.MustRegister(BoundGeneration)
}
