// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package host

import "github.com/prometheus/client_golang/prometheus"

// Transitions counts lifecycle transitions per plugin and target state.
// Use RegisterMetrics to register this with a Prometheus registry.
var Transitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wopr_plugin_transitions_total",
		Help: "Total number of plugin lifecycle transitions",
	},
	[]string{"plugin", "state"},
)

// HealthFailures counts failed liveness probes per plugin.
// Use RegisterMetrics to register this with a Prometheus registry.
var HealthFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wopr_plugin_health_failures_total",
		Help: "Total number of failed plugin health probes",
	},
	[]string{"plugin"},
)

// DrainTimeouts counts drains that exceeded the shutdown timeout.
// Use RegisterMetrics to register this with a Prometheus registry.
var DrainTimeouts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wopr_plugin_drain_timeouts_total",
		Help: "Total number of plugin drains that hit the shutdown timeout",
	},
	[]string{"plugin"},
)

// RegisterMetrics registers host package metrics with the given Prometheus
// registry. Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Transitions)
	reg.MustRegister(HealthFailures)
	reg.MustRegister(DrainTimeouts)
}
