// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package bus

import "github.com/prometheus/client_golang/prometheus"

// EventsEmitted counts emissions per event type.
// Use RegisterMetrics to register this with a Prometheus registry.
var EventsEmitted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wopr_events_emitted_total",
		Help: "Total number of events emitted on the bus",
	},
	[]string{"event"},
)

// HandlerFailures counts isolated handler and hook failures per plugin.
// Use RegisterMetrics to register this with a Prometheus registry.
var HandlerFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wopr_handler_failures_total",
		Help: "Total number of isolated plugin handler failures",
	},
	[]string{"context", "plugin"},
)

// HooksExecuted counts hook executions per event type and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var HooksExecuted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wopr_hooks_executed_total",
		Help: "Total number of hook executions",
	},
	[]string{"event", "outcome"},
)

// RegisterMetrics registers bus package metrics with the given Prometheus
// registry. Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(EventsEmitted)
	reg.MustRegister(HandlerFailures)
	reg.MustRegister(HooksExecuted)
}
