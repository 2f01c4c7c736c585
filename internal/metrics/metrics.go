// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics records optimization outcomes on a private prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels of coffee_optimizations_total.
const (
	StatusOK      = "ok"
	StatusInvalid = "invalid"
	StatusFailed  = "failed"
)

// Metrics holds the registry and the optimization collectors.
type Metrics struct {
	registry *prometheus.Registry

	Optimizations *prometheus.CounterVec // by status
	Duration      prometheus.Histogram   // wall time of converged runs
	Iterations    prometheus.Histogram   // outer iterations of converged runs
}

// New creates a registry with the Go runtime and process collectors and
// the optimization metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		Optimizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coffee_optimizations_total",
			Help: "Total number of optimization requests by outcome",
		}, []string{"status"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coffee_optimization_duration_seconds",
			Help:    "Wall time of completed optimizations in seconds",
			Buckets: prometheus.ExponentialBuckets(1e-4, 4, 10),
		}),
		Iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coffee_optimization_iterations",
			Help:    "Outer trust-region iterations of completed optimizations",
			Buckets: prometheus.LinearBuckets(0, 25, 11),
		}),
	}
	reg.MustRegister(m.Optimizations, m.Duration, m.Iterations)
	return m
}

// Observe records one optimization. Duration and iterations are only
// recorded for successful runs.
func (m *Metrics) Observe(status string, elapsed time.Duration, iterations int) {
	m.Optimizations.WithLabelValues(status).Inc()
	if status == StatusOK {
		m.Duration.Observe(elapsed.Seconds())
		m.Iterations.Observe(float64(iterations))
	}
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
