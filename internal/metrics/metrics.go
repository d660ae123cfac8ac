// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus collectors for playcore's pool,
// scheduler, and coordinator as one cohesive group of package-level
// promauto collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HandlesLive tracks the current number of live decoder handles.
	HandlesLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playcore_pool_handles_live",
		Help: "Current number of live decoder handles held by the pool",
	})

	// ReadyQueueLength tracks the current Ready Queue size.
	ReadyQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playcore_ready_queue_length",
		Help: "Current number of descriptors in the ready queue",
	})

	// CacheTarget tracks the scheduler's current soft cache target.
	CacheTarget = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playcore_scheduler_cache_target",
		Help: "Current progressive cache target",
	})

	// InitAttemptsTotal counts initialization attempts by outcome.
	InitAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_pool_init_attempts_total",
		Help: "Total handle initialization attempts by outcome",
	}, []string{"outcome"}) // success, failure

	// InitDuration tracks initialization latency.
	InitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "playcore_pool_init_duration_seconds",
		Help:    "Handle initialization duration",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13},
	})

	// EvictionsTotal counts evictions by trigger reason.
	EvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_pool_evictions_total",
		Help: "Total handle evictions by trigger",
	}, []string{"trigger"}) // "pool at capacity", "out of preload window", "memory pressure"

	// FocusTransitionsTotal counts successful focus() calls.
	FocusTransitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playcore_coordinator_focus_total",
		Help: "Total successful focus() transitions",
	})

	// SchedulerPassDuration tracks time spent in one scheduler pass.
	SchedulerPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "playcore_scheduler_pass_duration_seconds",
		Help:    "Duration of a single scheduler pass",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})
)
