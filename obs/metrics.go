// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	AdmissionsTotal  *prometheus.CounterVec   // kind, result
	ResolutionsTotal *prometheus.CounterVec   // method, result
	LifecycleTotal   *prometheus.CounterVec   // op=create|extend|cancel, result
	CASRetriesTotal  *prometheus.CounterVec   // op
	OpLatencyMS      *prometheus.HistogramVec // op

	SweepRunsTotal     prometheus.Counter
	SweepFailuresTotal prometheus.Counter
	EventsDropped      prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AdmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allocation_admissions_total",
				Help: "Total admission attempts by process kind and result",
			},
			[]string{"kind", "result"},
		),
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allocation_resolutions_total",
				Help: "Total resolve attempts by method and result",
			},
			[]string{"method", "result"},
		),
		LifecycleTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allocation_lifecycle_total",
				Help: "Total lifecycle operations by op and result",
			},
			[]string{"op", "result"},
		),
		CASRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allocation_cas_retries_total",
				Help: "Conditional writes retried after losing a race or hitting a busy store",
			},
			[]string{"op"},
		),
		OpLatencyMS: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "allocation_op_latency_ms",
				Help:    "Latency of engine operations (ms)",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms .. ~2048ms
			},
			[]string{"op"},
		),
		SweepRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "allocation_sweep_runs_total",
			Help: "Total sweep passes",
		}),
		SweepFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "allocation_sweep_failures_total",
			Help: "Total per-process failures during sweep passes",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "allocation_events_dropped_total",
			Help: "Activity events dropped because the dispatch buffer was full",
		}),
	}

	reg.MustRegister(
		m.AdmissionsTotal,
		m.ResolutionsTotal,
		m.LifecycleTotal,
		m.CASRetriesTotal,
		m.OpLatencyMS,
		m.SweepRunsTotal,
		m.SweepFailuresTotal,
		m.EventsDropped,
	)

	return m
}

func (m *Metrics) Admission(kind, result string) {
	if m == nil {
		return
	}
	m.AdmissionsTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Resolution(method, result string) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(method, result).Inc()
}

func (m *Metrics) Lifecycle(op, result string) {
	if m == nil {
		return
	}
	m.LifecycleTotal.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Retry(op string) {
	if m == nil {
		return
	}
	m.CASRetriesTotal.WithLabelValues(op).Inc()
}

// ObserveSince records the elapsed time since start for op.
func (m *Metrics) ObserveSince(op string, start time.Time) {
	if m == nil {
		return
	}
	m.OpLatencyMS.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
}

func (m *Metrics) SweepRun(failures int) {
	if m == nil {
		return
	}
	m.SweepRunsTotal.Inc()
	m.SweepFailuresTotal.Add(float64(failures))
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}
