// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "aleutian"
	panelSubsystem   = "panel"
)

// Cycle outcomes used as the "outcome" label.
const (
	outcomeSuccess    = "success"
	outcomeFailure    = "failure"
	outcomeSuperseded = "superseded"
)

// Metrics holds the controller's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	CyclesTotal             *prometheus.CounterVec
	CycleDurationSeconds    *prometheus.HistogramVec
	TimeToFirstTokenSeconds *prometheus.HistogramVec
	StreamUpdatesTotal      *prometheus.CounterVec
	IgnoredSendsTotal       *prometheus.CounterVec
}

// NewMetrics creates and registers the controller collectors on reg.
//
// # Inputs
//
//   - reg: Registry to register on. Use prometheus.DefaultRegisterer for the
//     process-wide /metrics endpoint or prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: panelSubsystem,
				Name:      "cycles_total",
				Help:      "Completed request cycles by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		CycleDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: panelSubsystem,
				Name:      "cycle_duration_seconds",
				Help:      "Time from send to final answer in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"mode"},
		),
		TimeToFirstTokenSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: panelSubsystem,
				Name:      "time_to_first_token_seconds",
				Help:      "Time from send to the first streamed snapshot in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"mode"},
		),
		StreamUpdatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: panelSubsystem,
				Name:      "stream_updates_total",
				Help:      "Streaming snapshots applied to the buffer",
			},
			[]string{"mode"},
		),
		IgnoredSendsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: panelSubsystem,
				Name:      "ignored_sends_total",
				Help:      "Send requests ignored because input was empty or a cycle was in flight",
			},
			[]string{"reason"},
		),
	}
}

func (m *Metrics) recordCycle(mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(mode, outcome).Inc()
	m.CycleDurationSeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *Metrics) recordFirstToken(mode string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TimeToFirstTokenSeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *Metrics) recordStreamUpdate(mode string) {
	if m == nil {
		return
	}
	m.StreamUpdatesTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) recordIgnored(reason string) {
	if m == nil {
		return
	}
	m.IgnoredSendsTotal.WithLabelValues(reason).Inc()
}
