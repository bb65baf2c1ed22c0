// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability holds the Prometheus metrics for the chat
// service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Endpoint labels used on request metrics.
const (
	EndpointChat       = "chat"
	EndpointChatStream = "chat_stream"
)

// Metrics groups every Prometheus series the chat service exports.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	ActiveStreams    prometheus.Gauge
	StreamDuration   prometheus.Histogram
	TimeToFirstToken prometheus.Histogram
	StreamChunks     prometheus.Counter

	RetrievedPassages prometheus.Histogram
}

// Default is the process-wide metrics instance, set by Init.
var Default *Metrics

// Init registers the chat metrics with a registerer and stores the
// result in Default. Pass prometheus.DefaultRegisterer in production.
func Init(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Chat requests by endpoint and outcome.",
		}, []string{"endpoint", "status"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_errors_total",
			Help: "Chat request failures by endpoint and error kind.",
		}, []string{"endpoint", "kind"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_request_duration_seconds",
			Help:    "End-to-end chat request latency.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"endpoint"}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_active_streams",
			Help: "Streams currently open to clients.",
		}),
		StreamDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_stream_duration_seconds",
			Help:    "Lifetime of completed streams.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		TimeToFirstToken: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_stream_first_token_seconds",
			Help:    "Delay between stream start and the first answer token.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		StreamChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_stream_chunks_total",
			Help: "Chunks delivered to streaming clients.",
		}),
		RetrievedPassages: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_retrieved_passages",
			Help:    "Passages retrieved per request.",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}),
	}

	Default = m
	return m
}

// RecordRequest counts one finished request.
func (m *Metrics) RecordRequest(endpoint, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(seconds)
}

// RecordError counts one failed request.
func (m *Metrics) RecordError(endpoint, kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(endpoint, kind).Inc()
}

// RecordRetrievedPassages records how many passages grounded a request.
func (m *Metrics) RecordRetrievedPassages(n int) {
	if m == nil {
		return
	}
	m.RetrievedPassages.Observe(float64(n))
}

// StreamStarted marks a stream as open.
func (m *Metrics) StreamStarted() {
	if m == nil {
		return
	}
	m.ActiveStreams.Inc()
}

// StreamEnded marks a stream as closed and records its lifetime.
func (m *Metrics) StreamEnded(seconds float64) {
	if m == nil {
		return
	}
	m.ActiveStreams.Dec()
	m.StreamDuration.Observe(seconds)
}
