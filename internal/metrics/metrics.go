// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

// Package metrics provides Prometheus instrumentation for the ingest
// pipeline, the reading store, the WebSocket fanout, and the query API.
// Metrics are exposed in Prometheus text format at /metrics on the query
// API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest metrics

	IngestDatagramsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_datagrams_total",
			Help: "Total UDP datagrams received, by processing result",
		},
		[]string{"result"}, // "stored", "duplicate", "store_error"
	)

	IngestLastValue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_last_value",
			Help: "Most recently stored sensor value",
		},
	)

	// Store metrics

	StoreReadingsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_readings_evicted_total",
			Help: "Total readings deleted by the retention window",
		},
	)

	// WebSocket fanout metrics

	SubscribersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_subscribers_active",
			Help: "Currently connected WebSocket subscribers",
		},
	)

	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total messages queued to subscribers, by message type",
		},
		[]string{"type"},
	)

	MessagesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Total broadcast messages dropped because a queue was full",
		},
	)

	// Query API metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "path", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "path"},
	)
)
