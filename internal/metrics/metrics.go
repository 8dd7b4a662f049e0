// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package metrics defines Prometheus instrumentation for Geodepot:
// proxy endpoint latency and throughput, object storage reads, tile cache
// efficiency, fetch engine progress, and circuit breaker state.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Object storage proxy metrics
	ProxyBytesServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_bytes_served_total",
			Help: "Total bytes proxied from object storage to clients",
		},
		[]string{"ranged"}, // "true" for 206 responses
	)

	StorageRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_request_duration_seconds",
			Help:    "Duration of object storage requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "get", "get_range", "head", "list"
	)

	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_errors_total",
			Help: "Total number of object storage errors",
		},
		[]string{"operation", "status_code"},
	)

	// Tile cache metrics
	TileCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tile_cache_hits_total",
			Help: "Total number of tile cache hits",
		},
	)

	TileCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tile_cache_misses_total",
			Help: "Total number of tile cache misses",
		},
	)

	TileCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tile_cache_entries",
			Help: "Current number of cached tiles",
		},
	)

	TileCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tile_cache_evictions_total",
			Help: "Total number of tile cache evictions",
		},
	)

	// Fetch engine metrics
	FetchRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_records_total",
			Help: "Total number of inventory records fetched",
		},
		[]string{"source"},
	)

	FetchBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_bytes_total",
			Help: "Total bytes downloaded by the fetch engine",
		},
		[]string{"source"},
	)

	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_errors_total",
			Help: "Total number of fetch errors",
		},
		[]string{"source", "error_type"}, // "inventory", "range", "write"
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_run_duration_seconds",
			Help:    "Duration of full run synchronizations",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// Chunk index metrics
	IndexRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "index_chunk_records",
			Help: "Current number of chunk references in the index store",
		},
	)

	IndexWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "index_writes_total",
			Help: "Total number of chunk references written to the index",
		},
	)

	IndexDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "index_records_dropped_total",
			Help: "Total inventory records dropped for missing variable mappings",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordAPIRequest records a completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordStorageRequest records a completed object storage request.
func RecordStorageRequest(operation string, statusCode int, duration time.Duration, err error) {
	StorageRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StorageErrors.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	}
}
