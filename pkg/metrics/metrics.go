// Copyright 2025 The axfor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"voteStore/internal/storage"
	"voteStore/pkg/reliability"
)

// Namespace for all voteStore metrics
const (
	namespace = "votestore"
	subsystem = "server"
)

// Metrics holds all Prometheus metrics for the voteStore server
type Metrics struct {
	// gRPC request metrics
	GrpcRequestDuration *prometheus.HistogramVec
	GrpcRequestTotal    *prometheus.CounterVec
	GrpcRequestInFlight *prometheus.GaugeVec

	// HTTP gateway metrics
	HTTPRequestDuration *prometheus.HistogramVec

	// Connection metrics
	ActiveConnections   prometheus.Gauge
	TotalConnections    prometheus.Counter
	RejectedConnections *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Storage operation metrics
	StorageOperationDuration *prometheus.HistogramVec
	StorageOperationTotal    *prometheus.CounterVec
	StorageOperationErrors   *prometheus.CounterVec

	// Ballot metrics
	VotesTotal            *prometheus.CounterVec
	ProposalsCreatedTotal prometheus.Counter
	ProposalsClosedTotal  prometheus.Counter
	BallotRejectionsTotal *prometheus.CounterVec
	ValidationErrorsTotal prometheus.CounterFunc

	// Panic recovery metrics
	PanicsRecovered *prometheus.CounterVec
}

// New creates and registers all metrics
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	m := &Metrics{
		GrpcRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "grpc",
				Name:      "request_duration_seconds",
				Help:      "Histogram of gRPC request latencies",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "code"},
		),

		GrpcRequestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "grpc",
				Name:      "request_total",
				Help:      "Total number of gRPC requests",
			},
			[]string{"method", "code"},
		),

		GrpcRequestInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "grpc",
				Name:      "request_in_flight",
				Help:      "Current number of in-flight gRPC requests",
			},
			[]string{"method"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Histogram of HTTP gateway request latencies",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "code"},
		),

		ActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "active_connections",
				Help:      "Current number of active connections",
			},
		),

		TotalConnections: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "connections_total",
				Help:      "Total number of connections accepted",
			},
		),

		RejectedConnections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rejected_connections_total",
				Help:      "Total number of connections rejected",
			},
			[]string{"reason"}, // "limit_exceeded"
		),

		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rate_limit_hits_total",
				Help:      "Total number of rate limit hits",
			},
			[]string{"method"},
		),

		StorageOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "operation_duration_seconds",
				Help:      "Histogram of storage operation latencies",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"operation", "bucket", "status"},
		),

		StorageOperationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "operation_total",
				Help:      "Total number of storage operations",
			},
			[]string{"operation", "bucket"},
		),

		StorageOperationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "operation_errors_total",
				Help:      "Total number of storage operation errors",
			},
			[]string{"operation", "error"},
		),

		VotesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ballot",
				Name:      "votes_total",
				Help:      "Total number of accepted votes",
			},
			[]string{"choice"}, // "approve", "reject", "pass"
		),

		ProposalsCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ballot",
				Name:      "proposals_created_total",
				Help:      "Total number of proposals created",
			},
		),

		ProposalsClosedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ballot",
				Name:      "proposals_closed_total",
				Help:      "Total number of proposals closed",
			},
		),

		BallotRejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ballot",
				Name:      "rejections_total",
				Help:      "Total number of rejected ballot operations",
			},
			[]string{"operation", "kind"},
		),

		ValidationErrorsTotal: factory.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "validation_errors_total",
				Help:      "Total number of stored values that failed CRC validation",
			},
			func() float64 { return float64(reliability.GetValidationErrorCount()) },
		),

		PanicsRecovered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "panics_recovered_total",
				Help:      "Total number of panics recovered",
			},
			[]string{"method"},
		),
	}

	return m
}

// RecordGrpcRequest records a gRPC request's duration and status
func (m *Metrics) RecordGrpcRequest(method string, code string, duration time.Duration) {
	m.GrpcRequestDuration.WithLabelValues(method, code).Observe(duration.Seconds())
	m.GrpcRequestTotal.WithLabelValues(method, code).Inc()
}

// RecordHTTPRequest records an HTTP gateway request
func (m *Metrics) RecordHTTPRequest(route string, code int, duration time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(route, statusClass(code)).Observe(duration.Seconds())
}

// ObserveStorage matches kvstore.Observer and records one backend call
func (m *Metrics) ObserveStorage(operation, bucket string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.RecordStorageError(operation, storageErrorType(err))
	}
	m.StorageOperationDuration.WithLabelValues(operation, bucket, status).Observe(duration.Seconds())
	m.StorageOperationTotal.WithLabelValues(operation, bucket).Inc()
}

// RecordStorageError records a storage operation error
func (m *Metrics) RecordStorageError(operation string, errorType string) {
	m.StorageOperationErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordVote implements ballot.Recorder
func (m *Metrics) RecordVote(choice string) {
	m.VotesTotal.WithLabelValues(choice).Inc()
}

// RecordProposalCreated implements ballot.Recorder
func (m *Metrics) RecordProposalCreated() {
	m.ProposalsCreatedTotal.Inc()
}

// RecordProposalClosed implements ballot.Recorder
func (m *Metrics) RecordProposalClosed() {
	m.ProposalsClosedTotal.Inc()
}

// RecordRejection implements ballot.Recorder
func (m *Metrics) RecordRejection(operation, kind string) {
	m.BallotRejectionsTotal.WithLabelValues(operation, kind).Inc()
}

// RecordRateLimitHit records a rate limit hit
func (m *Metrics) RecordRateLimitHit(method string) {
	m.RateLimitHits.WithLabelValues(method).Inc()
}

// RecordConnectionRejected records a rejected connection
func (m *Metrics) RecordConnectionRejected(reason string) {
	m.RejectedConnections.WithLabelValues(reason).Inc()
}

// RecordPanicRecovered records a recovered panic
func (m *Metrics) RecordPanicRecovered(method string) {
	m.PanicsRecovered.WithLabelValues(method).Inc()
}

func storageErrorType(err error) string {
	switch {
	case errors.Is(err, storage.ErrClosed):
		return "closed"
	case errors.Is(err, reliability.ErrChecksum):
		return "checksum"
	default:
		return "io"
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
