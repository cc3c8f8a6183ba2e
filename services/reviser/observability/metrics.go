// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the reviser.
//
// # Description
//
// This package implements Prometheus metrics for monitoring revision
// operations. Metrics include:
//   - Request counters (by operation, status, error type)
//   - Edit outcome counters (applied, skipped, failed)
//   - Anchor match counters by confidence tier
//   - Duration histograms and active-operation gauges
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/redlinehq/redline/services/reviser/patch"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "redline"

// Subsystem for revision metrics
const revisionSubsystem = "revision"

// RevisionMetrics holds all Prometheus metrics for revision operations.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring patch throughput
// and anchor quality. Initialize once at startup via InitMetrics().
//
// # Fields
//
//   - RequestsTotal: Counter of revision requests by operation and status
//   - EditOutcomesTotal: Counter of per-edit outcomes
//   - AnchorTiersTotal: Counter of anchor matches by confidence tier
//   - CollisionGuardsTotal: Counter of edits stopped by the collision guard
//   - RevisionDurationSeconds: Histogram of operation duration
//   - ActiveRevisions: Gauge of in-flight operations
//   - ErrorsTotal: Counter of errors by operation and type
//   - ChunksIngestedTotal: Counter of knowledge base chunks written
//
// # Thread Safety
//
// All operations are thread-safe.
type RevisionMetrics struct {
	// RequestsTotal counts revision requests by operation and status.
	// Labels: operation (patch, check, expand, ingest), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// EditOutcomesTotal counts individual edit outcomes.
	// Labels: outcome (applied, skipped_duplicate, skipped_noop, failed)
	EditOutcomesTotal *prometheus.CounterVec

	// AnchorTiersTotal counts located anchors by matching stage.
	// Labels: tier (exact, fuzzy_high, fuzzy_mid, fuzzy_low)
	AnchorTiersTotal *prometheus.CounterVec

	// CollisionGuardsTotal counts edits the collision guard refused.
	CollisionGuardsTotal prometheus.Counter

	// RevisionDurationSeconds measures end-to-end operation duration.
	// Labels: operation, status (success, error)
	RevisionDurationSeconds *prometheus.HistogramVec

	// ActiveRevisions tracks in-flight operations.
	// Labels: operation
	ActiveRevisions *prometheus.GaugeVec

	// ErrorsTotal counts errors by operation and type.
	// Labels: operation, error_code (validation, llm_error, kb_error, etc.)
	ErrorsTotal *prometheus.CounterVec

	// ChunksIngestedTotal counts chunks written to the knowledge base.
	ChunksIngestedTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of RevisionMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *RevisionMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup, after Prometheus registry is available.
//
// # Outputs
//
//   - *RevisionMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
//
// # Assumptions
//
//   - Prometheus default registry is available.
func InitMetrics() *RevisionMetrics {
	DefaultMetrics = &RevisionMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: revisionSubsystem,
				Name:      "requests_total",
				Help:      "Total revision requests by operation and status",
			},
			[]string{"operation", "status"},
		),

		EditOutcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: revisionSubsystem,
				Name:      "edit_outcomes_total",
				Help:      "Total per-edit outcomes across all patched documents",
			},
			[]string{"outcome"},
		),

		AnchorTiersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: revisionSubsystem,
				Name:      "anchor_tiers_total",
				Help:      "Total located anchors by matching stage",
			},
			[]string{"tier"},
		),

		CollisionGuardsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: revisionSubsystem,
				Name:      "collision_guards_total",
				Help:      "Total edits refused because the replacement already existed",
			},
		),

		RevisionDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: revisionSubsystem,
				Name:      "duration_seconds",
				Help:      "End-to-end operation duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 240},
			},
			[]string{"operation", "status"},
		),

		ActiveRevisions: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: revisionSubsystem,
				Name:      "active_operations",
				Help:      "Number of in-flight revision operations",
			},
			[]string{"operation"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: revisionSubsystem,
				Name:      "errors_total",
				Help:      "Total revision errors by operation and type",
			},
			[]string{"operation", "error_code"},
		),

		ChunksIngestedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: revisionSubsystem,
				Name:      "chunks_ingested_total",
				Help:      "Total chunks written to the knowledge base",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode represents a categorized error type for metrics.
type ErrorCode string

const (
	// ErrorCodeValidation indicates request validation failure.
	ErrorCodeValidation ErrorCode = "validation"

	// ErrorCodeLLMError indicates LLM backend failure.
	ErrorCodeLLMError ErrorCode = "llm_error"

	// ErrorCodeKBError indicates knowledge base failure.
	ErrorCodeKBError ErrorCode = "kb_error"

	// ErrorCodeArchiveError indicates run archive failure.
	ErrorCodeArchiveError ErrorCode = "archive_error"

	// ErrorCodeStoreError indicates document store failure.
	ErrorCodeStoreError ErrorCode = "store_error"

	// ErrorCodeTimeout indicates operation timeout.
	ErrorCodeTimeout ErrorCode = "timeout"

	// ErrorCodeInternal indicates internal server error.
	ErrorCodeInternal ErrorCode = "internal"
)

// =============================================================================
// Operation Names
// =============================================================================

// Operation represents a revision operation for metrics labeling.
type Operation string

const (
	// OperationPatch applies caller-supplied edits to one document.
	OperationPatch Operation = "patch"

	// OperationCheck runs the cross-document consistency pipeline.
	OperationCheck Operation = "check"

	// OperationExpand previews section scope expansion.
	OperationExpand Operation = "expand"

	// OperationIngest loads documents into the knowledge base.
	OperationIngest Operation = "ingest"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed revision request.
//
// # Inputs
//
//   - op: The operation that handled the request.
//   - success: Whether the request completed successfully.
func (m *RevisionMetrics) RecordRequest(op Operation, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(string(op), status).Inc()
}

// RecordError records a revision error.
//
// # Inputs
//
//   - op: The operation where the error occurred.
//   - code: The error type code.
func (m *RevisionMetrics) RecordError(op Operation, code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(op), string(code)).Inc()
}

// RecordReport folds one document's patch report into the edit counters.
// A nil report records nothing.
func (m *RevisionMetrics) RecordReport(report *patch.PatchReport) {
	if report == nil {
		return
	}
	m.EditOutcomesTotal.WithLabelValues("applied").Add(float64(len(report.Applied)))
	m.EditOutcomesTotal.WithLabelValues("skipped_duplicate").Add(float64(len(report.SkippedDuplicate)))
	m.EditOutcomesTotal.WithLabelValues("skipped_noop").Add(float64(len(report.SkippedNoOp)))
	m.EditOutcomesTotal.WithLabelValues("failed").Add(float64(len(report.Failed)))
}

// RevisionStarted increments the active operations gauge.
func (m *RevisionMetrics) RevisionStarted(op Operation) {
	m.ActiveRevisions.WithLabelValues(string(op)).Inc()
}

// RevisionEnded decrements the active operations gauge.
func (m *RevisionMetrics) RevisionEnded(op Operation) {
	m.ActiveRevisions.WithLabelValues(string(op)).Dec()
}

// RecordDuration records an operation's end-to-end duration.
//
// # Inputs
//
//   - op: The operation that ran.
//   - seconds: Duration in seconds.
//   - success: Whether the operation completed successfully.
func (m *RevisionMetrics) RecordDuration(op Operation, seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RevisionDurationSeconds.WithLabelValues(string(op), status).Observe(seconds)
}

// RecordChunksIngested adds to the knowledge base ingest counter.
func (m *RevisionMetrics) RecordChunksIngested(count int) {
	m.ChunksIngestedTotal.Add(float64(count))
}

// =============================================================================
// Patch Observer
// =============================================================================

// MetricsObserver feeds patch engine checkpoints into the anchor counters.
// It satisfies patch.Observer and is safe to share across documents.
type MetricsObserver struct {
	metrics *RevisionMetrics
}

// NewMetricsObserver wraps a metrics instance for injection into the patch
// engine. The metrics instance must be non-nil.
func NewMetricsObserver(metrics *RevisionMetrics) *MetricsObserver {
	return &MetricsObserver{metrics: metrics}
}

func (o *MetricsObserver) OnExactMatch(string, int) {
	o.metrics.AnchorTiersTotal.WithLabelValues(string(patch.TierExact)).Inc()
}

func (o *MetricsObserver) OnFuzzyMatch(_ string, tier patch.ConfidenceTier, _ float64) {
	o.metrics.AnchorTiersTotal.WithLabelValues(tier.String()).Inc()
}

func (o *MetricsObserver) OnCollisionGuard(string, string) {
	o.metrics.CollisionGuardsTotal.Inc()
}

var _ patch.Observer = (*MetricsObserver)(nil)
