// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/redlinehq/redline/services/reviser/patch"
)

// ============================================================================
// Test Helper: Create isolated metrics for testing
// ============================================================================

// newTestMetrics creates a RevisionMetrics instance with a custom registry.
// This avoids conflicts with the global Prometheus registry and allows
// parallel testing.
func newTestMetrics(t *testing.T) *RevisionMetrics {
	t.Helper()

	reg := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: revisionSubsystem,
			Name:      "requests_total",
			Help:      "Total revision requests by operation and status",
		},
		[]string{"operation", "status"},
	)

	editOutcomesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: revisionSubsystem,
			Name:      "edit_outcomes_total",
			Help:      "Total per-edit outcomes across all patched documents",
		},
		[]string{"outcome"},
	)

	anchorTiersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: revisionSubsystem,
			Name:      "anchor_tiers_total",
			Help:      "Total located anchors by matching stage",
		},
		[]string{"tier"},
	)

	collisionGuardsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: revisionSubsystem,
			Name:      "collision_guards_total",
			Help:      "Total edits refused because the replacement already existed",
		},
	)

	revisionDurationSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: revisionSubsystem,
			Name:      "duration_seconds",
			Help:      "End-to-end operation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 240},
		},
		[]string{"operation", "status"},
	)

	activeRevisions := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: revisionSubsystem,
			Name:      "active_operations",
			Help:      "Number of in-flight revision operations",
		},
		[]string{"operation"},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: revisionSubsystem,
			Name:      "errors_total",
			Help:      "Total revision errors by operation and type",
		},
		[]string{"operation", "error_code"},
	)

	chunksIngestedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: revisionSubsystem,
			Name:      "chunks_ingested_total",
			Help:      "Total chunks written to the knowledge base",
		},
	)

	reg.MustRegister(
		requestsTotal,
		editOutcomesTotal,
		anchorTiersTotal,
		collisionGuardsTotal,
		revisionDurationSeconds,
		activeRevisions,
		errorsTotal,
		chunksIngestedTotal,
	)

	return &RevisionMetrics{
		RequestsTotal:           requestsTotal,
		EditOutcomesTotal:       editOutcomesTotal,
		AnchorTiersTotal:        anchorTiersTotal,
		CollisionGuardsTotal:    collisionGuardsTotal,
		RevisionDurationSeconds: revisionDurationSeconds,
		ActiveRevisions:         activeRevisions,
		ErrorsTotal:             errorsTotal,
		ChunksIngestedTotal:     chunksIngestedTotal,
	}
}

// ============================================================================
// InitMetrics Tests
// ============================================================================

// Note: InitMetrics uses promauto which registers with the default Prometheus
// registry. This test must only run once per test binary execution since
// duplicate registration will panic.
var initMetricsTestOnce bool

func TestInitMetrics(t *testing.T) {
	if initMetricsTestOnce {
		t.Skip("InitMetrics can only be called once per test run (promauto restriction)")
	}
	initMetricsTestOnce = true

	result := InitMetrics()

	if result == nil {
		t.Fatal("InitMetrics() returned nil")
	}
	if DefaultMetrics == nil {
		t.Fatal("DefaultMetrics should be set after InitMetrics()")
	}
	if DefaultMetrics != result {
		t.Error("DefaultMetrics should equal the returned value")
	}

	if result.RequestsTotal == nil {
		t.Error("RequestsTotal should not be nil")
	}
	if result.EditOutcomesTotal == nil {
		t.Error("EditOutcomesTotal should not be nil")
	}
	if result.AnchorTiersTotal == nil {
		t.Error("AnchorTiersTotal should not be nil")
	}
	if result.CollisionGuardsTotal == nil {
		t.Error("CollisionGuardsTotal should not be nil")
	}
	if result.RevisionDurationSeconds == nil {
		t.Error("RevisionDurationSeconds should not be nil")
	}
	if result.ActiveRevisions == nil {
		t.Error("ActiveRevisions should not be nil")
	}
	if result.ErrorsTotal == nil {
		t.Error("ErrorsTotal should not be nil")
	}
	if result.ChunksIngestedTotal == nil {
		t.Error("ChunksIngestedTotal should not be nil")
	}

	// Verify metrics can be used
	result.RecordRequest(OperationPatch, true)
	result.RecordError(OperationCheck, ErrorCodeTimeout)
	result.RecordChunksIngested(10)
	result.RevisionStarted(OperationCheck)
	result.RevisionEnded(OperationCheck)
}

// ============================================================================
// Constants Tests
// ============================================================================

func TestConstants(t *testing.T) {
	if metricsNamespace != "redline" {
		t.Errorf("metricsNamespace = %q, want %q", metricsNamespace, "redline")
	}
	if revisionSubsystem != "revision" {
		t.Errorf("revisionSubsystem = %q, want %q", revisionSubsystem, "revision")
	}
}

func TestOperationConstants(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OperationPatch, "patch"},
		{OperationCheck, "check"},
		{OperationExpand, "expand"},
		{OperationIngest, "ingest"},
	}

	for _, tt := range tests {
		if string(tt.op) != tt.want {
			t.Errorf("Operation = %q, want %q", tt.op, tt.want)
		}
	}
}

func TestErrorCodeConstants(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrorCodeValidation, "validation"},
		{ErrorCodeLLMError, "llm_error"},
		{ErrorCodeKBError, "kb_error"},
		{ErrorCodeArchiveError, "archive_error"},
		{ErrorCodeStoreError, "store_error"},
		{ErrorCodeTimeout, "timeout"},
		{ErrorCodeInternal, "internal"},
	}

	for _, tt := range tests {
		if string(tt.code) != tt.want {
			t.Errorf("ErrorCode = %q, want %q", tt.code, tt.want)
		}
	}
}

// ============================================================================
// RecordRequest Tests
// ============================================================================

func TestRevisionMetrics_RecordRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRequest(OperationPatch, true)
	m.RecordRequest(OperationPatch, true)
	m.RecordRequest(OperationPatch, false)
	m.RecordRequest(OperationCheck, true)

	successVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("patch", "success"))
	if successVal != 2 {
		t.Errorf("RequestsTotal[patch,success] = %f, want 2", successVal)
	}

	errorVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("patch", "error"))
	if errorVal != 1 {
		t.Errorf("RequestsTotal[patch,error] = %f, want 1", errorVal)
	}

	checkVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("check", "success"))
	if checkVal != 1 {
		t.Errorf("RequestsTotal[check,success] = %f, want 1", checkVal)
	}
}

// ============================================================================
// RecordError Tests
// ============================================================================

func TestRevisionMetrics_RecordError(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordError(OperationCheck, ErrorCodeLLMError)
	m.RecordError(OperationCheck, ErrorCodeLLMError)
	m.RecordError(OperationIngest, ErrorCodeKBError)

	llmVal := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("check", "llm_error"))
	if llmVal != 2 {
		t.Errorf("ErrorsTotal[check,llm_error] = %f, want 2", llmVal)
	}

	kbVal := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("ingest", "kb_error"))
	if kbVal != 1 {
		t.Errorf("ErrorsTotal[ingest,kb_error] = %f, want 1", kbVal)
	}
}

// ============================================================================
// RecordReport Tests
// ============================================================================

func TestRevisionMetrics_RecordReport(t *testing.T) {
	m := newTestMetrics(t)

	report := &patch.PatchReport{
		Applied:          []string{"a", "b", "c"},
		SkippedDuplicate: []string{"d"},
		SkippedNoOp:      []string{"e", "f"},
		Failed:           []patch.FailedEdit{{Location: "g", Reason: "anchor not found"}},
	}
	m.RecordReport(report)

	appliedVal := testutil.ToFloat64(m.EditOutcomesTotal.WithLabelValues("applied"))
	if appliedVal != 3 {
		t.Errorf("EditOutcomesTotal[applied] = %f, want 3", appliedVal)
	}

	dupVal := testutil.ToFloat64(m.EditOutcomesTotal.WithLabelValues("skipped_duplicate"))
	if dupVal != 1 {
		t.Errorf("EditOutcomesTotal[skipped_duplicate] = %f, want 1", dupVal)
	}

	noopVal := testutil.ToFloat64(m.EditOutcomesTotal.WithLabelValues("skipped_noop"))
	if noopVal != 2 {
		t.Errorf("EditOutcomesTotal[skipped_noop] = %f, want 2", noopVal)
	}

	failedVal := testutil.ToFloat64(m.EditOutcomesTotal.WithLabelValues("failed"))
	if failedVal != 1 {
		t.Errorf("EditOutcomesTotal[failed] = %f, want 1", failedVal)
	}
}

func TestRevisionMetrics_RecordReport_Nil(t *testing.T) {
	m := newTestMetrics(t)

	// Must not panic
	m.RecordReport(nil)
}

func TestRevisionMetrics_RecordReport_Accumulates(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordReport(&patch.PatchReport{Applied: []string{"a"}})
	m.RecordReport(&patch.PatchReport{Applied: []string{"b", "c"}})

	appliedVal := testutil.ToFloat64(m.EditOutcomesTotal.WithLabelValues("applied"))
	if appliedVal != 3 {
		t.Errorf("EditOutcomesTotal[applied] = %f, want 3", appliedVal)
	}
}

// ============================================================================
// Gauge Tests
// ============================================================================

func TestRevisionMetrics_ActiveLifecycle(t *testing.T) {
	m := newTestMetrics(t)

	m.RevisionStarted(OperationCheck)
	m.RevisionStarted(OperationCheck)
	m.RevisionStarted(OperationPatch)

	checkVal := testutil.ToFloat64(m.ActiveRevisions.WithLabelValues("check"))
	if checkVal != 2 {
		t.Errorf("ActiveRevisions[check] = %f, want 2", checkVal)
	}

	m.RevisionEnded(OperationCheck)
	m.RevisionEnded(OperationCheck)
	m.RevisionEnded(OperationPatch)

	checkVal = testutil.ToFloat64(m.ActiveRevisions.WithLabelValues("check"))
	if checkVal != 0 {
		t.Errorf("ActiveRevisions[check] = %f, want 0", checkVal)
	}

	patchVal := testutil.ToFloat64(m.ActiveRevisions.WithLabelValues("patch"))
	if patchVal != 0 {
		t.Errorf("ActiveRevisions[patch] = %f, want 0", patchVal)
	}
}

// ============================================================================
// Duration Tests
// ============================================================================

func TestRevisionMetrics_RecordDuration(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordDuration(OperationCheck, 12.5, true)
	m.RecordDuration(OperationPatch, 0.05, false)

	count := testutil.CollectAndCount(m.RevisionDurationSeconds)
	if count == 0 {
		t.Error("Expected at least one metric to be collected")
	}
}

// ============================================================================
// Ingest Counter Tests
// ============================================================================

func TestRevisionMetrics_RecordChunksIngested(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordChunksIngested(12)
	m.RecordChunksIngested(3)

	val := testutil.ToFloat64(m.ChunksIngestedTotal)
	if val != 15 {
		t.Errorf("ChunksIngestedTotal = %f, want 15", val)
	}
}

// ============================================================================
// MetricsObserver Tests
// ============================================================================

func TestMetricsObserver_RecordsTiers(t *testing.T) {
	m := newTestMetrics(t)
	obs := NewMetricsObserver(m)

	obs.OnExactMatch("2.1 Model", 120)
	obs.OnExactMatch("2.2 Data", 480)
	obs.OnFuzzyMatch("3.1 Results", patch.TierFuzzyHigh, 0.86)
	obs.OnFuzzyMatch("3.2 Summary", patch.TierFuzzyLow, 0.55)

	exactVal := testutil.ToFloat64(m.AnchorTiersTotal.WithLabelValues("exact"))
	if exactVal != 2 {
		t.Errorf("AnchorTiersTotal[exact] = %f, want 2", exactVal)
	}

	highVal := testutil.ToFloat64(m.AnchorTiersTotal.WithLabelValues("fuzzy_high"))
	if highVal != 1 {
		t.Errorf("AnchorTiersTotal[fuzzy_high] = %f, want 1", highVal)
	}

	lowVal := testutil.ToFloat64(m.AnchorTiersTotal.WithLabelValues("fuzzy_low"))
	if lowVal != 1 {
		t.Errorf("AnchorTiersTotal[fuzzy_low] = %f, want 1", lowVal)
	}
}

func TestMetricsObserver_RecordsCollisions(t *testing.T) {
	m := newTestMetrics(t)
	obs := NewMetricsObserver(m)

	obs.OnCollisionGuard("2.1 Model", "replacement text")

	val := testutil.ToFloat64(m.CollisionGuardsTotal)
	if val != 1 {
		t.Errorf("CollisionGuardsTotal = %f, want 1", val)
	}
}

// ============================================================================
// Concurrent Safety Tests
// ============================================================================

func TestRevisionMetrics_ConcurrentSafety(t *testing.T) {
	m := newTestMetrics(t)

	done := make(chan bool, 60)

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordRequest(OperationPatch, true)
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordReport(&patch.PatchReport{Applied: []string{"x"}})
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.RevisionStarted(OperationCheck)
			m.RevisionEnded(OperationCheck)
			done <- true
		}()
	}

	for i := 0; i < 60; i++ {
		<-done
	}

	requestsVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("patch", "success"))
	if requestsVal != 20 {
		t.Errorf("RequestsTotal[patch,success] = %f, want 20", requestsVal)
	}

	appliedVal := testutil.ToFloat64(m.EditOutcomesTotal.WithLabelValues("applied"))
	if appliedVal != 20 {
		t.Errorf("EditOutcomesTotal[applied] = %f, want 20", appliedVal)
	}
}
