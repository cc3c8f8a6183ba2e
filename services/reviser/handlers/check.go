// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/redlinehq/redline/services/reviser/archive"
	"github.com/redlinehq/redline/services/reviser/datatypes"
	"github.com/redlinehq/redline/services/reviser/kb"
	"github.com/redlinehq/redline/services/reviser/observability"
	"github.com/redlinehq/redline/services/reviser/patch"
	"github.com/redlinehq/redline/services/reviser/proposal"
	"github.com/redlinehq/redline/services/reviser/store"
)

var checkTracer = otel.Tracer("redline.reviser.handlers")

const defaultCheckWorkers = 8

// CheckDeps bundles everything the consistency check pipeline needs.
type CheckDeps struct {
	// KB may be nil when no knowledge base is configured; related-document
	// search and post-apply re-ingest are skipped in that case.
	KB      *kb.Store
	Docs    *store.Resolver
	Engine  *proposal.Engine
	Archive *archive.Store

	// Workers bounds the cross-document fan-out. Zero means the default.
	Workers int
}

// HandleCheckConsistency runs the full revision pipeline: load the target,
// search the knowledge base for related documents, analyze the impact, then
// propose and apply edits per document. The target is revised first so the
// related documents can use its revised text as the consistency reference.
// Documents are processed in parallel, each one sequentially inside.
func HandleCheckConsistency(deps CheckDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := checkTracer.Start(c.Request.Context(), "HandleCheckConsistency")
		defer span.End()

		start := time.Now()
		success := false
		if m := observability.DefaultMetrics; m != nil {
			m.RevisionStarted(observability.OperationCheck)
			defer func() {
				m.RevisionEnded(observability.OperationCheck)
				m.RecordRequest(observability.OperationCheck, success)
				m.RecordDuration(observability.OperationCheck, time.Since(start).Seconds(), success)
			}()
		}

		var req datatypes.CheckRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			recordErrorMetric(observability.OperationCheck, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.EnsureDefaults()
		span.SetAttributes(
			attribute.String("check.target", req.TargetFile),
			attribute.Int("check.top_k", req.TopK),
			attribute.Bool("check.apply", req.Apply),
		)

		run := archive.NewRun(req.ModificationRequest, req.ModificationPoint, req.ProjectID)

		// The target loads before any LLM spend so a bad reference fails
		// the request cheaply.
		var target *proposal.Document
		if req.TargetFile != "" {
			content, err := deps.Docs.Fetch(ctx, req.TargetFile)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				recordErrorMetric(observability.OperationCheck, observability.ErrorCodeStoreError)
				status, msg := documentLoadError(err)
				c.JSON(status, gin.H{"error": msg})
				return
			}
			target = &proposal.Document{Source: req.TargetFile, Content: content}
		}

		var related []kb.SourceHits
		switch {
		case req.Related() && deps.KB == nil:
			slog.Warn("knowledge base not configured, skipping related document search")
		case req.Related():
			hits, err := deps.KB.SearchRelated(ctx, req.ModificationPoint, req.ProjectID, req.TopK, req.TargetFile)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				slog.Error("related document search failed", "error", err)
				recordErrorMetric(observability.OperationCheck, observability.ErrorCodeKBError)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search related documents"})
				return
			}
			related = hits
		}
		span.SetAttributes(attribute.Int("check.related", len(related)))

		// Advisory impact analysis over the related previews. Failure here
		// never blocks the revision itself.
		previews := make(map[string]string, len(related))
		for _, hit := range related {
			if len(hit.Chunks) > 0 {
				previews[hit.Source] = hit.Chunks[0].Content
			}
		}
		analysisInstruction := req.ModificationRequest +
			"\n\nThe passage being modified:\n" + req.ModificationPoint
		analysis, err := deps.Engine.AnalyzeConsistency(ctx, analysisInstruction, previews)
		if err != nil {
			slog.Warn("consistency analysis failed, continuing without it", "error", err)
			recordErrorMetric(observability.OperationCheck, observability.ErrorCodeLLMError)
			analysis = ""
		}

		job := checkJob{
			deps:        deps,
			instruction: req.ModificationRequest,
			refContext:  req.ModificationPoint,
			projectID:   req.ProjectID,
			apply:       req.Apply,
		}

		outcomes := make([]datatypes.DocumentResult, 0, 1+len(related))
		if target != nil {
			outcome, patched := job.process(ctx, *target)
			outcomes = append(outcomes, outcome)
			if patched != "" {
				job.refContext = patched
			}
		}

		workers := deps.Workers
		if workers <= 0 {
			workers = defaultCheckWorkers
		}

		results := make([]datatypes.DocumentResult, len(related))
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, hit := range related {
			i, hit := i, hit
			g.Go(func() error {
				content, err := deps.Docs.Fetch(gCtx, hit.Source)
				if err != nil {
					recordErrorMetric(observability.OperationCheck, observability.ErrorCodeStoreError)
					results[i] = datatypes.DocumentResult{
						Source: hit.Source,
						Error:  fmt.Sprintf("fetch document: %v", err),
					}
					return nil
				}
				doc := proposal.Document{Source: hit.Source, Content: content}
				results[i], _ = job.process(gCtx, doc)
				// Per-document failures are reported in the outcome, never
				// propagated; one bad document must not starve the rest.
				return nil
			})
		}
		_ = g.Wait()
		outcomes = append(outcomes, results...)

		run.Documents = make([]archive.DocumentOutcome, 0, len(outcomes))
		for _, o := range outcomes {
			run.Documents = append(run.Documents, archive.DocumentOutcome{
				Source:      o.Source,
				Report:      o.Report,
				DiffSummary: o.DiffSummary,
				Error:       o.Error,
			})
		}
		run.FinishedAt = time.Now().UTC()
		if err := deps.Archive.Put(ctx, run); err != nil {
			slog.Error("failed to archive consistency run", "run_id", run.ID, "error", err)
			recordErrorMetric(observability.OperationCheck, observability.ErrorCodeArchiveError)
		}

		totalApplied, totalFailed := 0, 0
		for _, o := range outcomes {
			if o.Report != nil {
				totalApplied += len(o.Report.Applied)
				totalFailed += len(o.Report.Failed)
			}
		}

		success = true
		slog.Info("consistency check finished",
			"run_id", run.ID,
			"documents", len(outcomes),
			"applied", totalApplied,
			"failed", totalFailed,
			"apply", req.Apply)

		c.JSON(http.StatusOK, datatypes.CheckResponse{
			RunID:        run.ID,
			StartedAt:    run.StartedAt,
			Analysis:     analysis,
			Documents:    outcomes,
			TotalApplied: totalApplied,
			TotalFailed:  totalFailed,
			Applied:      req.Apply,
		})
	}
}

// checkJob carries the per-request parameters into the document workers.
type checkJob struct {
	deps        CheckDeps
	instruction string
	refContext  string
	projectID   string
	apply       bool
}

// process revises one document: propose edits, apply them, summarize. The
// second return is the patched text when the document changed, for use as
// reference context downstream. Outcome errors stay inside the result.
func (j checkJob) process(ctx context.Context, doc proposal.Document) (datatypes.DocumentResult, string) {
	result := datatypes.DocumentResult{Source: doc.Source}

	edits, err := j.deps.Engine.ProposeEdits(ctx, doc, j.instruction, j.refContext)
	if err != nil {
		recordErrorMetric(observability.OperationCheck, observability.ErrorCodeLLMError)
		result.Error = err.Error()
		return result, ""
	}
	if len(edits) == 0 {
		result.Report = &patch.PatchReport{}
		return result, ""
	}

	applier := patch.NewApplier(patch.ApplyOptions{Observer: metricsObserver()})
	patched, report, err := applier.Apply(doc.Content, edits)
	if err != nil {
		result.Error = err.Error()
		return result, ""
	}
	result.Report = report
	result.DiffSummary = proposal.SummarizeDiff(doc.Content, patched)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordReport(report)
	}

	if patched == doc.Content {
		return result, ""
	}

	if j.apply {
		if err := j.writeBack(ctx, doc.Source, patched); err != nil {
			result.Error = err.Error()
		}
	} else {
		result.Patched = patched
	}
	return result, patched
}

// writeBack persists the patched document and refreshes its knowledge base
// chunks. A failed write is an outcome error; a failed re-ingest only logs,
// the document itself is already updated.
func (j checkJob) writeBack(ctx context.Context, source, patched string) error {
	if err := j.deps.Docs.Put(ctx, source, patched); err != nil {
		recordErrorMetric(observability.OperationCheck, observability.ErrorCodeStoreError)
		return fmt.Errorf("write back %s: %w", source, err)
	}
	if j.deps.KB == nil {
		return nil
	}
	if _, err := j.deps.KB.DeleteBySource(ctx, source); err != nil {
		slog.Warn("failed to clear chunks before re-ingest", "source", source, "error", err)
	}
	if chunks, err := j.deps.KB.Ingest(ctx, source, j.projectID, patched); err != nil {
		slog.Warn("re-ingest after apply failed", "source", source, "error", err)
		recordErrorMetric(observability.OperationCheck, observability.ErrorCodeKBError)
	} else if m := observability.DefaultMetrics; m != nil {
		m.RecordChunksIngested(chunks)
	}
	return nil
}
