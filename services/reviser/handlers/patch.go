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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/redlinehq/redline/services/reviser/datatypes"
	"github.com/redlinehq/redline/services/reviser/observability"
	"github.com/redlinehq/redline/services/reviser/patch"
	"github.com/redlinehq/redline/services/reviser/proposal"
	"github.com/redlinehq/redline/services/reviser/store"
)

var patchTracer = otel.Tracer("redline.reviser.handlers")

// HandlePatch applies a batch of edits to one document and returns the
// patched text with a per-edit report. Edits that cannot be anchored are
// reported, never fatal; the request fails outright only when the document
// itself is unusable.
func HandlePatch(docs *store.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := patchTracer.Start(c.Request.Context(), "HandlePatch")
		defer span.End()

		start := time.Now()
		success := false
		if m := observability.DefaultMetrics; m != nil {
			m.RevisionStarted(observability.OperationPatch)
			defer func() {
				m.RevisionEnded(observability.OperationPatch)
				m.RecordRequest(observability.OperationPatch, success)
				m.RecordDuration(observability.OperationPatch, time.Since(start).Seconds(), success)
			}()
		}

		var req datatypes.PatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			recordErrorMetric(observability.OperationPatch, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		span.SetAttributes(
			attribute.String("document.source", req.Source),
			attribute.Int("edits.count", len(req.Edits)),
		)

		document, err := loadDocument(ctx, docs, req.Source, req.Document)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			recordErrorMetric(observability.OperationPatch, observability.ErrorCodeStoreError)
			status, msg := documentLoadError(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}

		applier := patch.NewApplier(patch.ApplyOptions{Observer: metricsObserver()})
		patched, report, err := applier.Apply(document, req.Edits)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			recordErrorMetric(observability.OperationPatch, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if m := observability.DefaultMetrics; m != nil {
			m.RecordReport(report)
		}

		if req.WriteBack {
			if err := docs.Put(ctx, req.Source, patched); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				slog.Error("write back failed", "source", req.Source, "error", err)
				recordErrorMetric(observability.OperationPatch, observability.ErrorCodeStoreError)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write document back"})
				return
			}
		}

		success = true
		slog.Info("patch applied",
			"source", req.Source,
			"edits", len(req.Edits),
			"applied", len(report.Applied),
			"failed", len(report.Failed))

		c.JSON(http.StatusOK, datatypes.PatchResponse{
			Source:      req.Source,
			Document:    patched,
			Report:      report,
			DiffSummary: proposal.SummarizeDiff(document, patched),
		})
	}
}

// loadDocument returns the inline text when present, otherwise fetches the
// referenced document. Inline text wins so callers can patch drafts that
// have not been saved anywhere yet.
func loadDocument(ctx context.Context, docs *store.Resolver, source, inline string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	return docs.Fetch(ctx, source)
}

// documentLoadError maps a fetch failure to an HTTP status and message.
func documentLoadError(err error) (int, string) {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "document not found"
	}
	return http.StatusInternalServerError, "failed to load document"
}

// metricsObserver adapts the process metrics into a patch observer, or nil
// when metrics are not initialized.
func metricsObserver() patch.Observer {
	if m := observability.DefaultMetrics; m != nil {
		return observability.NewMetricsObserver(m)
	}
	return nil
}
