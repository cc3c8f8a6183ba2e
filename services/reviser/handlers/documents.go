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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/redlinehq/redline/pkg/validation"
	"github.com/redlinehq/redline/services/reviser/datatypes"
	"github.com/redlinehq/redline/services/reviser/kb"
	"github.com/redlinehq/redline/services/reviser/observability"
)

// HandleIngestDocument chunks a document and stores it in the knowledge base.
// Re-ingesting a source replaces its previous chunks.
func HandleIngestDocument(kbStore *kb.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			recordErrorMetric(observability.OperationIngest, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validation.ValidateSource(req.Source); err != nil {
			recordErrorMetric(observability.OperationIngest, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		if _, err := kbStore.DeleteBySource(ctx, req.Source); err != nil {
			slog.Warn("failed to clear previous chunks before ingest",
				"source", req.Source,
				"error", err)
		}

		chunks, err := kbStore.Ingest(ctx, req.Source, req.ProjectID, req.Content)
		if err != nil {
			slog.Error("document ingest failed",
				"source", req.Source,
				"error", err)
			recordErrorMetric(observability.OperationIngest, observability.ErrorCodeKBError)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest document"})
			return
		}

		slog.Info("document ingested",
			"source", req.Source,
			"project_id", req.ProjectID,
			"chunks", chunks)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordChunksIngested(chunks)
			m.RecordRequest(observability.OperationIngest, true)
		}

		c.JSON(http.StatusCreated, gin.H{
			"status": "success",
			"source": req.Source,
			"chunks": chunks,
		})
	}
}

// HandleListDocuments returns the distinct sources in the knowledge base,
// optionally filtered by project.
func HandleListDocuments(kbStore *kb.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Query("project_id")

		sources, err := kbStore.ListSources(c.Request.Context(), projectID)
		if err != nil {
			slog.Error("failed to list documents", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list documents"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"documents": sources,
			"count":     len(sources),
		})
	}
}

// HandleDeleteDocument removes every chunk belonging to one source.
func HandleDeleteDocument(kbStore *kb.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		source := c.Query("source")
		if source == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "source query parameter is required"})
			return
		}

		deleted, err := kbStore.DeleteBySource(c.Request.Context(), source)
		if err != nil {
			slog.Error("failed to delete document chunks",
				"source", source,
				"error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete document"})
			return
		}

		slog.Info("document chunks deleted", "source", source, "chunks", deleted)
		c.JSON(http.StatusOK, gin.H{
			"status": "deleted",
			"source": source,
			"chunks": deleted,
		})
	}
}

// recordErrorMetric increments the error counter when metrics are initialized.
func recordErrorMetric(op observability.Operation, code observability.ErrorCode) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordError(op, code)
	}
}
