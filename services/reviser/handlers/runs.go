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
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/redlinehq/redline/services/reviser/archive"
)

const defaultRunListLimit = 50

// HandleListRuns returns archived consistency runs, newest first.
func HandleListRuns(archiveStore *archive.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRunListLimit)))
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}

		runs, err := archiveStore.List(c.Request.Context(), limit)
		if err != nil {
			slog.Error("failed to list runs", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"runs":  runs,
			"count": len(runs),
		})
	}
}

// HandleGetRun returns one archived run by ID.
func HandleGetRun(archiveStore *archive.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		run, err := archiveStore.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, archive.ErrRunNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
				return
			}
			slog.Error("failed to fetch run", "run_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch run"})
			return
		}

		c.JSON(http.StatusOK, run)
	}
}
