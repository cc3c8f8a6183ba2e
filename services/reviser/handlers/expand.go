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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/redlinehq/redline/services/reviser/datatypes"
	"github.com/redlinehq/redline/services/reviser/observability"
	"github.com/redlinehq/redline/services/reviser/patch"
	"github.com/redlinehq/redline/services/reviser/store"
)

// HandleExpand widens a heading anchor to the full section it introduces.
// Expansion is best effort: when the anchor cannot be located the response
// carries it back unchanged.
func HandleExpand(docs *store.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ExpandRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			recordErrorMetric(observability.OperationExpand, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		document, err := loadDocument(c.Request.Context(), docs, req.Source, req.Document)
		if err != nil {
			recordErrorMetric(observability.OperationExpand, observability.ErrorCodeStoreError)
			status, msg := documentLoadError(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}

		section := patch.ExpandHeadingScope(document, req.HeadingAnchor)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordRequest(observability.OperationExpand, true)
		}

		c.JSON(http.StatusOK, datatypes.ExpandResponse{
			Source:        req.Source,
			HeadingAnchor: req.HeadingAnchor,
			Section:       section,
		})
	}
}
