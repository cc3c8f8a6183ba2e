// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/redlinehq/redline/services/reviser/archive"
	"github.com/redlinehq/redline/services/reviser/handlers"
	"github.com/redlinehq/redline/services/reviser/kb"
	"github.com/redlinehq/redline/services/reviser/proposal"
	"github.com/redlinehq/redline/services/reviser/store"
)

// SetupRoutes registers every reviser endpoint on the router.
func SetupRoutes(
	router *gin.Engine,
	docs *store.Resolver,
	kbStore *kb.Store,
	engine *proposal.Engine,
	archiveStore *archive.Store,
	workers int,
) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/patch", handlers.HandlePatch(docs))
		v1.POST("/expand", handlers.HandleExpand(docs))
		v1.POST("/consistency/check", handlers.HandleCheckConsistency(handlers.CheckDeps{
			KB:      kbStore,
			Docs:    docs,
			Engine:  engine,
			Archive: archiveStore,
			Workers: workers,
		}))

		// Document routes need the knowledge base; without one they are
		// simply not served.
		if kbStore != nil {
			v1.POST("/documents", handlers.HandleIngestDocument(kbStore))
			v1.GET("/documents", handlers.HandleListDocuments(kbStore))
			v1.DELETE("/documents", handlers.HandleDeleteDocument(kbStore))
		}

		v1.GET("/runs", handlers.HandleListRuns(archiveStore))
		v1.GET("/runs/:id", handlers.HandleGetRun(archiveStore))
	}
}
