// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package plan

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all planning routes with the router.
//
// Description:
//
//	Registers all /v1/plan/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Endpoints:
//
//	POST /v1/plan/sessions - Create a planning session from documents
//	GET  /v1/plan/sessions/:id - Fetch a session's current state
//	POST /v1/plan/sessions/:id/draft - Run the specialists and gate
//	POST /v1/plan/sessions/:id/publish - Publish the finalized plan
//	GET  /v1/plan/sessions/:id/checkpoints - List checkpoint records
//	GET  /v1/plan/health - Health check
//
// Example:
//
//	handlers := plan.NewHandlers(plan.HandlersConfig{...})
//
//	v1 := router.Group("/v1")
//	plan.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	plan := rg.Group("/plan")
	{
		plan.POST("/sessions", handlers.HandleCreateSession)
		plan.GET("/sessions/:id", handlers.HandleGetSession)
		plan.POST("/sessions/:id/draft", handlers.HandleDraft)
		plan.POST("/sessions/:id/publish", handlers.HandlePublish)
		plan.GET("/sessions/:id/checkpoints", handlers.HandleListCheckpoints)

		plan.GET("/health", handlers.HandleHealth)
	}
}
