// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes mounts the depviz endpoints on rg.
//
// Example:
//
//	v1 := router.Group("/v1")
//	httpapi.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	depviz := rg.Group("/depviz")
	{
		depviz.GET("/health", handlers.HandleHealth)

		depviz.GET("/graph", handlers.HandleGraph)
		depviz.GET("/graph/file", handlers.HandleFileGraph)

		depviz.GET("/cache/stats", handlers.HandleCacheStats)
	}
}

// NewRouter builds the full engine: recovery, tracing, the v1 routes and,
// when metrics is non-nil, GET /metrics.
func NewRouter(handlers *Handlers, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("depviz"))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
	return router
}
