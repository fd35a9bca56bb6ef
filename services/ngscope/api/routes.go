// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes mounts the handlers under rg.
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	ng := rg.Group("/ngscope")
	{
		ng.GET("/health", handlers.HandleHealth)
		ng.GET("/report", handlers.HandleReport)

		ng.GET("/entities", handlers.HandleListEntities)
		ng.GET("/entities/:name", handlers.HandleGetEntity)
		ng.GET("/search", handlers.HandleSearch)
	}
}

// NewRouter builds the full HTTP surface: the API under /v1 and
// Prometheus metrics at /metrics.
func NewRouter(handlers *Handlers, debug bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("ngscope"))
	if debug {
		router.Use(gin.Logger())
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	RegisterRoutes(router.Group("/v1"), handlers)
	return router
}
