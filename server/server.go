// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the query-processing core over the transport-
// neutral HTTP surface described by the external interface: session
// administration, the parse/compose/refine query stages individually, and
// the combined search and explain endpoints.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/aleutian/vehiclesearch/compose"
	"github.com/aleutian/vehiclesearch/concept"
	"github.com/aleutian/vehiclesearch/config"
	"github.com/aleutian/vehiclesearch/guardrail"
	"github.com/aleutian/vehiclesearch/mapper"
	"github.com/aleutian/vehiclesearch/refiner"
	"github.com/aleutian/vehiclesearch/search"
	"github.com/aleutian/vehiclesearch/session"
	"github.com/aleutian/vehiclesearch/understanding"
)

// Service bundles every pipeline stage the HTTP handlers call into. All
// fields are read-only after construction; the stages themselves own their
// own internal synchronization.
type Service struct {
	Sessions      *session.Store
	Guardrail     *guardrail.Guardrail
	Parser        *understanding.Parser
	Mapper        *mapper.Mapper
	Composer      *compose.Composer
	Refiner       *refiner.Refiner
	Orchestrator  *search.Orchestrator
	Index         search.Index
	Concepts      *concept.Mapper
	Ranking       config.RankingConfig
	MaxResultsCap int
}

// New builds the gin.Engine exposing svc's endpoints, wired with trace-id
// propagation and OpenTelemetry span instrumentation.
func New(svc *Service) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware("vehiclesearch"), traceIDMiddleware())

	router.GET("/health", healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/session", svc.createSession)
		v1.GET("/session/:id", svc.getSession)
		v1.DELETE("/session/:id", svc.clearSession)
		v1.GET("/session/:id/history", svc.getHistory)

		v1.POST("/query/parse", svc.parseQuery)
		v1.POST("/query/compose", svc.composeQuery)
		v1.POST("/query/refine", svc.refineQuery)

		v1.POST("/search", svc.runSearch)
		v1.POST("/search/explain", svc.explainSearch)

		v1.GET("/vehicles/:id", svc.getVehicle)
	}

	return router
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
