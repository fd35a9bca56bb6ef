// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api serves a loaded workspace over HTTP.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
	"github.com/AleutianAI/ngscope/services/ngscope/workspace"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 200
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// SearchResult is one fuzzy match.
type SearchResult struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Exported bool   `json:"exported"`
	Entity   string `json:"entity,omitempty"`
}

// EntitiesResponse lists entity reports.
type EntitiesResponse struct {
	Entities []workspace.EntityReport `json:"entities"`
	Count    int                      `json:"count"`
}

// Handlers serves one workspace.
//
// Thread Safety:
//
//	Safe for concurrent use; the workspace synchronizes its own state.
type Handlers struct {
	ws *workspace.Workspace
}

// NewHandlers creates handlers over ws.
func NewHandlers(ws *workspace.Workspace) *Handlers {
	return &Handlers{ws: ws}
}

// HandleHealth reports liveness.
//
// GET /v1/ngscope/health
func (h *Handlers) HandleHealth(c *gin.Context) {
	getOrCreateRequestID(c)
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"files":  len(h.ws.Program().Files()),
	})
}

// HandleReport resolves every entity.
//
// GET /v1/ngscope/report
func (h *Handlers) HandleReport(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReport")

	report, err := h.ws.BuildReport(c.Request.Context(), requestID)
	if err != nil {
		h.writeResolveError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleListEntities lists entities, optionally filtered.
//
// GET /v1/ngscope/entities?kind=module&degraded=true
//
// Query parameters:
//
//	kind - directive, component, pipe or module.
//	degraded - When true, only entities with unresolved metadata.
func (h *Handlers) HandleListEntities(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListEntities")

	kind := c.Query("kind")
	switch kind {
	case "", "directive", "component", "pipe", "module":
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "kind must be one of directive, component, pipe, module",
			Code:  "INVALID_PARAMETER",
		})
		return
	}
	degradedOnly := false
	if raw := c.Query("degraded"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "degraded must be a boolean",
				Code:  "INVALID_PARAMETER",
			})
			return
		}
		degradedOnly = parsed
	}

	report, err := h.ws.BuildReport(c.Request.Context(), requestID)
	if err != nil {
		h.writeResolveError(c, logger, err)
		return
	}

	out := make([]workspace.EntityReport, 0, len(report.Entities))
	for _, e := range report.Entities {
		if kind != "" && e.Kind != kind {
			continue
		}
		if degradedOnly && !e.Degraded() {
			continue
		}
		out = append(out, e)
	}
	c.JSON(http.StatusOK, EntitiesResponse{Entities: out, Count: len(out)})
}

// HandleGetEntity describes every entity whose class has the given name.
//
// GET /v1/ngscope/entities/:name
func (h *Handlers) HandleGetEntity(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetEntity")
	name := c.Param("name")

	var out []workspace.EntityReport
	for _, entry := range h.ws.Index().GetByName(name) {
		if entry.Kind != ast.NodeKindClass {
			continue
		}
		e := h.ws.Resolver().EntityFor(entry.Node)
		if e == nil {
			continue
		}
		report, err := h.ws.Describe(c.Request.Context(), e)
		if err != nil {
			h.writeResolveError(c, logger, err)
			return
		}
		out = append(out, report)
	}
	if len(out) == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no Angular entity named " + strconv.Quote(name),
			Code:  "NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, EntitiesResponse{Entities: out, Count: len(out)})
}

// HandleSearch fuzzy-matches declaration names.
//
// GET /v1/ngscope/search?q=AppMod&limit=10
func (h *Handlers) HandleSearch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSearch")

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "q parameter is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}
	limit := defaultSearchLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, maxSearchLimit)
		}
	}

	entries, err := h.ws.Index().Search(c.Request.Context(), query, limit)
	if err != nil {
		h.writeResolveError(c, logger, err)
		return
	}
	results := make([]SearchResult, 0, len(entries))
	for _, entry := range entries {
		r := SearchResult{
			Name:     entry.Name,
			Kind:     entry.Kind.String(),
			File:     h.ws.Rel(entry.FilePath),
			Line:     entry.Node.Location.StartLine,
			Exported: entry.Exported,
		}
		if entry.Kind == ast.NodeKindClass {
			if e := h.ws.Resolver().EntityFor(entry.Node); e != nil {
				r.Entity = e.Kind().String()
			}
		}
		results = append(results, r)
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

// writeResolveError maps resolution failures, which are only ever context
// errors, to a response.
func (h *Handlers) writeResolveError(c *gin.Context, logger *slog.Logger, err error) {
	if errors.Is(err, c.Request.Context().Err()) {
		logger.Info("request canceled", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "request canceled", Code: "CANCELED"})
		return
	}
	logger.Error("resolution failed", slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INTERNAL"})
}

// getOrCreateRequestID returns the caller's request ID or a new one, and
// echoes it in the response.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(RequestIDHeader, id)
	return id
}
