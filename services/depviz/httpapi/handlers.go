// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package httpapi serves dependency graphs over HTTP for the visualization
// front-end.
//
// Endpoints (see RegisterRoutes):
//
//	GET /v1/depviz/health      - Liveness
//	GET /v1/depviz/graph       - Whole-project node-link JSON
//	GET /v1/depviz/graph/file  - Single-file node-link JSON (?path=)
//	GET /v1/depviz/cache/stats - File cache counters
//
// Graph endpoints accept ?external=keep|drop to override the configured
// policy for types that have no source file.
package httpapi

import (
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/depviz/services/depviz/analysis"
	"github.com/AleutianAI/depviz/services/depviz/ast"
	"github.com/AleutianAI/depviz/services/depviz/cache"
	"github.com/AleutianAI/depviz/services/depviz/graph"
	"github.com/AleutianAI/depviz/services/depviz/telemetry"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNoRoot         = "NO_ROOT"
	CodeAnalysisFailed = "ANALYSIS_FAILED"
	CodeEncodeFailed   = "ENCODE_FAILED"
)

// Handlers holds the HTTP handlers.
type Handlers struct {
	cache    *cache.FileCache
	analyzer *analysis.Analyzer
	policy   graph.ExternalPolicy
	version  string
	logger   *slog.Logger
}

// Option configures Handlers.
type Option func(*Handlers)

// WithExternalPolicy sets the default policy for external nodes.
func WithExternalPolicy(p graph.ExternalPolicy) Option {
	return func(h *Handlers) { h.policy = p }
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(h *Handlers) { h.version = v }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handlers) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandlers creates handlers over a cache whose root is already set.
func NewHandlers(fc *cache.FileCache, analyzer *analysis.Analyzer, opts ...Option) *Handlers {
	h := &Handlers{
		cache:    fc,
		analyzer: analyzer,
		policy:   graph.ExternalKeep,
		version:  "dev",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleHealth handles GET /v1/depviz/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}

// HandleGraph handles GET /v1/depviz/graph.
//
// Description:
//
//	Analyzes every Java file under the configured root and returns the
//	merged graph in node-link form.
//
// Response:
//
//	200 OK: node-link JSON
//	400 Bad Request: Invalid external policy
//	503 Service Unavailable: No root configured
//	500 Internal Server Error: Analysis failed
func (h *Handlers) HandleGraph(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := telemetry.LoggerWithTrace(c.Request.Context(), h.logger).With("request_id", requestID, "handler", "HandleGraph")

	policy, ok := h.policyFor(c)
	if !ok {
		return
	}
	root := h.cache.Root()
	if root == "" {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no workspace root configured", Code: CodeNoRoot})
		return
	}

	res, err := h.analyzer.AnalyzeProject(c.Request.Context(), root)
	if err != nil {
		logger.Error("Project analysis failed", "root", root, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeAnalysisFailed})
		return
	}
	logger.Info("Project graph served",
		"run_id", res.RunID,
		"files", res.Files,
		"failed", len(res.Failed))
	h.writeGraph(c, logger, policy, res.Graph)
}

// HandleFileGraph handles GET /v1/depviz/graph/file?path=<p>.
//
// Description:
//
//	Returns the graph of one file through the file cache. A relative path
//	is taken relative to the root. A file that cannot be analyzed yields
//	an empty graph, matching the editor protocol.
//
// Response:
//
//	200 OK: node-link JSON
//	400 Bad Request: Missing or non-Java path, or invalid external policy
//	503 Service Unavailable: No root configured
func (h *Handlers) HandleFileGraph(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := telemetry.LoggerWithTrace(c.Request.Context(), h.logger).With("request_id", requestID, "handler", "HandleFileGraph")

	policy, ok := h.policyFor(c)
	if !ok {
		return
	}
	path := c.Query("path")
	if path == "" || !ast.IsJavaFile(path) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "path must name a .java file", Code: CodeInvalidRequest})
		return
	}
	root := h.cache.Root()
	if root == "" {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no workspace root configured", Code: CodeNoRoot})
		return
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	h.writeGraph(c, logger, policy, h.cache.Query(c.Request.Context(), path))
}

// HandleCacheStats handles GET /v1/depviz/cache/stats.
func (h *Handlers) HandleCacheStats(c *gin.Context) {
	s := h.cache.Stats()
	c.JSON(http.StatusOK, StatsResponse{
		Root:      h.cache.Root(),
		Entries:   s.Entries,
		Hits:      s.Hits,
		Misses:    s.Misses,
		Analyses:  s.Analyses,
		Failures:  s.Failures,
		Discarded: s.Discarded,
		Coalesced: s.Coalesced,
	})
}

// policyFor resolves ?external, writing a 400 and returning false when it
// is not a known policy.
func (h *Handlers) policyFor(c *gin.Context) (graph.ExternalPolicy, bool) {
	raw, set := c.GetQuery("external")
	if !set {
		return h.policy, true
	}
	p, err := graph.ParseExternalPolicy(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidRequest})
		return "", false
	}
	return p, true
}

func (h *Handlers) writeGraph(c *gin.Context, logger *slog.Logger, policy graph.ExternalPolicy, g *graph.CodeGraph) {
	data, err := graph.MarshalNodeLink(policy.Apply(g), false)
	if err != nil {
		logger.Error("Encoding graph failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeEncodeFailed})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
