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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/depviz/services/depviz/analysis"
	"github.com/AleutianAI/depviz/services/depviz/cache"
	"github.com/AleutianAI/depviz/services/depviz/graph"
	"github.com/AleutianAI/depviz/services/depviz/resolve"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var projectFiles = map[string]string{
	"src/main/java/com/acme/Base.java": "package com.acme;\n\npublic class Base {}\n",
	"src/main/java/com/acme/Car.java":  "package com.acme;\n\npublic class Car extends Base {}\n",
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range projectFiles {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func setupTestRouter(t *testing.T, root string, metrics http.Handler, opts ...Option) (*gin.Engine, *cache.FileCache) {
	t.Helper()
	an := analysis.NewAnalyzer(resolve.NewWorkspace())
	fc := cache.New(an)
	if root != "" {
		require.NoError(t, fc.SetRoot(context.Background(), root))
	}
	return NewRouter(NewHandlers(fc, an, opts...), metrics), fc
}

func get(router *gin.Engine, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeGraph(t *testing.T, w *httptest.ResponseRecorder) *graph.CodeGraph {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	g, err := graph.UnmarshalNodeLink(w.Body.Bytes())
	require.NoError(t, err)
	return g
}

func TestHandleHealth(t *testing.T) {
	router, _ := setupTestRouter(t, "", nil, WithVersion("1.2.3"))

	w := get(router, "/v1/depviz/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHandleGraph(t *testing.T) {
	root := writeProject(t)
	router, _ := setupTestRouter(t, root, nil)

	w := get(router, "/v1/depviz/graph")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	g := decodeGraph(t, w)
	assert.True(t, g.HasEdge("com.acme.Car", "com.acme.Base", graph.EdgeTypeExtends))
	n, ok := g.Node("com.acme.Base")
	require.True(t, ok)
	assert.Equal(t, graph.KindClass, n.Kind)
}

func TestHandleFileGraph(t *testing.T) {
	root := writeProject(t)
	car := filepath.Join(root, "src/main/java/com/acme/Car.java")

	t.Run("absolute path", func(t *testing.T) {
		router, fc := setupTestRouter(t, root, nil)
		g := decodeGraph(t, get(router, "/v1/depviz/graph/file?path="+url.QueryEscape(car)))
		assert.True(t, g.HasEdge("com.acme.Car", "com.acme.Base", graph.EdgeTypeExtends))
		assert.Equal(t, cache.StateAnalyzed, fc.State(car))
	})

	t.Run("relative path", func(t *testing.T) {
		router, _ := setupTestRouter(t, root, nil)
		g := decodeGraph(t, get(router, "/v1/depviz/graph/file?path=src/main/java/com/acme/Car.java"))
		_, ok := g.Node("com.acme.Car")
		assert.True(t, ok)
	})

	t.Run("drop external", func(t *testing.T) {
		router, _ := setupTestRouter(t, root, nil)
		g := decodeGraph(t, get(router, "/v1/depviz/graph/file?external=drop&path="+url.QueryEscape(car)))
		_, ok := g.Node("com.acme.Base")
		assert.False(t, ok)
		_, ok = g.Node("com.acme.Car")
		assert.True(t, ok)
	})

	t.Run("missing file is empty", func(t *testing.T) {
		router, _ := setupTestRouter(t, root, nil)
		g := decodeGraph(t, get(router, "/v1/depviz/graph/file?path=Missing.java"))
		assert.True(t, g.IsEmpty())
	})
}

func TestHandlers_BadRequests(t *testing.T) {
	root := writeProject(t)
	router, _ := setupTestRouter(t, root, nil)

	tests := []struct {
		name   string
		target string
	}{
		{name: "no path", target: "/v1/depviz/graph/file"},
		{name: "non java path", target: "/v1/depviz/graph/file?path=README.md"},
		{name: "bad policy", target: "/v1/depviz/graph?external=sometimes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(router, tt.target)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, CodeInvalidRequest, resp.Code)
		})
	}
}

func TestHandlers_NoRoot(t *testing.T) {
	router, _ := setupTestRouter(t, "", nil)

	for _, target := range []string{"/v1/depviz/graph", "/v1/depviz/graph/file?path=A.java"} {
		w := get(router, target)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, target)
	}
}

func TestHandleCacheStats(t *testing.T) {
	root := writeProject(t)
	router, _ := setupTestRouter(t, root, nil)

	car := filepath.Join(root, "src/main/java/com/acme/Car.java")
	decodeGraph(t, get(router, "/v1/depviz/graph/file?path="+url.QueryEscape(car)))
	decodeGraph(t, get(router, "/v1/depviz/graph/file?path="+url.QueryEscape(car)))

	w := get(router, "/v1/depviz/cache/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, root, resp.Root)
	assert.Equal(t, 1, resp.Entries)
	assert.Equal(t, int64(1), resp.Misses)
	assert.Equal(t, int64(1), resp.Hits)
}

func TestNewRouter_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("depviz_up 1\n"))
	})

	router, _ := setupTestRouter(t, "", metrics)
	w := get(router, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "depviz_up")

	router, _ = setupTestRouter(t, "", nil)
	assert.Equal(t, http.StatusNotFound, get(router, "/metrics").Code)
}
