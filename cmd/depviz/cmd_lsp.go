// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/depviz/services/depviz/analysis"
	"github.com/AleutianAI/depviz/services/depviz/cache"
	"github.com/AleutianAI/depviz/services/depviz/docstore"
	"github.com/AleutianAI/depviz/services/depviz/graph"
	"github.com/AleutianAI/depviz/services/depviz/lsp"
	"github.com/AleutianAI/depviz/services/depviz/watch"
)

func newLSPCmd(a *app) *cobra.Command {
	var noWatch bool
	var external string
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Serve per-file dependency graphs over the editor protocol (stdio)",
		Long: `Run a JSON-RPC language server on stdin/stdout.

Besides the document lifecycle notifications the server answers:
  dependviz/getFileDependencyGraph  - Graph of one file (node-link JSON string)
  dependviz/getDependencyGraph      - Graph of the whole workspace

Graphs of open files are cached and refreshed on every change. Unless
--no-watch is given, files changed on disk outside the editor invalidate
their cached graphs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("no-watch") {
				a.cfg.LSP.Watch = !noWatch
			}
			if cmd.Flags().Changed("external") {
				a.cfg.Graph.ExternalNodes = strings.ToLower(external)
			}
			return runLSP(cmd.Context(), a)
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not watch the workspace for external changes")
	cmd.Flags().StringVar(&external, "external", "", "Types without source: keep or drop")
	return cmd
}

func runLSP(ctx context.Context, a *app) error {
	policy, err := graph.ParseExternalPolicy(a.cfg.Graph.ExternalNodes)
	if err != nil {
		return &exitError{code: 1, err: usagef("%v", err)}
	}

	docs, err := docstore.Open(docstore.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer func() { _ = docs.Close() }()

	analyzer, err := a.newAnalyzer(docs)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	fc := cache.New(analyzer, cache.WithLogger(a.logger))

	opts := []lsp.ServerOption{
		lsp.WithLogger(a.logger),
		lsp.WithExternalPolicy(policy),
		lsp.WithVersion(version),
	}
	var ws workspaceWatcher
	defer ws.stop()
	if a.cfg.LSP.Watch {
		opts = append(opts, lsp.WithRootListener(func(ctx context.Context, root string) {
			ws.start(ctx, a, analyzer, fc, root)
		}))
	}

	srv := lsp.NewServer(fc, analyzer, docs, opts...)
	code, err := srv.Serve(ctx, a.stdin, a.stdout)
	if err != nil {
		return &exitError{code: code, err: err}
	}
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// workspaceWatcher owns the file watcher started once the root is known.
type workspaceWatcher struct {
	mu sync.Mutex
	w  *watch.Watcher
}

func (ww *workspaceWatcher) start(ctx context.Context, a *app, analyzer *analysis.Analyzer, fc *cache.FileCache, root string) {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.w != nil {
		ww.w.Stop()
		ww.w = nil
	}

	handler := watch.Apply(analyzer.Workspace(), fc, a.logger)
	w, err := watch.New(root, handler,
		watch.WithExcludes(a.cfg.Analysis.Exclude...),
		watch.WithLogger(a.logger))
	if err != nil {
		a.logger.Warn("workspace watch disabled", slog.String("root", root), slog.String("error", err.Error()))
		return
	}
	// The watcher outlives the initialize request.
	if err := w.Start(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn("workspace watch disabled", slog.String("root", root), slog.String("error", err.Error()))
		w.Stop()
		return
	}
	ww.w = w
}

func (ww *workspaceWatcher) stop() {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.w != nil {
		ww.w.Stop()
		ww.w = nil
	}
}
