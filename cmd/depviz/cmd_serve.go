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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/depviz/services/depviz/cache"
	"github.com/AleutianAI/depviz/services/depviz/graph"
	"github.com/AleutianAI/depviz/services/depviz/httpapi"
	"github.com/AleutianAI/depviz/services/depviz/telemetry"
	"github.com/AleutianAI/depviz/services/depviz/watch"
)

func newServeCmd(a *app) *cobra.Command {
	var addr, external string
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "serve ROOT",
		Short: "Serve dependency graphs of a project over HTTP",
		Long: `Serve the project at ROOT over HTTP:

  GET /v1/depviz/health
  GET /v1/depviz/graph[?external=keep|drop]
  GET /v1/depviz/graph/file?path=<file>[&external=keep|drop]
  GET /v1/depviz/cache/stats
  GET /metrics                (with telemetry.metric_exporter: prometheus)

Examples:
  depviz serve ./my-project
  depviz serve ./my-project --addr :9000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.HTTP.Addr = addr
			}
			if cmd.Flags().Changed("external") {
				a.cfg.Graph.ExternalNodes = strings.ToLower(external)
			}
			if cmd.Flags().Changed("no-watch") {
				a.cfg.LSP.Watch = !noWatch
			}
			return runServe(cmd.Context(), a, args[0])
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config: 127.0.0.1:8089)")
	cmd.Flags().StringVar(&external, "external", "", "Default policy for types without source: keep or drop")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not watch the project for changes")
	return cmd
}

func runServe(ctx context.Context, a *app, root string) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return &exitError{code: 1, err: usagef("%s is not a directory", root)}
	}
	policy, err := graph.ParseExternalPolicy(a.cfg.Graph.ExternalNodes)
	if err != nil {
		return &exitError{code: 1, err: usagef("%v", err)}
	}

	analyzer, err := a.newAnalyzer(nil)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	fc := cache.New(analyzer, cache.WithLogger(a.logger))
	if err := fc.SetRoot(ctx, root); err != nil {
		return err
	}

	if a.cfg.LSP.Watch {
		w, err := watch.New(fc.Root(), watch.Apply(analyzer.Workspace(), fc, a.logger),
			watch.WithExcludes(a.cfg.Analysis.Exclude...),
			watch.WithLogger(a.logger))
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	handlers := httpapi.NewHandlers(fc, analyzer,
		httpapi.WithExternalPolicy(policy),
		httpapi.WithVersion(version),
		httpapi.WithLogger(a.logger))
	router := httpapi.NewRouter(handlers, telemetry.MetricsHandler())

	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", slog.String("addr", server.Addr), slog.String("root", fc.Root()))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.logger.Info("http server stopped")
	return nil
}
