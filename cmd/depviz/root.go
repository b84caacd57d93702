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
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/depviz/services/depviz/analysis"
	"github.com/AleutianAI/depviz/services/depviz/ast"
	"github.com/AleutianAI/depviz/services/depviz/config"
	"github.com/AleutianAI/depviz/services/depviz/extract"
	"github.com/AleutianAI/depviz/services/depviz/resolve"
	"github.com/AleutianAI/depviz/services/depviz/source"
	"github.com/AleutianAI/depviz/services/depviz/telemetry"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string

	cfg      *config.Config
	logger   *slog.Logger
	shutdown func(context.Context) error
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "depviz",
		Short: "Build Java type dependency graphs",
		Long: `depviz extracts typed dependencies (inheritance, implementation, field and
parameter types, calls, instantiations) between the types of a Java project
and writes them as a node-link graph.

Commands:
  analyze  - Batch analysis of a project or a single file
  lsp      - Incremental per-file graphs over the editor protocol (stdio)
  serve    - HTTP query surface for a project
  version  - Print the version`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "",
		"Config file (default: $DEPVIZ_CONFIG, ./depviz.yaml, ./config/depviz.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"Log level: debug, info, warn, error")

	root.AddCommand(newAnalyzeCmd(a))
	root.AddCommand(newLSPCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newVersionCmd(a))
	return root
}

// setup loads configuration, then builds the logger and telemetry.
func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	a.logger = telemetry.NewLogger(telemetry.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Writer: a.stderr,
	})
	slog.SetDefault(a.logger)

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "depviz",
		ServiceVersion: version,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Writer:         a.stderr,
	})
	if err != nil {
		return err
	}
	a.shutdown = shutdown
	return nil
}

// close flushes telemetry.
func (a *app) close() {
	if a.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil && a.logger != nil {
		a.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
	}
}

// newAnalyzer builds the workspace and analyzer from the loaded config.
// A nil reader reads from disk.
func (a *app) newAnalyzer(reader source.Reader) (*analysis.Analyzer, error) {
	cfg := a.cfg
	extractors, err := extract.ByName(cfg.Analysis.Extractors...)
	if err != nil {
		return nil, usagef("%v", err)
	}

	wsOpts := []resolve.WorkspaceOption{
		resolve.WithParser(ast.NewParser(
			ast.WithMaxFileSize(cfg.Analysis.MaxFileSize),
			ast.WithLogger(a.logger),
		)),
		resolve.WithLogger(a.logger),
		resolve.WithStrictSyntax(cfg.Analysis.StrictSyntax),
		resolve.WithWorkers(cfg.Analysis.Workers),
		resolve.WithExcludes(cfg.Analysis.Exclude...),
	}
	if reader != nil {
		wsOpts = append(wsOpts, resolve.WithReader(reader))
	}

	return analysis.NewAnalyzer(resolve.NewWorkspace(wsOpts...),
		analysis.WithExtractors(extractors...),
		analysis.WithLogger(a.logger),
		analysis.WithWorkers(cfg.Analysis.Workers),
		analysis.WithExcludes(cfg.Analysis.Exclude...),
	), nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := io.WriteString(a.stdout, "depviz "+version+"\n")
			return err
		},
	}
}
