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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/depviz/services/depviz/analysis"
	"github.com/AleutianAI/depviz/services/depviz/graph"
	"github.com/AleutianAI/depviz/services/depviz/source"
)

type analyzeFlags struct {
	file       string
	output     string
	external   string
	extractors []string
	exclude    []string
	workers    int
	pretty     bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze [ROOT]",
		Short: "Analyze a Java project or a single file",
		Long: `Analyze every .java file under ROOT, or one file with --file, and write
the merged dependency graph as node-link JSON.

With --file, the analysis root is the enclosing src/main/java directory,
else the directory that contains the file's package path, else the file's
own directory.

Examples:
  depviz analyze ./my-project
  depviz analyze ./my-project -o out/graph.json --external drop
  depviz analyze --file src/main/java/com/acme/Car.java
  depviz analyze ./my-project --extractors inheritance,implementation`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, a, f, args)
		},
	}

	cmd.Flags().StringVar(&f.file, "file", "", "Analyze a single .java file instead of a project")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output path (default from config: data/sample.json)")
	cmd.Flags().StringVar(&f.external, "external", "", "Types without source: keep or drop")
	cmd.Flags().StringSliceVar(&f.extractors, "extractors", nil, "Extractors to run (default: all)")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "Additional gitignore-style exclude patterns")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Parallel workers (default: one per CPU)")
	cmd.Flags().BoolVar(&f.pretty, "pretty", true, "Indent the JSON output")
	return cmd
}

// applyTo overlays explicitly set flags on the loaded config.
func (f analyzeFlags) applyTo(cmd *cobra.Command, a *app) error {
	cfg := a.cfg
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output.Path = f.output
	}
	if flags.Changed("pretty") {
		cfg.Output.Pretty = f.pretty
	}
	if flags.Changed("external") {
		cfg.Graph.ExternalNodes = strings.ToLower(f.external)
	}
	if flags.Changed("extractors") {
		cfg.Analysis.Extractors = f.extractors
	}
	if flags.Changed("exclude") {
		cfg.Analysis.Exclude = append(cfg.Analysis.Exclude, f.exclude...)
	}
	if flags.Changed("workers") {
		cfg.Analysis.Workers = f.workers
	}
	if err := cfg.Validate(); err != nil {
		return usagef("%v", err)
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, a *app, f analyzeFlags, args []string) error {
	switch {
	case len(args) == 1 && f.file != "":
		return &exitError{code: 1, err: usagef("give either ROOT or --file, not both")}
	case len(args) == 0 && f.file == "":
		return &exitError{code: 1, err: usagef("missing ROOT or --file")}
	}
	if err := f.applyTo(cmd, a); err != nil {
		return &exitError{code: 1, err: err}
	}
	policy, err := graph.ParseExternalPolicy(a.cfg.Graph.ExternalNodes)
	if err != nil {
		return &exitError{code: 1, err: usagef("%v", err)}
	}

	analyzer, err := a.newAnalyzer(nil)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	ctx := cmd.Context()
	var g *graph.CodeGraph
	if f.file != "" {
		g, err = analyzeSingleFile(ctx, a, analyzer, f.file)
	} else {
		g, err = analyzeProject(ctx, a, analyzer, args[0])
	}
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	g = policy.Apply(g)
	data, err := graph.MarshalNodeLink(g, a.cfg.Output.Pretty)
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("%w: %v", errWriteOutput, err)}
	}
	if err := writeOutput(a.cfg.Output.Path, data); err != nil {
		return &exitError{code: 1, err: err}
	}

	fmt.Fprintf(a.stdout, "wrote %s (%d nodes, %d links)\n", a.cfg.Output.Path, g.NodeCount(), g.EdgeCount())
	return nil
}

func analyzeProject(ctx context.Context, a *app, analyzer *analysis.Analyzer, root string) (*graph.CodeGraph, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, usagef("%v", err)
	}
	if !info.IsDir() {
		return nil, usagef("%s is not a directory", root)
	}

	res, err := analyzer.AnalyzeProject(ctx, root)
	if err != nil {
		return nil, err
	}
	for _, ff := range res.Failed {
		fmt.Fprintf(a.stderr, "skipped %s: %v\n", ff.Path, ff.Err)
	}
	return res.Graph, nil
}

// analyzeSingleFile analyzes path against the index of its enclosing root.
// A file that cannot be analyzed yields an empty graph.
func analyzeSingleFile(ctx context.Context, a *app, analyzer *analysis.Analyzer, path string) (*graph.CodeGraph, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, usagef("%v", err)
	}
	if info.IsDir() {
		return nil, usagef("%s is a directory; use ROOT for projects", path)
	}
	if !source.IsJavaFile(path) {
		return nil, usagef("%s is not a .java file", path)
	}

	pkg := ""
	content, err := os.ReadFile(path)
	if err != nil {
		a.logger.Warn("file analysis failed",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return graph.New(), nil
	}
	if file, perr := analyzer.Workspace().Parser().Parse(ctx, content, path); perr == nil {
		pkg = file.Package
	}

	root := source.RootForFile(path, pkg)
	if err := analyzer.SetRoot(ctx, root); err != nil {
		return nil, err
	}

	g, err := analyzer.AnalyzeFile(ctx, path)
	if err != nil {
		a.logger.Warn("file analysis failed",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return graph.New(), nil
	}
	return g, nil
}

// writeOutput writes data to path, creating the parent directory.
func writeOutput(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", errWriteOutput, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", errWriteOutput, err)
	}
	return nil
}
