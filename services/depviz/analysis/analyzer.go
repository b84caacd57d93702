// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/depviz/services/depviz/ast"
	"github.com/AleutianAI/depviz/services/depviz/extract"
	"github.com/AleutianAI/depviz/services/depviz/graph"
	"github.com/AleutianAI/depviz/services/depviz/resolve"
	"github.com/AleutianAI/depviz/services/depviz/source"
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithExtractors sets the extraction pipeline. Default is extract.Default().
func WithExtractors(extractors ...extract.Extractor) Option {
	return func(a *Analyzer) {
		if len(extractors) > 0 {
			a.extractors = extractors
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithWorkers bounds project-analysis parallelism. Non-positive uses
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithExcludes adds walk exclude patterns for project analysis.
func WithExcludes(patterns ...string) Option {
	return func(a *Analyzer) {
		a.excludes = append(a.excludes, patterns...)
	}
}

// Analyzer runs the extraction pipeline.
//
// Thread Safety: Safe for concurrent use. Extractors are stateless and the
// workspace synchronizes its index.
type Analyzer struct {
	ws         *resolve.Workspace
	extractors []extract.Extractor
	logger     *slog.Logger
	workers    int
	excludes   []string
}

// NewAnalyzer creates an Analyzer over ws. A nil ws gets a default
// workspace reading from disk.
func NewAnalyzer(ws *resolve.Workspace, opts ...Option) *Analyzer {
	if ws == nil {
		ws = resolve.NewWorkspace()
	}
	a := &Analyzer{
		ws:         ws,
		extractors: extract.Default(),
		logger:     slog.Default(),
		workers:    runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Workspace returns the oracle the analyzer loads files through.
func (a *Analyzer) Workspace() *resolve.Workspace {
	return a.ws
}

// SetRoot configures the workspace root and rebuilds its symbol index.
func (a *Analyzer) SetRoot(ctx context.Context, root string) error {
	return a.ws.SetRoot(ctx, root)
}

// AnalyzeUnit runs every extractor over unit and folds the partial graphs
// into a fresh graph. If ctx is cancelled before every extractor ran, the
// partial graph is dropped and ctx.Err() is returned.
func (a *Analyzer) AnalyzeUnit(ctx context.Context, unit *resolve.Unit) (*graph.CodeGraph, error) {
	g := graph.New()
	for _, e := range a.extractors {
		if err := ctx.Err(); err != nil {
			return graph.New(), err
		}
		graph.Merge(g, e.Extract(unit))
	}
	if err := ctx.Err(); err != nil {
		return graph.New(), err
	}
	return g, nil
}

// AnalyzeFile loads the file at path through the workspace and analyzes it.
//
// Description:
//
//	On success the file's declarations are also re-indexed so later
//	analyses of other files see them. On failure nothing is indexed.
//
// Outputs:
//
//	*graph.CodeGraph - The file graph; empty (never nil) on failure.
//	error            - Wraps ErrAnalysisFailed and the cause, including
//	                   ctx.Err() when the analysis was interrupted.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*graph.CodeGraph, error) {
	path = source.Normalize(path)
	ctx, span := startFileSpan(ctx, path)
	defer span.End()

	start := time.Now()
	unit, err := a.ws.Load(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		recordFileAnalysis(ctx, time.Since(start), false)
		return graph.New(), fmt.Errorf("%w: %s: %w", ErrAnalysisFailed, path, err)
	}
	a.ws.Index().AddFile(unit.File)

	g, err := a.AnalyzeUnit(ctx, unit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis interrupted")
		recordFileAnalysis(ctx, time.Since(start), false)
		a.logger.Warn("analysis interrupted",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return graph.New(), fmt.Errorf("%w: %s: %w", ErrAnalysisFailed, path, err)
	}
	setGraphResult(span, g.NodeCount(), g.EdgeCount())
	recordFileAnalysis(ctx, time.Since(start), true)

	a.logger.Info("analysis completed",
		slog.String("file", path),
		slog.Int("nodes", g.NodeCount()),
		slog.Int("edges", g.EdgeCount()),
		slog.Duration("duration", time.Since(start)))
	return g, nil
}

// FileFailure records a file skipped by a project analysis.
type FileFailure struct {
	Path string
	Err  error
}

// ProjectResult is the outcome of a whole-project analysis.
type ProjectResult struct {
	// RunID identifies the run in logs and traces.
	RunID string

	Root  string
	Graph *graph.CodeGraph

	// Files is the number of Java files discovered.
	Files int

	// Analyzed is the number of files folded into Graph.
	Analyzed int

	Failed   []FileFailure
	Duration time.Duration
}

type fileGraph struct {
	seq int
	g   *graph.CodeGraph
}

// AnalyzeProject analyzes every Java file under root.
//
// Description:
//
//	Files are parsed in parallel and indexed together, then extracted in
//	parallel against that index. Per-file graphs flow over a channel to a
//	single reducer that owns the global graph and folds them in file
//	order, so output is stable across runs. A file that cannot be read or
//	parsed is recorded in Failed and skipped.
//
// Outputs:
//
//	*ProjectResult - Never nil when error is nil.
//	error          - ErrRootNotDirectory for a bad root, or ctx.Err().
func (a *Analyzer) AnalyzeProject(ctx context.Context, root string) (*ProjectResult, error) {
	runID := uuid.NewString()
	root = source.Normalize(root)
	ctx, span := startProjectSpan(ctx, root, runID)
	defer span.End()

	logger := a.logger.With(slog.String("run_id", runID))
	start := time.Now()

	paths, err := source.Walk(ctx, root, source.WithExcludes(a.excludes...))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	logger.Info("project analysis started",
		slog.String("root", root),
		slog.Int("files", len(paths)))

	res := &ProjectResult{RunID: runID, Root: root, Files: len(paths)}

	files, failures, err := a.parseAll(ctx, paths)
	if err != nil {
		return nil, err
	}

	idx := resolve.NewIndex()
	var valid []*ast.File
	for i, f := range files {
		if f == nil {
			continue
		}
		idx.AddFile(f)
		if verr := a.ws.Validate(f); verr != nil {
			failures[i] = verr
			continue
		}
		valid = append(valid, f)
	}
	for i, ferr := range failures {
		if ferr != nil {
			logger.Warn("skipping file",
				slog.String("file", paths[i]),
				slog.String("error", ferr.Error()))
			res.Failed = append(res.Failed, FileFailure{Path: paths[i], Err: ferr})
		}
	}

	global, err := a.extractAll(ctx, idx, valid)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	res.Graph = global
	res.Analyzed = len(valid)
	res.Duration = time.Since(start)

	setGraphResult(span, global.NodeCount(), global.EdgeCount())
	recordProjectAnalysis(ctx, res.Duration, res.Files, len(res.Failed))
	logger.Info("project analysis completed",
		slog.Int("analyzed", res.Analyzed),
		slog.Int("failed", len(res.Failed)),
		slog.Int("nodes", global.NodeCount()),
		slog.Int("edges", global.EdgeCount()),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// parseAll parses paths in parallel. files[i] is nil where failures[i] is set.
func (a *Analyzer) parseAll(ctx context.Context, paths []string) ([]*ast.File, []error, error) {
	files := make([]*ast.File, len(paths))
	failures := make([]error, len(paths))
	reader := a.ws.Reader()
	parser := a.ws.Parser()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			content, err := reader.Read(gCtx, path)
			if err != nil {
				failures[i] = fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
				return nil
			}
			f, err := parser.Parse(gCtx, content, path)
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				failures[i] = fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
				return nil
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("parsing project: %w", err)
	}
	return files, failures, nil
}

// extractAll analyzes files in parallel and folds the results in order on a
// single reducer goroutine.
func (a *Analyzer) extractAll(ctx context.Context, idx *resolve.Index, files []*ast.File) (*graph.CodeGraph, error) {
	results := make(chan fileGraph, a.workers)
	global := graph.New()
	done := make(chan struct{})

	go func() {
		defer close(done)
		pending := make(map[int]*graph.CodeGraph)
		next := 0
		for r := range results {
			pending[r.seq] = r.g
			for {
				g, ok := pending[next]
				if !ok {
					break
				}
				graph.Merge(global, g)
				delete(pending, next)
				next++
			}
		}
	}()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			fg, err := a.AnalyzeUnit(gCtx, resolve.BindTo(idx, f))
			if err != nil {
				return err
			}
			select {
			case results <- fileGraph{seq: i, g: fg}:
				return nil
			case <-gCtx.Done():
				return gCtx.Err()
			}
		})
	}
	err := g.Wait()
	close(results)
	<-done

	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("extracting project: %w", err)
	}
	return global, nil
}

// Fold merges graphs in order into acc. A nil acc starts a fresh graph.
func Fold(acc *graph.CodeGraph, graphs ...*graph.CodeGraph) *graph.CodeGraph {
	return graph.Fold(acc, graphs...)
}
