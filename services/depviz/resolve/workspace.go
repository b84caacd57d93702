// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/depviz/services/depviz/ast"
	"github.com/AleutianAI/depviz/services/depviz/source"
)

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*Workspace)

// WithParser sets the parser. Default is ast.NewParser().
func WithParser(p *ast.Parser) WorkspaceOption {
	return func(w *Workspace) {
		if p != nil {
			w.parser = p
		}
	}
}

// WithReader sets where file contents come from. Default is source.DiskReader.
func WithReader(r source.Reader) WorkspaceOption {
	return func(w *Workspace) {
		if r != nil {
			w.reader = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) WorkspaceOption {
	return func(w *Workspace) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithStrictSyntax makes Load fail for files with syntax errors.
// Enabled by default.
func WithStrictSyntax(strict bool) WorkspaceOption {
	return func(w *Workspace) {
		w.strict = strict
	}
}

// WithWorkers bounds index-build parallelism. Non-positive uses GOMAXPROCS.
func WithWorkers(n int) WorkspaceOption {
	return func(w *Workspace) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithExcludes adds walk exclude patterns for index builds.
func WithExcludes(patterns ...string) WorkspaceOption {
	return func(w *Workspace) {
		w.excludes = append(w.excludes, patterns...)
	}
}

// Workspace is the resolved-unit oracle for one project root.
//
// Description:
//
//	SetRoot indexes every Java file under the project's source root.
//	Load parses one file and binds it to a resolver over that index, with
//	the file's own declarations shadowing its stale index entries.
//
// Thread Safety: Safe for concurrent use.
type Workspace struct {
	parser   *ast.Parser
	reader   source.Reader
	logger   *slog.Logger
	strict   bool
	workers  int
	excludes []string

	mu    sync.RWMutex
	root  string
	index *Index
}

// NewWorkspace creates a Workspace with an empty index and no root.
func NewWorkspace(opts ...WorkspaceOption) *Workspace {
	w := &Workspace{
		parser:  ast.NewParser(),
		reader:  source.DiskReader{},
		logger:  slog.Default(),
		strict:  true,
		workers: runtime.GOMAXPROCS(0),
		index:   NewIndex(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Root returns the configured project root, "" if none.
func (w *Workspace) Root() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.root
}

// Index returns the current symbol index.
func (w *Workspace) Index() *Index {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.index
}

// Parser returns the workspace parser.
func (w *Workspace) Parser() *ast.Parser {
	return w.parser
}

// Reader returns the content reader.
func (w *Workspace) Reader() source.Reader {
	return w.reader
}

// SetRoot configures the project root and rebuilds the index from the
// source root found under it (src/main/java when present, else root).
// The previous index is replaced only after the new one is complete.
func (w *Workspace) SetRoot(ctx context.Context, root string) error {
	abs := source.Normalize(root)

	indexRoot, err := source.FindSourceRoot(abs)
	if err != nil {
		indexRoot = abs
		w.logger.Info("source root not found, indexing project root",
			slog.String("root", abs))
	} else {
		w.logger.Info("found source root", slog.String("source_root", indexRoot))
	}

	files, err := source.Walk(ctx, indexRoot, source.WithExcludes(w.excludes...))
	if err != nil {
		return fmt.Errorf("indexing %s: %w", abs, err)
	}

	idx, err := w.BuildIndex(ctx, indexRoot, files)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.root = abs
	w.index = idx
	w.mu.Unlock()
	return nil
}

// BuildIndex parses files in parallel and indexes their declarations.
// Files that cannot be read or parsed are logged and skipped; syntax
// errors do not exclude a file from the index.
func (w *Workspace) BuildIndex(ctx context.Context, root string, files []string) (*Index, error) {
	ctx, span := startIndexSpan(ctx, root, len(files))
	defer span.End()

	start := time.Now()
	idx := NewIndex()
	var failures atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	for _, path := range files {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			file, err := w.parseFile(gCtx, path)
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				failures.Add(1)
				w.logger.Warn("skipping file in index",
					slog.String("file", path),
					slog.String("error", err.Error()))
				return nil
			}
			idx.AddFile(file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}

	recordIndexBuild(ctx, time.Since(start), idx.Len(), int(failures.Load()))
	w.logger.Debug("index built",
		slog.String("root", root),
		slog.Int("files", len(files)),
		slog.Int("symbols", idx.Len()),
		slog.Duration("duration", time.Since(start)))
	return idx, nil
}

func (w *Workspace) parseFile(ctx context.Context, path string) (*ast.File, error) {
	content, err := w.reader.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return w.parser.Parse(ctx, content, path)
}

// Parse parses content as the file at path. With strict syntax, a file
// with syntax errors fails with an *ast.ParseError wrapping
// ast.ErrParseFailed.
func (w *Workspace) Parse(ctx context.Context, path string, content []byte) (*ast.File, error) {
	if !source.IsJavaFile(path) {
		return nil, fmt.Errorf("%w: %s", ast.ErrUnsupportedFile, path)
	}
	file, err := w.parser.Parse(ctx, content, path)
	if err != nil {
		return nil, err
	}
	if err := w.Validate(file); err != nil {
		return nil, err
	}
	return file, nil
}

// Validate rejects a file with syntax errors when strict syntax is on.
func (w *Workspace) Validate(file *ast.File) error {
	if !w.strict || !file.HasSyntaxErrors() {
		return nil
	}
	return &ast.ParseError{
		FilePath: file.Path,
		Line:     file.ErrorLine,
		Message:  "source contains syntax errors",
		Cause:    ast.ErrParseFailed,
	}
}

// Load reads, parses and binds the file at path.
//
// Outputs:
//
//	*Unit - The bound unit.
//	error - Read, parse or syntax failure; source.ErrNotFound when the file
//	        has no content.
func (w *Workspace) Load(ctx context.Context, path string) (*Unit, error) {
	content, err := w.reader.Read(ctx, path)
	if err != nil {
		recordLoad(ctx, false)
		return nil, err
	}
	file, err := w.Parse(ctx, path, content)
	if err != nil {
		recordLoad(ctx, false)
		return nil, err
	}
	recordLoad(ctx, true)
	return w.Bind(file), nil
}

// Bind resolves file against the current index.
func (w *Workspace) Bind(file *ast.File) *Unit {
	return NewUnit(file, newUnitResolver(w.Index(), file))
}

// BindTo resolves file against idx.
func BindTo(idx *Index, file *ast.File) *Unit {
	return NewUnit(file, newUnitResolver(idx, file))
}

// Refresh re-indexes path from the reader, removing it when the file no
// longer exists.
func (w *Workspace) Refresh(ctx context.Context, path string) error {
	idx := w.Index()
	file, err := w.parseFile(ctx, path)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			idx.RemoveFile(path)
			return nil
		}
		return err
	}
	idx.AddFile(file)
	return nil
}

// Remove drops path from the index.
func (w *Workspace) Remove(path string) {
	w.Index().RemoveFile(path)
}
