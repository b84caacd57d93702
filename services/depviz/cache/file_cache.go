// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/depviz/services/depviz/graph"
	"github.com/AleutianAI/depviz/services/depviz/source"
)

// Analyzer computes file graphs for the cache.
type Analyzer interface {
	// SetRoot configures the workspace every later analysis resolves in.
	SetRoot(ctx context.Context, root string) error

	// AnalyzeFile returns the graph of one file. On error the graph is
	// ignored.
	AnalyzeFile(ctx context.Context, path string) (*graph.CodeGraph, error)
}

// FileState is the lifecycle state of one file in the cache.
type FileState int

const (
	// StateUntracked means no graph is stored for the file.
	StateUntracked FileState = iota

	// StateAnalyzed means a graph is stored for the file.
	StateAnalyzed
)

// String returns the state name.
func (s FileState) String() string {
	if s == StateAnalyzed {
		return "analyzed"
	}
	return "untracked"
}

// Option configures a FileCache.
type Option func(*FileCache)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *FileCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type entry struct {
	graph           *graph.CodeGraph
	version         uint64
	analyzedAtMilli int64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries int

	Hits   int64
	Misses int64

	// Analyses counts every analysis the cache started.
	Analyses int64
	Failures int64

	// Discarded counts results dropped because a newer analysis, a close or
	// a root change superseded them.
	Discarded int64

	// Coalesced counts queries that shared another query's analysis.
	Coalesced int64
}

// FileCache maps file paths to their dependency graphs.
//
// Description:
//
//	Open and Change run a full analysis and replace the entry. Close
//	evicts it. Query serves the stored graph or analyzes on demand,
//	storing the result; concurrent queries for the same uncached file
//	share one analysis. SetRoot reconfigures the workspace and drops every
//	entry.
//
//	Each path has a version bumped by Open, Change, Close and Invalidate,
//	and the cache has a generation bumped by SetRoot and InvalidateAll. An
//	analysis stores its result only if both are unchanged when it finishes.
//	A path's version is kept only while an analysis of it is in flight.
//
// Thread Safety: Safe for concurrent use. Analyses run outside the lock.
type FileCache struct {
	analyzer Analyzer
	logger   *slog.Logger

	mu         sync.Mutex
	root       string
	generation uint64
	versions   map[string]uint64
	inflight   map[string]int
	entries    map[string]*entry

	flight singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	analyses  atomic.Int64
	failures  atomic.Int64
	discarded atomic.Int64
	coalesced atomic.Int64
}

// New creates an empty FileCache with no root.
func New(analyzer Analyzer, opts ...Option) *FileCache {
	c := &FileCache{
		analyzer: analyzer,
		logger:   slog.Default(),
		versions: make(map[string]uint64),
		inflight: make(map[string]int),
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the configured workspace root, "" if none.
func (c *FileCache) Root() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root
}

// SetRoot configures the workspace root. Every entry is dropped and every
// in-flight analysis is discarded. On error the cache has no root.
func (c *FileCache) SetRoot(ctx context.Context, root string) error {
	root = source.Normalize(root)

	c.mu.Lock()
	c.generation++
	c.entries = make(map[string]*entry)
	c.root = ""
	gen := c.generation
	c.mu.Unlock()

	if err := c.analyzer.SetRoot(ctx, root); err != nil {
		c.logger.Warn("workspace root not configured",
			slog.String("root", root),
			slog.String("error", err.Error()))
		return fmt.Errorf("setting root %s: %w", root, err)
	}

	c.mu.Lock()
	if c.generation == gen {
		c.root = root
	}
	c.mu.Unlock()

	c.logger.Info("workspace root configured", slog.String("root", root))
	return nil
}

// begin takes a new version for path and drops the entry it supersedes,
// so queries issued after an edit never see the pre-edit graph.
func (c *FileCache) begin(path string) (uint64, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.root == "" {
		return 0, 0, ErrNoRoot
	}
	delete(c.entries, path)
	c.versions[path]++
	c.inflight[path]++
	return c.versions[path], c.generation, nil
}

// release ends an analysis taken by begin or Query. The path's version is
// dropped once nothing in flight can still compare against it.
//
// Thread Safety: Caller must hold c.mu.
func (c *FileCache) release(path string) {
	c.inflight[path]--
	if c.inflight[path] > 0 {
		return
	}
	delete(c.inflight, path)
	delete(c.versions, path)
}

// store records the outcome of an analysis started at (version, gen).
func (c *FileCache) store(ctx context.Context, op, path string, version, gen uint64, g *graph.CodeGraph, err error) error {
	c.analyses.Add(1)
	recordAnalysis(ctx, op, err == nil)

	c.mu.Lock()
	current := c.versions[path] == version && c.generation == gen
	if current {
		if err != nil {
			delete(c.entries, path)
		} else {
			c.entries[path] = &entry{graph: g, version: version, analyzedAtMilli: time.Now().UnixMilli()}
		}
	}
	c.release(path)
	c.mu.Unlock()

	if err != nil {
		c.failures.Add(1)
		c.logger.Warn("file analysis failed",
			slog.String("op", op),
			slog.String("file", path),
			slog.String("error", err.Error()))
		return err
	}
	if !current {
		c.discarded.Add(1)
		recordDiscard(ctx)
		c.logger.Debug("discarding stale analysis",
			slog.String("op", op),
			slog.String("file", path),
			slog.Uint64("version", version))
	}
	return nil
}

func (c *FileCache) reanalyze(ctx context.Context, op, path string) error {
	path = source.Normalize(path)
	ctx, span := startCacheSpan(ctx, op, path)
	defer span.End()

	version, gen, err := c.begin(path)
	if err != nil {
		c.logger.Warn("file analysis skipped",
			slog.String("op", op),
			slog.String("file", path),
			slog.String("error", err.Error()))
		return err
	}
	g, err := c.analyzer.AnalyzeFile(ctx, path)
	return c.store(ctx, op, path, version, gen, g, err)
}

// reanalyzeAsync takes the version before returning so that callers
// dispatching lifecycle events in order get results ordered the same way.
func (c *FileCache) reanalyzeAsync(ctx context.Context, op, path string) <-chan error {
	path = source.Normalize(path)
	done := make(chan error, 1)

	version, gen, err := c.begin(path)
	if err != nil {
		done <- err
		close(done)
		return done
	}
	go func() {
		defer close(done)
		ctx, span := startCacheSpan(ctx, op, path)
		defer span.End()
		g, err := c.analyzer.AnalyzeFile(ctx, path)
		done <- c.store(ctx, op, path, version, gen, g, err)
	}()
	return done
}

// Open analyzes a newly opened file and stores its graph.
func (c *FileCache) Open(ctx context.Context, path string) error {
	return c.reanalyze(ctx, "Open", path)
}

// Change re-analyzes an edited file and replaces its graph.
func (c *FileCache) Change(ctx context.Context, path string) error {
	return c.reanalyze(ctx, "Change", path)
}

// OpenAsync is Open on a background goroutine. The returned channel yields
// the result once.
func (c *FileCache) OpenAsync(ctx context.Context, path string) <-chan error {
	return c.reanalyzeAsync(ctx, "Open", path)
}

// ChangeAsync is Change on a background goroutine.
func (c *FileCache) ChangeAsync(ctx context.Context, path string) <-chan error {
	return c.reanalyzeAsync(ctx, "Change", path)
}

// Save leaves the cache unchanged; the preceding Change already analyzed
// the saved content.
func (c *FileCache) Save(_ context.Context, path string) error {
	c.logger.Debug("file saved", slog.String("file", source.Normalize(path)))
	return nil
}

// Close evicts path. In-flight analyses of path are discarded.
func (c *FileCache) Close(path string) {
	c.Invalidate(path)
}

// Invalidate drops the entry for path and discards in-flight analyses.
func (c *FileCache) Invalidate(path string) {
	path = source.Normalize(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
	if c.inflight[path] > 0 {
		c.versions[path]++
	}
}

// InvalidateAll drops every entry and discards every in-flight analysis.
// The root is kept.
func (c *FileCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.entries = make(map[string]*entry)
}

// State returns whether a graph is stored for path.
func (c *FileCache) State(path string) FileState {
	path = source.Normalize(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[path]; ok {
		return StateAnalyzed
	}
	return StateUntracked
}

// Paths returns the cached paths in sorted order.
func (c *FileCache) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for p := range c.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Query returns the graph of path.
//
// Description:
//
//	A stored graph is returned as a deep copy. Otherwise the file is
//	analyzed on demand; concurrent queries for the same file and version
//	share one analysis. The result is stored only if no open, change,
//	close or root change happened meanwhile.
//
// Outputs:
//
//	*graph.CodeGraph - Never nil. Empty when no root is configured or the
//	                   analysis failed.
func (c *FileCache) Query(ctx context.Context, path string) *graph.CodeGraph {
	path = source.Normalize(path)
	ctx, span := startCacheSpan(ctx, "Query", path)
	defer span.End()

	c.mu.Lock()
	if e, ok := c.entries[path]; ok {
		g := e.graph.Clone()
		c.mu.Unlock()
		c.hits.Add(1)
		recordHit(ctx)
		return g
	}
	root := c.root
	version := c.versions[path]
	gen := c.generation
	if root != "" {
		c.inflight[path]++
	}
	c.mu.Unlock()

	c.misses.Add(1)
	recordMiss(ctx)

	if root == "" {
		c.logger.Warn("query before workspace root configured", slog.String("file", path))
		return graph.New()
	}

	// Queries join only an analysis started at the same version, so a query
	// issued after an edit never waits on the pre-edit analysis.
	key := fmt.Sprintf("%d:%d:%s", gen, version, path)
	leader := false
	v, err, shared := c.flight.Do(key, func() (interface{}, error) {
		leader = true
		// Shared by every waiting query, so not bound to the first caller.
		actx := context.WithoutCancel(ctx)
		g, err := c.analyzer.AnalyzeFile(actx, path)
		c.analyses.Add(1)
		recordAnalysis(actx, "Query", err == nil)
		if err != nil {
			c.failures.Add(1)
			return nil, err
		}

		c.mu.Lock()
		_, exists := c.entries[path]
		if !exists && c.versions[path] == version && c.generation == gen {
			c.entries[path] = &entry{graph: g, version: version, analyzedAtMilli: time.Now().UnixMilli()}
		}
		c.mu.Unlock()
		return g, nil
	})
	c.mu.Lock()
	c.release(path)
	c.mu.Unlock()

	// singleflight reports shared to the leader too.
	if shared && !leader {
		c.coalesced.Add(1)
	}
	if err != nil {
		c.logger.Warn("file analysis failed",
			slog.String("op", "Query"),
			slog.String("file", path),
			slog.String("error", err.Error()))
		return graph.New()
	}
	return v.(*graph.CodeGraph).Clone()
}

// Stats returns current counters.
func (c *FileCache) Stats() Stats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return Stats{
		Entries:   n,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Analyses:  c.analyses.Load(),
		Failures:  c.failures.Load(),
		Discarded: c.discarded.Load(),
		Coalesced: c.coalesced.Load(),
	}
}
