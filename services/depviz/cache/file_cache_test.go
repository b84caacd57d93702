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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/depviz/services/depviz/graph"
)

// step is one scripted analysis outcome. A non-nil gate blocks the
// analysis until closed.
type step struct {
	graph *graph.CodeGraph
	err   error
	gate  chan struct{}
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	script  []step
	calls   atomic.Int64
	started chan struct{}
	rootErr error
	roots   []string
}

func newFake(steps ...step) *fakeAnalyzer {
	return &fakeAnalyzer{script: steps, started: make(chan struct{}, 64)}
}

func (f *fakeAnalyzer) SetRoot(_ context.Context, root string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roots = append(f.roots, root)
	return f.rootErr
}

func (f *fakeAnalyzer) AnalyzeFile(_ context.Context, path string) (*graph.CodeGraph, error) {
	n := int(f.calls.Add(1)) - 1
	f.started <- struct{}{}

	f.mu.Lock()
	s := step{graph: classGraph(path)}
	if n < len(f.script) {
		s = f.script[n]
	} else if len(f.script) > 0 {
		s = f.script[len(f.script)-1]
		s.gate = nil
	}
	f.mu.Unlock()

	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return graph.New(), s.err
	}
	return s.graph, nil
}

func classGraph(name string) *graph.CodeGraph {
	g := graph.New()
	g.SetKind(name, graph.KindClass)
	return g
}

const testPath = "/work/src/A.java"

func newCache(t *testing.T, f *fakeAnalyzer) *FileCache {
	t.Helper()
	c := New(f)
	require.NoError(t, c.SetRoot(context.Background(), "/work"))
	return c
}

func TestFileCache_NoRoot(t *testing.T) {
	f := newFake()
	c := New(f)

	err := c.Open(context.Background(), testPath)
	assert.True(t, errors.Is(err, ErrNoRoot))

	g := c.Query(context.Background(), testPath)
	require.NotNil(t, g)
	assert.True(t, g.IsEmpty())
	assert.Zero(t, f.calls.Load())
	assert.Equal(t, StateUntracked, c.State(testPath))
}

func TestFileCache_SetRootFailure(t *testing.T) {
	f := newFake()
	f.rootErr = errors.New("boom")
	c := New(f)

	require.Error(t, c.SetRoot(context.Background(), "/work"))
	assert.Empty(t, c.Root())
	assert.True(t, errors.Is(c.Open(context.Background(), testPath), ErrNoRoot))
}

func TestFileCache_Coherence(t *testing.T) {
	f := newFake()
	c := newCache(t, f)
	ctx := context.Background()

	require.NoError(t, c.Open(ctx, testPath))
	assert.Equal(t, StateAnalyzed, c.State(testPath))
	assert.Equal(t, []string{testPath}, c.Paths())

	g := c.Query(ctx, testPath)
	fresh := classGraph(testPath)
	assert.Equal(t, fresh.NodeCount(), g.NodeCount())
	assert.Equal(t, fresh.EdgeCount(), g.EdgeCount())
	assert.Equal(t, int64(1), f.calls.Load(), "query after open is served from the cache")

	// Snapshots are independent of the stored entry.
	g.SetKind("Injected", graph.KindEnum)
	assert.Equal(t, 1, c.Query(ctx, testPath).NodeCount())

	c.Close(testPath)
	assert.Equal(t, StateUntracked, c.State(testPath))

	c.Query(ctx, testPath)
	assert.Equal(t, int64(2), f.calls.Load(), "query after close re-analyzes")
	assert.Equal(t, StateAnalyzed, c.State(testPath))

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(2), stats.Analyses)
	assert.Equal(t, 1, stats.Entries)
}

func TestFileCache_ChangeReplaces(t *testing.T) {
	first := classGraph("First")
	second := classGraph("Second")
	f := newFake(step{graph: first}, step{graph: second})
	c := newCache(t, f)
	ctx := context.Background()

	require.NoError(t, c.Open(ctx, testPath))
	require.NoError(t, c.Change(ctx, testPath))
	require.NoError(t, c.Save(ctx, testPath))

	g := c.Query(ctx, testPath)
	_, ok := g.Node("Second")
	assert.True(t, ok)
	_, ok = g.Node("First")
	assert.False(t, ok, "entries are replaced, not merged")
	assert.Equal(t, int64(2), f.calls.Load(), "save does not re-analyze")
}

func TestFileCache_Failure(t *testing.T) {
	boom := errors.New("parse failed")
	f := newFake(step{graph: classGraph("Ok")}, step{err: boom})
	c := newCache(t, f)
	ctx := context.Background()

	require.NoError(t, c.Open(ctx, testPath))
	err := c.Change(ctx, testPath)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateUntracked, c.State(testPath), "a failed change drops the entry")

	g := c.Query(ctx, testPath)
	assert.True(t, g.IsEmpty())
	assert.Equal(t, StateUntracked, c.State(testPath))
	assert.Equal(t, int64(2), c.Stats().Failures)
}

func TestFileCache_QueryCoalescing(t *testing.T) {
	gate := make(chan struct{})
	f := newFake(step{graph: classGraph("A"), gate: gate})
	c := newCache(t, f)

	const n = 10
	var wg sync.WaitGroup
	results := make([]*graph.CodeGraph, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Query(context.Background(), testPath)
		}()
	}

	<-f.started
	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int64(1), f.calls.Load())
	for _, g := range results {
		require.NotNil(t, g)
		assert.Equal(t, 1, g.NodeCount())
	}
	assert.Equal(t, StateAnalyzed, c.State(testPath))
	assert.Equal(t, int64(n-1), c.Stats().Coalesced, "the query that ran the analysis is not counted")
}

func TestFileCache_SingleQueryNotCoalesced(t *testing.T) {
	f := newFake()
	c := newCache(t, f)

	c.Query(context.Background(), testPath)
	assert.Equal(t, int64(0), c.Stats().Coalesced)
}

func TestFileCache_QueryAfterChangeRunsOwnAnalysis(t *testing.T) {
	oldGate := make(chan struct{})
	newGate := make(chan struct{})
	f := newFake(
		step{graph: classGraph("Old"), gate: oldGate},
		step{graph: classGraph("New"), gate: newGate},
		step{graph: classGraph("New")},
	)
	c := newCache(t, f)
	ctx := context.Background()

	before := make(chan *graph.CodeGraph, 1)
	go func() { before <- c.Query(ctx, testPath) }()
	<-f.started

	done := c.ChangeAsync(ctx, testPath)
	<-f.started

	after := make(chan *graph.CodeGraph, 1)
	go func() { after <- c.Query(ctx, testPath) }()
	select {
	case <-f.started:
	case <-time.After(5 * time.Second):
		close(oldGate)
		close(newGate)
		t.Fatal("query issued after the change joined the pre-edit analysis")
	}

	g := <-after
	_, hasOld := g.Node("Old")
	_, hasNew := g.Node("New")
	assert.False(t, hasOld)
	assert.True(t, hasNew)

	close(oldGate)
	close(newGate)
	require.NoError(t, <-done)
	<-before

	g = c.Query(ctx, testPath)
	_, hasNew = g.Node("New")
	assert.True(t, hasNew)
	assert.Equal(t, int64(3), f.calls.Load())
	assert.Equal(t, int64(0), c.Stats().Coalesced)
}

func TestFileCache_StaleResultDiscarded(t *testing.T) {
	gate := make(chan struct{})
	slow := classGraph("Slow")
	fast := classGraph("Fast")
	f := newFake(step{graph: slow, gate: gate}, step{graph: fast})
	c := newCache(t, f)
	ctx := context.Background()

	done := c.ChangeAsync(ctx, testPath)
	<-f.started
	require.NoError(t, c.Change(ctx, testPath))

	close(gate)
	require.NoError(t, <-done)

	g := c.Query(ctx, testPath)
	_, ok := g.Node("Fast")
	assert.True(t, ok, "the newer change wins")
	assert.Equal(t, int64(1), c.Stats().Discarded)
}

func TestFileCache_CloseDuringAnalysis(t *testing.T) {
	gate := make(chan struct{})
	f := newFake(step{graph: classGraph("A"), gate: gate})
	c := newCache(t, f)

	done := c.OpenAsync(context.Background(), testPath)
	<-f.started
	c.Close(testPath)
	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, StateUntracked, c.State(testPath))
	assert.Equal(t, int64(1), c.Stats().Discarded)
	assertNoVersions(t, c)
}

func TestFileCache_VersionsPrunedWhenIdle(t *testing.T) {
	f := newFake()
	c := newCache(t, f)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		path := fmt.Sprintf("/work/src/C%d.java", i)
		require.NoError(t, c.Open(ctx, path))
		c.Query(ctx, path)
		c.Close(path)
		c.Invalidate(path)
		c.Query(ctx, path)
	}
	assertNoVersions(t, c)
	assert.Len(t, c.Paths(), 5)

	// A pruned version must not let a superseded analysis store.
	gate := make(chan struct{})
	f2 := newFake(step{graph: classGraph("Slow"), gate: gate}, step{graph: classGraph("Fast")})
	c2 := newCache(t, f2)
	done := c2.ChangeAsync(ctx, testPath)
	<-f2.started
	require.NoError(t, c2.Change(ctx, testPath))
	c2.Close(testPath)
	require.NoError(t, c2.Open(ctx, testPath))
	close(gate)
	require.NoError(t, <-done)

	_, hasSlow := c2.Query(ctx, testPath).Node("Slow")
	assert.False(t, hasSlow)
	assertNoVersions(t, c2)
}

func assertNoVersions(t *testing.T, c *FileCache) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.versions)
	assert.Empty(t, c.inflight)
}

func TestFileCache_RootReset(t *testing.T) {
	f := newFake()
	c := newCache(t, f)
	ctx := context.Background()

	require.NoError(t, c.Open(ctx, testPath))
	require.NoError(t, c.Open(ctx, "/work/src/B.java"))
	assert.Len(t, c.Paths(), 2)

	require.NoError(t, c.SetRoot(ctx, "/other"))
	assert.Empty(t, c.Paths())
	assert.Equal(t, "/other", c.Root())
	assert.Equal(t, []string{"/work", "/other"}, f.roots)
}

func TestFileCache_InvalidateAllDiscardsInFlight(t *testing.T) {
	gate := make(chan struct{})
	f := newFake(step{graph: classGraph("A"), gate: gate})
	c := newCache(t, f)

	done := c.OpenAsync(context.Background(), testPath)
	<-f.started
	c.InvalidateAll()
	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, StateUntracked, c.State(testPath))
	assert.Equal(t, "/work", c.Root())
}

func TestFileCache_NormalizesPaths(t *testing.T) {
	f := newFake()
	c := newCache(t, f)

	require.NoError(t, c.Open(context.Background(), "/work/src/../src/A.java"))
	assert.Equal(t, StateAnalyzed, c.State(testPath))
}

func TestFileState_String(t *testing.T) {
	assert.Equal(t, "untracked", StateUntracked.String())
	assert.Equal(t, "analyzed", StateAnalyzed.String())
}
