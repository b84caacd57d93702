// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() *CodeGraph {
	g := New()
	g.SetKind("p.Sub", KindClass)
	g.SetLinesOfCode("p.Sub", 10)
	g.SetFilePath("p.Sub", "/src/p/Sub.java")
	g.AddReference("p.Sub", "p.Base", EdgeTypeExtends)
	g.AddReference("p.Sub", "p.Iface", EdgeTypeImplements)
	return g
}

func TestMerge_InsertsMissingNodes(t *testing.T) {
	target := New()
	res := Merge(target, sampleGraph())

	assert.Equal(t, 3, res.NodesAdded)
	assert.Equal(t, 2, res.EdgesAdded)
	sub, ok := target.Node("p.Sub")
	require.True(t, ok)
	assert.Equal(t, KindClass, sub.Kind)
	assert.Equal(t, 10, sub.LinesOfCode)
	assert.Equal(t, "/src/p/Sub.java", sub.FilePath)
}

func TestMerge_DoesNotAliasSourceNodes(t *testing.T) {
	src := sampleGraph()
	target := New()
	Merge(target, src)

	src.SetKind("p.Sub", KindInterface)
	sub, _ := target.Node("p.Sub")
	assert.Equal(t, KindClass, sub.Kind)
}

func TestMerge_FirstKnownValueWins(t *testing.T) {
	target := New()
	target.SetKind("p.A", KindInterface)
	target.SetLinesOfCode("p.A", 5)
	target.SetFilePath("p.A", "/first/A.java")

	source := New()
	source.SetKind("p.A", KindClass)
	source.SetLinesOfCode("p.A", 50)
	source.SetFilePath("p.A", "/second/A.java")

	Merge(target, source)

	a, _ := target.Node("p.A")
	assert.Equal(t, KindInterface, a.Kind)
	assert.Equal(t, 5, a.LinesOfCode)
	assert.Equal(t, "/first/A.java", a.FilePath)
}

func TestMerge_FillsUnknownAttributes(t *testing.T) {
	target := New()
	target.AddReference("p.A", "p.B", EdgeTypeTypeUse)

	source := New()
	source.SetKind("p.B", KindEnum)
	source.SetLinesOfCode("p.B", 0)
	source.SetFilePath("p.B", "/src/p/B.java")

	Merge(target, source)

	b, _ := target.Node("p.B")
	assert.Equal(t, KindEnum, b.Kind)
	assert.Equal(t, 0, b.LinesOfCode, "zero is a computed value, not the sentinel")
	assert.Equal(t, "/src/p/B.java", b.FilePath)
}

func TestMerge_AttributeMonotonicity(t *testing.T) {
	target := sampleGraph()

	// A source that knows nothing about p.Sub must not regress it.
	blank := New()
	blank.AddReference("p.Sub", "p.Other", EdgeTypeTypeUse)
	Merge(target, blank)
	Merge(target, New())
	Merge(target, blank)

	sub, _ := target.Node("p.Sub")
	assert.Equal(t, KindClass, sub.Kind)
	assert.Equal(t, 10, sub.LinesOfCode)
	assert.Equal(t, "/src/p/Sub.java", sub.FilePath)
}

func TestMerge_EdgeSetIdempotence(t *testing.T) {
	t.Run("merging a copy adds no edges", func(t *testing.T) {
		g := sampleGraph()
		before := g.EdgeCount()
		res := Merge(g, g.Clone())
		assert.Equal(t, 0, res.EdgesAdded)
		assert.Equal(t, before, g.EdgeCount())
	})

	t.Run("merging a graph into itself adds no edges", func(t *testing.T) {
		g := sampleGraph()
		nodes, edges := g.NodeCount(), g.EdgeCount()
		res := Merge(g, g)
		assert.Equal(t, MergeResult{}, res)
		assert.Equal(t, nodes, g.NodeCount())
		assert.Equal(t, edges, g.EdgeCount())
	})
}

func TestMerge_ReferencesAccumulate(t *testing.T) {
	target := New()
	Merge(target, sampleGraph())
	Merge(target, sampleGraph())

	sub, _ := target.Node("p.Sub")
	assert.Equal(t, []string{"p.Base", "p.Iface", "p.Base", "p.Iface"}, sub.References)
	assert.Equal(t, 2, target.EdgeCount())
}

func TestMerge_CreatesEdgeEndpoints(t *testing.T) {
	// A source whose edges mention names that are not in its node map
	// cannot be built with the public API, so build one by hand.
	src := New()
	src.addEdge(Edge{Source: "x.A", Target: "x.B", Type: EdgeTypeMethodCall})

	target := New()
	res := Merge(target, src)
	assert.Equal(t, 2, res.NodesAdded)
	assert.True(t, target.HasEdge("x.A", "x.B", EdgeTypeMethodCall))
}

func TestMerge_NilSource(t *testing.T) {
	g := sampleGraph()
	res := Merge(g, nil)
	assert.Equal(t, MergeResult{}, res)
}

func TestFold(t *testing.T) {
	a := New()
	a.AddReference("p.A", "p.B", EdgeTypeTypeUse)
	b := New()
	b.AddReference("p.B", "p.C", EdgeTypeMethodCall)

	acc := Fold(nil, a, b, nil)
	assert.Equal(t, 3, acc.NodeCount())
	assert.Equal(t, 2, acc.EdgeCount())
}
