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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Empty(t *testing.T) {
	g := New()
	assert.True(t, g.IsEmpty())
	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
	assert.Empty(t, g.Nodes())
	assert.Empty(t, g.Edges())
}

func TestAddReference(t *testing.T) {
	t.Run("creates both endpoints lazily", func(t *testing.T) {
		g := New()
		g.AddReference("a.Foo", "a.Bar", EdgeTypeTypeUse)

		foo, ok := g.Node("a.Foo")
		require.True(t, ok)
		bar, ok := g.Node("a.Bar")
		require.True(t, ok)

		assert.Equal(t, KindUnknown, foo.Kind)
		assert.Equal(t, LOCNotComputed, foo.LinesOfCode)
		assert.False(t, foo.HasFilePath())
		assert.Equal(t, []string{"a.Bar"}, foo.References)
		assert.Empty(t, bar.References)
	})

	t.Run("deduplicates edges by triple", func(t *testing.T) {
		g := New()
		g.AddReference("a.Foo", "a.Bar", EdgeTypeTypeUse)
		g.AddReference("a.Foo", "a.Bar", EdgeTypeTypeUse)

		assert.Equal(t, 1, g.EdgeCount())
		n, _ := g.Node("a.Foo")
		assert.Len(t, n.References, 2, "references keep duplicates")
	})

	t.Run("same endpoints with different types are distinct edges", func(t *testing.T) {
		g := New()
		g.AddReference("a.Foo", "a.Bar", EdgeTypeTypeUse)
		g.AddReference("a.Foo", "a.Bar", EdgeTypeMethodCall)
		g.AddReference("a.Foo", "a.Bar", EdgeTypeObjectCreate)

		assert.Equal(t, 3, g.EdgeCount())
		assert.True(t, g.HasEdge("a.Foo", "a.Bar", EdgeTypeMethodCall))
		assert.False(t, g.HasEdge("a.Bar", "a.Foo", EdgeTypeMethodCall))
		assert.Len(t, g.EdgesOfType(EdgeTypeTypeUse), 1)
	})
}

func TestSetters_CreateNodes(t *testing.T) {
	g := New()
	g.SetKind("a.K", KindEnum)
	g.SetLinesOfCode("a.L", 12)
	g.SetFilePath("a.F", "/src/a/F.java")

	assert.Equal(t, 3, g.NodeCount())
	k, _ := g.Node("a.K")
	assert.Equal(t, KindEnum, k.Kind)
	l, _ := g.Node("a.L")
	assert.Equal(t, 12, l.LinesOfCode)
	f, _ := g.Node("a.F")
	assert.Equal(t, "/src/a/F.java", f.FilePath)
}

func TestNodes_SortedByName(t *testing.T) {
	g := New()
	g.SetKind("c.C", KindClass)
	g.SetKind("a.A", KindClass)
	g.SetKind("b.B", KindClass)

	nodes := g.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, "a.A", nodes[0].Name)
	assert.Equal(t, "b.B", nodes[1].Name)
	assert.Equal(t, "c.C", nodes[2].Name)
}

func TestClone_IsDeep(t *testing.T) {
	g := New()
	g.AddReference("a.Foo", "a.Bar", EdgeTypeExtends)
	g.SetKind("a.Foo", KindClass)

	c := g.Clone()
	c.SetKind("a.Foo", KindInterface)
	c.AddReference("a.Foo", "a.Baz", EdgeTypeImplements)

	orig, _ := g.Node("a.Foo")
	assert.Equal(t, KindClass, orig.Kind)
	assert.Equal(t, []string{"a.Bar"}, orig.References)
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, 2, c.EdgeCount())
}

func TestKindAndEdgeTypeNames(t *testing.T) {
	for _, k := range []Kind{KindUnknown, KindClass, KindInterface, KindAbstractClass, KindEnum, KindAnnotation} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	for et := EdgeType(0); et < NumEdgeTypes; et++ {
		parsed, err := ParseEdgeType(et.String())
		require.NoError(t, err)
		assert.Equal(t, et, parsed)
	}

	_, err := ParseKind("Struct")
	assert.True(t, errors.Is(err, ErrInvalidKind))
	_, err = ParseEdgeType("Calls")
	assert.True(t, errors.Is(err, ErrInvalidEdgeType))
	assert.Equal(t, "Unknown", EdgeType(99).String())
}
