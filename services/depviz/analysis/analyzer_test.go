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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/depviz/services/depviz/extract"
	"github.com/AleutianAI/depviz/services/depviz/graph"
	"github.com/AleutianAI/depviz/services/depviz/resolve"
)

var project = map[string]string{
	"src/main/java/com/acme/Animal.java": `package com.acme;

public abstract class Animal implements Named {
    public abstract String name();
}
`,
	"src/main/java/com/acme/Named.java": `package com.acme;

public interface Named {
    String name();
}
`,
	"src/main/java/com/acme/Dog.java": `package com.acme;

import com.acme.food.Bone;

public class Dog extends Animal {
    private Bone bone;

    public String name() { return "dog"; }

    public void play() {
        Bone b = new Bone();
        b.chew();
    }
}
`,
	"src/main/java/com/acme/food/Bone.java": `package com.acme.food;

public class Bone {
    public void chew() {}
}
`,
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestAnalyzeProject(t *testing.T) {
	root := writeProject(t, project)
	a := NewAnalyzer(nil, WithWorkers(2))

	res, err := a.AnalyzeProject(context.Background(), root)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 4, res.Files)
	assert.Equal(t, 4, res.Analyzed)
	assert.Empty(t, res.Failed)

	g := res.Graph
	assert.True(t, g.HasEdge("com.acme.Dog", "com.acme.Animal", graph.EdgeTypeExtends))
	assert.True(t, g.HasEdge("com.acme.Animal", "com.acme.Named", graph.EdgeTypeImplements))
	assert.True(t, g.HasEdge("com.acme.Dog", "com.acme.food.Bone", graph.EdgeTypeTypeUse))
	assert.True(t, g.HasEdge("com.acme.Dog", "com.acme.food.Bone", graph.EdgeTypeObjectCreate))
	assert.True(t, g.HasEdge("com.acme.Dog", "com.acme.food.Bone", graph.EdgeTypeMethodCall))
	assert.True(t, g.HasEdge("com.acme.Dog", "java.lang.String", graph.EdgeTypeTypeUse))

	kinds := map[string]graph.Kind{
		"com.acme.Animal":    graph.KindAbstractClass,
		"com.acme.Named":     graph.KindInterface,
		"com.acme.Dog":       graph.KindClass,
		"com.acme.food.Bone": graph.KindClass,
		"java.lang.String":   graph.KindUnknown,
	}
	for name, want := range kinds {
		n, ok := g.Node(name)
		require.True(t, ok, name)
		assert.Equal(t, want, n.Kind, name)
	}

	dog, _ := g.Node("com.acme.Dog")
	assert.Equal(t, filepath.Join(root, "src/main/java/com/acme/Dog.java"), dog.FilePath)
}

func TestAnalyzeProject_Deterministic(t *testing.T) {
	root := writeProject(t, project)
	a := NewAnalyzer(nil, WithWorkers(4))

	first, err := a.AnalyzeProject(context.Background(), root)
	require.NoError(t, err)
	second, err := a.AnalyzeProject(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, first.Graph.Edges(), second.Graph.Edges())

	a1, err := graph.MarshalNodeLink(first.Graph, false)
	require.NoError(t, err)
	a2, err := graph.MarshalNodeLink(second.Graph, false)
	require.NoError(t, err)
	assert.JSONEq(t, string(a1), string(a2))
}

func TestAnalyzeProject_SkipsBrokenFiles(t *testing.T) {
	files := map[string]string{
		"Good.java":   "public class Good extends Base {}\n",
		"Base.java":   "public class Base {}\n",
		"Broken.java": "public class Broken { void f( }\n",
		"notes.txt":   "ignored",
	}
	root := writeProject(t, files)

	res, err := NewAnalyzer(nil).AnalyzeProject(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Files)
	assert.Equal(t, 2, res.Analyzed)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, filepath.Join(root, "Broken.java"), res.Failed[0].Path)
	assert.True(t, res.Graph.HasEdge("Good", "Base", graph.EdgeTypeExtends))
	_, ok := res.Graph.Node("Broken")
	assert.False(t, ok)

	lenient := NewAnalyzer(resolve.NewWorkspace(resolve.WithStrictSyntax(false)))
	res, err = lenient.AnalyzeProject(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Analyzed)
}

func TestAnalyzeProject_BadRoot(t *testing.T) {
	_, err := NewAnalyzer(nil).AnalyzeProject(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, ErrRootNotDirectory))
}

func TestAnalyzeProject_Canceled(t *testing.T) {
	root := writeProject(t, project)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAnalyzer(nil).AnalyzeProject(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeFile(t *testing.T) {
	root := writeProject(t, project)
	a := NewAnalyzer(nil)
	require.NoError(t, a.SetRoot(context.Background(), root))

	g, err := a.AnalyzeFile(context.Background(), filepath.Join(root, "src/main/java/com/acme/Dog.java"))
	require.NoError(t, err)
	assert.True(t, g.HasEdge("com.acme.Dog", "com.acme.Animal", graph.EdgeTypeExtends))
	assert.True(t, g.HasEdge("com.acme.Dog", "com.acme.food.Bone", graph.EdgeTypeMethodCall))

	animal, ok := g.Node("com.acme.Animal")
	require.True(t, ok)
	assert.Equal(t, graph.KindUnknown, animal.Kind, "other files are not classified by a file analysis")
}

func TestAnalyzeFile_Failure(t *testing.T) {
	a := NewAnalyzer(nil)

	g, err := a.AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "Missing.java"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAnalysisFailed))
	require.NotNil(t, g)
	assert.True(t, g.IsEmpty())
}

func TestAnalyzeFile_TwiceMergedIsIdempotent(t *testing.T) {
	root := writeProject(t, map[string]string{
		"Single.java": `public class Single extends Thread {
    private String name;
}
`,
	})
	a := NewAnalyzer(nil)
	path := filepath.Join(root, "Single.java")

	once, err := a.AnalyzeFile(context.Background(), path)
	require.NoError(t, err)
	again, err := a.AnalyzeFile(context.Background(), path)
	require.NoError(t, err)

	merged := Fold(nil, once, again)
	assert.Equal(t, once.NodeCount(), merged.NodeCount())
	assert.Equal(t, once.EdgeCount(), merged.EdgeCount())

	single, _ := merged.Node("Single")
	assert.Len(t, single.References, 4, "references accumulate across merges")
}

func TestAnalyzer_WithExtractors(t *testing.T) {
	root := writeProject(t, project)
	only, err := extract.ByName("inheritance")
	require.NoError(t, err)

	res, err := NewAnalyzer(nil, WithExtractors(only...)).AnalyzeProject(context.Background(), root)
	require.NoError(t, err)

	for _, e := range res.Graph.Edges() {
		assert.Equal(t, graph.EdgeTypeExtends, e.Type)
	}
	assert.Equal(t, 1, res.Graph.EdgeCount())
}

// cancelingExtractor cancels the analysis context when it runs.
type cancelingExtractor struct {
	cancel context.CancelFunc
}

func (cancelingExtractor) Name() string { return "canceling" }

func (e cancelingExtractor) Extract(_ *resolve.Unit) *graph.CodeGraph {
	e.cancel()
	return graph.New()
}

func TestAnalyzeFile_CanceledMidPipeline(t *testing.T) {
	root := writeProject(t, project)
	path := filepath.Join(root, "src/main/java/com/acme/Dog.java")

	tests := []struct {
		name  string
		chain func(e extract.Extractor) []extract.Extractor
	}{
		{"first", func(e extract.Extractor) []extract.Extractor { return append([]extract.Extractor{e}, extract.Default()...) }},
		{"last", func(e extract.Extractor) []extract.Extractor { return append(extract.Default(), e) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			a := NewAnalyzer(nil, WithExtractors(tt.chain(cancelingExtractor{cancel: cancel})...))
			require.NoError(t, a.SetRoot(context.Background(), root))

			g, err := a.AnalyzeFile(ctx, path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAnalysisFailed)
			assert.ErrorIs(t, err, context.Canceled)
			require.NotNil(t, g)
			assert.True(t, g.IsEmpty())
		})
	}
}

func TestAnalyzeProject_CanceledDuringExtraction(t *testing.T) {
	root := writeProject(t, project)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chain := append(extract.Default(), cancelingExtractor{cancel: cancel})

	res, err := NewAnalyzer(nil, WithExtractors(chain...)).AnalyzeProject(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}
