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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/depviz/services/depviz/ast"
)

const (
	srcBase = `package com.acme.model;

public abstract class Base {
    protected Registry registry;

    public Registry registry() { return registry; }
    public void init() {}
}
`

	srcRegistry = `package com.acme.model;

public class Registry {
    public void register(String name) {}
}
`

	srcShape = `package com.acme.shapes;

import com.acme.model.Base;
import com.acme.model.*;
import static com.acme.util.Strings.pad;

public class Shape extends Base implements Comparable<Shape> {
    private Registry reg;

    static class Corner {}

    public void draw(Canvas canvas) {
        Corner c = new Corner();
        init();
        super.init();
        reg.register("x");
        registry().register("y");
        canvas.paint();
        pad("z");
        "s".trim();
        java.util.Objects.hash(1);
        unknownThing.call();
    }
}
`

	srcCanvas = `package com.acme.shapes;

public interface Canvas {
    void paint();
}
`
)

func parse(t *testing.T, path, src string) *ast.File {
	t.Helper()
	f, err := ast.NewParser().Parse(context.Background(), []byte(src), path)
	require.NoError(t, err)
	return f
}

func buildUnit(t *testing.T) (*Unit, *ast.File) {
	t.Helper()
	idx := NewIndex()
	idx.AddFile(parse(t, "/p/com/acme/model/Base.java", srcBase))
	idx.AddFile(parse(t, "/p/com/acme/model/Registry.java", srcRegistry))
	idx.AddFile(parse(t, "/p/com/acme/shapes/Canvas.java", srcCanvas))
	shape := parse(t, "/p/com/acme/shapes/Shape.java", srcShape)
	return BindTo(idx, shape), shape
}

func callTarget(t *testing.T, u *Unit, f *ast.File, method string, nth int) (string, error) {
	t.Helper()
	seen := 0
	for _, c := range f.Calls {
		if c.Method != method {
			continue
		}
		if seen == nth {
			return u.ResolveCall(c)
		}
		seen++
	}
	t.Fatalf("call %s #%d not found", method, nth)
	return "", nil
}

func TestResolve_Types(t *testing.T) {
	u, f := buildUnit(t)
	shape := f.Types[0]

	tests := []struct {
		name  string
		ref   ast.TypeRef
		scope *ast.TypeDecl
		want  string
	}{
		{"single import", ast.TypeRef{Name: "Base"}, nil, "com.acme.model.Base"},
		{"wildcard import", ast.TypeRef{Name: "Registry"}, shape, "com.acme.model.Registry"},
		{"same package", ast.TypeRef{Name: "Canvas"}, shape, "com.acme.shapes.Canvas"},
		{"member type", ast.TypeRef{Name: "Corner"}, shape, "com.acme.shapes.Shape.Corner"},
		{"own file", ast.TypeRef{Name: "Shape"}, nil, "com.acme.shapes.Shape"},
		{"java.lang", ast.TypeRef{Name: "String"}, shape, "java.lang.String"},
		{"qualified as written", ast.TypeRef{Name: "java.io.File"}, shape, "java.io.File"},
		{"nested through import", ast.TypeRef{Name: "Base.Inner"}, shape, "com.acme.model.Base.Inner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := u.ResolveType(tt.ref, tt.scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_TypeFailures(t *testing.T) {
	u, f := buildUnit(t)
	shape := f.Types[0]

	for _, ref := range []ast.TypeRef{
		{Name: "Missing"},
		{Name: "int", Primitive: true},
		{Name: "T", TypeVar: true},
		{Name: "", Inferred: true},
		{Name: "Nope.Inner"},
	} {
		_, err := u.ResolveType(ref, shape)
		assert.True(t, errors.Is(err, ErrUnresolved), "ref %q", ref.Name)
	}
}

func TestResolve_Calls(t *testing.T) {
	u, f := buildUnit(t)

	tests := []struct {
		method string
		nth    int
		want   string
	}{
		{"init", 0, "com.acme.model.Base"},
		{"init", 1, "com.acme.model.Base"},
		{"register", 0, "com.acme.model.Registry"},
		{"register", 1, "com.acme.model.Registry"},
		{"paint", 0, "com.acme.shapes.Canvas"},
		{"pad", 0, "com.acme.util.Strings"},
		{"trim", 0, "java.lang.String"},
		{"hash", 0, "java.util.Objects"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got, err := callTarget(t, u, f, tt.method, tt.nth)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := callTarget(t, u, f, "call", 0)
	assert.True(t, errors.Is(err, ErrUnresolved))
}

func TestIndex_AddRemove(t *testing.T) {
	idx := NewIndex()
	base := parse(t, "/p/Base.java", srcBase)

	assert.Equal(t, 1, idx.AddFile(base))
	sym, ok := idx.Lookup("com.acme.model.Base")
	require.True(t, ok)
	assert.Equal(t, "/p/Base.java", sym.Path)
	assert.Contains(t, sym.Fields, "registry")
	require.Len(t, sym.Methods["registry"], 1)
	assert.Equal(t, "Registry", sym.Methods["registry"][0].Return.Name)
	assert.Equal(t, []string{"com.acme.model.Base"}, idx.Package("com.acme.model"))

	// Re-adding replaces rather than duplicates.
	assert.Equal(t, 1, idx.AddFile(base))
	assert.Equal(t, 1, idx.Len())

	// A later declaration of the same FQN survives removal of the first file.
	moved := parse(t, "/p/Moved.java", srcBase)
	idx.AddFile(moved)
	assert.Equal(t, 0, idx.RemoveFile("/p/Base.java"))
	_, ok = idx.Lookup("com.acme.model.Base")
	assert.True(t, ok)

	assert.Equal(t, 1, idx.RemoveFile("/p/Moved.java"))
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Files())
}

func TestStaticResolver(t *testing.T) {
	r := StaticResolver{
		Types: map[string]string{"B": "p.B"},
		Calls: map[string]string{"run": "p.C"},
	}

	got, err := r.Resolve(TypeReference(ast.TypeRef{Name: "B"}, nil))
	require.NoError(t, err)
	assert.Equal(t, "p.B", got)

	got, err = r.Resolve(CallReference(&ast.CallSite{Method: "run"}))
	require.NoError(t, err)
	assert.Equal(t, "p.C", got)

	_, err = r.Resolve(TypeReference(ast.TypeRef{Name: "X"}, nil))
	assert.True(t, errors.Is(err, ErrUnresolved))

	_, err = r.Resolve(Reference{})
	assert.True(t, errors.Is(err, ErrUnresolved))

	var nilUnit *Unit
	_, err = nilUnit.Resolve(TypeReference(ast.TypeRef{Name: "B"}, nil))
	assert.True(t, errors.Is(err, ErrUnresolved))
}

func writeJava(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWorkspace_SetRootAndLoad(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src", "main", "java")
	writeJava(t, filepath.Join(src, "com/acme/model/Base.java"), srcBase)
	writeJava(t, filepath.Join(src, "com/acme/model/Registry.java"), srcRegistry)
	writeJava(t, filepath.Join(src, "com/acme/shapes/Canvas.java"), srcCanvas)
	shapePath := filepath.Join(src, "com/acme/shapes/Shape.java")
	writeJava(t, shapePath, srcShape)

	ws := NewWorkspace(WithWorkers(2))
	require.NoError(t, ws.SetRoot(context.Background(), root))
	assert.Equal(t, root, ws.Root())
	assert.Equal(t, 5, ws.Index().Len())

	unit, err := ws.Load(context.Background(), shapePath)
	require.NoError(t, err)
	got, err := unit.ResolveType(ast.TypeRef{Name: "Canvas"}, unit.Types[0])
	require.NoError(t, err)
	assert.Equal(t, "com.acme.shapes.Canvas", got)

	t.Run("strict syntax", func(t *testing.T) {
		broken := filepath.Join(src, "com/acme/Broken.java")
		writeJava(t, broken, "package com.acme;\nclass Broken { void f( }\n")

		_, err := ws.Load(context.Background(), broken)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ast.ErrParseFailed))

		lenient := NewWorkspace(WithStrictSyntax(false))
		_, err = lenient.Load(context.Background(), broken)
		assert.NoError(t, err)
	})

	t.Run("unsupported file", func(t *testing.T) {
		txt := filepath.Join(root, "notes.txt")
		writeJava(t, txt, "hello")
		_, err := ws.Load(context.Background(), txt)
		assert.True(t, errors.Is(err, ast.ErrUnsupportedFile))
	})

	t.Run("refresh and remove", func(t *testing.T) {
		extra := filepath.Join(src, "com/acme/shapes/Circle.java")
		writeJava(t, extra, "package com.acme.shapes;\npublic class Circle {}\n")
		require.NoError(t, ws.Refresh(context.Background(), extra))
		_, ok := ws.Index().Lookup("com.acme.shapes.Circle")
		assert.True(t, ok)

		require.NoError(t, os.Remove(extra))
		require.NoError(t, ws.Refresh(context.Background(), extra))
		_, ok = ws.Index().Lookup("com.acme.shapes.Circle")
		assert.False(t, ok)
	})
}
