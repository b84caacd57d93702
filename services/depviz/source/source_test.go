// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src/main/java/com/acme/A.java"), "class A {}")
	writeFile(t, filepath.Join(root, "src/main/java/com/acme/build/B.java"), "class B {}")
	writeFile(t, filepath.Join(root, "src/main/java/com/acme/README.md"), "docs")
	writeFile(t, filepath.Join(root, "target/classes/Gen.java"), "class Gen {}")
	writeFile(t, filepath.Join(root, ".git/objects/X.java"), "class X {}")
	writeFile(t, filepath.Join(root, "generated/G.java"), "class G {}")
	writeFile(t, filepath.Join(root, "legacy/Old.java"), "class Old {}")
	writeFile(t, filepath.Join(root, ".gitignore"), "generated/\n")

	t.Run("default", func(t *testing.T) {
		files, err := Walk(context.Background(), root)
		require.NoError(t, err)

		var rel []string
		for _, f := range files {
			r, err := filepath.Rel(root, f)
			require.NoError(t, err)
			rel = append(rel, filepath.ToSlash(r))
		}
		assert.Equal(t, []string{
			"legacy/Old.java",
			"src/main/java/com/acme/A.java",
			"src/main/java/com/acme/build/B.java",
		}, rel)
	})

	t.Run("extra excludes", func(t *testing.T) {
		files, err := Walk(context.Background(), root, WithExcludes("legacy"))
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("gitignore disabled", func(t *testing.T) {
		files, err := Walk(context.Background(), root, WithGitignore(false))
		require.NoError(t, err)
		assert.Len(t, files, 4)
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := Walk(context.Background(), filepath.Join(root, "nope"))
		assert.True(t, errors.Is(err, ErrRootNotDirectory))
	})

	t.Run("file root", func(t *testing.T) {
		_, err := Walk(context.Background(), filepath.Join(root, "legacy/Old.java"))
		assert.True(t, errors.Is(err, ErrRootNotDirectory))
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Walk(ctx, root)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFindSourceRoot(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src", "main", "java")
	writeFile(t, filepath.Join(src, "com/acme/A.java"), "package com.acme; class A {}")

	got, err := FindSourceRoot(filepath.Join(src, "com", "acme"))
	require.NoError(t, err)
	assert.Equal(t, src, got)

	got, err = FindSourceRoot(root)
	require.NoError(t, err)
	assert.Equal(t, src, got)

	bare := t.TempDir()
	_, err = FindSourceRoot(bare)
	assert.True(t, errors.Is(err, ErrNoSourceRoot))
}

func TestRootForFile(t *testing.T) {
	t.Run("maven layout", func(t *testing.T) {
		root := t.TempDir()
		src := filepath.Join(root, "src", "main", "java")
		file := filepath.Join(src, "com", "acme", "A.java")
		writeFile(t, file, "package com.acme; class A {}")
		assert.Equal(t, src, RootForFile(file, "com.acme"))
	})

	t.Run("package path", func(t *testing.T) {
		root := t.TempDir()
		file := filepath.Join(root, "lib", "org", "x", "B.java")
		writeFile(t, file, "package org.x; class B {}")
		assert.Equal(t, filepath.Join(root, "lib"), RootForFile(file, "org.x"))
	})

	t.Run("file directory", func(t *testing.T) {
		root := t.TempDir()
		file := filepath.Join(root, "misc", "C.java")
		writeFile(t, file, "package other.pkg; class C {}")
		assert.Equal(t, filepath.Join(root, "misc"), RootForFile(file, "other.pkg"))
	})
}

func TestDiskReader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A.java")
	writeFile(t, path, "class A {}")

	data, err := DiskReader{}.Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "class A {}", string(data))

	_, err = DiskReader{}.Read(context.Background(), filepath.Join(dir, "missing.java"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMatcher(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("generated/\n"), 0o644))

	m, err := NewMatcher(root, WithExcludes("*.tmp"))
	require.NoError(t, err)
	assert.Equal(t, root, m.Root())

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{filepath.Join(root, ".git"), true, true},
		{filepath.Join(root, "target"), true, true},
		{filepath.Join(root, "src/main/java/com/build"), true, false},
		{filepath.Join(root, "generated"), true, true},
		{filepath.Join(root, "src/A.java"), false, false},
		{filepath.Join(root, "src/A.tmp"), false, true},
		{root, true, false},
		{filepath.Join(filepath.Dir(root), "elsewhere"), true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Excluded(tt.path, tt.isDir), tt.path)
	}

	_, err = NewMatcher(filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, ErrRootNotDirectory)
}
