// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package docstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/depviz/services/depviz/source"
)

func openStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutGet(t *testing.T) {
	s := openStore(t)
	path := filepath.Join(t.TempDir(), "A.java")

	require.NoError(t, s.Put(path, 1, []byte("class A {}")))
	require.NoError(t, s.Put(path, 2, []byte("class A { int x; }")))

	doc, ok, err := s.Get(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(2), doc.Version)
	assert.Equal(t, "class A { int x; }", string(doc.Text))
	assert.Equal(t, source.Normalize(path), doc.Path)
}

func TestStore_GetMissing(t *testing.T) {
	s := openStore(t)
	doc, ok, err := s.Get("/nowhere/A.java")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, doc)
}

func TestStore_Delete(t *testing.T) {
	s := openStore(t)
	path := filepath.Join(t.TempDir(), "A.java")
	require.NoError(t, s.Put(path, 1, []byte("class A {}")))
	require.NoError(t, s.Delete(path))
	require.NoError(t, s.Delete(path))

	_, ok, err := s.Get(path)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Paths(t *testing.T) {
	s := openStore(t)
	dir := t.TempDir()
	b := filepath.Join(dir, "B.java")
	a := filepath.Join(dir, "A.java")
	require.NoError(t, s.Put(b, 1, []byte("class B {}")))
	require.NoError(t, s.Put(a, 1, []byte("class A {}")))

	assert.Equal(t, []string{source.Normalize(a), source.Normalize(b)}, s.Paths())
}

func TestStore_ReadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A.java")
	require.NoError(t, os.WriteFile(path, []byte("class A {} // disk"), 0o644))

	s := openStore(t)
	ctx := context.Background()

	t.Run("falls back to disk", func(t *testing.T) {
		data, err := s.Read(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "class A {} // disk", string(data))
	})

	t.Run("open buffer wins", func(t *testing.T) {
		require.NoError(t, s.Put(path, 1, []byte("class A {} // buffer")))
		data, err := s.Read(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "class A {} // buffer", string(data))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := s.Read(ctx, filepath.Join(dir, "Missing.java"))
		assert.ErrorIs(t, err, source.ErrNotFound)
	})
}

func TestStore_Closed(t *testing.T) {
	s, err := Open()
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Put("/a/A.java", 1, nil), ErrClosed)
	_, _, err = s.Get("/a/A.java")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, s.Paths())
}
