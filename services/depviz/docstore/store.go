// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package docstore holds the text of documents open in an editor.
//
// Open buffers are kept in an in-memory BadgerDB keyed by normalized path.
// A Store is a source.Reader: reads of open documents return the buffer,
// everything else falls through to the wrapped reader (disk by default).
package docstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/depviz/services/depviz/source"
)

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("document store closed")

const keyPrefix = "doc:"

// Document is an open editor buffer.
type Document struct {
	Path    string
	Version int32
	Text    []byte
}

// Option configures a Store.
type Option func(*Store)

// WithFallback sets the reader used for documents that are not open.
func WithFallback(r source.Reader) Option {
	return func(s *Store) {
		if r != nil {
			s.fallback = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is an overlay of open documents over a fallback reader.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db       *badger.DB
	fallback source.Reader
	logger   *slog.Logger
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open creates an empty in-memory Store.
//
// Outputs:
//
//	*Store - The store. Caller must call Close when done.
//	error  - Non-nil if the database cannot be opened.
func Open(opts ...Option) (*Store, error) {
	s := &Store{
		fallback: source.DiskReader{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	bopts := badger.DefaultOptions("").
		WithInMemory(true).
		WithSyncWrites(false).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: s.logger.With(slog.String("component", "docstore"))})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	s.db = db
	return s, nil
}

// Close releases the database. Safe to call more than once.
func (s *Store) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

func key(path string) []byte {
	return []byte(keyPrefix + source.Normalize(path))
}

func encode(version int32, text []byte) []byte {
	buf := make([]byte, 4+len(text))
	binary.BigEndian.PutUint32(buf, uint32(version))
	copy(buf[4:], text)
	return buf
}

func decode(path string, val []byte) (*Document, error) {
	if len(val) < 4 {
		return nil, fmt.Errorf("corrupt document record for %s", path)
	}
	text := make([]byte, len(val)-4)
	copy(text, val[4:])
	return &Document{
		Path:    path,
		Version: int32(binary.BigEndian.Uint32(val)),
		Text:    text,
	}, nil
}

// Put stores the full text of an open document, replacing any earlier text.
func (s *Store) Put(path string, version int32, text []byte) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(path), encode(version, text))
	})
	if err != nil {
		return fmt.Errorf("storing %s: %w", path, err)
	}
	return nil
}

// Get returns the open document at path, or false if it is not open.
func (s *Store) Get(path string) (*Document, bool, error) {
	if s.db.IsClosed() {
		return nil, false, ErrClosed
	}
	path = source.Normalize(path)

	var doc *Document
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			d, err := decode(path, val)
			doc = d
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading %s: %w", path, err)
	}
	return doc, true, nil
}

// Delete forgets an open document. Deleting an unknown path is a no-op.
func (s *Store) Delete(path string) error {
	if s.db.IsClosed() {
		return ErrClosed
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(path))
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

// Paths returns the open document paths in sorted order.
func (s *Store) Paths() []string {
	if s.db.IsClosed() {
		return nil
	}
	var paths []string
	_ = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(keyPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			paths = append(paths, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	sort.Strings(paths)
	return paths
}

// Read implements source.Reader. Open documents return their buffer text.
func (s *Store) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, ok, err := s.Get(path)
	if err != nil {
		s.logger.Warn("document overlay unavailable, reading from fallback",
			slog.String("file", path),
			slog.String("error", err.Error()))
	}
	if ok {
		return doc.Text, nil
	}
	return s.fallback.Read(ctx, path)
}
