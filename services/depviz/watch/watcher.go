// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch reports Java source changes under a workspace root.
//
// Events from fsnotify are filtered with the same exclude rules as the
// project walk, coalesced per path over a debounce window, and delivered in
// batches to a single handler goroutine.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/depviz/services/depviz/source"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("watcher already started")

// Op is the kind of a file change.
type Op int

const (
	// OpWrite indicates a file was created or modified.
	OpWrite Op = iota

	// OpRemove indicates a file was deleted or renamed away.
	OpRemove
)

// String returns the lowercase name of the operation.
func (op Op) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Change is a debounced file change.
type Change struct {
	Path string
	Op   Op
	Time time.Time
}

// Handler is called with each batch of changes, from a single goroutine.
type Handler func(ctx context.Context, changes []Change)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a batch is delivered.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExcludes adds gitignore-style exclude patterns.
func WithExcludes(patterns ...string) Option {
	return func(w *Watcher) {
		w.excludes = append(w.excludes, patterns...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher watches a directory tree for Java file changes with debouncing.
//
// Thread Safety: Safe for concurrent use. The handler is called from a
// single goroutine.
type Watcher struct {
	root     string
	handler  Handler
	debounce time.Duration
	excludes []string
	logger   *slog.Logger

	watcher *fsnotify.Watcher
	matcher *source.Matcher
	changes chan Change
	done    chan struct{}
	stopped chan struct{}

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
}

// New creates a watcher for root. Call Start to begin watching.
//
// Outputs:
//
//	*Watcher - The watcher.
//	error    - source.ErrRootNotDirectory, or an fsnotify setup failure.
func New(root string, handler Handler, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		root:     source.Normalize(root),
		handler:  handler,
		debounce: 100 * time.Millisecond,
		logger:   slog.Default(),
		changes:  make(chan Change, 1024),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	matcher, err := source.NewMatcher(w.root, source.WithExcludes(w.excludes...))
	if err != nil {
		return nil, err
	}
	w.matcher = matcher

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w.watcher = fw
	return w, nil
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Start watches root and every non-excluded subdirectory.
//
// Description:
//
//	Spawns an event processor and a debouncer. Both exit when Stop is
//	called or ctx is canceled; a pending batch is flushed first.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.started = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("watching %s: %w", w.root, err)
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	w.logger.Info("watching workspace", slog.String("root", w.root))
	return nil
}

// Stop stops watching and waits for the handler goroutine to finish.
// Safe to call more than once, and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
	})
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.stopped
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.matcher.Excluded(path, true) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.matcher.Excluded(event.Name, true) {
				if err := w.addRecursive(event.Name); err != nil {
					w.logger.Debug("watching new directory failed",
						slog.String("dir", event.Name),
						slog.String("error", err.Error()))
				}
			}
			return
		}
	}

	if !source.IsJavaFile(event.Name) || w.matcher.Excluded(event.Name, false) {
		return
	}

	change := Change{Path: source.Normalize(event.Name), Op: convertOp(event.Op), Time: time.Now()}
	select {
	case w.changes <- change:
	default:
		w.logger.Warn("change buffer full, dropping event", slog.String("file", change.Path))
	}
}

func convertOp(op fsnotify.Op) Op {
	if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
		return OpRemove
	}
	return OpWrite
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer close(w.stopped)

	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 && w.handler != nil {
			w.handler(ctx, dedupe(batch))
		}
		batch = batch[:0]
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// dedupe keeps the latest change per path, in first-seen order.
func dedupe(changes []Change) []Change {
	seen := make(map[string]int, len(changes))
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if i, ok := seen[c.Path]; ok {
			out[i] = c
			continue
		}
		seen[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}
