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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultExcludes are gitignore-style patterns skipped by every walk.
// Build output directories are anchored at the root so that packages named
// "build" or "out" are still walked.
var DefaultExcludes = []string{
	".git",
	".idea",
	".gradle",
	"node_modules",
	"/target/",
	"/build/",
	"/out/",
	"/bin/",
}

// JavaExtension is the only file extension a walk collects.
const JavaExtension = ".java"

// IsJavaFile reports whether path names a Java source file.
func IsJavaFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), JavaExtension)
}

type walkOptions struct {
	excludes     []string
	useGitignore bool
}

// WalkOption configures Walk.
type WalkOption func(*walkOptions)

// WithExcludes adds gitignore-style exclude patterns.
func WithExcludes(patterns ...string) WalkOption {
	return func(o *walkOptions) {
		o.excludes = append(o.excludes, patterns...)
	}
}

// WithGitignore toggles reading <root>/.gitignore. Enabled by default.
func WithGitignore(enabled bool) WalkOption {
	return func(o *walkOptions) {
		o.useGitignore = enabled
	}
}

// Matcher decides which paths under a root are excluded from analysis.
type Matcher struct {
	root    string
	ignorer *ignore.GitIgnore
}

// NewMatcher compiles DefaultExcludes, the extra patterns and, unless
// disabled, the root's .gitignore.
//
// Outputs:
//
//	*Matcher - Matcher for paths under the absolute, cleaned root.
//	error    - ErrRootNotDirectory when root is not a directory.
func NewMatcher(root string, opts ...WalkOption) (*Matcher, error) {
	o := walkOptions{useGitignore: true}
	for _, opt := range opts {
		opt(&o)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRootNotDirectory, root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotDirectory, root)
	}

	lines := append(append([]string{}, DefaultExcludes...), o.excludes...)
	if o.useGitignore {
		lines = append(lines, readGitignore(absRoot)...)
	}
	return &Matcher{root: absRoot, ignorer: ignore.CompileIgnoreLines(lines...)}, nil
}

// Root returns the absolute root the matcher is relative to.
func (m *Matcher) Root() string {
	return m.root
}

// Excluded reports whether path is skipped. Paths outside the root and the
// root itself are never excluded.
func (m *Matcher) Excluded(path string, isDir bool) bool {
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		return m.ignorer.MatchesPath(rel + "/")
	}
	return m.ignorer.MatchesPath(rel)
}

// Walk returns the absolute paths of all Java files under root, sorted.
//
// Description:
//
//	Directories and files matching DefaultExcludes, the extra patterns and
//	the root's .gitignore are skipped. Unreadable entries are skipped
//	silently. The walk stops early when ctx is canceled.
//
// Outputs:
//
//	[]string - Absolute, cleaned paths in lexical order.
//	error    - ErrRootNotDirectory, or ctx.Err() on cancellation.
func Walk(ctx context.Context, root string, opts ...WalkOption) ([]string, error) {
	matcher, err := NewMatcher(root, opts...)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(matcher.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			if matcher.Excluded(path, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !IsJavaFile(path) || matcher.Excluded(path, false) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

func readGitignore(root string) []string {
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
