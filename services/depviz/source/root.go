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
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MavenSourceDir is the conventional Java source directory.
var MavenSourceDir = filepath.Join("src", "main", "java")

// FindSourceRoot searches start and its ancestors for a src/main/java
// directory.
//
// A start path that already lies inside a src/main/java tree returns that
// tree's root. Otherwise each ancestor dir is checked for dir/src/main/java.
// Returns ErrNoSourceRoot when neither is found.
func FindSourceRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSourceRoot, err)
	}

	for dir := abs; ; dir = filepath.Dir(dir) {
		if strings.HasSuffix(dir, string(filepath.Separator)+MavenSourceDir) && isDir(dir) {
			return dir, nil
		}
		if parent := filepath.Dir(dir); parent == dir {
			break
		}
	}

	for dir := abs; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, MavenSourceDir)
		if isDir(candidate) {
			return candidate, nil
		}
		if parent := filepath.Dir(dir); parent == dir {
			break
		}
	}

	return "", fmt.Errorf("%w: from %s", ErrNoSourceRoot, start)
}

// PackageRoot returns the directory that contains the package path of a
// file, e.g. /p/src for /p/src/com/acme/A.java in package com.acme.
// Returns false when the file's directory does not end with the package path.
func PackageRoot(filePath, pkg string) (string, bool) {
	dir := filepath.Dir(filepath.Clean(filePath))
	if pkg == "" {
		return dir, true
	}
	pkgPath := filepath.Join(strings.Split(pkg, ".")...)
	suffix := string(filepath.Separator) + pkgPath
	if !strings.HasSuffix(dir, suffix) {
		return "", false
	}
	return strings.TrimSuffix(dir, suffix), true
}

// RootForFile picks the analysis root for a single file: the enclosing
// src/main/java, else the package root, else the file's directory.
func RootForFile(filePath, pkg string) string {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		abs = filepath.Clean(filePath)
	}
	if root, err := FindSourceRoot(filepath.Dir(abs)); err == nil {
		return root
	}
	if root, ok := PackageRoot(abs, pkg); ok && root != "" {
		return root
	}
	return filepath.Dir(abs)
}

// Normalize returns the cleaned absolute form of path.
func Normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
