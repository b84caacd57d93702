// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package source locates Java sources on disk: project walks filtered by
// exclude patterns and .gitignore, source-root discovery, and content
// readers shared by the parser and the editor overlay.
package source

import "errors"

var (
	// ErrNoSourceRoot indicates no src/main/java directory was found.
	ErrNoSourceRoot = errors.New("source root not found")

	// ErrRootNotDirectory indicates a walk root that is missing or not a directory.
	ErrRootNotDirectory = errors.New("root is not a directory")

	// ErrNotFound indicates a path with no content in any reader.
	ErrNotFound = errors.New("source not found")
)
