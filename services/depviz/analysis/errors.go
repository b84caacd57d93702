// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis aggregates extractor output into dependency graphs: per
// unit, per file, and for a whole project in parallel.
package analysis

import (
	"errors"

	"github.com/AleutianAI/depviz/services/depviz/source"
)

var (
	// ErrAnalysisFailed indicates a file could not be loaded or parsed, or
	// its analysis was interrupted.
	// The cause is wrapped alongside it.
	ErrAnalysisFailed = errors.New("analysis failed")

	// ErrRootNotDirectory indicates a project root that is not a directory.
	ErrRootNotDirectory = source.ErrRootNotDirectory
)
