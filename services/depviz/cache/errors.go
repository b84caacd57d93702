// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache holds per-file dependency graphs for an editor session.
//
// Entries are keyed by normalized absolute path and replaced atomically on
// every open or change. A per-file version taken when an analysis starts
// decides whether its result may still be stored, so a slow analysis never
// overwrites a newer one.
package cache

import "errors"

// ErrNoRoot indicates an analysis requested before a workspace root was
// configured.
var ErrNoRoot = errors.New("workspace root not configured")
