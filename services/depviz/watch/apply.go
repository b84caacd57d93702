// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"log/slog"
)

// Index is the symbol index a batch of changes is applied to.
// resolve.Workspace satisfies it.
type Index interface {
	Refresh(ctx context.Context, path string) error
	Remove(path string)
}

// Invalidator drops cached results for a path. cache.FileCache satisfies it.
type Invalidator interface {
	Invalidate(path string)
}

// Apply returns a Handler that re-indexes written files, drops removed
// ones, and invalidates each changed path. inv may be nil.
func Apply(idx Index, inv Invalidator, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, changes []Change) {
		for _, c := range changes {
			switch c.Op {
			case OpRemove:
				idx.Remove(c.Path)
			default:
				if err := idx.Refresh(ctx, c.Path); err != nil {
					logger.Warn("re-indexing changed file failed",
						slog.String("file", c.Path),
						slog.String("error", err.Error()))
				}
			}
			if inv != nil {
				inv.Invalidate(c.Path)
			}
		}
		logger.Debug("applied workspace changes", slog.Int("files", len(changes)))
	}
}
