// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve binds parsed Java files to a name-based symbol resolver.
//
// Ownership: An Index is shared by all units of a workspace. A Unit is owned
// by the analysis that loaded it.
//
// Thread Safety: Index and Workspace are safe for concurrent use. Units are
// read-only after Load and may be shared across goroutines.
package resolve

import "errors"

var (
	// ErrUnresolved indicates a reference whose target cannot be named.
	ErrUnresolved = errors.New("unresolved reference")

	// ErrNilUnit indicates a nil unit or a unit without a parsed file.
	ErrNilUnit = errors.New("nil unit")
)
