// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the typed dependency graph and its merge rules.
//
// A CodeGraph holds declared types as nodes, keyed by fully-qualified name,
// and the relations between them (Extends, Implements, TypeUse, MethodCall,
// ObjectCreate) as edges deduplicated by their (source, target, type) triple.
//
// # Ownership Model
//
// A CodeGraph has a single owner at any time: the extractor that created it,
// the aggregator folding it, or the cache entry holding it. Merge copies
// nodes out of the source graph, so the source may be discarded afterwards.
//
// # Thread Safety
//
// CodeGraph is NOT safe for concurrent use. Callers that share a graph
// across goroutines must serialize access or hand out Clone() snapshots.
//
// # Lifecycle
//
//  1. Create with New()
//  2. Populate with AddReference / SetKind / SetLinesOfCode / SetFilePath,
//     or by merging other graphs with Merge()
//  3. Serialize with MarshalNodeLink, cache, or merge further
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrInvalidEdgeType is returned when an edge type name is not one of
	// Extends, Implements, TypeUse, MethodCall or ObjectCreate.
	ErrInvalidEdgeType = errors.New("invalid edge type")

	// ErrInvalidKind is returned when a node kind name is not recognized.
	ErrInvalidKind = errors.New("invalid node kind")

	// ErrMalformedNodeLink is returned when node-link JSON cannot be decoded
	// into a graph, e.g. a link points at a node id that is not listed.
	ErrMalformedNodeLink = errors.New("malformed node-link document")
)
