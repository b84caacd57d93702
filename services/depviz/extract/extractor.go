// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract holds the extraction passes that turn one resolved unit
// into a partial dependency graph.
//
// Every Extractor is stateless: it reads the unit, emits exactly one kind
// of edge or node attribute into a fresh graph, skips any reference the
// unit cannot resolve, and never fails. Results of different extractors
// commute under graph.Merge.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/depviz/services/depviz/ast"
	"github.com/AleutianAI/depviz/services/depviz/graph"
	"github.com/AleutianAI/depviz/services/depviz/resolve"
)

// ErrUnknownExtractor indicates a name with no registered extractor.
var ErrUnknownExtractor = errors.New("unknown extractor")

// Extractor produces one partial graph from one unit.
type Extractor interface {
	// Name identifies the extractor in configuration and logs.
	Name() string

	// Extract returns a fresh graph. It never returns nil.
	Extract(unit *resolve.Unit) *graph.CodeGraph
}

// Default returns every extractor in pipeline order.
func Default() []Extractor {
	return []Extractor{
		TypeUse{},
		Call{},
		Instantiation{},
		Inheritance{},
		Implementation{},
		Classification{},
		Size{},
		Location{},
	}
}

// Names returns the names of the default extractors.
func Names() []string {
	all := Default()
	out := make([]string, len(all))
	for i, e := range all {
		out[i] = e.Name()
	}
	return out
}

// ByName selects extractors by name, case-insensitively, in the order
// given. No names selects Default().
func ByName(names ...string) ([]Extractor, error) {
	if len(names) == 0 {
		return Default(), nil
	}
	registry := make(map[string]Extractor)
	for _, e := range Default() {
		registry[strings.ToLower(e.Name())] = e
	}

	out := make([]Extractor, 0, len(names))
	seen := make(map[string]bool)
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		e, ok := registry[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownExtractor, n, strings.Join(Names(), ", "))
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, e)
		}
	}
	return out, nil
}

// enclosingName is the node name for a site's nearest enclosing
// declaration, graph.UnknownName when there is none.
func enclosingName(d *ast.TypeDecl) string {
	if d == nil || d.QualifiedName == "" {
		return graph.UnknownName
	}
	return d.QualifiedName
}

// outerOf returns the declaration whose scope a header is written in.
func outerOf(d *ast.TypeDecl) *ast.TypeDecl {
	return d.Outer
}

func types(unit *resolve.Unit) []*ast.TypeDecl {
	if unit == nil || unit.File == nil {
		return nil
	}
	return unit.Types
}
