// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"github.com/AleutianAI/depviz/services/depviz/ast"
	"github.com/AleutianAI/depviz/services/depviz/graph"
	"github.com/AleutianAI/depviz/services/depviz/resolve"
)

// Classification sets the Kind of every declaration in the unit.
type Classification struct{}

// Name implements Extractor.
func (Classification) Name() string { return "classification" }

// Extract implements Extractor.
func (Classification) Extract(unit *resolve.Unit) *graph.CodeGraph {
	g := graph.New()
	for _, d := range types(unit) {
		g.SetKind(d.QualifiedName, classify(d))
	}
	return g
}

// classify ranks interface over abstract over plain class.
func classify(d *ast.TypeDecl) graph.Kind {
	switch d.Kind {
	case ast.DeclInterface:
		return graph.KindInterface
	case ast.DeclEnum:
		return graph.KindEnum
	case ast.DeclAnnotation:
		return graph.KindAnnotation
	case ast.DeclClass:
		if d.Abstract {
			return graph.KindAbstractClass
		}
		return graph.KindClass
	default:
		return graph.KindUnknown
	}
}

// Size sets LinesOfCode from each declaration's span, 0 without one.
type Size struct{}

// Name implements Extractor.
func (Size) Name() string { return "size" }

// Extract implements Extractor.
func (Size) Extract(unit *resolve.Unit) *graph.CodeGraph {
	g := graph.New()
	for _, d := range types(unit) {
		g.SetLinesOfCode(d.QualifiedName, d.Span.Lines())
	}
	return g
}

// Location sets FilePath on every declaration when the unit's origin is
// known.
type Location struct{}

// Name implements Extractor.
func (Location) Name() string { return "location" }

// Extract implements Extractor.
func (Location) Extract(unit *resolve.Unit) *graph.CodeGraph {
	g := graph.New()
	if unit == nil || unit.File == nil || unit.Path == "" {
		return g
	}
	for _, d := range unit.Types {
		g.SetFilePath(d.QualifiedName, unit.Path)
	}
	return g
}
