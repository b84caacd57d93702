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

// Inheritance emits Extends edges for class superclasses and interface
// super-interfaces.
type Inheritance struct{}

// Name implements Extractor.
func (Inheritance) Name() string { return "inheritance" }

// Extract implements Extractor.
func (Inheritance) Extract(unit *resolve.Unit) *graph.CodeGraph {
	g := graph.New()
	for _, d := range types(unit) {
		var supers []ast.TypeRef
		switch d.Kind {
		case ast.DeclClass:
			if d.Superclass != nil {
				supers = append(supers, *d.Superclass)
			}
		case ast.DeclInterface:
			supers = d.Interfaces
		}
		for _, t := range supers {
			target, err := unit.ResolveType(t, outerOf(d))
			if err != nil {
				continue
			}
			g.AddReference(d.QualifiedName, target, graph.EdgeTypeExtends)
		}
	}
	return g
}

// Implementation emits Implements edges for the interfaces of classes and
// enums.
type Implementation struct{}

// Name implements Extractor.
func (Implementation) Name() string { return "implementation" }

// Extract implements Extractor.
func (Implementation) Extract(unit *resolve.Unit) *graph.CodeGraph {
	g := graph.New()
	for _, d := range types(unit) {
		if d.Kind != ast.DeclClass && d.Kind != ast.DeclEnum {
			continue
		}
		for _, t := range d.Interfaces {
			target, err := unit.ResolveType(t, outerOf(d))
			if err != nil {
				continue
			}
			g.AddReference(d.QualifiedName, target, graph.EdgeTypeImplements)
		}
	}
	return g
}
