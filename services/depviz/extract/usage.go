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

// TypeUse emits TypeUse edges from a declaration to the types of its
// fields, method returns and method parameters, and from the enclosing
// declaration to the types of local variables.
type TypeUse struct{}

// Name implements Extractor.
func (TypeUse) Name() string { return "typeuse" }

// Extract implements Extractor.
func (TypeUse) Extract(unit *resolve.Unit) *graph.CodeGraph {
	g := graph.New()
	for _, d := range types(unit) {
		use := func(t ast.TypeRef) {
			if target, err := unit.ResolveType(t, d); err == nil {
				g.AddReference(d.QualifiedName, target, graph.EdgeTypeTypeUse)
			}
		}
		for _, f := range d.Fields {
			use(f.Type)
		}
		for _, m := range d.Methods {
			if m.Return != nil {
				use(*m.Return)
			}
			for _, p := range m.Params {
				use(p.Type)
			}
		}
	}

	if unit == nil || unit.File == nil {
		return g
	}
	for _, l := range unit.Locals {
		target, err := unit.ResolveType(l.Type, l.Enclosing)
		if err != nil {
			continue
		}
		g.AddReference(enclosingName(l.Enclosing), target, graph.EdgeTypeTypeUse)
	}
	return g
}

// Call emits MethodCall edges from the enclosing declaration to the type
// declaring the invoked method.
type Call struct{}

// Name implements Extractor.
func (Call) Name() string { return "call" }

// Extract implements Extractor.
func (Call) Extract(unit *resolve.Unit) *graph.CodeGraph {
	g := graph.New()
	if unit == nil || unit.File == nil {
		return g
	}
	for _, c := range unit.Calls {
		target, err := unit.ResolveCall(c)
		if err != nil {
			continue
		}
		g.AddReference(enclosingName(c.Enclosing), target, graph.EdgeTypeMethodCall)
	}
	return g
}

// Instantiation emits ObjectCreate edges from the enclosing declaration to
// each constructed type.
type Instantiation struct{}

// Name implements Extractor.
func (Instantiation) Name() string { return "instantiation" }

// Extract implements Extractor.
func (Instantiation) Extract(unit *resolve.Unit) *graph.CodeGraph {
	g := graph.New()
	if unit == nil || unit.File == nil {
		return g
	}
	for _, c := range unit.Creations {
		target, err := unit.ResolveType(c.Type, c.Enclosing)
		if err != nil {
			continue
		}
		g.AddReference(enclosingName(c.Enclosing), target, graph.EdgeTypeObjectCreate)
	}
	return g
}
