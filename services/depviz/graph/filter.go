// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "fmt"

// ExternalPolicy controls how nodes for types outside the analyzed sources
// are presented to clients.
type ExternalPolicy string

const (
	// ExternalKeep keeps unresolved and third-party types as boundary nodes.
	ExternalKeep ExternalPolicy = "keep"

	// ExternalDrop removes them together with the edges touching them.
	ExternalDrop ExternalPolicy = "drop"
)

// ParseExternalPolicy validates a policy name. Empty means ExternalKeep.
func ParseExternalPolicy(s string) (ExternalPolicy, error) {
	switch ExternalPolicy(s) {
	case "", ExternalKeep:
		return ExternalKeep, nil
	case ExternalDrop:
		return ExternalDrop, nil
	default:
		return "", fmt.Errorf("unknown external node policy %q (want keep or drop)", s)
	}
}

// IsExternal reports whether the node looks like a type outside the
// analyzed sources: never classified and without an originating file.
func (n *Node) IsExternal() bool {
	return n.Kind == KindUnknown && !n.HasFilePath()
}

// FilterExternal returns a copy of g without external nodes.
//
// Edges with an external endpoint are dropped and references to removed
// nodes are pruned. The receiver is not modified.
func (g *CodeGraph) FilterExternal() *CodeGraph {
	out := New()
	for name, n := range g.nodes {
		if n.IsExternal() {
			continue
		}
		c := n.clone()
		c.References = c.References[:0]
		for _, ref := range n.References {
			if rn, ok := g.nodes[ref]; ok && !rn.IsExternal() {
				c.References = append(c.References, ref)
			}
		}
		out.nodes[name] = c
	}
	for _, e := range g.edges {
		if _, ok := out.nodes[e.Source]; !ok {
			continue
		}
		if _, ok := out.nodes[e.Target]; !ok {
			continue
		}
		out.addEdge(e)
	}
	return out
}

// Apply returns g filtered according to the policy. ExternalKeep returns g
// itself.
func (p ExternalPolicy) Apply(g *CodeGraph) *CodeGraph {
	if p == ExternalDrop {
		return g.FilterExternal()
	}
	return g
}
