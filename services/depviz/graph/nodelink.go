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

import (
	"encoding/json"
	"fmt"
)

// EmptyGraphJSON is the document returned to clients when no graph is
// available for a request.
const EmptyGraphJSON = `{"nodes": [], "links": []}`

// NodeLinkDocument is the node-link wire format consumed by the
// visualization front-end.
type NodeLinkDocument struct {
	Nodes []NodeLinkNode `json:"nodes"`
	Links []NodeLinkLink `json:"links"`
}

// NodeLinkNode is one entry of the nodes array. ID always equals Name.
type NodeLinkNode struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	LinesOfCode int     `json:"linesOfCode"`
	FilePath    *string `json:"filePath"`
}

// NodeLinkLink is one entry of the links array.
type NodeLinkLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// ToNodeLink converts the graph into its wire document. Nodes are sorted by
// name, links keep insertion order.
func ToNodeLink(g *CodeGraph) NodeLinkDocument {
	doc := NodeLinkDocument{
		Nodes: make([]NodeLinkNode, 0),
		Links: make([]NodeLinkLink, 0),
	}
	if g == nil {
		return doc
	}
	for _, n := range g.Nodes() {
		nl := NodeLinkNode{
			ID:          n.Name,
			Name:        n.Name,
			Type:        n.Kind.String(),
			LinesOfCode: n.LinesOfCode,
		}
		if n.HasFilePath() {
			p := n.FilePath
			nl.FilePath = &p
		}
		doc.Nodes = append(doc.Nodes, nl)
	}
	for _, e := range g.edges {
		doc.Links = append(doc.Links, NodeLinkLink{
			Source: e.Source,
			Target: e.Target,
			Type:   e.Type.String(),
		})
	}
	return doc
}

// MarshalNodeLink serializes the graph to node-link JSON.
func MarshalNodeLink(g *CodeGraph, pretty bool) ([]byte, error) {
	doc := ToNodeLink(g)
	if pretty {
		return json.MarshalIndent(doc, "", "  ")
	}
	return json.Marshal(doc)
}

// UnmarshalNodeLink rebuilds a graph from node-link JSON.
//
// References are reconstructed from the links, one entry per link.
func UnmarshalNodeLink(data []byte) (*CodeGraph, error) {
	var doc NodeLinkDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNodeLink, err)
	}

	g := New()
	for _, nl := range doc.Nodes {
		kind, err := ParseKind(nl.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: node %q: %v", ErrMalformedNodeLink, nl.ID, err)
		}
		n := g.ensureNode(nl.ID)
		n.Kind = kind
		n.LinesOfCode = nl.LinesOfCode
		if nl.FilePath != nil {
			n.FilePath = *nl.FilePath
		}
	}
	for _, l := range doc.Links {
		t, err := ParseEdgeType(l.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: link %s->%s: %v", ErrMalformedNodeLink, l.Source, l.Target, err)
		}
		if _, ok := g.nodes[l.Source]; !ok {
			return nil, fmt.Errorf("%w: unknown source %q", ErrMalformedNodeLink, l.Source)
		}
		if _, ok := g.nodes[l.Target]; !ok {
			return nil, fmt.Errorf("%w: unknown target %q", ErrMalformedNodeLink, l.Target)
		}
		g.AddReference(l.Source, l.Target, t)
	}
	return g, nil
}
