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
	"fmt"
	"sort"
)

// LOCNotComputed is the LinesOfCode sentinel for "not yet computed".
const LOCNotComputed = -1

// UnknownName is the node name used as the source of a relation whose
// enclosing declared type could not be determined.
const UnknownName = "Unknown"

// Kind classifies a declared type.
//
// The zero value is KindUnknown, so a lazily created node starts unclassified.
type Kind int

const (
	// KindUnknown means the declaration has not been classified (or the
	// name refers to a type outside the analyzed sources).
	KindUnknown Kind = iota

	// KindClass is a concrete class.
	KindClass

	// KindInterface is an interface.
	KindInterface

	// KindAbstractClass is a class declared abstract.
	KindAbstractClass

	// KindEnum is an enum declaration.
	KindEnum

	// KindAnnotation is an annotation type declaration.
	KindAnnotation
)

var kindNames = map[Kind]string{
	KindUnknown:       "Unknown",
	KindClass:         "Class",
	KindInterface:     "Interface",
	KindAbstractClass: "AbstractClass",
	KindEnum:          "Enum",
	KindAnnotation:    "Annotation",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ParseKind converts a wire name back to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// EdgeType is the relation kind carried by an edge.
type EdgeType int

const (
	// EdgeTypeExtends links a declaring type to its declared supertype.
	EdgeTypeExtends EdgeType = iota

	// EdgeTypeImplements links a declaring type to an implemented interface.
	EdgeTypeImplements

	// EdgeTypeTypeUse links a declaring type to a type used by a field,
	// method signature or local variable.
	EdgeTypeTypeUse

	// EdgeTypeMethodCall links the enclosing type of a call site to the
	// declaring type of the invoked method.
	EdgeTypeMethodCall

	// EdgeTypeObjectCreate links the enclosing type of a `new` expression
	// to the constructed type.
	EdgeTypeObjectCreate

	// NumEdgeTypes is the number of edge types. Used for array sizing.
	NumEdgeTypes
)

var edgeTypeNames = [NumEdgeTypes]string{
	EdgeTypeExtends:      "Extends",
	EdgeTypeImplements:   "Implements",
	EdgeTypeTypeUse:      "TypeUse",
	EdgeTypeMethodCall:   "MethodCall",
	EdgeTypeObjectCreate: "ObjectCreate",
}

// String returns the wire name of the edge type.
func (t EdgeType) String() string {
	if t >= 0 && t < NumEdgeTypes {
		return edgeTypeNames[t]
	}
	return "Unknown"
}

// ParseEdgeType converts a wire name back to an EdgeType.
func ParseEdgeType(s string) (EdgeType, error) {
	for i, name := range edgeTypeNames {
		if name == s {
			return EdgeType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidEdgeType, s)
}

// Node is a declared type (or a referenced, undeclared type) in the graph.
type Node struct {
	// Name is the fully-qualified name. It is the node identity and never
	// changes after creation.
	Name string

	// Kind is the classification, KindUnknown until a declaration is seen.
	Kind Kind

	// LinesOfCode is the declaration span, LOCNotComputed until known.
	LinesOfCode int

	// FilePath is the originating source file, empty until known.
	FilePath string

	// References lists the names this node points to, in insertion order.
	// Entries are not deduplicated across merges; Edges are authoritative.
	References []string
}

func newNode(name string) *Node {
	return &Node{
		Name:        name,
		Kind:        KindUnknown,
		LinesOfCode: LOCNotComputed,
	}
}

// HasFilePath reports whether the node's file path has been set.
func (n *Node) HasFilePath() bool {
	return n.FilePath != ""
}

func (n *Node) clone() *Node {
	c := *n
	if n.References != nil {
		c.References = make([]string, len(n.References))
		copy(c.References, n.References)
	}
	return &c
}

// EdgeKey is the identity of an edge for deduplication.
type EdgeKey struct {
	Source string
	Target string
	Type   EdgeType
}

// Edge is a typed relation between two nodes, addressed by name.
type Edge struct {
	Source string
	Target string
	Type   EdgeType
}

// Key returns the deduplication key of the edge.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target, Type: e.Type}
}

// CodeGraph is the node/edge container. The zero value is not usable; call New.
type CodeGraph struct {
	nodes map[string]*Node

	// edges is kept in insertion order so serialization is stable.
	edges []Edge

	edgeSet map[EdgeKey]struct{}
}

// New creates an empty CodeGraph.
func New() *CodeGraph {
	return &CodeGraph{
		nodes:   make(map[string]*Node),
		edges:   make([]Edge, 0),
		edgeSet: make(map[EdgeKey]struct{}),
	}
}

// ensureNode returns the node for name, creating it if absent.
func (g *CodeGraph) ensureNode(name string) *Node {
	if n, ok := g.nodes[name]; ok {
		return n
	}
	n := newNode(name)
	g.nodes[name] = n
	return n
}

// addEdge inserts the edge unless its triple is already present.
// Returns true if the edge was added.
func (g *CodeGraph) addEdge(e Edge) bool {
	key := e.Key()
	if _, exists := g.edgeSet[key]; exists {
		return false
	}
	g.edgeSet[key] = struct{}{}
	g.edges = append(g.edges, e)
	return true
}

// AddReference records a relation from source to target.
//
// Both nodes are created if absent. The target name is appended to the
// source node's References, and the edge is inserted only if no edge with
// the same (source, target, type) triple exists.
func (g *CodeGraph) AddReference(source, target string, t EdgeType) {
	src := g.ensureNode(source)
	g.ensureNode(target)
	src.References = append(src.References, target)
	g.addEdge(Edge{Source: source, Target: target, Type: t})
}

// SetKind sets the kind of the named node, creating it if absent.
func (g *CodeGraph) SetKind(name string, kind Kind) {
	g.ensureNode(name).Kind = kind
}

// SetLinesOfCode sets the line count of the named node, creating it if absent.
func (g *CodeGraph) SetLinesOfCode(name string, loc int) {
	g.ensureNode(name).LinesOfCode = loc
}

// SetFilePath sets the file path of the named node, creating it if absent.
func (g *CodeGraph) SetFilePath(name, path string) {
	g.ensureNode(name).FilePath = path
}

// Node returns the named node.
func (g *CodeGraph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns all nodes sorted by name.
func (g *CodeGraph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Edges returns all edges in insertion order. The slice is a copy.
func (g *CodeGraph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// HasEdge reports whether an edge with the given triple exists.
func (g *CodeGraph) HasEdge(source, target string, t EdgeType) bool {
	_, ok := g.edgeSet[EdgeKey{Source: source, Target: target, Type: t}]
	return ok
}

// EdgesOfType returns the edges with the given type, in insertion order.
func (g *CodeGraph) EdgesOfType(t EdgeType) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *CodeGraph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of (deduplicated) edges.
func (g *CodeGraph) EdgeCount() int {
	return len(g.edges)
}

// IsEmpty reports whether the graph has neither nodes nor edges.
func (g *CodeGraph) IsEmpty() bool {
	return len(g.nodes) == 0 && len(g.edges) == 0
}

// Clone returns a deep copy of the graph.
func (g *CodeGraph) Clone() *CodeGraph {
	c := &CodeGraph{
		nodes:   make(map[string]*Node, len(g.nodes)),
		edges:   make([]Edge, len(g.edges)),
		edgeSet: make(map[EdgeKey]struct{}, len(g.edgeSet)),
	}
	for name, n := range g.nodes {
		c.nodes[name] = n.clone()
	}
	copy(c.edges, g.edges)
	for k := range g.edgeSet {
		c.edgeSet[k] = struct{}{}
	}
	return c
}

// String returns a short summary for logging.
func (g *CodeGraph) String() string {
	return fmt.Sprintf("CodeGraph{nodes=%d, edges=%d}", len(g.nodes), len(g.edges))
}
