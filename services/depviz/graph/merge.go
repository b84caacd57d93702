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

// MergeResult reports what a Merge changed in the target.
type MergeResult struct {
	// NodesAdded is the number of nodes inserted into the target.
	NodesAdded int

	// EdgesAdded is the number of edges inserted into the target.
	EdgesAdded int
}

// Merge folds source into target.
//
// Description:
//
//	Phase one walks the source nodes. A node absent from target is inserted
//	as a copy. A node present in both is completed field by field with a
//	first-known-value-wins policy:
//	  - Kind is taken only if target is KindUnknown and source is not
//	  - LinesOfCode is taken only if target is LOCNotComputed and source is not
//	  - FilePath is taken only if target is unset and source is set
//	Source References are appended to the target node without dedup.
//
//	Phase two walks the source edges, creating missing endpoints in target
//	by name and inserting each edge only if its triple is absent.
//
// Inputs:
//
//	target - The accumulator. Must not be nil. Mutated in place.
//	source - The graph to fold in. Not modified. Nil is a no-op.
//
// Outputs:
//
//	MergeResult - Counts of inserted nodes and edges.
//
// Limitations:
//
//	Merging the same source twice leaves nodes and edges unchanged but
//	doubles the appended References entries.
//
// Thread Safety: Not safe for concurrent use on the same target.
func Merge(target, source *CodeGraph) MergeResult {
	var res MergeResult
	if source == nil {
		return res
	}
	if target == source {
		// Same result as merging an identical copy: attributes and edges
		// are already present, references double.
		for _, n := range target.nodes {
			n.References = append(n.References, n.References...)
		}
		return res
	}

	for name, sn := range source.nodes {
		tn, ok := target.nodes[name]
		if !ok {
			target.nodes[name] = sn.clone()
			res.NodesAdded++
			continue
		}
		mergeAttributes(tn, sn)
	}

	for _, e := range source.edges {
		if _, ok := target.nodes[e.Source]; !ok {
			target.nodes[e.Source] = newNode(e.Source)
			res.NodesAdded++
		}
		if _, ok := target.nodes[e.Target]; !ok {
			target.nodes[e.Target] = newNode(e.Target)
			res.NodesAdded++
		}
		if target.addEdge(e) {
			res.EdgesAdded++
		}
	}

	return res
}

func mergeAttributes(dst, src *Node) {
	if dst.Kind == KindUnknown && src.Kind != KindUnknown {
		dst.Kind = src.Kind
	}
	if dst.LinesOfCode == LOCNotComputed && src.LinesOfCode != LOCNotComputed {
		dst.LinesOfCode = src.LinesOfCode
	}
	if !dst.HasFilePath() && src.HasFilePath() {
		dst.FilePath = src.FilePath
	}
	dst.References = append(dst.References, src.References...)
}

// Fold merges every graph in order into acc and returns acc.
// A nil acc is replaced with a fresh graph.
func Fold(acc *CodeGraph, graphs ...*CodeGraph) *CodeGraph {
	if acc == nil {
		acc = New()
	}
	for _, g := range graphs {
		Merge(acc, g)
	}
	return acc
}
