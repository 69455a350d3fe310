// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides an interned directed graph with Strong and Weak
// edges and a deterministic strongly-connected-component condensation.
package graph

import (
	"slices"
)

// Dependency is the tag of an edge.
type Dependency int

const (
	// Weak is an ordering hint. It never forces inclusion by itself.
	Weak Dependency = iota

	// Strong means the source needs the target.
	Strong
)

// String returns the string representation of the Dependency.
func (d Dependency) String() string {
	switch d {
	case Strong:
		return "strong"
	case Weak:
		return "weak"
	default:
		return "unknown"
	}
}

// Edge is one directed edge between dense node indices.
type Edge struct {
	From int
	To   int
	Dep  Dependency
}

type edgeKey struct {
	from, to int
}

// InternedGraph is a directed graph whose nodes are values of T mapped to
// dense indices in interning order.
//
// Description:
//
//	Node interns a value and returns its index. Successor lists are kept
//	sorted so every traversal over the graph is deterministic. At most one
//	edge exists per (from, to) pair; re-adding keeps the stronger tag.
//
// Thread Safety: Not safe for concurrent use.
type InternedGraph[T comparable] struct {
	values []T
	index  map[T]int
	edges  map[edgeKey]Dependency
	out    [][]int
	in     [][]int
}

// New creates an empty InternedGraph.
func New[T comparable]() *InternedGraph[T] {
	return &InternedGraph[T]{
		index: make(map[T]int),
		edges: make(map[edgeKey]Dependency),
	}
}

// Node interns v and returns its index. Interning is idempotent.
func (g *InternedGraph[T]) Node(v T) int {
	if i, ok := g.index[v]; ok {
		return i
	}
	i := len(g.values)
	g.values = append(g.values, v)
	g.index[v] = i
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return i
}

// Lookup returns the index of v without interning it.
func (g *InternedGraph[T]) Lookup(v T) (int, bool) {
	i, ok := g.index[v]
	return i, ok
}

// Value returns the value interned at index i.
func (g *InternedGraph[T]) Value(i int) T {
	return g.values[i]
}

// Values returns the interned values in interning order.
func (g *InternedGraph[T]) Values() []T {
	out := make([]T, len(g.values))
	copy(out, g.values)
	return out
}

// Len returns the number of nodes.
func (g *InternedGraph[T]) Len() int {
	return len(g.values)
}

// AddEdge adds an edge between two interned indices.
//
// Description:
//
//	Self edges are ignored. If the edge already exists its tag becomes the
//	stronger of the two.
//
// Outputs:
//
//	bool - True if the graph changed.
func (g *InternedGraph[T]) AddEdge(from, to int, dep Dependency) bool {
	if from == to {
		return false
	}
	key := edgeKey{from, to}
	if old, ok := g.edges[key]; ok {
		if dep > old {
			g.edges[key] = dep
			return true
		}
		return false
	}
	g.edges[key] = dep
	g.out[from] = insertSorted(g.out[from], to)
	g.in[to] = insertSorted(g.in[to], from)
	return true
}

// SetEdge overwrites the tag of an edge, adding it when missing.
func (g *InternedGraph[T]) SetEdge(from, to int, dep Dependency) {
	if from == to {
		return
	}
	if _, ok := g.edges[edgeKey{from, to}]; !ok {
		g.AddEdge(from, to, dep)
		return
	}
	g.edges[edgeKey{from, to}] = dep
}

// RemoveEdge deletes an edge. Missing edges are ignored.
func (g *InternedGraph[T]) RemoveEdge(from, to int) {
	key := edgeKey{from, to}
	if _, ok := g.edges[key]; !ok {
		return
	}
	delete(g.edges, key)
	g.out[from] = removeSorted(g.out[from], to)
	g.in[to] = removeSorted(g.in[to], from)
}

// Edge returns the tag of the edge from -> to.
func (g *InternedGraph[T]) Edge(from, to int) (Dependency, bool) {
	dep, ok := g.edges[edgeKey{from, to}]
	return dep, ok
}

// Successors returns the sorted targets of edges leaving i.
func (g *InternedGraph[T]) Successors(i int) []int {
	return slices.Clone(g.out[i])
}

// Predecessors returns the sorted sources of edges entering i.
func (g *InternedGraph[T]) Predecessors(i int) []int {
	return slices.Clone(g.in[i])
}

// Edges returns every edge ordered by (From, To).
func (g *InternedGraph[T]) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for from, targets := range g.out {
		for _, to := range targets {
			out = append(out, Edge{From: from, To: to, Dep: g.edges[edgeKey{from, to}]})
		}
	}
	return out
}

// EdgeCount returns the number of edges.
func (g *InternedGraph[T]) EdgeCount() int {
	return len(g.edges)
}

// Clone returns a deep copy of the graph.
func (g *InternedGraph[T]) Clone() *InternedGraph[T] {
	c := &InternedGraph[T]{
		values: slices.Clone(g.values),
		index:  make(map[T]int, len(g.index)),
		edges:  make(map[edgeKey]Dependency, len(g.edges)),
		out:    make([][]int, len(g.out)),
		in:     make([][]int, len(g.in)),
	}
	for k, v := range g.index {
		c.index[k] = v
	}
	for k, v := range g.edges {
		c.edges[k] = v
	}
	for i := range g.out {
		c.out[i] = slices.Clone(g.out[i])
		c.in[i] = slices.Clone(g.in[i])
	}
	return c
}

// Reachable returns the set of nodes reachable from roots, roots included,
// following only edges accepted by follow.
func (g *InternedGraph[T]) Reachable(roots []int, follow func(Dependency) bool) map[int]bool {
	seen := make(map[int]bool, len(g.values))
	stack := slices.Clone(roots)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		for _, succ := range g.out[n] {
			if !seen[succ] && follow(g.edges[edgeKey{n, succ}]) {
				stack = append(stack, succ)
			}
		}
	}
	return seen
}

func insertSorted(s []int, v int) []int {
	i, found := slices.BinarySearch(s, v)
	if found {
		return s
	}
	return slices.Insert(s, i, v)
}

func removeSorted(s []int, v int) []int {
	i, found := slices.BinarySearch(s, v)
	if !found {
		return s
	}
	return slices.Delete(s, i, i+1)
}
