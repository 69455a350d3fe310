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
	"container/heap"
	"slices"
	"sort"
)

// Condensation is the DAG obtained by replacing every strongly connected
// component of a graph with a single node.
//
// Description:
//
//	Node i of Graph is component i and Components[i] holds its members.
//	Components are numbered by the smallest rank among their members, and
//	members are ordered by rank, so the result only depends on the input
//	graph and the ranking.
type Condensation[T comparable] struct {
	Graph       *InternedGraph[int]
	Components  [][]T
	componentOf map[T]int
}

// ComponentOf returns the component holding v.
func (c *Condensation[T]) ComponentOf(v T) (int, bool) {
	i, ok := c.componentOf[v]
	return i, ok
}

// Len returns the number of components.
func (c *Condensation[T]) Len() int {
	return len(c.Components)
}

// Clone returns a copy whose Graph can be modified independently.
// Components are shared; they are never modified after Condense.
func (c *Condensation[T]) Clone() *Condensation[T] {
	return &Condensation[T]{
		Graph:       c.Graph.Clone(),
		Components:  c.Components,
		componentOf: c.componentOf,
	}
}

// Condense computes the strongly connected components over all edges and
// returns the condensed graph.
//
// Inputs:
//
//	rank - Orders members inside a component and components among each other.
//	       Usually the original position of the value.
//
// Outputs:
//
//	*Condensation[T] - The condensed DAG. An edge between two components is
//	                   Strong if any underlying edge is Strong.
func (g *InternedGraph[T]) Condense(rank func(T) int) *Condensation[T] {
	sccs := g.tarjan()

	for _, comp := range sccs {
		sort.Slice(comp, func(a, b int) bool {
			return rank(g.values[comp[a]]) < rank(g.values[comp[b]])
		})
	}
	sort.SliceStable(sccs, func(a, b int) bool {
		return rank(g.values[sccs[a][0]]) < rank(g.values[sccs[b][0]])
	})

	c := &Condensation[T]{
		Graph:       New[int](),
		Components:  make([][]T, len(sccs)),
		componentOf: make(map[T]int, len(g.values)),
	}
	nodeComp := make([]int, len(g.values))
	for ci, comp := range sccs {
		c.Graph.Node(ci)
		members := make([]T, len(comp))
		for mi, n := range comp {
			members[mi] = g.values[n]
			nodeComp[n] = ci
			c.componentOf[g.values[n]] = ci
		}
		c.Components[ci] = members
	}

	for _, e := range g.Edges() {
		c.Graph.AddEdge(nodeComp[e.From], nodeComp[e.To], e.Dep)
	}
	return c
}

// tarjan returns the strongly connected components in the order Tarjan's
// algorithm completes them. It is iterative so deep chains cannot
// exhaust the goroutine stack.
func (g *InternedGraph[T]) tarjan() [][]int {
	n := len(g.values)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}

	type frame struct {
		v, next int
	}

	var (
		stack   []int
		comps   [][]int
		counter int
	)

	visit := func(v int) {
		index[v] = counter
		low[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true
	}

	for root := 0; root < n; root++ {
		if index[root] != -1 {
			continue
		}
		visit(root)
		call := []frame{{v: root}}

		for len(call) > 0 {
			top := len(call) - 1
			v := call[top].v
			if succ := g.out[v]; call[top].next < len(succ) {
				w := succ[call[top].next]
				call[top].next++
				if index[w] == -1 {
					visit(w)
					call = append(call, frame{v: w})
				} else if onStack[w] && index[w] < low[v] {
					low[v] = index[w]
				}
				continue
			}

			call = call[:top]
			if top > 0 {
				if p := call[top-1].v; low[v] < low[p] {
					low[p] = low[v]
				}
			}
			if low[v] != index[v] {
				continue
			}
			var comp []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			comps = append(comps, comp)
		}
	}
	return comps
}

// TopologicalOrder returns the nodes so that every edge points from an
// earlier node to a later one. Among ready nodes the smallest index comes
// first.
//
// Outputs:
//
//	[]int - The order. Nil if the graph has a cycle.
//	bool  - False if the graph has a cycle.
func (g *InternedGraph[T]) TopologicalOrder() ([]int, bool) {
	indeg := make([]int, len(g.values))
	for _, targets := range g.out {
		for _, to := range targets {
			indeg[to]++
		}
	}

	ready := &intHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]int, 0, len(g.values))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		order = append(order, n)
		for _, to := range g.out[n] {
			indeg[to]--
			if indeg[to] == 0 {
				heap.Push(ready, to)
			}
		}
	}
	if len(order) != len(g.values) {
		return nil, false
	}
	return order, true
}

// HasPath reports whether to is reachable from from, following only edges
// accepted by follow.
func (g *InternedGraph[T]) HasPath(from, to int, follow func(Edge) bool) bool {
	seen := make([]bool, len(g.values))
	stack := []int{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == to {
			return true
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		for _, succ := range g.out[n] {
			e := Edge{From: n, To: succ, Dep: g.edges[edgeKey{n, succ}]}
			if !seen[succ] && follow(e) {
				stack = append(stack, succ)
			}
		}
	}
	return false
}

type intHeap []int

func (h intHeap) Len() int           { return len(h) }
func (h intHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() any {
	old := *h
	v := old[len(old)-1]
	*h = slices.Delete(old, len(old)-1, len(old))
	return v
}
