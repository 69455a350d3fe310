// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depgraph

import (
	"log/slog"
	"math"
	"sort"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/ast"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/graph"
)

// SplitModuleResult is the output of SplitModule.
type SplitModuleResult struct {
	// Modules holds the parts. Part 0 owns ModuleEvaluation.
	Modules []*ast.Module `json:"modules"`

	// Entrypoints maps each group to the part that owns it.
	Entrypoints map[GroupKey]int `json:"entrypoints"`

	// PartDeps lists, per part, the parts it imports in ascending order.
	PartDeps map[int][]int `json:"part_deps"`
}

// SplitModule assigns every live component to one part and materializes
// the parts as modules.
//
// Description:
//
//	Components are visited consumers first. ModuleEvaluation and each Export
//	group start a part of their own. Any other component whose Strong
//	consumers all sit in one part joins it, otherwise it starts its own part.
//	In Production, a part that owns no group is then merged into the part
//	of a consumer that reaches it through a folded weak edge, as long as the
//	part graph stays acyclic. When several consumer parts qualify, the one
//	with the lowest statement index wins, then the lowest provisional part.
//
//	Part 0 owns ModuleEvaluation, the parts owning exports follow in export
//	order and the remaining parts are ordered by their lowest statement index.
//	Each part lists its part imports first, then its statements in original
//	order, then an export of bindings other parts import from it, then one
//	public export per owned Export group.
//
// Inputs:
//
//	uri - The module identity used in the part imports.
//
// Outputs:
//
//	*SplitModuleResult - The parts. Dead items appear in no part.
//	error              - ErrNotFinalized or ErrWeakNotHandled.
func (d *DepGraph) SplitModule(uri string) (*SplitModuleResult, error) {
	if d.cond == nil {
		return nil, ErrNotFinalized
	}
	if !d.weakHandled {
		return nil, ErrWeakNotHandled
	}

	s := &splitter{d: d, uri: uri, partOf: make([]int, d.cond.Len())}
	for i := range s.partOf {
		s.partOf[i] = -1
	}

	s.assign()
	base := s.liveParts()
	if d.mode == ModeProduction {
		s.colocate()
	}
	result := s.materialize()

	d.logger.Debug("module split",
		slog.String("uri", uri),
		slog.String("mode", d.mode.String()),
		slog.Int("base_parts", base),
		slog.Int("parts", len(result.Modules)),
	)
	return result, nil
}

// splitter holds the provisional part assignment of one SplitModule call.
type splitter struct {
	d   *DepGraph
	uri string

	// partOf maps a component to its provisional part, -1 when dead.
	partOf []int

	// parts lists the components of each provisional part. A part merged
	// away in Production becomes nil.
	parts [][]int
	roots []bool
}

func (s *splitter) isRoot(c int) bool {
	return s.d.cond.Components[c][0].IsGroup()
}

func (s *splitter) newPart(c int) {
	s.partOf[c] = len(s.parts)
	s.parts = append(s.parts, []int{c})
	s.roots = append(s.roots, s.isRoot(c))
}

func (s *splitter) liveParts() int {
	n := 0
	for _, p := range s.parts {
		if p != nil {
			n++
		}
	}
	return n
}

// assign computes the base assignment from the edges that were Strong at
// Finalize so that it does not depend on the mode.
func (s *splitter) assign() {
	d := s.d
	order, _ := d.base.TopologicalOrder()

	for _, c := range order {
		if !d.live[c] {
			continue
		}
		if s.isRoot(c) {
			s.newPart(c)
			continue
		}

		owner, shared := -1, true
		for _, p := range d.base.Predecessors(c) {
			if !d.live[p] {
				continue
			}
			if dep, _ := d.base.Edge(p, c); dep != graph.Strong {
				continue
			}
			switch {
			case owner == -1:
				owner = s.partOf[p]
			case owner != s.partOf[p]:
				shared = false
			}
		}

		if owner >= 0 && shared {
			s.partOf[c] = owner
			s.parts[owner] = append(s.parts[owner], c)
			continue
		}
		s.newPart(c)
	}
}

// colocate merges parts along folded weak edges until nothing changes.
func (s *splitter) colocate() {
	for changed := true; changed; {
		changed = false
		for q := range s.parts {
			if s.parts[q] == nil || s.roots[q] {
				continue
			}
			for _, p := range s.candidates(q) {
				if s.mergeKeepsAcyclic(p, q) {
					s.merge(q, p)
					changed = true
					break
				}
			}
		}
	}
}

// candidates returns the parts reaching part q through a folded edge,
// best first.
func (s *splitter) candidates(q int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, e := range s.d.folded {
		if s.partOf[e.To] != q {
			continue
		}
		p := s.partOf[e.From]
		if p == q || p < 0 || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		mi, mj := s.minStmt(out[i]), s.minStmt(out[j])
		if mi != mj {
			return mi < mj
		}
		return out[i] < out[j]
	})
	return out
}

// minStmt returns the lowest statement index in a provisional part.
func (s *splitter) minStmt(p int) int {
	best := math.MaxInt
	for _, c := range s.parts[p] {
		for _, id := range s.d.cond.Components[c] {
			if !id.IsGroup() && id.Index < best {
				best = id.Index
			}
		}
	}
	return best
}

// partGraph returns the graph between provisional parts induced by the
// Strong edges at Finalize. Node i is provisional part i.
func (s *splitter) partGraph() *graph.InternedGraph[int] {
	pg := graph.New[int]()
	for i := range s.parts {
		pg.Node(i)
	}
	for _, e := range s.d.base.Edges() {
		if e.Dep != graph.Strong || !s.d.live[e.From] || !s.d.live[e.To] {
			continue
		}
		pg.AddEdge(s.partOf[e.From], s.partOf[e.To], graph.Strong)
	}
	return pg
}

// mergeKeepsAcyclic reports whether merging q into p leaves the part graph
// acyclic: no path may leave one of them and come back to the other.
func (s *splitter) mergeKeepsAcyclic(p, q int) bool {
	pg := s.partGraph()
	all := func(graph.Edge) bool { return true }
	if pg.HasPath(q, p, all) {
		return false
	}
	indirect := func(e graph.Edge) bool { return !(e.From == p && e.To == q) }
	return !pg.HasPath(p, q, indirect)
}

func (s *splitter) merge(q, p int) {
	for _, c := range s.parts[q] {
		s.partOf[c] = p
	}
	s.parts[p] = append(s.parts[p], s.parts[q]...)
	s.parts[q] = nil
}

// number maps provisional parts to final part numbers.
func (s *splitter) number() map[int]int {
	d := s.d
	final := make(map[int]int)
	assign := func(p int) {
		if _, ok := final[p]; !ok {
			final[p] = len(final)
		}
	}

	groupPart := func(key GroupKey) int {
		ci, _ := d.cond.ComponentOf(GroupItem(key))
		return s.partOf[ci]
	}
	assign(groupPart(ModuleEvaluation()))
	for _, b := range d.exports {
		assign(groupPart(Export(b.Exported)))
	}

	var rest []int
	for p := range s.parts {
		if s.parts[p] == nil {
			continue
		}
		if _, ok := final[p]; !ok {
			rest = append(rest, p)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		mi, mj := s.minStmt(rest[i]), s.minStmt(rest[j])
		if mi != mj {
			return mi < mj
		}
		return rest[i] < rest[j]
	})
	for _, p := range rest {
		assign(p)
	}
	return final
}

// materialize builds one module per part.
func (s *splitter) materialize() *SplitModuleResult {
	d := s.d
	final := s.number()
	n := len(final)

	// Members of each final part in original item order.
	members := make([][]ItemId, n)
	for c, p := range s.partOf {
		if p < 0 {
			continue
		}
		fp := final[p]
		members[fp] = append(members[fp], d.cond.Components[c]...)
	}
	for _, m := range members {
		sort.Slice(m, func(i, j int) bool { return d.rank[m[i]] < d.rank[m[j]] })
	}

	// The part providing each binding is the part of its first live declarator.
	declPart := make(map[string]int)
	for fp, m := range members {
		for _, id := range m {
			if id.IsGroup() {
				continue
			}
			for _, name := range d.items[id].VarDecls.Names() {
				prev, ok := declPart[name]
				if !ok || d.declRankBefore(name, fp, prev, members) {
					declPart[name] = fp
				}
			}
		}
	}

	localOf := make(map[string]string, len(d.exports))
	for _, b := range d.exports {
		localOf[b.Exported] = b.Local
	}

	// Part dependencies from edges that were Strong at Finalize.
	deps := make([]map[int]bool, n)
	for i := range deps {
		deps[i] = make(map[int]bool)
	}
	for _, e := range d.base.Edges() {
		if e.Dep != graph.Strong || !d.live[e.From] || !d.live[e.To] {
			continue
		}
		from, to := final[s.partOf[e.From]], final[s.partOf[e.To]]
		if from != to {
			deps[from][to] = true
		}
	}

	result := &SplitModuleResult{
		Modules:     make([]*ast.Module, n),
		Entrypoints: make(map[GroupKey]int),
		PartDeps:    make(map[int][]int, n),
	}

	// First pass: what every part imports from every other part.
	imports := make([][]partImport, n)
	exported := make([]map[string]bool, n)
	for i := range exported {
		exported[i] = make(map[string]bool)
	}
	for fp := 0; fp < n; fp++ {
		depList := make([]int, 0, len(deps[fp]))
		for q := range deps[fp] {
			depList = append(depList, q)
		}
		sort.Ints(depList)
		result.PartDeps[fp] = depList

		names := make(map[int]*ast.IdentSet, len(depList))
		for _, q := range depList {
			names[q] = &ast.IdentSet{}
		}
		for _, id := range members[fp] {
			var uses ast.IdentSet
			if id.IsGroup() {
				if id.Group.Kind == GroupExport {
					uses.Add(localOf[id.Group.Name])
				}
			} else {
				uses = d.items[id].uses()
			}
			for _, name := range uses.Names() {
				q, ok := declPart[name]
				if !ok || q == fp {
					continue
				}
				if set, ok := names[q]; ok {
					set.Add(name)
					exported[q][name] = true
				}
			}
		}
		for _, q := range depList {
			imports[fp] = append(imports[fp], partImport{part: q, names: names[q].Names()})
		}
	}

	// Second pass: bodies.
	for fp := 0; fp < n; fp++ {
		var body []*ast.Stmt
		for _, imp := range imports[fp] {
			body = append(body, ast.NewPartImport(s.uri, imp.part, imp.names))
		}

		var public []ast.ExportBinding
		for _, id := range members[fp] {
			if id.IsGroup() {
				result.Entrypoints[id.Group] = fp
				if id.Group.Kind == GroupExport {
					public = append(public, ast.ExportBinding{
						Local:    localOf[id.Group.Name],
						Exported: id.Group.Name,
					})
				}
				continue
			}
			stmt := d.module.Body[id.Index]
			if stmt.IsLocalExportList() {
				continue
			}
			cp := *stmt
			body = append(body, &cp)
		}

		publicSame := make(map[string]bool, len(public))
		for _, b := range public {
			if b.Local == b.Exported {
				publicSame[b.Local] = true
			}
		}
		var internal []ast.ExportBinding
		for _, id := range members[fp] {
			if id.IsGroup() {
				continue
			}
			for _, name := range d.items[id].VarDecls.Names() {
				if exported[fp][name] && !publicSame[name] && declPart[name] == fp {
					internal = append(internal, ast.ExportBinding{Local: name, Exported: name})
					delete(exported[fp], name)
				}
			}
		}
		if len(internal) > 0 {
			body = append(body, ast.NewPartExport(internal, false))
		}
		for _, b := range public {
			body = append(body, ast.NewPartExport([]ast.ExportBinding{b}, true))
		}

		result.Modules[fp] = &ast.Module{URI: s.uri, Body: body}
	}

	return result
}

type partImport struct {
	part  int
	names []string
}

// declRankBefore reports whether the earliest declarator of name in part
// a comes before the earliest one in part b.
func (d *DepGraph) declRankBefore(name string, a, b int, members [][]ItemId) bool {
	first := func(p int) int {
		for _, id := range members[p] {
			if !id.IsGroup() && d.items[id].VarDecls.Has(name) {
				return d.rank[id]
			}
		}
		return math.MaxInt
	}
	return first(a) < first(b)
}
