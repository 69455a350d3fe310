// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package depgraph builds the item dependency graph of one ECMAScript module
// and splits the module into parts.
//
// The lifecycle of a DepGraph is strictly sequential:
//
//	ids, items := g.Init(module)
//	NewAnalyzer(g).Run()
//	g.Finalize()
//	g.HandleWeak(mode)
//	result, err := g.SplitModule(uri)
package depgraph

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/ast"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/graph"
)

// DepGraph is the dependency graph of one module's items.
//
// Description:
//
//	DepGraph owns the interned item graph and the facts table for the
//	lifetime of one analysis. Init establishes the items, the Analyzer adds
//	edges, Finalize condenses cycles and computes which components are live,
//	HandleWeak resolves weak edges for a Mode and SplitModule produces parts.
//
// Thread Safety:
//
//	Not safe for concurrent use. Independent modules use independent
//	DepGraphs. Clone a finalized graph to split it in several modes.
type DepGraph struct {
	logger *slog.Logger

	g       *graph.InternedGraph[ItemId]
	module  *ast.Module
	ids     []ItemId
	items   map[ItemId]*Item
	rank    map[ItemId]int
	exports []ast.ExportBinding

	cond        *graph.Condensation[ItemId]
	base        *graph.InternedGraph[int]
	live        map[int]bool
	weakHandled bool
	mode        Mode
	folded      []graph.Edge
}

// Option configures a DepGraph.
type Option func(*DepGraph)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *DepGraph) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates an empty DepGraph.
func New(opts ...Option) *DepGraph {
	d := &DepGraph{
		logger: slog.Default(),
		g:      graph.New[ItemId](),
		module: &ast.Module{},
		items:  make(map[ItemId]*Item),
		rank:   make(map[ItemId]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Init creates the items of a module.
//
// Description:
//
//	One item per statement in order, then the ModuleEvaluation group, then
//	one Export group per distinct exported name in order of first
//	appearance. Every id is interned so that group nodes exist even without
//	edges. Facts start empty and no edges are added.
//
// Inputs:
//
//	module - The parsed module. Its statements are not modified.
//
// Outputs:
//
//	[]ItemId          - All ids in order.
//	map[ItemId]*Item  - Empty facts per id, shared with the DepGraph.
func (d *DepGraph) Init(module *ast.Module) ([]ItemId, map[ItemId]*Item) {
	if module == nil {
		module = &ast.Module{}
	}
	d.module = module
	d.g = graph.New[ItemId]()
	d.ids = make([]ItemId, 0, len(module.Body)+1)
	d.items = make(map[ItemId]*Item, len(module.Body)+1)
	d.rank = make(map[ItemId]int, len(module.Body)+1)
	d.exports = nil
	d.cond, d.base, d.live = nil, nil, nil
	d.weakHandled, d.folded = false, nil

	for i, stmt := range module.Body {
		d.addItem(StmtItem(i, itemKindOf(stmt.Kind)))
	}
	d.addItem(GroupItem(ModuleEvaluation()))

	seen := make(map[string]bool)
	for _, stmt := range module.Body {
		for _, b := range stmt.Exports {
			if seen[b.Exported] {
				continue
			}
			seen[b.Exported] = true
			d.exports = append(d.exports, b)
			d.addItem(GroupItem(Export(b.Exported)))
		}
	}

	d.logger.Debug("dependency graph initialized",
		slog.String("uri", module.URI),
		slog.Int("statements", len(module.Body)),
		slog.Int("exports", len(d.exports)),
	)

	return slices.Clone(d.ids), d.items
}

func (d *DepGraph) addItem(id ItemId) {
	d.rank[id] = len(d.ids)
	d.ids = append(d.ids, id)
	d.items[id] = &Item{}
	d.g.Node(id)
}

// AddEdge adds an edge between two items. Strong wins over Weak and self
// edges are ignored.
func (d *DepGraph) AddEdge(from, to ItemId, dep graph.Dependency) {
	d.g.AddEdge(d.g.Node(from), d.g.Node(to), dep)
}

// Module returns the module passed to Init.
func (d *DepGraph) Module() *ast.Module {
	return d.module
}

// Ids returns the item ids in Init order.
func (d *DepGraph) Ids() []ItemId {
	return slices.Clone(d.ids)
}

// Item returns the facts of id.
func (d *DepGraph) Item(id ItemId) (*Item, bool) {
	it, ok := d.items[id]
	return it, ok
}

// Exports returns the exported bindings, one per exported name.
func (d *DepGraph) Exports() []ast.ExportBinding {
	return slices.Clone(d.exports)
}

// Graph returns the item graph.
func (d *DepGraph) Graph() *graph.InternedGraph[ItemId] {
	return d.g
}

// Condensed returns the condensed graph. Nil before Finalize.
func (d *DepGraph) Condensed() *graph.Condensation[ItemId] {
	return d.cond
}

// Mode returns the mode passed to HandleWeak.
func (d *DepGraph) Mode() Mode {
	return d.mode
}

// Finalize condenses strongly connected components into single nodes.
//
// Description:
//
//	Runs Tarjan over Strong and Weak edges. Members of a component keep the
//	original item order. A cross-component edge is Strong when any edge it
//	replaces is Strong. Also computes the live components: those reachable
//	from ModuleEvaluation or an Export group through Strong edges. Calling
//	Finalize again returns the same condensation.
//
// Outputs:
//
//	*graph.Condensation[ItemId] - The acyclic condensed graph.
func (d *DepGraph) Finalize() *graph.Condensation[ItemId] {
	if d.cond != nil {
		return d.cond
	}

	d.cond = d.g.Condense(func(id ItemId) int { return d.rank[id] })
	d.base = d.cond.Graph.Clone()

	var roots []int
	for ci, members := range d.cond.Components {
		if members[0].IsGroup() {
			roots = append(roots, ci)
		}
	}
	d.live = d.base.Reachable(roots, func(dep graph.Dependency) bool { return dep == graph.Strong })

	d.logger.Debug("dependency graph finalized",
		slog.String("uri", d.module.URI),
		slog.Int("items", len(d.ids)),
		slog.Int("components", d.cond.Len()),
		slog.Int("live_components", len(d.live)),
	)

	return d.cond
}

// IsLive reports whether id survives elimination. False before Finalize.
func (d *DepGraph) IsLive(id ItemId) bool {
	if d.cond == nil {
		return false
	}
	ci, ok := d.cond.ComponentOf(id)
	return ok && d.live[ci]
}

// HandleWeak resolves weak edges for mode.
//
// Description:
//
//	Development keeps weak edges as they are; the splitter ignores them.
//	Production turns every weak edge between two live components into a
//	Strong edge and remembers it as a co-location candidate. Weak edges
//	touching a dead component are dropped.
//
// Outputs:
//
//	error - ErrNotFinalized before Finalize, ErrWeakAlreadyHandled on a
//	        second call.
func (d *DepGraph) HandleWeak(mode Mode) error {
	if d.cond == nil {
		return ErrNotFinalized
	}
	if d.weakHandled {
		return ErrWeakAlreadyHandled
	}
	d.weakHandled = true
	d.mode = mode

	if mode != ModeProduction {
		return nil
	}

	dropped := 0
	for _, e := range d.cond.Graph.Edges() {
		if e.Dep != graph.Weak {
			continue
		}
		if d.live[e.From] && d.live[e.To] {
			d.cond.Graph.SetEdge(e.From, e.To, graph.Strong)
			d.folded = append(d.folded, e)
			continue
		}
		d.cond.Graph.RemoveEdge(e.From, e.To)
		dropped++
	}

	d.logger.Debug("weak edges handled",
		slog.String("uri", d.module.URI),
		slog.String("mode", mode.String()),
		slog.Int("folded", len(d.folded)),
		slog.Int("dropped", dropped),
	)
	return nil
}

// Clone returns a copy that can be handled and split independently. Item
// facts and statements are shared; both are read-only after analysis.
func (d *DepGraph) Clone() *DepGraph {
	c := &DepGraph{
		logger:      d.logger,
		g:           d.g.Clone(),
		module:      d.module,
		ids:         slices.Clone(d.ids),
		items:       maps.Clone(d.items),
		rank:        maps.Clone(d.rank),
		exports:     slices.Clone(d.exports),
		live:        d.live,
		weakHandled: d.weakHandled,
		mode:        d.mode,
		folded:      slices.Clone(d.folded),
	}
	if d.cond != nil {
		c.cond = d.cond.Clone()
		c.base = d.base.Clone()
	}
	return c
}
