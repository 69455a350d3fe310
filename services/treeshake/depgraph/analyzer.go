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

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/ast"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/graph"
)

// varState tracks one module binding while the analyzer walks the module.
type varState struct {
	declarator    ItemId
	hasDeclarator bool

	// lastWrites and lastReads grow in textual order during phase 2.
	lastWrites []ItemId
	lastReads  []ItemId

	// eventualWrites and mutators are collected in phase 1.
	eventualWrites []ItemId
	mutators       []ItemId
}

func appendUnique(list []ItemId, id ItemId) []ItemId {
	for _, x := range list {
		if x == id {
			return list
		}
	}
	return append(list, id)
}

// Analyzer runs the four effect-analysis phases over a DepGraph.
//
// Description:
//
//	The phases must run in order, each exactly once:
//
//	  eventual := a.HoistVarsAndBindings()
//	  a.EvaluateImmediate(eventual)
//	  a.EvaluateEventual()
//	  a.HandleExports()
//
//	Run does all four. The phases fill the item facts from the statement
//	usage and add edges to the graph. Analysis never fails.
//
// Thread Safety: Not safe for concurrent use.
type Analyzer struct {
	g      *DepGraph
	logger *slog.Logger

	vars            map[string]*varState
	lastSideEffects []ItemId
}

// NewAnalyzer creates an Analyzer for an initialized DepGraph.
func NewAnalyzer(g *DepGraph) *Analyzer {
	return &Analyzer{
		g:      g,
		logger: g.logger,
		vars:   make(map[string]*varState),
	}
}

func (a *Analyzer) state(name string) *varState {
	vs, ok := a.vars[name]
	if !ok {
		vs = &varState{}
		a.vars[name] = vs
	}
	return vs
}

func (a *Analyzer) strong(from, to ItemId) {
	a.g.AddEdge(from, to, graph.Strong)
}

func (a *Analyzer) weak(from, to ItemId) {
	a.g.AddEdge(from, to, graph.Weak)
}

// stmtIds returns the statement items in order.
func (a *Analyzer) stmtIds() []ItemId {
	return a.g.ids[:len(a.g.module.Body)]
}

// Run executes all four phases.
func (a *Analyzer) Run() {
	eventual := a.HoistVarsAndBindings()
	a.EvaluateImmediate(eventual)
	a.EvaluateEventual()
	a.HandleExports()
}

// HoistVarsAndBindings is phase 1.
//
// Description:
//
//	Copies the statement usage into the item facts and records the first
//	declarator of every binding, so later phases know it regardless of
//	textual position. Writes of hoisted items (function declarations and
//	imports) count as happening before everything else. Any item reading a
//	hoisted binding, now or eventually, gets a Strong edge to its declarator.
//
// Outputs:
//
//	ast.IdentSet - Every binding read eventually by some item.
func (a *Analyzer) HoistVarsAndBindings() ast.IdentSet {
	var eventual ast.IdentSet

	for i, id := range a.stmtIds() {
		item := a.g.items[id]
		if u := a.g.module.Body[i].Usage; u != nil {
			item.IsHoisted = u.Hoisted
			item.SideEffects = u.SideEffects
			item.VarDecls = u.Decls.Clone()
			item.ReadVars = u.Reads.Clone()
			item.WriteVars = u.Writes.Clone()
			item.EventualReadVars = u.EventualReads.Clone()
			item.EventualWriteVars = u.EventualWrites.Clone()
			item.MutateVars = u.Mutates.Clone()
		}

		for _, name := range item.VarDecls.Names() {
			if vs := a.state(name); !vs.hasDeclarator {
				vs.declarator, vs.hasDeclarator = id, true
			}
		}
		if item.IsHoisted {
			for _, name := range item.WriteVars.Names() {
				vs := a.state(name)
				vs.lastWrites = appendUnique(vs.lastWrites, id)
			}
		}
		for _, name := range item.EventualWriteVars.Names() {
			vs := a.state(name)
			vs.eventualWrites = appendUnique(vs.eventualWrites, id)
		}
		for _, name := range item.MutateVars.Names() {
			vs := a.state(name)
			vs.mutators = appendUnique(vs.mutators, id)
		}
		eventual.AddAll(item.EventualReadVars)
	}

	for _, id := range a.stmtIds() {
		item := a.g.items[id]
		for _, set := range []ast.IdentSet{item.ReadVars, item.EventualReadVars} {
			for _, name := range set.Names() {
				vs, ok := a.vars[name]
				if !ok || !vs.hasDeclarator {
					continue
				}
				if a.g.items[vs.declarator].IsHoisted {
					a.strong(id, vs.declarator)
				}
			}
		}
	}

	a.logger.Debug("phase 1 complete",
		slog.Int("bindings", len(a.vars)),
		slog.Int("eventual", eventual.Len()),
	)
	return eventual
}

// EvaluateImmediate is phase 2. It walks the statements in textual order.
//
// Description:
//
//	A non-hoisted item reading v depends on every prior writer of v.
//	An item writing v that is not v's declarator is tied to the declarator
//	in both directions, and gets Weak edges to the prior readers and writers.
//	A side-effecting item is required by ModuleEvaluation, depends on every
//	earlier side-effecting item, and gets Weak edges to the last writers
//	and readers of the eventually read bindings.
func (a *Analyzer) EvaluateImmediate(eventual ast.IdentSet) {
	me := GroupItem(ModuleEvaluation())

	for _, id := range a.stmtIds() {
		item := a.g.items[id]

		if !item.IsHoisted {
			for _, name := range item.ReadVars.Names() {
				if vs, ok := a.vars[name]; ok {
					for _, w := range vs.lastWrites {
						a.strong(id, w)
					}
				}
			}
		}

		for _, name := range item.WriteVars.Names() {
			vs := a.state(name)
			if !vs.hasDeclarator || vs.declarator == id {
				continue
			}
			a.strong(id, vs.declarator)
			a.strong(vs.declarator, id)
			for _, r := range vs.lastReads {
				a.weak(id, r)
			}
			for _, w := range vs.lastWrites {
				a.weak(id, w)
			}
		}

		if item.SideEffects {
			a.strong(me, id)
			for _, prev := range a.lastSideEffects {
				a.strong(id, prev)
			}
			for _, name := range eventual.Names() {
				vs, ok := a.vars[name]
				if !ok {
					continue
				}
				for _, w := range vs.lastWrites {
					a.weak(id, w)
				}
				for _, r := range vs.lastReads {
					a.weak(id, r)
				}
			}
		}

		for _, name := range item.ReadVars.Names() {
			vs := a.state(name)
			vs.lastReads = appendUnique(vs.lastReads, id)
		}
		for _, name := range item.WriteVars.Names() {
			vs := a.state(name)
			vs.lastWrites = appendUnique(vs.lastWrites, id)
		}
		if item.SideEffects {
			a.lastSideEffects = append(a.lastSideEffects, id)
		}
	}

	a.logger.Debug("phase 2 complete",
		slog.Int("side_effects", len(a.lastSideEffects)),
		slog.Int("edges", a.g.g.EdgeCount()),
	)
}

// EvaluateEventual is phase 3.
//
// Description:
//
//	A closure may run at any time, so an eventual read of v depends on every
//	writer of v anywhere in the module, immediate or eventual. An eventual
//	write of v is tied to v's declarator in both directions and gets Weak
//	edges to every immediate reader of v.
func (a *Analyzer) EvaluateEventual() {
	for _, id := range a.stmtIds() {
		item := a.g.items[id]

		for _, name := range item.EventualReadVars.Names() {
			vs, ok := a.vars[name]
			if !ok {
				continue
			}
			for _, w := range vs.lastWrites {
				a.strong(id, w)
			}
			for _, w := range vs.eventualWrites {
				a.strong(id, w)
			}
		}

		for _, name := range item.EventualWriteVars.Names() {
			vs, ok := a.vars[name]
			if !ok {
				continue
			}
			if vs.hasDeclarator {
				a.strong(id, vs.declarator)
				a.strong(vs.declarator, id)
			}
			for _, r := range vs.lastReads {
				a.weak(id, r)
			}
		}
	}

	a.logger.Debug("phase 3 complete", slog.Int("edges", a.g.g.EdgeCount()))
}

// HandleExports is phase 4. Each Export group depends on every item that
// writes the exported local binding, and on every item that assigns one of
// its properties at module evaluation, so the export part observes the
// object as the unsplit module leaves it.
func (a *Analyzer) HandleExports() {
	for _, b := range a.g.exports {
		group := GroupItem(Export(b.Exported))
		vs, ok := a.vars[b.Local]
		if !ok {
			continue
		}
		if vs.hasDeclarator {
			a.strong(group, vs.declarator)
		}
		for _, w := range vs.lastWrites {
			a.strong(group, w)
		}
		for _, m := range vs.mutators {
			a.strong(group, m)
		}
	}

	a.logger.Debug("phase 4 complete",
		slog.Int("exports", len(a.g.exports)),
		slog.Int("edges", a.g.g.EdgeCount()),
	)
}
