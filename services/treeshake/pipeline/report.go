// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/ast"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/depgraph"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/merge"
)

// ReportOptions controls Report.
type ReportOptions struct {
	// Mermaid includes the graph after every phase and the condensed graph.
	Mermaid bool
}

// Report renders a markdown walkthrough of shaking one module.
//
// Description:
//
//	Lists every statement item with its facts, the item graph after each
//	analysis phase, the condensed graph, and the parts and merged
//	module-evaluation part for both modes.
//
// Outputs:
//
//	string - The markdown document.
//	error  - Parse, split or merge failure.
func (s *Shaker) Report(ctx context.Context, uri string, content []byte, opts ReportOptions) (string, error) {
	ctx, span := tracer.Start(ctx, "Shaker.Report")
	defer span.End()

	mod, err := s.parser.Parse(ctx, content, uri)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("parsing %s: %w", uri, err)
	}

	g := depgraph.New(depgraph.WithLogger(s.logger))
	ids, items := g.Init(mod)

	a := depgraph.NewAnalyzer(g)
	eventual := a.HoistVarsAndBindings()

	// Item facts are filled by phase 1.
	var b strings.Builder
	fmt.Fprintf(&b, "# Items\n\nCount: %d\n\n", len(ids))
	for i, id := range ids {
		if id.IsGroup() {
			continue
		}
		writeItem(&b, i, id, mod.Body[id.Index], items[id])
	}

	graphSection := func(title string) {
		if opts.Mermaid {
			fmt.Fprintf(&b, "# %s\n```mermaid\n%s```\n", title, depgraph.RenderItemGraph(g))
		}
	}
	graphSection("Phase 1")
	a.EvaluateImmediate(eventual)
	graphSection("Phase 2")
	a.EvaluateEventual()
	graphSection("Phase 3")
	a.HandleExports()
	graphSection("Phase 4")

	cond := g.Finalize()
	if opts.Mermaid {
		fmt.Fprintf(&b, "# Final\n```mermaid\n%s```\n", depgraph.RenderCondensed(cond))
	}

	for _, mode := range []depgraph.Mode{depgraph.ModeDevelopment, depgraph.ModeProduction} {
		if err := s.writeParts(ctx, &b, g.Clone(), uri, mode); err != nil {
			span.RecordError(err)
			return "", err
		}
	}
	return b.String(), nil
}

func writeItem(b *strings.Builder, i int, id depgraph.ItemId, stmt *ast.Stmt, item *depgraph.Item) {
	src := stmt.Source
	if src == "" {
		src = stmt.Text
	}
	fmt.Fprintf(b, "## Item %d: Stmt %d, `%s`\n\n```js\n%s\n```\n\n", i+1, id.Index, id.Kind, src)

	if item.IsHoisted {
		b.WriteString("- Hoisted\n")
	}
	if item.SideEffects {
		b.WriteString("- Side effects\n")
	}
	for _, f := range []struct {
		label string
		set   ast.IdentSet
	}{
		{"Declares", item.VarDecls},
		{"Reads", item.ReadVars},
		{"Reads (eventual)", item.EventualReadVars},
		{"Write", item.WriteVars},
		{"Write (eventual)", item.EventualWriteVars},
		{"Property writes", item.MutateVars},
	} {
		if !f.set.IsEmpty() {
			fmt.Fprintf(b, "- %s: %s\n", f.label, formatIdents(f.set))
		}
	}
	b.WriteString("\n")
}

func formatIdents(set ast.IdentSet) string {
	names := set.Names()
	for i, n := range names {
		names[i] = "`" + n + "`"
	}
	return strings.Join(names, ", ")
}

func (s *Shaker) writeParts(ctx context.Context, b *strings.Builder, g *depgraph.DepGraph, uri string, mode depgraph.Mode) error {
	if err := g.HandleWeak(mode); err != nil {
		return err
	}
	split, err := g.SplitModule(uri)
	if err != nil {
		return fmt.Errorf("splitting %s: %w", uri, err)
	}

	short := "dev"
	if mode == depgraph.ModeProduction {
		short = "prod"
	}
	fmt.Fprintf(b, "# Modules (%s)\n", short)
	for i, part := range split.Modules {
		fmt.Fprintf(b, "## Part %d\n```js\n%s\n```\n", i, ast.Print(part))
	}

	merger, err := merge.New(merge.NewSplitLoader(uri, split), merge.WithLogger(s.logger))
	if err != nil {
		return err
	}
	merged, err := merger.MergeRecursively(ctx, split.Modules[0])
	if err != nil {
		return fmt.Errorf("merging %s: %w", uri, err)
	}
	fmt.Fprintf(b, "## Merged (module eval)\n```js\n%s\n```\n", ast.Print(merged))
	return nil
}
