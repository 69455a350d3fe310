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
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/ast"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/graph"
)

const testURI = "entry.js"

func parse(t *testing.T, src string) *ast.Module {
	t.Helper()
	mod, err := ast.NewJavaScriptParser().Parse(context.Background(), []byte(src), testURI)
	require.NoError(t, err)
	return mod
}

// analyze runs Init, the four phases and Finalize.
func analyze(t *testing.T, src string) *DepGraph {
	t.Helper()
	g := New()
	g.Init(parse(t, src))
	NewAnalyzer(g).Run()
	g.Finalize()
	return g
}

func split(t *testing.T, g *DepGraph, mode Mode) *SplitModuleResult {
	t.Helper()
	c := g.Clone()
	require.NoError(t, c.HandleWeak(mode))
	result, err := c.SplitModule(testURI)
	require.NoError(t, err)
	return result
}

func printParts(r *SplitModuleResult) []string {
	out := make([]string, len(r.Modules))
	for i, m := range r.Modules {
		out[i] = ast.Print(m)
	}
	return out
}

func edge(t *testing.T, g *DepGraph, from, to ItemId) (graph.Dependency, bool) {
	t.Helper()
	fi, ok := g.Graph().Lookup(from)
	require.True(t, ok, "missing node %v", from)
	ti, ok := g.Graph().Lookup(to)
	require.True(t, ok, "missing node %v", to)
	return g.Graph().Edge(fi, ti)
}

func TestInit(t *testing.T) {
	mod := parse(t, "import { a } from \"./a\";\nexport const x = a;\nexport default x;\nexport { x as y };\nx;\n")
	g := New()
	ids, items := g.Init(mod)

	want := []ItemId{
		StmtItem(0, ItemKindImport),
		StmtItem(1, ItemKindDeclaration),
		StmtItem(2, ItemKindDeclaration),
		StmtItem(3, ItemKindExport),
		StmtItem(4, ItemKindNormal),
		GroupItem(ModuleEvaluation()),
		GroupItem(Export("x")),
		GroupItem(Export("default")),
		GroupItem(Export("y")),
	}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, items, len(want))
	assert.Equal(t, len(want), g.Graph().Len(), "every id must be interned")
	assert.Zero(t, g.Graph().EdgeCount())
	for _, id := range ids {
		assert.True(t, items[id].VarDecls.IsEmpty(), "facts must start empty for %v", id)
	}
}

func TestInit_EmptyModule(t *testing.T) {
	g := New()
	ids, _ := g.Init(&ast.Module{URI: testURI})
	assert.Equal(t, []ItemId{GroupItem(ModuleEvaluation())}, ids)
}

func TestHoistVarsAndBindings(t *testing.T) {
	g := New()
	g.Init(parse(t, "const r = () => later();\nfunction later() { return v; }\nlet v = 1;\n"))
	eventual := NewAnalyzer(g).HoistVarsAndBindings()

	assert.Equal(t, []string{"later", "v"}, eventual.Names())

	item, _ := g.Item(StmtItem(1, ItemKindDeclaration))
	assert.True(t, item.IsHoisted)
	assert.Equal(t, []string{"later"}, item.VarDecls.Names())

	dep, ok := edge(t, g, StmtItem(0, ItemKindDeclaration), StmtItem(1, ItemKindDeclaration))
	assert.True(t, ok, "reader of a hoisted binding must depend on its declarator")
	assert.Equal(t, graph.Strong, dep)

	_, ok = edge(t, g, StmtItem(1, ItemKindDeclaration), StmtItem(2, ItemKindDeclaration))
	assert.False(t, ok, "non-hoisted bindings are linked in later phases")
}

func TestConcreteScenario(t *testing.T) {
	g := analyze(t, "const a = 1;\nfunction f(){ return a; }\nexport { f };\nconst b = 2;\n")

	a := StmtItem(0, ItemKindDeclaration)
	f := StmtItem(1, ItemKindDeclaration)
	b := StmtItem(3, ItemKindDeclaration)
	exportF := GroupItem(Export("f"))

	_, ok := edge(t, g, a, exportF)
	assert.False(t, ok, "a is not exported")

	dep, ok := edge(t, g, f, a)
	require.True(t, ok, "f reads a eventually")
	assert.Equal(t, graph.Strong, dep)

	dep, ok = edge(t, g, exportF, f)
	require.True(t, ok)
	assert.Equal(t, graph.Strong, dep)

	assert.True(t, g.IsLive(a))
	assert.True(t, g.IsLive(f))
	assert.False(t, g.IsLive(b), "b has no reader and no side effect")
	assert.Contains(t, g.Ids(), b, "b is still an item")

	for _, mode := range []Mode{ModeDevelopment, ModeProduction} {
		t.Run(mode.String(), func(t *testing.T) {
			r := split(t, g, mode)
			want := []string{
				"",
				"const a = 1;\nfunction f(){ return a; }\nexport { f };",
			}
			if diff := cmp.Diff(want, printParts(r)); diff != "" {
				t.Errorf("parts mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, map[GroupKey]int{ModuleEvaluation(): 0, Export("f"): 1}, r.Entrypoints)
			for _, part := range printParts(r) {
				assert.NotContains(t, part, "const b")
			}
		})
	}
}

func TestSplit_SharedDeclarationGetsOwnPart(t *testing.T) {
	g := analyze(t, "export const x = 1;\nconsole.log(x);\n")
	r := split(t, g, ModeDevelopment)

	want := []string{
		"import { x } from \"entry.js\" with { __part__: \"2\" };\nconsole.log(x);",
		"import { x } from \"entry.js\" with { __part__: \"2\" };\nexport { x };",
		"const x = 1;\nexport { x };",
	}
	if diff := cmp.Diff(want, printParts(r)); diff != "" {
		t.Errorf("parts mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, map[int][]int{0: {2}, 1: {2}, 2: {}}, r.PartDeps)
	assert.Equal(t, 1, r.Entrypoints[Export("x")])
}

func TestSplit_BareImportForOrdering(t *testing.T) {
	g := analyze(t, "let x = 1;\nx = 2;\nexport { x };\n")
	r := split(t, g, ModeDevelopment)

	want := []string{
		"import \"entry.js\" with { __part__: \"2\" };",
		"import { x } from \"entry.js\" with { __part__: \"2\" };\nexport { x };",
		"let x = 1;\nx = 2;\nexport { x };",
	}
	if diff := cmp.Diff(want, printParts(r)); diff != "" {
		t.Errorf("parts mismatch (-want +got):\n%s", diff)
	}
}

func TestSplit_CycleSafety(t *testing.T) {
	src := "function isEven(n) { return n === 0 || isOdd(n - 1); }\n" +
		"function isOdd(n) { return n !== 0 && isEven(n - 1); }\n" +
		"export { isEven };\n"
	g := analyze(t, src)

	even := StmtItem(0, ItemKindDeclaration)
	odd := StmtItem(1, ItemKindDeclaration)
	ce, _ := g.Condensed().ComponentOf(even)
	co, _ := g.Condensed().ComponentOf(odd)
	require.Equal(t, ce, co, "mutually recursive functions must share a component")
	assert.Equal(t, []ItemId{even, odd}, g.Condensed().Components[ce])

	for _, mode := range []Mode{ModeDevelopment, ModeProduction} {
		r := split(t, g, mode)
		parts := printParts(r)
		require.Len(t, parts, 2)
		assert.Contains(t, parts[1], "function isEven")
		assert.Contains(t, parts[1], "function isOdd")
	}
}

func TestSplit_ModeDivergence(t *testing.T) {
	src := "let x = 1;\nexport const a = () => x;\nexport const b = () => x;\nconsole.log(\"hi\");\n"
	g := analyze(t, src)

	dev := split(t, g, ModeDevelopment)
	prod := split(t, g, ModeProduction)

	wantDev := []string{
		"console.log(\"hi\");",
		"import { x } from \"entry.js\" with { __part__: \"3\" };\nconst a = () => x;\nexport { a };",
		"import { x } from \"entry.js\" with { __part__: \"3\" };\nconst b = () => x;\nexport { b };",
		"let x = 1;\nexport { x };",
	}
	if diff := cmp.Diff(wantDev, printParts(dev)); diff != "" {
		t.Errorf("dev parts mismatch (-want +got):\n%s", diff)
	}

	wantProd := []string{
		"let x = 1;\nconsole.log(\"hi\");\nexport { x };",
		"import { x } from \"entry.js\" with { __part__: \"0\" };\nconst a = () => x;\nexport { a };",
		"import { x } from \"entry.js\" with { __part__: \"0\" };\nconst b = () => x;\nexport { b };",
	}
	if diff := cmp.Diff(wantProd, printParts(prod)); diff != "" {
		t.Errorf("prod parts mismatch (-want +got):\n%s", diff)
	}

	assert.LessOrEqual(t, len(prod.Modules), len(dev.Modules))
}

func TestSplit_EmptyModule(t *testing.T) {
	g := analyze(t, "const unused = 1;\n")
	r := split(t, g, ModeDevelopment)

	assert.Equal(t, []string{""}, printParts(r))
	assert.Equal(t, map[GroupKey]int{ModuleEvaluation(): 0}, r.Entrypoints)
}

func TestSplit_Determinism(t *testing.T) {
	src := "import { log } from \"./log\";\n" +
		"let count = 0;\n" +
		"export function inc() { count++; }\n" +
		"log(\"start\");\n" +
		"inc();\n" +
		"export const value = count;\n" +
		"export default function main() { return inc(); }\n"

	for _, mode := range []Mode{ModeDevelopment, ModeProduction} {
		first := printParts(split(t, analyze(t, src), mode))
		for i := 0; i < 5; i++ {
			again := printParts(split(t, analyze(t, src), mode))
			if diff := cmp.Diff(first, again); diff != "" {
				t.Fatalf("%s run %d differs (-first +again):\n%s", mode, i, diff)
			}
		}
	}
}

func TestSplit_Soundness(t *testing.T) {
	src := "import { log } from \"./log\";\n" +
		"const unusedHelper = () => 42;\n" +
		"let count = 0;\n" +
		"export function inc() { count++; }\n" +
		"function neverCalled() { return count; }\n" +
		"log(\"start\");\n" +
		"export const value = count;\n" +
		"const dead = value + 1;\n"
	g := analyze(t, src)

	for _, mode := range []Mode{ModeDevelopment, ModeProduction} {
		t.Run(mode.String(), func(t *testing.T) {
			joined := strings.Join(printParts(split(t, g, mode)), "\n")
			for i, stmt := range g.Module().Body {
				id := g.Ids()[i]
				if g.IsLive(id) {
					assert.Contains(t, joined, stmt.Text, "live statement %d missing", i)
				} else {
					assert.NotContains(t, joined, stmt.Text, "dead statement %d present", i)
				}
			}
			assert.NotContains(t, joined, "unusedHelper")
			assert.NotContains(t, joined, "neverCalled")
			assert.NotContains(t, joined, "dead")
		})
	}
}

func TestSideEffectsChainedInOrder(t *testing.T) {
	g := analyze(t, "first();\nsecond();\nthird();\n")

	s0 := StmtItem(0, ItemKindNormal)
	s1 := StmtItem(1, ItemKindNormal)
	s2 := StmtItem(2, ItemKindNormal)
	me := GroupItem(ModuleEvaluation())

	for _, pair := range [][2]ItemId{{me, s0}, {me, s1}, {me, s2}, {s1, s0}, {s2, s0}, {s2, s1}} {
		dep, ok := edge(t, g, pair[0], pair[1])
		assert.True(t, ok && dep == graph.Strong, "expected strong %v -> %v", pair[0], pair[1])
	}

	r := split(t, g, ModeDevelopment)
	assert.Equal(t, []string{"first();\nsecond();\nthird();"}, printParts(r))
}

func TestLifecycleErrors(t *testing.T) {
	g := New()
	g.Init(parse(t, "a();\n"))
	NewAnalyzer(g).Run()

	assert.ErrorIs(t, g.HandleWeak(ModeDevelopment), ErrNotFinalized)
	_, err := g.SplitModule(testURI)
	assert.ErrorIs(t, err, ErrNotFinalized)

	g.Finalize()
	_, err = g.SplitModule(testURI)
	assert.ErrorIs(t, err, ErrWeakNotHandled)

	require.NoError(t, g.HandleWeak(ModeProduction))
	assert.ErrorIs(t, g.HandleWeak(ModeProduction), ErrWeakAlreadyHandled)

	_, err = g.SplitModule(testURI)
	assert.NoError(t, err)
}

func TestFinalize_Idempotent(t *testing.T) {
	g := analyze(t, "let x = 1;\nx = 2;\n")
	first := g.Condensed()
	assert.Same(t, first, g.Finalize())
}

func TestHandleWeak_ProductionFoldsLiveWeakEdges(t *testing.T) {
	g := analyze(t, "let x = 1;\nexport const a = () => x;\nconsole.log(\"hi\");\n")

	dev := g.Clone()
	require.NoError(t, dev.HandleWeak(ModeDevelopment))
	prod := g.Clone()
	require.NoError(t, prod.HandleWeak(ModeProduction))

	countWeak := func(d *DepGraph) int {
		n := 0
		for _, e := range d.Condensed().Graph.Edges() {
			if e.Dep == graph.Weak {
				n++
			}
		}
		return n
	}
	assert.Positive(t, countWeak(dev))
	assert.Zero(t, countWeak(prod))
	assert.Positive(t, countWeak(g), "clones must not share the condensed graph")
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"development", ModeDevelopment, false},
		{"dev", ModeDevelopment, false},
		{" Production ", ModeProduction, false},
		{"prod", ModeProduction, false},
		{"fast", ModeDevelopment, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidMode, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestGroupKey_Text(t *testing.T) {
	for _, key := range []GroupKey{ModuleEvaluation(), Export("default"), Export("a:b")} {
		text, err := key.MarshalText()
		require.NoError(t, err)
		var back GroupKey
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, key, back)
	}
	var bad GroupKey
	assert.Error(t, bad.UnmarshalText([]byte("nope")))
}

func TestRender(t *testing.T) {
	g := analyze(t, "const a = 1;\nexport const b = a;\n")

	items := RenderItemGraph(g)
	assert.True(t, strings.HasPrefix(items, "graph TD\n"))
	assert.Contains(t, items, `["ModuleEvaluation"]`)
	assert.Contains(t, items, `["export b"]`)
	assert.Contains(t, items, "-->")

	condensed := RenderCondensed(g.Condensed())
	assert.Contains(t, condensed, "Items: [Item(0, Declaration)]")
}

func TestHandleExports_PropertyAssignments(t *testing.T) {
	g := analyze(t, "const o = {};\no.x = 1;\nexport { o };\nfunction later() { o.y = 2; }\n")

	dep, ok := edge(t, g, GroupItem(Export("o")), StmtItem(1, ItemKindNormal))
	require.True(t, ok, "export should depend on the property assignment")
	assert.Equal(t, graph.Strong, dep)

	_, ok = edge(t, g, GroupItem(Export("o")), StmtItem(3, ItemKindDeclaration))
	assert.False(t, ok, "assignments inside closures run later")

	for _, mode := range []Mode{ModeDevelopment, ModeProduction} {
		result := split(t, g, mode)
		exportPart := result.Entrypoints[Export("o")]

		mutator := -1
		for i, text := range printParts(result) {
			if strings.Contains(text, "o.x = 1;") {
				mutator = i
			}
		}
		require.NotEqual(t, -1, mutator, mode.String())
		if mutator != exportPart {
			assert.Contains(t, result.PartDeps[exportPart], mutator, mode.String())
		}
	}
}
