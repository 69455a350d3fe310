// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsage_PlainRead(t *testing.T) {
	u := parseOne(t, `const b = a * 2;`).Usage

	assert.Equal(t, []string{"b"}, u.Decls.Names())
	assert.Equal(t, []string{"b"}, u.Writes.Names())
	assert.Equal(t, []string{"a"}, u.Reads.Names())
	assert.False(t, u.SideEffects)
	assert.False(t, u.Hoisted)
}

func TestUsage_AssignmentIsSideEffect(t *testing.T) {
	u := parseOne(t, `a = b;`).Usage

	assert.True(t, u.Decls.IsEmpty())
	assert.Equal(t, []string{"a"}, u.Writes.Names())
	assert.Equal(t, []string{"b"}, u.Reads.Names())
	assert.True(t, u.SideEffects)
}

func TestUsage_AugmentedAssignmentReadsTarget(t *testing.T) {
	u := parseOne(t, `total += 1;`).Usage

	assert.True(t, u.Reads.Has("total"))
	assert.True(t, u.Writes.Has("total"))
	assert.True(t, u.SideEffects)
}

func TestUsage_MemberAssignmentMutatesObject(t *testing.T) {
	u := parseOne(t, `obj.prop = value;`).Usage

	assert.Equal(t, []string{"obj", "value"}, u.Reads.Names())
	assert.True(t, u.Writes.IsEmpty())
	assert.Equal(t, []string{"obj"}, u.Mutates.Names())
	assert.True(t, u.SideEffects)
}

func TestUsage_MutatesRoot(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{`o.a.b = 1;`, []string{"o"}},
		{`o[key] += 1;`, []string{"o"}},
		{`(o).count++;`, []string{"o"}},
		{`make().x = 1;`, nil},
		{`this.x = 1;`, nil},
		{`function f() { o.x = 1; }`, nil},
		{`{ let o = {}; o.x = 1; }`, nil},
	}
	for _, tt := range tests {
		u := parseOne(t, tt.src).Usage
		if tt.want == nil {
			assert.True(t, u.Mutates.IsEmpty(), tt.src)
			continue
		}
		assert.Equal(t, tt.want, u.Mutates.Names(), tt.src)
	}
}

func TestUsage_DestructuringAssignment(t *testing.T) {
	u := parseOne(t, `[a, b] = pair;`).Usage

	assert.Equal(t, []string{"a", "b"}, u.Writes.Names())
	assert.Equal(t, []string{"pair"}, u.Reads.Names())
}

func TestUsage_DestructuringDeclaration(t *testing.T) {
	u := parseOne(t, `const { a, b: c, ...rest } = source;`).Usage

	assert.Equal(t, []string{"a", "c", "rest"}, u.Decls.Names())
	assert.Equal(t, []string{"source"}, u.Reads.Names())
}

func TestUsage_CallIsSideEffect(t *testing.T) {
	u := parseOne(t, `console.log(x);`).Usage

	assert.Equal(t, []string{"console", "x"}, u.Reads.Names())
	assert.True(t, u.SideEffects)
}

func TestUsage_ClosureIsEventual(t *testing.T) {
	u := parseOne(t, `const read = () => shared;`).Usage

	assert.True(t, u.Reads.IsEmpty())
	assert.Equal(t, []string{"shared"}, u.EventualReads.Names())
	assert.False(t, u.SideEffects)
}

func TestUsage_EventualWrite(t *testing.T) {
	u := parseOne(t, `function inc() { count++; }`).Usage

	assert.Equal(t, []string{"inc"}, u.Decls.Names())
	assert.Equal(t, []string{"count"}, u.EventualReads.Names())
	assert.Equal(t, []string{"count"}, u.EventualWrites.Names())
	assert.False(t, u.SideEffects)
	assert.True(t, u.Hoisted)
}

func TestUsage_FunctionLocalsAreResolved(t *testing.T) {
	u := parseOne(t, `function f(a, { b }, ...c) { var d = a + b; let e = c; return d + e + outer; }`).Usage

	assert.Equal(t, []string{"outer"}, u.EventualReads.Names())
	assert.True(t, u.EventualWrites.IsEmpty())
}

func TestUsage_VarHoistingInsideFunction(t *testing.T) {
	u := parseOne(t, `function f() { x = 1; if (ok) { var x; } return x; }`).Usage

	assert.True(t, u.EventualWrites.IsEmpty(), "x is function-scoped")
	assert.Equal(t, []string{"ok"}, u.EventualReads.Names())
}

func TestUsage_BlockShadowing(t *testing.T) {
	u := parseOne(t, `{ const a = 1; use(a); }`).Usage

	assert.Equal(t, []string{"use"}, u.Reads.Names())
	assert.True(t, u.Decls.IsEmpty())
	assert.True(t, u.SideEffects)
}

func TestUsage_VarInTopLevelBlockIsModuleBinding(t *testing.T) {
	u := parseOne(t, `if (flag) { var late = 1; }`).Usage

	assert.Equal(t, []string{"late"}, u.Decls.Names())
	assert.Equal(t, []string{"flag"}, u.Reads.Names())
}

func TestUsage_NamedFunctionExpression(t *testing.T) {
	u := parseOne(t, `const f = function self() { return self; };`).Usage

	assert.Equal(t, []string{"f"}, u.Decls.Names())
	assert.True(t, u.EventualReads.IsEmpty())
}

func TestUsage_Class(t *testing.T) {
	u := parseOne(t, `class A extends B { static s = d; f = e; m() { return c; } }`).Usage

	assert.Equal(t, []string{"A"}, u.Decls.Names())
	assert.Equal(t, []string{"B", "d"}, u.Reads.Names())
	assert.Equal(t, []string{"e", "c"}, u.EventualReads.Names())
	assert.False(t, u.SideEffects)
}

func TestUsage_ClassStaticBlockRunsImmediately(t *testing.T) {
	u := parseOne(t, `class A { static { register(A); } }`).Usage

	assert.True(t, u.Reads.Has("register"))
	assert.True(t, u.SideEffects)
}

func TestUsage_ForOf(t *testing.T) {
	u := parseOne(t, `for (const item of list) { total += item; }`).Usage

	assert.Equal(t, []string{"list", "total"}, u.Reads.Names())
	assert.Equal(t, []string{"total"}, u.Writes.Names())
	assert.True(t, u.Decls.IsEmpty())
	assert.True(t, u.SideEffects)
}

func TestUsage_ForLoop(t *testing.T) {
	u := parseOne(t, `for (let i = 0; i < n; i++) { sum += i; }`).Usage

	assert.Equal(t, []string{"n", "sum"}, u.Reads.Names())
	assert.Equal(t, []string{"sum"}, u.Writes.Names())
}

func TestUsage_TryCatch(t *testing.T) {
	u := parseOne(t, `try { run(); } catch (err) { report(err); }`).Usage

	assert.Equal(t, []string{"run", "report"}, u.Reads.Names())
	assert.True(t, u.SideEffects)
}

func TestUsage_ObjectLiteral(t *testing.T) {
	u := parseOne(t, `const o = { a, b: c, [d]: 1, m() { return e; } };`).Usage

	assert.Equal(t, []string{"a", "c", "d"}, u.Reads.Names())
	assert.Equal(t, []string{"e"}, u.EventualReads.Names())
	assert.False(t, u.SideEffects)
}

func TestUsage_Delete(t *testing.T) {
	u := parseOne(t, `delete cache.key;`).Usage

	assert.True(t, u.SideEffects)
	assert.Equal(t, []string{"cache"}, u.Reads.Names())
}

func TestUsage_TypeofIsPure(t *testing.T) {
	u := parseOne(t, `const t = typeof window;`).Usage

	assert.False(t, u.SideEffects)
	assert.Equal(t, []string{"window"}, u.Reads.Names())
}
