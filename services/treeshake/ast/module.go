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
	"strconv"
	"strings"
)

// PartAttribute is the import attribute key that marks an import of a
// sibling part of the same original module.
const PartAttribute = "__part__"

// DefaultExportLocal is the synthesized binding that holds the value of an
// `export default <expression>` statement.
const DefaultExportLocal = "__default_export__"

// StmtKind classifies a top-level statement.
type StmtKind int

const (
	// StmtNormal is any statement that introduces no module binding.
	StmtNormal StmtKind = iota

	// StmtDeclaration declares module bindings (var/let/const/function/class),
	// including the declaration carried by an export statement.
	StmtDeclaration

	// StmtImport is an import declaration (also used for rewritten re-exports).
	StmtImport

	// StmtExport is an export statement that declares nothing itself:
	// `export { a, b as c }` or `export * from "x"`.
	StmtExport

	// StmtPartImport is a synthesized import of a sibling part.
	StmtPartImport

	// StmtPartExport is a synthesized export list at the end of a part.
	StmtPartExport
)

// String returns the string representation of the StmtKind.
func (k StmtKind) String() string {
	switch k {
	case StmtNormal:
		return "normal"
	case StmtDeclaration:
		return "declaration"
	case StmtImport:
		return "import"
	case StmtExport:
		return "export"
	case StmtPartImport:
		return "part_import"
	case StmtPartExport:
		return "part_export"
	default:
		return "unknown"
	}
}

// Module is a parsed (or synthesized) ECMAScript module: an ordered
// sequence of top-level statements.
type Module struct {
	// URI identifies the module. Parts of one split module share the URI of
	// the module they were split from.
	URI string `json:"uri"`

	// Body holds the top-level statements in source order.
	Body []*Stmt `json:"body"`
}

// Clone returns a copy of the module whose Body slice can be modified
// without affecting m. Statements themselves are shared; they are never
// mutated after parsing.
func (m *Module) Clone() *Module {
	body := make([]*Stmt, len(m.Body))
	copy(body, m.Body)
	return &Module{URI: m.URI, Body: body}
}

// ExportBinding maps a module-local binding to the name it is exported as.
type ExportBinding struct {
	Local    string `json:"local"`
	Exported string `json:"exported"`
}

// String renders the binding as an export specifier.
func (b ExportBinding) String() string {
	if b.Local == b.Exported {
		return b.Local
	}
	return b.Local + " as " + b.Exported
}

// PartImport is a synthesized import of part Part of module URI.
type PartImport struct {
	URI   string   `json:"uri"`
	Part  int      `json:"part"`
	Names []string `json:"names,omitempty"`
}

// String renders the import with the part attribute.
func (p *PartImport) String() string {
	var b strings.Builder
	b.WriteString("import ")
	if len(p.Names) > 0 {
		b.WriteString("{ ")
		b.WriteString(strings.Join(p.Names, ", "))
		b.WriteString(" } from ")
	}
	b.WriteString(strconv.Quote(p.URI))
	b.WriteString(" with { ")
	b.WriteString(PartAttribute)
	b.WriteString(": ")
	b.WriteString(strconv.Quote(strconv.Itoa(p.Part)))
	b.WriteString(" };")
	return b.String()
}

// PartExport is a synthesized export list. Public exports carry the
// module's real export names; internal ones only exist so sibling parts
// can import the bindings.
type PartExport struct {
	Bindings []ExportBinding `json:"bindings"`
	Public   bool            `json:"public"`
}

// String renders the export list.
func (p *PartExport) String() string {
	specs := make([]string, len(p.Bindings))
	for i, b := range p.Bindings {
		specs[i] = b.String()
	}
	return "export { " + strings.Join(specs, ", ") + " };"
}

// Usage holds the identifier facts of one top-level statement.
//
// Description:
//
//	Reads and Writes happen when the statement executes. EventualReads and
//	EventualWrites happen only when a closure created by the statement runs
//	later (function bodies, arrow functions, class methods and instance
//	field initializers). Mutates lists module bindings whose properties the
//	statement assigns when it executes, as in `o.x = 1`; they stay in Reads.
//	Identifiers bound by a nested scope are excluded.
type Usage struct {
	Decls          IdentSet `json:"decls"`
	Reads          IdentSet `json:"reads"`
	Writes         IdentSet `json:"writes"`
	EventualReads  IdentSet `json:"eventual_reads"`
	EventualWrites IdentSet `json:"eventual_writes"`
	Mutates        IdentSet `json:"mutates"`
	SideEffects    bool     `json:"side_effects"`
	Hoisted        bool     `json:"hoisted"`
}

// Stmt is one top-level statement.
type Stmt struct {
	// Kind classifies the statement.
	Kind StmtKind `json:"kind"`

	// Text is the code emitted when the statement is placed in a part.
	// It differs from Source for export statements, which lose their
	// `export` keyword (the export is re-synthesized by the owning part).
	Text string `json:"text"`

	// Source is the original statement text. Empty for synthesized statements.
	Source string `json:"source,omitempty"`

	// StartLine and EndLine are 1-indexed source lines. Zero when synthesized.
	StartLine int `json:"start_line,omitempty"`
	EndLine   int `json:"end_line,omitempty"`

	// Usage holds the identifier facts. Nil for synthesized statements.
	Usage *Usage `json:"usage,omitempty"`

	// Exports lists the names this statement exports from the module.
	Exports []ExportBinding `json:"exports,omitempty"`

	// PartImport is set when Kind is StmtPartImport.
	PartImport *PartImport `json:"part_import,omitempty"`

	// PartExport is set when Kind is StmtPartExport.
	PartExport *PartExport `json:"part_export,omitempty"`
}

// String returns the code for the statement.
func (s *Stmt) String() string {
	switch s.Kind {
	case StmtPartImport:
		if s.PartImport != nil {
			return s.PartImport.String()
		}
	case StmtPartExport:
		if s.PartExport != nil {
			return s.PartExport.String()
		}
	}
	return s.Text
}

// IsLocalExportList reports whether the statement is a plain
// `export { ... }` list without a source. Such lists carry no code; the
// splitter re-synthesizes them from the module's export groups.
func (s *Stmt) IsLocalExportList() bool {
	return s.Kind == StmtExport && len(s.Exports) > 0
}

// NewPartImport creates a synthesized part import statement.
func NewPartImport(uri string, part int, names []string) *Stmt {
	return &Stmt{
		Kind:       StmtPartImport,
		PartImport: &PartImport{URI: uri, Part: part, Names: names},
	}
}

// NewPartExport creates a synthesized export statement.
func NewPartExport(bindings []ExportBinding, public bool) *Stmt {
	return &Stmt{
		Kind:       StmtPartExport,
		PartExport: &PartExport{Bindings: bindings, Public: public},
	}
}

// Print serializes a module back to source text, one statement per line.
func Print(m *Module) string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	for i, s := range m.Body {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s.String())
	}
	return b.String()
}
