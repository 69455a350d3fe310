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
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("aleutian.treeshake.ast")

// JavaScriptParser turns ECMAScript module source into a statement sequence.
//
// Description:
//
//	JavaScriptParser uses tree-sitter to parse module source and splits the
//	program into top-level statements. For every statement it records the
//	module bindings it declares, reads and writes (synchronously and
//	eventually, through closures) and whether executing it has side effects.
//	Export statements are normalized so that a part can emit the statement
//	without its `export` keyword and re-export the binding under its name.
//
// Thread Safety:
//
//	JavaScriptParser is safe for concurrent use. Each Parse call creates its
//	own tree-sitter parser instance.
//
// Example:
//
//	parser := NewJavaScriptParser()
//	mod, err := parser.Parse(ctx, content, "entry.js")
//	if err != nil {
//	    return fmt.Errorf("parse: %w", err)
//	}
//	fmt.Println(len(mod.Body))
type JavaScriptParser struct {
	options JavaScriptParserOptions
}

// JavaScriptParserOptions configures JavaScriptParser behavior.
type JavaScriptParserOptions struct {
	// MaxFileSize is the maximum file size in bytes to parse.
	// Files larger than this return ErrFileTooLarge.
	// Default: 10MB
	MaxFileSize int
}

// DefaultJavaScriptParserOptions returns the default options.
func DefaultJavaScriptParserOptions() JavaScriptParserOptions {
	return JavaScriptParserOptions{
		MaxFileSize: 10 * 1024 * 1024, // 10MB
	}
}

// JavaScriptParserOption is a functional option for configuring JavaScriptParser.
type JavaScriptParserOption func(*JavaScriptParserOptions)

// WithMaxFileSize sets the maximum file size for parsing.
func WithMaxFileSize(size int) JavaScriptParserOption {
	return func(o *JavaScriptParserOptions) {
		if size > 0 {
			o.MaxFileSize = size
		}
	}
}

// NewJavaScriptParser creates a new JavaScriptParser with the given options.
func NewJavaScriptParser(opts ...JavaScriptParserOption) *JavaScriptParser {
	options := DefaultJavaScriptParserOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &JavaScriptParser{options: options}
}

// Parse parses module source into a Module.
//
// Description:
//
//	Parses content with tree-sitter and converts every top-level statement
//	(comments excluded) into a Stmt with its identifier usage.
//
// Inputs:
//
//	ctx     - Context for cancellation. Checked before and after parsing.
//	content - Raw module source bytes. Must be valid UTF-8.
//	uri     - Identity of the module. Stored on the result.
//
// Outputs:
//
//	*Module - The statement sequence. Never nil on success.
//	error   - ErrFileTooLarge, ErrInvalidContent, ErrSyntax, or a context error.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *JavaScriptParser) Parse(ctx context.Context, content []byte, uri string) (*Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if len(content) > p.options.MaxFileSize {
		return nil, ErrFileTooLarge
	}
	if !utf8.Valid(content) {
		return nil, ErrInvalidContent
	}

	ctx, span := tracer.Start(ctx, "JavaScriptParser.Parse")
	defer span.End()

	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	root := tree.RootNode()
	if root.HasError() {
		if bad := firstErrorNode(root); bad != nil {
			return nil, fmt.Errorf("%w in %s at line %d: %q", ErrSyntax, uri,
				int(bad.StartPoint().Row)+1, truncate(bad.Content(content), 40))
		}
		return nil, fmt.Errorf("%w in %s", ErrSyntax, uri)
	}

	mod := &Module{URI: uri, Body: make([]*Stmt, 0, root.NamedChildCount())}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		switch node.Type() {
		case jsNodeComment, jsNodeHashBangLine, jsNodeEmptyStatement:
			continue
		}
		mod.Body = append(mod.Body, p.buildStmt(node, content))
	}

	span.SetAttributes(
		attribute.String("uri", uri),
		attribute.Int("statements", len(mod.Body)),
	)

	return mod, nil
}

// buildStmt converts one top-level node into a Stmt.
func (p *JavaScriptParser) buildStmt(node *sitter.Node, content []byte) *Stmt {
	src := node.Content(content)
	stmt := &Stmt{
		Kind:      StmtNormal,
		Text:      src,
		Source:    src,
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Usage:     &Usage{},
	}

	switch node.Type() {
	case jsNodeImportStatement:
		stmt.Kind = StmtImport
		collectUsage(node, content, stmt.Usage)

	case jsNodeExportStatement:
		p.buildExport(node, content, stmt)

	case jsNodeFunctionDeclaration, jsNodeGeneratorFunctionDecl:
		stmt.Kind = StmtDeclaration
		collectUsage(node, content, stmt.Usage)
		stmt.Usage.Hoisted = true

	case jsNodeLexicalDeclaration, jsNodeVariableDeclaration, jsNodeClassDeclaration:
		stmt.Kind = StmtDeclaration
		collectUsage(node, content, stmt.Usage)

	default:
		collectUsage(node, content, stmt.Usage)
	}

	return stmt
}

// buildExport normalizes an export statement.
//
// Description:
//
//	export <declaration>            -> the declaration, exporting its names
//	export default <named decl>     -> the declaration, exporting it as default
//	export default <expression>     -> const __default_export__ = <expression>;
//	export { a as b } from "x"      -> import { a as __reexport_b__ } from "x";
//	export * as ns from "x"         -> import * as __reexport_ns__ from "x";
//	export * from "x"               -> kept verbatim
//	export { a, b as c }            -> kept as an export list (no code)
func (p *JavaScriptParser) buildExport(node *sitter.Node, content []byte, stmt *Stmt) {
	decl := node.ChildByFieldName("declaration")
	value := node.ChildByFieldName("value")
	source := node.ChildByFieldName("source")
	isDefault := hasChildOfType(node, jsNodeDefault)

	if decl != nil {
		collectUsage(decl, content, stmt.Usage)
		names := stmt.Usage.Decls.Names()
		if len(names) > 0 {
			stmt.Kind = StmtDeclaration
			stmt.Text = decl.Content(content)
			if t := decl.Type(); t == jsNodeFunctionDeclaration || t == jsNodeGeneratorFunctionDecl {
				stmt.Usage.Hoisted = true
			}
			if isDefault {
				stmt.Exports = []ExportBinding{{Local: names[0], Exported: "default"}}
				return
			}
			for _, n := range names {
				stmt.Exports = append(stmt.Exports, ExportBinding{Local: n, Exported: n})
			}
			return
		}
		// An anonymous default declaration is exported by value.
		*stmt.Usage = Usage{}
		value = decl
	}

	if value == nil && isDefault {
		value = defaultExportValue(node)
	}

	if value != nil {
		stmt.Kind = StmtDeclaration
		stmt.Text = "const " + DefaultExportLocal + " = " + value.Content(content) + ";"
		collectUsage(value, content, stmt.Usage)
		stmt.Usage.Decls.Add(DefaultExportLocal)
		stmt.Usage.Writes.Add(DefaultExportLocal)
		stmt.Exports = []ExportBinding{{Local: DefaultExportLocal, Exported: "default"}}
		return
	}

	if source != nil {
		p.buildReexport(node, source, content, stmt)
		return
	}

	stmt.Kind = StmtExport
	clause := firstChildOfType(node, jsNodeExportClause)
	if clause == nil {
		return
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		spec := clause.NamedChild(i)
		if spec.Type() != jsNodeExportSpecifier {
			continue
		}
		local, exported := exportSpecifierNames(spec, content)
		if local == "" {
			continue
		}
		stmt.Usage.Reads.Add(local)
		stmt.Exports = append(stmt.Exports, ExportBinding{Local: local, Exported: exported})
	}
}

// buildReexport rewrites `export ... from "x"` into an import of
// synthesized locals so the exported names become ordinary bindings.
func (p *JavaScriptParser) buildReexport(node, source *sitter.Node, content []byte, stmt *Stmt) {
	from := source.Content(content)
	stmt.Kind = StmtImport
	stmt.Usage.SideEffects = true
	stmt.Usage.Hoisted = true

	if clause := firstChildOfType(node, jsNodeExportClause); clause != nil {
		specs := make([]string, 0, clause.NamedChildCount())
		for i := 0; i < int(clause.NamedChildCount()); i++ {
			spec := clause.NamedChild(i)
			if spec.Type() != jsNodeExportSpecifier {
				continue
			}
			imported, exported := exportSpecifierNames(spec, content)
			if imported == "" {
				continue
			}
			local := reexportLocal(exported)
			specs = append(specs, quoteModuleName(imported)+" as "+local)
			stmt.Usage.Decls.Add(local)
			stmt.Usage.Writes.Add(local)
			stmt.Exports = append(stmt.Exports, ExportBinding{Local: local, Exported: exported})
		}
		stmt.Text = "import { " + strings.Join(specs, ", ") + " } from " + from + ";"
		return
	}

	if ns := firstChildOfType(node, jsNodeNamespaceExport); ns != nil && ns.NamedChildCount() > 0 {
		exported := moduleExportName(ns.NamedChild(int(ns.NamedChildCount())-1), content)
		local := reexportLocal(exported)
		stmt.Text = "import * as " + local + " from " + from + ";"
		stmt.Usage.Decls.Add(local)
		stmt.Usage.Writes.Add(local)
		stmt.Exports = []ExportBinding{{Local: local, Exported: exported}}
		return
	}

	// export * from "x": the names are only known to the resolver.
	stmt.Kind = StmtExport
}

// defaultExportValue finds the exported expression of `export default`
// when the grammar did not label it with a field.
func defaultExportValue(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case jsNodeComment, jsNodeExportClause, jsNodeDecorator:
			continue
		}
		return child
	}
	return nil
}

// exportSpecifierNames returns the local (or imported) name and the
// exported name of an export specifier.
func exportSpecifierNames(spec *sitter.Node, content []byte) (string, string) {
	name := spec.ChildByFieldName("name")
	alias := spec.ChildByFieldName("alias")
	if name == nil && spec.NamedChildCount() > 0 {
		name = spec.NamedChild(0)
		if spec.NamedChildCount() > 1 {
			alias = spec.NamedChild(1)
		}
	}
	if name == nil {
		return "", ""
	}
	local := moduleExportName(name, content)
	exported := local
	if alias != nil {
		exported = moduleExportName(alias, content)
	}
	return local, exported
}

// moduleExportName returns an identifier or the contents of a string name.
func moduleExportName(n *sitter.Node, content []byte) string {
	if n.Type() == jsNodeString {
		if frag := firstChildOfType(n, jsNodeStringFragment); frag != nil {
			return frag.Content(content)
		}
		text := n.Content(content)
		if len(text) >= 2 {
			return text[1 : len(text)-1]
		}
		return text
	}
	return n.Content(content)
}

// quoteModuleName quotes a name that is not a valid identifier so it can
// be used as an import specifier.
func quoteModuleName(name string) string {
	if isIdentifier(name) {
		return name
	}
	return "\"" + name + "\""
}

// reexportLocal returns the synthesized local for a re-exported name.
func reexportLocal(exported string) string {
	var b strings.Builder
	b.WriteString("__reexport_")
	for _, r := range exported {
		if r == '_' || r == '$' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	b.WriteString("__")
	return b.String()
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// firstErrorNode returns the first ERROR or MISSING node in document order.
func firstErrorNode(root *sitter.Node) *sitter.Node {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type() == jsNodeError || n.IsMissing() {
			return n
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if child := n.Child(i); child != nil && (child.HasError() || child.IsMissing()) {
				stack = append(stack, child)
			}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
