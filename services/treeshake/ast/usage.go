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
	sitter "github.com/smacker/go-tree-sitter"
)

// scope is one lexical scope nested inside a top-level statement. The
// module scope itself is never pushed: a name that no pushed scope binds
// refers to a module binding (or a global).
type scope struct {
	names    map[string]struct{}
	function bool
}

// usageCollector walks one top-level statement and records which module
// bindings it declares, reads and writes.
//
// Description:
//
//	The walk is eventual inside nested function bodies: accesses there only
//	happen when the closure runs. Side effects are only recorded for code
//	that runs when the statement itself executes.
//
// Thread Safety: Not safe for concurrent use. One collector per statement.
type usageCollector struct {
	content []byte
	usage   *Usage
	scopes  []*scope
}

// collectUsage fills usage with the identifier facts of a top-level node.
func collectUsage(node *sitter.Node, content []byte, usage *Usage) {
	c := &usageCollector{content: content, usage: usage}
	c.walk(node, false)
}

func (c *usageCollector) text(n *sitter.Node) string {
	return n.Content(c.content)
}

func (c *usageCollector) push(function bool) *scope {
	s := &scope{names: make(map[string]struct{}), function: function}
	c.scopes = append(c.scopes, s)
	return s
}

func (c *usageCollector) pop() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

// resolved reports whether name is bound by a nested scope.
func (c *usageCollector) resolved(name string) bool {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if _, ok := c.scopes[i].names[name]; ok {
			return true
		}
	}
	return false
}

func (c *usageCollector) read(name string, eventual bool) {
	if name == "" || c.resolved(name) {
		return
	}
	if eventual {
		c.usage.EventualReads.Add(name)
	} else {
		c.usage.Reads.Add(name)
	}
}

func (c *usageCollector) write(name string, eventual bool) {
	if name == "" || c.resolved(name) {
		return
	}
	if eventual {
		c.usage.EventualWrites.Add(name)
	} else {
		c.usage.Writes.Add(name)
	}
}

func (c *usageCollector) sideEffect(eventual bool) {
	if !eventual {
		c.usage.SideEffects = true
	}
}

// declareModule records a module-level binding. A declaration initializes
// the binding, so it also counts as a write.
func (c *usageCollector) declareModule(name string) {
	c.usage.Decls.Add(name)
	c.usage.Writes.Add(name)
}

// declareLexical binds name in the innermost scope, or at module level
// when the statement opened no scope.
func (c *usageCollector) declareLexical(name string) {
	if len(c.scopes) == 0 {
		c.declareModule(name)
		return
	}
	c.scopes[len(c.scopes)-1].names[name] = struct{}{}
}

// declareVar binds name in the innermost function scope. `var` inside a
// top-level block still declares a module binding.
func (c *usageCollector) declareVar(name string) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if c.scopes[i].function {
			c.scopes[i].names[name] = struct{}{}
			return
		}
	}
	c.declareModule(name)
}

func (c *usageCollector) walkChildren(n *sitter.Node, eventual bool) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c.walk(n.NamedChild(i), eventual)
	}
}

func (c *usageCollector) walk(n *sitter.Node, eventual bool) {
	if n == nil {
		return
	}

	switch n.Type() {
	case jsNodeComment, jsNodeThis, jsNodeSuper, jsNodePropertyIdentifier,
		jsNodePrivatePropertyIdent, jsNodeStatementIdentifier, jsNodeString,
		jsNodeNumber, jsNodeRegex, jsNodeMetaProperty, jsNodeImport,
		jsNodeHashBangLine, jsNodeEmptyStatement:
		return

	case jsNodeIdentifier, jsNodeShorthandPropertyIdent:
		c.read(c.text(n), eventual)

	case jsNodeAssignmentExpression:
		c.sideEffect(eventual)
		c.assignTarget(n.ChildByFieldName("left"), false, eventual)
		c.walk(n.ChildByFieldName("right"), eventual)

	case jsNodeAugmentedAssignment:
		c.sideEffect(eventual)
		c.assignTarget(n.ChildByFieldName("left"), true, eventual)
		c.walk(n.ChildByFieldName("right"), eventual)

	case jsNodeUpdateExpression:
		c.sideEffect(eventual)
		c.assignTarget(n.ChildByFieldName("argument"), true, eventual)

	case jsNodeCallExpression, jsNodeNewExpression, jsNodeAwaitExpression,
		jsNodeYieldExpression, jsNodeThrowStatement, jsNodeDebuggerStatement,
		jsNodeWhileStatement, jsNodeDoStatement, jsNodeWithStatement:
		c.sideEffect(eventual)
		c.walkChildren(n, eventual)

	case jsNodeUnaryExpression:
		if op := n.ChildByFieldName("operator"); op != nil && op.Type() == "delete" {
			c.sideEffect(eventual)
		}
		c.walkChildren(n, eventual)

	case jsNodeVariableDeclaration:
		c.declarators(n, true, eventual)

	case jsNodeLexicalDeclaration:
		c.declarators(n, false, eventual)

	case jsNodeFunctionDeclaration, jsNodeGeneratorFunctionDecl:
		// Nested declarations were bound by the enclosing block's pre-scan.
		if len(c.scopes) == 0 {
			if name := n.ChildByFieldName("name"); name != nil {
				c.declareModule(c.text(name))
			}
		}
		c.function(n)

	case jsNodeFunction, jsNodeFunctionExpression, jsNodeGeneratorFunction, jsNodeArrowFunction:
		c.function(n)

	case jsNodeClassDeclaration:
		if len(c.scopes) == 0 {
			if name := n.ChildByFieldName("name"); name != nil {
				c.declareModule(c.text(name))
			}
		}
		c.class(n, eventual)

	case jsNodeClass:
		c.class(n, eventual)

	case jsNodeMethodDefinition:
		c.method(n, eventual)

	case jsNodeStatementBlock:
		c.block(n, eventual)

	case jsNodeForStatement:
		c.sideEffect(eventual)
		c.push(false)
		c.walkChildren(n, eventual)
		c.pop()

	case jsNodeForInStatement:
		c.forIn(n, eventual)

	case jsNodeCatchClause:
		c.push(false)
		if param := n.ChildByFieldName("parameter"); param != nil {
			c.bindPattern(param, c.declareLexical, eventual)
		}
		c.walk(n.ChildByFieldName("body"), eventual)
		c.pop()

	case jsNodeImportStatement:
		c.importDecl(n)

	case jsNodeLabeledStatement:
		c.walk(n.ChildByFieldName("body"), eventual)

	default:
		c.walkChildren(n, eventual)
	}
}

// declarators handles every variable_declarator of a declaration.
func (c *usageCollector) declarators(n *sitter.Node, isVar bool, eventual bool) {
	bind := c.declareLexical
	if isVar {
		bind = c.declareVar
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		d := n.NamedChild(i)
		if d.Type() != jsNodeVariableDeclarator {
			continue
		}
		c.bindPattern(d.ChildByFieldName("name"), bind, eventual)
		c.walk(d.ChildByFieldName("value"), eventual)
	}
}

// assignTarget records the left-hand side of an assignment or update.
func (c *usageCollector) assignTarget(target *sitter.Node, alsoRead bool, eventual bool) {
	if target == nil {
		return
	}
	switch target.Type() {
	case jsNodeIdentifier:
		name := c.text(target)
		if alsoRead {
			c.read(name, eventual)
		}
		c.write(name, eventual)
	case jsNodeParenthesizedExpression:
		if target.NamedChildCount() > 0 {
			c.assignTarget(target.NamedChild(0), alsoRead, eventual)
		}
	case jsNodeObjectPattern, jsNodeArrayPattern:
		c.bindPattern(target, func(name string) { c.write(name, eventual) }, eventual)
	case jsNodeMemberExpression, jsNodeSubscriptExpression:
		if !eventual {
			if root := memberRoot(target); root != nil {
				if name := c.text(root); !c.resolved(name) {
					c.usage.Mutates.Add(name)
				}
			}
		}
		c.walk(target, eventual)
	default:
		c.walk(target, eventual)
	}
}

// memberRoot returns the identifier a member or subscript chain starts
// from, or nil when it starts from a call, `this` or another expression.
func memberRoot(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case jsNodeIdentifier:
			return n
		case jsNodeMemberExpression, jsNodeSubscriptExpression:
			n = n.ChildByFieldName("object")
		case jsNodeParenthesizedExpression:
			if n.NamedChildCount() == 0 {
				return nil
			}
			n = n.NamedChild(0)
		default:
			return nil
		}
	}
	return nil
}

// bindPattern calls bind for every name a binding pattern introduces and
// walks default values and computed keys as ordinary expressions.
func (c *usageCollector) bindPattern(n *sitter.Node, bind func(string), eventual bool) {
	if n == nil {
		return
	}
	switch n.Type() {
	case jsNodeIdentifier, jsNodeShorthandPropertyPattern:
		bind(c.text(n))
	case jsNodeObjectPattern, jsNodeArrayPattern:
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c.bindPattern(n.NamedChild(i), bind, eventual)
		}
	case jsNodePairPattern:
		if key := n.ChildByFieldName("key"); key != nil && key.Type() == jsNodeComputedPropertyName {
			c.walk(key, eventual)
		}
		c.bindPattern(n.ChildByFieldName("value"), bind, eventual)
	case jsNodeAssignmentPattern, jsNodeObjectAssignmentPattern:
		c.bindPattern(n.ChildByFieldName("left"), bind, eventual)
		c.walk(n.ChildByFieldName("right"), eventual)
	case jsNodeRestPattern:
		if n.NamedChildCount() > 0 {
			c.bindPattern(n.NamedChild(0), bind, eventual)
		}
	case jsNodeComment:
	default:
		c.walk(n, eventual)
	}
}

// function walks a function-like node. Everything inside runs eventually.
func (c *usageCollector) function(n *sitter.Node) {
	fn := c.push(true)
	bindParam := func(name string) { fn.names[name] = struct{}{} }

	switch n.Type() {
	case jsNodeFunction, jsNodeFunctionExpression, jsNodeGeneratorFunction:
		if name := n.ChildByFieldName("name"); name != nil && name.Type() == jsNodeIdentifier {
			bindParam(c.text(name))
		}
	}

	if params := n.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			c.bindPattern(params.NamedChild(i), bindParam, true)
		}
	} else if param := n.ChildByFieldName("parameter"); param != nil {
		c.bindPattern(param, bindParam, true)
	}

	body := n.ChildByFieldName("body")
	if body != nil {
		c.hoistVars(body, fn)
		c.walk(body, true)
	}
	c.pop()
}

// hoistVars binds every `var` declared in body (outside nested functions)
// in the function scope fn before the body is walked.
func (c *usageCollector) hoistVars(body *sitter.Node, fn *scope) {
	stack := []*sitter.Node{body}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n.Type() {
		case jsNodeFunctionDeclaration, jsNodeGeneratorFunctionDecl, jsNodeFunction,
			jsNodeFunctionExpression, jsNodeGeneratorFunction, jsNodeArrowFunction,
			jsNodeMethodDefinition, jsNodeClassBody:
			continue
		case jsNodeVariableDeclaration:
			for i := 0; i < int(n.NamedChildCount()); i++ {
				d := n.NamedChild(i)
				if d.Type() == jsNodeVariableDeclarator {
					for _, name := range c.patternNames(d.ChildByFieldName("name")) {
						fn.names[name] = struct{}{}
					}
				}
			}
		case jsNodeForInStatement:
			if kind := n.ChildByFieldName("kind"); kind != nil && kind.Type() == "var" {
				for _, name := range c.patternNames(n.ChildByFieldName("left")) {
					fn.names[name] = struct{}{}
				}
			}
		}

		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, n.NamedChild(i))
		}
	}
}

// block walks a statement block with its own lexical scope. Lexical
// declarations are bound up front so that uses before the declaration
// resolve to the same binding.
func (c *usageCollector) block(n *sitter.Node, eventual bool) {
	sc := c.push(false)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case jsNodeLexicalDeclaration:
			for j := 0; j < int(child.NamedChildCount()); j++ {
				d := child.NamedChild(j)
				if d.Type() == jsNodeVariableDeclarator {
					for _, name := range c.patternNames(d.ChildByFieldName("name")) {
						sc.names[name] = struct{}{}
					}
				}
			}
		case jsNodeClassDeclaration, jsNodeFunctionDeclaration, jsNodeGeneratorFunctionDecl:
			if name := child.ChildByFieldName("name"); name != nil {
				sc.names[c.text(name)] = struct{}{}
			}
		}
	}
	c.walkChildren(n, eventual)
	c.pop()
}

// class walks a class declaration or expression. The heritage clause,
// computed keys, static fields and static blocks run when the class is
// defined; methods and instance fields run eventually.
func (c *usageCollector) class(n *sitter.Node, eventual bool) {
	sc := c.push(false)
	if name := n.ChildByFieldName("name"); name != nil {
		sc.names[c.text(name)] = struct{}{}
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == jsNodeClassHeritage || child.Type() == jsNodeDecorator {
			c.walk(child, eventual)
		}
	}

	body := n.ChildByFieldName("body")
	if body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			member := body.NamedChild(i)
			switch member.Type() {
			case jsNodeMethodDefinition:
				c.method(member, eventual)
			case jsNodeFieldDefinition:
				if prop := member.ChildByFieldName("property"); prop != nil && prop.Type() == jsNodeComputedPropertyName {
					c.walk(prop, eventual)
				}
				c.walk(member.ChildByFieldName("value"), eventual || !hasChildOfType(member, jsNodeStatic))
			case jsNodeClassStaticBlock:
				if blk := member.ChildByFieldName("body"); blk != nil {
					c.walk(blk, eventual)
				} else {
					c.walkChildren(member, eventual)
				}
			default:
				c.walk(member, eventual)
			}
		}
	}
	c.pop()
}

// method walks a method definition. A computed name is evaluated with the
// enclosing class or object literal.
func (c *usageCollector) method(n *sitter.Node, eventual bool) {
	if name := n.ChildByFieldName("name"); name != nil && name.Type() == jsNodeComputedPropertyName {
		c.walk(name, eventual)
	}
	c.function(n)
}

// forIn walks for-in and for-of loops.
func (c *usageCollector) forIn(n *sitter.Node, eventual bool) {
	c.sideEffect(eventual)
	c.push(false)

	left := n.ChildByFieldName("left")
	if kind := n.ChildByFieldName("kind"); kind != nil {
		bind := c.declareLexical
		if kind.Type() == "var" {
			bind = c.declareVar
		}
		c.bindPattern(left, bind, eventual)
	} else {
		c.assignTarget(left, false, eventual)
	}

	c.walk(n.ChildByFieldName("right"), eventual)
	c.walk(n.ChildByFieldName("body"), eventual)
	c.pop()
}

// importDecl declares the local bindings of a top-level import.
func (c *usageCollector) importDecl(n *sitter.Node) {
	c.usage.SideEffects = true
	c.usage.Hoisted = true
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != jsNodeImportClause {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			part := clause.NamedChild(j)
			switch part.Type() {
			case jsNodeIdentifier:
				c.declareModule(c.text(part))
			case jsNodeNamespaceImport:
				if id := firstChildOfType(part, jsNodeIdentifier); id != nil {
					c.declareModule(c.text(id))
				}
			case jsNodeNamedImports:
				for k := 0; k < int(part.NamedChildCount()); k++ {
					spec := part.NamedChild(k)
					if spec.Type() != jsNodeImportSpecifier {
						continue
					}
					local := spec.ChildByFieldName("alias")
					if local == nil {
						local = spec.ChildByFieldName("name")
					}
					if local != nil {
						c.declareModule(c.text(local))
					}
				}
			}
		}
	}
}

// patternNames returns the names bound by a binding pattern without
// recording any usage.
func (c *usageCollector) patternNames(n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case jsNodeIdentifier, jsNodeShorthandPropertyPattern:
		return []string{c.text(n)}
	case jsNodeObjectPattern, jsNodeArrayPattern:
		var names []string
		for i := 0; i < int(n.NamedChildCount()); i++ {
			names = append(names, c.patternNames(n.NamedChild(i))...)
		}
		return names
	case jsNodePairPattern:
		return c.patternNames(n.ChildByFieldName("value"))
	case jsNodeAssignmentPattern, jsNodeObjectAssignmentPattern:
		return c.patternNames(n.ChildByFieldName("left"))
	case jsNodeRestPattern:
		if n.NamedChildCount() > 0 {
			return c.patternNames(n.NamedChild(0))
		}
	}
	return nil
}

func hasChildOfType(n *sitter.Node, typ string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == typ {
			return true
		}
	}
	return false
}

func firstChildOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child.Type() == typ {
			return child
		}
	}
	return nil
}
