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

// tree-sitter-javascript node types.
const (
	jsNodeProgram                  = "program"
	jsNodeComment                  = "comment"
	jsNodeHashBangLine             = "hash_bang_line"
	jsNodeEmptyStatement           = "empty_statement"
	jsNodeError                    = "ERROR"
	jsNodeImportStatement          = "import_statement"
	jsNodeImportClause             = "import_clause"
	jsNodeNamespaceImport          = "namespace_import"
	jsNodeNamedImports             = "named_imports"
	jsNodeImportSpecifier          = "import_specifier"
	jsNodeImport                   = "import"
	jsNodeExportStatement          = "export_statement"
	jsNodeExportClause             = "export_clause"
	jsNodeExportSpecifier          = "export_specifier"
	jsNodeNamespaceExport          = "namespace_export"
	jsNodeDefault                  = "default"
	jsNodeFunctionDeclaration      = "function_declaration"
	jsNodeGeneratorFunctionDecl    = "generator_function_declaration"
	jsNodeFunction                 = "function"
	jsNodeFunctionExpression       = "function_expression"
	jsNodeGeneratorFunction        = "generator_function"
	jsNodeArrowFunction            = "arrow_function"
	jsNodeClassDeclaration         = "class_declaration"
	jsNodeClass                    = "class"
	jsNodeClassHeritage            = "class_heritage"
	jsNodeClassBody                = "class_body"
	jsNodeClassStaticBlock         = "class_static_block"
	jsNodeMethodDefinition         = "method_definition"
	jsNodeFieldDefinition          = "field_definition"
	jsNodeDecorator                = "decorator"
	jsNodeStatic                   = "static"
	jsNodeLexicalDeclaration       = "lexical_declaration"
	jsNodeVariableDeclaration      = "variable_declaration"
	jsNodeVariableDeclarator       = "variable_declarator"
	jsNodeExpressionStatement      = "expression_statement"
	jsNodeStatementBlock           = "statement_block"
	jsNodeForStatement             = "for_statement"
	jsNodeForInStatement           = "for_in_statement"
	jsNodeWhileStatement           = "while_statement"
	jsNodeDoStatement              = "do_statement"
	jsNodeWithStatement            = "with_statement"
	jsNodeCatchClause              = "catch_clause"
	jsNodeLabeledStatement         = "labeled_statement"
	jsNodeThrowStatement           = "throw_statement"
	jsNodeDebuggerStatement        = "debugger_statement"
	jsNodeIdentifier               = "identifier"
	jsNodeShorthandPropertyIdent   = "shorthand_property_identifier"
	jsNodeShorthandPropertyPattern = "shorthand_property_identifier_pattern"
	jsNodePropertyIdentifier       = "property_identifier"
	jsNodePrivatePropertyIdent     = "private_property_identifier"
	jsNodeStatementIdentifier      = "statement_identifier"
	jsNodeComputedPropertyName     = "computed_property_name"
	jsNodeThis                     = "this"
	jsNodeSuper                    = "super"
	jsNodeString                   = "string"
	jsNodeStringFragment           = "string_fragment"
	jsNodeNumber                   = "number"
	jsNodeRegex                    = "regex"
	jsNodeMetaProperty             = "meta_property"
	jsNodeAssignmentExpression     = "assignment_expression"
	jsNodeAugmentedAssignment      = "augmented_assignment_expression"
	jsNodeUpdateExpression         = "update_expression"
	jsNodeUnaryExpression          = "unary_expression"
	jsNodeCallExpression           = "call_expression"
	jsNodeNewExpression            = "new_expression"
	jsNodeAwaitExpression          = "await_expression"
	jsNodeYieldExpression          = "yield_expression"
	jsNodeParenthesizedExpression  = "parenthesized_expression"
	jsNodeMemberExpression         = "member_expression"
	jsNodeSubscriptExpression      = "subscript_expression"
	jsNodeObjectPattern            = "object_pattern"
	jsNodeArrayPattern             = "array_pattern"
	jsNodePairPattern              = "pair_pattern"
	jsNodeAssignmentPattern        = "assignment_pattern"
	jsNodeObjectAssignmentPattern  = "object_assignment_pattern"
	jsNodeRestPattern              = "rest_pattern"
)
