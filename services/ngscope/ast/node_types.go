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

// TypeScript tree-sitter node types used by TypeScriptParser.
//
// Reference: https://github.com/tree-sitter/tree-sitter-typescript
//
// AST shapes the parser relies on:
//
//	export_statement
//	├── decorator*                 (decorators of an exported class)
//	└── class_declaration
//	    ├── decorator*             (decorators of a non-exported class)
//	    ├── name: type_identifier
//	    ├── class_heritage
//	    │   └── extends_clause
//	    │       └── value: identifier | member_expression | call_expression
//	    └── body: class_body
//	        ├── decorator*         (siblings preceding a method_definition)
//	        ├── method_definition
//	        └── public_field_definition
//	            └── decorator*     (children of the field)
const (
	tsNodeProgram = "program"

	// Imports and exports
	tsNodeImportStatement = "import_statement"
	tsNodeImportClause    = "import_clause"
	tsNodeNamespaceImport = "namespace_import"
	tsNodeNamedImports    = "named_imports"
	tsNodeImportSpecifier = "import_specifier"
	tsNodeExportStatement = "export_statement"
	tsNodeExportClause    = "export_clause"
	tsNodeExportSpecifier = "export_specifier"

	// Declarations
	tsNodeFunctionDeclaration          = "function_declaration"
	tsNodeGeneratorFunctionDeclaration = "generator_function_declaration"
	tsNodeClassDeclaration             = "class_declaration"
	tsNodeAbstractClassDeclaration     = "abstract_class_declaration"
	tsNodeClass                        = "class"
	tsNodeLexicalDeclaration           = "lexical_declaration"
	tsNodeVariableDeclaration          = "variable_declaration"
	tsNodeVariableDeclarator           = "variable_declarator"
	tsNodeAmbientDeclaration           = "ambient_declaration"

	// Classes
	tsNodeClassBody               = "class_body"
	tsNodeClassHeritage           = "class_heritage"
	tsNodeExtendsClause           = "extends_clause"
	tsNodeMethodDefinition        = "method_definition"
	tsNodeMethodSignature         = "method_signature"
	tsNodeAbstractMethodSignature = "abstract_method_signature"
	tsNodePublicFieldDefinition   = "public_field_definition"
	tsNodeAccessibilityModifier   = "accessibility_modifier"
	tsNodeDecorator               = "decorator"

	// Functions
	tsNodeFormalParameters    = "formal_parameters"
	tsNodeRequiredParameter   = "required_parameter"
	tsNodeOptionalParameter   = "optional_parameter"
	tsNodeArrowFunction       = "arrow_function"
	tsNodeFunctionExpression  = "function_expression"
	tsNodeFunction            = "function"
	tsNodeGeneratorFunction   = "generator_function"
	tsNodeStatementBlock      = "statement_block"
	tsNodeReturnStatement     = "return_statement"

	// Expressions
	tsNodeIdentifier                  = "identifier"
	tsNodePropertyIdentifier          = "property_identifier"
	tsNodeShorthandPropertyIdentifier = "shorthand_property_identifier"
	tsNodeMemberExpression            = "member_expression"
	tsNodeCallExpression              = "call_expression"
	tsNodeArguments                   = "arguments"
	tsNodeArray                       = "array"
	tsNodeObject                      = "object"
	tsNodePair                        = "pair"
	tsNodeSpreadElement               = "spread_element"
	tsNodeTernaryExpression           = "ternary_expression"
	tsNodeParenthesizedExpression     = "parenthesized_expression"
	tsNodeAsExpression                = "as_expression"
	tsNodeSatisfiesExpression         = "satisfies_expression"
	tsNodeNonNullExpression           = "non_null_expression"
	tsNodeString                      = "string"
	tsNodeStringFragment              = "string_fragment"
	tsNodeTemplateString              = "template_string"
	tsNodeTemplateSubstitution        = "template_substitution"
	tsNodeNumber                      = "number"
	tsNodeTrue                        = "true"
	tsNodeFalse                       = "false"
	tsNodeNull                        = "null"
	tsNodeUndefined                   = "undefined"
	tsNodeComment                     = "comment"

	// Types
	tsNodeTypeAnnotation          = "type_annotation"
	tsNodeTypeIdentifier          = "type_identifier"
	tsNodeNestedTypeIdentifier    = "nested_type_identifier"
	tsNodeGenericType             = "generic_type"
	tsNodeTypeArguments           = "type_arguments"
	tsNodeArrayType               = "array_type"
	tsNodeTupleType               = "tuple_type"
	tsNodeReadonlyType            = "readonly_type"
	tsNodePredefinedType          = "predefined_type"
	tsNodeParenthesizedType       = "parenthesized_type"
)
