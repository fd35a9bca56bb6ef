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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ctxCheckInterval is how many converted nodes pass between context checks.
const ctxCheckInterval = 100

// Parser turns source content into a File.
type Parser interface {
	Parse(ctx context.Context, content []byte, filePath string) (*File, error)
}

// TypeScriptParserOption configures a TypeScriptParser instance.
type TypeScriptParserOption func(*TypeScriptParser)

// WithTypeScriptMaxFileSize sets the maximum file size the parser will accept.
//
// Parameters:
//   - bytes: Maximum file size in bytes. Non-positive values are ignored.
//
// Example:
//
//	parser := NewTypeScriptParser(WithTypeScriptMaxFileSize(5 * 1024 * 1024))
func WithTypeScriptMaxFileSize(bytes int64) TypeScriptParserOption {
	return func(p *TypeScriptParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// TypeScriptParser converts TypeScript source into the node arena.
//
// Description:
//
//	TypeScriptParser uses tree-sitter to parse a file and converts the parts
//	the resolver needs into Nodes: top-level declarations, class members with
//	their decorators, function bodies (return expressions and locals), imports
//	and exports, and the expression shapes used in decorator metadata.
//	Each Parse call creates its own tree-sitter parser.
//
// Thread Safety:
//
//	TypeScriptParser instances are safe for concurrent use.
//
// Example:
//
//	parser := NewTypeScriptParser()
//	file, err := parser.Parse(ctx, []byte("export class A {}"), "a.ts")
//	if err != nil {
//	    return err
//	}
//	for _, cls := range file.Classes() {
//	    fmt.Println(cls.Name)
//	}
type TypeScriptParser struct {
	maxFileSize int64
}

// NewTypeScriptParser creates a new TypeScriptParser with the given options.
//
// Inputs:
//   - opts: Optional configuration functions (WithTypeScriptMaxFileSize).
//
// Outputs:
//   - *TypeScriptParser: Configured parser instance, never nil.
func NewTypeScriptParser(opts ...TypeScriptParserOption) *TypeScriptParser {
	p := &TypeScriptParser{
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse converts TypeScript source code into a File.
//
// Description:
//
//	The parser is error-tolerant: syntactically invalid code yields a File
//	with whatever could be converted and a diagnostic in File.Errors.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after tree-sitter
//     parsing and periodically during conversion.
//   - content: Raw TypeScript source bytes. Must be valid UTF-8.
//   - filePath: Path of the file, used in locations and import resolution.
//     Should use forward slashes.
//
// Outputs:
//   - *File: The converted file. Generation is left at zero; the Program
//     assigns it.
//   - error: Non-nil for complete failures:
//   - ErrFileTooLarge: Content exceeds maxFileSize
//   - ErrInvalidContent: Content is not valid UTF-8
//   - Context errors: Context was canceled or timed out
//
// Limitations:
//   - Tree-sitter parsing itself cannot be interrupted mid-parse.
//   - Interfaces, enums and type aliases are not converted.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *TypeScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*File, error) {
	ctx, span := startParseSpan(ctx, filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	if strings.HasSuffix(filePath, ".tsx") {
		parser.SetLanguage(tsx.GetLanguage())
	} else {
		parser.SetLanguage(typescript.GetLanguage())
	}

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	b := &fileBuilder{
		ctx:     ctx,
		content: content,
		file: &File{
			Path:          filePath,
			Hash:          hex.EncodeToString(hash[:]),
			Declarations:  make(map[string]*Node),
			Exports:       make(map[string]string),
			ParsedAtMilli: time.Now().UnixMilli(),
		},
	}

	rootNode := tree.RootNode()
	b.file.Root = &Node{ID: nextNodeID(), Kind: NodeKindFile, Name: filePath, Location: Location{FilePath: filePath}}
	if rootNode == nil {
		b.file.Errors = append(b.file.Errors, "tree-sitter returned nil root node")
		return b.file, nil
	}
	b.file.Root.Location = b.location(rootNode)

	if rootNode.HasError() {
		b.file.Errors = append(b.file.Errors, "source contains syntax errors")
	}

	for i := 0; i < int(rootNode.ChildCount()); i++ {
		b.processStatement(rootNode.Child(i), nil, 0)
		if b.err != nil {
			break
		}
	}

	if b.err != nil {
		recordParseMetrics(time.Since(start), b.nodes, false)
		return nil, fmt.Errorf("parse canceled during conversion: %w", b.err)
	}

	setParseSpanResult(span, b.nodes, len(b.file.Errors))
	recordParseMetrics(time.Since(start), b.nodes, true)

	return b.file, nil
}

// Extensions returns the file extensions this parser handles.
func (p *TypeScriptParser) Extensions() []string {
	return []string{".ts", ".tsx", ".mts", ".cts"}
}

// fileBuilder holds the state of one conversion.
type fileBuilder struct {
	ctx     context.Context
	content []byte
	file    *File
	nodes   int
	err     error
}

func (b *fileBuilder) newNode(kind NodeKind, ts *sitter.Node, parent *Node) *Node {
	b.nodes++
	if b.nodes%ctxCheckInterval == 0 && b.err == nil {
		b.err = b.ctx.Err()
	}
	return &Node{
		ID:       nextNodeID(),
		Kind:     kind,
		Parent:   parent,
		Location: b.location(ts),
	}
}

func (b *fileBuilder) location(ts *sitter.Node) Location {
	return Location{
		FilePath:  b.file.Path,
		StartLine: int(ts.StartPoint().Row) + 1,
		EndLine:   int(ts.EndPoint().Row) + 1,
		StartCol:  int(ts.StartPoint().Column),
		EndCol:    int(ts.EndPoint().Column),
	}
}

func (b *fileBuilder) text(ts *sitter.Node) string {
	if ts == nil {
		return ""
	}
	return string(b.content[ts.StartByte():ts.EndByte()])
}

// firstNamedChild returns the first named child that is not a comment.
func firstNamedChild(ts *sitter.Node) *sitter.Node {
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		child := ts.NamedChild(i)
		if child.Type() != tsNodeComment {
			return child
		}
	}
	return nil
}

// lastNamedChild returns the last named child that is not a comment.
func lastNamedChild(ts *sitter.Node) *sitter.Node {
	for i := int(ts.NamedChildCount()) - 1; i >= 0; i-- {
		child := ts.NamedChild(i)
		if child.Type() != tsNodeComment {
			return child
		}
	}
	return nil
}

// =============================================================================
// Statements
// =============================================================================

// processStatement converts a top-level statement.
func (b *fileBuilder) processStatement(ts *sitter.Node, decorators []*sitter.Node, mods Modifiers) {
	root := b.file.Root
	switch ts.Type() {
	case tsNodeImportStatement:
		b.processImport(ts)
	case tsNodeExportStatement:
		b.processExport(ts)
	case tsNodeClassDeclaration, tsNodeAbstractClassDeclaration:
		b.addDeclaration(b.convertClass(ts, root, decorators, mods))
	case tsNodeFunctionDeclaration, tsNodeGeneratorFunctionDeclaration:
		fn := b.convertFunction(ts, root)
		fn.Modifiers |= mods
		b.addDeclaration(fn)
	case "function_signature":
		fn := b.convertFunction(ts, root)
		fn.Modifiers |= mods | ModDeclare
		b.addDeclaration(fn)
	case tsNodeLexicalDeclaration, tsNodeVariableDeclaration:
		for i := 0; i < int(ts.NamedChildCount()); i++ {
			child := ts.NamedChild(i)
			if child.Type() != tsNodeVariableDeclarator {
				continue
			}
			v := b.convertVariable(child, root)
			v.Modifiers |= mods
			b.addDeclaration(v)
		}
	case tsNodeAmbientDeclaration:
		for i := 0; i < int(ts.NamedChildCount()); i++ {
			b.processStatement(ts.NamedChild(i), decorators, mods|ModDeclare)
		}
	}
}

// addDeclaration records a top-level declaration. An implementation replaces
// an earlier ambient signature of the same name; otherwise the first wins.
func (b *fileBuilder) addDeclaration(n *Node) {
	if n == nil {
		return
	}
	b.file.Root.Members = append(b.file.Root.Members, n)
	if n.Name == "" {
		return
	}
	if existing, ok := b.file.Declarations[n.Name]; !ok || existing.Modifiers.Has(ModDeclare) {
		b.file.Declarations[n.Name] = n
	}
	if n.Modifiers.Has(ModExported) {
		if n.Modifiers.Has(ModDefault) {
			b.file.Exports["default"] = n.Name
		} else {
			b.file.Exports[n.Name] = n.Name
		}
	}
}

// processImport handles ES module import statements.
func (b *fileBuilder) processImport(ts *sitter.Node) {
	source := ts.ChildByFieldName("source")
	if source == nil {
		return
	}
	path := b.stringContent(source)
	loc := b.location(ts)

	for i := 0; i < int(ts.NamedChildCount()); i++ {
		clause := ts.NamedChild(i)
		if clause.Type() != tsNodeImportClause {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			child := clause.NamedChild(j)
			switch child.Type() {
			case tsNodeIdentifier:
				b.file.Imports = append(b.file.Imports, Import{
					LocalName: b.text(child), ImportedName: "default", Path: path, Location: loc,
				})
			case tsNodeNamespaceImport:
				if id := firstNamedChild(child); id != nil {
					b.file.Imports = append(b.file.Imports, Import{
						LocalName: b.text(id), ImportedName: "*", Path: path, Location: loc,
					})
				}
			case tsNodeNamedImports:
				for k := 0; k < int(child.NamedChildCount()); k++ {
					spec := child.NamedChild(k)
					if spec.Type() != tsNodeImportSpecifier {
						continue
					}
					name := b.text(spec.ChildByFieldName("name"))
					local := name
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						local = b.text(alias)
					}
					if name == "" {
						continue
					}
					b.file.Imports = append(b.file.Imports, Import{
						LocalName: local, ImportedName: name, Path: path, Location: loc,
					})
				}
			}
		}
	}
}

// processExport handles export statements, including re-exports.
func (b *fileBuilder) processExport(ts *sitter.Node) {
	var decorators []*sitter.Node
	var clause *sitter.Node
	var source string
	mods := ModExported
	star := false

	for i := 0; i < int(ts.ChildCount()); i++ {
		child := ts.Child(i)
		switch child.Type() {
		case tsNodeDecorator:
			decorators = append(decorators, child)
		case "default":
			mods |= ModDefault
		case "*":
			star = true
		case tsNodeExportClause:
			clause = child
		case tsNodeString:
			source = b.stringContent(child)
		case tsNodeIdentifier:
			if mods.Has(ModDefault) {
				b.file.Exports["default"] = b.text(child)
			}
		case tsNodeClassDeclaration, tsNodeAbstractClassDeclaration,
			tsNodeFunctionDeclaration, tsNodeGeneratorFunctionDeclaration,
			"function_signature", tsNodeLexicalDeclaration,
			tsNodeVariableDeclaration, tsNodeAmbientDeclaration:
			b.processStatement(child, decorators, mods)
		}
	}

	switch {
	case clause != nil:
		names := make(map[string]string)
		for i := 0; i < int(clause.NamedChildCount()); i++ {
			spec := clause.NamedChild(i)
			if spec.Type() != tsNodeExportSpecifier {
				continue
			}
			local := b.text(spec.ChildByFieldName("name"))
			exported := local
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = b.text(alias)
			}
			if local != "" {
				names[exported] = local
			}
		}
		if source != "" {
			b.file.ReExports = append(b.file.ReExports, ReExport{Names: names, Path: source})
			return
		}
		for exported, local := range names {
			b.file.Exports[exported] = local
		}
	case star && source != "":
		b.file.ReExports = append(b.file.ReExports, ReExport{Path: source})
	}
}

// =============================================================================
// Declarations
// =============================================================================

// convertClass converts a class declaration or class expression.
//
// Decorators of exported classes are children of the export statement and
// arrive in outer; decorators of non-exported classes are children of ts.
func (b *fileBuilder) convertClass(ts *sitter.Node, parent *Node, outer []*sitter.Node, mods Modifiers) *Node {
	cls := b.newNode(NodeKindClass, ts, parent)
	cls.Modifiers = mods
	if ts.Type() == tsNodeAbstractClassDeclaration {
		cls.Modifiers |= ModAbstract
	}
	for _, d := range outer {
		cls.Decorators = append(cls.Decorators, b.convertDecorator(d, cls))
	}
	if name := ts.ChildByFieldName("name"); name != nil {
		cls.Name = b.text(name)
	}

	for i := 0; i < int(ts.NamedChildCount()); i++ {
		child := ts.NamedChild(i)
		switch child.Type() {
		case tsNodeDecorator:
			cls.Decorators = append(cls.Decorators, b.convertDecorator(child, cls))
		case tsNodeClassHeritage:
			cls.Heritage = b.convertHeritage(child, cls)
		case tsNodeClassBody:
			b.convertClassBody(child, cls)
		}
	}
	return cls
}

// convertHeritage returns the extends expression of a class_heritage node.
func (b *fileBuilder) convertHeritage(ts *sitter.Node, cls *Node) *Node {
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		clause := ts.NamedChild(i)
		if clause.Type() != tsNodeExtendsClause {
			continue
		}
		value := clause.ChildByFieldName("value")
		if value == nil {
			value = firstNamedChild(clause)
		}
		if value != nil {
			return b.convertExpr(value, cls)
		}
	}
	return nil
}

// convertClassBody converts class members. Method decorators are siblings
// that precede the method definition.
func (b *fileBuilder) convertClassBody(body *sitter.Node, cls *Node) {
	var pending []*sitter.Node
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		switch child.Type() {
		case tsNodeDecorator:
			pending = append(pending, child)
		case tsNodeMethodDefinition, tsNodeMethodSignature, tsNodeAbstractMethodSignature:
			m := b.convertMethod(child, cls, pending)
			pending = nil
			cls.Members = append(cls.Members, m)
			if m.Name == "constructor" {
				cls.Members = append(cls.Members, parameterProperties(m)...)
			}
		case tsNodePublicFieldDefinition:
			cls.Members = append(cls.Members, b.convertField(child, cls, pending))
			pending = nil
		case tsNodeComment:
		default:
			pending = nil
		}
	}
}

// parameterProperties returns field members declared through constructor
// parameters with an accessibility or readonly modifier.
func parameterProperties(ctor *Node) []*Node {
	var out []*Node
	for _, p := range ctor.Params {
		if p.Modifiers&(ModPrivate|ModProtected|ModReadonly|ModExported) == 0 {
			continue
		}
		out = append(out, &Node{
			ID:        nextNodeID(),
			Kind:      NodeKindField,
			Parent:    ctor.Parent,
			Location:  p.Location,
			Name:      p.Name,
			Type:      p.Type,
			Modifiers: p.Modifiers &^ ModExported,
		})
	}
	return out
}

// convertMethod converts a method definition or signature.
func (b *fileBuilder) convertMethod(ts *sitter.Node, parent *Node, decorators []*sitter.Node) *Node {
	m := b.newNode(NodeKindMethod, ts, parent)
	for _, d := range decorators {
		m.Decorators = append(m.Decorators, b.convertDecorator(d, m))
	}
	for i := 0; i < int(ts.ChildCount()); i++ {
		child := ts.Child(i)
		if !child.IsNamed() {
			m.Modifiers |= tokenModifier(child.Type())
			continue
		}
		switch child.Type() {
		case tsNodeAccessibilityModifier:
			m.Modifiers |= accessibilityModifier(b.text(child))
		case tsNodeDecorator:
			m.Decorators = append(m.Decorators, b.convertDecorator(child, m))
		}
	}
	if ts.Type() == tsNodeAbstractMethodSignature {
		m.Modifiers |= ModAbstract
	}
	m.Name = b.propertyName(ts.ChildByFieldName("name"))
	if params := ts.ChildByFieldName("parameters"); params != nil {
		b.convertParams(params, m)
	}
	if rt := ts.ChildByFieldName("return_type"); rt != nil {
		m.Type = b.convertTypeAnnotation(rt)
	}
	if body := ts.ChildByFieldName("body"); body != nil {
		b.collectBody(body, m)
	}
	return m
}

// convertField converts a public_field_definition.
func (b *fileBuilder) convertField(ts *sitter.Node, cls *Node, decorators []*sitter.Node) *Node {
	f := b.newNode(NodeKindField, ts, cls)
	for _, d := range decorators {
		f.Decorators = append(f.Decorators, b.convertDecorator(d, f))
	}
	for i := 0; i < int(ts.ChildCount()); i++ {
		child := ts.Child(i)
		if !child.IsNamed() {
			f.Modifiers |= tokenModifier(child.Type())
			continue
		}
		switch child.Type() {
		case tsNodeAccessibilityModifier:
			f.Modifiers |= accessibilityModifier(b.text(child))
		case tsNodeDecorator:
			f.Decorators = append(f.Decorators, b.convertDecorator(child, f))
		}
	}
	f.Name = b.propertyName(ts.ChildByFieldName("name"))
	if t := ts.ChildByFieldName("type"); t != nil {
		f.Type = b.convertTypeAnnotation(t)
	}
	if v := ts.ChildByFieldName("value"); v != nil {
		f.Init = b.convertExpr(v, f)
	}
	return f
}

// convertFunction converts a function declaration, signature or expression.
func (b *fileBuilder) convertFunction(ts *sitter.Node, parent *Node) *Node {
	fn := b.newNode(NodeKindFunction, ts, parent)
	if name := ts.ChildByFieldName("name"); name != nil {
		fn.Name = b.text(name)
	}
	for i := 0; i < int(ts.ChildCount()); i++ {
		if child := ts.Child(i); !child.IsNamed() {
			fn.Modifiers |= tokenModifier(child.Type())
		}
	}
	if params := ts.ChildByFieldName("parameters"); params != nil {
		b.convertParams(params, fn)
	}
	if rt := ts.ChildByFieldName("return_type"); rt != nil {
		fn.Type = b.convertTypeAnnotation(rt)
	}
	if body := ts.ChildByFieldName("body"); body != nil {
		b.collectBody(body, fn)
	}
	return fn
}

// convertArrow converts an arrow function.
func (b *fileBuilder) convertArrow(ts *sitter.Node, parent *Node) *Node {
	fn := b.newNode(NodeKindArrowFunction, ts, parent)
	if params := ts.ChildByFieldName("parameters"); params != nil {
		b.convertParams(params, fn)
	} else if param := ts.ChildByFieldName("parameter"); param != nil {
		p := b.newNode(NodeKindParameter, param, fn)
		p.Name = b.text(param)
		fn.Params = append(fn.Params, p)
	}
	if rt := ts.ChildByFieldName("return_type"); rt != nil {
		fn.Type = b.convertTypeAnnotation(rt)
	}
	if body := ts.ChildByFieldName("body"); body != nil {
		b.collectBody(body, fn)
	}
	return fn
}

// convertParams converts formal_parameters into fn.Params.
func (b *fileBuilder) convertParams(ts *sitter.Node, fn *Node) {
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		child := ts.NamedChild(i)
		if child.Type() != tsNodeRequiredParameter && child.Type() != tsNodeOptionalParameter {
			continue
		}
		p := b.newNode(NodeKindParameter, child, fn)
		if child.Type() == tsNodeOptionalParameter {
			p.Modifiers |= ModOptional
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			gc := child.Child(j)
			switch gc.Type() {
			case tsNodeDecorator:
				p.Decorators = append(p.Decorators, b.convertDecorator(gc, p))
			case tsNodeAccessibilityModifier:
				mod := accessibilityModifier(b.text(gc))
				if mod == 0 {
					// public parameter property
					mod = ModExported
				}
				p.Modifiers |= mod
			case "readonly":
				p.Modifiers |= ModReadonly
			}
		}
		if pattern := child.ChildByFieldName("pattern"); pattern != nil {
			p.Name = b.text(pattern)
		}
		if t := child.ChildByFieldName("type"); t != nil {
			p.Type = b.convertTypeAnnotation(t)
		}
		if v := child.ChildByFieldName("value"); v != nil {
			p.Init = b.convertExpr(v, p)
		}
		fn.Params = append(fn.Params, p)
	}
}

// convertVariable converts a variable_declarator.
func (b *fileBuilder) convertVariable(ts *sitter.Node, parent *Node) *Node {
	v := b.newNode(NodeKindVariable, ts, parent)
	v.Name = b.text(ts.ChildByFieldName("name"))
	if t := ts.ChildByFieldName("type"); t != nil {
		v.Type = b.convertTypeAnnotation(t)
	}
	if value := ts.ChildByFieldName("value"); value != nil {
		v.Init = b.convertExpr(value, v)
	}
	return v
}

// collectBody records the return expressions and local declarations of a
// function body. Nested function literals and classes are not entered.
func (b *fileBuilder) collectBody(body *sitter.Node, fn *Node) {
	if body.Type() != tsNodeStatementBlock {
		fn.Returns = append(fn.Returns, b.convertExpr(body, fn))
		return
	}

	stack := []*sitter.Node{body}
	for len(stack) > 0 && b.err == nil {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n.Type() {
		case tsNodeReturnStatement:
			if expr := firstNamedChild(n); expr != nil {
				fn.Returns = append(fn.Returns, b.convertExpr(expr, fn))
			}
			continue
		case tsNodeLexicalDeclaration, tsNodeVariableDeclaration:
			for i := 0; i < int(n.NamedChildCount()); i++ {
				if child := n.NamedChild(i); child.Type() == tsNodeVariableDeclarator {
					b.addLocal(fn, b.convertVariable(child, fn))
				}
			}
			continue
		case tsNodeFunctionDeclaration, tsNodeGeneratorFunctionDeclaration:
			b.addLocal(fn, b.convertFunction(n, fn))
			continue
		case tsNodeArrowFunction, tsNodeFunctionExpression, tsNodeFunction,
			tsNodeGeneratorFunction, tsNodeClass, tsNodeClassDeclaration:
			continue
		}

		// Push in reverse so children are visited in source order.
		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, n.NamedChild(i))
		}
	}
}

func (b *fileBuilder) addLocal(fn *Node, local *Node) {
	if local.Name == "" {
		return
	}
	if fn.Locals == nil {
		fn.Locals = make(map[string]*Node)
	}
	if _, ok := fn.Locals[local.Name]; !ok {
		fn.Locals[local.Name] = local
	}
}

// convertDecorator converts a decorator. The name is the called identifier,
// or the accessed property for qualified decorators such as core.Input.
func (b *fileBuilder) convertDecorator(ts *sitter.Node, parent *Node) *Node {
	d := b.newNode(NodeKindDecorator, ts, parent)
	expr := firstNamedChild(ts)
	if expr == nil {
		return d
	}
	d.Expr = b.convertExpr(expr, d)
	target := d.Expr.Unwrap()
	if target != nil && target.Kind == NodeKindCall {
		d.Args = target.Args
		target = target.Callee.Unwrap()
	}
	if target != nil && (target.Kind == NodeKindIdentifier || target.Kind == NodeKindMemberAccess) {
		d.Name = target.Name
	}
	return d
}

// =============================================================================
// Expressions
// =============================================================================

// convertExpr converts an expression subtree.
func (b *fileBuilder) convertExpr(ts *sitter.Node, parent *Node) *Node {
	if ts == nil {
		return nil
	}
	switch ts.Type() {
	case tsNodeIdentifier, tsNodePropertyIdentifier, tsNodeShorthandPropertyIdentifier, tsNodeTypeIdentifier:
		n := b.newNode(NodeKindIdentifier, ts, parent)
		n.Name = b.text(ts)
		return n

	case tsNodeMemberExpression:
		n := b.newNode(NodeKindMemberAccess, ts, parent)
		n.Expr = b.convertExpr(ts.ChildByFieldName("object"), n)
		n.Name = b.text(ts.ChildByFieldName("property"))
		return n

	case tsNodeCallExpression:
		n := b.newNode(NodeKindCall, ts, parent)
		n.Callee = b.convertExpr(ts.ChildByFieldName("function"), n)
		if args := ts.ChildByFieldName("arguments"); args != nil && args.Type() == tsNodeArguments {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				if arg := args.NamedChild(i); arg.Type() != tsNodeComment {
					n.Args = append(n.Args, b.convertExpr(arg, n))
				}
			}
		}
		return n

	case tsNodeArray:
		n := b.newNode(NodeKindArray, ts, parent)
		for i := 0; i < int(ts.NamedChildCount()); i++ {
			if el := ts.NamedChild(i); el.Type() != tsNodeComment {
				n.Elements = append(n.Elements, b.convertExpr(el, n))
			}
		}
		return n

	case tsNodeObject:
		return b.convertObject(ts, parent)

	case tsNodeSpreadElement:
		n := b.newNode(NodeKindSpread, ts, parent)
		n.Expr = b.convertExpr(firstNamedChild(ts), n)
		return n

	case tsNodeTernaryExpression:
		n := b.newNode(NodeKindConditional, ts, parent)
		n.Cond = b.convertExpr(ts.ChildByFieldName("condition"), n)
		n.Then = b.convertExpr(ts.ChildByFieldName("consequence"), n)
		n.Else = b.convertExpr(ts.ChildByFieldName("alternative"), n)
		return n

	case tsNodeParenthesizedExpression, tsNodeAsExpression, tsNodeSatisfiesExpression, tsNodeNonNullExpression:
		n := b.newNode(NodeKindWrapped, ts, parent)
		n.Expr = b.convertExpr(firstNamedChild(ts), n)
		return n

	case "type_assertion":
		n := b.newNode(NodeKindWrapped, ts, parent)
		n.Expr = b.convertExpr(lastNamedChild(ts), n)
		return n

	case tsNodeString:
		n := b.newNode(NodeKindString, ts, parent)
		n.Value = b.stringContent(ts)
		return n

	case tsNodeTemplateString:
		for i := 0; i < int(ts.NamedChildCount()); i++ {
			if ts.NamedChild(i).Type() == tsNodeTemplateSubstitution {
				return b.otherNode(ts, parent)
			}
		}
		n := b.newNode(NodeKindString, ts, parent)
		n.Value = strings.Trim(b.text(ts), "`")
		return n

	case tsNodeNumber:
		n := b.newNode(NodeKindNumber, ts, parent)
		n.Value = b.text(ts)
		return n

	case tsNodeTrue, tsNodeFalse:
		n := b.newNode(NodeKindBoolean, ts, parent)
		n.Value = ts.Type()
		return n

	case tsNodeNull, tsNodeUndefined:
		n := b.newNode(NodeKindLiteral, ts, parent)
		n.Value = ts.Type()
		return n

	case tsNodeArrowFunction:
		return b.convertArrow(ts, parent)

	case tsNodeFunctionExpression, tsNodeFunction, tsNodeGeneratorFunction:
		return b.convertFunction(ts, parent)

	case tsNodeClass:
		return b.convertClass(ts, parent, nil, 0)
	}
	return b.otherNode(ts, parent)
}

// convertObject converts an object literal.
func (b *fileBuilder) convertObject(ts *sitter.Node, parent *Node) *Node {
	obj := b.newNode(NodeKindObject, ts, parent)
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		child := ts.NamedChild(i)
		switch child.Type() {
		case tsNodePair:
			p := b.newNode(NodeKindProperty, child, obj)
			p.Name = b.propertyName(child.ChildByFieldName("key"))
			p.Init = b.convertExpr(child.ChildByFieldName("value"), p)
			obj.Members = append(obj.Members, p)
		case tsNodeShorthandPropertyIdentifier:
			p := b.newNode(NodeKindProperty, child, obj)
			p.Name = b.text(child)
			p.Init = b.convertExpr(child, p)
			obj.Members = append(obj.Members, p)
		case tsNodeSpreadElement:
			obj.Members = append(obj.Members, b.convertExpr(child, obj))
		case tsNodeMethodDefinition:
			obj.Members = append(obj.Members, b.convertMethod(child, obj, nil))
		}
	}
	return obj
}

func (b *fileBuilder) otherNode(ts *sitter.Node, parent *Node) *Node {
	n := b.newNode(NodeKindOther, ts, parent)
	n.Value = b.text(ts)
	if len(n.Value) > maxRawValueLen {
		n.Value = n.Value[:maxRawValueLen]
	}
	return n
}

// propertyName returns the name of a property key node.
func (b *fileBuilder) propertyName(ts *sitter.Node) string {
	if ts == nil {
		return ""
	}
	if ts.Type() == tsNodeString {
		return b.stringContent(ts)
	}
	return b.text(ts)
}

// stringContent extracts the content from a string node.
func (b *fileBuilder) stringContent(ts *sitter.Node) string {
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		child := ts.NamedChild(i)
		if child.Type() == tsNodeStringFragment {
			return b.text(child)
		}
	}
	raw := b.text(ts)
	return strings.Trim(raw, "\"'`")
}

// =============================================================================
// Types
// =============================================================================

// convertTypeAnnotation converts a type_annotation (": T") into a TypeRef.
func (b *fileBuilder) convertTypeAnnotation(ts *sitter.Node) *TypeRef {
	if ts.Type() != tsNodeTypeAnnotation {
		return &TypeRef{Text: b.text(ts)}
	}
	if t := firstNamedChild(ts); t != nil {
		return b.convertType(t)
	}
	return nil
}

// convertType converts a type node.
func (b *fileBuilder) convertType(ts *sitter.Node) *TypeRef {
	t := &TypeRef{Text: b.text(ts)}
	switch ts.Type() {
	case tsNodeTypeIdentifier, tsNodePredefinedType, tsNodeIdentifier:
		t.Name = t.Text
	case tsNodeNestedTypeIdentifier:
		t.Name = lastSegment(t.Text)
	case tsNodeGenericType:
		t.Name = lastSegment(b.text(ts.ChildByFieldName("name")))
		args := ts.ChildByFieldName("type_arguments")
		if args == nil {
			for i := 0; i < int(ts.NamedChildCount()); i++ {
				if ts.NamedChild(i).Type() == tsNodeTypeArguments {
					args = ts.NamedChild(i)
				}
			}
		}
		if args != nil {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				if arg := args.NamedChild(i); arg.Type() != tsNodeComment {
					t.Args = append(t.Args, b.convertType(arg))
				}
			}
		}
		t.Array = t.Name == "Array" || t.Name == "ReadonlyArray"
	case tsNodeArrayType:
		t.Array = true
		if el := firstNamedChild(ts); el != nil {
			t.Args = []*TypeRef{b.convertType(el)}
		}
	case tsNodeTupleType:
		t.Array = true
	case tsNodeReadonlyType, tsNodeParenthesizedType:
		if inner := firstNamedChild(ts); inner != nil {
			converted := b.convertType(inner)
			converted.Text = t.Text
			return converted
		}
	}
	return t
}

// lastSegment returns the part after the last '.' of a qualified name.
func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// tokenModifier maps an anonymous keyword token to a modifier bit.
func tokenModifier(token string) Modifiers {
	switch token {
	case "static":
		return ModStatic
	case "get":
		return ModGetter
	case "set":
		return ModSetter
	case "async":
		return ModAsync
	case "abstract":
		return ModAbstract
	case "readonly":
		return ModReadonly
	case "declare":
		return ModDeclare
	case "?":
		return ModOptional
	}
	return 0
}

func accessibilityModifier(text string) Modifiers {
	switch text {
	case "private":
		return ModPrivate
	case "protected":
		return ModProtected
	}
	return 0
}

var _ Parser = (*TypeScriptParser)(nil)
