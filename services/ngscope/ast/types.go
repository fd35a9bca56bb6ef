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
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync/atomic"
)

// NodeID is the process-wide identity of a Node.
//
// IDs are allocated from a monotonic counter, so a file that is re-parsed
// produces nodes with fresh IDs. Anything keyed by NodeID therefore becomes
// unreachable once the file it came from changes.
type NodeID uint64

// String returns the decimal form of the ID.
func (id NodeID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

var nodeIDSeq atomic.Uint64

func nextNodeID() NodeID {
	return NodeID(nodeIDSeq.Add(1))
}

// NodeKind classifies a Node.
type NodeKind int

const (
	NodeKindUnknown NodeKind = iota
	NodeKindFile
	NodeKindClass
	NodeKindFunction
	NodeKindArrowFunction
	NodeKindMethod
	NodeKindField
	NodeKindParameter
	NodeKindVariable
	NodeKindDecorator
	NodeKindCall
	NodeKindIdentifier
	NodeKindMemberAccess
	NodeKindArray
	NodeKindObject
	NodeKindProperty
	NodeKindSpread
	NodeKindConditional
	NodeKindWrapped
	NodeKindString
	NodeKindNumber
	NodeKindBoolean
	NodeKindLiteral
	NodeKindOther
)

var nodeKindNames = [...]string{
	NodeKindUnknown:       "unknown",
	NodeKindFile:          "file",
	NodeKindClass:         "class",
	NodeKindFunction:      "function",
	NodeKindArrowFunction: "arrow_function",
	NodeKindMethod:        "method",
	NodeKindField:         "field",
	NodeKindParameter:     "parameter",
	NodeKindVariable:      "variable",
	NodeKindDecorator:     "decorator",
	NodeKindCall:          "call",
	NodeKindIdentifier:    "identifier",
	NodeKindMemberAccess:  "member_access",
	NodeKindArray:         "array",
	NodeKindObject:        "object",
	NodeKindProperty:      "property",
	NodeKindSpread:        "spread",
	NodeKindConditional:   "conditional",
	NodeKindWrapped:       "wrapped",
	NodeKindString:        "string",
	NodeKindNumber:        "number",
	NodeKindBoolean:       "boolean",
	NodeKindLiteral:       "literal",
	NodeKindOther:         "other",
}

// String returns the string representation of the NodeKind.
func (k NodeKind) String() string {
	if k >= 0 && int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "unknown"
}

// Modifiers is a bit set of declaration modifiers.
type Modifiers uint32

const (
	ModExported Modifiers = 1 << iota
	ModDefault
	ModStatic
	ModAbstract
	ModAsync
	ModReadonly
	ModDeclare
	ModGetter
	ModSetter
	ModOptional
	ModPrivate
	ModProtected
)

// Has reports whether all bits of m2 are set.
func (m Modifiers) Has(m2 Modifiers) bool {
	return m&m2 == m2
}

// Location identifies a span in a source file.
type Location struct {
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	StartCol  int    `json:"start_col"`
	EndCol    int    `json:"end_col"`
}

// String returns "file:line".
func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.FilePath, l.StartLine)
}

// TypeRef is a declared type annotation.
//
// Only the shape the resolver needs is kept: the referenced name, generic
// arguments, and whether the type is array-like. Text is always the source
// text of the annotation.
type TypeRef struct {
	// Text is the annotation as written, e.g. "ModuleWithProviders<FeatureModule>".
	Text string

	// Name is the referenced type name without qualifier or arguments,
	// e.g. "ModuleWithProviders". Empty for anonymous types (unions, literals).
	Name string

	// Args holds the generic type arguments in order.
	Args []*TypeRef

	// Array is true for T[], Array<T>, ReadonlyArray<T> and tuple types.
	Array bool
}

// IsDynamic reports whether the type is any or unknown.
func (t *TypeRef) IsDynamic() bool {
	if t == nil {
		return false
	}
	return t.Name == "any" || t.Name == "unknown"
}

// Node is a single element of a parsed file.
//
// Description:
//
//	Node is a deliberately small, resolver-oriented view of the tree-sitter
//	syntax tree. Only declarations and the expression shapes used inside
//	decorator metadata are modelled; anything else becomes NodeKindOther.
//	Fields are populated according to Kind (see the per-field notes).
//
// Thread Safety:
//
//	Nodes are immutable after parsing and safe for concurrent reads.
type Node struct {
	ID       NodeID
	Kind     NodeKind
	Location Location
	Parent   *Node

	// Name is the declared name (class, function, method, field, parameter,
	// variable, object property), the identifier text, the accessed property
	// of a member access, or the decorator name.
	Name string

	// Value is the literal value for strings, numbers and booleans, and the
	// raw text (truncated) for NodeKindOther.
	Value string

	Modifiers  Modifiers
	Decorators []*Node

	// Type is the declared type of a variable, field or parameter, or the
	// declared return type of a function-like node.
	Type *TypeRef

	// Heritage is the extends expression of a class.
	Heritage *Node

	// Members holds class members, or the properties of an object literal.
	Members []*Node

	// Params holds the parameters of a function-like node.
	Params []*Node

	// Returns holds every expression returned from a function-like node,
	// not crossing into nested function literals. For an arrow function with
	// an expression body it holds that expression.
	Returns []*Node

	// Locals maps names of variables declared in a function body.
	Locals map[string]*Node

	// Init is the initializer of a variable, field, parameter default or
	// object property.
	Init *Node

	// Expr is the inner expression of a spread, wrapped expression or
	// decorator, and the object of a member access.
	Expr *Node

	// Callee and Args describe a call; decorators store their call
	// arguments in Args as well.
	Callee *Node
	Args   []*Node

	// Elements holds array literal elements.
	Elements []*Node

	// Cond, Then and Else describe a conditional expression.
	Cond, Then, Else *Node
}

// IsFunctionLike reports whether the node is a function, method or arrow function.
func (n *Node) IsFunctionLike() bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case NodeKindFunction, NodeKindArrowFunction, NodeKindMethod:
		return true
	}
	return false
}

// Unwrap strips parentheses, type assertions and non-null assertions.
func (n *Node) Unwrap() *Node {
	for n != nil && n.Kind == NodeKindWrapped {
		n = n.Expr
	}
	return n
}

// Property returns the object literal property with the given name, or nil.
// The last property wins when a name is repeated, like at runtime.
func (n *Node) Property(name string) *Node {
	n = n.Unwrap()
	if n == nil || n.Kind != NodeKindObject {
		return nil
	}
	var found *Node
	for _, m := range n.Members {
		if m.Kind == NodeKindProperty && m.Name == name {
			found = m
		}
	}
	return found
}

// PropertyValue returns the initializer of the named object property, or nil.
func (n *Node) PropertyValue(name string) *Node {
	if p := n.Property(name); p != nil {
		return p.Init
	}
	return nil
}

// StringValue returns the value of a string literal node.
func (n *Node) StringValue() (string, bool) {
	n = n.Unwrap()
	if n == nil || n.Kind != NodeKindString {
		return "", false
	}
	return n.Value, true
}

// BoolValue returns the value of a boolean literal node.
func (n *Node) BoolValue() (bool, bool) {
	n = n.Unwrap()
	if n == nil || n.Kind != NodeKindBoolean {
		return false, false
	}
	return n.Value == "true", true
}

// Decorator returns the first decorator with the given name, or nil.
func (n *Node) Decorator(name string) *Node {
	if n == nil {
		return nil
	}
	for _, d := range n.Decorators {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Member returns the class member with the given name, or nil.
// When static is true only static members match, otherwise only instance members.
func (n *Node) Member(name string, static bool) *Node {
	if n == nil || n.Kind != NodeKindClass {
		return nil
	}
	for _, m := range n.Members {
		if m.Name == name && m.Modifiers.Has(ModStatic) == static {
			return m
		}
	}
	return nil
}

// EnclosingClass returns the nearest ancestor class node, or nil.
func (n *Node) EnclosingClass() *Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Kind == NodeKindClass {
			return p
		}
	}
	return nil
}

// QualifiedName returns "Class.member" for class members and Name otherwise.
func (n *Node) QualifiedName() string {
	if n == nil {
		return ""
	}
	if n.Kind == NodeKindMethod || n.Kind == NodeKindField {
		if cls := n.EnclosingClass(); cls != nil {
			return cls.Name + "." + n.Name
		}
	}
	return n.Name
}

// String returns a short human-readable description used in logs.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(n.Kind.String())
	if n.Name != "" {
		b.WriteString(" ")
		b.WriteString(n.Name)
	}
	b.WriteString(" @ ")
	b.WriteString(n.Location.String())
	return b.String()
}

// Import is a single imported binding.
type Import struct {
	// LocalName is the name the binding has in the importing file.
	LocalName string

	// ImportedName is the exported name in the source module. "default" for
	// default imports and "*" for namespace imports.
	ImportedName string

	// Path is the module specifier as written.
	Path string

	Location Location
}

// IsRelative reports whether the import path is relative to the importing file.
func (i Import) IsRelative() bool {
	return strings.HasPrefix(i.Path, ".")
}

// ReExport is an `export ... from` clause.
type ReExport struct {
	// Names maps exported name to the name in the source module.
	// Nil for `export * from`.
	Names map[string]string

	// Path is the module specifier as written.
	Path string
}

// File is a parsed source file.
//
// Thread Safety:
//
//	Immutable after parsing and safe for concurrent reads.
type File struct {
	Path string
	Hash string

	// Generation is assigned by the Program when the file is added. It
	// increases every time the file is replaced.
	Generation uint64

	Root *Node

	// Declarations maps top-level names to their declaring node (classes,
	// functions and variable declarators).
	Declarations map[string]*Node

	// Exports maps exported names to the local declaration name.
	// The default export is stored under "default".
	Exports map[string]string

	Imports   []Import
	ReExports []ReExport

	// Errors holds non-fatal parse diagnostics.
	Errors []string

	ParsedAtMilli int64
}

// Classes returns all top-level class declarations in source order.
func (f *File) Classes() []*Node {
	if f == nil || f.Root == nil {
		return nil
	}
	var out []*Node
	for _, m := range f.Root.Members {
		if m.Kind == NodeKindClass {
			out = append(out, m)
		}
	}
	return out
}

// SameSurface reports whether a and b declare the same top-level names with
// the same kinds and export them the same way, including every
// `export ... from` clause. Name lookups from other files can only change
// when the surface of a file does. A nil file has an empty surface.
func SameSurface(a, b *File) bool {
	sa, sb := a.surface(), b.surface()
	if !maps.Equal(sa.declared, sb.declared) || !maps.Equal(sa.exports, sb.exports) {
		return false
	}
	if len(sa.reExports) != len(sb.reExports) {
		return false
	}
	for i, re := range sa.reExports {
		other := sb.reExports[i]
		if re.Path != other.Path || (re.Names == nil) != (other.Names == nil) || !maps.Equal(re.Names, other.Names) {
			return false
		}
	}
	return true
}

type fileSurface struct {
	declared  map[string]NodeKind
	exports   map[string]string
	reExports []ReExport
}

func (f *File) surface() fileSurface {
	s := fileSurface{declared: make(map[string]NodeKind), exports: make(map[string]string)}
	if f == nil {
		return s
	}
	for name, d := range f.Declarations {
		s.declared[name] = d.Kind
	}
	if f.Root != nil {
		for _, m := range f.Root.Members {
			if m.Name != "" && m.Modifiers.Has(ModExported) {
				s.exports[m.Name] = m.Name
			}
		}
	}
	maps.Copy(s.exports, f.Exports)
	s.reExports = f.ReExports
	return s
}

// Exported returns the declaration exported under the given name, or nil.
func (f *File) Exported(name string) *Node {
	local, ok := f.Exports[name]
	if !ok {
		return nil
	}
	return f.Declarations[local]
}
