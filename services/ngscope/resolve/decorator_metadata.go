// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"strings"

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
	"github.com/AleutianAI/ngscope/services/ngscope/entity"
)

// maxLiteralHops bounds how many references are followed to reach a
// metadata literal.
const maxLiteralHops = 8

// ReadPropertyInfo reads the public name and required flag from an
// @Input or @Output decorator on the member memberName.
//
// Description:
//
//	Accepted argument shapes are none, a string alias, an options object
//	{alias?, required?}, or a string alias followed by an options object.
//	Anything else is ignored: the name defaults to memberName and required
//	to false.
func ReadPropertyInfo(dec *ast.Node, memberName string) entity.PropertyInfo {
	info := entity.PropertyInfo{Name: memberName}
	if dec == nil {
		return info
	}
	for _, arg := range dec.Args {
		arg = arg.Unwrap()
		switch {
		case arg == nil:
		case arg.Kind == ast.NodeKindString:
			if arg.Value != "" {
				info.Name = arg.Value
			}
		case arg.Kind == ast.NodeKindObject:
			if alias, ok := arg.PropertyValue("alias").StringValue(); ok && alias != "" {
				info.Name = alias
			}
			if required, ok := arg.PropertyValue("required").BoolValue(); ok {
				info.Required = required
			}
		}
	}
	return info
}

// ParseMapping splits a legacy "source: alias" mapping on the first colon.
// Both sides are trimmed; without a colon the alias is the source.
func ParseMapping(s string) (source, alias string) {
	source, alias, found := strings.Cut(s, ":")
	source = strings.TrimSpace(source)
	if !found {
		return source, source
	}
	if alias = strings.TrimSpace(alias); alias == "" {
		alias = source
	}
	return source, alias
}

// legacyMapping is the class-level inputs/outputs array of a directive:
// source member name to PropertyInfo, in first-seen order.
type legacyMapping struct {
	order []string
	infos map[string]entity.PropertyInfo
}

func (m *legacyMapping) put(source string, info entity.PropertyInfo) {
	if _, ok := m.infos[source]; !ok {
		m.order = append(m.order, source)
	}
	m.infos[source] = info
}

// take removes and returns the entry for source.
func (m *legacyMapping) take(source string) (entity.PropertyInfo, bool) {
	info, ok := m.infos[source]
	if ok {
		delete(m.infos, source)
	}
	return info, ok
}

// remaining returns the unconsumed entries in first-seen order.
func (m *legacyMapping) remaining() []string {
	var out []string
	for _, source := range m.order {
		if _, ok := m.infos[source]; ok {
			out = append(out, source)
		}
	}
	return out
}

// metadataReader reads decorator metadata for one memoized computation.
//
// Description:
//
//	Metadata values may sit behind constants, spreads and factory calls in
//	other files. The reader records every node it follows and every file
//	its lookups consult, so a result built from what it read is invalidated
//	when any of them change.
//
// Thread Safety:
//
//	Not safe for concurrent use. Create one per computation.
type metadataReader struct {
	lookup ast.Lookup
	trace  *ast.Trace
	nodes  []*ast.Node
}

func (r *Resolver) newReader() *metadataReader {
	trace := &ast.Trace{}
	return &metadataReader{lookup: r.program.Lookup(trace), trace: trace}
}

// dependencies returns the followed nodes and the consulted file roots.
func (m *metadataReader) dependencies() []*ast.Node {
	out := make([]*ast.Node, 0, len(m.nodes)+len(m.trace.Dependencies()))
	out = append(out, m.nodes...)
	return append(out, m.trace.Dependencies()...)
}

func (m *metadataReader) follow(n *ast.Node) {
	m.nodes = append(m.nodes, n)
}

// readLegacyMapping parses the inputs or outputs array of a decorator
// literal. Later entries for the same source replace earlier ones.
func (m *metadataReader) readLegacyMapping(literal *ast.Node, kind entity.PropertyKind) *legacyMapping {
	out := &legacyMapping{infos: make(map[string]entity.PropertyInfo)}
	for _, el := range m.literalElements(literal.PropertyValue(kind.MetadataKey())) {
		switch el.Kind {
		case ast.NodeKindString:
			source, alias := ParseMapping(el.Value)
			if source != "" {
				out.put(source, entity.PropertyInfo{Name: alias})
			}
		case ast.NodeKindObject:
			source, ok := el.PropertyValue("name").StringValue()
			if !ok || source == "" {
				continue
			}
			info := entity.PropertyInfo{Name: source}
			if alias, ok := el.PropertyValue("alias").StringValue(); ok && alias != "" {
				info.Name = alias
			}
			if required, ok := el.PropertyValue("required").BoolValue(); ok {
				info.Required = required
			}
			out.put(source, info)
		}
	}
	return out
}

// literalElements flattens an array expression into its leaf elements,
// following references to constant arrays and spreads. Elements that are
// references are resolved to their initializers.
func (m *metadataReader) literalElements(expr *ast.Node) []*ast.Node {
	var out []*ast.Node
	seen := make(map[ast.NodeID]bool)
	var walk func(n *ast.Node, hops int)
	walk = func(n *ast.Node, hops int) {
		n = n.Unwrap()
		if n == nil || hops > maxLiteralHops || seen[n.ID] {
			return
		}
		seen[n.ID] = true
		m.follow(n)
		switch n.Kind {
		case ast.NodeKindArray:
			for _, el := range n.Elements {
				walk(el, hops)
			}
		case ast.NodeKindSpread:
			walk(n.Expr, hops)
		case ast.NodeKindIdentifier, ast.NodeKindMemberAccess:
			if d := m.lookup.Resolve(n); d != nil {
				walk(d, hops+1)
			}
		case ast.NodeKindVariable, ast.NodeKindField, ast.NodeKindProperty:
			walk(n.Init, hops+1)
		default:
			out = append(out, n)
		}
	}
	walk(expr, 0)
	return out
}

// stringList reads a string or an array of strings.
func (m *metadataReader) stringList(expr *ast.Node) []string {
	var out []string
	for _, el := range m.literalElements(expr) {
		if s, ok := el.StringValue(); ok {
			out = append(out, s)
		}
	}
	return out
}

// stringValue reads a string literal, following constant references.
func (m *metadataReader) stringValue(expr *ast.Node) (string, bool) {
	values := m.stringList(expr)
	if len(values) != 1 {
		return "", false
	}
	return values[0], true
}

// boolValue reads a boolean literal, following constant references.
func (m *metadataReader) boolValue(expr *ast.Node) (bool, bool) {
	values := m.literalElements(expr)
	if len(values) != 1 {
		return false, false
	}
	return values[0].BoolValue()
}

// decoratorLiteral returns the object literal holding a decorator's
// metadata, following references to constants and factory functions.
// Returns nil when none can be found.
func (m *metadataReader) decoratorLiteral(dec *ast.Node) *ast.Node {
	if dec == nil || len(dec.Args) == 0 {
		return nil
	}
	return m.objectLiteral(dec.Args[0])
}

func (m *metadataReader) objectLiteral(n *ast.Node) *ast.Node {
	for hops := 0; hops <= maxLiteralHops; hops++ {
		n = n.Unwrap()
		if n == nil {
			return nil
		}
		m.follow(n)
		switch {
		case n.Kind == ast.NodeKindObject:
			return n
		case n.Kind == ast.NodeKindIdentifier || n.Kind == ast.NodeKindMemberAccess:
			n = m.lookup.Resolve(n)
		case n.Kind == ast.NodeKindVariable || n.Kind == ast.NodeKindField || n.Kind == ast.NodeKindProperty:
			n = n.Init
		case n.Kind == ast.NodeKindCall:
			n = m.lookup.ResolveCallee(n)
		case n.IsFunctionLike():
			if len(n.Returns) == 0 {
				return nil
			}
			n = n.Returns[0]
		default:
			return nil
		}
	}
	return nil
}
