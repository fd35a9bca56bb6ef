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
	"path"
	"strings"
)

// maxAliasDepth bounds how many reference hops a single resolution follows.
const maxAliasDepth = 8

// moduleSuffixes are tried in order when locating a relative import.
var moduleSuffixes = []string{"", ".ts", ".tsx", ".d.ts", "/index.ts", "/index.tsx", "/index.d.ts"}

// Trace records the files that lookups consulted, including files that
// were searched for a name they turned out not to export. A result derived
// from a lookup stays valid only while none of those files change.
//
// A nil *Trace records nothing.
//
// Thread Safety:
//
//	Not safe for concurrent use. Use one Trace per computation.
type Trace struct {
	seen  map[string]bool
	roots []*Node
}

// Dependencies returns the root node of every consulted file, in the order
// the files were first consulted.
func (t *Trace) Dependencies() []*Node {
	if t == nil {
		return nil
	}
	return t.roots
}

// Files returns the paths of the consulted files in the same order.
func (t *Trace) Files() []string {
	out := make([]string, 0, len(t.Dependencies()))
	for _, n := range t.Dependencies() {
		out = append(out, n.Location.FilePath)
	}
	return out
}

func (t *Trace) consult(f *File) {
	if t == nil || f == nil || f.Root == nil || t.seen[f.Path] {
		return
	}
	if t.seen == nil {
		t.seen = make(map[string]bool)
	}
	t.seen[f.Path] = true
	t.roots = append(t.roots, f.Root)
}

// Lookup resolves references on behalf of one computation and records the
// files it consults in a Trace.
type Lookup struct {
	p *Program
	t *Trace
}

// Lookup returns a Lookup that records into t. A nil t records nothing.
func (p *Program) Lookup(t *Trace) Lookup {
	return Lookup{p: p, t: t}
}

// Resolve returns the declaration that an identifier or member access
// refers to, or nil when it cannot be determined.
//
// Description:
//
//	Identifiers are looked up innermost-first: parameters and locals of
//	enclosing functions, then top-level declarations of the file, then
//	imports. An import whose module is part of the program is followed
//	through exports and re-exports; an import whose module is not (a
//	package import) falls back to the unique exported declaration of that
//	name anywhere in the program. Member accesses resolve static class
//	members, object literal properties, and namespace imports.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (p *Program) Resolve(ref *Node) *Node {
	return p.Lookup(nil).Resolve(ref)
}

// Resolve is Program.Resolve, recording every file consulted.
func (l Lookup) Resolve(ref *Node) *Node {
	l.p.mu.RLock()
	defer l.p.mu.RUnlock()
	return l.p.resolveRefLocked(l.t, ref, 0)
}

// ResolveName resolves name as if it were referenced at node from.
func (p *Program) ResolveName(from *Node, name string) *Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.resolveNameLocked(nil, from, name)
}

// ResolveCallee returns the declaration invoked by a call node.
func (p *Program) ResolveCallee(call *Node) *Node {
	return p.Lookup(nil).ResolveCallee(call)
}

// ResolveCallee is Program.ResolveCallee, recording every file consulted.
func (l Lookup) ResolveCallee(call *Node) *Node {
	call = call.Unwrap()
	if call == nil || call.Kind != NodeKindCall {
		return nil
	}
	return l.Resolve(call.Callee)
}

// ResolveHeritage returns the class that cls extends, or nil when there is
// none or it cannot be determined (for example a mixin call).
func (p *Program) ResolveHeritage(cls *Node) *Node {
	return p.Lookup(nil).ResolveHeritage(cls)
}

// ResolveHeritage is Program.ResolveHeritage, recording every file consulted.
func (l Lookup) ResolveHeritage(cls *Node) *Node {
	if cls == nil || cls.Kind != NodeKindClass || cls.Heritage == nil {
		return nil
	}
	l.p.mu.RLock()
	defer l.p.mu.RUnlock()
	return l.p.classOfLocked(l.t, l.p.resolveRefLocked(l.t, cls.Heritage, 0), 0)
}

// ResolveType returns the declaration named by a type reference as seen from
// node from.
func (p *Program) ResolveType(t *TypeRef, from *Node) *Node {
	return p.Lookup(nil).ResolveType(t, from)
}

// ResolveType is Program.ResolveType, recording every file consulted.
func (l Lookup) ResolveType(t *TypeRef, from *Node) *Node {
	if t == nil || t.Name == "" {
		return nil
	}
	l.p.mu.RLock()
	defer l.p.mu.RUnlock()
	if d := l.p.resolveNameLocked(l.t, from, t.Name); d != nil {
		return d
	}
	if strings.Contains(t.Text, ".") {
		return l.p.uniqueExportedLocked(l.t, t.Name)
	}
	return nil
}

// AncestorChain returns the classes cls extends, nearest first, stopping at
// the first class that cannot be resolved or that repeats.
func (p *Program) AncestorChain(cls *Node) []*Node {
	return p.Lookup(nil).AncestorChain(cls)
}

// AncestorChain is Program.AncestorChain, recording every file consulted.
func (l Lookup) AncestorChain(cls *Node) []*Node {
	var chain []*Node
	seen := map[NodeID]bool{cls.ID: true}
	for cur := l.ResolveHeritage(cls); cur != nil; cur = l.ResolveHeritage(cur) {
		if seen[cur.ID] {
			break
		}
		seen[cur.ID] = true
		chain = append(chain, cur)
	}
	return chain
}

func (p *Program) resolveRefLocked(t *Trace, ref *Node, depth int) *Node {
	ref = ref.Unwrap()
	if ref == nil || depth > maxAliasDepth {
		return nil
	}
	switch ref.Kind {
	case NodeKindIdentifier:
		return p.resolveNameLocked(t, ref, ref.Name)
	case NodeKindMemberAccess:
		if obj := ref.Expr.Unwrap(); obj != nil && obj.Kind == NodeKindIdentifier {
			if d, ok := p.namespaceMemberLocked(t, obj, ref.Name); ok {
				return d
			}
		}
		return p.memberOfLocked(t, p.resolveRefLocked(t, ref.Expr, depth+1), ref.Name, depth+1)
	case NodeKindClass, NodeKindFunction, NodeKindArrowFunction, NodeKindVariable:
		return ref
	}
	return nil
}

func (p *Program) resolveNameLocked(t *Trace, from *Node, name string) *Node {
	if from == nil || name == "" {
		return nil
	}
	for s := from.Parent; s != nil; s = s.Parent {
		if !s.IsFunctionLike() {
			continue
		}
		for _, param := range s.Params {
			if param.Name == name {
				return param
			}
		}
		if local, ok := s.Locals[name]; ok && local != from {
			return local
		}
	}

	file := p.files[from.Location.FilePath]
	if file == nil {
		return nil
	}
	t.consult(file)
	if d, ok := file.Declarations[name]; ok {
		return d
	}
	for _, imp := range file.Imports {
		if imp.LocalName != name || imp.ImportedName == "*" {
			continue
		}
		return p.importedLocked(t, file, imp, map[string]bool{})
	}
	return nil
}

// importedLocked resolves one import binding of file.
func (p *Program) importedLocked(t *Trace, file *File, imp Import, visited map[string]bool) *Node {
	if target := p.moduleLocked(file.Path, imp.Path); target != nil {
		return p.exportedLocked(t, target, imp.ImportedName, visited)
	}
	if imp.ImportedName == "default" {
		return nil
	}
	return p.uniqueExportedLocked(t, imp.ImportedName)
}

// namespaceMemberLocked handles `ns.Name` where ns is a namespace import.
func (p *Program) namespaceMemberLocked(t *Trace, ident *Node, name string) (*Node, bool) {
	file := p.files[ident.Location.FilePath]
	if file == nil {
		return nil, false
	}
	t.consult(file)
	if _, shadowed := file.Declarations[ident.Name]; shadowed {
		return nil, false
	}
	for _, imp := range file.Imports {
		if imp.LocalName != ident.Name || imp.ImportedName != "*" {
			continue
		}
		if target := p.moduleLocked(file.Path, imp.Path); target != nil {
			return p.exportedLocked(t, target, name, map[string]bool{}), true
		}
		return p.uniqueExportedLocked(t, name), true
	}
	return nil, false
}

// moduleLocked locates the file a relative module specifier refers to.
func (p *Program) moduleLocked(fromPath, spec string) *File {
	if !strings.HasPrefix(spec, ".") {
		return nil
	}
	base := path.Join(path.Dir(fromPath), spec)
	for _, ext := range []string{".js", ".mjs"} {
		if strings.HasSuffix(base, ext) {
			base = strings.TrimSuffix(base, ext)
			break
		}
	}
	for _, suffix := range moduleSuffixes {
		if f, ok := p.files[base+suffix]; ok {
			return f
		}
	}
	return nil
}

// exportedLocked returns the declaration file exports under name, following
// local export lists, imports that are re-exported, and `export ... from`.
// Every file searched is consulted, whether or not it has the name.
func (p *Program) exportedLocked(t *Trace, file *File, name string, visited map[string]bool) *Node {
	if visited[file.Path] {
		return nil
	}
	visited[file.Path] = true
	t.consult(file)

	if local, ok := file.Exports[name]; ok {
		if d := file.Declarations[local]; d != nil {
			return d
		}
		for _, imp := range file.Imports {
			if imp.LocalName == local && imp.ImportedName != "*" {
				return p.importedLocked(t, file, imp, visited)
			}
		}
	}
	for _, re := range file.ReExports {
		source := name
		if re.Names != nil {
			var ok bool
			if source, ok = re.Names[name]; !ok {
				continue
			}
		} else if name == "default" {
			continue
		}
		target := p.moduleLocked(file.Path, re.Path)
		if target == nil {
			continue
		}
		if d := p.exportedLocked(t, target, source, visited); d != nil {
			return d
		}
	}
	return nil
}

// uniqueExportedLocked returns the only exported declaration with name, or
// nil when there are none or several. Every file exporting the name is
// consulted.
func (p *Program) uniqueExportedLocked(t *Trace, name string) *Node {
	nodes := p.byName[name]
	for _, n := range nodes {
		t.consult(p.files[n.Location.FilePath])
	}
	if len(nodes) == 1 {
		return nodes[0]
	}
	return nil
}

// memberOfLocked resolves a property access on a resolved declaration.
func (p *Program) memberOfLocked(t *Trace, obj *Node, name string, depth int) *Node {
	if obj == nil || depth > maxAliasDepth {
		return nil
	}
	switch obj.Kind {
	case NodeKindClass:
		seen := map[NodeID]bool{}
		for cls := obj; cls != nil && !seen[cls.ID]; cls = p.classOfLocked(t, p.resolveRefLocked(t, cls.Heritage, depth+1), depth+1) {
			seen[cls.ID] = true
			if m := cls.Member(name, true); m != nil {
				return m
			}
			if cls.Heritage == nil {
				break
			}
		}
		return nil
	case NodeKindVariable, NodeKindField, NodeKindProperty:
		init := obj.Init.Unwrap()
		if init == nil {
			return nil
		}
		if init.Kind == NodeKindObject {
			return init.Property(name)
		}
		return p.memberOfLocked(t, p.resolveRefLocked(t, init, depth+1), name, depth+1)
	case NodeKindObject:
		return obj.Property(name)
	}
	return nil
}

// classOfLocked follows variable aliases (`const Base = Other`) to a class.
func (p *Program) classOfLocked(t *Trace, n *Node, depth int) *Node {
	for i := depth; n != nil && i < maxAliasDepth; i++ {
		switch n.Kind {
		case NodeKindClass:
			return n
		case NodeKindVariable:
			init := n.Init.Unwrap()
			if init == nil {
				return nil
			}
			if init.Kind == NodeKindClass {
				return init
			}
			n = p.resolveRefLocked(t, init, i+1)
		default:
			return nil
		}
	}
	return nil
}
