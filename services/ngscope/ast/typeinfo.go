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

// Member is one named instance member of a class type.
//
// A getter and a setter with the same name in the same class form a single
// Member whose Nodes holds both declarations.
type Member struct {
	Name  string
	Owner *Node
	Nodes []*Node
}

// Decorator returns the first decorator with the given name on any of the
// member's declarations.
func (m Member) Decorator(name string) *Node {
	for _, n := range m.Nodes {
		if d := n.Decorator(name); d != nil {
			return d
		}
	}
	return nil
}

// DeclaredType returns the field type, getter return type, or setter
// parameter type, whichever is found first.
func (m Member) DeclaredType() *TypeRef {
	for _, n := range m.Nodes {
		switch {
		case n.Kind == NodeKindField && n.Type != nil:
			return n.Type
		case n.Modifiers.Has(ModGetter) && n.Type != nil:
			return n.Type
		case n.Modifiers.Has(ModSetter) && len(n.Params) > 0 && n.Params[0].Type != nil:
			return n.Params[0].Type
		}
	}
	return nil
}

// ClassMembers returns the instance members of the class type of cls.
//
// Description:
//
//	Members declared on cls come first in declaration order, followed by
//	members inherited through the extends chain that are not shadowed by a
//	member of the same name closer to cls. Static members and constructors
//	are excluded.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (p *Program) ClassMembers(cls *Node) []Member {
	return p.Lookup(nil).ClassMembers(cls)
}

// ClassMembers is Program.ClassMembers, recording every file consulted
// while walking the extends chain.
func (l Lookup) ClassMembers(cls *Node) []Member {
	if cls == nil || cls.Kind != NodeKindClass {
		return nil
	}
	chain := append([]*Node{cls}, l.AncestorChain(cls)...)

	var out []Member
	seen := make(map[string]bool)
	for _, c := range chain {
		index := make(map[string]int)
		var own []Member
		for _, m := range c.Members {
			if m.Name == "" || m.Name == "constructor" || m.Modifiers.Has(ModStatic) || seen[m.Name] {
				continue
			}
			if i, ok := index[m.Name]; ok {
				own[i].Nodes = append(own[i].Nodes, m)
				continue
			}
			index[m.Name] = len(own)
			own = append(own, Member{Name: m.Name, Owner: c, Nodes: []*Node{m}})
		}
		for _, m := range own {
			seen[m.Name] = true
		}
		out = append(out, own...)
	}
	return out
}

// DeclaredType returns the declared type of a variable, field, parameter or
// property, or nil.
func DeclaredType(n *Node) *TypeRef {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case NodeKindVariable, NodeKindField, NodeKindParameter:
		return n.Type
	}
	return nil
}

// ReturnType returns the declared return type of a function-like node, or nil.
func ReturnType(n *Node) *TypeRef {
	if !n.IsFunctionLike() {
		return nil
	}
	return n.Type
}

// IsDynamicallyTyped reports whether n is declared as any or unknown, either
// as its value type or as its return type.
func IsDynamicallyTyped(n *Node) bool {
	if n == nil {
		return false
	}
	if n.IsFunctionLike() {
		return ReturnType(n).IsDynamic()
	}
	return DeclaredType(n).IsDynamic()
}

// ReturnsArrayLike reports whether a function-like node returns an array.
//
// Description:
//
//	A declared return type decides on its own. Without one, the return type
//	is inferred as array-like when any return expression is an array
//	literal, or an identifier bound to an array literal or array-typed value.
func (p *Program) ReturnsArrayLike(fn *Node) bool {
	return p.Lookup(nil).ReturnsArrayLike(fn)
}

// ReturnsArrayLike is Program.ReturnsArrayLike, recording every file
// consulted.
func (l Lookup) ReturnsArrayLike(fn *Node) bool {
	if !fn.IsFunctionLike() {
		return false
	}
	if fn.Type != nil {
		return fn.Type.Array
	}
	for _, r := range fn.Returns {
		if l.isArrayValue(r) {
			return true
		}
	}
	return false
}

func (l Lookup) isArrayValue(expr *Node) bool {
	expr = expr.Unwrap()
	if expr == nil {
		return false
	}
	switch expr.Kind {
	case NodeKindArray:
		return true
	case NodeKindIdentifier, NodeKindMemberAccess:
		d := l.Resolve(expr)
		if d == nil {
			return false
		}
		if t := DeclaredType(d); t != nil {
			return t.Array
		}
		init := d.Init.Unwrap()
		return init != nil && init.Kind == NodeKindArray
	}
	return false
}
