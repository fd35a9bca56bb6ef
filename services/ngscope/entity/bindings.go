// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package entity

import "github.com/AleutianAI/ngscope/services/ngscope/ast"

// PropertyKind distinguishes inputs from outputs.
type PropertyKind int

const (
	PropertyInput PropertyKind = iota + 1
	PropertyOutput
)

// PropertyKinds lists the kinds in resolution order.
var PropertyKinds = []PropertyKind{PropertyInput, PropertyOutput}

// String returns "input" or "output".
func (k PropertyKind) String() string {
	switch k {
	case PropertyInput:
		return "input"
	case PropertyOutput:
		return "output"
	default:
		return "unknown"
	}
}

// DecoratorName returns the member decorator for this kind.
func (k PropertyKind) DecoratorName() string {
	if k == PropertyOutput {
		return "Output"
	}
	return "Input"
}

// MetadataKey returns the class-level metadata array for this kind.
func (k PropertyKind) MetadataKey() string {
	if k == PropertyOutput {
		return "outputs"
	}
	return "inputs"
}

// PropertyInfo is the public name and required flag read from a decorator
// argument or a legacy mapping entry.
type PropertyInfo struct {
	Name     string
	Required bool
}

// Property is one resolved input or output.
type Property struct {
	// Name is the public (possibly aliased) binding name.
	Name string

	Kind     PropertyKind
	Required bool

	// Virtual is true when the property comes only from a class-level
	// mapping entry that matched no member.
	Virtual bool

	// Owner is the class that contributed the property.
	Owner *ast.Node

	// SourceName is the class member the binding writes to.
	SourceName string

	// RawType is the declared type text of the member, if any.
	RawType string
}

// PropertyMap is an insertion-ordered map from public name to Property.
//
// Thread Safety:
//
//	Not safe for concurrent mutation. Maps returned by the resolver are
//	never mutated again and may be read concurrently.
type PropertyMap struct {
	order  []string
	byName map[string]*Property
}

// NewPropertyMap creates an empty map.
func NewPropertyMap() *PropertyMap {
	return &PropertyMap{byName: make(map[string]*Property)}
}

// PutIfAbsent inserts p unless its name is already present. Returns true
// when p was inserted.
func (m *PropertyMap) PutIfAbsent(p *Property) bool {
	if _, ok := m.byName[p.Name]; ok {
		return false
	}
	m.byName[p.Name] = p
	m.order = append(m.order, p.Name)
	return true
}

// Get returns the property with the given public name.
func (m *PropertyMap) Get(name string) (*Property, bool) {
	if m == nil {
		return nil, false
	}
	p, ok := m.byName[name]
	return p, ok
}

// Len returns the number of properties.
func (m *PropertyMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Names returns the public names in insertion order.
func (m *PropertyMap) Names() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.order...)
}

// Properties returns the properties in insertion order.
func (m *PropertyMap) Properties() []*Property {
	if m == nil {
		return nil
	}
	out := make([]*Property, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.byName[name])
	}
	return out
}

// Bindings are the inputs and outputs of a directive.
type Bindings struct {
	Inputs  *PropertyMap
	Outputs *PropertyMap
}

// NewBindings returns empty bindings.
func NewBindings() Bindings {
	return Bindings{Inputs: NewPropertyMap(), Outputs: NewPropertyMap()}
}

// Of returns the map for the given kind.
func (b Bindings) Of(kind PropertyKind) *PropertyMap {
	if kind == PropertyOutput {
		return b.Outputs
	}
	return b.Inputs
}
