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

import (
	"sort"

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
)

// Set is an insertion-ordered set of entities keyed by class identity.
type Set struct {
	order []Entity
	index map[ast.NodeID]int
}

// NewSet creates a set holding the given entities.
func NewSet(entities ...Entity) *Set {
	s := &Set{index: make(map[ast.NodeID]int)}
	for _, e := range entities {
		s.Add(e)
	}
	return s
}

// Add inserts e. Returns false if an entity with the same class is present.
func (s *Set) Add(e Entity) bool {
	id := e.Class().ID
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = len(s.order)
	s.order = append(s.order, e)
	return true
}

// Contains reports whether an entity with the same class is present.
func (s *Set) Contains(e Entity) bool {
	if s == nil || e == nil {
		return false
	}
	_, ok := s.index[e.Class().ID]
	return ok
}

// Len returns the number of entities.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Entities returns the entities in insertion order.
func (s *Set) Entities() []Entity {
	if s == nil {
		return nil
	}
	return append([]Entity(nil), s.order...)
}

// Declarations returns the members that are declarations.
func (s *Set) Declarations() []Declaration {
	if s == nil {
		return nil
	}
	var out []Declaration
	for _, e := range s.order {
		if d, ok := e.(Declaration); ok {
			out = append(out, d)
		}
	}
	return out
}

// Modules returns the members that are modules.
func (s *Set) Modules() []*Module {
	if s == nil {
		return nil
	}
	var out []*Module
	for _, e := range s.order {
		if m, ok := e.(*Module); ok {
			out = append(out, m)
		}
	}
	return out
}

// ClassNames returns the class names in insertion order.
func (s *Set) ClassNames() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.order))
	for _, e := range s.order {
		out = append(out, e.ClassName())
	}
	return out
}

// Reason explains why a collected leaf could not be resolved.
type Reason int

const (
	ReasonUnresolvedReference Reason = iota + 1
	ReasonWrongKind
	ReasonDynamicType
	ReasonUnsupportedExpression
	ReasonUnknownModuleWrapper
	ReasonMissingMetadata
)

// String returns the string representation of the Reason.
func (r Reason) String() string {
	switch r {
	case ReasonUnresolvedReference:
		return "unresolved_reference"
	case ReasonWrongKind:
		return "wrong_kind"
	case ReasonDynamicType:
		return "dynamic_type"
	case ReasonUnsupportedExpression:
		return "unsupported_expression"
	case ReasonUnknownModuleWrapper:
		return "unknown_module_wrapper"
	case ReasonMissingMetadata:
		return "missing_metadata"
	default:
		return "unknown"
	}
}

// Unresolved is a leaf that degraded a resolution.
type Unresolved struct {
	Node   *ast.Node
	Reason Reason
}

// Resolution is the result of collecting entities from a metadata expression.
//
// Description:
//
//	FullyResolved starts true and can only be cleared, through Degrade. The
//	dependency list holds every node visited while collecting, which is what
//	invalidates a memoized resolution when any of their files change.
type Resolution struct {
	Entities     *Set
	Dependencies []*ast.Node
	Unresolved   []Unresolved

	fullyResolved bool
}

// NewResolution returns an empty, fully resolved Resolution.
func NewResolution() *Resolution {
	return &Resolution{Entities: NewSet(), fullyResolved: true}
}

// FullyResolved reports whether every leaf was classified successfully.
func (r *Resolution) FullyResolved() bool {
	return r != nil && r.fullyResolved
}

// Degrade records an unresolvable leaf and clears FullyResolved.
func (r *Resolution) Degrade(node *ast.Node, reason Reason) {
	r.fullyResolved = false
	r.Unresolved = append(r.Unresolved, Unresolved{Node: node, Reason: reason})
}

// DependencyFiles returns the sorted distinct files of the dependencies.
func (r *Resolution) DependencyFiles() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, n := range r.Dependencies {
		if path := n.Location.FilePath; !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// ModuleScope is the resolved scope of a module.
type ModuleScope struct {
	Declarations *Resolution
	Imports      *Resolution
	Exports      *Resolution

	// AllExportedDeclarations holds the declarations exported directly and
	// through re-exported modules, transitively.
	AllExportedDeclarations *Set

	// HasMetadata is false when no @NgModule object literal could be found.
	HasMetadata bool
}

// IsScopeFullyResolved reports whether the metadata was found and all three
// lists resolved without degradation.
func (s *ModuleScope) IsScopeFullyResolved() bool {
	return s.HasMetadata &&
		s.Declarations.FullyResolved() &&
		s.Imports.FullyResolved() &&
		s.Exports.FullyResolved()
}
