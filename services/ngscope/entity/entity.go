// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package entity defines the Angular entity model: directives, components,
// pipes and modules, their property bindings, and the ordered sets used to
// describe module scopes.
package entity

import (
	"context"

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
)

// Kind identifies the variant of an Entity.
type Kind int

const (
	KindDirective Kind = iota + 1
	KindComponent
	KindPipe
	KindModule
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindDirective:
		return "directive"
	case KindComponent:
		return "component"
	case KindPipe:
		return "pipe"
	case KindModule:
		return "module"
	default:
		return "unknown"
	}
}

// Entity is an Angular construct backed by a decorated class.
//
// Description:
//
//	Entity is a closed union: the only implementations are *Directive,
//	*Component, *Pipe and *Module. Identity is the backing class node; two
//	entities are the same entity when Same reports true.
type Entity interface {
	Kind() Kind

	// Class returns the backing class declaration.
	Class() *ast.Node

	// ClassName returns the name of the backing class.
	ClassName() string

	// Decorator returns the Angular decorator that classified the class.
	Decorator() *ast.Node

	IsStandalone() bool

	entity()
}

// Declaration is the sub-union of entities that can be declared in a
// module: *Directive, *Component and *Pipe.
type Declaration interface {
	Entity
	declaration()
}

// Same reports whether a and b are backed by the same class node.
func Same(a, b Entity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Class().ID == b.Class().ID
}

// Loader computes derived entity data on first access.
//
// The resolver implements Loader; entities hold it so that callers can ask
// an entity for its bindings or scope without knowing about the resolver.
type Loader interface {
	Bindings(ctx context.Context, d *Directive) (Bindings, error)
	ComponentImports(ctx context.Context, c *Component) (*Resolution, error)
	ModuleScope(ctx context.Context, m *Module) (*ModuleScope, error)
}

// Header holds the fields shared by every entity.
type Header struct {
	Class      *ast.Node
	Decorator  *ast.Node
	Standalone bool
}

type base struct {
	header Header
	loader Loader
}

func (b *base) Class() *ast.Node     { return b.header.Class }
func (b *base) ClassName() string    { return b.header.Class.Name }
func (b *base) Decorator() *ast.Node { return b.header.Decorator }
func (b *base) IsStandalone() bool   { return b.header.Standalone }
func (b *base) entity()              {}

// Attribute is a static attribute injected through @Attribute('name').
type Attribute struct {
	Name string
	// Type is the declared type text of the injected parameter, if any.
	Type string
}

// Mapping exposes a host directive property under an alias.
type Mapping struct {
	Source string
	Alias  string
}

// HostDirective is one entry of a directive's hostDirectives list.
type HostDirective struct {
	// Directive is the referenced class, nil when it could not be resolved.
	Directive *ast.Node
	Inputs    []Mapping
	Outputs   []Mapping
}

// Directive is an @Directive class.
type Directive struct {
	base

	Selector       string
	ExportAs       []string
	Attributes     []Attribute
	HostDirectives []HostDirective
}

// NewDirective creates a Directive. Descriptive fields are filled by the caller.
func NewDirective(h Header, loader Loader) *Directive {
	return &Directive{base: base{header: h, loader: loader}}
}

// Kind returns KindDirective.
func (d *Directive) Kind() Kind { return KindDirective }

func (d *Directive) declaration() {}

// Bindings returns the resolved input and output bindings.
//
// Computed on first access and memoized by the loader. Only context
// cancellation produces an error.
func (d *Directive) Bindings(ctx context.Context) (Bindings, error) {
	return d.loader.Bindings(ctx, d)
}

// Attribute returns the named attribute.
func (d *Directive) Attribute(name string) (Attribute, bool) {
	for _, a := range d.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Component is an @Component class: a Directive with a template.
type Component struct {
	Directive

	Template    string
	TemplateURL string
	StyleURLs   []string
}

// NewComponent creates a Component. Descriptive fields are filled by the caller.
func NewComponent(h Header, loader Loader) *Component {
	return &Component{Directive: Directive{base: base{header: h, loader: loader}}}
}

// Kind returns KindComponent.
func (c *Component) Kind() Kind { return KindComponent }

// Imports returns the modules and standalone declarations listed in the
// component's own imports. Non-standalone components have none.
func (c *Component) Imports(ctx context.Context) (*Resolution, error) {
	return c.loader.ComponentImports(ctx, c)
}

// Pipe is a @Pipe class.
type Pipe struct {
	base

	Name string
	Pure bool
}

// NewPipe creates a Pipe. Pure defaults to true.
func NewPipe(h Header) *Pipe {
	return &Pipe{base: base{header: h}, Pure: true}
}

// Kind returns KindPipe.
func (p *Pipe) Kind() Kind { return KindPipe }

func (p *Pipe) declaration() {}

// Module is an @NgModule class.
type Module struct {
	base

	// IsPublic is false for modules whose class name carries the private prefix.
	IsPublic bool
}

// NewModule creates a Module.
func NewModule(h Header, isPublic bool, loader Loader) *Module {
	return &Module{base: base{header: h, loader: loader}, IsPublic: isPublic}
}

// Kind returns KindModule.
func (m *Module) Kind() Kind { return KindModule }

// Scope returns the module's declarations, imports, exports and transitive
// exported declarations.
func (m *Module) Scope(ctx context.Context) (*ModuleScope, error) {
	return m.loader.ModuleScope(ctx, m)
}

var (
	_ Declaration = (*Directive)(nil)
	_ Declaration = (*Component)(nil)
	_ Declaration = (*Pipe)(nil)
	_ Entity      = (*Module)(nil)
)
