// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve builds Angular entities from decorated classes: property
// bindings, module scopes and standalone component imports.
package resolve

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
	"github.com/AleutianAI/ngscope/services/ngscope/cache"
	"github.com/AleutianAI/ngscope/services/ngscope/entity"
	"github.com/AleutianAI/ngscope/services/ngscope/index"
)

const (
	// DefaultPrivatePrefix marks framework-private modules.
	DefaultPrivatePrefix = "ɵ"

	// DefaultModuleWrapperType is the generic wrapper pairing a module with providers.
	DefaultModuleWrapperType = "ModuleWithProviders"
)

// Module metadata list names, also used as memo table names.
const (
	listDeclarations     = "declarations"
	listImports          = "imports"
	listExports          = "exports"
	listComponentImports = "component_imports"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithMetadataIndex sets the last-resort index for module-with-providers
// functions. Without one the fallback is skipped.
func WithMetadataIndex(idx index.MetadataIndex) Option {
	return func(r *Resolver) {
		r.metadata = idx
	}
}

// WithScopeStore persists computed module scopes and reuses stored ones
// whose dependency files are unchanged.
func WithScopeStore(store *cache.ScopeStore) Option {
	return func(r *Resolver) {
		r.store = store
	}
}

// WithPrivatePrefix sets the class name prefix of non-public modules.
func WithPrivatePrefix(prefix string) Option {
	return func(r *Resolver) {
		r.privatePrefix = prefix
	}
}

// WithStandaloneDefault sets the standalone flag used when a decorator does
// not specify one.
func WithStandaloneDefault(standalone bool) Option {
	return func(r *Resolver) {
		r.standaloneDefault = standalone
	}
}

// WithModuleWrapperTypes replaces the recognized module-with-providers
// wrapper type names. An empty list is ignored.
func WithModuleWrapperTypes(names ...string) Option {
	return func(r *Resolver) {
		if len(names) == 0 {
			return
		}
		r.wrapperTypes = make(map[string]bool, len(names))
		for _, n := range names {
			r.wrapperTypes[n] = true
		}
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Resolver computes Angular entities over one ast.Program.
//
// Description:
//
//	Entities, bindings, module lists and module scopes are computed lazily
//	and memoized in cache tables keyed by class identity. Every entry is
//	tagged with the files it was computed from, so replacing a file in the
//	program invalidates exactly the results that visited it.
//
//	The core algorithms never fail: unresolvable input degrades the
//	FullyResolved flag of the result. The only error is context
//	cancellation, in which case nothing is memoized.
//
// Thread Safety:
//
//	Safe for concurrent use. Concurrent requests for the same result may
//	compute it twice; both computations produce equivalent values.
type Resolver struct {
	program  *ast.Program
	metadata index.MetadataIndex
	store    *cache.ScopeStore
	logger   *slog.Logger

	privatePrefix     string
	standaloneDefault bool
	wrapperTypes      map[string]bool

	entities *cache.Table[entity.Entity]
	bindings *cache.Table[memoBindings]
	lists    map[string]*cache.Table[*entity.Resolution]
	scopes   *cache.Table[*entity.ModuleScope]
}

// NewResolver creates a Resolver over program.
func NewResolver(program *ast.Program, opts ...Option) *Resolver {
	r := &Resolver{
		program:       program,
		logger:        slog.Default(),
		privatePrefix: DefaultPrivatePrefix,
		wrapperTypes:  map[string]bool{DefaultModuleWrapperType: true},
		entities:      cache.NewTable[entity.Entity]("entities", program),
		bindings:      cache.NewTable[memoBindings]("bindings", program),
		scopes:        cache.NewTable[*entity.ModuleScope]("module_scopes", program),
		lists:         make(map[string]*cache.Table[*entity.Resolution]),
	}
	for _, name := range []string{listDeclarations, listImports, listExports, listComponentImports} {
		r.lists[name] = cache.NewTable[*entity.Resolution](name, program)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Program returns the program the resolver reads.
func (r *Resolver) Program() *ast.Program {
	return r.program
}

// Entities returns the entity of every class in the program that has one,
// ordered by file path then position.
func (r *Resolver) Entities(ctx context.Context) ([]entity.Entity, error) {
	var out []entity.Entity
	for _, cls := range r.program.Classes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e := r.EntityFor(cls); e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// Prune evicts memoized results invalidated by file changes and returns
// how many entries were removed.
func (r *Resolver) Prune() int {
	n := r.entities.Prune() + r.bindings.Prune() + r.scopes.Prune()
	for _, t := range r.lists {
		n += t.Prune()
	}
	return n
}

// Reset drops every memoized result. Adding a file can change how names
// resolve anywhere in the program, which generation tracking cannot see.
func (r *Resolver) Reset() {
	r.entities.Clear()
	r.bindings.Clear()
	r.scopes.Clear()
	for _, t := range r.lists {
		t.Clear()
	}
}

var _ entity.Loader = (*Resolver)(nil)
