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
	"context"
	"log/slog"
	"strings"

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
	"github.com/AleutianAI/ngscope/services/ngscope/cache"
	"github.com/AleutianAI/ngscope/services/ngscope/entity"
)

// Which entities each metadata list may name.
const (
	wantDeclarations     = WantDeclaration
	wantImports          = WantModule | WantStandalone
	wantExports          = WantModule | WantDeclaration
	wantComponentImports = WantModule | WantStandalone
)

// ClassKey returns the stable "path#ClassName" key of a class node.
func ClassKey(cls *ast.Node) string {
	return cls.Location.FilePath + "#" + cls.Name
}

// ModuleScope computes the declarations, imports and exports of a module,
// plus the declarations it exports transitively.
//
// Description:
//
//	Each of the three lists is collected from the @NgModule literal and
//	memoized separately. AllExportedDeclarations is the union of the
//	declarations in the module's exports and, for every exported module,
//	that module's own exported declarations, following re-exports with a
//	visited-module guard.
//
//	When no @NgModule object literal can be found all three lists are
//	empty and degraded, and HasMetadata is false.
//
//	With a scope store configured, a stored fully resolved scope whose
//	dependency files are unchanged is reused instead of recomputing, and
//	freshly computed fully resolved scopes are persisted.
//
// Outputs:
//
//	*entity.ModuleScope - Never nil when error is nil.
//	error - Only context cancellation.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (r *Resolver) ModuleScope(ctx context.Context, m *entity.Module) (*entity.ModuleScope, error) {
	ctx, span := startResolveSpan(ctx, "ModuleScope", m.ClassName())
	defer span.End()

	cls := m.Class()
	if scope, ok := r.scopes.Get(cls.ID); ok {
		return scope, nil
	}

	if scope, deps, ok := r.loadStoredScope(ctx, cls); ok {
		r.scopes.Put(cls.ID, scope, deps)
		return scope, nil
	}

	scope, deps, err := r.computeScope(ctx, m)
	if err != nil {
		recordCanceled(span, "module_scope", err)
		return nil, err
	}
	recordResolution(span, "module_scope", scope.IsScopeFullyResolved())

	if !scope.IsScopeFullyResolved() {
		r.logger.Debug("module scope degraded",
			slog.String("module", ClassKey(cls)),
			slog.Bool("has_metadata", scope.HasMetadata),
			slog.Int("unresolved", len(scope.Declarations.Unresolved)+
				len(scope.Imports.Unresolved)+len(scope.Exports.Unresolved)),
		)
	}

	r.scopes.Put(cls.ID, scope, deps)
	r.persistScope(ctx, cls, scope, deps)
	return scope, nil
}

func (r *Resolver) computeScope(ctx context.Context, m *entity.Module) (*entity.ModuleScope, []*ast.Node, error) {
	cls, dec := m.Class(), m.Decorator()
	md := r.newReader()
	scope := &entity.ModuleScope{HasMetadata: md.decoratorLiteral(dec) != nil}

	var err error
	if scope.Declarations, err = r.moduleList(ctx, cls, dec, listDeclarations, listDeclarations, wantDeclarations); err != nil {
		return nil, nil, err
	}
	if scope.Imports, err = r.moduleList(ctx, cls, dec, listImports, listImports, wantImports); err != nil {
		return nil, nil, err
	}
	if scope.Exports, err = r.moduleList(ctx, cls, dec, listExports, listExports, wantExports); err != nil {
		return nil, nil, err
	}

	exported, closureDeps, err := r.exportedClosure(ctx, m)
	if err != nil {
		return nil, nil, err
	}
	scope.AllExportedDeclarations = exported

	deps := append([]*ast.Node{cls, dec}, md.dependencies()...)
	deps = append(deps, scope.Declarations.Dependencies...)
	deps = append(deps, scope.Imports.Dependencies...)
	deps = append(deps, closureDeps...)
	return scope, deps, nil
}

// moduleList collects one metadata list of the class decorator dec.
// A missing literal degrades the result; a missing property does not.
// The decorator, and everything followed to reach its literal, seed the
// dependencies.
func (r *Resolver) moduleList(ctx context.Context, cls, dec *ast.Node, table, key string, want Want) (*entity.Resolution, error) {
	memo := r.lists[table]
	if res, ok := memo.Get(cls.ID); ok {
		return res, nil
	}

	md := r.newReader()
	literal := md.decoratorLiteral(dec)
	seeds := append([]*ast.Node{dec, cls}, md.dependencies()...)

	var res *entity.Resolution
	if literal == nil {
		res = entity.NewResolution()
		res.Dependencies = append(res.Dependencies, seeds...)
		res.Degrade(cls, entity.ReasonMissingMetadata)
	} else {
		var err error
		res, err = r.Collect(ctx, literal.PropertyValue(key), want, seeds...)
		if err != nil {
			return nil, err
		}
	}

	memo.Put(cls.ID, res, res.Dependencies)
	return res, nil
}

// exportedClosure returns the declarations m exports, directly or through
// exported modules, and every node the walk depended on.
func (r *Resolver) exportedClosure(ctx context.Context, m *entity.Module) (*entity.Set, []*ast.Node, error) {
	out := entity.NewSet()
	var deps []*ast.Node
	visited := map[ast.NodeID]bool{m.Class().ID: true}
	queue := []*entity.Module{m}

	for len(queue) > 0 {
		mod := queue[0]
		queue = queue[1:]

		exports, err := r.moduleList(ctx, mod.Class(), mod.Decorator(), listExports, listExports, wantExports)
		if err != nil {
			return nil, nil, err
		}
		deps = append(deps, exports.Dependencies...)

		for _, e := range exports.Entities.Entities() {
			switch v := e.(type) {
			case *entity.Module:
				if !visited[v.Class().ID] {
					visited[v.Class().ID] = true
					queue = append(queue, v)
				}
			case entity.Declaration:
				out.Add(v)
			}
		}
	}
	return out, deps, nil
}

// ComponentImports resolves the imports of a standalone component. A
// component that is not standalone has no imports of its own; the result
// is empty and fully resolved.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (r *Resolver) ComponentImports(ctx context.Context, c *entity.Component) (*entity.Resolution, error) {
	if !c.IsStandalone() {
		return entity.NewResolution(), nil
	}

	ctx, span := startResolveSpan(ctx, "ComponentImports", c.ClassName())
	defer span.End()

	res, err := r.moduleList(ctx, c.Class(), c.Decorator(), listComponentImports, listImports, wantComponentImports)
	if err != nil {
		recordCanceled(span, "component_imports", err)
		return nil, err
	}
	recordResolution(span, "component_imports", res.FullyResolved())
	return res, nil
}

// =============================================================================
// Persistent scope store
// =============================================================================

// loadStoredScope rebuilds a module scope from the scope store. Any class
// key that no longer names an entity turns the hit into a miss.
func (r *Resolver) loadStoredScope(ctx context.Context, cls *ast.Node) (*entity.ModuleScope, []*ast.Node, bool) {
	if r.store == nil {
		return nil, nil, false
	}
	summary, err := r.store.Load(ctx, ClassKey(cls), r.program)
	if err != nil {
		storeLookups.WithLabelValues("error").Inc()
		r.logger.Warn("scope store lookup failed",
			slog.String("module", ClassKey(cls)),
			slog.String("error", err.Error()),
		)
		return nil, nil, false
	}
	if summary == nil || !summary.FullyResolved {
		storeLookups.WithLabelValues("miss").Inc()
		return nil, nil, false
	}

	deps := []*ast.Node{cls}
	for path := range summary.Dependencies {
		f, ok := r.program.File(path)
		if !ok {
			storeLookups.WithLabelValues("miss").Inc()
			return nil, nil, false
		}
		deps = append(deps, f.Root)
	}

	lists := [][]string{summary.Declarations, summary.Imports, summary.Exports, summary.AllExportedDeclarations}
	sets := make([]*entity.Set, len(lists))
	for i, keys := range lists {
		set, ok := r.entitiesByKey(keys)
		if !ok {
			storeLookups.WithLabelValues("miss").Inc()
			return nil, nil, false
		}
		sets[i] = set
	}

	resolved := func(set *entity.Set) *entity.Resolution {
		res := entity.NewResolution()
		res.Entities = set
		res.Dependencies = deps
		return res
	}
	storeLookups.WithLabelValues("hit").Inc()
	return &entity.ModuleScope{
		Declarations:            resolved(sets[0]),
		Imports:                 resolved(sets[1]),
		Exports:                 resolved(sets[2]),
		AllExportedDeclarations: sets[3],
		HasMetadata:             true,
	}, deps, true
}

func (r *Resolver) entitiesByKey(keys []string) (*entity.Set, bool) {
	set := entity.NewSet()
	for _, key := range keys {
		path, name, ok := strings.Cut(key, "#")
		if !ok {
			return nil, false
		}
		f, ok := r.program.File(path)
		if !ok {
			return nil, false
		}
		e := r.EntityFor(f.Declarations[name])
		if e == nil {
			return nil, false
		}
		set.Add(e)
	}
	return set, true
}

// persistScope saves a fully resolved scope. Failures are logged and
// otherwise ignored; the in-memory result stands either way.
func (r *Resolver) persistScope(ctx context.Context, cls *ast.Node, scope *entity.ModuleScope, deps []*ast.Node) {
	if r.store == nil || !scope.IsScopeFullyResolved() {
		return
	}

	hashes := make(map[string]string)
	for _, n := range deps {
		path := n.Location.FilePath
		if _, ok := hashes[path]; ok {
			continue
		}
		hash, ok := r.program.Hash(path)
		if !ok {
			return
		}
		hashes[path] = hash
	}

	summary := &cache.ScopeSummary{
		ClassKey:                ClassKey(cls),
		Declarations:            classKeys(scope.Declarations.Entities),
		Imports:                 classKeys(scope.Imports.Entities),
		Exports:                 classKeys(scope.Exports.Entities),
		AllExportedDeclarations: classKeys(scope.AllExportedDeclarations),
		FullyResolved:           true,
		Dependencies:            hashes,
	}
	if err := r.store.Save(ctx, summary); err != nil {
		r.logger.Warn("persisting module scope failed",
			slog.String("module", summary.ClassKey),
			slog.String("error", err.Error()),
		)
	}
}

func classKeys(s *entity.Set) []string {
	entities := s.Entities()
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, ClassKey(e.Class()))
	}
	return out
}
