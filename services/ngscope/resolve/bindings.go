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

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
	"github.com/AleutianAI/ngscope/services/ngscope/entity"
)

// Bindings computes the inputs and outputs of a directive or component.
//
// Description:
//
//	 1. The class-level inputs/outputs arrays are parsed into a mapping from
//	    source member to PropertyInfo.
//	 2. Every instance member of the class type (own members first, then
//	    inherited ones not shadowed by name; accessor pairs count once) is
//	    looked up for each kind. The member's entry is removed from the
//	    mapping. An @Input/@Output decorator on the member decides the
//	    PropertyInfo; otherwise the removed mapping entry does. The property
//	    is inserted under its public name unless that name is taken.
//	 3. Mapping entries no member consumed become virtual properties.
//	 4. The bindings of the nearest ancestor that is a directive or
//	    component are merged in, adding only names not already present.
//	    Ancestors that are not directives are skipped.
//
// Outputs:
//
//	entity.Bindings - Never nil maps. A class without type information
//	                  yields empty maps.
//	error - Only context cancellation.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (r *Resolver) Bindings(ctx context.Context, d *entity.Directive) (entity.Bindings, error) {
	ctx, span := startResolveSpan(ctx, "Bindings", d.ClassName())
	defer span.End()

	b, err := r.bindingsFor(ctx, d.Class(), map[ast.NodeID]bool{})
	if err != nil {
		recordCanceled(span, "bindings", err)
		return entity.Bindings{}, err
	}
	return b.bindings, nil
}

// memoBindings keeps the dependencies of a class's bindings next to them,
// so a subclass inheriting the bindings inherits the dependencies too.
type memoBindings struct {
	bindings entity.Bindings
	deps     []*ast.Node
}

func (r *Resolver) bindingsFor(ctx context.Context, cls *ast.Node, visiting map[ast.NodeID]bool) (memoBindings, error) {
	if b, ok := r.bindings.Get(cls.ID); ok {
		return b, nil
	}
	if err := ctx.Err(); err != nil {
		return memoBindings{}, err
	}
	visiting[cls.ID] = true

	bindings := entity.NewBindings()
	md := r.newReader()
	chain := md.lookup.AncestorChain(cls)

	var literal *ast.Node
	if e := r.EntityFor(cls); e != nil {
		literal = md.decoratorLiteral(e.Decorator())
	}

	mappings := make(map[entity.PropertyKind]*legacyMapping, len(entity.PropertyKinds))
	for _, kind := range entity.PropertyKinds {
		mappings[kind] = md.readLegacyMapping(literal, kind)
	}

	for _, member := range md.lookup.ClassMembers(cls) {
		for _, kind := range entity.PropertyKinds {
			mapped, inMapping := mappings[kind].take(member.Name)
			var info entity.PropertyInfo
			if dec := member.Decorator(kind.DecoratorName()); dec != nil {
				info = ReadPropertyInfo(dec, member.Name)
			} else if inMapping {
				info = mapped
			} else {
				continue
			}
			prop := &entity.Property{
				Name:       info.Name,
				Kind:       kind,
				Required:   info.Required,
				Owner:      member.Owner,
				SourceName: member.Name,
			}
			if t := member.DeclaredType(); t != nil {
				prop.RawType = t.Text
			}
			bindings.Of(kind).PutIfAbsent(prop)
		}
	}

	for _, kind := range entity.PropertyKinds {
		m := mappings[kind]
		for _, source := range m.remaining() {
			info := m.infos[source]
			bindings.Of(kind).PutIfAbsent(&entity.Property{
				Name:       info.Name,
				Kind:       kind,
				Required:   info.Required,
				Virtual:    true,
				Owner:      cls,
				SourceName: source,
			})
		}
	}

	var inheritedDeps []*ast.Node
	for _, ancestor := range chain {
		if visiting[ancestor.ID] {
			break
		}
		if !isDirectiveLike(r.EntityFor(ancestor)) {
			continue
		}
		inherited, err := r.bindingsFor(ctx, ancestor, visiting)
		if err != nil {
			return memoBindings{}, err
		}
		for _, kind := range entity.PropertyKinds {
			for _, p := range inherited.bindings.Of(kind).Properties() {
				bindings.Of(kind).PutIfAbsent(p)
			}
		}
		inheritedDeps = inherited.deps
		break
	}

	deps := append([]*ast.Node{cls}, chain...)
	deps = append(deps, md.dependencies()...)
	out := memoBindings{bindings: bindings, deps: append(deps, inheritedDeps...)}
	r.bindings.Put(cls.ID, out, out.deps)
	return out, nil
}

func isDirectiveLike(e entity.Entity) bool {
	switch e.(type) {
	case *entity.Directive, *entity.Component:
		return true
	}
	return false
}
