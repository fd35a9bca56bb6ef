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

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
	"github.com/AleutianAI/ngscope/services/ngscope/entity"
)

// Want selects which entities a collector walk keeps.
type Want uint8

const (
	// WantModule keeps modules and enables module-with-providers unwrapping.
	WantModule Want = 1 << iota

	// WantDeclaration keeps directives, components and pipes.
	WantDeclaration

	// WantStandalone keeps standalone directives, components and pipes.
	WantStandalone
)

// accepts reports whether e is a wanted entity.
func (w Want) accepts(e entity.Entity) bool {
	switch e.(type) {
	case *entity.Module:
		return w&WantModule != 0
	case entity.Declaration:
		return w&WantDeclaration != 0 || (w&WantStandalone != 0 && e.IsStandalone())
	}
	return false
}

const forwardRefName = "forwardRef"

// Collect resolves expr into the set of wanted entities it denotes.
//
// Description:
//
//	Walks expr with an explicit worklist and a visited set keyed by node
//	identity. Composite shapes are decomposed into children: array elements,
//	spread operands, both conditional branches, the declaration a reference
//	resolves to, initializers, the callee of a call, and the return
//	expressions of functions returning arrays. Leaves are classified: a
//	class backing a wanted entity is kept; a module-with-providers wrapper
//	is unwrapped when modules are wanted; every other leaf degrades the
//	result.
//
//	The visited set is the only cycle guard; no depth limit applies.
//
//	Dependencies hold the seeds, every visited node, and the root of every
//	file a lookup consulted, including files searched for a name they did
//	not export.
//
// Inputs:
//
//	ctx - Checked before every worklist pop.
//	expr - The expression to resolve. Nil yields an empty, fully resolved set.
//	want - Which entities to keep.
//	seeds - Nodes recorded as dependencies before the walk starts.
//
// Outputs:
//
//	*entity.Resolution - The result; never nil when error is nil.
//	error - Only context cancellation.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (r *Resolver) Collect(ctx context.Context, expr *ast.Node, want Want, seeds ...*ast.Node) (*entity.Resolution, error) {
	ctx, span := tracer.Start(ctx, "Resolver.Collect")
	defer span.End()

	trace := &ast.Trace{}
	c := &collector{
		r:       r,
		lookup:  r.program.Lookup(trace),
		want:    want,
		res:     entity.NewResolution(),
		visited: make(map[ast.NodeID]bool),
	}
	for _, s := range seeds {
		if s != nil {
			c.res.Dependencies = append(c.res.Dependencies, s)
		}
	}
	if expr != nil {
		c.push(expr)
	}

	for len(c.stack) > 0 {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return nil, err
		}
		n := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]

		if c.visited[n.ID] {
			continue
		}
		c.visited[n.ID] = true
		c.res.Dependencies = append(c.res.Dependencies, n)

		if children, ok := c.decompose(n); ok {
			c.push(children...)
			continue
		}
		c.classify(n)
	}
	c.res.Dependencies = append(c.res.Dependencies, trace.Dependencies()...)

	collectorVisited.Observe(float64(len(c.visited)))
	span.SetAttributes(
		attribute.Int("visited", len(c.visited)),
		attribute.Int("entities", c.res.Entities.Len()),
		attribute.Bool("fully_resolved", c.res.FullyResolved()),
	)
	return c.res, nil
}

type collector struct {
	r       *Resolver
	lookup  ast.Lookup
	want    Want
	res     *entity.Resolution
	visited map[ast.NodeID]bool
	stack   []*ast.Node
}

// push adds nodes so that they are popped in the given order.
func (c *collector) push(nodes ...*ast.Node) {
	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i] != nil {
			c.stack = append(c.stack, nodes[i])
		}
	}
}

// decompose returns the children of a composite node. ok is false for
// leaves, which are classified instead.
func (c *collector) decompose(n *ast.Node) (children []*ast.Node, ok bool) {
	p := c.lookup
	switch n.Kind {
	case ast.NodeKindArray:
		return n.Elements, true
	case ast.NodeKindSpread, ast.NodeKindWrapped:
		return []*ast.Node{n.Expr}, n.Expr != nil
	case ast.NodeKindConditional:
		return []*ast.Node{n.Then, n.Else}, true
	case ast.NodeKindIdentifier, ast.NodeKindMemberAccess:
		if d := p.Resolve(n); d != nil {
			return []*ast.Node{d}, true
		}
	case ast.NodeKindVariable, ast.NodeKindField, ast.NodeKindProperty, ast.NodeKindParameter:
		if n.Init != nil {
			return []*ast.Node{n.Init}, true
		}
	case ast.NodeKindCall:
		if target := forwardRefTarget(n); target != nil {
			return []*ast.Node{target}, true
		}
		if callee := p.ResolveCallee(n); callee != nil {
			return []*ast.Node{callee}, true
		}
	case ast.NodeKindFunction, ast.NodeKindArrowFunction, ast.NodeKindMethod:
		if p.ReturnsArrayLike(n) {
			return n.Returns, true
		}
	}
	return nil, false
}

// forwardRefTarget returns X for forwardRef(() => X).
func forwardRefTarget(call *ast.Node) *ast.Node {
	callee := call.Callee.Unwrap()
	if callee == nil || callee.Name != forwardRefName || len(call.Args) != 1 {
		return nil
	}
	if callee.Kind != ast.NodeKindIdentifier && callee.Kind != ast.NodeKindMemberAccess {
		return nil
	}
	fn := call.Args[0].Unwrap()
	if !fn.IsFunctionLike() || len(fn.Returns) != 1 {
		return nil
	}
	return fn.Returns[0]
}

// classify handles a leaf: keep it, unwrap it, or degrade.
func (c *collector) classify(n *ast.Node) {
	modules := c.want&WantModule != 0

	switch {
	case n.Kind == ast.NodeKindClass:
		if e := c.r.EntityFor(n); e != nil && c.want.accepts(e) {
			c.res.Entities.Add(e)
			return
		}
		c.res.Degrade(n, entity.ReasonWrongKind)

	case n.Kind == ast.NodeKindObject:
		if modules {
			if payload := n.PropertyValue("ngModule"); payload != nil {
				c.push(payload)
				return
			}
		}
		c.res.Degrade(n, entity.ReasonUnsupportedExpression)

	case n.IsFunctionLike():
		if modules {
			if payloads := c.unwrapModuleFunction(n); len(payloads) > 0 {
				c.push(payloads...)
				return
			}
		}
		switch {
		case ast.IsDynamicallyTyped(n):
			c.res.Degrade(n, entity.ReasonDynamicType)
		case modules:
			c.res.Degrade(n, entity.ReasonUnknownModuleWrapper)
		default:
			c.res.Degrade(n, entity.ReasonWrongKind)
		}

	case ast.IsDynamicallyTyped(n):
		c.res.Degrade(n, entity.ReasonDynamicType)

	case modules && c.wrappedModuleFromType(ast.DeclaredType(n), n) != nil:
		c.push(c.wrappedModuleFromType(ast.DeclaredType(n), n))

	case n.Kind == ast.NodeKindIdentifier || n.Kind == ast.NodeKindMemberAccess || n.Kind == ast.NodeKindCall:
		c.res.Degrade(n, entity.ReasonUnresolvedReference)

	default:
		c.res.Degrade(n, entity.ReasonUnsupportedExpression)
	}
}

// unwrapModuleFunction returns the module payloads of a function returning
// a module-with-providers value.
//
// Strategies, in order: a declared return type that is a known wrapper
// type with a resolvable type argument; object literal returns with an
// ngModule property; the metadata fallback index.
func (c *collector) unwrapModuleFunction(fn *ast.Node) []*ast.Node {
	if cls := c.wrappedModuleFromType(ast.ReturnType(fn), fn); cls != nil {
		return []*ast.Node{cls}
	}

	var payloads []*ast.Node
	for _, ret := range fn.Returns {
		if obj := ret.Unwrap(); obj != nil && obj.Kind == ast.NodeKindObject {
			if payload := obj.PropertyValue("ngModule"); payload != nil {
				payloads = append(payloads, payload)
			}
		}
	}
	if len(payloads) > 0 {
		return payloads
	}

	if c.r.metadata != nil {
		if cls, ok := c.r.metadata.ModuleForFunction(fn); ok {
			return []*ast.Node{cls}
		}
	}
	return nil
}

// wrappedModuleFromType returns the class named by the first type argument
// of a wrapper type such as ModuleWithProviders<T>.
func (c *collector) wrappedModuleFromType(t *ast.TypeRef, from *ast.Node) *ast.Node {
	if t == nil || !c.r.wrapperTypes[t.Name] || len(t.Args) == 0 {
		return nil
	}
	d := c.lookup.ResolveType(t.Args[0], from)
	if d == nil || d.Kind != ast.NodeKindClass {
		return nil
	}
	return d
}
