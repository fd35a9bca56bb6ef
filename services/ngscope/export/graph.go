// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export turns resolved Angular entities into a property graph and
// loads it into Neo4j.
package export

import (
	"context"
	"fmt"

	"github.com/AleutianAI/ngscope/services/ngscope/entity"
	"github.com/AleutianAI/ngscope/services/ngscope/resolve"
)

// EdgeType is a relationship type in the exported graph.
type EdgeType string

const (
	EdgeDeclares          EdgeType = "DECLARES"
	EdgeImports           EdgeType = "IMPORTS"
	EdgeExports           EdgeType = "EXPORTS"
	EdgeExportsTransitive EdgeType = "EXPORTS_TRANSITIVELY"
	EdgeComponentImports  EdgeType = "COMPONENT_IMPORTS"
	EdgeHostDirective     EdgeType = "HOST_DIRECTIVE"
)

// EdgeTypes lists every edge type, in load order.
var EdgeTypes = []EdgeType{
	EdgeDeclares,
	EdgeImports,
	EdgeExports,
	EdgeExportsTransitive,
	EdgeComponentImports,
	EdgeHostDirective,
}

// EntityNode is one Angular entity.
type EntityNode struct {
	Key        string
	Name       string
	Kind       string
	File       string
	Line       int
	Standalone bool

	// Selector is set for directives and components, PipeName for pipes.
	Selector string
	PipeName string

	// Public and FullyResolved are only meaningful for modules.
	Public        bool
	FullyResolved bool
}

// PropertyNode is one input or output of a directive.
type PropertyNode struct {
	Key      string
	Owner    string
	Name     string
	Kind     string
	Source   string
	Required bool
	Virtual  bool
}

// Edge connects two entity keys.
type Edge struct {
	From string
	To   string
	Type EdgeType
}

// Graph is the exported form of one scan.
type Graph struct {
	RunID      string
	Entities   []EntityNode
	Properties []PropertyNode
	Edges      []Edge
}

// EdgesOf returns the edges of the given type in insertion order.
func (g *Graph) EdgesOf(t EdgeType) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// BuildGraph resolves every entity of the program and flattens the result.
//
// Description:
//
//	Entities come out in program order (file path, then position). Module
//	scopes contribute DECLARES, IMPORTS, EXPORTS and EXPORTS_TRANSITIVELY
//	edges; standalone components contribute COMPONENT_IMPORTS; directives
//	and components contribute their bindings and HOST_DIRECTIVE edges to
//	host directives that resolve to a class.
//
// Inputs:
//
//	ctx - Only checked for cancellation.
//	r - The resolver to read from.
//	runID - Stamped on the graph; the exporter writes it to every node.
//
// Outputs:
//
//	*Graph - The flattened graph.
//	error - Only context cancellation.
func BuildGraph(ctx context.Context, r *resolve.Resolver, runID string) (*Graph, error) {
	entities, err := r.Entities(ctx)
	if err != nil {
		return nil, err
	}

	g := &Graph{RunID: runID}
	for _, e := range entities {
		node := EntityNode{
			Key:        resolve.ClassKey(e.Class()),
			Name:       e.ClassName(),
			Kind:       e.Kind().String(),
			File:       e.Class().Location.FilePath,
			Line:       e.Class().Location.StartLine,
			Standalone: e.IsStandalone(),
		}

		switch v := e.(type) {
		case *entity.Component:
			node.Selector = v.Selector
			if err := g.addDirective(ctx, &v.Directive); err != nil {
				return nil, err
			}
			imports, err := v.Imports(ctx)
			if err != nil {
				return nil, err
			}
			g.link(node.Key, EdgeComponentImports, imports.Entities)
		case *entity.Directive:
			node.Selector = v.Selector
			if err := g.addDirective(ctx, v); err != nil {
				return nil, err
			}
		case *entity.Pipe:
			node.PipeName = v.Name
		case *entity.Module:
			node.Public = v.IsPublic
			scope, err := v.Scope(ctx)
			if err != nil {
				return nil, err
			}
			node.FullyResolved = scope.IsScopeFullyResolved()
			g.link(node.Key, EdgeDeclares, scope.Declarations.Entities)
			g.link(node.Key, EdgeImports, scope.Imports.Entities)
			g.link(node.Key, EdgeExports, scope.Exports.Entities)
			g.link(node.Key, EdgeExportsTransitive, scope.AllExportedDeclarations)
		}
		g.Entities = append(g.Entities, node)
	}
	return g, nil
}

func (g *Graph) link(from string, t EdgeType, to *entity.Set) {
	for _, e := range to.Entities() {
		g.Edges = append(g.Edges, Edge{From: from, To: resolve.ClassKey(e.Class()), Type: t})
	}
}

func (g *Graph) addDirective(ctx context.Context, d *entity.Directive) error {
	owner := resolve.ClassKey(d.Class())
	b, err := d.Bindings(ctx)
	if err != nil {
		return err
	}
	for _, kind := range entity.PropertyKinds {
		for _, p := range b.Of(kind).Properties() {
			g.Properties = append(g.Properties, PropertyNode{
				Key:      fmt.Sprintf("%s/%s/%s", owner, kind, p.Name),
				Owner:    owner,
				Name:     p.Name,
				Kind:     kind.String(),
				Source:   p.SourceName,
				Required: p.Required,
				Virtual:  p.Virtual,
			})
		}
	}
	for _, hd := range d.HostDirectives {
		if hd.Directive != nil {
			g.Edges = append(g.Edges, Edge{From: owner, To: resolve.ClassKey(hd.Directive), Type: EdgeHostDirective})
		}
	}
	return nil
}
