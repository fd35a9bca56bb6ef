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
	"strings"

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
	"github.com/AleutianAI/ngscope/services/ngscope/entity"
)

// Angular class decorators, in classification precedence order.
const (
	decoratorComponent = "Component"
	decoratorDirective = "Directive"
	decoratorPipe      = "Pipe"
	decoratorNgModule  = "NgModule"
	decoratorAttribute = "Attribute"
)

var entityDecorators = []string{decoratorComponent, decoratorDirective, decoratorPipe, decoratorNgModule}

// EntityFor returns the entity backed by cls, or nil when cls carries no
// Angular class decorator.
//
// Description:
//
//	The result is memoized per class node. Descriptive fields (selector,
//	exportAs, pipe name and so on) are read eagerly; bindings, component
//	imports and module scopes are computed on first access through the
//	entity's methods.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (r *Resolver) EntityFor(cls *ast.Node) entity.Entity {
	if cls == nil || cls.Kind != ast.NodeKindClass {
		return nil
	}
	if e, ok := r.entities.Get(cls.ID); ok {
		return e
	}

	var dec *ast.Node
	for _, name := range entityDecorators {
		if dec = cls.Decorator(name); dec != nil {
			break
		}
	}
	if dec == nil {
		r.entities.Put(cls.ID, nil, []*ast.Node{cls})
		return nil
	}

	md := r.newReader()
	literal := md.decoratorLiteral(dec)

	header := entity.Header{Class: cls, Decorator: dec, Standalone: r.standalone(md, literal)}
	var e entity.Entity
	switch dec.Name {
	case decoratorComponent:
		c := entity.NewComponent(header, r)
		describeDirective(md, &c.Directive, literal)
		c.Template, _ = md.stringValue(literal.PropertyValue("template"))
		c.TemplateURL, _ = md.stringValue(literal.PropertyValue("templateUrl"))
		c.StyleURLs = md.stringList(literal.PropertyValue("styleUrls"))
		if url, ok := md.stringValue(literal.PropertyValue("styleUrl")); ok {
			c.StyleURLs = append(c.StyleURLs, url)
		}
		e = c
	case decoratorDirective:
		d := entity.NewDirective(header, r)
		describeDirective(md, d, literal)
		e = d
	case decoratorPipe:
		p := entity.NewPipe(header)
		p.Name, _ = md.stringValue(literal.PropertyValue("name"))
		if pure, ok := md.boolValue(literal.PropertyValue("pure")); ok {
			p.Pure = pure
		}
		e = p
	case decoratorNgModule:
		header.Standalone = false
		e = entity.NewModule(header, !r.isPrivate(cls.Name), r)
	}

	deps := append([]*ast.Node{cls, dec}, md.dependencies()...)
	r.entities.Put(cls.ID, e, deps)
	return e
}

// standalone reads the standalone flag of a decorator literal.
func (r *Resolver) standalone(md *metadataReader, literal *ast.Node) bool {
	if v, ok := md.boolValue(literal.PropertyValue("standalone")); ok {
		return v
	}
	return r.standaloneDefault
}

func (r *Resolver) isPrivate(className string) bool {
	return r.privatePrefix != "" && strings.HasPrefix(className, r.privatePrefix)
}

// describeDirective fills the descriptive fields shared by directives and
// components.
func describeDirective(md *metadataReader, d *entity.Directive, literal *ast.Node) {
	d.Selector, _ = md.stringValue(literal.PropertyValue("selector"))
	if exportAs, ok := md.stringValue(literal.PropertyValue("exportAs")); ok {
		for _, name := range strings.Split(exportAs, ",") {
			if name = strings.TrimSpace(name); name != "" {
				d.ExportAs = append(d.ExportAs, name)
			}
		}
	}
	d.Attributes = attributes(d.Class())
	d.HostDirectives = md.hostDirectives(literal.PropertyValue("hostDirectives"))
}

// attributes reads @Attribute('name') constructor parameters. Names are
// unique; the first parameter wins.
func attributes(cls *ast.Node) []entity.Attribute {
	ctor := cls.Member("constructor", false)
	if ctor == nil {
		return nil
	}
	var out []entity.Attribute
	seen := make(map[string]bool)
	for _, param := range ctor.Params {
		dec := param.Decorator(decoratorAttribute)
		if dec == nil || len(dec.Args) == 0 {
			continue
		}
		name, ok := dec.Args[0].StringValue()
		if !ok || name == "" || seen[name] {
			continue
		}
		seen[name] = true
		attr := entity.Attribute{Name: name}
		if param.Type != nil {
			attr.Type = param.Type.Text
		}
		out = append(out, attr)
	}
	return out
}

// hostDirectives reads a hostDirectives array: class references and
// {directive, inputs, outputs} objects.
func (m *metadataReader) hostDirectives(expr *ast.Node) []entity.HostDirective {
	var out []entity.HostDirective
	for _, el := range m.literalElements(expr) {
		switch el.Kind {
		case ast.NodeKindClass:
			out = append(out, entity.HostDirective{Directive: el})
		case ast.NodeKindObject:
			hd := entity.HostDirective{
				Inputs:  m.mappings(el.PropertyValue("inputs")),
				Outputs: m.mappings(el.PropertyValue("outputs")),
			}
			if d := m.lookup.Resolve(el.PropertyValue("directive")); d != nil && d.Kind == ast.NodeKindClass {
				hd.Directive = d
			}
			out = append(out, hd)
		default:
			out = append(out, entity.HostDirective{})
		}
	}
	return out
}

func (m *metadataReader) mappings(expr *ast.Node) []entity.Mapping {
	var out []entity.Mapping
	for _, s := range m.stringList(expr) {
		source, alias := ParseMapping(s)
		out = append(out, entity.Mapping{Source: source, Alias: alias})
	}
	return out
}
