// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/AleutianAI/ngscope/services/ngscope/entity"
)

// Report is the serializable result of resolving every entity of a
// workspace.
type Report struct {
	RunID            string         `json:"run_id"`
	Root             string         `json:"root"`
	GeneratedAtMilli int64          `json:"generated_at_milli"`
	Entities         []EntityReport `json:"entities"`
	Summary          Summary        `json:"summary"`
}

// Summary counts entities by kind.
type Summary struct {
	Directives      int `json:"directives"`
	Components      int `json:"components"`
	Pipes           int `json:"pipes"`
	Modules         int `json:"modules"`
	DegradedModules int `json:"degraded_modules"`
}

// EntityReport describes one entity. Fields that do not apply to the kind
// are left empty.
type EntityReport struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	Standalone bool   `json:"standalone,omitempty"`

	Selector       string           `json:"selector,omitempty"`
	ExportAs       []string         `json:"export_as,omitempty"`
	Inputs         []PropertyReport `json:"inputs,omitempty"`
	Outputs        []PropertyReport `json:"outputs,omitempty"`
	HostDirectives []string         `json:"host_directives,omitempty"`

	// Imports is set for standalone components.
	Imports *ListReport `json:"imports,omitempty"`

	PipeName string `json:"pipe_name,omitempty"`
	Pure     *bool  `json:"pure,omitempty"`

	Scope *ScopeReport `json:"scope,omitempty"`
}

// PropertyReport is one input or output binding.
type PropertyReport struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	Required bool   `json:"required,omitempty"`
	Virtual  bool   `json:"virtual,omitempty"`
	Owner    string `json:"owner,omitempty"`
}

// ScopeReport is the scope of a module.
type ScopeReport struct {
	Public               bool       `json:"public"`
	HasMetadata          bool       `json:"has_metadata"`
	FullyResolved        bool       `json:"fully_resolved"`
	Declarations         ListReport `json:"declarations"`
	Imports              ListReport `json:"imports"`
	Exports              ListReport `json:"exports"`
	ExportedTransitively []string   `json:"exported_transitively"`
}

// ListReport is one resolved metadata list.
type ListReport struct {
	Entities      []string           `json:"entities"`
	FullyResolved bool               `json:"fully_resolved"`
	Unresolved    []UnresolvedReport `json:"unresolved,omitempty"`
}

// UnresolvedReport locates one expression that could not be resolved.
type UnresolvedReport struct {
	Reason   string `json:"reason"`
	Location string `json:"location,omitempty"`
}

// Degraded reports whether anything in the entity failed to resolve.
func (e *EntityReport) Degraded() bool {
	if e.Scope != nil && !e.Scope.FullyResolved {
		return true
	}
	return e.Imports != nil && !e.Imports.FullyResolved
}

// BuildReport resolves every entity of the workspace.
//
// Inputs:
//
//	ctx - Only checked for cancellation.
//	runID - Stamped on the report.
//
// Outputs:
//
//	*Report - Entities in program order.
//	error - Only context cancellation.
func (w *Workspace) BuildReport(ctx context.Context, runID string) (*Report, error) {
	entities, err := w.resolver.Entities(ctx)
	if err != nil {
		return nil, err
	}

	r := &Report{
		RunID:            runID,
		Root:             w.root,
		GeneratedAtMilli: time.Now().UnixMilli(),
		Entities:         make([]EntityReport, 0, len(entities)),
	}
	for _, e := range entities {
		er, err := w.Describe(ctx, e)
		if err != nil {
			return nil, err
		}
		switch e.Kind() {
		case entity.KindDirective:
			r.Summary.Directives++
		case entity.KindComponent:
			r.Summary.Components++
		case entity.KindPipe:
			r.Summary.Pipes++
		case entity.KindModule:
			r.Summary.Modules++
			if er.Degraded() {
				r.Summary.DegradedModules++
			}
		}
		r.Entities = append(r.Entities, er)
	}
	return r, nil
}

// Describe resolves everything known about one entity.
func (w *Workspace) Describe(ctx context.Context, e entity.Entity) (EntityReport, error) {
	cls := e.Class()
	er := EntityReport{
		Name:       e.ClassName(),
		Kind:       e.Kind().String(),
		File:       w.Rel(cls.Location.FilePath),
		Line:       cls.Location.StartLine,
		Standalone: e.IsStandalone(),
	}

	switch v := e.(type) {
	case *entity.Component:
		if err := w.describeDirective(ctx, &v.Directive, &er); err != nil {
			return er, err
		}
		if v.IsStandalone() {
			imports, err := v.Imports(ctx)
			if err != nil {
				return er, err
			}
			list := w.listReport(imports)
			er.Imports = &list
		}
	case *entity.Directive:
		if err := w.describeDirective(ctx, v, &er); err != nil {
			return er, err
		}
	case *entity.Pipe:
		er.PipeName = v.Name
		pure := v.Pure
		er.Pure = &pure
	case *entity.Module:
		scope, err := v.Scope(ctx)
		if err != nil {
			return er, err
		}
		er.Scope = &ScopeReport{
			Public:               v.IsPublic,
			HasMetadata:          scope.HasMetadata,
			FullyResolved:        scope.IsScopeFullyResolved(),
			Declarations:         w.listReport(scope.Declarations),
			Imports:              w.listReport(scope.Imports),
			Exports:              w.listReport(scope.Exports),
			ExportedTransitively: nonNil(scope.AllExportedDeclarations.ClassNames()),
		}
	}
	return er, nil
}

func (w *Workspace) describeDirective(ctx context.Context, d *entity.Directive, er *EntityReport) error {
	er.Selector = d.Selector
	er.ExportAs = d.ExportAs
	for _, hd := range d.HostDirectives {
		if hd.Directive != nil {
			er.HostDirectives = append(er.HostDirectives, hd.Directive.Name)
		}
	}

	b, err := d.Bindings(ctx)
	if err != nil {
		return err
	}
	er.Inputs = w.properties(d, b.Inputs)
	er.Outputs = w.properties(d, b.Outputs)
	return nil
}

func (w *Workspace) properties(d *entity.Directive, m *entity.PropertyMap) []PropertyReport {
	var out []PropertyReport
	for _, p := range m.Properties() {
		pr := PropertyReport{
			Name:     p.Name,
			Source:   p.SourceName,
			Required: p.Required,
			Virtual:  p.Virtual,
		}
		// Only inherited bindings name their owner.
		if p.Owner != nil && p.Owner.ID != d.Class().ID {
			pr.Owner = p.Owner.Name
		}
		out = append(out, pr)
	}
	return out
}

func (w *Workspace) listReport(res *entity.Resolution) ListReport {
	lr := ListReport{
		Entities:      nonNil(res.Entities.ClassNames()),
		FullyResolved: res.FullyResolved(),
	}
	for _, u := range res.Unresolved {
		ur := UnresolvedReport{Reason: u.Reason.String()}
		if u.Node != nil {
			ur.Location = fmt.Sprintf("%s:%d", w.Rel(u.Node.Location.FilePath), u.Node.Location.StartLine)
		}
		lr.Unresolved = append(lr.Unresolved, ur)
	}
	return lr
}

// nonNil keeps empty lists as [] in JSON.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
