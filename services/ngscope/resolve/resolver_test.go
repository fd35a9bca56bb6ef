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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
	"github.com/AleutianAI/ngscope/services/ngscope/entity"
)

// newTestResolver parses sources into a fresh program and wraps it.
func newTestResolver(t *testing.T, sources map[string]string, opts ...Option) *Resolver {
	t.Helper()
	p := ast.NewProgram()
	for path, src := range sources {
		_, err := p.AddSource(context.Background(), path, []byte(src))
		require.NoError(t, err, "AddSource(%s)", path)
	}
	return NewResolver(p, opts...)
}

// classIn returns the named top-level class of a file.
func classIn(t *testing.T, r *Resolver, path, name string) *ast.Node {
	t.Helper()
	f, ok := r.Program().File(path)
	require.True(t, ok, "file %s not loaded", path)
	cls := f.Declarations[name]
	require.NotNil(t, cls, "class %s not declared in %s", name, path)
	require.Equal(t, ast.NodeKindClass, cls.Kind)
	return cls
}

func moduleIn(t *testing.T, r *Resolver, path, name string) *entity.Module {
	t.Helper()
	m, ok := r.EntityFor(classIn(t, r, path, name)).(*entity.Module)
	require.True(t, ok, "%s is not a module", name)
	return m
}

func directiveIn(t *testing.T, r *Resolver, path, name string) *entity.Directive {
	t.Helper()
	switch e := r.EntityFor(classIn(t, r, path, name)).(type) {
	case *entity.Directive:
		return e
	case *entity.Component:
		return &e.Directive
	}
	t.Fatalf("%s is not a directive or component", name)
	return nil
}

func componentIn(t *testing.T, r *Resolver, path, name string) *entity.Component {
	t.Helper()
	c, ok := r.EntityFor(classIn(t, r, path, name)).(*entity.Component)
	require.True(t, ok, "%s is not a component", name)
	return c
}

func reasons(res *entity.Resolution) []entity.Reason {
	var out []entity.Reason
	for _, u := range res.Unresolved {
		out = append(out, u.Reason)
	}
	return out
}

// =============================================================================
// Entity classification
// =============================================================================

func TestEntityFor_Kinds(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"app.ts": `
import { Component, Directive, Pipe, NgModule } from '@angular/core';

@Component({ selector: 'app-root', template: '<p></p>', standalone: true, styleUrl: 'a.css' })
export class AppComponent {}

@Directive({ selector: '[tip]', exportAs: 'tip, tooltip' })
export class TipDirective {}

@Pipe({ name: 'upper', pure: false })
export class UpperPipe {}

@NgModule({})
export class AppModule {}

@NgModule({})
export class ɵInternalModule {}

export class Plain {}
`,
	})

	c := componentIn(t, r, "app.ts", "AppComponent")
	assert.Equal(t, entity.KindComponent, c.Kind())
	assert.Equal(t, "app-root", c.Selector)
	assert.Equal(t, "<p></p>", c.Template)
	assert.Equal(t, []string{"a.css"}, c.StyleURLs)
	assert.True(t, c.IsStandalone())

	d := directiveIn(t, r, "app.ts", "TipDirective")
	assert.Equal(t, entity.KindDirective, d.Kind())
	assert.Equal(t, []string{"tip", "tooltip"}, d.ExportAs)
	assert.False(t, d.IsStandalone())

	p, ok := r.EntityFor(classIn(t, r, "app.ts", "UpperPipe")).(*entity.Pipe)
	require.True(t, ok)
	assert.Equal(t, "upper", p.Name)
	assert.False(t, p.Pure)

	assert.True(t, moduleIn(t, r, "app.ts", "AppModule").IsPublic)
	assert.False(t, moduleIn(t, r, "app.ts", "ɵInternalModule").IsPublic)

	assert.Nil(t, r.EntityFor(classIn(t, r, "app.ts", "Plain")))
	assert.Nil(t, r.EntityFor(nil))
}

func TestEntityFor_Memoized(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"a.ts": `@Directive({ selector: '[a]' }) export class A {}`,
	})
	cls := classIn(t, r, "a.ts", "A")
	assert.Same(t, r.EntityFor(cls), r.EntityFor(cls))
}

func TestEntityFor_StandaloneDefault(t *testing.T) {
	src := map[string]string{
		"a.ts": `
@Directive({ selector: '[a]' }) export class A {}
@Directive({ selector: '[b]', standalone: false }) export class B {}
`,
	}
	r := newTestResolver(t, src, WithStandaloneDefault(true))
	assert.True(t, directiveIn(t, r, "a.ts", "A").IsStandalone())
	assert.False(t, directiveIn(t, r, "a.ts", "B").IsStandalone())
}

func TestEntityFor_PrivatePrefix(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"a.ts": `@NgModule({}) export class InternalModule {}`,
	}, WithPrivatePrefix("Internal"))
	assert.False(t, moduleIn(t, r, "a.ts", "InternalModule").IsPublic)
}

func TestEntityFor_AttributesAndHostDirectives(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"a.ts": `
@Directive({ selector: '[base]', standalone: true })
export class Base {}

@Directive({
  selector: '[host]',
  hostDirectives: [Base, { directive: Base, inputs: ['color: tint', 'size'], outputs: ['changed'] }],
})
export class Host {
  constructor(@Attribute('role') role: string, @Attribute('role') again: string, @Attribute('aria') aria) {}
}
`,
	})
	d := directiveIn(t, r, "a.ts", "Host")

	require.Len(t, d.Attributes, 2)
	assert.Equal(t, "role", d.Attributes[0].Name)
	assert.Equal(t, "string", d.Attributes[0].Type)
	assert.Equal(t, "aria", d.Attributes[1].Name)

	attr, ok := d.Attribute("aria")
	assert.True(t, ok)
	assert.Equal(t, "aria", attr.Name)

	require.Len(t, d.HostDirectives, 2)
	base := classIn(t, r, "a.ts", "Base")
	assert.Equal(t, base, d.HostDirectives[0].Directive)
	assert.Equal(t, base, d.HostDirectives[1].Directive)
	assert.Equal(t, []entity.Mapping{{Source: "color", Alias: "tint"}, {Source: "size", Alias: "size"}}, d.HostDirectives[1].Inputs)
	assert.Equal(t, []entity.Mapping{{Source: "changed", Alias: "changed"}}, d.HostDirectives[1].Outputs)
}

// =============================================================================
// Invalidation
// =============================================================================

func TestResolver_InvalidatesOnFileChange(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t, map[string]string{
		"shared.ts": `@Component({ selector: 'x' }) export class X {}`,
		"app.ts": `
import { X } from './shared';
@NgModule({ declarations: [X] })
export class AppModule {}
`,
	})

	scope, err := moduleIn(t, r, "app.ts", "AppModule").Scope(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, scope.Declarations.Entities.ClassNames())
	assert.True(t, scope.IsScopeFullyResolved())

	_, err = r.Program().AddSource(ctx, "shared.ts", []byte(`export class X {}`))
	require.NoError(t, err)

	scope, err = moduleIn(t, r, "app.ts", "AppModule").Scope(ctx)
	require.NoError(t, err)
	assert.Zero(t, scope.Declarations.Entities.Len())
	assert.Equal(t, []entity.Reason{entity.ReasonWrongKind}, reasons(scope.Declarations))
	assert.Positive(t, r.Prune())
}

func TestResolver_InvalidatesWhenImportedFileGainsExport(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t, map[string]string{
		"b.ts": `export const unrelated = 1;`,
		"a.ts": `
import { B } from './b';
@NgModule({ declarations: [B] })
export class AppModule {}
`,
	})

	m := moduleIn(t, r, "a.ts", "AppModule")
	scope, err := m.Scope(ctx)
	require.NoError(t, err)
	assert.False(t, scope.IsScopeFullyResolved())
	assert.Equal(t, []string{"a.ts", "b.ts"}, scope.Declarations.DependencyFiles(),
		"the file searched for B is a dependency even though it lacks B")
	assert.Contains(t, scope.Declarations.Dependencies, m.Decorator())

	_, err = r.Program().AddSource(ctx, "b.ts", []byte(`@Component({ selector: 'b' }) export class B {}`))
	require.NoError(t, err)
	assert.Positive(t, r.Prune())

	scope, err = moduleIn(t, r, "a.ts", "AppModule").Scope(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, scope.Declarations.Entities.ClassNames())
	assert.True(t, scope.IsScopeFullyResolved())
}

func TestResolver_InvalidatesWhenBarrelRepoints(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t, map[string]string{
		"b1.ts":     `@Component({ selector: 'b' }) export class B {}`,
		"b2.ts":     `@Pipe({ name: 'b' }) export class B {}`,
		"barrel.ts": `export { B } from './b1';`,
		"app.ts": `
import { B } from './barrel';
@NgModule({ declarations: [B] })
export class AppModule {}
`,
	})

	scope, err := moduleIn(t, r, "app.ts", "AppModule").Scope(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, scope.Declarations.Entities.Len())
	assert.IsType(t, &entity.Component{}, scope.Declarations.Entities.Entities()[0])
	assert.Contains(t, scope.Declarations.DependencyFiles(), "barrel.ts")

	_, err = r.Program().AddSource(ctx, "barrel.ts", []byte(`export { B } from './b2';`))
	require.NoError(t, err)
	assert.Positive(t, r.Prune())

	scope, err = moduleIn(t, r, "app.ts", "AppModule").Scope(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, scope.Declarations.Entities.Len())
	assert.IsType(t, &entity.Pipe{}, scope.Declarations.Entities.Entities()[0])
}

func TestResolver_EntityTracksConstantsInOtherFiles(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t, map[string]string{
		"consts.ts": `
export const SELECTOR = 'app-x';
export const STANDALONE = false;
`,
		"x.ts": `
import { SELECTOR, STANDALONE } from './consts';
@Component({ selector: SELECTOR, standalone: STANDALONE })
export class X {}
`,
	})

	d := directiveIn(t, r, "x.ts", "X")
	assert.Equal(t, "app-x", d.Selector)
	assert.False(t, d.IsStandalone())

	_, err := r.Program().AddSource(ctx, "consts.ts", []byte(`
export const SELECTOR = 'app-y';
export const STANDALONE = true;
`))
	require.NoError(t, err)
	assert.Positive(t, r.Prune())

	d = directiveIn(t, r, "x.ts", "X")
	assert.Equal(t, "app-y", d.Selector)
	assert.True(t, d.IsStandalone())
}

func TestResolver_Entities(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"b.ts": `@Pipe({ name: 'p' }) export class P {}`,
		"a.ts": `
@Directive({ selector: '[d]' }) export class D {}
export class Plain {}
@NgModule({}) export class M {}
`,
	})
	entities, err := r.Entities(context.Background())
	require.NoError(t, err)

	var names []string
	for _, e := range entities {
		names = append(names, e.ClassName())
	}
	assert.Equal(t, []string{"D", "M", "P"}, names)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Entities(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
