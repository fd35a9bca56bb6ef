// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// newTestProgram builds a program from in-memory sources.
func newTestProgram(t *testing.T, sources map[string]string) *Program {
	t.Helper()
	p := NewProgram()
	for path, src := range sources {
		if _, err := p.AddSource(context.Background(), path, []byte(src)); err != nil {
			t.Fatalf("AddSource(%s): %v", path, err)
		}
	}
	return p
}

// =============================================================================
// Name resolution
// =============================================================================

func TestProgram_Resolve_RelativeImport(t *testing.T) {
	p := newTestProgram(t, map[string]string{
		"src/app.ts":    `import { Shared } from './shared'; export const X = [Shared];`,
		"src/shared.ts": `export class Shared {}`,
	})
	app, _ := p.File("src/app.ts")
	ref := app.Declarations["X"].Init.Elements[0]

	got := p.Resolve(ref)
	if got == nil || got.Kind != NodeKindClass || got.Name != "Shared" {
		t.Fatalf("expected class Shared, got %v", got)
	}
	if got.Location.FilePath != "src/shared.ts" {
		t.Errorf("expected declaration in src/shared.ts, got %s", got.Location.FilePath)
	}
}

func TestProgram_Resolve_BarrelReExport(t *testing.T) {
	p := newTestProgram(t, map[string]string{
		"app.ts":        `import { Button as Btn } from './lib'; export const X = Btn;`,
		"lib/index.ts":  `export * from './button';`,
		"lib/button.ts": `export class Button {}`,
		"lib/unused.ts": `export class Unused {}`,
	})
	app, _ := p.File("app.ts")

	got := p.Resolve(app.Declarations["X"].Init)
	if got == nil || got.Name != "Button" {
		t.Fatalf("expected Button through barrel, got %v", got)
	}
}

func TestProgram_Resolve_ReExportCycle(t *testing.T) {
	p := newTestProgram(t, map[string]string{
		"a.ts":   `export * from './b';`,
		"b.ts":   `export * from './a';`,
		"app.ts": `import { Missing } from './a'; export const X = Missing;`,
	})
	app, _ := p.File("app.ts")

	if got := p.Resolve(app.Declarations["X"].Init); got != nil {
		t.Errorf("expected nil for cyclic re-export, got %v", got)
	}
}

func TestProgram_Resolve_PackageImportFallback(t *testing.T) {
	p := newTestProgram(t, map[string]string{
		"app.ts":                       `import { CommonModule } from '@angular/common'; export const X = CommonModule;`,
		"node_modules/common/index.ts": `export class CommonModule {}`,
	})
	app, _ := p.File("app.ts")

	got := p.Resolve(app.Declarations["X"].Init)
	if got == nil || got.Name != "CommonModule" {
		t.Fatalf("expected unique exported CommonModule, got %v", got)
	}
}

func TestProgram_Resolve_AmbiguousPackageImport(t *testing.T) {
	p := newTestProgram(t, map[string]string{
		"app.ts": `import { Dup } from 'pkg'; export const X = Dup;`,
		"one.ts": `export class Dup {}`,
		"two.ts": `export class Dup {}`,
	})
	app, _ := p.File("app.ts")

	if got := p.Resolve(app.Declarations["X"].Init); got != nil {
		t.Errorf("expected nil for ambiguous name, got %v", got)
	}
}

func TestProgram_Resolve_NamespaceImport(t *testing.T) {
	p := newTestProgram(t, map[string]string{
		"app.ts": `import * as lib from './lib'; export const X = lib.Thing;`,
		"lib.ts": `export class Thing {}`,
	})
	app, _ := p.File("app.ts")

	got := p.Resolve(app.Declarations["X"].Init)
	if got == nil || got.Name != "Thing" {
		t.Fatalf("expected Thing, got %v", got)
	}
}

func TestProgram_Resolve_StaticMemberAndObjectProperty(t *testing.T) {
	p := newTestProgram(t, map[string]string{
		"app.ts": `
export class Base { static shared() { return [A]; } }
export class Child extends Base {}
export const GROUPS = { list: [A] };
export const X = Child.shared;
export const Y = GROUPS.list;
export class A {}
`,
	})
	app, _ := p.File("app.ts")

	shared := p.Resolve(app.Declarations["X"].Init)
	if shared == nil || shared.Kind != NodeKindMethod || shared.Name != "shared" {
		t.Fatalf("expected inherited static method, got %v", shared)
	}

	list := p.Resolve(app.Declarations["Y"].Init)
	if list == nil || list.Kind != NodeKindProperty || list.Name != "list" {
		t.Fatalf("expected object property list, got %v", list)
	}
}

func TestProgram_Resolve_ParameterAndLocal(t *testing.T) {
	p := newTestProgram(t, map[string]string{
		"app.ts": `
export function make(extra: any) {
  const base = [A];
  return [base, extra];
}
export class A {}
`,
	})
	app, _ := p.File("app.ts")
	ret := app.Declarations["make"].Returns[0]

	if got := p.Resolve(ret.Elements[0]); got == nil || got.Kind != NodeKindVariable || got.Name != "base" {
		t.Errorf("expected local base, got %v", got)
	}
	if got := p.Resolve(ret.Elements[1]); got == nil || got.Kind != NodeKindParameter {
		t.Errorf("expected parameter extra, got %v", got)
	}
}

func TestProgram_Resolve_SelfReferentialAlias(t *testing.T) {
	p := newTestProgram(t, map[string]string{
		"app.ts": `export const A = A.x;`,
	})
	app, _ := p.File("app.ts")

	if got := p.Resolve(app.Declarations["A"].Init); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

// =============================================================================
// Class type information
// =============================================================================

func TestProgram_AncestorChain_Cycle(t *testing.T) {
	p := newTestProgram(t, map[string]string{
		"app.ts": `export class A extends B {} export class B extends A {}`,
	})
	app, _ := p.File("app.ts")

	chain := p.AncestorChain(app.Declarations["A"])
	if len(chain) != 1 || chain[0].Name != "B" {
		t.Errorf("expected chain [B], got %v", chain)
	}
}

func TestProgram_ClassMembers_ShadowingAndAccessors(t *testing.T) {
	p := newTestProgram(t, map[string]string{
		"app.ts": `
export class Base {
  shared: string;
  baseOnly: number;
}
export class Child extends Base {
  shared: string;
  set value(v: number) {}
  get value(): number { return 0; }
  static ignored = 1;
  constructor() { super(); }
}
`,
	})
	app, _ := p.File("app.ts")

	members := p.ClassMembers(app.Declarations["Child"])
	var names []string
	for _, m := range members {
		names = append(names, m.Name+"@"+m.Owner.Name)
	}
	want := []string{"shared@Child", "value@Child", "baseOnly@Base"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("member %d: expected %s, got %s", i, want[i], names[i])
		}
	}
	if len(members[1].Nodes) != 2 {
		t.Errorf("expected getter and setter grouped, got %d nodes", len(members[1].Nodes))
	}
	if typ := members[1].DeclaredType(); typ == nil || typ.Name != "number" {
		t.Errorf("expected accessor type number, got %+v", typ)
	}
}

func TestProgram_ReturnsArrayLike(t *testing.T) {
	p := newTestProgram(t, map[string]string{
		"app.ts": `
const LIST = [A];
export function declared(): Provider[] { return make(); }
export function inferred() { return [A]; }
export function viaLocal() { return LIST; }
export function scalar() { return A; }
export function wrapper(): ModuleWithProviders<A> { return { ngModule: A }; }
export class A {}
`,
	})
	app, _ := p.File("app.ts")

	tests := map[string]bool{
		"declared": true,
		"inferred": true,
		"viaLocal": true,
		"scalar":   false,
		"wrapper":  false,
	}
	for name, want := range tests {
		if got := p.ReturnsArrayLike(app.Declarations[name]); got != want {
			t.Errorf("%s: expected %v, got %v", name, want, got)
		}
	}
}

// =============================================================================
// Generations and loading
// =============================================================================

func TestProgram_AddSource_BumpsGeneration(t *testing.T) {
	p := newTestProgram(t, map[string]string{"a.ts": `export class A {}`})
	before := p.Generation("a.ts")

	if _, err := p.AddSource(context.Background(), "a.ts", []byte(`export class A { x = 1; }`)); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	after := p.Generation("a.ts")
	if after <= before {
		t.Errorf("expected generation to increase, got %d -> %d", before, after)
	}

	if !p.RemoveFile("a.ts") {
		t.Fatal("expected RemoveFile to report removal")
	}
	if p.Generation("a.ts") != 0 {
		t.Error("expected generation 0 for removed file")
	}
	if len(p.ExportedNamed("A")) != 0 {
		t.Error("expected name index to drop removed declarations")
	}
}

func TestProgram_LoadFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.ts")
	if err := os.WriteFile(good, []byte(`export class Good {}`), 0o644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.ts")

	p := NewProgram(WithWorkers(2))
	err := p.LoadFiles(context.Background(), []string{good, missing})

	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *LoadError, got %v", err)
	}
	if len(loadErr.Errors) != 1 {
		t.Errorf("expected 1 failure, got %d", len(loadErr.Errors))
	}
	if _, ok := p.File(good); !ok {
		t.Error("expected good.ts to be installed despite the failure")
	}
	if len(p.Classes()) != 1 {
		t.Errorf("expected 1 class, got %d", len(p.Classes()))
	}
}

func TestProgram_LoadFiles_Canceled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	if err := os.WriteFile(path, []byte(`export class A {}`), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewProgram()
	if err := p.LoadFiles(ctx, []string{path}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(p.Files()) != 0 {
		t.Error("expected nothing installed after cancellation")
	}
}

// =============================================================================
// Lookup traces
// =============================================================================

func TestLookup_TraceRecordsConsultedFiles(t *testing.T) {
	p := newTestProgram(t, map[string]string{
		"app.ts":        `import { Button, Missing } from './lib'; export const X = [Button, Missing];`,
		"lib/index.ts":  `export { Button } from './button'; export * from './other';`,
		"lib/button.ts": `export class Button {}`,
		"lib/other.ts":  `export const unrelated = 1;`,
	})
	app, _ := p.File("app.ts")
	elements := app.Declarations["X"].Init.Elements

	var found Trace
	if got := p.Lookup(&found).Resolve(elements[0]); got == nil || got.Name != "Button" {
		t.Fatalf("expected class Button, got %v", got)
	}
	want := []string{"app.ts", "lib/index.ts", "lib/button.ts"}
	if got := found.Files(); !slices.Equal(got, want) {
		t.Errorf("expected consulted files %v, got %v", want, got)
	}

	var missing Trace
	if got := p.Lookup(&missing).Resolve(elements[1]); got != nil {
		t.Fatalf("expected Missing to be unresolved, got %v", got)
	}
	want = []string{"app.ts", "lib/index.ts", "lib/other.ts"}
	if got := missing.Files(); !slices.Equal(got, want) {
		t.Errorf("expected failed lookup to consult %v, got %v", want, got)
	}
	for _, root := range missing.Dependencies() {
		if root.Kind != NodeKindFile {
			t.Errorf("expected file root dependency, got %s", root.Kind)
		}
	}

	if got := p.Lookup(nil).Resolve(elements[0]); got == nil {
		t.Error("expected a nil trace to resolve without recording")
	}
}

func TestSameSurface(t *testing.T) {
	parse := func(src string) *File {
		t.Helper()
		f, err := NewTypeScriptParser().Parse(context.Background(), []byte(src), "a.ts")
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		return f
	}
	base := parse(`export class A { x = 1; } export { B } from './b';`)

	tests := []struct {
		name string
		src  string
		same bool
	}{
		{"body edit", `export class A { x = 2; y = 3; } export { B } from './b';`, true},
		{"renamed class", `export class C { x = 1; } export { B } from './b';`, false},
		{"unexported", `class A { x = 1; } export { B } from './b';`, false},
		{"repointed re-export", `export class A { x = 1; } export { B } from './c';`, false},
		{"new export", `export class A { x = 1; } export { B } from './b'; export const D = 1;`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameSurface(base, parse(tt.src)); got != tt.same {
				t.Errorf("SameSurface = %v, want %v", got, tt.same)
			}
		})
	}
	if SameSurface(base, nil) {
		t.Error("expected a removed file to change the surface")
	}
}
