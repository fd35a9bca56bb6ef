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
	"strings"
	"testing"
)

const componentSource = `import { Component, Input, Output, EventEmitter } from '@angular/core';
import * as core from '@angular/core';
import Default from './default';

@Component({
  selector: 'app-card',
  inputs: ['legacy: alias'],
  standalone: true,
})
export class CardComponent extends BaseCard {
  @Input('titleAlias') title: string;
  @core.Output() changed = new EventEmitter<string>();

  @Input()
  set value(v: number) {}
  get value(): number { return 1; }

  static forRoot(): ModuleWithProviders<CardModule> {
    return { ngModule: CardModule };
  }

  constructor(@Attribute('role') private role: string) {}
}

class Hidden {}
`

func parseSource(t *testing.T, source, path string) *File {
	t.Helper()
	file, err := NewTypeScriptParser().Parse(context.Background(), []byte(source), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if file == nil {
		t.Fatal("expected non-nil file")
	}
	return file
}

func TestTypeScriptParser_Parse_EmptyFile(t *testing.T) {
	file := parseSource(t, "", "empty.ts")

	if file.Path != "empty.ts" {
		t.Errorf("expected path 'empty.ts', got %q", file.Path)
	}
	if len(file.Classes()) != 0 {
		t.Errorf("expected no classes, got %d", len(file.Classes()))
	}
	if file.Hash == "" {
		t.Error("expected content hash")
	}
}

func TestTypeScriptParser_Parse_ClassDecorators(t *testing.T) {
	file := parseSource(t, componentSource, "card.ts")

	card := file.Declarations["CardComponent"]
	if card == nil || card.Kind != NodeKindClass {
		t.Fatalf("expected class CardComponent, got %v", card)
	}
	if !card.Modifiers.Has(ModExported) {
		t.Error("expected CardComponent to be exported")
	}

	dec := card.Decorator("Component")
	if dec == nil {
		t.Fatal("expected @Component decorator")
	}
	if len(dec.Args) != 1 || dec.Args[0].Kind != NodeKindObject {
		t.Fatalf("expected one object argument, got %d", len(dec.Args))
	}
	selector, ok := dec.Args[0].PropertyValue("selector").StringValue()
	if !ok || selector != "app-card" {
		t.Errorf("expected selector 'app-card', got %q", selector)
	}
	standalone, ok := dec.Args[0].PropertyValue("standalone").BoolValue()
	if !ok || !standalone {
		t.Error("expected standalone: true")
	}

	if file.Declarations["Hidden"] == nil {
		t.Error("expected non-exported class Hidden")
	}
	if _, exported := file.Exports["Hidden"]; exported {
		t.Error("Hidden must not be exported")
	}
}

func TestTypeScriptParser_Parse_Members(t *testing.T) {
	file := parseSource(t, componentSource, "card.ts")
	card := file.Declarations["CardComponent"]

	title := card.Member("title", false)
	if title == nil || title.Kind != NodeKindField {
		t.Fatalf("expected field title, got %v", title)
	}
	input := title.Decorator("Input")
	if input == nil {
		t.Fatal("expected @Input on title")
	}
	if alias, _ := input.Args[0].StringValue(); alias != "titleAlias" {
		t.Errorf("expected alias 'titleAlias', got %q", alias)
	}
	if title.Type == nil || title.Type.Name != "string" {
		t.Errorf("expected type string, got %+v", title.Type)
	}

	changed := card.Member("changed", false)
	if changed == nil || changed.Decorator("Output") == nil {
		t.Fatal("expected qualified @core.Output on changed")
	}

	var setter, getter *Node
	for _, m := range card.Members {
		if m.Name != "value" {
			continue
		}
		if m.Modifiers.Has(ModSetter) {
			setter = m
		}
		if m.Modifiers.Has(ModGetter) {
			getter = m
		}
	}
	if setter == nil || getter == nil {
		t.Fatal("expected getter and setter for value")
	}
	if setter.Decorator("Input") == nil {
		t.Error("expected preceding @Input attached to the setter")
	}
	if getter.Decorator("Input") != nil {
		t.Error("decorator must not leak to the following getter")
	}

	forRoot := card.Member("forRoot", true)
	if forRoot == nil {
		t.Fatal("expected static forRoot")
	}
	if forRoot.Type == nil || forRoot.Type.Name != "ModuleWithProviders" {
		t.Fatalf("expected ModuleWithProviders return type, got %+v", forRoot.Type)
	}
	if len(forRoot.Type.Args) != 1 || forRoot.Type.Args[0].Name != "CardModule" {
		t.Errorf("expected type argument CardModule, got %+v", forRoot.Type.Args)
	}
	if len(forRoot.Returns) != 1 || forRoot.Returns[0].Kind != NodeKindObject {
		t.Fatalf("expected one object return, got %d", len(forRoot.Returns))
	}

	ctor := card.Member("constructor", false)
	if ctor == nil || len(ctor.Params) != 1 {
		t.Fatal("expected constructor with one parameter")
	}
	if ctor.Params[0].Decorator("Attribute") == nil {
		t.Error("expected @Attribute on constructor parameter")
	}
	if role := card.Member("role", false); role == nil || role.Kind != NodeKindField {
		t.Error("expected parameter property role as a field")
	}
}

func TestTypeScriptParser_Parse_Heritage(t *testing.T) {
	file := parseSource(t, componentSource, "card.ts")
	card := file.Declarations["CardComponent"]

	if card.Heritage == nil || card.Heritage.Kind != NodeKindIdentifier || card.Heritage.Name != "BaseCard" {
		t.Errorf("expected heritage BaseCard, got %v", card.Heritage)
	}
}

func TestTypeScriptParser_Parse_Imports(t *testing.T) {
	file := parseSource(t, componentSource, "card.ts")

	byLocal := make(map[string]Import)
	for _, imp := range file.Imports {
		byLocal[imp.LocalName] = imp
	}
	if imp := byLocal["Input"]; imp.ImportedName != "Input" || imp.Path != "@angular/core" {
		t.Errorf("unexpected Input import: %+v", imp)
	}
	if imp := byLocal["core"]; imp.ImportedName != "*" {
		t.Errorf("expected namespace import, got %+v", imp)
	}
	if imp := byLocal["Default"]; imp.ImportedName != "default" || !imp.IsRelative() {
		t.Errorf("expected relative default import, got %+v", imp)
	}
}

func TestTypeScriptParser_Parse_Exports(t *testing.T) {
	source := `export { A, B as C } from './ab';
export * from './all';
const local = 1;
export { local as renamed };
export default class Main {}
`
	file := parseSource(t, source, "index.ts")

	if len(file.ReExports) != 2 {
		t.Fatalf("expected 2 re-exports, got %d", len(file.ReExports))
	}
	if got := file.ReExports[0].Names["C"]; got != "B" {
		t.Errorf("expected C -> B, got %q", got)
	}
	if file.ReExports[1].Names != nil || file.ReExports[1].Path != "./all" {
		t.Errorf("expected star re-export of ./all, got %+v", file.ReExports[1])
	}
	if file.Exports["renamed"] != "local" {
		t.Errorf("expected renamed -> local, got %q", file.Exports["renamed"])
	}
	if file.Exports["default"] != "Main" {
		t.Errorf("expected default export Main, got %q", file.Exports["default"])
	}
}

func TestTypeScriptParser_Parse_FunctionReturns(t *testing.T) {
	source := `export function providers(flag: boolean) {
  const extra = [C];
  if (flag) {
    return [A, ...extra];
  }
  const nested = () => { return [Ignored]; };
  return [B];
}
export const arrow = () => [D];
`
	file := parseSource(t, source, "fn.ts")

	fn := file.Declarations["providers"]
	if fn == nil || fn.Kind != NodeKindFunction {
		t.Fatalf("expected function providers, got %v", fn)
	}
	if len(fn.Returns) != 2 {
		t.Fatalf("expected 2 returns (nested arrow excluded), got %d", len(fn.Returns))
	}
	if first := fn.Returns[0]; first.Kind != NodeKindArray || len(first.Elements) != 2 {
		t.Errorf("expected first return [A, ...extra], got %v", first)
	}
	if fn.Locals["extra"] == nil || fn.Locals["nested"] == nil {
		t.Error("expected locals extra and nested")
	}
	if len(fn.Params) != 1 || fn.Params[0].Name != "flag" {
		t.Errorf("expected parameter flag, got %v", fn.Params)
	}

	arrow := file.Declarations["arrow"]
	if arrow == nil || arrow.Init == nil || arrow.Init.Kind != NodeKindArrowFunction {
		t.Fatalf("expected arrow function initializer, got %v", arrow)
	}
	if len(arrow.Init.Returns) != 1 || arrow.Init.Returns[0].Kind != NodeKindArray {
		t.Error("expected expression body recorded as return")
	}
}

func TestTypeScriptParser_Parse_Expressions(t *testing.T) {
	source := `export const X = {
  a: (cond ? [A] : [B]) as any[],
  b: forwardRef(() => C),
  c: D!,
  e,
  ...rest,
};
`
	file := parseSource(t, source, "expr.ts")
	obj := file.Declarations["X"].Init

	a := obj.PropertyValue("a")
	if a.Kind != NodeKindWrapped {
		t.Fatalf("expected wrapped as-expression, got %v", a.Kind)
	}
	if inner := a.Unwrap(); inner.Kind != NodeKindConditional || inner.Then.Kind != NodeKindArray {
		t.Errorf("expected conditional under parentheses, got %v", inner)
	}

	b := obj.PropertyValue("b")
	if b.Kind != NodeKindCall || b.Callee.Name != "forwardRef" || len(b.Args) != 1 {
		t.Errorf("expected forwardRef call, got %v", b)
	}

	if c := obj.PropertyValue("c"); c.Unwrap().Name != "D" {
		t.Errorf("expected non-null D, got %v", c)
	}
	if e := obj.PropertyValue("e"); e == nil || e.Kind != NodeKindIdentifier || e.Name != "e" {
		t.Errorf("expected shorthand property e, got %v", e)
	}

	var spread bool
	for _, m := range obj.Members {
		if m.Kind == NodeKindSpread {
			spread = true
		}
	}
	if !spread {
		t.Error("expected spread member")
	}
}

func TestTypeScriptParser_Parse_TypeRefs(t *testing.T) {
	source := `export let a: Type<any>[];
export let b: Array<Foo>;
export let c: any;
export let d: i0.Bar;
export let e: readonly Foo[];
`
	file := parseSource(t, source, "types.ts")

	tests := []struct {
		name      string
		wantName  string
		wantArray bool
	}{
		{"a", "", true},
		{"b", "Array", true},
		{"c", "any", false},
		{"d", "Bar", false},
		{"e", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := file.Declarations[tt.name]
			if v == nil || v.Type == nil {
				t.Fatalf("expected typed variable %s", tt.name)
			}
			if v.Type.Name != tt.wantName {
				t.Errorf("name: expected %q, got %q", tt.wantName, v.Type.Name)
			}
			if v.Type.Array != tt.wantArray {
				t.Errorf("array: expected %v, got %v", tt.wantArray, v.Type.Array)
			}
		})
	}

	if !file.Declarations["c"].Type.IsDynamic() {
		t.Error("expected any to be dynamic")
	}
}

func TestTypeScriptParser_Parse_FileTooLarge(t *testing.T) {
	parser := NewTypeScriptParser(WithTypeScriptMaxFileSize(10))
	_, err := parser.Parse(context.Background(), []byte(strings.Repeat("x", 100)), "big.ts")

	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestTypeScriptParser_Parse_InvalidUTF8(t *testing.T) {
	_, err := NewTypeScriptParser().Parse(context.Background(), []byte{0xff, 0xfe}, "bad.ts")

	if !errors.Is(err, ErrInvalidContent) {
		t.Errorf("expected ErrInvalidContent, got %v", err)
	}
}

func TestTypeScriptParser_Parse_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTypeScriptParser().Parse(ctx, []byte("export class A {}"), "a.ts")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTypeScriptParser_Parse_SyntaxErrorIsTolerated(t *testing.T) {
	file := parseSource(t, "export class A { @Input() x: string; \n class", "broken.ts")

	if len(file.Errors) == 0 {
		t.Error("expected syntax diagnostic")
	}
}

func TestTypeScriptParser_UniqueNodeIDs(t *testing.T) {
	first := parseSource(t, "export class A {}", "a.ts")
	second := parseSource(t, "export class A {}", "a.ts")

	if first.Declarations["A"].ID == second.Declarations["A"].ID {
		t.Error("re-parsed nodes must get fresh IDs")
	}
}
