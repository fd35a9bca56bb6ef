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

	"github.com/AleutianAI/ngscope/services/ngscope/entity"
)

func bindingsOf(t *testing.T, r *Resolver, path, name string) entity.Bindings {
	t.Helper()
	b, err := directiveIn(t, r, path, name).Bindings(context.Background())
	require.NoError(t, err)
	return b
}

func property(t *testing.T, m *entity.PropertyMap, name string) *entity.Property {
	t.Helper()
	p, ok := m.Get(name)
	require.True(t, ok, "no property %q in %v", name, m.Names())
	return p
}

func TestBindings_DecoratedMembers(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"a.ts": `
@Directive({ selector: '[a]' })
export class A {
  @Input() plain: string;
  @Input('aliased') source: number;
  @Input({ alias: 'req', required: true }) needed!: boolean;
  @Output() changed = new EventEmitter<string>();
  untouched = 1;
  @Input() static ignored: string;
}
`,
	})
	b := bindingsOf(t, r, "a.ts", "A")

	assert.Equal(t, []string{"plain", "aliased", "req"}, b.Inputs.Names())
	assert.Equal(t, []string{"changed"}, b.Outputs.Names())

	aliased := property(t, b.Inputs, "aliased")
	assert.Equal(t, "source", aliased.SourceName)
	assert.Equal(t, "number", aliased.RawType)
	assert.False(t, aliased.Virtual)

	req := property(t, b.Inputs, "req")
	assert.True(t, req.Required)
	assert.Equal(t, "needed", req.SourceName)
}

func TestBindings_DecoratorBeatsMapping(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"a.ts": `
@Directive({ selector: '[a]', inputs: ['x: y'] })
export class A {
  @Input('z') x: string;
}
`,
	})
	b := bindingsOf(t, r, "a.ts", "A")

	assert.Equal(t, []string{"z"}, b.Inputs.Names())
	assert.False(t, property(t, b.Inputs, "z").Virtual)
}

func TestBindings_MappingOnUndecoratedMember(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"a.ts": `
@Directive({
  selector: '[a]',
  inputs: ['x: y', { name: 'w', alias: 'v', required: true }],
  outputs: ['done'],
})
export class A {
  x: string;
  w: number;
  done = new EventEmitter<void>();
}
`,
	})
	b := bindingsOf(t, r, "a.ts", "A")

	assert.Equal(t, []string{"y", "v"}, b.Inputs.Names())
	assert.Equal(t, "x", property(t, b.Inputs, "y").SourceName)
	assert.True(t, property(t, b.Inputs, "v").Required)
	assert.False(t, property(t, b.Inputs, "v").Virtual)
	assert.Equal(t, []string{"done"}, b.Outputs.Names())
}

func TestBindings_VirtualProperty(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"a.ts": `
@Directive({ selector: '[a]', inputs: ['x: y'] })
export class A {}
`,
	})
	b := bindingsOf(t, r, "a.ts", "A")

	require.Equal(t, 1, b.Inputs.Len())
	y := property(t, b.Inputs, "y")
	assert.True(t, y.Virtual)
	assert.Equal(t, "x", y.SourceName)
	assert.Equal(t, classIn(t, r, "a.ts", "A"), y.Owner)
	assert.Zero(t, b.Outputs.Len())
}

func TestBindings_MappingFromConstant(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"a.ts": `
const BASE_INPUTS = ['a', 'b:bee'];
@Directive({ selector: '[a]', inputs: [...BASE_INPUTS, 'c'] })
export class A {}
`,
	})
	b := bindingsOf(t, r, "a.ts", "A")
	assert.Equal(t, []string{"a", "bee", "c"}, b.Inputs.Names())
}

func TestBindings_Inheritance(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"base.ts": `
@Directive({ selector: '[base]' })
export class A {
  @Input('val') baseVal: string;
  @Input() onlyBase: string;
  @Output() fired = new EventEmitter();
}
`,
		"child.ts": `
import { A } from './base';
@Directive({ selector: '[child]' })
export class B extends A {
  @Input('val') childVal: number;
}
`,
	})
	b := bindingsOf(t, r, "child.ts", "B")

	val := property(t, b.Inputs, "val")
	assert.Equal(t, "childVal", val.SourceName, "own property shadows the inherited one")
	assert.Equal(t, classIn(t, r, "child.ts", "B"), val.Owner)

	assert.ElementsMatch(t, []string{"val", "onlyBase"}, b.Inputs.Names())
	assert.Equal(t, []string{"fired"}, b.Outputs.Names())
}

func TestBindings_InheritedMappingFollowsConstantEdits(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"consts.ts": `export const BASE_INPUTS = ['first'];`,
		"base.ts": `
import { BASE_INPUTS } from './consts';
@Directive({ selector: '[base]', inputs: BASE_INPUTS })
export class Base {}
`,
		"child.ts": `
import { Base } from './base';
@Directive({ selector: '[child]' })
export class Child extends Base {}
`,
	})
	assert.Equal(t, []string{"first"}, bindingsOf(t, r, "child.ts", "Child").Inputs.Names())

	_, err := r.Program().AddSource(context.Background(), "consts.ts", []byte(`export const BASE_INPUTS = ['second'];`))
	require.NoError(t, err)

	assert.Equal(t, []string{"second"}, bindingsOf(t, r, "child.ts", "Child").Inputs.Names())
}

func TestBindings_SkipsUndecoratedAncestors(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"a.ts": `
@Directive({ selector: '[root]', inputs: ['virtualRoot'] })
export class Root {}

export class Middle extends Root {}

@Component({ selector: 'leaf' })
export class Leaf extends Middle {}
`,
	})
	b := bindingsOf(t, r, "a.ts", "Leaf")

	v := property(t, b.Inputs, "virtualRoot")
	assert.True(t, v.Virtual)
	assert.Equal(t, classIn(t, r, "a.ts", "Root"), v.Owner)
}

func TestBindings_AccessorPairCountsOnce(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"a.ts": `
@Directive({ selector: '[a]' })
export class A {
  @Input()
  set value(v: string) {}
  get value(): string { return ''; }
}
`,
	})
	b := bindingsOf(t, r, "a.ts", "A")

	require.Equal(t, 1, b.Inputs.Len())
	assert.Equal(t, "string", property(t, b.Inputs, "value").RawType)
}

func TestBindings_DuplicateAliasFirstWins(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"a.ts": `
@Directive({ selector: '[a]' })
export class A {
  @Input('x') first: string;
  @Input('x') second: string;
}
`,
	})
	b := bindingsOf(t, r, "a.ts", "A")
	require.Equal(t, 1, b.Inputs.Len())
	assert.Equal(t, "first", property(t, b.Inputs, "x").SourceName)
}

func TestBindings_Memoized(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"a.ts": `@Directive({ selector: '[a]' }) export class A { @Input() x: string; }`,
	})
	first := bindingsOf(t, r, "a.ts", "A")
	second := bindingsOf(t, r, "a.ts", "A")
	assert.Same(t, first.Inputs, second.Inputs)
}

func TestBindings_Canceled(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"a.ts": `@Directive({ selector: '[a]' }) export class A { @Input() x: string; }`,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := directiveIn(t, r, "a.ts", "A").Bindings(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadPropertyInfo(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"a.ts": `
export class A {
  @Input() a: string;
  @Input('alias') b: string;
  @Input({ required: true }) c: string;
  @Input('alias2', { required: true }) d: string;
  @Input(someConstant) e: string;
}
`,
	})
	cls := classIn(t, r, "a.ts", "A")

	tests := []struct {
		member string
		want   entity.PropertyInfo
	}{
		{"a", entity.PropertyInfo{Name: "a"}},
		{"b", entity.PropertyInfo{Name: "alias"}},
		{"c", entity.PropertyInfo{Name: "c", Required: true}},
		{"d", entity.PropertyInfo{Name: "alias2", Required: true}},
		{"e", entity.PropertyInfo{Name: "e"}},
	}
	for _, tt := range tests {
		t.Run(tt.member, func(t *testing.T) {
			dec := cls.Member(tt.member, false).Decorator("Input")
			require.NotNil(t, dec)
			assert.Equal(t, tt.want, ReadPropertyInfo(dec, tt.member))
		})
	}
}

func TestParseMapping(t *testing.T) {
	tests := []struct {
		in            string
		source, alias string
	}{
		{"x", "x", "x"},
		{"x: y", "x", "y"},
		{" x :y ", "x", "y"},
		{"x:", "x", "x"},
		{"x: y: z", "x", "y: z"},
	}
	for _, tt := range tests {
		source, alias := ParseMapping(tt.in)
		assert.Equal(t, tt.source, source, tt.in)
		assert.Equal(t, tt.alias, alias, tt.in)
	}
}
