// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticMetadataIndex_ModuleForFunction(t *testing.T) {
	file := parseFile(t, "app.ts", `
export class RouterModule {
  static forRoot(routes: any) { return make(routes); }
}
export const provideRouter = (routes: any) => make(routes);
export function unrelated() {}
export class Dup {}
`)
	other := parseFile(t, "other.ts", `export class Dup {}`)

	idx := NewDeclarationIndex()
	require.NoError(t, idx.IndexFile(file))
	require.NoError(t, idx.IndexFile(other))

	meta := NewStaticMetadataIndex(map[string]string{
		"RouterModule.forRoot": "RouterModule",
		"provideRouter":        "RouterModule",
		"unrelated":            "Dup",
	}, idx)

	forRoot := file.Declarations["RouterModule"].Member("forRoot", true)
	cls, ok := meta.ModuleForFunction(forRoot)
	require.True(t, ok)
	assert.Equal(t, "RouterModule", cls.Name)

	arrow := file.Declarations["provideRouter"].Init
	cls, ok = meta.ModuleForFunction(arrow)
	require.True(t, ok)
	assert.Equal(t, "RouterModule", cls.Name)

	_, ok = meta.ModuleForFunction(file.Declarations["unrelated"])
	assert.False(t, ok, "ambiguous class names are rejected")

	_, ok = meta.ModuleForFunction(nil)
	assert.False(t, ok)
}

func TestFunctionKey(t *testing.T) {
	file := parseFile(t, "app.ts", `
export class M { static forRoot() {} }
export const f = () => 1;
export function g() {}
`)
	assert.Equal(t, "M.forRoot", FunctionKey(file.Declarations["M"].Member("forRoot", true)))
	assert.Equal(t, "f", FunctionKey(file.Declarations["f"].Init))
	assert.Equal(t, "g", FunctionKey(file.Declarations["g"]))
}
