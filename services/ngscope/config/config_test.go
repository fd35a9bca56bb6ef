// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
	return dir
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ɵ", cfg.PrivatePrefix)
	assert.Equal(t, []string{"ModuleWithProviders"}, cfg.ModuleWrapperTypes)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 168*time.Hour, cfg.Cache.TTL)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default().Include, cfg.Include)
}

func TestLoad_Overrides(t *testing.T) {
	dir := writeConfig(t, `
workers: 2
standalone_default: true
module_wrapper_types: [ModuleWithProviders, CustomWrapper]
metadata_fallback:
  RouterModule.forRoot: RouterModule
cache:
  dir: /tmp/ngscope-cache
`)
	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Workers)
	assert.True(t, cfg.StandaloneDefault)
	assert.Equal(t, []string{"ModuleWithProviders", "CustomWrapper"}, cfg.ModuleWrapperTypes)
	assert.Equal(t, "RouterModule", cfg.MetadataFallback["RouterModule.forRoot"])
	assert.Equal(t, "/tmp/ngscope-cache", cfg.CacheDir(dir))
	assert.Equal(t, "ɵ", cfg.PrivatePrefix, "absent keys keep their default")
}

func TestLoad_PasswordFromEnv(t *testing.T) {
	t.Setenv(PasswordEnv, "secret")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Neo4j.Password)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{"malformed yaml", "workers: [", false},
		{"zero workers", "workers: 0", true},
		{"empty wrapper list", "module_wrapper_types: []", true},
		{"bad neo4j uri", "neo4j: {uri: 'not a uri'}", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NotErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestCacheDir_Relative(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("/proj", ".ngscope/cache"), cfg.CacheDir("/proj"))
	cfg.Cache.Dir = ""
	assert.Empty(t, cfg.CacheDir("/proj"))
}

func TestMatches(t *testing.T) {
	cfg := Default()
	tests := map[string]bool{
		"src/app/app.module.ts":           true,
		"main.ts":                         true,
		"src/app/app.component.spec.ts":   false,
		"node_modules/@angular/core.d.ts": false,
		"dist/app.ts":                     false,
		"src/styles.css":                  false,
	}
	for path, want := range tests {
		assert.Equal(t, want, cfg.Matches(path), path)
	}
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"**/*.ts", "a.ts", true},
		{"**/*.ts", "a/b/c.ts", true},
		{"src/**", "src", true},
		{"src/**/x.ts", "src/a/b/x.ts", true},
		{"src/*.ts", "src/a/b.ts", false},
		{"[", "[", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchGlob(tt.pattern, tt.name), "%s vs %s", tt.pattern, tt.name)
	}
}

func TestExcludesDir(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.ExcludesDir("node_modules"))
	assert.True(t, cfg.ExcludesDir(".ngscope"))
	assert.False(t, cfg.ExcludesDir("src"))
	assert.False(t, cfg.ExcludesDir("src/app"), "file patterns never exclude a directory")
}
