// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ngscope/services/ngscope/workspace"
)

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"src/app.module.ts": `import { Card } from './card';
@NgModule({ declarations: [Card], exports: [Card] })
export class AppModule {}
`,
		"src/broken.module.ts": `declare const dynamic: any;
@NgModule({ imports: [dynamic] })
export class BrokenModule {}
`,
		"src/card.ts": `@Component({ selector: 'app-card', template: '' })
export class Card {
  @Input('cardTitle') title: string;
}
`,
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// runCLI executes the root command with fresh flag values and returns
// what it wrote to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	scanFormat, scanDegradedOnly, scanStrict = "text", false, false
	showJSON = false
	exportURI, exportDryRun = "", false
	noCache, colorMode, logLevel = false, "auto", "warn"

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseLevel("loud")
	assert.Error(t, err)
}

func TestScan_JSON(t *testing.T) {
	root := writeProject(t)

	out, err := runCLI(t, "scan", "--root", root, "--no-cache", "--color", "off", "--format", "json")
	require.NoError(t, err)

	var report workspace.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, workspace.Summary{Components: 1, Modules: 2, DegradedModules: 1}, report.Summary)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Entities, 3)
	assert.Equal(t, "AppModule", report.Entities[0].Name)
}

func TestScan_TextDegradedOnlyStrict(t *testing.T) {
	root := writeProject(t)

	out, err := runCLI(t, "scan", "--root", root, "--no-cache", "--color", "off", "--degraded-only", "--strict")
	assert.ErrorIs(t, err, errDegraded)

	assert.Contains(t, out, "BrokenModule (module) src/broken.module.ts:")
	assert.Contains(t, out, "[degraded]")
	assert.Contains(t, out, "dynamic_type")
	assert.NotContains(t, out, "AppModule")
	assert.Contains(t, out, "1 components, 0 pipes, 2 modules, 1 degraded")
}

func TestScan_BadFlags(t *testing.T) {
	_, err := runCLI(t, "scan", "--root", t.TempDir(), "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")

	_, err = runCLI(t, "scan", "--root", t.TempDir(), "--color", "sometimes")
	assert.ErrorContains(t, err, "unknown color mode")

	_, err = runCLI(t, "scan", "--root", t.TempDir(), "--log-level", "loud")
	assert.ErrorContains(t, err, "unknown log level")
}

func TestShow(t *testing.T) {
	root := writeProject(t)

	out, err := runCLI(t, "show", "Card", "--root", root, "--no-cache", "--color", "off")
	require.NoError(t, err)
	assert.Contains(t, out, "Card (component)")
	assert.Contains(t, out, "selector: app-card")
	assert.Contains(t, out, "inputs: cardTitle <- title")

	out, err = runCLI(t, "show", "AppModule", "--root", root, "--no-cache", "--json")
	require.NoError(t, err)
	var reports []workspace.EntityReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"Card"}, reports[0].Scope.ExportedTransitively)
}

func TestShow_SuggestsCloseNames(t *testing.T) {
	root := writeProject(t)

	_, err := runCLI(t, "show", "AppModul", "--root", root, "--no-cache")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no Angular entity named "AppModul"`)
	assert.Contains(t, err.Error(), "did you mean AppModule")
}

func TestExport_DryRun(t *testing.T) {
	root := writeProject(t)

	out, err := runCLI(t, "export", "--root", root, "--no-cache", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "3 entities, 1 properties")
}
