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
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/ngscope/services/ngscope/export"
)

var (
	exportURI    string
	exportDryRun bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Load entities, bindings and module scopes into Neo4j",
	Long: `export resolves the project and merges the result into Neo4j. Every node is
stamped with a run ID; nodes from earlier runs are removed once the export
succeeds. The password is read from NGSCOPE_NEO4J_PASSWORD.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportURI, "uri", "", "Neo4j URI, overriding the configuration")
	exportCmd.Flags().BoolVar(&exportDryRun, "dry-run", false, "build the graph and print its size without connecting")
}

func runExport(cmd *cobra.Command, _ []string) error {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer closeWorkspace(ws)

	ctx := cmd.Context()
	g, err := export.BuildGraph(ctx, ws.Resolver(), uuid.NewString())
	if err != nil {
		return err
	}
	if exportDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d entities, %d properties, %d edges\n",
			g.RunID, len(g.Entities), len(g.Properties), len(g.Edges))
		return nil
	}

	cfg := ws.Config().Neo4j
	if exportURI != "" {
		cfg.URI = exportURI
	}
	exporter, err := export.NewNeo4jExporter(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if err := exporter.Close(ctx); err != nil {
			slog.Warn("closing neo4j driver failed", slog.String("error", err.Error()))
		}
	}()

	if err := exporter.Export(ctx, g); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported run %s to %s\n", g.RunID, cfg.URI)
	return nil
}
