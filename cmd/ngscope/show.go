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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
	"github.com/AleutianAI/ngscope/services/ngscope/workspace"
)

const suggestionLimit = 5

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show <ClassName>",
	Short: "Describe the entities declared by a class name",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "write JSON instead of text")
}

func runShow(cmd *cobra.Command, args []string) error {
	name := args[0]
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer closeWorkspace(ws)

	var reports []workspace.EntityReport
	for _, entry := range ws.Index().GetByName(name) {
		if entry.Kind != ast.NodeKindClass {
			continue
		}
		e := ws.Resolver().EntityFor(entry.Node)
		if e == nil {
			continue
		}
		r, err := ws.Describe(cmd.Context(), e)
		if err != nil {
			return err
		}
		reports = append(reports, r)
	}

	if len(reports) == 0 {
		return notFound(cmd, ws, name)
	}

	out := cmd.OutOrStdout()
	if showJSON {
		return writeJSON(out, reports)
	}
	for _, r := range reports {
		renderEntity(out, r)
	}
	return nil
}

// notFound builds the error for an unknown name, with fuzzy suggestions.
func notFound(cmd *cobra.Command, ws *workspace.Workspace, name string) error {
	entries, err := ws.Index().Search(cmd.Context(), name, suggestionLimit)
	if err != nil {
		return err
	}
	var suggestions []string
	for _, entry := range entries {
		if entry.Name == name || entry.Kind != ast.NodeKindClass {
			continue
		}
		if ws.Resolver().EntityFor(entry.Node) == nil {
			continue
		}
		suggestions = append(suggestions, entry.Name)
	}
	if len(suggestions) == 0 {
		return fmt.Errorf("no Angular entity named %q", name)
	}
	return fmt.Errorf("no Angular entity named %q; did you mean %s?", name, strings.Join(suggestions, ", "))
}
