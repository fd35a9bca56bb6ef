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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ngscope/services/ngscope/workspace"
)

// openWorkspace loads the project named by --root.
func openWorkspace(cmd *cobra.Command) (*workspace.Workspace, error) {
	opts := []workspace.Option{workspace.WithLogger(slog.Default())}
	if noCache {
		opts = append(opts, workspace.WithoutCache())
	}
	return workspace.Open(cmd.Context(), rootDir, opts...)
}

func closeWorkspace(ws *workspace.Workspace) {
	if err := ws.Close(); err != nil {
		slog.Warn("closing workspace failed", slog.String("error", err.Error()))
	}
}
