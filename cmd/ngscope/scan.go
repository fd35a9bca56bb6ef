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
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// errDegraded makes `scan --strict` exit non-zero.
var errDegraded = errors.New("some module scopes are not fully resolved")

var (
	scanFormat       string
	scanDegradedOnly bool
	scanStrict       bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Resolve every entity and module scope",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFormat, "format", "text", "output format (text|json)")
	scanCmd.Flags().BoolVar(&scanDegradedOnly, "degraded-only", false, "only report entities with unresolved metadata")
	scanCmd.Flags().BoolVar(&scanStrict, "strict", false, "exit non-zero when any module scope is degraded")
}

func runScan(cmd *cobra.Command, _ []string) error {
	if scanFormat != "text" && scanFormat != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", scanFormat)
	}

	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer closeWorkspace(ws)

	report, err := ws.BuildReport(cmd.Context(), uuid.NewString())
	if err != nil {
		return err
	}
	if scanDegradedOnly {
		kept := report.Entities[:0]
		for _, e := range report.Entities {
			if e.Degraded() {
				kept = append(kept, e)
			}
		}
		report.Entities = kept
	}

	out := cmd.OutOrStdout()
	if scanFormat == "json" {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		for _, e := range report.Entities {
			renderEntity(out, e)
		}
		renderSummary(out, report.Summary)
	}

	if scanStrict && report.Summary.DegradedModules > 0 {
		return errDegraded
	}
	return nil
}
