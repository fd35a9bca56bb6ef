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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/ngscope/services/ngscope/workspace"
)

var (
	nameColor     = color.New(color.FgCyan, color.Bold)
	kindColor     = color.New(color.FgYellow)
	okColor       = color.New(color.FgGreen)
	degradedColor = color.New(color.FgRed, color.Bold)
	dimColor      = color.New(color.Faint)
)

// configureColor applies --color. "auto" colors only a terminal stdout.
func configureColor(mode string) error {
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		fd := os.Stdout.Fd()
		color.NoColor = !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
	default:
		return fmt.Errorf("unknown color mode %q (want auto, on or off)", mode)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderEntity writes one entity in the human-readable format.
func renderEntity(w io.Writer, e workspace.EntityReport) {
	fmt.Fprintf(w, "%s %s %s", nameColor.Sprint(e.Name), kindColor.Sprintf("(%s)", e.Kind), dimColor.Sprintf("%s:%d", e.File, e.Line))
	if e.Standalone {
		fmt.Fprint(w, " standalone")
	}
	switch {
	case e.Degraded():
		fmt.Fprint(w, " ", degradedColor.Sprint("[degraded]"))
	case e.Scope != nil:
		fmt.Fprint(w, " ", okColor.Sprint("[fully resolved]"))
	}
	fmt.Fprintln(w)

	if e.Selector != "" {
		fmt.Fprintf(w, "  selector: %s\n", e.Selector)
	}
	if len(e.ExportAs) > 0 {
		fmt.Fprintf(w, "  exportAs: %s\n", strings.Join(e.ExportAs, ", "))
	}
	renderProperties(w, "inputs", e.Inputs)
	renderProperties(w, "outputs", e.Outputs)
	if len(e.HostDirectives) > 0 {
		fmt.Fprintf(w, "  host directives: %s\n", strings.Join(e.HostDirectives, ", "))
	}
	if e.Imports != nil {
		renderList(w, "imports", *e.Imports)
	}
	if e.PipeName != "" {
		pure := e.Pure == nil || *e.Pure
		fmt.Fprintf(w, "  name: %s (pure: %t)\n", e.PipeName, pure)
	}
	if s := e.Scope; s != nil {
		if !s.HasMetadata {
			fmt.Fprintf(w, "  %s\n", degradedColor.Sprint("no @NgModule metadata found"))
		}
		if !s.Public {
			fmt.Fprintln(w, "  private")
		}
		renderList(w, "declarations", s.Declarations)
		renderList(w, "imports", s.Imports)
		renderList(w, "exports", s.Exports)
		fmt.Fprintf(w, "  exported transitively: %s\n", joinOrDash(s.ExportedTransitively))
	}
}

func renderProperties(w io.Writer, label string, props []workspace.PropertyReport) {
	if len(props) == 0 {
		return
	}
	parts := make([]string, 0, len(props))
	for _, p := range props {
		s := p.Name
		if p.Source != "" && p.Source != p.Name {
			s += " <- " + p.Source
		}
		if p.Required {
			s += " (required)"
		}
		if p.Virtual {
			s += " (virtual)"
		}
		if p.Owner != "" {
			s += " from " + p.Owner
		}
		parts = append(parts, s)
	}
	fmt.Fprintf(w, "  %s: %s\n", label, strings.Join(parts, ", "))
}

func renderList(w io.Writer, label string, l workspace.ListReport) {
	fmt.Fprintf(w, "  %s: %s\n", label, joinOrDash(l.Entities))
	for _, u := range l.Unresolved {
		fmt.Fprintf(w, "    %s %s %s\n", degradedColor.Sprint("!"), u.Reason, dimColor.Sprint(u.Location))
	}
}

func renderSummary(w io.Writer, s workspace.Summary) {
	fmt.Fprintf(w, "%d directives, %d components, %d pipes, %d modules",
		s.Directives, s.Components, s.Pipes, s.Modules)
	if s.DegradedModules > 0 {
		fmt.Fprint(w, ", ", degradedColor.Sprintf("%d degraded", s.DegradedModules))
	}
	fmt.Fprintln(w)
}

func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
