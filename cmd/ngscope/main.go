// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command ngscope resolves Angular declarations, bindings and module scopes
// in a TypeScript project.
//
// Usage:
//
//	ngscope scan --root ./my-app
//	ngscope scan --format json --degraded-only
//	ngscope show AppModule
//	ngscope watch --metrics-addr :9464
//	NGSCOPE_NEO4J_PASSWORD=secret ngscope export
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Flags shared by every command.
var (
	rootDir    string
	logLevel   string
	colorMode  string
	traceSpans bool
	noCache    bool
)

var rootCmd = &cobra.Command{
	Use:           "ngscope",
	Short:         "Resolve Angular entities and module scopes",
	Long:          `ngscope reads the decorator metadata of an Angular TypeScript project and reports directives, components, pipes and modules with their bindings and module scopes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := parseLevel(logLevel)
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		return configureColor(colorMode)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "project root directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().BoolVar(&traceSpans, "trace", false, "write OpenTelemetry spans to stderr")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "ignore the persistent scope cache")

	rootCmd.AddCommand(scanCmd, showCmd, watchCmd, exportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := setupTracing()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	err = rootCmd.ExecuteContext(ctx)
	if shutdownErr := shutdown(context.Background()); shutdownErr != nil {
		slog.Warn("flushing spans failed", slog.String("error", shutdownErr.Error()))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setupTracing installs a stdout span exporter when --trace is among the
// arguments. Flags are not parsed yet, so the raw arguments are checked.
func setupTracing() (func(context.Context) error, error) {
	enabled := false
	for _, arg := range os.Args[1:] {
		if arg == "--trace" || arg == "--trace=true" {
			enabled = true
		}
	}
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating span exporter: %w", err)
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
