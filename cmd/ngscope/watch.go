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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/ngscope/services/ngscope/api"
	"github.com/AleutianAI/ngscope/services/ngscope/workspace"
)

var (
	watchAddr     string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-resolve as files change and report degraded entities",
	Long: `watch keeps the project loaded, refreshes files as they change on disk and
prints the entities that are not fully resolved after every change. With
--addr it also serves the HTTP API and Prometheus metrics.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "", "serve the HTTP API on this address, e.g. :9464")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", workspace.DefaultDebounce, "quiet period before changes are processed")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer closeWorkspace(ws)

	out := cmd.OutOrStdout()
	if err := reportDegraded(cmd.Context(), ws, out); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return ws.Watch(ctx, watchDebounce, func(ctx context.Context, changed []string) {
			fmt.Fprintf(out, "%s changed\n", strings.Join(changed, ", "))
			if err := reportDegraded(ctx, ws, out); err != nil && ctx.Err() == nil {
				slog.Warn("report failed", slog.String("error", err.Error()))
			}
		})
	})
	if watchAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		srv := &http.Server{
			Addr:              watchAddr,
			Handler:           api.NewRouter(api.NewHandlers(ws), logLevel == "debug"),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slog.Info("serving API", slog.String("address", watchAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving API: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

func reportDegraded(ctx context.Context, ws *workspace.Workspace, out io.Writer) error {
	report, err := ws.BuildReport(ctx, uuid.NewString())
	if err != nil {
		return err
	}
	for _, e := range report.Entities {
		if e.Degraded() {
			renderEntity(out, e)
		}
	}
	renderSummary(out, report.Summary)
	return nil
}
