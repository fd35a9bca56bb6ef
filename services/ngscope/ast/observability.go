// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// astTracerName is the OTel tracer name for parsing and program loading.
const astTracerName = "ngscope.ast"

var tracer = otel.Tracer(astTracerName)

var (
	// parseDuration measures per-file parse time.
	//
	// Labels:
	//   - status: "success" or "error"
	parseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ngscope",
			Subsystem: "ast",
			Name:      "parse_duration_seconds",
			Help:      "Duration of TypeScript file parsing in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"status"},
	)

	// parseNodesTotal counts nodes produced by successful parses.
	parseNodesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ngscope",
			Subsystem: "ast",
			Name:      "nodes_total",
			Help:      "Total arena nodes produced by the parser.",
		},
	)

	// programFiles tracks the number of files currently held by programs.
	programFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ngscope",
			Subsystem: "ast",
			Name:      "program_files",
			Help:      "Number of files in the most recently updated program.",
		},
	)
)

// startParseSpan starts a span for parsing a single file.
func startParseSpan(ctx context.Context, filePath string, size int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "TypeScriptParser.Parse",
		trace.WithAttributes(
			attribute.String("file", filePath),
			attribute.Int("size_bytes", size),
		),
	)
}

// setParseSpanResult records the parse outcome on the span.
func setParseSpanResult(span trace.Span, nodes, errs int) {
	span.SetAttributes(
		attribute.Int("nodes", nodes),
		attribute.Int("errors", errs),
	)
}

// recordParseMetrics records the duration and node count of a parse.
func recordParseMetrics(duration time.Duration, nodes int, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	parseDuration.WithLabelValues(status).Observe(duration.Seconds())
	if success {
		parseNodesTotal.Add(float64(nodes))
	}
}
