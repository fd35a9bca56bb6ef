// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ngscope.index")

var (
	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ngscope",
			Subsystem: "index",
			Name:      "operation_duration_seconds",
			Help:      "Duration of declaration index operations in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	searchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ngscope",
			Subsystem: "index",
			Name:      "search_results",
			Help:      "Number of results returned by fuzzy search.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)

	metadataFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ngscope",
			Subsystem: "index",
			Name:      "metadata_fallback_total",
			Help:      "Metadata fallback lookups by outcome.",
		},
		[]string{"outcome"},
	)
)

func startOperationSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "DeclarationIndex."+operation)
}

func setOperationSpanResult(span trace.Span, results int, success bool) {
	span.SetAttributes(
		attribute.Int("results", results),
		attribute.Bool("success", success),
	)
}

func recordOperationMetrics(operation string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	operationDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}
