// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ngscope.resolve")

var (
	// resolutionsTotal counts computed (not memoized) resolutions.
	//
	// Labels:
	//   - operation: "bindings", "module_list", "module_scope", "component_imports"
	//   - outcome: "fully_resolved", "degraded", "canceled"
	resolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ngscope",
			Subsystem: "resolve",
			Name:      "resolutions_total",
			Help:      "Resolutions computed, by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	// collectorVisited measures how many nodes one collector walk visits.
	collectorVisited = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ngscope",
			Subsystem: "resolve",
			Name:      "collector_visited_nodes",
			Help:      "Nodes visited by a single entity collector walk.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
		},
	)

	// storeLookups counts persistent scope store lookups.
	storeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ngscope",
			Subsystem: "resolve",
			Name:      "scope_store_lookups_total",
			Help:      "Persistent scope store lookups by outcome.",
		},
		[]string{"outcome"},
	)
)

func startResolveSpan(ctx context.Context, operation, class string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Resolver."+operation,
		trace.WithAttributes(attribute.String("class", class)),
	)
}

func outcome(fullyResolved bool) string {
	if fullyResolved {
		return "fully_resolved"
	}
	return "degraded"
}

func recordResolution(span trace.Span, operation string, fullyResolved bool) {
	span.SetAttributes(attribute.Bool("fully_resolved", fullyResolved))
	resolutionsTotal.WithLabelValues(operation, outcome(fullyResolved)).Inc()
}

func recordCanceled(span trace.Span, operation string, err error) {
	span.RecordError(err)
	resolutionsTotal.WithLabelValues(operation, "canceled").Inc()
}
