// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("ngscope.workspace")

var (
	openDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ngscope",
			Subsystem: "workspace",
			Name:      "open_duration_seconds",
			Help:      "Time to discover, parse and index a project in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	watchRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ngscope",
			Subsystem: "workspace",
			Name:      "watch_refreshes_total",
			Help:      "Files refreshed by watch mode.",
		},
	)
)
