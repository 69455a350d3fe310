// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Package-level Prometheus metrics for shaking runs.
var (
	// shakeRunsTotal counts Shake calls.
	//
	// Labels:
	//   - mode: "development" or "production"
	//   - status: "success" or "error"
	shakeRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "treeshake",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of tree-shaking runs.",
		},
		[]string{"mode", "status"},
	)

	// shakeDuration measures a full run from parse to merge.
	//
	// Labels:
	//   - mode: "development" or "production"
	shakeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "treeshake",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Duration of tree-shaking runs in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"mode"},
	)

	// shakePartsTotal counts the parts produced.
	//
	// Labels:
	//   - mode: "development" or "production"
	shakePartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "treeshake",
			Subsystem: "pipeline",
			Name:      "parts_total",
			Help:      "Total number of parts produced by splitting.",
		},
		[]string{"mode"},
	)

	// shakeEliminatedTotal counts statements that ended up in no part.
	//
	// Labels:
	//   - mode: "development" or "production"
	shakeEliminatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "treeshake",
			Subsystem: "pipeline",
			Name:      "eliminated_items_total",
			Help:      "Total number of statements eliminated as dead.",
		},
		[]string{"mode"},
	)
)
