// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package merge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Load result labels.
const (
	loadResultLoaded   = "loaded"
	loadResultNotFound = "not_found"
	loadResultCached   = "cached"
	loadResultError    = "error"
)

// mergeLoadsTotal counts Loader calls made by the Merger.
//
// Labels:
//   - result: "loaded", "not_found", "cached" or "error"
var mergeLoadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "treeshake",
		Subsystem: "merge",
		Name:      "loads_total",
		Help:      "Total part loads requested by the merger, by result.",
	},
	[]string{"result"},
)
