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
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/depgraph"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/pipeline"
)

func TestMetricsRouter(t *testing.T) {
	// Touch the pipeline collectors so the registry has something to show.
	s := pipeline.New()
	if _, err := s.Shake(context.Background(), "metrics.js", []byte("console.log(1);\n"), depgraph.ModeDevelopment); err != nil {
		t.Fatalf("shake: %v", err)
	}

	srv := httptest.NewServer(newMetricsRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics status = %d", resp.StatusCode)
	}
	if !strings.Contains(body.String(), "treeshake_pipeline_runs_total") {
		t.Errorf("metrics output missing pipeline counter")
	}
}

func TestSetupTracing_WritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := setupTracing(&buf)
	if err != nil {
		t.Fatalf("setupTracing: %v", err)
	}
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	_, span := otel.Tracer("aleutian.treeshake.cli").Start(context.Background(), "cli-test-span")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "cli-test-span") {
		t.Errorf("span not exported, got %q", buf.String())
	}
}
