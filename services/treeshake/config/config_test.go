// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/depgraph"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != Default() {
		t.Errorf("cfg = %+v, want defaults %+v", cfg, Default())
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mode != DefaultMode || cfg.Workers != DefaultWorkers {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
mode: production
workers: 8
store:
  in_memory: true
report:
  mermaid: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mode != "production" {
		t.Errorf("Mode = %q, want production", cfg.Mode)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.MaxFileSize != DefaultMaxFileSize {
		t.Errorf("MaxFileSize = %d, want default", cfg.MaxFileSize)
	}
	if !cfg.Store.InMemory {
		t.Error("Store.InMemory should be true")
	}
	if cfg.Report.Mermaid {
		t.Error("Report.Mermaid should be false")
	}

	mode, err := cfg.ParsedMode()
	if err != nil || mode != depgraph.ModeProduction {
		t.Errorf("ParsedMode = %v, %v; want production", mode, err)
	}
}

func TestLoad_Options(t *testing.T) {
	path := writeConfig(t, "mode: production\nworkers: 2\n")
	cfg, err := Load(path, WithMode("dev"), WithWorkers(16), WithWorkers(0), WithStorePath("/tmp/x"), WithInMemoryStore())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mode != "dev" || cfg.Workers != 16 || cfg.Store.Path != "/tmp/x" || !cfg.Store.InMemory {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "mode: [unterminated\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "parsing") {
		t.Errorf("err = %v, want parse error", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown mode", "mode: fast\n"},
		{"negative workers", "workers: -1\n"},
		{"too many workers", "workers: 1000\n"},
		{"no store path", "store:\n  path: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoad_TooLarge(t *testing.T) {
	path := writeConfig(t, "# "+strings.Repeat("x", MaxYAMLFileSize)+"\n")
	if _, err := Load(path); err == nil {
		t.Error("expected size error")
	}
}
