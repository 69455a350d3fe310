// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/ast"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/depgraph"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/merge"
)

const entryURI = "entry.js"

// newTestDB creates an in-memory BadgerDB for testing.
func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestStore(t *testing.T) (*PartStore, *badger.DB) {
	t.Helper()
	db := newTestDB(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := New(db, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, db
}

func splitSource(t *testing.T, src string, mode depgraph.Mode) *depgraph.SplitModuleResult {
	t.Helper()
	mod, err := ast.NewJavaScriptParser().Parse(context.Background(), []byte(src), entryURI)
	require.NoError(t, err)

	g := depgraph.New()
	g.Init(mod)
	depgraph.NewAnalyzer(g).Run()
	g.Finalize()
	require.NoError(t, g.HandleWeak(mode))
	result, err := g.SplitModule(entryURI)
	require.NoError(t, err)
	return result
}

const sharedSource = "export const x = 1;\nconsole.log(x);\n"

func TestNew_NilArgs(t *testing.T) {
	_, err := New(nil, slog.Default())
	assert.Error(t, err)

	_, err = New(newTestDB(t), nil)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	_, err := Open(Options{}, slog.Default())
	assert.Error(t, err, "empty path without in-memory")

	s, err := Open(Options{InMemory: true}, slog.Default())
	require.NoError(t, err)
	assert.NoError(t, s.Close())

	s, err = Open(Options{Path: t.TempDir()}, slog.Default())
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestSaveAndLoad(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	result := splitSource(t, sharedSource, depgraph.ModeDevelopment)

	meta, err := s.Save(ctx, entryURI, depgraph.ModeDevelopment, result)
	require.NoError(t, err)

	assert.NotEmpty(t, meta.RunID)
	assert.Equal(t, entryURI, meta.URI)
	assert.Equal(t, "development", meta.Mode)
	assert.Equal(t, len(result.Modules), meta.Parts)
	assert.Len(t, meta.PartHashes, meta.Parts)

	for i, want := range result.Modules {
		got, err := s.Load(ctx, entryURI, i)
		require.NoError(t, err)
		require.NotNil(t, got, "part %d", i)
		assert.Equal(t, ast.Print(want), ast.Print(got), "part %d", i)
		assert.Equal(t, entryURI, got.URI)
	}

	stored, err := s.Metadata(ctx, meta.RunID)
	require.NoError(t, err)
	assert.Equal(t, result.Entrypoints, stored.Entrypoints)
	assert.Equal(t, result.PartDeps, stored.PartDeps)
}

func TestLoad_NotFoundIsNil(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	got, err := s.Load(ctx, entryURI, 0)
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.Save(ctx, entryURI, depgraph.ModeProduction, splitSource(t, sharedSource, depgraph.ModeProduction))
	require.NoError(t, err)

	got, err = s.Load(ctx, entryURI, 99)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadPart_Errors(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.LoadPart(ctx, "missing", 0)
	assert.ErrorIs(t, err, ErrPartNotFound)

	meta, err := s.Save(ctx, entryURI, depgraph.ModeDevelopment, splitSource(t, sharedSource, depgraph.ModeDevelopment))
	require.NoError(t, err)

	_, err = s.LoadPart(ctx, meta.RunID, -1)
	assert.ErrorIs(t, err, ErrPartNotFound)
}

func TestLoadPart_Integrity(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	meta, err := s.Save(ctx, entryURI, depgraph.ModeDevelopment, splitSource(t, sharedSource, depgraph.ModeDevelopment))
	require.NoError(t, err)

	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set(partKey(meta.RunID, 0), []byte("tampered"))
	}))

	_, err = s.LoadPart(ctx, meta.RunID, 0)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestLatestAndList(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.Save(ctx, entryURI, depgraph.ModeDevelopment, splitSource(t, sharedSource, depgraph.ModeDevelopment))
	require.NoError(t, err)
	second, err := s.Save(ctx, entryURI, depgraph.ModeProduction, splitSource(t, sharedSource, depgraph.ModeProduction))
	require.NoError(t, err)
	_, err = s.Save(ctx, "other.js", depgraph.ModeDevelopment, splitSource(t, "console.log(1);\n", depgraph.ModeDevelopment))
	require.NoError(t, err)

	latest, err := s.LatestRun(ctx, entryURI)
	require.NoError(t, err)
	assert.Equal(t, second.RunID, latest.RunID)

	runs, err := s.List(ctx, entryURI)
	require.NoError(t, err)
	ids := make(map[string]bool)
	for _, r := range runs {
		ids[r.RunID] = true
		assert.Equal(t, entryURI, r.URI)
	}
	assert.Equal(t, map[string]bool{first.RunID: true, second.RunID: true}, ids)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = s.LatestRun(ctx, "nope.js")
	assert.ErrorIs(t, err, ErrPartNotFound)
}

func TestStoreAsMergeLoader(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, entryURI, depgraph.ModeDevelopment, splitSource(t, sharedSource, depgraph.ModeDevelopment))
	require.NoError(t, err)

	m, err := merge.New(s)
	require.NoError(t, err)
	merged, err := m.MergePart(ctx, entryURI, 0)
	require.NoError(t, err)
	assert.Equal(t, "const x = 1;\nconsole.log(x);", ast.Print(merged))
}

func TestSave_Validation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "", depgraph.ModeDevelopment, &depgraph.SplitModuleResult{})
	assert.Error(t, err)
	_, err = s.Save(ctx, entryURI, depgraph.ModeDevelopment, nil)
	assert.Error(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Save(canceled, entryURI, depgraph.ModeDevelopment, &depgraph.SplitModuleResult{})
	assert.ErrorIs(t, err, context.Canceled)
}
