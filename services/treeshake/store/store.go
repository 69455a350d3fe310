// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists split results in BadgerDB so parts can be merged
// by a later process without analyzing the module again.
package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/ast"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/depgraph"
)

// BadgerDB key prefixes for split runs.
const (
	keyPrefixRun    = "treeshake:run:"
	keyPrefixLatest = "treeshake:latest:"
	keySuffixMeta   = ":meta"
	keyInfixPart    = ":part:"
)

// SchemaVersion is the layout version of stored runs.
const SchemaVersion = "1"

var (
	// ErrPartNotFound is returned when a run or part does not exist.
	ErrPartNotFound = errors.New("part not found")

	// ErrIntegrity is returned when a stored part does not match its hash.
	ErrIntegrity = errors.New("integrity check failed")
)

// RunMetadata describes one saved split result.
type RunMetadata struct {
	// RunID identifies the run. A random UUID.
	RunID string `json:"run_id"`

	// URI is the module that was split.
	URI string `json:"uri"`

	// Mode is the weak-edge mode the module was split in.
	Mode string `json:"mode"`

	// CreatedAtMilli is when the run was saved (Unix milliseconds UTC).
	CreatedAtMilli int64 `json:"created_at_milli"`

	// Parts is the number of parts.
	Parts int `json:"parts"`

	// Entrypoints maps each group to its part.
	Entrypoints map[depgraph.GroupKey]int `json:"entrypoints"`

	// PartDeps lists the dependency parts per part.
	PartDeps map[int][]int `json:"part_deps"`

	// PartHashes holds the SHA256 of each compressed part payload.
	PartHashes []string `json:"part_hashes"`

	SchemaVersion string `json:"schema_version"`
}

// Options controls how Open creates the database.
type Options struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in memory.
	InMemory bool
}

// PartStore saves split results and serves their parts.
//
// Description:
//
//	Every saved run stores one gzip-compressed JSON payload per part plus
//	a metadata record. The latest run per module URI is what Load serves,
//	so a PartStore can be handed to merge.New as its Loader.
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency control.
type PartStore struct {
	db     *badger.DB
	logger *slog.Logger
	owned  bool
}

// New creates a PartStore over an opened database. The caller keeps
// ownership of db.
//
// Inputs:
//
//	db     - An opened BadgerDB instance. Must not be nil.
//	logger - Logger for diagnostic output. Must not be nil.
//
// Outputs:
//
//	*PartStore - The store.
//	error      - Non-nil if db or logger is nil.
func New(db *badger.DB, logger *slog.Logger) (*PartStore, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &PartStore{db: db, logger: logger}, nil
}

// Open opens a database per opts and wraps it. Close releases it.
func Open(opts Options, logger *slog.Logger) (*PartStore, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if !opts.InMemory && opts.Path == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}

	bopts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", opts.Path, err)
	}

	s, err := New(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// Close closes the database if Open created it.
func (s *PartStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Save persists result as a new run and makes it the latest run of uri.
//
// Inputs:
//
//	ctx    - Context for cancellation. Must not be nil.
//	uri    - The module that was split. Must not be empty.
//	mode   - The mode the result was produced in.
//	result - The split result. Must not be nil.
//
// Outputs:
//
//	*RunMetadata - Metadata of the saved run.
//	error        - Non-nil if serialization or storage fails.
//
// Key Schema:
//
//	treeshake:run:{runID}:part:{n}  → gzip(JSON(ast.Module))
//	treeshake:run:{runID}:meta      → JSON(RunMetadata)
//	treeshake:latest:{uriHash}      → runID
func (s *PartStore) Save(ctx context.Context, uri string, mode depgraph.Mode, result *depgraph.SplitModuleResult) (*RunMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if uri == "" {
		return nil, fmt.Errorf("uri must not be empty")
	}
	if result == nil {
		return nil, fmt.Errorf("result must not be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta := &RunMetadata{
		RunID:          uuid.NewString(),
		URI:            uri,
		Mode:           mode.String(),
		CreatedAtMilli: time.Now().UnixMilli(),
		Parts:          len(result.Modules),
		Entrypoints:    result.Entrypoints,
		PartDeps:       result.PartDeps,
		PartHashes:     make([]string, len(result.Modules)),
		SchemaVersion:  SchemaVersion,
	}

	payloads := make([][]byte, len(result.Modules))
	for i, mod := range result.Modules {
		data, err := compress(mod)
		if err != nil {
			return nil, fmt.Errorf("encoding part %d: %w", i, err)
		}
		payloads[i] = data
		meta.PartHashes[i] = hashBytes(data)
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for i, data := range payloads {
			if err := txn.Set(partKey(meta.RunID, i), data); err != nil {
				return fmt.Errorf("storing part %d: %w", i, err)
			}
		}
		if err := txn.Set(metaKey(meta.RunID), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set(latestKey(uri), []byte(meta.RunID)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing run to badger: %w", err)
	}

	s.logger.Info("split result saved",
		slog.String("run_id", meta.RunID),
		slog.String("uri", uri),
		slog.String("mode", meta.Mode),
		slog.Int("parts", meta.Parts),
	)
	return meta, nil
}

// Load implements merge.Loader over the latest run of uri. Unknown modules
// and parts yield (nil, nil).
func (s *PartStore) Load(ctx context.Context, uri string, part int) (*ast.Module, error) {
	runID, err := s.latest(uri)
	if errors.Is(err, ErrPartNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	mod, err := s.LoadPart(ctx, runID, part)
	if errors.Is(err, ErrPartNotFound) {
		return nil, nil
	}
	return mod, err
}

// LoadPart loads one part of a run.
//
// Outputs:
//
//	*ast.Module - The part.
//	error       - ErrPartNotFound, ErrIntegrity or a storage error.
func (s *PartStore) LoadPart(ctx context.Context, runID string, part int) (*ast.Module, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta, err := s.Metadata(ctx, runID)
	if err != nil {
		return nil, err
	}
	if part < 0 || part >= meta.Parts {
		return nil, fmt.Errorf("%w: part %d of run %s", ErrPartNotFound, part, runID)
	}

	var data []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(partKey(runID, part))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: part %d of run %s", ErrPartNotFound, part, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading part %d of run %s: %w", part, runID, err)
	}

	if want, got := meta.PartHashes[part], hashBytes(data); want != got {
		return nil, fmt.Errorf("%w: part %d of run %s: expected hash %s, got %s", ErrIntegrity, part, runID, want, got)
	}

	mod, err := decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decoding part %d of run %s: %w", part, runID, err)
	}
	return mod, nil
}

// Metadata returns the metadata of a run.
func (s *PartStore) Metadata(ctx context.Context, runID string) (*RunMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if runID == "" {
		return nil, fmt.Errorf("run ID must not be empty")
	}

	var meta RunMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(runID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: run %s", ErrPartNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata of run %s: %w", runID, err)
	}
	return &meta, nil
}

// LatestRun returns the metadata of the latest run of uri.
func (s *PartStore) LatestRun(ctx context.Context, uri string) (*RunMetadata, error) {
	runID, err := s.latest(uri)
	if err != nil {
		return nil, err
	}
	return s.Metadata(ctx, runID)
}

// List returns the metadata of every run, newest first. An empty uri
// lists all modules.
func (s *PartStore) List(ctx context.Context, uri string) ([]*RunMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}

	var runs []*RunMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixRun)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if !isMetaKey(key) {
				continue
			}

			var meta RunMetadata
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				s.logger.Warn("skipping corrupt metadata", slog.String("key", key), slog.Any("error", err))
				continue
			}
			if uri != "" && meta.URI != uri {
				continue
			}
			runs = append(runs, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAtMilli != runs[j].CreatedAtMilli {
			return runs[i].CreatedAtMilli > runs[j].CreatedAtMilli
		}
		return runs[i].RunID < runs[j].RunID
	})
	return runs, nil
}

func (s *PartStore) latest(uri string) (string, error) {
	var runID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(latestKey(uri))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			runID = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: no run for %s", ErrPartNotFound, uri)
	}
	if err != nil {
		return "", fmt.Errorf("reading latest pointer for %s: %w", uri, err)
	}
	return runID, nil
}

func compress(mod *ast.Module) ([]byte, error) {
	jsonData, err := json.Marshal(mod)
	if err != nil {
		return nil, fmt.Errorf("marshaling part: %w", err)
	}

	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return nil, fmt.Errorf("compressing part: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) (*ast.Module, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, err
	}

	var mod ast.Module
	if err := json.Unmarshal(jsonData, &mod); err != nil {
		return nil, err
	}
	return &mod, nil
}

func partKey(runID string, part int) []byte {
	return []byte(keyPrefixRun + runID + keyInfixPart + strconv.Itoa(part))
}

func metaKey(runID string) []byte {
	return []byte(keyPrefixRun + runID + keySuffixMeta)
}

func latestKey(uri string) []byte {
	return []byte(keyPrefixLatest + URIHash(uri))
}

// URIHash returns SHA256(uri)[:16], the key component for a module.
func URIHash(uri string) string {
	return hashBytes([]byte(uri))[:16]
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func isMetaKey(key string) bool {
	return len(key) > len(keySuffixMeta) && key[len(key)-len(keySuffixMeta):] == keySuffixMeta
}
