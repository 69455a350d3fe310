// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package merge inlines split parts back into a single module.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/ast"
)

var tracer = otel.Tracer("aleutian.treeshake.merge")

// ErrMergeCycle is returned when a part imports a part that is still being
// inlined. Condensation makes this unreachable for well-formed splits.
var ErrMergeCycle = errors.New("part import cycle")

// Loader resolves a part of a module.
//
// Description:
//
//	Load returns (nil, nil) when it does not know the part. The Merger
//	then leaves the import in place. Any other failure is returned as an
//	error and aborts the merge.
type Loader interface {
	Load(ctx context.Context, uri string, part int) (*ast.Module, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, uri string, part int) (*ast.Module, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, uri string, part int) (*ast.Module, error) {
	return f(ctx, uri, part)
}

type partKey struct {
	uri  string
	part int
}

type loaded struct {
	module *ast.Module
}

// Merger recursively inlines part imports.
//
// Description:
//
//	Every part import is replaced by the statements of the part it names,
//	recursively. A part already inlined is not inlined again and its import
//	is dropped. Internal part exports of inlined parts are dropped, public
//	exports kept. Loads are memoized per (uri, part) for the lifetime of the
//	Merger.
//
// Thread Safety: Not safe for concurrent use.
type Merger struct {
	loader Loader
	logger *slog.Logger
	cache  map[partKey]loaded
}

// Option configures a Merger.
type Option func(*Merger)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Merger) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a Merger.
//
// Inputs:
//
//	loader - Resolves part imports. Must not be nil.
//
// Outputs:
//
//	*Merger - The merger.
//	error   - Non-nil if loader is nil.
func New(loader Loader, opts ...Option) (*Merger, error) {
	if loader == nil {
		return nil, errors.New("loader must not be nil")
	}
	m := &Merger{
		loader: loader,
		logger: slog.Default(),
		cache:  make(map[partKey]loaded),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// MergeRecursively inlines every part entry imports.
//
// Inputs:
//
//	ctx   - Passed to the Loader.
//	entry - The part to start from. Not modified.
//
// Outputs:
//
//	*ast.Module - The merged module with the URI of entry.
//	error       - ErrMergeCycle (wrapped) or a Loader error.
func (m *Merger) MergeRecursively(ctx context.Context, entry *ast.Module) (*ast.Module, error) {
	if entry == nil {
		return nil, errors.New("entry must not be nil")
	}

	ctx, span := tracer.Start(ctx, "Merger.MergeRecursively")
	defer span.End()

	st := &mergeState{inlined: make(map[partKey]bool), path: make(map[partKey]bool)}
	body, err := m.inline(ctx, entry, st, true)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("uri", entry.URI),
		attribute.Int("inlined_parts", len(st.inlined)),
		attribute.Int("statements", len(body)),
	)
	return &ast.Module{URI: entry.URI, Body: body}, nil
}

// MergePart loads part of uri and merges it. The entry part counts as
// being on the inlining path, so a part importing it back is a cycle.
func (m *Merger) MergePart(ctx context.Context, uri string, part int) (*ast.Module, error) {
	key := partKey{uri: uri, part: part}
	mod, err := m.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if mod == nil {
		return nil, fmt.Errorf("part %d of %s not found", part, uri)
	}

	ctx, span := tracer.Start(ctx, "Merger.MergePart")
	defer span.End()

	st := &mergeState{inlined: make(map[partKey]bool), path: map[partKey]bool{key: true}}
	body, err := m.inline(ctx, mod, st, true)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &ast.Module{URI: mod.URI, Body: body}, nil
}

type mergeState struct {
	inlined map[partKey]bool
	path    map[partKey]bool
}

func (m *Merger) inline(ctx context.Context, mod *ast.Module, st *mergeState, top bool) ([]*ast.Stmt, error) {
	out := make([]*ast.Stmt, 0, len(mod.Body))

	for _, stmt := range mod.Body {
		switch stmt.Kind {
		case ast.StmtPartImport:
			imp := stmt.PartImport
			key := partKey{uri: imp.URI, part: imp.Part}

			if st.path[key] {
				return nil, fmt.Errorf("%w: part %d of %s", ErrMergeCycle, imp.Part, imp.URI)
			}
			if st.inlined[key] {
				continue
			}

			part, err := m.load(ctx, key)
			if err != nil {
				return nil, err
			}
			if part == nil {
				m.logger.Warn("part import left unresolved",
					slog.String("uri", imp.URI),
					slog.Int("part", imp.Part),
				)
				out = append(out, stmt)
				continue
			}

			st.path[key] = true
			body, err := m.inline(ctx, part, st, false)
			delete(st.path, key)
			if err != nil {
				return nil, err
			}
			st.inlined[key] = true
			out = append(out, body...)

		case ast.StmtPartExport:
			if !top && !stmt.PartExport.Public {
				continue
			}
			out = append(out, stmt)

		default:
			out = append(out, stmt)
		}
	}
	return out, nil
}

// load calls the Loader once per key.
func (m *Merger) load(ctx context.Context, key partKey) (*ast.Module, error) {
	if l, ok := m.cache[key]; ok {
		mergeLoadsTotal.WithLabelValues(loadResultCached).Inc()
		return l.module, nil
	}

	mod, err := m.loader.Load(ctx, key.uri, key.part)
	if err != nil {
		mergeLoadsTotal.WithLabelValues(loadResultError).Inc()
		return nil, fmt.Errorf("loading part %d of %s: %w", key.part, key.uri, err)
	}
	if mod == nil {
		mergeLoadsTotal.WithLabelValues(loadResultNotFound).Inc()
	} else {
		mergeLoadsTotal.WithLabelValues(loadResultLoaded).Inc()
	}

	m.cache[key] = loaded{module: mod}
	return mod, nil
}
