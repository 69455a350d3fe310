// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline runs the tree shaker end to end: parse, analyze,
// finalize, resolve weak edges, split and merge the module-evaluation part.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/ast"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/config"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/depgraph"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/merge"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/store"
)

var tracer = otel.Tracer("aleutian.treeshake.pipeline")

// Saver persists split results. *store.PartStore implements it.
type Saver interface {
	Save(ctx context.Context, uri string, mode depgraph.Mode, result *depgraph.SplitModuleResult) (*store.RunMetadata, error)
}

// Input is one module to shake.
type Input struct {
	URI     string
	Content []byte
}

// Result is the outcome of shaking one module.
type Result struct {
	URI  string
	Mode depgraph.Mode

	// Split holds the parts.
	Split *depgraph.SplitModuleResult

	// Merged is part 0 with every part import inlined.
	Merged *ast.Module

	// Statements is the number of top-level statements.
	Statements int

	// Eliminated is the number of statements in no part.
	Eliminated int

	// RunID is set when a Saver stored the result.
	RunID string
}

// Shaker runs the pipeline.
//
// Description:
//
//	A Shaker holds no per-module state, so one Shaker can shake many
//	modules at once. ShakeAll bounds the concurrency by the configured
//	worker count.
//
// Thread Safety: Safe for concurrent use.
type Shaker struct {
	parser  *ast.JavaScriptParser
	logger  *slog.Logger
	workers int
	saver   Saver
}

// Option configures a Shaker.
type Option func(*Shaker)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Shaker) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWorkers bounds ShakeAll. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(s *Shaker) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMaxFileSize sets the largest module the parser accepts.
func WithMaxFileSize(size int) Option {
	return func(s *Shaker) {
		s.parser = ast.NewJavaScriptParser(ast.WithMaxFileSize(size))
	}
}

// WithSaver stores every split result.
func WithSaver(saver Saver) Option {
	return func(s *Shaker) {
		s.saver = saver
	}
}

// New creates a Shaker.
func New(opts ...Option) *Shaker {
	s := &Shaker{
		parser:  ast.NewJavaScriptParser(),
		logger:  slog.Default(),
		workers: config.DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig creates a Shaker with the workers and file size limit of
// cfg. opts are applied after the config.
func NewFromConfig(cfg config.Config, opts ...Option) *Shaker {
	base := []Option{WithWorkers(cfg.Workers), WithMaxFileSize(cfg.MaxFileSize)}
	return New(append(base, opts...)...)
}

// Analyze parses content and runs the four analysis phases and Finalize.
//
// Outputs:
//
//	*depgraph.DepGraph - The finalized graph, weak edges not yet handled.
//	error              - A parse error.
func (s *Shaker) Analyze(ctx context.Context, uri string, content []byte) (*depgraph.DepGraph, error) {
	ctx, span := tracer.Start(ctx, "Shaker.Analyze", trace.WithAttributes(attribute.String("uri", uri)))
	defer span.End()

	mod, err := s.parser.Parse(ctx, content, uri)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("parsing %s: %w", uri, err)
	}

	g := depgraph.New(depgraph.WithLogger(s.logger))
	ids, _ := g.Init(mod)
	span.SetAttributes(attribute.Int("items", len(ids)))

	a := depgraph.NewAnalyzer(g)
	var eventual ast.IdentSet
	phase(ctx, "HoistVarsAndBindings", func() { eventual = a.HoistVarsAndBindings() })
	phase(ctx, "EvaluateImmediate", func() { a.EvaluateImmediate(eventual) })
	phase(ctx, "EvaluateEventual", a.EvaluateEventual)
	phase(ctx, "HandleExports", a.HandleExports)
	phase(ctx, "Finalize", func() { g.Finalize() })

	return g, nil
}

func phase(ctx context.Context, name string, fn func()) {
	_, span := tracer.Start(ctx, "Shaker."+name)
	defer span.End()
	fn()
}

// Shake runs the whole pipeline on one module.
//
// Inputs:
//
//	ctx     - Context for cancellation and tracing.
//	uri     - The module identity.
//	content - The module source.
//	mode    - How weak edges are resolved.
//
// Outputs:
//
//	*Result - The parts and the merged module-evaluation part.
//	error   - Parse, split, merge or save failure.
func (s *Shaker) Shake(ctx context.Context, uri string, content []byte, mode depgraph.Mode) (*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Shaker.Shake", trace.WithAttributes(
		attribute.String("uri", uri),
		attribute.String("mode", mode.String()),
	))
	defer span.End()

	res, err := s.shake(ctx, uri, content, mode)
	shakeDuration.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		shakeRunsTotal.WithLabelValues(mode.String(), statusError).Inc()
		span.RecordError(err)
		return nil, err
	}
	shakeRunsTotal.WithLabelValues(mode.String(), statusSuccess).Inc()
	shakePartsTotal.WithLabelValues(mode.String()).Add(float64(len(res.Split.Modules)))
	shakeEliminatedTotal.WithLabelValues(mode.String()).Add(float64(res.Eliminated))

	span.SetAttributes(
		attribute.Int("parts", len(res.Split.Modules)),
		attribute.Int("eliminated", res.Eliminated),
	)
	s.logger.Info("module shaken",
		slog.String("uri", uri),
		slog.String("mode", mode.String()),
		slog.Int("statements", res.Statements),
		slog.Int("parts", len(res.Split.Modules)),
		slog.Int("eliminated", res.Eliminated),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (s *Shaker) shake(ctx context.Context, uri string, content []byte, mode depgraph.Mode) (*Result, error) {
	g, err := s.Analyze(ctx, uri, content)
	if err != nil {
		return nil, err
	}
	if err := g.HandleWeak(mode); err != nil {
		return nil, err
	}

	split, err := g.SplitModule(uri)
	if err != nil {
		return nil, fmt.Errorf("splitting %s: %w", uri, err)
	}

	merger, err := merge.New(merge.NewSplitLoader(uri, split), merge.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	merged, err := merger.MergeRecursively(ctx, split.Modules[0])
	if err != nil {
		return nil, fmt.Errorf("merging %s: %w", uri, err)
	}

	res := &Result{
		URI:        uri,
		Mode:       mode,
		Split:      split,
		Merged:     merged,
		Statements: len(g.Module().Body),
	}
	for _, id := range g.Ids()[:res.Statements] {
		if !g.IsLive(id) {
			res.Eliminated++
		}
	}

	if s.saver != nil {
		meta, err := s.saver.Save(ctx, uri, mode, split)
		if err != nil {
			return nil, fmt.Errorf("saving %s: %w", uri, err)
		}
		res.RunID = meta.RunID
	}
	return res, nil
}

// ShakeAll shakes independent modules concurrently. Results are returned
// in input order. The first failure cancels the remaining work.
func (s *Shaker) ShakeAll(ctx context.Context, inputs []Input, mode depgraph.Mode) ([]*Result, error) {
	ctx, span := tracer.Start(ctx, "Shaker.ShakeAll", trace.WithAttributes(
		attribute.Int("modules", len(inputs)),
		attribute.Int("workers", s.workers),
	))
	defer span.End()

	results := make([]*Result, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.Shake(gctx, in.URI, in.Content, mode)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return results, nil
}
