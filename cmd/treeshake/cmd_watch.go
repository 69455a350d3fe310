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
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/depgraph"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/pipeline"
)

func newWatchCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch <path>...",
		Short: "Re-split modules whenever they change and save each run",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			mode, err := cfg.ParsedMode()
			if err != nil {
				return err
			}

			ps, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer ps.Close()

			w, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("creating watcher: %w", err)
			}
			defer w.Close()

			for _, p := range args {
				if err := w.Add(p); err != nil {
					return fmt.Errorf("watching %s: %w", p, err)
				}
			}
			if metricsAddr != "" {
				go serveMetrics(cmd.Context(), metricsAddr)
			}
			slog.Info("watching for changes", slog.Any("paths", args), slog.String("mode", mode.String()))

			s := newShaker(cfg, pipeline.WithSaver(ps))
			return watchLoop(cmd.Context(), w, s, mode, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")
	return cmd
}

// watchLoop re-splits every module file that is written or created and
// prints one summary per run to out. It returns when ctx is done or the
// watcher is closed.
func watchLoop(ctx context.Context, w *fsnotify.Watcher, s *pipeline.Shaker, mode depgraph.Mode, out io.Writer) error {
	enc := newSummaryEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !isModuleFile(ev.Name) {
				continue
			}
			res, ok := reshake(ctx, s, ev.Name, mode)
			if !ok {
				continue
			}
			if err := enc.Encode(summarize(res, false)); err != nil {
				return err
			}
		}
	}
}

// reshake splits the module at path. Failures are logged, not returned, so
// one broken edit does not stop the watch.
func reshake(ctx context.Context, s *pipeline.Shaker, path string, mode depgraph.Mode) (*pipeline.Result, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("reading changed module", slog.String("path", path), slog.String("error", err.Error()))
		return nil, false
	}
	res, err := s.Shake(ctx, path, content, mode)
	if err != nil {
		slog.Warn("shaking changed module", slog.String("path", path), slog.String("error", err.Error()))
		return nil, false
	}
	return res, true
}

func isModuleFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".jsx":
		return true
	}
	return false
}
