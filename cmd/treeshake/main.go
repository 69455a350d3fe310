// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command treeshake splits ECMAScript modules into parts that carry only
// what a consumer needs, and merges parts back together.
//
// Usage:
//
//	treeshake report input.js
//	treeshake split --mode production --save src/a.js src/b.js
//	treeshake merge --part 0 src/a.js
//	treeshake watch src/
//
// Settings are read from treeshake.yaml in the working directory; flags
// override the file.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/config"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/pipeline"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/store"
)

var (
	configPath string
	modeFlag   string
	logLevel   string
	workers    int
	storePath  string
	inMemory   bool
	traceSpans bool

	shutdownTracing func(context.Context) error
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "treeshake",
		Short:         "Split ECMAScript modules into tree-shaken parts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := parseLevel(logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), level))

			if traceSpans {
				shutdown, err := setupTracing(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				shutdownTracing = shutdown
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if shutdownTracing == nil {
				return nil
			}
			err := shutdownTracing(cmd.Context())
			shutdownTracing = nil
			return err
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", config.FileName, "path to the config file")
	flags.StringVar(&modeFlag, "mode", "", "development or production (overrides config)")
	flags.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	flags.IntVar(&workers, "workers", 0, "modules processed at once (overrides config)")
	flags.StringVar(&storePath, "store", "", "part store directory (overrides config)")
	flags.BoolVar(&inMemory, "in-memory", false, "keep the part store in memory")
	flags.BoolVar(&traceSpans, "trace", false, "write OpenTelemetry spans to stderr")

	root.AddCommand(newReportCmd(), newSplitCmd(), newMergeCmd(), newWatchCmd())
	return root
}

// loadConfig reads the config file and applies the flag overrides.
func loadConfig() (config.Config, error) {
	opts := []config.Option{
		config.WithMode(modeFlag),
		config.WithWorkers(workers),
		config.WithStorePath(storePath),
	}
	if inMemory {
		opts = append(opts, config.WithInMemoryStore())
	}
	return config.Load(configPath, opts...)
}

func newShaker(cfg config.Config, opts ...pipeline.Option) *pipeline.Shaker {
	return pipeline.NewFromConfig(cfg, append([]pipeline.Option{pipeline.WithLogger(slog.Default())}, opts...)...)
}

func openStore(cfg config.Config) (*store.PartStore, error) {
	return store.Open(store.Options{Path: cfg.Store.Path, InMemory: cfg.Store.InMemory}, slog.Default())
}

// newLogger returns a text handler on a terminal and a JSON handler
// otherwise.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
