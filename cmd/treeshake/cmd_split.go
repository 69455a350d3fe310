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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/ast"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/depgraph"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/merge"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/pipeline"
)

func newReportCmd() *cobra.Command {
	var noMermaid bool
	cmd := &cobra.Command{
		Use:   "report <file>",
		Short: "Print a markdown walkthrough of shaking one module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			out, err := newShaker(cfg).Report(cmd.Context(), args[0], content, pipeline.ReportOptions{
				Mermaid: cfg.Report.Mermaid && !noMermaid,
			})
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&noMermaid, "no-mermaid", false, "omit the graph diagrams")
	return cmd
}

// splitSummary is the JSON printed per module by split.
type splitSummary struct {
	URI         string                    `json:"uri"`
	Mode        string                    `json:"mode"`
	Parts       int                       `json:"parts"`
	Eliminated  int                       `json:"eliminated"`
	Entrypoints map[depgraph.GroupKey]int `json:"entrypoints"`
	PartDeps    map[int][]int             `json:"part_deps"`
	RunID       string                    `json:"run_id,omitempty"`
	Modules     []string                  `json:"modules,omitempty"`
}

func summarize(res *pipeline.Result, withCode bool) splitSummary {
	sum := splitSummary{
		URI:         res.URI,
		Mode:        res.Mode.String(),
		Parts:       len(res.Split.Modules),
		Eliminated:  res.Eliminated,
		Entrypoints: res.Split.Entrypoints,
		PartDeps:    res.Split.PartDeps,
		RunID:       res.RunID,
	}
	if withCode {
		for _, m := range res.Split.Modules {
			sum.Modules = append(sum.Modules, ast.Print(m))
		}
	}
	return sum
}

func newSummaryEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}

func newSplitCmd() *cobra.Command {
	var save, printParts bool
	cmd := &cobra.Command{
		Use:   "split <file>...",
		Short: "Split modules into parts",
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

			inputs, err := readInputs(args)
			if err != nil {
				return err
			}

			var opts []pipeline.Option
			if save {
				ps, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer ps.Close()
				opts = append(opts, pipeline.WithSaver(ps))
			}

			results, err := newShaker(cfg, opts...).ShakeAll(cmd.Context(), inputs, mode)
			if err != nil {
				return err
			}

			enc := newSummaryEncoder(cmd.OutOrStdout())
			for _, res := range results {
				if err := enc.Encode(summarize(res, printParts)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "persist the parts in the store")
	cmd.Flags().BoolVar(&printParts, "print", false, "include the part code in the output")
	return cmd
}

func newMergeCmd() *cobra.Command {
	var part int
	cmd := &cobra.Command{
		Use:   "merge <uri>",
		Short: "Merge a stored part with everything it imports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ps, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer ps.Close()

			m, err := merge.New(ps)
			if err != nil {
				return err
			}
			merged, err := m.MergePart(cmd.Context(), args[0], part)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ast.Print(merged))
			return err
		},
	}
	cmd.Flags().IntVar(&part, "part", 0, "part to start from")
	return cmd
}

func readInputs(paths []string) ([]pipeline.Input, error) {
	inputs := make([]pipeline.Input, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, pipeline.Input{URI: p, Content: content})
	}
	return inputs, nil
}
