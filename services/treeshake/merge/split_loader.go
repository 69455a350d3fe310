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
	"context"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/ast"
	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/depgraph"
)

// SplitLoader serves the parts of one split module. Other URIs and
// out-of-range parts are not found.
type SplitLoader struct {
	URI    string
	Result *depgraph.SplitModuleResult
}

// NewSplitLoader creates a SplitLoader for the parts of uri.
func NewSplitLoader(uri string, result *depgraph.SplitModuleResult) *SplitLoader {
	return &SplitLoader{URI: uri, Result: result}
}

// Load implements Loader. It returns a copy of the part so callers may
// modify the result.
func (l *SplitLoader) Load(_ context.Context, uri string, part int) (*ast.Module, error) {
	if uri != l.URI || l.Result == nil || part < 0 || part >= len(l.Result.Modules) {
		return nil, nil
	}
	return l.Result.Modules[part].Clone(), nil
}
