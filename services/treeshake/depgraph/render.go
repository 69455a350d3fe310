// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depgraph

import (
	"strings"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/graph"
)

// RenderItemGraph renders the item graph as Mermaid. Statement nodes are
// unlabeled; group nodes show their name.
func RenderItemGraph(d *DepGraph) string {
	return graph.RenderMermaid(d.g, "Item", func(id ItemId) string {
		if id.IsGroup() {
			return id.Group.String()
		}
		return ""
	})
}

// RenderCondensed renders a condensed graph as Mermaid, labeling every
// node with its member items.
func RenderCondensed(c *graph.Condensation[ItemId]) string {
	return graph.RenderMermaid(c.Graph, "N", func(ci int) string {
		return "Items: " + FormatIds(c.Components[ci])
	})
}

// FormatIds renders ids as "[a, b, c]".
func FormatIds(ids []ItemId) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
