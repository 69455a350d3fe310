// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"strings"
)

// RenderMermaid renders the graph as a Mermaid flowchart.
//
// Description:
//
//	Node i is emitted as <prefix><i>. When label returns a non-empty string
//	it is shown as the node text. Strong edges render as `-->` and Weak
//	edges as `-.->`.
func RenderMermaid[T comparable](g *InternedGraph[T], prefix string, label func(T) string) string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	for i, v := range g.values {
		text := ""
		if label != nil {
			text = label(v)
		}
		if text == "" {
			fmt.Fprintf(&b, "    %s%d;\n", prefix, i)
			continue
		}
		fmt.Fprintf(&b, "    %s%d[\"%s\"];\n", prefix, i, sanitizeMermaidLabel(text))
	}

	for _, e := range g.Edges() {
		fmt.Fprintf(&b, "    %s%d %s %s%d;\n", prefix, e.From, mermaidArrow(e.Dep), prefix, e.To)
	}

	return b.String()
}

func mermaidArrow(dep Dependency) string {
	if dep == Weak {
		return "-.->"
	}
	return "-->"
}

func sanitizeMermaidLabel(s string) string {
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.Map(func(r rune) rune {
		if r == ';' || r == '\n' {
			return -1
		}
		return r
	}, s)
}
