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

import "github.com/AleutianAI/AleutianTreeShake/services/treeshake/ast"

// Item holds the facts of one graph node. Group items keep empty facts.
//
// Thread Safety: Written only by the Analyzer; read-only afterwards.
type Item struct {
	IsHoisted         bool         `json:"is_hoisted"`
	SideEffects       bool         `json:"side_effects"`
	VarDecls          ast.IdentSet `json:"var_decls"`
	ReadVars          ast.IdentSet `json:"read_vars"`
	WriteVars         ast.IdentSet `json:"write_vars"`
	EventualReadVars  ast.IdentSet `json:"eventual_read_vars"`
	EventualWriteVars ast.IdentSet `json:"eventual_write_vars"`
	MutateVars        ast.IdentSet `json:"mutate_vars"`
}

// uses returns every binding the item touches, in a stable order.
func (it *Item) uses() ast.IdentSet {
	var s ast.IdentSet
	s.AddAll(it.ReadVars)
	s.AddAll(it.EventualReadVars)
	s.AddAll(it.WriteVars)
	s.AddAll(it.EventualWriteVars)
	return s
}
