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
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/ast"
)

// ItemKind distinguishes the statements an item can stand for.
type ItemKind int

const (
	// ItemKindNormal is a statement that declares nothing.
	ItemKindNormal ItemKind = iota

	// ItemKindDeclaration is a var/let/const/function/class declaration.
	ItemKindDeclaration

	// ItemKindImport is an import declaration.
	ItemKindImport

	// ItemKindExport is an export statement without a declaration.
	ItemKindExport
)

// String returns the string representation of the ItemKind.
func (k ItemKind) String() string {
	switch k {
	case ItemKindNormal:
		return "Normal"
	case ItemKindDeclaration:
		return "Declaration"
	case ItemKindImport:
		return "Import"
	case ItemKindExport:
		return "Export"
	default:
		return "Unknown"
	}
}

func itemKindOf(k ast.StmtKind) ItemKind {
	switch k {
	case ast.StmtDeclaration:
		return ItemKindDeclaration
	case ast.StmtImport:
		return ItemKindImport
	case ast.StmtExport:
		return ItemKindExport
	default:
		return ItemKindNormal
	}
}

// GroupKind identifies a synthetic group node.
type GroupKind int

const (
	// GroupNone marks an ItemId that stands for a statement.
	GroupNone GroupKind = iota

	// GroupModuleEvaluation is "the module has been evaluated".
	GroupModuleEvaluation

	// GroupExport is one exported name.
	GroupExport
)

// GroupKey names a group: the module evaluation or one export.
type GroupKey struct {
	Kind GroupKind
	Name string
}

// ModuleEvaluation returns the key of the module evaluation group.
func ModuleEvaluation() GroupKey {
	return GroupKey{Kind: GroupModuleEvaluation}
}

// Export returns the key of the group for the exported name.
func Export(name string) GroupKey {
	return GroupKey{Kind: GroupExport, Name: name}
}

// String renders the key as "ModuleEvaluation" or "export <name>".
func (k GroupKey) String() string {
	switch k.Kind {
	case GroupModuleEvaluation:
		return "ModuleEvaluation"
	case GroupExport:
		return "export " + k.Name
	default:
		return ""
	}
}

// MarshalText encodes the key for use as a JSON object key.
func (k GroupKey) MarshalText() ([]byte, error) {
	switch k.Kind {
	case GroupModuleEvaluation:
		return []byte("module_evaluation"), nil
	case GroupExport:
		return []byte("export:" + k.Name), nil
	default:
		return nil, fmt.Errorf("cannot marshal group kind %d", k.Kind)
	}
}

// UnmarshalText decodes a key written by MarshalText.
func (k *GroupKey) UnmarshalText(text []byte) error {
	s := string(text)
	switch {
	case s == "module_evaluation":
		*k = ModuleEvaluation()
	case strings.HasPrefix(s, "export:"):
		*k = Export(strings.TrimPrefix(s, "export:"))
	default:
		return fmt.Errorf("invalid group key %q", s)
	}
	return nil
}

// ItemId identifies one node of the dependency graph.
//
// Description:
//
//	A statement item has Index set to the statement position and Group.Kind
//	GroupNone. A group item has Index -1. ItemId is comparable and is used
//	directly as the interned graph value.
type ItemId struct {
	Index int
	Kind  ItemKind
	Group GroupKey
}

// StmtItem returns the id of the statement at index.
func StmtItem(index int, kind ItemKind) ItemId {
	return ItemId{Index: index, Kind: kind}
}

// GroupItem returns the id of a group.
func GroupItem(key GroupKey) ItemId {
	return ItemId{Index: -1, Group: key}
}

// IsGroup reports whether the id is a synthetic group.
func (id ItemId) IsGroup() bool {
	return id.Group.Kind != GroupNone
}

// String renders the id for logs and reports.
func (id ItemId) String() string {
	if id.IsGroup() {
		return id.Group.String()
	}
	return fmt.Sprintf("Item(%d, %s)", id.Index, id.Kind)
}

// Mode selects how weak edges are resolved before splitting.
type Mode int

const (
	// ModeDevelopment keeps weak edges as hints. It gives the most parts.
	ModeDevelopment Mode = iota

	// ModeProduction co-locates weakly linked items where possible.
	ModeProduction
)

// String returns the string representation of the Mode.
func (m Mode) String() string {
	switch m {
	case ModeDevelopment:
		return "development"
	case ModeProduction:
		return "production"
	default:
		return "unknown"
	}
}

// ParseMode parses "development"/"dev" or "production"/"prod".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "development", "dev":
		return ModeDevelopment, nil
	case "production", "prod":
		return ModeProduction, nil
	default:
		return ModeDevelopment, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}
