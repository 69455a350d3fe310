// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import "encoding/json"

// IdentSet is an insertion-ordered set of identifier names.
//
// Description:
//
//	Identifier facts are printed and iterated in the order they were first
//	seen so that every downstream pass (edge insertion, part materialization,
//	reports) is deterministic. The zero value is an empty set ready to use.
//
// Thread Safety: Not safe for concurrent mutation.
type IdentSet struct {
	order []string
	index map[string]struct{}
}

// NewIdentSet returns a set holding names in the given order.
func NewIdentSet(names ...string) IdentSet {
	var s IdentSet
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name and reports whether it was not already present.
func (s *IdentSet) Add(name string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[name]; ok {
		return false
	}
	s.index[name] = struct{}{}
	s.order = append(s.order, name)
	return true
}

// AddAll inserts every name of other, preserving other's order.
func (s *IdentSet) AddAll(other IdentSet) {
	for _, n := range other.order {
		s.Add(n)
	}
}

// Has reports whether name is in the set.
func (s IdentSet) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Len returns the number of names.
func (s IdentSet) Len() int {
	return len(s.order)
}

// IsEmpty reports whether the set has no names.
func (s IdentSet) IsEmpty() bool {
	return len(s.order) == 0
}

// Names returns a copy of the names in insertion order.
func (s IdentSet) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Clone returns an independent copy.
func (s IdentSet) Clone() IdentSet {
	return NewIdentSet(s.order...)
}

// MarshalJSON encodes the set as a JSON array in insertion order.
func (s IdentSet) MarshalJSON() ([]byte, error) {
	if s.order == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.order)
}

// UnmarshalJSON decodes a JSON array of names.
func (s *IdentSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewIdentSet(names...)
	return nil
}
