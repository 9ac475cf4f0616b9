// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vma provides the minimal virtual memory area map consulted by the
// fault classifier and the VMA-walk memory probe strategy. This stands in
// for the "thread table and VMA lookup" collaborator that spec.md §1 marks
// out of scope, but the classifier's decision table (spec.md §4.2) cannot
// be exercised without a concrete map, so a small one is provided here.
package vma

import (
	"cmp"
	"sync"

	"golang.org/x/exp/slices"

	"libshim.dev/shim/pkg/hostarch"
)

// Area describes one mapped region, analogous to a subset of gVisor's
// mm.vma / Gramine's struct shim_vma_val.
type Area struct {
	Start hostarch.Addr
	End   hostarch.Addr // exclusive

	Read, Write, Exec bool

	// Internal marks a library-OS-owned mapping; faults here are bugs, not
	// guest-visible signals (spec.md glossary, "Internal VMA").
	Internal bool

	// File marks a file-backed mapping. EOF is the offset, relative to
	// Start, past which the file's contents no longer back the mapping
	// (spec.md §4.2, "past end-of-file projection").
	File bool
	EOF  hostarch.Addr
}

// Contains reports whether addr falls within the area.
func (a Area) Contains(addr hostarch.Addr) bool {
	return addr >= a.Start && addr < a.End
}

// PastEOF reports whether addr is within the area but past the file's
// end-of-file projection.
func (a Area) PastEOF(addr hostarch.Addr) bool {
	return a.File && addr >= a.Start+a.EOF
}

// Map is a sorted, non-overlapping set of Areas with a reader lock, matching
// spec.md §5's "the VMA map uses its own reader lock".
type Map struct {
	mu    sync.RWMutex
	areas []Area // sorted by Start, non-overlapping
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{}
}

// Insert adds or replaces the area covering [a.Start, a.End). Overlapping
// areas are removed, matching mmap(2)'s "silently replaces" semantics.
func (m *Map) Insert(a Area) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.areas[:0:0]
	for _, existing := range m.areas {
		if existing.End <= a.Start || existing.Start >= a.End {
			out = append(out, existing)
		}
	}
	out = append(out, a)
	slices.SortFunc(out, func(x, y Area) int { return cmp.Compare(x.Start, y.Start) })
	m.areas = out
}

// Remove deletes any area overlapping [start, end).
func (m *Map) Remove(start, end hostarch.Addr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.areas[:0:0]
	for _, existing := range m.areas {
		if existing.End <= start || existing.Start >= end {
			out = append(out, existing)
		}
	}
	m.areas = out
}

// areaCmp orders an Area against a probe address: negative if the area ends
// at or before addr, positive if it starts after addr, zero if addr falls
// inside [Start, End). Passed to slices.BinarySearchFunc since the areas are
// kept sorted and non-overlapping by Insert/Remove.
func areaCmp(a Area, addr hostarch.Addr) int {
	switch {
	case a.End <= addr:
		return -1
	case a.Start > addr:
		return 1
	default:
		return 0
	}
}

// Lookup returns the Area containing addr, if any.
func (m *Map) Lookup(addr hostarch.Addr) (Area, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, found := slices.BinarySearchFunc(m.areas, addr, areaCmp)
	if found {
		return m.areas[i], true
	}
	return Area{}, false
}

// CoversRange reports whether [start, end) is entirely covered by a
// contiguous run of non-internal areas, used by the VMA-walk probe strategy
// (spec.md §4.3).
func (m *Map) CoversRange(start, end hostarch.Addr, write bool) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	addr := start
	for addr < end {
		i, found := slices.BinarySearchFunc(m.areas, addr, areaCmp)
		if !found {
			return false
		}
		a := m.areas[i]
		if a.Internal {
			return false
		}
		if write && !a.Write {
			return false
		}
		if !write && !a.Read {
			return false
		}
		addr = a.End
	}
	return true
}
