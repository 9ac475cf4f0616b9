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

package vma

import (
	"testing"

	"libshim.dev/shim/pkg/hostarch"
)

func TestLookupMiss(t *testing.T) {
	m := NewMap()
	if _, ok := m.Lookup(0x1000); ok {
		t.Errorf("Lookup on empty map returned ok=true")
	}
}

func TestInsertAndLookup(t *testing.T) {
	m := NewMap()
	m.Insert(Area{Start: 0x1000, End: 0x2000, Read: true})
	m.Insert(Area{Start: 0x3000, End: 0x4000, Read: true, Write: true})

	if a, ok := m.Lookup(0x1500); !ok || a.Start != 0x1000 {
		t.Errorf("Lookup(0x1500) = %+v, %v, want area starting 0x1000", a, ok)
	}
	if _, ok := m.Lookup(0x2500); ok {
		t.Errorf("Lookup(0x2500) unexpectedly found an area in the gap")
	}
	if a, ok := m.Lookup(0x3fff); !ok || !a.Write {
		t.Errorf("Lookup(0x3fff) = %+v, %v, want writable area", a, ok)
	}
	// End is exclusive.
	if _, ok := m.Lookup(0x4000); ok {
		t.Errorf("Lookup(End) unexpectedly found an area; End must be exclusive")
	}
}

func TestInsertReplacesOverlap(t *testing.T) {
	m := NewMap()
	m.Insert(Area{Start: 0x1000, End: 0x3000, Read: true})
	m.Insert(Area{Start: 0x2000, End: 0x4000, Write: true})

	if a, ok := m.Lookup(0x1500); ok {
		t.Errorf("Lookup(0x1500) = %+v, ok=%v, want the old area to have been evicted by the overlapping insert", a, ok)
	}
	a, ok := m.Lookup(0x2500)
	if !ok || !a.Write || a.Read {
		t.Errorf("Lookup(0x2500) = %+v, %v, want the new write-only area", a, ok)
	}
}

func TestRemove(t *testing.T) {
	m := NewMap()
	m.Insert(Area{Start: 0x1000, End: 0x2000})
	m.Remove(0x1000, 0x2000)
	if _, ok := m.Lookup(0x1500); ok {
		t.Errorf("Lookup found an area after Remove covered it entirely")
	}
}

func TestPastEOF(t *testing.T) {
	a := Area{Start: 0x1000, End: 0x3000, File: true, EOF: 0x1000}
	if a.PastEOF(0x1500) {
		t.Errorf("PastEOF(0x1500) = true, want false (within the file projection)")
	}
	if !a.PastEOF(0x2500) {
		t.Errorf("PastEOF(0x2500) = false, want true (past Start+EOF)")
	}
}

func TestCoversRange(t *testing.T) {
	m := NewMap()
	m.Insert(Area{Start: 0x1000, End: 0x2000, Read: true, Write: true})
	m.Insert(Area{Start: 0x2000, End: 0x3000, Read: true})

	if !m.CoversRange(0x1000, 0x2000, true) {
		t.Errorf("CoversRange over a single writable area returned false")
	}
	if m.CoversRange(0x1000, 0x3000, true) {
		t.Errorf("CoversRange(write) over a run including a read-only area returned true")
	}
	if !m.CoversRange(0x1000, 0x3000, false) {
		t.Errorf("CoversRange(read) over two readable contiguous areas returned false")
	}
	if m.CoversRange(0x1000, 0x4000, false) {
		t.Errorf("CoversRange past the end of the mapped run returned true")
	}
}

func TestAreaContains(t *testing.T) {
	a := Area{Start: 0x1000, End: 0x2000}
	cases := []struct {
		addr hostarch.Addr
		want bool
	}{
		{0x0fff, false},
		{0x1000, true},
		{0x1fff, true},
		{0x2000, false},
	}
	for _, tc := range cases {
		if got := a.Contains(tc.addr); got != tc.want {
			t.Errorf("Contains(%#x) = %v, want %v", tc.addr, got, tc.want)
		}
	}
}
