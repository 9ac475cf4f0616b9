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

// Package hostarch holds small architecture-adjacent types shared by the
// arch, platform, vma and signal packages.
package hostarch

// Addr is a generic virtual address, analogous to gVisor's usermem.Addr.
type Addr uintptr

// PageSize is the page granularity this module assumes for VMA lookups and
// the byte-touch memory probe.
const PageSize = 4096

// PageRoundDown returns the address of the page containing addr.
func (a Addr) PageRoundDown() Addr {
	return a &^ (PageSize - 1)
}

// AccessType specifies the direction(s) of a memory access, mirroring
// gVisor's usermem.AccessType (referenced, but not defined, in the
// retrieval pack's platform.Context.Switch doc comment).
type AccessType struct {
	Read    bool
	Write   bool
	Execute bool
}

// Any returns true if at specifies any access at all.
func (at AccessType) Any() bool {
	return at.Read || at.Write || at.Execute
}

// String implements fmt.Stringer.
func (at AccessType) String() string {
	var b [3]byte
	set := func(i int, ok bool, c byte) {
		if ok {
			b[i] = c
		} else {
			b[i] = '-'
		}
	}
	set(0, at.Read, 'r')
	set(1, at.Write, 'w')
	set(2, at.Execute, 'x')
	return string(b[:])
}

// Read-only, write-only and read-write access shorthands.
var (
	NoAccess    = AccessType{}
	ReadAccess  = AccessType{Read: true}
	WriteAccess = AccessType{Write: true}
	ExecAccess  = AccessType{Execute: true}
)
