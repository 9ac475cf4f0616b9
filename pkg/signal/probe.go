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

package signal

import (
	"libshim.dev/shim/pkg/hostarch"
	"libshim.dev/shim/pkg/platform"
	"libshim.dev/shim/pkg/vma"
)

// Toucher performs the actual byte-touch of one page during the byte-touch
// probe strategy (spec.md §4.3). Real callers touch guest memory directly
// (see cmd/sigreplay, which wires this to runtime/debug.SetPanicOnFault plus
// recover -- this module's idiomatic-Go stand-in for the source's
// computed-goto landing pad); tests substitute a fake that reports faults at
// chosen offsets without touching real memory.
//
// A Toucher must, on fault, invoke ClassifyMemFault itself (or otherwise
// call ts's testRange bookkeeping) the same way a real memory-fault upcall
// would -- Prober only orchestrates the loop and stack selection.
type Toucher func(addr hostarch.Addr, write bool) error

// Prober implements probe_buffer/probe_cstring (spec.md §4.3), selecting
// between the VMA-walk and byte-touch strategies by host type, cached at
// construction the way the original source's is_sgx_pal caches its result
// after the first call.
type Prober struct {
	Host  platform.HostType
	VMAs  *vma.Map
	Touch Toucher
}

// NewProber returns a Prober for the given host type.
func NewProber(host platform.HostType, vmas *vma.Map, touch Toucher) *Prober {
	return &Prober{Host: host, VMAs: vmas, Touch: touch}
}

// ProbeBuffer reports whether any byte in [addr, addr+size) is not
// accessible for the requested direction (spec.md §4.3).
func (p *Prober) ProbeBuffer(ts *ThreadSignalState, addr hostarch.Addr, size uintptr, write bool) bool {
	if size == 0 {
		return false
	}
	end := addr + hostarch.Addr(size) - 1

	if p.Host.UsesVMAWalkProbe() {
		return !p.VMAs.CoversRange(addr.PageRoundDown(), end.PageRoundDown()+hostarch.PageSize, write)
	}
	return p.byteTouchRange(ts, addr, end, write)
}

// ProbeCString reports whether addr does not point to a NUL-terminated,
// readable string, testing page by page (spec.md §4.3 "For strings").
func (p *Prober) ProbeCString(ts *ThreadSignalState, addr hostarch.Addr, strlen func(hostarch.Addr, uintptr) (uintptr, bool)) bool {
	walk := p.Host.UsesVMAWalkProbe()
	for {
		pageEnd := addr.PageRoundDown() + hostarch.PageSize
		maxlen := uintptr(pageEnd - addr)

		if walk {
			if !p.VMAs.CoversRange(addr.PageRoundDown(), pageEnd, false) {
				return true
			}
		} else if p.byteTouchRange(ts, addr, addr, false) {
			return true
		}

		n, foundNUL := strlen(addr, maxlen)
		if foundNUL {
			return false
		}
		if n != maxlen {
			// strlen consumed less than a full page without finding a NUL:
			// only possible if it hit the end of the mapped region itself.
			return false
		}
		addr += hostarch.Addr(n)
	}
}

// byteTouchRange implements spec.md §4.3's byte-touch strategy: install the
// probe record, touch one byte per page, and report whether a fault landed.
func (p *Prober) byteTouchRange(ts *ThreadSignalState, start, end hostarch.Addr, write bool) bool {
	ts.probe.begin(start, end)
	defer ts.probe.finish()

	for addr := start; addr <= end; addr = addr.PageRoundDown() + hostarch.PageSize {
		if err := p.Touch(addr, write); err != nil {
			ts.probe.markFault()
			break
		}
		if ts.probe.hasFault {
			break
		}
	}
	return ts.probe.hasFault
}
