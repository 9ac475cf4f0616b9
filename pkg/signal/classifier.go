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
	"libshim.dev/shim/pkg/abi"
	"libshim.dev/shim/pkg/hostarch"
	"libshim.dev/shim/pkg/platform"
	"libshim.dev/shim/pkg/vma"
)

// Verdict is the fault classifier's decision (spec.md §4.2): either the
// fault is redirected to a probe landing pad, or it's fatal to the whole
// process (internal fault), or it becomes a concrete signal to enqueue, or
// (ILLEGAL only) it should be emulated as a syscall entry rather than
// signaled at all.
type Verdict struct {
	Redirect        bool
	Internal        bool
	EmulateSyscall  bool
	Signal          abi.Signal
	Code            int32
}

// syscallOpcode is the two-byte x86-64 `syscall` instruction, checked by
// ClassifyIllegal against the faulting bytes (spec.md §4.2 "ILLEGAL").
var syscallOpcode = [2]byte{0x0f, 0x05}

// ClassifyMemFault implements spec.md §4.2's MEMFAULT decision table. ctx is
// the interrupted thread's context (used only to test whether the fault
// occurred in guest code); vmas is the VMA map consulted to refine
// SIGSEGV/SIGBUS and MAPERR/ACCERR.
func ClassifyMemFault(ts *ThreadSignalState, ctx platform.Context, addr hostarch.Addr, write bool, vmas *vma.Map) Verdict {
	if ts.probe.contains(addr) {
		ts.probe.markFault()
		return Verdict{Redirect: true}
	}

	if !ctx.InGuestCode() {
		return Verdict{Internal: true}
	}

	if addr == 0 {
		return Verdict{Signal: abi.SIGSEGV, Code: abi.SEGV_MAPERR}
	}

	area, ok := vmas.Lookup(addr)
	if !ok {
		return Verdict{Signal: abi.SIGSEGV, Code: abi.SEGV_MAPERR}
	}
	if area.Internal {
		return Verdict{Internal: true}
	}
	if area.File {
		if area.PastEOF(addr) {
			return Verdict{Signal: abi.SIGBUS, Code: abi.BUS_ADRERR}
		}
		if write && !area.Write {
			return Verdict{Signal: abi.SIGSEGV, Code: abi.SEGV_ACCERR}
		}
		return Verdict{Signal: abi.SIGBUS, Code: abi.BUS_ADRERR}
	}
	return Verdict{Signal: abi.SIGSEGV, Code: abi.SEGV_ACCERR}
}

// ClassifyArith implements spec.md §4.2's "ARITH -> SIGFPE with INTDIV",
// still subject to the internal-fault check shared by every upcall.
func ClassifyArith(ctx platform.Context) Verdict {
	if !ctx.InGuestCode() {
		return Verdict{Internal: true}
	}
	return Verdict{Signal: abi.SIGFPE, Code: abi.FPE_INTDIV}
}

// ClassifyIllegal implements spec.md §4.2's "ILLEGAL" row: a direct-host
// syscall opcode is emulated (spec.md §4.7) rather than signaled; anything
// else in guest code becomes SIGILL/ILL_ILLOPC.
func ClassifyIllegal(ctx platform.Context, faultingBytes [2]byte) Verdict {
	if !ctx.InGuestCode() {
		return Verdict{Internal: true}
	}
	if faultingBytes == syscallOpcode {
		return Verdict{EmulateSyscall: true}
	}
	return Verdict{Signal: abi.SIGILL, Code: abi.ILL_ILLOPC}
}

// ClassifySeccompSyscall implements the seccomp-path SIGSYS emulation
// spec.md §9 documents as present in the original source but disabled
// (guarded behind the `#if 0` in illegal_upcall). A seccomp filter that
// traps rather than kills on a disallowed direct-host syscall raises SIGSYS
// with the syscall number in si_syscall, rather than delivering it as the
// bare two-byte opcode ClassifyIllegal expects; the emulation sequence is
// otherwise identical (spec.md §4.7's register-rewrite-then-jump shape).
//
// This is only reached when the caller has opted in via a host-type switch
// (spec.md §9's "behind a host-type switch only after testing"); see
// Kernel.SeccompSIGSYSEnabled.
func ClassifySeccompSyscall(ctx platform.Context, syscallNum int32) Verdict {
	if !ctx.InGuestCode() {
		return Verdict{Internal: true}
	}
	return Verdict{EmulateSyscall: true, Code: syscallNum}
}
