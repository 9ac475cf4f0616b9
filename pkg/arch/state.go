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

package arch

// Registers is equivalent to struct user_regs_struct on x86-64
// (Linux's arch/x86/include/asm/user_64.h), the register file exchanged
// across a PAL upcall (spec.md §2, component 2).
type Registers struct {
	R15      uint64
	R14      uint64
	R13      uint64
	R12      uint64
	Rbp      uint64
	Rbx      uint64
	R11      uint64
	R10      uint64
	R9       uint64
	R8       uint64
	Rax      uint64
	Rcx      uint64
	Rdx      uint64
	Rsi      uint64
	Rdi      uint64
	OrigRax  uint64
	Rip      uint64
	Cs       uint64
	Eflags   uint64
	Rsp      uint64
	Ss       uint64
	FsBase   uint64
	GsBase   uint64
	Ds       uint64
	Es       uint64
	Fs       uint64
	Gs       uint64
}

// State is the per-thread architectural state the signal core reads and
// rewrites: the general-purpose register file plus the raw FPU/XSAVE area
// (spec.md §4.5's "FPU area" layout block). It plays the role of gVisor's
// arch.State.
type State struct {
	Regs    Registers
	FPState FPState
}

// IP returns the current instruction pointer.
func (s *State) IP() uintptr { return uintptr(s.Regs.Rip) }

// SetIP sets the current instruction pointer.
func (s *State) SetIP(v uintptr) { s.Regs.Rip = uint64(v) }

// Stack returns the current stack pointer.
func (s *State) Stack() uintptr { return uintptr(s.Regs.Rsp) }

// SetStack sets the current stack pointer.
func (s *State) SetStack(v uintptr) { s.Regs.Rsp = uint64(v) }

// Return returns the current syscall return value / rax.
func (s *State) Return() uintptr { return uintptr(s.Regs.Rax) }

// SetReturn sets rax, used both for syscall return values and (spec.md
// §4.7) for emulating a syscall's register-restore epilogue.
func (s *State) SetReturn(v uintptr) { s.Regs.Rax = uint64(v) }

// sigContext projects the subset of Regs that SignalSetup/SignalRestore
// exchange with the on-stack ucontext.
func (s *State) sigContext() SignalContext64 {
	return SignalContext64{
		R8: s.Regs.R8, R9: s.Regs.R9, R10: s.Regs.R10, R11: s.Regs.R11,
		R12: s.Regs.R12, R13: s.Regs.R13, R14: s.Regs.R14, R15: s.Regs.R15,
		Rdi: s.Regs.Rdi, Rsi: s.Regs.Rsi, Rbp: s.Regs.Rbp, Rbx: s.Regs.Rbx,
		Rdx: s.Regs.Rdx, Rax: s.Regs.Rax, Rcx: s.Regs.Rcx, Rsp: s.Regs.Rsp,
		Rip: s.Regs.Rip, Eflags: s.Regs.Eflags,
		Cs: uint16(s.Regs.Cs), Fs: uint16(s.Regs.Fs), Gs: uint16(s.Regs.Gs), Ss: uint16(s.Regs.Ss),
	}
}

func (s *State) loadSigContext(c *SignalContext64) {
	s.Regs.R8, s.Regs.R9, s.Regs.R10, s.Regs.R11 = c.R8, c.R9, c.R10, c.R11
	s.Regs.R12, s.Regs.R13, s.Regs.R14, s.Regs.R15 = c.R12, c.R13, c.R14, c.R15
	s.Regs.Rdi, s.Regs.Rsi, s.Regs.Rbp, s.Regs.Rbx = c.Rdi, c.Rsi, c.Rbp, c.Rbx
	s.Regs.Rdx, s.Regs.Rax, s.Regs.Rcx, s.Regs.Rsp = c.Rdx, c.Rax, c.Rcx, c.Rsp
	s.Regs.Rip, s.Regs.Eflags = c.Rip, c.Eflags
	s.Regs.Cs, s.Regs.Fs, s.Regs.Gs, s.Regs.Ss = uint64(c.Cs), uint64(c.Fs), uint64(c.Gs), uint64(c.Ss)
}
