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
	"encoding/binary"

	"libshim.dev/shim/pkg/arch"
	"libshim.dev/shim/pkg/hostarch"
)

// SyscallWindow names one of the two well-known assembly windows a syscall
// stub's instruction pointer may land in when an async upcall interrupts it
// (spec.md §4.7).
type SyscallWindow int

const (
	// WindowNone means the interrupted IP is not inside either window.
	WindowNone SyscallWindow = iota
	// WindowRegisterRestore is the epilogue that pops the guest's saved GP
	// register block back off the syscall stub's private stack.
	WindowRegisterRestore
	// WindowSigpendingCheck is the final "check sigpending" tight loop that
	// immediately precedes a plain `ret` back into application code.
	WindowSigpendingCheck
)

// SavedRegs is the syscall stub's private save area for the guest's general
// purpose registers, consumed exactly once by Boundary.Emulate's
// register-restore window.
type SavedRegs struct {
	R15, R14, R13, R12, R11, R10, R9, R8           uint64
	Rcx, Rdx, Rsi, Rdi, Rbx, Rbp, Rsp, Rip, Eflags uint64
}

// Boundary implements the syscall-boundary emulation helper (spec.md §4.7).
// RegisterRestoreBounds and SigpendingCheckBounds are the two windows'
// [low, high] instruction-pointer ranges, fixed at link time by the
// assembly stub and supplied by the embedder.
type Boundary struct {
	RegisterRestoreBounds [2]uint64
	SigpendingCheckBounds [2]uint64

	// SavedRegs returns the syscall stub's saved register block for the
	// current thread, or nil if none is pending. Emulate calls
	// ClearSavedRegs as soon as it takes the block, before rewriting regs,
	// so later code does not double-consume it (spec.md §4.7 "the saved
	// register pointer is nil'd").
	SavedRegs      func() *SavedRegs
	ClearSavedRegs func()

	// ReadStackWord reads one 8-byte little-endian word from guest memory at
	// addr, used to fake the window (2) `ret`.
	ReadStackWord func(addr hostarch.Addr) (uint64, error)
}

// Classify reports which window, if any, ip falls inside.
func (b *Boundary) Classify(ip uint64) SyscallWindow {
	if ip >= b.RegisterRestoreBounds[0] && ip <= b.RegisterRestoreBounds[1] {
		return WindowRegisterRestore
	}
	if ip >= b.SigpendingCheckBounds[0] && ip <= b.SigpendingCheckBounds[1] {
		return WindowSigpendingCheck
	}
	return WindowNone
}

// Emulate rewrites regs to the equivalent "already returned to app" state if
// regs.IP() lies in one of the two windows, returning true if it did
// anything. Callers invoke this at the top of every async upcall handler,
// before classification and delivery, so that entry A's InGuestCode check
// sees a context that is really back in application code.
func (b *Boundary) Emulate(regs *arch.State) (bool, error) {
	switch b.Classify(uint64(regs.IP())) {
	case WindowRegisterRestore:
		saved := b.SavedRegs()
		if saved == nil {
			return false, nil
		}
		b.ClearSavedRegs()
		regs.Regs.R15, regs.Regs.R14, regs.Regs.R13, regs.Regs.R12 = saved.R15, saved.R14, saved.R13, saved.R12
		regs.Regs.R11, regs.Regs.R10, regs.Regs.R9, regs.Regs.R8 = saved.R11, saved.R10, saved.R9, saved.R8
		regs.Regs.Rcx, regs.Regs.Rdx, regs.Regs.Rsi, regs.Regs.Rdi = saved.Rcx, saved.Rdx, saved.Rsi, saved.Rdi
		regs.Regs.Rbx, regs.Regs.Rbp = saved.Rbx, saved.Rbp
		regs.Regs.Eflags = saved.Eflags
		regs.SetStack(uintptr(saved.Rsp))
		regs.SetIP(uintptr(saved.Rip))
		return true, nil

	case WindowSigpendingCheck:
		sp := hostarch.Addr(regs.Stack())
		ret, err := b.ReadStackWord(sp)
		if err != nil {
			return false, err
		}
		regs.SetIP(uintptr(ret))
		regs.SetStack(uintptr(sp + hostarch.Addr(binary.Size(uint64(0)))))
		return true, nil
	}
	return false, nil
}
