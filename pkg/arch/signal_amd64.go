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

import (
	"encoding/binary"
	"errors"

	"libshim.dev/shim/pkg/abi"
	"libshim.dev/shim/pkg/hostarch"
)

// SignalContext64 is equivalent to struct sigcontext on x86-64
// (arch/x86/include/uapi/asm/sigcontext.h), the register snapshot embedded
// in the ucontext handed to a SA_SIGINFO handler.
type SignalContext64 struct {
	R8      uint64
	R9      uint64
	R10     uint64
	R11     uint64
	R12     uint64
	R13     uint64
	R14     uint64
	R15     uint64
	Rdi     uint64
	Rsi     uint64
	Rbp     uint64
	Rbx     uint64
	Rdx     uint64
	Rax     uint64
	Rcx     uint64
	Rsp     uint64
	Rip     uint64
	Eflags  uint64
	Cs      uint16
	Gs      uint16
	Fs      uint16
	Ss      uint16
	Err     uint64
	Trapno  uint64
	Oldmask uint64
	Cr2     uint64
	// Fpstate is the guest address of the FPU state area (spec.md §4.5,
	// "context rewrite" step); it points into the same frame, below this
	// ucontext.
	Fpstate  uint64
	Reserved [8]uint64
}

// UContext64 is equivalent to struct ucontext on x86-64
// (arch/x86/include/uapi/asm/ucontext.h).
type UContext64 struct {
	Flags    uint64
	Link     uint64
	Stack    SignalStack
	MContext SignalContext64
	Sigset   abi.SignalSet
}

// ErrOnStackOverflow is returned by SignalSetup when the frame would not fit
// within a fixed alternate signal stack (spec.md §4.5, "if the frame does
// not fit ... force default disposition instead").
var ErrOnStackOverflow = errors.New("arch: signal frame exceeds alternate stack bounds")

// RedZoneSize is the x86-64 System V ABI red zone: 128 bytes below rsp that
// leaf functions may use without adjusting rsp, which the frame builder must
// skip over when *not* switching to the alternate stack (spec.md §4.5,
// "stack selection").
const RedZoneSize = 128

// SignalSetup builds an on-stack signal frame for delivering sig via act,
// following spec.md §4.5. regs is the interrupted thread's register file,
// mutated in place to point at the handler entry; st addresses the memory
// backing the frame (either the current stack minus the red zone, or the
// thread's alternate stack, chosen by the caller per spec.md §4.5's stack
// selection rule). fpState is the raw FPU/XSAVE area copied from the
// interrupted context; its size determines how much room the frame reserves
// for it.
//
// On return, regs.Rsp/Rip/Rdi/Rsi/Rdx are set for handler entry: Rdi=signo,
// Rsi=address of the pushed siginfo, Rdx=address of the pushed ucontext
// (ignored by the handler if it wasn't installed with SA_SIGINFO, matching
// glibc's calling convention either way).
func SignalSetup(st *Stack, regs *SignalContext64, act *SignalAct, info *SignalInfo, alt *SignalStack, mask abi.SignalSet, fpState FPState, restorerAddr uint64) error {
	extSize := ExtendedStateSize(fpState)

	uc := &UContext64{
		Stack:  *alt,
		Sigset: mask,
		MContext: SignalContext64{
			R8: regs.R8, R9: regs.R9, R10: regs.R10, R11: regs.R11,
			R12: regs.R12, R13: regs.R13, R14: regs.R14, R15: regs.R15,
			Rdi: regs.Rdi, Rsi: regs.Rsi, Rbp: regs.Rbp, Rbx: regs.Rbx,
			Rdx: regs.Rdx, Rax: regs.Rax, Rcx: regs.Rcx, Rsp: regs.Rsp,
			Rip: regs.Rip, Eflags: regs.Eflags,
			Cs: regs.Cs, Gs: regs.Gs, Fs: regs.Fs, Ss: regs.Ss,
			Cr2: info.Addr(),
		},
	}

	ucSize := binary.Size(uc)
	if ucSize < 0 {
		panic("arch: can't compute size of UContext64")
	}
	infoSize := binary.Size(info)
	if infoSize < 0 {
		panic("arch: can't compute size of SignalInfo")
	}

	// Layout, lowest to highest address: restorer trampoline address,
	// ucontext, siginfo, FPU area (spec.md §4.5). The restorer address sits
	// at the very bottom, where rsp points on handler entry, so that when the
	// handler executes a bare `ret`, control lands in the restorer trampoline,
	// which issues sigreturn(2)/rt_sigreturn(2) -- the original source's
	// deliver_signal_on_sysret sets up exactly this chain.
	frameSize := hostarch.Addr(extSize + infoSize + ucSize + Width)
	// Align the bottom of the frame so that, once the frame is laid down,
	// rsp satisfies the x86-64 ABI's "(rsp+8) % 16 == 0 at function entry"
	// rule for the handler call.
	frameBottom := ((st.Bottom - frameSize) &^ 15) - 8

	if act.IsOnStack() && alt.IsEnabled() && !alt.Contains(uint64(frameBottom)) {
		return ErrOnStackOverflow
	}

	st.Bottom = frameBottom + frameSize

	fpAddr := st.Bottom - hostarch.Addr(extSize)
	info.FixSignalCodeForUser()
	uc.MContext.Fpstate = uint64(fpAddr)

	st.Bottom -= hostarch.Addr(extSize)
	if extSize > 0 {
		off := st.offset(st.Bottom)
		if off < 0 || off+extSize > len(st.Memory) {
			return ErrStackOverflow
		}
		copy(st.Memory[off:off+extSize], fpState)
	}

	infoAddr, err := st.Push(info)
	if err != nil {
		return err
	}
	ucAddr, err := st.Push(uc)
	if err != nil {
		return err
	}
	if _, err := st.PushUint64(restorerAddr); err != nil {
		return err
	}

	regs.Rsp = uint64(st.Bottom)
	regs.Rip = act.Handler
	regs.Rdi = uint64(info.Signo)
	regs.Rsi = uint64(infoAddr)
	regs.Rdx = uint64(ucAddr)

	return nil
}

// SignalRestore reads back a ucontext previously written by SignalSetup and
// restores regs from it, implementing the sigreturn half of spec.md §4.6's
// third entry point. addr is the guest address of the ucontext (typically
// the value the application passed as the sigreturn syscall's implicit
// stack-relative argument).
func SignalRestore(st *Stack, addr hostarch.Addr, regs *SignalContext64) (abi.SignalSet, SignalStack, error) {
	off := st.offset(addr)
	var uc UContext64
	size := binary.Size(uc)
	if size < 0 || off < 0 || off+size > len(st.Memory) {
		return 0, SignalStack{}, errors.New("arch: ucontext address out of range")
	}
	if err := readLE(st.Memory[off:off+size], &uc); err != nil {
		return 0, SignalStack{}, err
	}
	m := uc.MContext
	*regs = m
	return uc.Sigset, uc.Stack, nil
}

// SetupSignalFrame builds an on-stack signal frame for s and rewrites s's
// registers to enter act.Handler, the State-level entry point the frame
// builder in pkg/signal drives (spec.md §4.5).
func (s *State) SetupSignalFrame(st *Stack, act *SignalAct, info *SignalInfo, alt *SignalStack, mask abi.SignalSet, restorerAddr uint64) error {
	c := s.sigContext()
	if err := SignalSetup(st, &c, act, info, alt, mask, s.FPState, restorerAddr); err != nil {
		return err
	}
	s.loadSigContext(&c)
	return nil
}

// RestoreSignalFrame reads back the ucontext at addr and restores s's
// registers from it, the State-level entry point for spec.md §4.6's
// sigreturn scheduling path.
func (s *State) RestoreSignalFrame(st *Stack, addr hostarch.Addr) (abi.SignalSet, SignalStack, error) {
	c := s.sigContext()
	mask, stack, err := SignalRestore(st, addr, &c)
	if err != nil {
		return 0, SignalStack{}, err
	}
	s.loadSigContext(&c)
	return mask, stack, nil
}

func readLE(b []byte, v interface{}) error {
	return binary.Read(byteReader{b}, binary.LittleEndian, v)
}

// byteReader adapts a byte slice to io.Reader without importing bytes just
// for this one call site.
type byteReader struct{ b []byte }

func (r byteReader) Read(p []byte) (int, error) {
	n := copy(p, r.b)
	r.b = r.b[n:]
	if n == 0 && len(p) > 0 {
		return 0, errors.New("arch: short read")
	}
	return n, nil
}
