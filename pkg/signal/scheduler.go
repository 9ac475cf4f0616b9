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

	"libshim.dev/shim/pkg/abi"
	"libshim.dev/shim/pkg/arch"
	"libshim.dev/shim/pkg/hostarch"
	"libshim.dev/shim/pkg/log"
	"libshim.dev/shim/pkg/platform"
)

// Scheduler implements the delivery scheduler (spec.md §4.6): one core
// picks the lowest-numbered unmasked pending signal and either terminates
// the thread or builds a handler frame, invoked from three entry points
// that share it, in the spirit of gVisor's taskRunState machine
// (kernel/task_run.go) reifying one core loop across several call sites.
type Scheduler struct {
	ts  *ThreadSignalState
	Mem GuestMemory

	// Terminate invokes the internal terminate/terminate-with-core sentinel
	// (spec.md §4.4's "internal function pointers, not user addresses").
	// It is expected not to return; the process-exit path itself is an
	// external collaborator (spec.md §1) supplied by the embedder.
	Terminate func(sig abi.Signal, core bool)

	Log log.Logger
}

// NewScheduler returns a Scheduler for ts.
func NewScheduler(ts *ThreadSignalState, mem GuestMemory, terminate func(sig abi.Signal, core bool)) *Scheduler {
	return &Scheduler{ts: ts, Mem: mem, Terminate: terminate, Log: log.Log()}
}

// next implements the core's picking loop: while has_signal > 0, scan for
// the lowest-numbered unmasked signal with a pending record, resolving and
// draining ignored-while-masked runs as it goes (spec.md §4.6 "Core").
func (s *Scheduler) next() (*Record, abi.Signal, Action, bool) {
	for s.ts.HasSignal() > 0 {
		picked := false
		for sig := abi.FirstSignal; sig <= abi.LastSignal; sig++ {
			if s.ts.IsMasked(sig) {
				continue
			}
			rec := s.ts.fetch(sig)
			if rec == nil {
				continue
			}
			act := Resolve(s.ts, sig)
			if act.Kind == KindIgnore {
				s.ts.drainSignal(sig)
				picked = true
				break // restart the scan from the lowest signal number.
			}
			return rec, sig, act, true
		}
		if !picked {
			return nil, 0, Action{}, false
		}
	}
	return nil, 0, Action{}, false
}

// core runs one iteration of the scheduler core against regs, returning
// true if a signal was picked (delivered via frame, or terminated).
func (s *Scheduler) core(regs *arch.State) bool {
	rec, sig, act, ok := s.next()
	if !ok {
		return false
	}
	switch act.Kind {
	case KindTerminate:
		s.Terminate(sig, false)
	case KindTerminateCore:
		s.Terminate(sig, true)
	case KindHandler:
		if err := BuildFrame(s.ts, regs, rec, act, s.Mem); err != nil {
			s.Log.Warningf("signal: frame for %s does not fit target stack (%v); forcing default disposition", sig, err)
			s.Terminate(sig, DefaultKind(sig) == KindTerminateCore)
		}
	}
	return true
}

// OnUpcallTail implements scheduler entry point A (spec.md §4.6): called
// from the tail of a PAL upcall after enqueueing. Only proceeds if
// preemption is shallow enough and the interrupted context is in guest
// code; otherwise it defers to entry B by leaving the may-deliver bit set.
func (s *Scheduler) OnUpcallTail(ctx platform.Context, regs *arch.State, preemptDepth int) {
	if preemptDepth > 1 {
		return
	}
	if !ctx.InGuestCode() {
		s.ts.setMayDeliver(true)
		return
	}
	s.core(regs)
}

// OnSysret implements scheduler entry point B (spec.md §4.6): clears the
// may-deliver bit, places the syscall's return value into the register the
// handler will see via its ucontext, runs the scheduler core, and re-sets
// may-deliver if signals remain pending.
func (s *Scheduler) OnSysret(regs *arch.State, syscallRet uintptr) bool {
	s.ts.setMayDeliver(false)
	regs.SetReturn(syscallRet)
	delivered := s.core(regs)
	if s.ts.HasSignal() > 0 {
		s.ts.setMayDeliver(true)
	}
	return delivered
}

// OnSigreturn implements scheduler entry point C (spec.md §4.6): given the
// ucontext address just unwound by sigreturn, attempts to chain one more
// pending signal into the same sigframe storage without returning to the
// application. Per spec.md, only the restorer slot, handler entry point,
// and argument registers are rewritten -- the ucontext and siginfo
// contents are left as the prior signal wrote them, mirroring the original
// source's handle_next_signal exactly (including its stale-siginfo
// artifact: the new handler receives the correct signal number via its
// first argument register, but a second/third handler dereferencing its
// siginfo argument would see the previous signal's payload).
func (s *Scheduler) OnSigreturn(regs *arch.State, ucAddr hostarch.Addr) bool {
	_, sig, act, ok := s.next()
	if !ok {
		return false
	}
	if act.Kind == KindTerminate || act.Kind == KindTerminateCore {
		s.Terminate(sig, act.Kind == KindTerminateCore)
		return true
	}

	ucSize := hostarch.Addr(binary.Size(arch.UContext64{}))
	infoAddr := ucAddr + ucSize
	restorerAddr := ucAddr - arch.Width

	if err := s.Mem.putUint64(restorerAddr, act.Restorer); err != nil {
		s.Log.Warningf("signal: sigreturn chain for %s could not rewrite restorer slot (%v); forcing default disposition", sig, err)
		s.Terminate(sig, DefaultKind(sig) == KindTerminateCore)
		return true
	}

	regs.SetStack(uintptr(restorerAddr))
	regs.SetIP(uintptr(act.Handler))
	regs.Regs.Rdi = uint64(sig)
	regs.Regs.Rsi = uint64(infoAddr)
	regs.Regs.Rdx = uint64(ucAddr)
	return true
}

func (m GuestMemory) putUint64(addr hostarch.Addr, v uint64) error {
	off := int(addr - m.Base)
	if off < 0 || off+8 > len(m.Bytes) {
		return arch.ErrStackOverflow
	}
	binary.LittleEndian.PutUint64(m.Bytes[off:off+8], v)
	return nil
}
