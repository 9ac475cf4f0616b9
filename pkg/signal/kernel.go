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
	"time"

	"libshim.dev/shim/pkg/abi"
	"libshim.dev/shim/pkg/arch"
	"libshim.dev/shim/pkg/hostarch"
	"libshim.dev/shim/pkg/log"
	"libshim.dev/shim/pkg/platform"
	"libshim.dev/shim/pkg/vma"
)

// Kernel wires the six PAL upcall event kinds (spec.md §6) through
// syscall-boundary emulation, classification, per-thread enqueue, and the
// delivery scheduler's entry A, playing the role of the original source's
// per-event upcall handlers (arithmetic_error_upcall, memfault_upcall,
// illegal_upcall, quit_upcall, suspend_upcall, resume_upcall) and gVisor's
// kernel/signal.go sendExternalSignal/sendSignalLocked dispatch.
type Kernel struct {
	ts        *ThreadSignalState
	Scheduler *Scheduler
	VMAs      *vma.Map
	Boundary  *Boundary

	// SyscallWrapperAddr is the direct-host syscall emulation trampoline
	// (spec.md §4.2 ILLEGAL row); the core jumps here instead of signaling
	// when the faulting instruction is the host's raw syscall opcode.
	SyscallWrapperAddr uint64

	// SeccompSIGSYSEnabled opts into the seccomp-path SIGSYS emulation
	// (spec.md §9), off by default per the source's own "present but
	// disabled" note. When true and SeccompSyscallNum reports a pending
	// syscall number, HandleIllegal treats the upcall as seccomp-raised
	// rather than checking the faulting bytes for the syscall opcode.
	SeccompSIGSYSEnabled bool
	SeccompSyscallNum    func() (int32, bool)

	// PreemptDepth reports the calling thread's current preemption-disable
	// depth, consulted by entry A (spec.md §4.6).
	PreemptDepth func() int

	// IsInternalThread reports whether the current thread is a library-OS
	// worker rather than an application thread; QUIT/SUSPEND are not
	// translated to signals for such threads.
	IsInternalThread func() bool

	// Internal reports a fatal internal fault (spec.md §7): hardware
	// exception in library-OS/PAL text, or on an internal VMA. It does not
	// return; supplying the actual pause/abort behavior is the embedder's
	// concern (spec.md §1's out-of-scope process-exit path).
	Internal FatalReporter

	Log log.Logger
}

// FatalReporter reports a fatal internal fault (spec.md §7, "Internal
// fault"): logged with the fault site, then the calling goroutine parks.
// SPEC_FULL.md §9.2 names this out as the boundary between this core and
// the embedder's process-exit path, following the teacher's own preference
// for an explicit reporting function over a bare panic.
type FatalReporter func(event string, arg uint64, ctx platform.Context)

// ParkingFatalReporter returns a FatalReporter that logs through logger and
// then blocks the calling goroutine forever, matching spec.md §7's "pauses"
// without tearing down the whole process -- tests can observe the condition
// by running the call on its own goroutine and checking it never returns.
func ParkingFatalReporter(logger log.Logger) FatalReporter {
	return func(event string, arg uint64, ctx platform.Context) {
		ip := uintptr(0)
		if ctx != nil {
			ip = ctx.IP()
		}
		logger.Warningf("signal: internal fault: event=%s arg=%#x ip=%#x", event, arg, ip)
		select {}
	}
}

// NewKernel returns a Kernel dispatching upcalls against ts.
func NewKernel(ts *ThreadSignalState, sched *Scheduler, vmas *vma.Map, boundary *Boundary) *Kernel {
	k := &Kernel{
		ts:           ts,
		Scheduler:    sched,
		VMAs:         vmas,
		Boundary:     boundary,
		PreemptDepth: func() int { return 0 },
		// Queue-overflow and discarded-signal messages (spec.md §7) are
		// logged through a rate limiter so a faulting loop cannot flood
		// output (SPEC_FULL.md §9.1).
		Log: log.RateLimited(log.Log(), 100*time.Millisecond),
	}
	k.Internal = ParkingFatalReporter(log.Log())
	return k
}

func (k *Kernel) emulateBoundary(regs *arch.State) {
	if k.Boundary == nil {
		return
	}
	if _, err := k.Boundary.Emulate(regs); err != nil {
		k.Log.Warningf("signal: syscall-boundary emulation failed: %v", err)
	}
}

// enqueueVerdict turns a non-redirect, non-internal classifier Verdict into
// a queued Record, logging (not failing) on ring overflow per spec.md §7's
// "Queue overflow" error kind.
func (k *Kernel) enqueueVerdict(v Verdict, faultAddr uint64) {
	rec := NewRecord(v.Signal, v.Code)
	switch v.Signal {
	case abi.SIGSEGV, abi.SIGBUS:
		rec.Info.SetAddr(faultAddr)
	}
	if !k.ts.enqueue(v.Signal, rec) {
		k.Log.Warningf("signal: ring for %s full, dropping", v.Signal)
	}
}

// deliver applies a classifier Verdict: an internal fault is fatal, a
// redirect is a no-op (the probe's Toucher already handled it), and an
// emulate-syscall verdict is only valid for ClassifyIllegal (callers handle
// it before calling deliver). Anything else is enqueued and entry A is run.
func (k *Kernel) deliver(v Verdict, eventName string, faultAddr uint64, ctx platform.Context, regs *arch.State) {
	if v.Internal {
		k.Internal(eventName, faultAddr, ctx)
		return
	}
	if v.Redirect {
		return
	}
	k.enqueueVerdict(v, faultAddr)
	k.Scheduler.OnUpcallTail(ctx, regs, k.PreemptDepth())
}

// HandleArith implements the ARITH upcall (spec.md §4.2).
func (k *Kernel) HandleArith(ctx platform.Context, regs *arch.State) {
	k.emulateBoundary(regs)
	k.deliver(ClassifyArith(ctx), "arithmetic-error", 0, ctx, regs)
}

// HandleMemFault implements the MEMFAULT upcall (spec.md §4.2).
func (k *Kernel) HandleMemFault(ctx platform.Context, regs *arch.State, addr hostarch.Addr, write bool) {
	k.emulateBoundary(regs)
	v := ClassifyMemFault(k.ts, ctx, addr, write, k.VMAs)
	k.deliver(v, "mem-fault", uint64(addr), ctx, regs)
}

// HandleIllegal implements the ILLEGAL upcall (spec.md §4.2, §4.7).
func (k *Kernel) HandleIllegal(ctx platform.Context, regs *arch.State, faultingBytes [2]byte) {
	k.emulateBoundary(regs)

	if k.SeccompSIGSYSEnabled && k.SeccompSyscallNum != nil {
		if num, ok := k.SeccompSyscallNum(); ok {
			v := ClassifySeccompSyscall(ctx, num)
			if v.EmulateSyscall {
				rip := uint64(regs.IP())
				regs.Regs.Rax = uint64(num)
				regs.Regs.Rcx = rip
				regs.Regs.R11 = regs.Regs.Eflags
				regs.SetIP(uintptr(k.SyscallWrapperAddr))
				return
			}
			k.deliver(v, "illegal-instruction", uint64(regs.IP()), ctx, regs)
			return
		}
	}

	v := ClassifyIllegal(ctx, faultingBytes)
	if v.EmulateSyscall {
		rip := uint64(regs.IP())
		regs.Regs.Rcx = rip + 2
		regs.Regs.R11 = regs.Regs.Eflags
		regs.SetIP(uintptr(k.SyscallWrapperAddr))
		return
	}
	k.deliver(v, "illegal-instruction", uint64(regs.IP()), ctx, regs)
}

// HandleQuit implements the QUIT upcall: host-delivered termination request
// becomes SIGTERM from pid 0 (spec.md §4.2), unless the current thread is a
// library-OS worker.
func (k *Kernel) HandleQuit(ctx platform.Context, regs *arch.State) {
	k.emulateBoundary(regs)
	if k.IsInternalThread != nil && k.IsInternalThread() {
		return
	}
	k.appendFromPID0(abi.SIGTERM)
	k.Scheduler.OnUpcallTail(ctx, regs, k.PreemptDepth())
}

// HandleSuspend implements the SUSPEND upcall: host-delivered suspend
// request becomes SIGINT from pid 0 (spec.md §4.2).
func (k *Kernel) HandleSuspend(ctx platform.Context, regs *arch.State) {
	k.emulateBoundary(regs)
	if k.IsInternalThread != nil && k.IsInternalThread() {
		return
	}
	k.appendFromPID0(abi.SIGINT)
	k.Scheduler.OnUpcallTail(ctx, regs, k.PreemptDepth())
}

// HandleResume implements the RESUME upcall: no signal of its own, but an
// opportunity to run the dispatch loop in case a signal became deliverable
// while the thread was suspended (spec.md §4.2 "RESUME -> no signal; wake
// dispatch loop").
func (k *Kernel) HandleResume(ctx platform.Context, regs *arch.State) {
	k.emulateBoundary(regs)
	if k.IsInternalThread != nil && k.IsInternalThread() {
		return
	}
	k.Scheduler.OnUpcallTail(ctx, regs, k.PreemptDepth())
}

func (k *Kernel) appendFromPID0(sig abi.Signal) {
	rec := NewRecord(sig, abi.SI_USER)
	rec.Info.SetPID(0)
	if !k.ts.enqueue(sig, rec) {
		k.Log.Warningf("signal: ring for %s full, dropping", sig)
	}
}
