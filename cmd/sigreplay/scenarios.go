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

package main

import (
	"fmt"
	"runtime/debug"
	"unsafe"

	"golang.org/x/sys/unix"

	"libshim.dev/shim/pkg/abi"
	"libshim.dev/shim/pkg/arch"
	"libshim.dev/shim/pkg/hostarch"
	"libshim.dev/shim/pkg/signal"
	"libshim.dev/shim/pkg/vma"
)

// fakeContext is a minimal platform.Context for scenarios that don't drive
// real hardware faults: every scenario here runs on the host Go goroutine,
// so "guest code" is simulated as whatever the scenario itself decides.
type fakeContext struct {
	ip       uintptr
	inGuest  bool
}

func (c *fakeContext) IP() uintptr      { return c.ip }
func (c *fakeContext) InGuestCode() bool { return c.inGuest }

// scenario is one entry in the built-in S1-S7 table (spec.md §8, "End-to-end
// scenarios"). run receives the effective Config (SPEC_FULL.md §9.3, either
// DefaultConfig or one decoded by LoadConfig from -scenario-file) so a
// scenario file can steer ring capacity, host type, and the seccomp-SIGSYS
// opt-in without every scenario body reaching for a global.
type scenario struct {
	name        string
	description string
	run         func(signal.Config) (string, error)
}

var builtinScenarios = []scenario{
	{"S1", "Null dereference: MEMFAULT at address 0, no VMA, default terminate-with-core", scenarioNullDeref},
	{"S2", "Write to a read-only file mapping: SIGSEGV/ACCERR", scenarioWriteROFile},
	{"S3", "Past-EOF of a file mapping: SIGBUS/ADRERR", scenarioPastEOF},
	{"S4", "Ignored then delivered: SIG_IGN drops, then one record queues and resolves to the handler (no frame is built)", scenarioIgnoredThenDelivered},
	{"S5", "Mask then unmask: three queued SIGUSR2, delivered one at a time via successive sysret entries", scenarioMaskThenUnmask},
	{"S6", "Probe catches fault: byte-touch probe redirects a real memory fault", scenarioProbeCatchesFault},
	{"S7", "Seccomp-path SIGSYS emulation: ILLEGAL upcall carries a syscall number instead of an opcode", scenarioSeccompSIGSYS},
}

func findScenario(name string) (scenario, bool) {
	for _, s := range builtinScenarios {
		if s.name == name {
			return s, true
		}
	}
	return scenario{}, false
}

func waitStatus(sig abi.Signal, core bool) int {
	status := int(sig)
	if core {
		status |= 0x80
	}
	return status
}

func scenarioNullDeref(cfg signal.Config) (string, error) {
	ts := signal.NewThreadSignalState(cfg.RingCapacity)
	vmas := vma.NewMap()
	ctx := &fakeContext{inGuest: true}

	v := signal.ClassifyMemFault(ts, ctx, 0, true, vmas)
	if v.Signal != abi.SIGSEGV || v.Code != abi.SEGV_MAPERR {
		return "", fmt.Errorf("got signal=%v code=%d, want SIGSEGV/MAPERR", v.Signal, v.Code)
	}
	act := signal.Resolve(ts, v.Signal)
	status := waitStatus(v.Signal, act.Kind == signal.KindTerminateCore)
	return fmt.Sprintf("MEMFAULT addr=0 write=true -> %v/MAPERR, disposition=%v, exit status=0x%02x", v.Signal, act.Kind, status), nil
}

func scenarioWriteROFile(cfg signal.Config) (string, error) {
	ts := signal.NewThreadSignalState(cfg.RingCapacity)
	vmas := vma.NewMap()
	const a = hostarch.Addr(0x4000_0000)
	vmas.Insert(vma.Area{Start: a, End: a + hostarch.PageSize, Read: true, File: true, EOF: hostarch.PageSize})
	ctx := &fakeContext{inGuest: true}

	v := signal.ClassifyMemFault(ts, ctx, a, true, vmas)
	if v.Signal != abi.SIGSEGV || v.Code != abi.SEGV_ACCERR {
		return "", fmt.Errorf("got signal=%v code=%d, want SIGSEGV/ACCERR", v.Signal, v.Code)
	}
	return fmt.Sprintf("MEMFAULT addr=%#x write=true on read-only file VMA -> %v/ACCERR", a, v.Signal), nil
}

func scenarioPastEOF(cfg signal.Config) (string, error) {
	ts := signal.NewThreadSignalState(cfg.RingCapacity)
	vmas := vma.NewMap()
	const a = hostarch.Addr(0x5000_0000)
	// File size projects 1 page of valid content; the VMA spans 2.
	vmas.Insert(vma.Area{Start: a, End: a + 2*hostarch.PageSize, Read: true, Write: true, File: true, EOF: hostarch.PageSize})
	ctx := &fakeContext{inGuest: true}

	faultAddr := a + hostarch.PageSize + 16
	v := signal.ClassifyMemFault(ts, ctx, faultAddr, false, vmas)
	if v.Signal != abi.SIGBUS || v.Code != abi.BUS_ADRERR {
		return "", fmt.Errorf("got signal=%v code=%d, want SIGBUS/ADRERR", v.Signal, v.Code)
	}
	return fmt.Sprintf("MEMFAULT addr=%#x past file EOF -> %v/ADRERR", faultAddr, v.Signal), nil
}

func scenarioIgnoredThenDelivered(cfg signal.Config) (string, error) {
	ts := signal.NewThreadSignalState(cfg.RingCapacity)

	ts.SetAction(abi.SIGUSR1, arch.SignalAct{Handler: arch.SignalActIgnore})
	signal.Append(ts, abi.SIGUSR1, signal.NewRecord(abi.SIGUSR1, abi.SI_USER), true, nil)
	if ts.HasSignal() != 0 {
		return "", fmt.Errorf("expected queue to stay empty after SIG_IGN append, has_signal=%d", ts.HasSignal())
	}

	const handlerAddr = 0x1000
	ts.SetAction(abi.SIGUSR1, arch.SignalAct{Handler: handlerAddr})
	signal.Append(ts, abi.SIGUSR1, signal.NewRecord(abi.SIGUSR1, abi.SI_USER), true, nil)
	if ts.HasSignal() != 1 {
		return "", fmt.Errorf("expected one queued record after installing a handler, has_signal=%d", ts.HasSignal())
	}

	act := signal.Resolve(ts, abi.SIGUSR1)
	if act.Kind != signal.KindHandler || act.Handler != handlerAddr {
		return "", fmt.Errorf("expected resolved handler %#x, got kind=%v handler=%#x", handlerAddr, act.Kind, act.Handler)
	}
	return fmt.Sprintf("SIGUSR1 discarded under SIG_IGN, then queued once and resolved to handler %#x", act.Handler), nil
}

func scenarioMaskThenUnmask(cfg signal.Config) (string, error) {
	ts := signal.NewThreadSignalState(cfg.RingCapacity)
	ts.SetMask(abi.SignalSet(0).Add(abi.SIGUSR2))

	for i := 0; i < 3; i++ {
		signal.Append(ts, abi.SIGUSR2, signal.NewRecord(abi.SIGUSR2, abi.SI_USER), false, nil)
	}
	if ts.HasSignal() != 3 {
		return "", fmt.Errorf("expected 3 queued SIGUSR2 while masked, has_signal=%d", ts.HasSignal())
	}

	ts.SetMask(abi.SignalSet(0))
	delivered := 0
	mem := signal.GuestMemory{Bytes: make([]byte, 1<<16), Base: 0}
	sched := signal.NewScheduler(ts, mem, func(sig abi.Signal, core bool) {})
	ts.SetAction(abi.SIGUSR2, arch.SignalAct{Handler: 0x2000})

	regs := &arch.State{}
	regs.SetStack(uintptr(mem.Base) + 1<<15)
	for ts.HasSignal() > 0 {
		if sched.OnSysret(regs, 0) {
			delivered++
		} else {
			break
		}
	}
	return fmt.Sprintf("3 SIGUSR2 queued while masked; %d delivered after unmask via successive sysret entries", delivered), nil
}

func scenarioProbeCatchesFault(cfg signal.Config) (string, error) {
	pageSize := hostarch.PageSize
	region, err := unix.Mmap(-1, 0, 2*pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return "", fmt.Errorf("mmap: %w", err)
	}
	defer unix.Munmap(region)

	// Make the second page inaccessible so a touch there really faults.
	if err := unix.Mprotect(region[pageSize:], unix.PROT_NONE); err != nil {
		return "", fmt.Errorf("mprotect: %w", err)
	}

	ts := signal.NewThreadSignalState(cfg.RingCapacity)
	base := hostarch.Addr(uintptr(unsafe.Pointer(&region[0])))

	toucher := func(addr hostarch.Addr, write bool) (err error) {
		off := uintptr(addr) - uintptr(base)
		defer debug.SetPanicOnFault(false)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("fault at %#x: %v", addr, r)
			}
		}()
		debug.SetPanicOnFault(true)
		if write {
			region[off] = region[off]
		} else {
			_ = region[off]
		}
		return nil
	}

	p := signal.NewProber(cfg.Host, vma.NewMap(), toucher)
	faulted := p.ProbeBuffer(ts, base, uintptr(2*pageSize), true)
	if !faulted {
		return "", fmt.Errorf("expected probe_buffer to report a fault spanning the protected second page")
	}
	return fmt.Sprintf("probe_buffer(%#x, %d, write=true) reported fault=%v via real byte-touch recovery", base, 2*pageSize, faulted), nil
}

// scenarioSeccompSIGSYS drives Kernel.HandleIllegal down the seccomp-path
// SIGSYS emulation branch (spec.md §9) rather than the opcode-sniffing
// ClassifyIllegal default, gated on cfg.SeccompSIGSYSEnabled the same way a
// real embedder would opt in per host type.
func scenarioSeccompSIGSYS(cfg signal.Config) (string, error) {
	ts := signal.NewThreadSignalState(cfg.RingCapacity)
	mem := signal.GuestMemory{Bytes: make([]byte, 1<<16), Base: 0}
	sched := signal.NewScheduler(ts, mem, func(sig abi.Signal, core bool) {})
	k := signal.NewKernel(ts, sched, vma.NewMap(), nil)
	k.SyscallWrapperAddr = 0x9000

	if !cfg.SeccompSIGSYSEnabled {
		return "seccomp SIGSYS emulation disabled by config; HandleIllegal falls through to the opcode-based path", nil
	}

	const pendingSyscallNum = 57 // fork, chosen arbitrarily for the demonstration.
	k.SeccompSIGSYSEnabled = true
	k.SeccompSyscallNum = func() (int32, bool) { return pendingSyscallNum, true }

	regs := &arch.State{}
	regs.SetIP(0x4000)
	k.HandleIllegal(&fakeContext{inGuest: true}, regs, [2]byte{})

	if got := regs.IP(); got != uintptr(k.SyscallWrapperAddr) {
		return "", fmt.Errorf("got IP=%#x after seccomp-path ILLEGAL, want the syscall wrapper %#x", got, k.SyscallWrapperAddr)
	}
	if got := regs.Regs.Rax; got != uint64(pendingSyscallNum) {
		return "", fmt.Errorf("got Rax=%d, want the pending syscall number %d restored into it", got, pendingSyscallNum)
	}
	return fmt.Sprintf("seccomp-raised syscall %d emulated via the SIGSYS path, jumped to wrapper %#x", pendingSyscallNum, k.SyscallWrapperAddr), nil
}
