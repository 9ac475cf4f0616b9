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
	"testing"

	"libshim.dev/shim/pkg/abi"
	"libshim.dev/shim/pkg/arch"
	"libshim.dev/shim/pkg/hostarch"
)

func newTestScheduler(t *testing.T) (*Scheduler, *ThreadSignalState, *arch.State, func() []abi.Signal) {
	t.Helper()
	ts := NewThreadSignalState(0)
	mem := GuestMemory{Bytes: make([]byte, 1<<16), Base: 0}
	var terminated []abi.Signal
	sched := NewScheduler(ts, mem, func(sig abi.Signal, core bool) {
		terminated = append(terminated, sig)
	})
	regs := &arch.State{}
	regs.SetStack(1 << 15)
	return sched, ts, regs, func() []abi.Signal { return terminated }
}

func TestOnSysretDeliversHandler(t *testing.T) {
	sched, ts, regs, _ := newTestScheduler(t)
	ts.SetAction(abi.SIGUSR1, arch.SignalAct{Handler: 0x4000})
	Append(ts, abi.SIGUSR1, NewRecord(abi.SIGUSR1, abi.SI_USER), false, nil)

	if !sched.OnSysret(regs, 7) {
		t.Fatalf("OnSysret returned false, want true (a signal was pending)")
	}
	if got := regs.IP(); got != 0x4000 {
		t.Errorf("regs.IP() = %#x after delivery, want handler address 0x4000", got)
	}
	if ts.HasSignal() != 0 {
		t.Errorf("HasSignal() = %d after delivery, want 0", ts.HasSignal())
	}
}

func TestOnSysretTerminatesOnDefaultDisposition(t *testing.T) {
	sched, ts, regs, terminated := newTestScheduler(t)
	Append(ts, abi.SIGTERM, NewRecord(abi.SIGTERM, abi.SI_USER), false, nil)

	if !sched.OnSysret(regs, 0) {
		t.Fatalf("OnSysret returned false, want true")
	}
	if got := terminated(); len(got) != 1 || got[0] != abi.SIGTERM {
		t.Errorf("terminated = %v, want [SIGTERM]", got)
	}
}

func TestOnSysretNoOpWhenNothingPending(t *testing.T) {
	sched, _, regs, terminated := newTestScheduler(t)
	if sched.OnSysret(regs, 42) {
		t.Errorf("OnSysret returned true with nothing pending")
	}
	if got := uintptr(42); regs.Return() != got {
		t.Errorf("regs.Return() = %#x, want %#x (syscall return value still installed)", regs.Return(), got)
	}
	if len(terminated()) != 0 {
		t.Errorf("terminated unexpectedly called: %v", terminated())
	}
}

func TestOnSysretSkipsMaskedSignal(t *testing.T) {
	sched, ts, regs, terminated := newTestScheduler(t)
	ts.SetMask(abi.MakeSignalSet(abi.SIGTERM))
	Append(ts, abi.SIGTERM, NewRecord(abi.SIGTERM, abi.SI_USER), false, nil)

	if sched.OnSysret(regs, 0) {
		t.Errorf("OnSysret delivered a masked signal")
	}
	if len(terminated()) != 0 {
		t.Errorf("terminated unexpectedly called for a masked signal: %v", terminated())
	}
	if !ts.MayDeliver() {
		t.Errorf("MayDeliver() = false, want true (a masked-but-pending signal remains for later unmasking)")
	}
}

func TestOnUpcallTailDefersWhenPreemptedDeeply(t *testing.T) {
	sched, ts, regs, terminated := newTestScheduler(t)
	Append(ts, abi.SIGTERM, NewRecord(abi.SIGTERM, abi.SI_USER), false, nil)

	sched.OnUpcallTail(stubContext{inGuest: true}, regs, 2)

	if len(terminated()) != 0 {
		t.Errorf("core ran despite preemptDepth > 1: terminated=%v", terminated())
	}
	if ts.HasSignal() != 1 {
		t.Errorf("HasSignal() = %d, want 1 (signal must remain queued for entry B)", ts.HasSignal())
	}
}

func TestOnUpcallTailSetsMayDeliverOutsideGuestCode(t *testing.T) {
	sched, ts, regs, terminated := newTestScheduler(t)
	Append(ts, abi.SIGTERM, NewRecord(abi.SIGTERM, abi.SI_USER), false, nil)

	sched.OnUpcallTail(stubContext{inGuest: false}, regs, 0)

	if len(terminated()) != 0 {
		t.Errorf("core ran while interrupted context was not in guest code")
	}
	if !ts.MayDeliver() {
		t.Errorf("MayDeliver() = false, want true")
	}
}

func TestOnUpcallTailRunsCoreInGuestCode(t *testing.T) {
	sched, _, regs, terminated := newTestScheduler(t)
	Append(sched.ts, abi.SIGTERM, NewRecord(abi.SIGTERM, abi.SI_USER), false, nil)

	sched.OnUpcallTail(stubContext{inGuest: true}, regs, 0)

	if got := terminated(); len(got) != 1 || got[0] != abi.SIGTERM {
		t.Errorf("terminated = %v, want [SIGTERM]", got)
	}
}

func TestOnSigreturnChainsPendingSignal(t *testing.T) {
	sched, ts, regs, _ := newTestScheduler(t)
	ts.SetAction(abi.SIGUSR1, arch.SignalAct{Handler: 0x4000, Restorer: 0x5000})
	ts.SetAction(abi.SIGUSR2, arch.SignalAct{Handler: 0x6000, Restorer: 0x5000})
	Append(ts, abi.SIGUSR1, NewRecord(abi.SIGUSR1, abi.SI_USER), false, nil)
	Append(ts, abi.SIGUSR2, NewRecord(abi.SIGUSR2, abi.SI_USER), false, nil)

	if !sched.OnSysret(regs, 0) {
		t.Fatalf("first OnSysret did not deliver")
	}
	if got := regs.IP(); got != 0x4000 {
		t.Fatalf("first delivery went to %#x, want SIGUSR1's handler 0x4000", got)
	}
	ucAddr := regs.Regs.Rdx // third handler arg is the ucontext address.

	if delivered := sched.OnSigreturn(regs, hostarch.Addr(ucAddr)); !delivered {
		t.Fatalf("OnSigreturn did not chain the second pending signal")
	}
	if got := regs.IP(); got != 0x6000 {
		t.Errorf("chained delivery went to %#x, want SIGUSR2's handler 0x6000", got)
	}
	if got := abi.Signal(regs.Regs.Rdi); got != abi.SIGUSR2 {
		t.Errorf("chained handler's first argument = %v, want SIGUSR2", got)
	}
	if ts.HasSignal() != 0 {
		t.Errorf("HasSignal() = %d after chaining both signals, want 0", ts.HasSignal())
	}
}

func TestOnSigreturnReturnsFalseWhenNothingPending(t *testing.T) {
	sched, _, regs, _ := newTestScheduler(t)
	if sched.OnSigreturn(regs, 0x8000) {
		t.Errorf("OnSigreturn chained a signal when nothing was pending")
	}
}
