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
	"sync"
	"sync/atomic"

	"libshim.dev/shim/pkg/abi"
	"libshim.dev/shim/pkg/arch"
)

// ThreadSignalState is the per-thread signal bookkeeping named in spec.md
// §3: one ring per signal number, the pending count, the signal mask, the
// disposition table, the alternate stack, the may-deliver bit, and the
// probe's test_range.
type ThreadSignalState struct {
	rings [abi.NumSignals + 1]*ring

	hasSignal atomic.Int64

	maskMu sync.RWMutex
	mask   abi.SignalSet

	dispMu sync.Mutex
	disp   [abi.NumSignals + 1]arch.SignalAct

	altstackMu sync.RWMutex
	altstack   arch.SignalStack

	// mayDeliver is consulted by the syscall epilogue (spec.md §4.6, entry
	// B) to decide whether it's worth running the scheduler core at all.
	mayDeliver atomic.Bool

	probe *testRange
}

// NewThreadSignalState allocates per-thread state with ringCapacity slots
// per signal (spec.md §9.3's config knob; DefaultRingCapacity if zero).
func NewThreadSignalState(ringCapacity int) *ThreadSignalState {
	if ringCapacity <= 0 {
		ringCapacity = DefaultRingCapacity
	}
	ts := &ThreadSignalState{probe: newTestRange()}
	for i := range ts.rings {
		if i == 0 {
			continue // signal numbers start at 1.
		}
		ts.rings[i] = newRing(ringCapacity)
	}
	ts.altstack.Flags = arch.SignalStackFlagDisable
	return ts
}

// HasSignal reports the current pending-count (spec.md §3 invariant: equals
// the sum of non-empty slots across all rings on quiescent state).
func (ts *ThreadSignalState) HasSignal() int64 { return ts.hasSignal.Load() }

// Mask returns the thread's current signal mask.
func (ts *ThreadSignalState) Mask() abi.SignalSet {
	ts.maskMu.RLock()
	defer ts.maskMu.RUnlock()
	return ts.mask
}

// SetMask installs a new signal mask, unconditionally excluding SIGKILL and
// SIGSTOP (spec.md §3 invariant: "SIGKILL and SIGSTOP cannot be masked").
func (ts *ThreadSignalState) SetMask(mask abi.SignalSet) {
	ts.maskMu.Lock()
	defer ts.maskMu.Unlock()
	ts.mask = mask.Remove(abi.SIGKILL).Remove(abi.SIGSTOP)
}

// IsMasked reports whether sig is currently blocked.
func (ts *ThreadSignalState) IsMasked(sig abi.Signal) bool {
	return ts.Mask().Contains(sig)
}

// SetAction installs the disposition for sig, matching sigaction(2)'s
// refusal to retarget SIGKILL/SIGSTOP.
func (ts *ThreadSignalState) SetAction(sig abi.Signal, act arch.SignalAct) {
	if sig == abi.SIGKILL || sig == abi.SIGSTOP {
		return
	}
	ts.dispMu.Lock()
	defer ts.dispMu.Unlock()
	ts.disp[sig.Index()] = act
}

// Action returns the raw (unresolved) disposition table entry for sig.
func (ts *ThreadSignalState) Action(sig abi.Signal) arch.SignalAct {
	ts.dispMu.Lock()
	defer ts.dispMu.Unlock()
	return ts.disp[sig.Index()]
}

// SetAltStack installs the thread's alternate signal stack descriptor.
func (ts *ThreadSignalState) SetAltStack(s arch.SignalStack) {
	ts.altstackMu.Lock()
	defer ts.altstackMu.Unlock()
	ts.altstack = s
}

// AltStack returns the thread's alternate signal stack descriptor.
func (ts *ThreadSignalState) AltStack() arch.SignalStack {
	ts.altstackMu.RLock()
	defer ts.altstackMu.RUnlock()
	return ts.altstack
}

// MayDeliver reports the may-deliver bit consulted by the syscall epilogue
// (spec.md §4.6, entry B; §5 ordering guarantee (iii)).
func (ts *ThreadSignalState) MayDeliver() bool { return ts.mayDeliver.Load() }

func (ts *ThreadSignalState) setMayDeliver(v bool) { ts.mayDeliver.Store(v) }

// enqueue publishes rec on sig's ring, returning false if the ring was
// full (spec.md §4.1's loss policy: caller frees rec and logs).
func (ts *ThreadSignalState) enqueue(sig abi.Signal, rec *Record) bool {
	if !ts.rings[sig.Index()+1].enqueue(rec) {
		return false
	}
	ts.hasSignal.Add(1)
	ts.setMayDeliver(true)
	return true
}

// fetch dequeues the oldest pending record for sig, if any.
func (ts *ThreadSignalState) fetch(sig abi.Signal) *Record {
	rec := ts.rings[sig.Index()+1].dequeue()
	if rec != nil {
		ts.hasSignal.Add(-1)
	}
	return rec
}

// drainSignal discards every queued record for sig, adjusting hasSignal.
func (ts *ThreadSignalState) drainSignal(sig abi.Signal) {
	n := ts.rings[sig.Index()+1].drain()
	if n > 0 {
		ts.hasSignal.Add(-int64(n))
	}
}

// PeekPending reports whether sig currently has a queued record without
// dequeuing it. This is the hook SPEC_FULL.md §12 asks for: a future
// implementation of the delivered ucontext's saved sigmask (spec.md §9 open
// question) needs to capture the mask atomically with the decision to
// deliver, which requires knowing a signal is about to be delivered before
// actually fetching it.
func (ts *ThreadSignalState) PeekPending(sig abi.Signal) bool {
	return ts.rings[sig.Index()+1].peek() != nil
}
