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
)

type countingWaker struct{ n int }

func (w *countingWaker) Wake() { w.n++ }

func TestAppendDiscardsIgnoredUnmasked(t *testing.T) {
	ts := NewThreadSignalState(0)
	ts.SetAction(abi.SIGTERM, arch.SignalAct{Handler: arch.SignalActIgnore})

	w := &countingWaker{}
	Append(ts, abi.SIGTERM, NewRecord(abi.SIGTERM, abi.SI_USER), true, w)

	if ts.HasSignal() != 0 {
		t.Errorf("HasSignal() = %d, want 0 (ignored-and-unmasked signals are discarded)", ts.HasSignal())
	}
	if w.n != 0 {
		t.Errorf("Wake called %d times, want 0", w.n)
	}
}

func TestAppendNeverDiscardsSIGCHLD(t *testing.T) {
	ts := NewThreadSignalState(0)
	ts.SetAction(abi.SIGCHLD, arch.SignalAct{Handler: arch.SignalActIgnore})

	Append(ts, abi.SIGCHLD, NewRecord(abi.SIGCHLD, abi.SI_USER), false, nil)

	if ts.HasSignal() != 1 {
		t.Errorf("HasSignal() = %d, want 1 (SIGCHLD is queued even when ignored)", ts.HasSignal())
	}
}

func TestAppendQueuesWhenMasked(t *testing.T) {
	ts := NewThreadSignalState(0)
	ts.SetMask(abi.MakeSignalSet(abi.SIGUSR1))

	Append(ts, abi.SIGUSR1, NewRecord(abi.SIGUSR1, abi.SI_USER), false, nil)

	if ts.HasSignal() != 1 {
		t.Errorf("HasSignal() = %d, want 1 (masked signals are queued, not discarded)", ts.HasSignal())
	}
}

func TestAppendWakesOnInterruptRequested(t *testing.T) {
	ts := NewThreadSignalState(0)
	w := &countingWaker{}
	Append(ts, abi.SIGUSR1, NewRecord(abi.SIGUSR1, abi.SI_USER), true, w)
	if w.n != 1 {
		t.Errorf("Wake called %d times, want 1", w.n)
	}
}

func TestAppendSkipsWakeWhenIgnoredAndMasked(t *testing.T) {
	// A signal queued only because it is masked-but-ignored will be drained
	// by the scheduler without ever running anything, so there's nothing for
	// a blocked syscall to observe.
	ts := NewThreadSignalState(0)
	ts.SetAction(abi.SIGTERM, arch.SignalAct{Handler: arch.SignalActIgnore})
	ts.SetMask(abi.MakeSignalSet(abi.SIGTERM))

	w := &countingWaker{}
	Append(ts, abi.SIGTERM, NewRecord(abi.SIGTERM, abi.SI_USER), true, w)

	if ts.HasSignal() != 1 {
		t.Fatalf("HasSignal() = %d, want 1 (masked signals queue regardless of disposition)", ts.HasSignal())
	}
	if w.n != 0 {
		t.Errorf("Wake called %d times, want 0 (ignored-and-masked should not wake)", w.n)
	}
}

func TestAppendNoWakeWithoutInterruptRequested(t *testing.T) {
	ts := NewThreadSignalState(0)
	w := &countingWaker{}
	Append(ts, abi.SIGUSR1, NewRecord(abi.SIGUSR1, abi.SI_USER), false, w)
	if w.n != 0 {
		t.Errorf("Wake called %d times, want 0 (interruptRequested=false)", w.n)
	}
}
