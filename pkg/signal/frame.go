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
	"libshim.dev/shim/pkg/arch"
	"libshim.dev/shim/pkg/hostarch"
)

// GuestMemory is the slice of the application's address space the frame
// builder is permitted to write into, standing in for the direct guest
// memory access a real PAL grants (spec.md §1 marks the memory manager out
// of scope; this is the minimal surface the frame builder needs from it).
type GuestMemory struct {
	Bytes []byte
	Base  hostarch.Addr
}

func (m GuestMemory) stackTo(bottom hostarch.Addr) *arch.Stack {
	return &arch.Stack{Memory: m.Bytes, Base: m.Base, Bottom: bottom}
}

// SelectStack implements spec.md §4.5's stack selection rule.
func SelectStack(currentSP hostarch.Addr, alt arch.SignalStack, onStack bool) hostarch.Addr {
	if !onStack || !alt.IsEnabled() || alt.Contains(uint64(currentSP)) {
		return currentSP - redZoneSizeAddr
	}
	return hostarch.Addr(alt.Top())
}

const redZoneSizeAddr = hostarch.Addr(arch.RedZoneSize)

// BuildFrame implements the frame builder (spec.md §4.5): selects the
// target stack, lays out the FPU area/ucontext/siginfo/restorer, and
// rewrites regs to enter act.Handler. mem must cover the selected stack
// region; callers size it generously (e.g. a few KiB below the current
// stack pointer, or the whole alternate stack).
func BuildFrame(ts *ThreadSignalState, regs *arch.State, rec *Record, act Action, mem GuestMemory) error {
	alt := ts.AltStack()
	sp := SelectStack(hostarch.Addr(regs.Stack()), alt, act.OnStack)

	sigAct := arch.SignalAct{Handler: act.Handler, Restorer: act.Restorer}
	if act.HasRestorer {
		sigAct.Flags |= arch.SignalFlagRestorer
	}
	if act.OnStack {
		sigAct.Flags |= arch.SignalFlagOnStack
	}

	st := mem.stackTo(sp)
	info := rec.Info
	restorer := act.Restorer

	// The saved signal mask in the delivered ucontext is left empty.
	if err := regs.SetupSignalFrame(st, &sigAct, &info, &alt, 0, restorer); err != nil {
		return err
	}
	return nil
}
