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

import "libshim.dev/shim/pkg/abi"

// Special values for SignalAct.Handler, equivalent to SIG_DFL/SIG_IGN.
const (
	SignalActDefault = 0
	SignalActIgnore  = 1
)

// Signal flag bits, matching Linux's SA_* (abi/linux/signal.go in the
// teacher).
const (
	SignalFlagSigInfo      = 0x00000004
	SignalFlagRestorer     = 0x04000000
	SignalFlagOnStack      = 0x08000000
	SignalFlagRestart      = 0x10000000
	SignalFlagNoDefer      = 0x40000000
	SignalFlagResetHandler = 0x80000000
)

// SignalAct is equivalent to struct sigaction (spec.md §3, "Disposition
// table"'s per-signal entry).
type SignalAct struct {
	Handler  uint64
	Flags    uint64
	Restorer uint64
	Mask     abi.SignalSet
}

// IsSigInfo returns true iff the handler expects (siginfo_t*, ucontext*).
func (s SignalAct) IsSigInfo() bool { return s.Flags&SignalFlagSigInfo != 0 }

// IsOnStack returns true iff the handler should run on the alternate stack.
func (s SignalAct) IsOnStack() bool { return s.Flags&SignalFlagOnStack != 0 }

// IsResetHandler returns true iff SA_RESETHAND is set (spec.md §4.4 step 2).
func (s SignalAct) IsResetHandler() bool { return s.Flags&SignalFlagResetHandler != 0 }

// HasRestorer returns true iff a restorer trampoline address was supplied.
func (s SignalAct) HasRestorer() bool { return s.Flags&SignalFlagRestorer != 0 }

// SignalStack is equivalent to stack_t (spec.md glossary, "Alternate
// stack").
type SignalStack struct {
	Addr  uint64
	Flags uint32
	Size  uint64
}

// SignalStackFlagDisable is SS_DISABLE.
const SignalStackFlagDisable = 2

// IsEnabled reports whether the alternate stack is configured and not
// disabled.
func (s *SignalStack) IsEnabled() bool {
	return s.Flags&SignalStackFlagDisable == 0 && s.Size > 0
}

// Top returns the top (highest address) of the alternate stack, which grows
// down from Addr+Size.
func (s *SignalStack) Top() uint64 {
	return s.Addr + s.Size
}

// Contains reports whether addr (given as a raw stack-pointer magnitude)
// falls within the alternate stack's range.
func (s *SignalStack) Contains(addr uint64) bool {
	return addr > s.Addr && addr <= s.Top()
}
