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

// Package platform declares the interface this module consumes from the
// platform abstraction layer (PAL): exception registration and thread
// control (spec.md §6). The PAL itself -- the code that actually traps
// hardware exceptions and host process-control signals -- is an external
// collaborator and out of scope (spec.md §1); this package only pins down
// the shape of the upcalls the signal core receives, mirroring gVisor's
// pkg/sentry/platform.Context.Switch contract.
package platform

import (
	"errors"

	"libshim.dev/shim/pkg/abi"
	"libshim.dev/shim/pkg/hostarch"
)

// EventKind is one of the six upcall classes the PAL delivers (spec.md §2,
// component 2, and §6).
type EventKind int

// Event kinds, matching PAL_EVENT_* in the original source.
const (
	EventArithmeticError EventKind = iota
	EventMemFault
	EventIllegal
	EventQuit
	EventSuspend
	EventResume
)

func (k EventKind) String() string {
	switch k {
	case EventArithmeticError:
		return "arithmetic-error"
	case EventMemFault:
		return "mem-fault"
	case EventIllegal:
		return "illegal-instruction"
	case EventQuit:
		return "quit"
	case EventSuspend:
		return "suspend"
	case EventResume:
		return "resume"
	default:
		return "unknown-event"
	}
}

// Sentinel errors returned along the upcall/Switch path, in the style of
// gVisor's platform.ErrContextSignal family.
var (
	// ErrInternalFault indicates a hardware exception whose instruction
	// pointer lies in library-OS or PAL text, or that touched an internal
	// VMA: spec.md §7's "Internal fault", always fatal.
	ErrInternalFault = errors.New("fault in internal code or resource")

	// ErrProbeRedirected indicates a memory fault that landed inside the
	// calling thread's active probe range and was redirected rather than
	// turned into a signal (spec.md §4.2's first MEMFAULT row).
	ErrProbeRedirected = errors.New("fault redirected to probe landing pad")

	// ErrFault is returned by an embedder's Context.Switch-style loop when
	// an upcall carried a hardware exception the signal core turned into a
	// queued signal, mirroring gVisor's platform.ErrContextSignal
	// (SPEC_FULL.md §9.2). The core itself never returns this value; it is
	// reserved for the external upcall-dispatch loop this package's
	// interfaces are consumed by.
	ErrFault = errors.New("upcall carried a hardware exception")

	// ErrInterrupted is returned by the same external dispatch loop when a
	// blocked syscall was woken by SignalInterrupt (SPEC_FULL.md §9.2),
	// mirroring gVisor's platform.ErrContextInterrupt.
	ErrInterrupted = errors.New("interrupted by signal")
)

// Event is the argument bundle a PAL upcall hands to the signal core: an
// event kind, a numeric argument (fault address or syscall number,
// depending on kind), and whether the fault was a write access (used only
// for EventMemFault).
type Event struct {
	Kind    EventKind
	Arg     hostarch.Addr
	Access  hostarch.AccessType
	SyscallErrno int32
}

// Context is the per-thread execution context consulted and mutated by the
// signal core, playing the role of gVisor's arch.Context plus the parts of
// PAL_CONTEXT the classifier and frame builder need directly. It is
// implemented by fakes in tests and cmd/sigreplay; arch.State provides IP
// but not InGuestCode, so it does not satisfy Context on its own.
type Context interface {
	// IP returns the current instruction pointer.
	IP() uintptr
	// InGuestCode reports whether IP() currently lies in application code,
	// as opposed to library-OS or PAL text (spec.md §4.2).
	InGuestCode() bool
}

// SignalInterrupt is the signal reserved for Context.Interrupt()
// implementations, mirroring gVisor's platform.SignalInterrupt. The signal
// core does not treat it specially: Append queues it like any other
// SIGCHLD.
const SignalInterrupt = abi.SIGCHLD

// HostType identifies the concrete PAL implementation running underneath
// this core. The memory probe (spec.md §4.3) and the disabled SIGSYS
// emulation (spec.md §9) branch on it.
type HostType string

// Known host types. "seccomp" is not a real PAL name upstream; it exists
// here only to gate the disabled SIGSYS emulation path per spec.md §9.
const (
	HostLinux   HostType = "linux"
	HostSGX     HostType = "linux-sgx"
	HostSeccomp HostType = "seccomp"
)

// UsesVMAWalkProbe reports whether the byte-touch probe strategy is
// unavailable on this host and the VMA-walk strategy must be used instead
// (spec.md §4.3: "for hosts where the fault address is not exposed to the
// exception handler").
func (h HostType) UsesVMAWalkProbe() bool {
	return h == HostSGX
}
