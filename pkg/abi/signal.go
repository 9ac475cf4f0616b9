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

// Package abi defines the POSIX signal numbers, sets and si_code values
// consumed by the rest of this module.
package abi

import "strconv"

// Signal is a signal number.
type Signal int

// Signal numbers. Only the classic 1..31 set is modeled; real-time signals
// (32..64) are out of scope per this module's Non-goals.
const (
	SIGHUP    = Signal(1)
	SIGINT    = Signal(2)
	SIGQUIT   = Signal(3)
	SIGILL    = Signal(4)
	SIGTRAP   = Signal(5)
	SIGABRT   = Signal(6)
	SIGIOT    = Signal(6)
	SIGBUS    = Signal(7)
	SIGFPE    = Signal(8)
	SIGKILL   = Signal(9)
	SIGUSR1   = Signal(10)
	SIGSEGV   = Signal(11)
	SIGUSR2   = Signal(12)
	SIGPIPE   = Signal(13)
	SIGALRM   = Signal(14)
	SIGTERM   = Signal(15)
	SIGSTKFLT = Signal(16)
	SIGCHLD   = Signal(17)
	SIGCONT   = Signal(18)
	SIGSTOP   = Signal(19)
	SIGTSTP   = Signal(20)
	SIGTTIN   = Signal(21)
	SIGTTOU   = Signal(22)
	SIGURG    = Signal(23)
	SIGXCPU   = Signal(24)
	SIGXFSZ   = Signal(25)
	SIGVTALRM = Signal(26)
	SIGPROF   = Signal(27)
	SIGWINCH  = Signal(28)
	SIGIO     = Signal(29)
	SIGPWR    = Signal(30)
	SIGSYS    = Signal(31)
)

// FirstSignal and LastSignal bound the standard signal space this module
// supports.
const (
	FirstSignal = SIGHUP
	LastSignal  = SIGSYS
	NumSignals  = int(LastSignal)
)

// IsValid returns true if s is a signal number this module handles.
func (s Signal) IsValid() bool {
	return s >= FirstSignal && s <= LastSignal
}

// Index returns the zero-based index of s for use in per-signal arrays.
//
// Preconditions: s.IsValid().
func (s Signal) Index() int {
	return int(s - 1)
}

// String returns a human name for well-known signals, or a numeric fallback.
func (s Signal) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return "signal " + strconv.Itoa(int(s))
}

var signalNames = map[Signal]string{
	SIGHUP: "SIGHUP", SIGINT: "SIGINT", SIGQUIT: "SIGQUIT", SIGILL: "SIGILL",
	SIGTRAP: "SIGTRAP", SIGABRT: "SIGABRT", SIGBUS: "SIGBUS", SIGFPE: "SIGFPE",
	SIGKILL: "SIGKILL", SIGUSR1: "SIGUSR1", SIGSEGV: "SIGSEGV", SIGUSR2: "SIGUSR2",
	SIGPIPE: "SIGPIPE", SIGALRM: "SIGALRM", SIGTERM: "SIGTERM", SIGSTKFLT: "SIGSTKFLT",
	SIGCHLD: "SIGCHLD", SIGCONT: "SIGCONT", SIGSTOP: "SIGSTOP", SIGTSTP: "SIGTSTP",
	SIGTTIN: "SIGTTIN", SIGTTOU: "SIGTTOU", SIGURG: "SIGURG", SIGXCPU: "SIGXCPU",
	SIGXFSZ: "SIGXFSZ", SIGVTALRM: "SIGVTALRM", SIGPROF: "SIGPROF", SIGWINCH: "SIGWINCH",
	SIGIO: "SIGIO", SIGPWR: "SIGPWR", SIGSYS: "SIGSYS",
}

// SignalSet is a signal mask with a bit corresponding to each signal.
type SignalSet uint64

// MakeSignalSet returns a SignalSet with the bit for each of sigs set.
func MakeSignalSet(sigs ...Signal) SignalSet {
	var s SignalSet
	for _, sig := range sigs {
		s |= SignalSetOf(sig)
	}
	return s
}

// SignalSetOf returns a SignalSet with a single signal set.
func SignalSetOf(sig Signal) SignalSet {
	return SignalSet(1) << uint(sig.Index())
}

// Contains returns true if sig is a member of s.
func (s SignalSet) Contains(sig Signal) bool {
	return s&SignalSetOf(sig) != 0
}

// Add returns s with sig added.
func (s SignalSet) Add(sig Signal) SignalSet {
	return s | SignalSetOf(sig)
}

// Remove returns s with sig removed.
func (s SignalSet) Remove(sig Signal) SignalSet {
	return s &^ SignalSetOf(sig)
}

// ForEach invokes f for each signal set in s, lowest-numbered first.
func ForEach(s SignalSet, f func(sig Signal)) {
	for sig := FirstSignal; sig <= LastSignal; sig++ {
		if s.Contains(sig) {
			f(sig)
		}
	}
}

// si_code values used by the fault classifier (spec.md §4.2's decision
// table) and by SA_SIGINFO handlers.
const (
	// SI_USER indicates a signal sent by kill(2) or equivalent.
	SI_USER = 0
	// SI_KERNEL indicates a signal sent by the kernel (here: the library-OS
	// core) itself.
	SI_KERNEL = 0x80

	// SEGV_MAPERR indicates a SIGSEGV address that is not mapped at all.
	SEGV_MAPERR = 1
	// SEGV_ACCERR indicates a SIGSEGV address mapped but without the
	// required permission.
	SEGV_ACCERR = 2

	// BUS_ADRERR indicates a SIGBUS for a nonexistent physical address
	// (here: a file mapping fault past end-of-file, or an unresolved
	// file-backed fault).
	BUS_ADRERR = 2

	// ILL_ILLOPC indicates an illegal opcode SIGILL.
	ILL_ILLOPC = 1

	// FPE_INTDIV indicates an integer-divide-by-zero SIGFPE.
	FPE_INTDIV = 1

	// SYS_SECCOMP indicates a SIGSYS raised by a seccomp filter rejecting a
	// direct-host syscall (spec.md §9's disabled seccomp-path emulation).
	SYS_SECCOMP = 1
)
