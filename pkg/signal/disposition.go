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
	"libshim.dev/shim/pkg/abi"
	"libshim.dev/shim/pkg/arch"
)

// Kind classifies a resolved disposition, standing in for the source's
// internal function-pointer sentinels (default_sighandler entries), which
// the scheduler recognizes and short-circuits (spec.md §4.4, §4.6).
type Kind int

const (
	// KindIgnore means the signal has no effect and should be dropped.
	KindIgnore Kind = iota
	// KindTerminate means the process/thread exits with the plain signal
	// number in its wait status.
	KindTerminate
	// KindTerminateCore is like KindTerminate but ORs the core-dump bit
	// into the wait status (spec.md §6 "Wait-status encoding"). No core
	// file is produced (spec.md Non-goals).
	KindTerminateCore
	// KindHandler means a guest-installed handler should run; Handler and
	// Restorer are valid.
	KindHandler
)

// Action is the resolved effective disposition for one signal, returned by
// Resolve (spec.md §4.4).
type Action struct {
	Kind        Kind
	Handler     uint64
	Restorer    uint64
	HasRestorer bool
	OnStack     bool
	Mask        abi.SignalSet // mask applied while the handler runs
}

// defaultTable maps each signal to its default Kind, matching spec.md §6's
// "Default disposition table" verbatim.
var defaultTable = buildDefaultTable()

func buildDefaultTable() [abi.NumSignals + 1]Kind {
	var t [abi.NumSignals + 1]Kind
	terminate := []abi.Signal{
		abi.SIGHUP, abi.SIGINT, abi.SIGKILL, abi.SIGUSR1, abi.SIGUSR2,
		abi.SIGPIPE, abi.SIGALRM, abi.SIGTERM, abi.SIGSTKFLT, abi.SIGVTALRM,
		abi.SIGPROF, abi.SIGIO, abi.SIGPWR,
	}
	core := []abi.Signal{
		abi.SIGQUIT, abi.SIGILL, abi.SIGTRAP, abi.SIGABRT, abi.SIGBUS,
		abi.SIGFPE, abi.SIGSEGV, abi.SIGXCPU, abi.SIGXFSZ, abi.SIGSYS,
	}
	ignore := []abi.Signal{
		abi.SIGCHLD, abi.SIGCONT, abi.SIGSTOP, abi.SIGTSTP, abi.SIGTTIN,
		abi.SIGTTOU, abi.SIGURG, abi.SIGWINCH,
	}
	for _, s := range terminate {
		t[s] = KindTerminate
	}
	for _, s := range core {
		t[s] = KindTerminateCore
	}
	for _, s := range ignore {
		t[s] = KindIgnore
	}
	return t
}

// DefaultKind returns the process-wide, immutable default disposition for
// sig (spec.md §9 "Global disposition table").
func DefaultKind(sig abi.Signal) Kind {
	if !sig.IsValid() {
		return KindIgnore
	}
	return defaultTable[sig]
}

// Resolve implements the disposition resolver (spec.md §4.4): under the
// thread's disposition lock, reads the signal-handle entry, applies
// SA_RESETHAND, and substitutes the default-table entry for SIG_DFL/absent
// entries.
func Resolve(ts *ThreadSignalState, sig abi.Signal) Action {
	ts.dispMu.Lock()
	defer ts.dispMu.Unlock()

	entry := ts.disp[sig.Index()]
	handler := entry.Handler
	restorer := entry.Restorer
	hasRestorer := entry.HasRestorer()
	mask := entry.Mask

	if entry.Handler != 0 && entry.IsResetHandler() {
		ts.disp[sig.Index()] = arch.SignalAct{}
	}

	switch handler {
	case arch.SignalActIgnore:
		return Action{Kind: KindIgnore}
	case arch.SignalActDefault:
		return defaultAction(sig)
	default:
		if handler == 0 {
			return defaultAction(sig)
		}
		return Action{
			Kind: KindHandler, Handler: handler, Restorer: restorer,
			HasRestorer: hasRestorer, OnStack: entry.IsOnStack(), Mask: mask,
		}
	}
}

func defaultAction(sig abi.Signal) Action {
	switch DefaultKind(sig) {
	case KindTerminate:
		return Action{Kind: KindTerminate}
	case KindTerminateCore:
		return Action{Kind: KindTerminateCore}
	default:
		return Action{Kind: KindIgnore}
	}
}
