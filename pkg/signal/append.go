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

import "libshim.dev/shim/pkg/abi"

// Waker wakes a target thread blocked in a syscall so it observes a newly
// queued signal without waiting for its next natural scheduling point
// (spec.md §4.8 "wake the target thread"). The condition-variable half and
// the PAL thread-resume half are both the embedder's concern; Append only
// decides whether a wake is warranted.
type Waker interface {
	Wake()
}

// Append implements the cross-thread append-signal path (spec.md §4.8),
// used by sends like kill(2). The caller is expected to already hold
// whatever external lock serializes disposition changes against delivery
// for ts's owning thread (this module's dispMu only protects the table
// itself, not cross-thread ordering with Append's ignore check).
//
// rec carries the siginfo payload to enqueue; it is ignored (not consumed)
// if the signal is discarded. interruptRequested mirrors the sender's
// "need_interrupt" argument: true for signals expected to interrupt a
// blocking syscall (e.g. most kill(2) targets), false for deliveries that
// can wait for the target's next natural check.
func Append(ts *ThreadSignalState, sig abi.Signal, rec *Record, interruptRequested bool, wake Waker) {
	act := Resolve(ts, sig)
	ignored := act.Kind == KindIgnore
	masked := ts.IsMasked(sig)

	if ignored && !masked && sig != abi.SIGCHLD {
		return
	}

	ts.enqueue(sig, rec)

	// A signal queued only because it is masked-but-ignored will be drained
	// by the scheduler core without ever running anything (spec.md §4.6);
	// there is nothing for a blocked syscall to observe, so skip the wake.
	if interruptRequested && !(ignored && masked) && wake != nil {
		wake.Wake()
	}
}
