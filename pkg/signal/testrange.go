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

import "libshim.dev/shim/pkg/hostarch"

// testRange is the per-thread, single-slot probe record consulted
// exclusively by the memory-fault classifier (spec.md §3 "test_range",
// §4.3). It is single-writer (owning thread only), so no locking is needed
// on the fault path itself; the mutex here only protects against a second
// probe starting concurrently on the same thread, which would be a caller
// bug.
type testRange struct {
	mu       chan struct{} // 1-buffered, acts as a non-reentrant lock/guard
	start    hostarch.Addr
	end      hostarch.Addr
	active   bool
	hasFault bool
}

func newTestRange() *testRange {
	tr := &testRange{mu: make(chan struct{}, 1)}
	tr.mu <- struct{}{}
	return tr
}

// begin installs the probed range, matching test_user_memory's setup of
// tcb->test_range before touching guest memory.
func (tr *testRange) begin(start, end hostarch.Addr) {
	<-tr.mu
	tr.start, tr.end = start, end
	tr.active = true
	tr.hasFault = false
}

// finish clears the probe record and returns whether a fault landed inside
// it, matching test_user_memory's ret_fault epilogue.
func (tr *testRange) finish() bool {
	fault := tr.hasFault
	tr.active = false
	tr.hasFault = false
	tr.start, tr.end = 0, 0
	tr.mu <- struct{}{}
	return fault
}

// contains and markFault are called from the memory-fault classifier
// (classifier.go), which runs synchronously on the same goroutine as the
// probe in this module's model of upcalls (spec.md's "landing pad" collapses
// to Go panic/recover here; see probe.go).
func (tr *testRange) contains(addr hostarch.Addr) bool {
	return tr.active && addr >= tr.start && addr <= tr.end
}

func (tr *testRange) markFault() {
	tr.hasFault = true
}
