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

// Package signal implements the signal delivery core: per-thread queues,
// upcall classification, the memory probe, disposition resolution, on-stack
// frame construction, and the three-entry-point delivery scheduler.
package signal

import (
	"libshim.dev/shim/pkg/abi"
	"libshim.dev/shim/pkg/arch"
)

// Record is the heap-allocated, siginfo-shaped payload owned by exactly one
// ring slot until fetched (spec.md §3, "Signal record").
type Record struct {
	Info arch.SignalInfo
}

// NewRecord allocates a Record for sig with the given si_code, matching the
// original source's ALLOC_SIGINFO helper.
func NewRecord(sig abi.Signal, code int32) *Record {
	r := &Record{}
	r.Info.Signo = int32(sig)
	r.Info.Code = code
	return r
}

// Signal returns the record's signal number.
func (r *Record) Signal() abi.Signal { return r.Info.Signal() }
