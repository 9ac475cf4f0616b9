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

// Package arch provides architecture-dependent register state and the
// on-stack signal frame builder (spec.md §4.5). This module targets amd64
// only; the arm64 sibling in the teacher (signal_arm64.go) is the layout
// this file's amd64 version is grounded on, since the teacher's own amd64
// file was not present in the retrieval pack.
package arch

import (
	"encoding/binary"

	"libshim.dev/shim/pkg/abi"
)

// SignalInfo is equivalent to struct siginfo (Linux
// include/uapi/asm-generic/siginfo.h). Only the fields this module actually
// populates are exposed as named accessors; the rest of the union is opaque
// padding, matching gVisor's arch.SignalInfo.
type SignalInfo struct {
	Signo int32
	Errno int32
	Code  int32
	_     uint32

	// Fields backs the _sifields union. Its layout depends on Code; see the
	// accessors below.
	Fields [128 - 16]byte
}

var byteOrder = binary.LittleEndian

// PID returns the si_pid field.
func (s *SignalInfo) PID() int32 { return int32(byteOrder.Uint32(s.Fields[0:4])) }

// SetPID sets the si_pid field.
func (s *SignalInfo) SetPID(v int32) { byteOrder.PutUint32(s.Fields[0:4], uint32(v)) }

// UID returns the si_uid field.
func (s *SignalInfo) UID() int32 { return int32(byteOrder.Uint32(s.Fields[4:8])) }

// SetUID sets the si_uid field.
func (s *SignalInfo) SetUID(v int32) { byteOrder.PutUint32(s.Fields[4:8], uint32(v)) }

// Addr returns the si_addr field (faulting instruction or memory address).
func (s *SignalInfo) Addr() uint64 { return byteOrder.Uint64(s.Fields[0:8]) }

// SetAddr sets the si_addr field.
func (s *SignalInfo) SetAddr(v uint64) { byteOrder.PutUint64(s.Fields[0:8], v) }

// Syscall returns the si_syscall field (spec.md §3, signal record's
// "syscall number").
func (s *SignalInfo) Syscall() int32 { return int32(byteOrder.Uint32(s.Fields[8:12])) }

// SetSyscall sets the si_syscall field.
func (s *SignalInfo) SetSyscall(v int32) { byteOrder.PutUint32(s.Fields[8:12], uint32(v)) }

// Status returns the si_status field (used for SIGCHLD-shaped records).
func (s *SignalInfo) Status() int32 { return int32(byteOrder.Uint32(s.Fields[8:12])) }

// SetStatus sets the si_status field.
func (s *SignalInfo) SetStatus(v int32) { byteOrder.PutUint32(s.Fields[8:12], uint32(v)) }

// FixSignalCodeForUser masks si_code down to the 16 bits the kernel exposes
// to userspace copy_siginfo_to_user does the same masking for positive
// codes originating from ptrace-style internal sources.
func (s *SignalInfo) FixSignalCodeForUser() {
	if s.Code > 0 {
		s.Code &= 0x0000ffff
	}
}

// Signal returns the signal number as an abi.Signal.
func (s *SignalInfo) Signal() abi.Signal { return abi.Signal(s.Signo) }
