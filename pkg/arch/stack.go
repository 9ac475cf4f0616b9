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

import (
	"bytes"
	"encoding/binary"
	"errors"

	"libshim.dev/shim/pkg/hostarch"
)

// ErrStackOverflow is returned by Stack.Push when the frame being built
// would run past the low end of the backing buffer, mirroring gVisor's
// arch.Stack.Push bounds check.
var ErrStackOverflow = errors.New("arch: signal frame exceeds stack bounds")

// Width is the pointer width on amd64, used by SignalSetup to size the
// restorer trampoline slot (spec.md §4.5, layout block 4).
const Width = 8

// Stack is a byte-addressable region of the interrupted thread's memory,
// used to lay out a signal frame the way gVisor's arch.Stack does for
// SignalSetup. It grows down from Bottom, matching the x86-64 stack
// convention.
//
// Memory[0] corresponds to address Base; Memory must cover at least the span
// the frame builder will touch (usually the guard-adjusted red zone or
// alternate stack).
type Stack struct {
	Memory []byte
	Base   hostarch.Addr
	Bottom hostarch.Addr
}

func (s *Stack) offset(addr hostarch.Addr) int {
	return int(addr - s.Base)
}

// Push serializes v in little-endian order onto the stack, decrementing
// Bottom by its encoded size, and returns the address it was written to.
func (s *Stack) Push(v interface{}) (hostarch.Addr, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return 0, err
	}
	size := hostarch.Addr(buf.Len())
	if size > s.Bottom-s.Base {
		return 0, ErrStackOverflow
	}
	s.Bottom -= size
	off := s.offset(s.Bottom)
	if off < 0 || off+buf.Len() > len(s.Memory) {
		return 0, ErrStackOverflow
	}
	copy(s.Memory[off:off+buf.Len()], buf.Bytes())
	return s.Bottom, nil
}

// PushUint64 pushes a single 8-byte little-endian value, used for the
// restorer trampoline address (spec.md §4.5, "restorer" field).
func (s *Stack) PushUint64(v uint64) (hostarch.Addr, error) {
	return s.Push(v)
}

// Align rounds Bottom down to the given power-of-two alignment. SignalSetup
// does its own "16 bytes minus 8" frame alignment inline and does not call
// Align.
func (s *Stack) Align(align hostarch.Addr) {
	s.Bottom = s.Bottom &^ (align - 1)
}
