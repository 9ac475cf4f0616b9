// Copyright 2023 The gVisor Authors.
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

import "encoding/binary"

// FPState holds the extended FPU save area copied verbatim between the
// interrupted context and the signal frame (spec.md §4.5, layout block 1).
// Its true size is variable (FXSAVE vs XSAVE); callers size the slice using
// ExtendedStateSize.
type FPState []byte

// Legacy FXSAVE area size (no XSAVE header/extended components).
const fxsaveSize = 512

// FP_XSTATE_MAGIC1/2 and the software-reserved-area offsets, matching
// Linux's struct _fpx_sw_bytes and the teacher's
// arch/fpu/fpu_amd64_unsafe.go PrepForHostSigframe.
const (
	fpXstateMagic1       = 0x46505853 // "FPXS"
	fpXstateMagic2       = 0x46505845 // "FPXE"
	fpSWReservedOffset   = 464 // offsetof(struct fxsave, sw_reserved)
	fpSWMagic1Offset     = fpSWReservedOffset
	fpSWExtendedSzOffset = fpSWReservedOffset + 4
	fpSWXstateSzOffset   = fpSWReservedOffset + 8
)

// ExtendedStateSize implements spec.md §4.5's "size determined by
// interrogating the context's FPU header (magic-number-and-length probe;
// falls back to legacy FPU-only size if magic absent)".
//
// state is the raw FXSAVE/XSAVE area copied from the interrupted context;
// it may be nil or empty if the thread has never touched FPU state.
func ExtendedStateSize(state FPState) int {
	if len(state) < fpSWXstateSzOffset+4 {
		return fxsaveSize
	}
	magic1 := binary.LittleEndian.Uint32(state[fpSWMagic1Offset : fpSWMagic1Offset+4])
	if magic1 != fpXstateMagic1 {
		return fxsaveSize
	}
	extSize := binary.LittleEndian.Uint32(state[fpSWExtendedSzOffset : fpSWExtendedSzOffset+4])
	xstateSize := binary.LittleEndian.Uint32(state[fpSWXstateSzOffset : fpSWXstateSzOffset+4])
	if xstateSize >= extSize {
		return fxsaveSize
	}
	return int(extSize)
}

// PrepForSigframe stamps the software-reserved magic numbers into state so
// that libc's sigreturn-side FPU restore code recognizes an XSAVE area,
// mirroring the teacher's FPState.PrepForHostSigframe.
func PrepForSigframe(state FPState, xstateSize uint32, useXsave bool) {
	if len(state) < fpSWXstateSzOffset+4 {
		return
	}
	binary.LittleEndian.PutUint32(state[fpSWMagic1Offset:], fpXstateMagic1)
	binary.LittleEndian.PutUint32(state[fpSWExtendedSzOffset:], xstateSize+4)
	binary.LittleEndian.PutUint32(state[fpSWXstateSzOffset:], xstateSize)
	if useXsave && len(state) >= int(xstateSize)+4 {
		binary.LittleEndian.PutUint32(state[xstateSize:], fpXstateMagic2)
	}
}
