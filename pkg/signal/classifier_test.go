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
	"testing"

	"libshim.dev/shim/pkg/abi"
	"libshim.dev/shim/pkg/vma"
)

type stubContext struct {
	inGuest bool
}

func (c stubContext) IP() uintptr      { return 0 }
func (c stubContext) InGuestCode() bool { return c.inGuest }

func TestClassifyMemFaultInternal(t *testing.T) {
	ts := NewThreadSignalState(0)
	v := ClassifyMemFault(ts, stubContext{inGuest: false}, 0x1000, false, vma.NewMap())
	if !v.Internal {
		t.Errorf("ClassifyMemFault outside guest code = %+v, want Internal", v)
	}
}

func TestClassifyMemFaultProbeRedirect(t *testing.T) {
	ts := NewThreadSignalState(0)
	ts.probe.begin(0x1000, 0x2000)
	defer ts.probe.finish()

	v := ClassifyMemFault(ts, stubContext{inGuest: true}, 0x1500, false, vma.NewMap())
	if !v.Redirect {
		t.Errorf("ClassifyMemFault inside an active probe range = %+v, want Redirect", v)
	}
	if !ts.probe.hasFault {
		t.Errorf("probe.hasFault not set after a redirected fault")
	}
}

func TestClassifyMemFaultNullDeref(t *testing.T) {
	ts := NewThreadSignalState(0)
	v := ClassifyMemFault(ts, stubContext{inGuest: true}, 0, true, vma.NewMap())
	if v.Signal != abi.SIGSEGV || v.Code != abi.SEGV_MAPERR {
		t.Errorf("ClassifyMemFault(0) = %+v, want SIGSEGV/SEGV_MAPERR", v)
	}
}

func TestClassifyMemFaultUnmapped(t *testing.T) {
	ts := NewThreadSignalState(0)
	v := ClassifyMemFault(ts, stubContext{inGuest: true}, 0x9000, false, vma.NewMap())
	if v.Signal != abi.SIGSEGV || v.Code != abi.SEGV_MAPERR {
		t.Errorf("ClassifyMemFault on unmapped addr = %+v, want SIGSEGV/SEGV_MAPERR", v)
	}
}

func TestClassifyMemFaultInternalVMA(t *testing.T) {
	ts := NewThreadSignalState(0)
	m := vma.NewMap()
	m.Insert(vma.Area{Start: 0x1000, End: 0x2000, Internal: true})
	v := ClassifyMemFault(ts, stubContext{inGuest: true}, 0x1500, false, m)
	if !v.Internal {
		t.Errorf("ClassifyMemFault on an internal VMA = %+v, want Internal", v)
	}
}

func TestClassifyMemFaultWriteToReadOnlyFile(t *testing.T) {
	ts := NewThreadSignalState(0)
	m := vma.NewMap()
	m.Insert(vma.Area{Start: 0x1000, End: 0x2000, Read: true, File: true, EOF: 0x1000})
	v := ClassifyMemFault(ts, stubContext{inGuest: true}, 0x1500, true, m)
	if v.Signal != abi.SIGSEGV || v.Code != abi.SEGV_ACCERR {
		t.Errorf("write to read-only file VMA = %+v, want SIGSEGV/SEGV_ACCERR", v)
	}
}

func TestClassifyMemFaultPastEOF(t *testing.T) {
	ts := NewThreadSignalState(0)
	m := vma.NewMap()
	m.Insert(vma.Area{Start: 0x1000, End: 0x3000, Read: true, Write: true, File: true, EOF: 0x1000})
	v := ClassifyMemFault(ts, stubContext{inGuest: true}, 0x2500, true, m)
	if v.Signal != abi.SIGBUS || v.Code != abi.BUS_ADRERR {
		t.Errorf("fault past file EOF = %+v, want SIGBUS/BUS_ADRERR", v)
	}
}

func TestClassifyMemFaultAnonAccessViolation(t *testing.T) {
	ts := NewThreadSignalState(0)
	m := vma.NewMap()
	m.Insert(vma.Area{Start: 0x1000, End: 0x2000, Read: true})
	v := ClassifyMemFault(ts, stubContext{inGuest: true}, 0x1500, true, m)
	if v.Signal != abi.SIGSEGV || v.Code != abi.SEGV_ACCERR {
		t.Errorf("write to a read-only anonymous VMA = %+v, want SIGSEGV/SEGV_ACCERR", v)
	}
}

func TestClassifyArith(t *testing.T) {
	if v := ClassifyArith(stubContext{inGuest: false}); !v.Internal {
		t.Errorf("ClassifyArith outside guest code = %+v, want Internal", v)
	}
	v := ClassifyArith(stubContext{inGuest: true})
	if v.Signal != abi.SIGFPE || v.Code != abi.FPE_INTDIV {
		t.Errorf("ClassifyArith in guest code = %+v, want SIGFPE/FPE_INTDIV", v)
	}
}

func TestClassifyIllegal(t *testing.T) {
	if v := ClassifyIllegal(stubContext{inGuest: false}, [2]byte{0, 0}); !v.Internal {
		t.Errorf("ClassifyIllegal outside guest code = %+v, want Internal", v)
	}
	if v := ClassifyIllegal(stubContext{inGuest: true}, [2]byte{0x0f, 0x05}); !v.EmulateSyscall {
		t.Errorf("ClassifyIllegal on the syscall opcode = %+v, want EmulateSyscall", v)
	}
	v := ClassifyIllegal(stubContext{inGuest: true}, [2]byte{0xff, 0xff})
	if v.Signal != abi.SIGILL || v.Code != abi.ILL_ILLOPC {
		t.Errorf("ClassifyIllegal on a bogus opcode = %+v, want SIGILL/ILL_ILLOPC", v)
	}
}

func TestClassifySeccompSyscall(t *testing.T) {
	if v := ClassifySeccompSyscall(stubContext{inGuest: false}, 42); !v.Internal {
		t.Errorf("ClassifySeccompSyscall outside guest code = %+v, want Internal", v)
	}
	v := ClassifySeccompSyscall(stubContext{inGuest: true}, 42)
	if !v.EmulateSyscall || v.Code != 42 {
		t.Errorf("ClassifySeccompSyscall in guest code = %+v, want EmulateSyscall with Code=42", v)
	}
}
