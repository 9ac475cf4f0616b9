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

package hostarch

import "testing"

func TestPageRoundDown(t *testing.T) {
	for _, tc := range []struct {
		addr Addr
		want Addr
	}{
		{0, 0},
		{1, 0},
		{PageSize - 1, 0},
		{PageSize, PageSize},
		{PageSize + 1, PageSize},
		{2 * PageSize, 2 * PageSize},
		{2*PageSize + 123, 2 * PageSize},
	} {
		if got := tc.addr.PageRoundDown(); got != tc.want {
			t.Errorf("Addr(%d).PageRoundDown() = %d, want %d", tc.addr, got, tc.want)
		}
	}
}

func TestAccessTypeString(t *testing.T) {
	for _, tc := range []struct {
		at   AccessType
		want string
	}{
		{NoAccess, "---"},
		{ReadAccess, "r--"},
		{WriteAccess, "-w-"},
		{ExecAccess, "--x"},
		{AccessType{Read: true, Write: true}, "rw-"},
		{AccessType{Read: true, Write: true, Execute: true}, "rwx"},
	} {
		if got := tc.at.String(); got != tc.want {
			t.Errorf("%+v.String() = %q, want %q", tc.at, got, tc.want)
		}
	}
}

func TestAccessTypeAny(t *testing.T) {
	if NoAccess.Any() {
		t.Errorf("NoAccess.Any() = true, want false")
	}
	if !ReadAccess.Any() {
		t.Errorf("ReadAccess.Any() = false, want true")
	}
}
