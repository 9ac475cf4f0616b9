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
	"os"
	"path/filepath"
	"testing"

	"libshim.dev/shim/pkg/platform"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.RingCapacity != DefaultRingCapacity {
		t.Errorf("DefaultConfig().RingCapacity = %d, want %d", c.RingCapacity, DefaultRingCapacity)
	}
	if c.Host != platform.HostLinux {
		t.Errorf("DefaultConfig().Host = %v, want %v", c.Host, platform.HostLinux)
	}
}

func TestLoadConfigFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("seccomp_sigsys_enabled = true\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !c.SeccompSIGSYSEnabled {
		t.Errorf("SeccompSIGSYSEnabled = false, want true")
	}
	if c.RingCapacity != DefaultRingCapacity {
		t.Errorf("RingCapacity = %d, want the default %d to have been filled in", c.RingCapacity, DefaultRingCapacity)
	}
	if c.Host != platform.HostLinux {
		t.Errorf("Host = %v, want the default %v to have been filled in", c.Host, platform.HostLinux)
	}
}

func TestLoadConfigOverridesEverything(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := "ring_capacity = 64\nhost = \"linux-sgx\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.RingCapacity != 64 {
		t.Errorf("RingCapacity = %d, want 64", c.RingCapacity)
	}
	if c.Host != platform.HostSGX {
		t.Errorf("Host = %v, want %v", c.Host, platform.HostSGX)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Errorf("LoadConfig on a missing file returned nil error")
	}
}
