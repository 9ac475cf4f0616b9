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
	"github.com/BurntSushi/toml"

	"libshim.dev/shim/pkg/platform"
)

// Config is the small set of knobs a deployment or test harness wants to
// override (SPEC_FULL.md §9.3): the per-signal ring capacity (spec.md §3,
// "implementation defines; source uses a small constant") and the host
// type the memory probe and seccomp-path emulation branch on.
type Config struct {
	RingCapacity         int               `toml:"ring_capacity"`
	Host                 platform.HostType `toml:"host"`
	SeccompSIGSYSEnabled bool              `toml:"seccomp_sigsys_enabled"`
}

// DefaultConfig returns the Config this module uses when none is supplied.
func DefaultConfig() Config {
	return Config{RingCapacity: DefaultRingCapacity, Host: platform.HostLinux}
}

// LoadConfig decodes a Config from a TOML file at path, filling in
// DefaultConfig's values for anything the file leaves zero.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.RingCapacity <= 0 {
		cfg.RingCapacity = DefaultRingCapacity
	}
	if cfg.Host == "" {
		cfg.Host = platform.HostLinux
	}
	return cfg, nil
}
