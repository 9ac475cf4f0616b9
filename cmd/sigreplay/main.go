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

// Command sigreplay is a demonstration harness for the signal delivery
// core: it drives the classifier, disposition resolver, scheduler, prober
// and kernel through built-in scenarios (optionally under a Config loaded
// from TOML) and prints one outcome line per scenario, the way runsc's
// debug subcommands demonstrate
// individual sentry pieces without running a full sandbox.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"libshim.dev/shim/pkg/log"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&listScenariosCmd{}, "")
	subcommands.Register(&replayCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx, log.Log())))
}
