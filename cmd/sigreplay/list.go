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

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"libshim.dev/shim/pkg/log"
)

// listScenariosCmd implements `sigreplay list`, printing the built-in
// scenario table the way runsc's `debug` subcommands enumerate their own
// fixed set of demonstrations.
type listScenariosCmd struct{}

func (*listScenariosCmd) Name() string     { return "list" }
func (*listScenariosCmd) Synopsis() string { return "list the built-in replay scenarios" }
func (*listScenariosCmd) Usage() string {
	return "list\n\tPrint the name and description of every built-in scenario.\n"
}
func (*listScenariosCmd) SetFlags(*flag.FlagSet) {}

func (*listScenariosCmd) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	logger, _ := args[0].(log.Logger)
	for _, s := range builtinScenarios {
		fmt.Printf("%s\t%s\n", s.name, s.description)
	}
	if logger != nil {
		logger.Debugf("sigreplay: listed %d scenarios", len(builtinScenarios))
	}
	return subcommands.ExitSuccess
}
