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
	"libshim.dev/shim/pkg/signal"
)

// replayCmd implements `sigreplay replay -scenario=S1`, driving one built-in
// scenario and printing its outcome, the way runsc's `debug` subcommands
// exercise one sentry component at a time outside a full sandbox. The
// scenario's Config can come from the built-in defaults or, via
// -scenario-file, a TOML file decoded by signal.LoadConfig.
type replayCmd struct {
	scenario     string
	scenarioFile string
}

func (*replayCmd) Name() string     { return "replay" }
func (*replayCmd) Synopsis() string { return "run one built-in scenario and print its outcome" }
func (*replayCmd) Usage() string {
	return "replay -scenario=<name> [-scenario-file=<path>]\n" +
		"\tRun a scenario from `list` and print the classifier/scheduler outcome.\n" +
		"\t-scenario-file overrides the scenario's ring capacity, host type, and\n" +
		"\tseccomp-SIGSYS opt-in from a TOML file instead of the built-in defaults.\n"
}

func (r *replayCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.scenario, "scenario", "S1", "name of the scenario to run (see `list`)")
	f.StringVar(&r.scenarioFile, "scenario-file", "", "path to a TOML file overriding the scenario's Config (see pkg/signal.Config)")
}

func (r *replayCmd) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	logger, _ := args[0].(log.Logger)

	s, ok := findScenario(r.scenario)
	if !ok {
		fmt.Printf("unknown scenario %q; run `sigreplay list` for the built-in set\n", r.scenario)
		return subcommands.ExitUsageError
	}

	cfg := signal.DefaultConfig()
	if r.scenarioFile != "" {
		loaded, err := signal.LoadConfig(r.scenarioFile)
		if err != nil {
			fmt.Printf("loading %s: %v\n", r.scenarioFile, err)
			return subcommands.ExitFailure
		}
		cfg = loaded
		if logger != nil {
			logger.Infof("sigreplay: loaded config from %s: ring_capacity=%d host=%s seccomp_sigsys_enabled=%v",
				r.scenarioFile, cfg.RingCapacity, cfg.Host, cfg.SeccompSIGSYSEnabled)
		}
	}

	if logger != nil {
		logger.Infof("sigreplay: running %s", s.name)
	}
	out, err := s.run(cfg)
	if err != nil {
		fmt.Printf("%s FAILED: %v\n", s.name, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s: %s\n", s.name, out)
	return subcommands.ExitSuccess
}
