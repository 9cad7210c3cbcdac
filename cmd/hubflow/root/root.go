// Copyright © 2022 Meroxa, Inc.
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

package root

import (
	"context"
	"fmt"

	"github.com/conduitio/hubflow/cmd/hubflow/root/checkpoints"
	"github.com/conduitio/hubflow/cmd/hubflow/root/config"
	"github.com/conduitio/hubflow/cmd/hubflow/root/run"
	"github.com/conduitio/hubflow/cmd/hubflow/root/version"
	"github.com/conduitio/hubflow/pkg/hubflow"
	"github.com/conduitio/ecdysis"
)

var (
	_ ecdysis.CommandWithFlags       = (*RootCommand)(nil)
	_ ecdysis.CommandWithExecute     = (*RootCommand)(nil)
	_ ecdysis.CommandWithDocs        = (*RootCommand)(nil)
	_ ecdysis.CommandWithSubCommands = (*RootCommand)(nil)
)

type RootFlags struct {
	Version bool `long:"version" short:"v" usage:"show current hubflow version" persistent:"true"`
}

type RootCommand struct {
	flags RootFlags
}

func (c *RootCommand) Execute(ctx context.Context) error {
	cmd := ecdysis.CobraCmdFromContext(ctx)
	if c.flags.Version {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", hubflow.Version(true))
		return nil
	}
	return cmd.Help()
}

func (c *RootCommand) Usage() string { return "hubflow" }

func (c *RootCommand) Flags() []ecdysis.Flag {
	return ecdysis.BuildFlags(&c.flags)
}

func (c *RootCommand) Docs() ecdysis.Docs {
	return ecdysis.Docs{
		Short: "hubflow reads device telemetry from a hub and reacts to it",
		Long: `hubflow reads telemetry of IoT devices from a partitioned event hub, runs it through
a pipeline of filters and thresholds and executes an effect (display, forward
or device command) for every selected reading. Consumption is checkpointed per
partition so a restarted pipeline resumes where it left off.`,
	}
}

func (c *RootCommand) SubCommands() []ecdysis.Command {
	runCmd := &run.RunCommand{}
	return []ecdysis.Command{
		runCmd,
		&config.ConfigCommand{RunCmd: runCmd},
		&checkpoints.CheckpointsCommand{RunCmd: runCmd},
		&version.VersionCommand{},
	}
}
