// Copyright © 2024 Meroxa, Inc.
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

package checkpoints

import (
	"context"

	"github.com/conduitio/hubflow/cmd/hubflow/root/run"
	"github.com/conduitio/hubflow/pkg/checkpoint"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/hubflow/pkg/hubflow"
	"github.com/conduitio/ecdysis"
)

var (
	_ ecdysis.CommandWithDocs        = (*CheckpointsCommand)(nil)
	_ ecdysis.CommandWithSubCommands = (*CheckpointsCommand)(nil)
	_ ecdysis.CommandWithAliases     = (*CheckpointsCommand)(nil)
)

type CheckpointsCommand struct {
	RunCmd *run.RunCommand
}

func (c *CheckpointsCommand) Aliases() []string { return []string{"checkpoint"} }

func (c *CheckpointsCommand) SubCommands() []ecdysis.Command {
	return []ecdysis.Command{
		&ListCommand{RunCmd: c.RunCmd},
		&ResetCommand{RunCmd: c.RunCmd},
	}
}

func (c *CheckpointsCommand) Usage() string { return "checkpoints" }

func (c *CheckpointsCommand) Docs() ecdysis.Docs {
	return ecdysis.Docs{
		Short: "Manage the checkpoints of the configured consumer",
		Long: `Checkpoints store the last acknowledged offset of every partition. They are
read from the checkpoint store configured with the same flags, environment
variables and config file as 'hubflow run'. hubflow should not be running while
checkpoints are reset.`,
	}
}

// openStore opens the checkpoint store configured in cfg. Store is used
// instead if it is not nil.
func openStore(ctx context.Context, cfg hubflow.Config, store checkpoint.Store) (checkpoint.Store, func(), error) {
	if store != nil {
		return store, func() {}, nil
	}
	s, err := hubflow.NewStore(ctx, cfg, log.Nop())
	if err != nil {
		return nil, nil, cerrors.Errorf("failed to open checkpoint store: %w", err)
	}
	return s, func() { _ = s.Close() }, nil
}
