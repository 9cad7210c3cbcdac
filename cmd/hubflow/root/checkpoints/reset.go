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
	"fmt"
	"strconv"

	"github.com/conduitio/hubflow/cmd/hubflow/root/run"
	"github.com/conduitio/hubflow/pkg/checkpoint"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/ecdysis"
)

var (
	_ ecdysis.CommandWithExecute = (*ResetCommand)(nil)
	_ ecdysis.CommandWithDocs    = (*ResetCommand)(nil)
	_ ecdysis.CommandWithArgs    = (*ResetCommand)(nil)
	_ ecdysis.CommandWithFlags   = (*ResetCommand)(nil)
	_ ecdysis.CommandWithConfig  = (*ResetCommand)(nil)
)

type ResetArgs struct {
	Partitions []int
}

type ResetCommand struct {
	RunCmd *run.RunCommand
	args   ResetArgs
	// store overrides the configured checkpoint store.
	store checkpoint.Store
}

func (c *ResetCommand) Usage() string { return "reset" }

func (c *ResetCommand) Docs() ecdysis.Docs {
	return ecdysis.Docs{
		Short: "Reset the checkpoints of partitions",
		Long: `Removes the checkpoints of the given partitions. The next run reads these
partitions starting at --source.from-time.`,
		Example: "hubflow checkpoints reset 0 2",
	}
}

func (c *ResetCommand) Config() ecdysis.Config { return c.RunCmd.Config() }

func (c *ResetCommand) Flags() []ecdysis.Flag { return c.RunCmd.Flags() }

func (c *ResetCommand) Args(args []string) error {
	if len(args) == 0 {
		return cerrors.Errorf("requires at least one partition")
	}

	partitions := make([]int, len(args))
	for i, a := range args {
		p, err := strconv.Atoi(a)
		if err != nil || p < 0 {
			return cerrors.Errorf("invalid partition %q", a)
		}
		partitions[i] = p
	}
	c.args.Partitions = partitions
	return nil
}

func (c *ResetCommand) Execute(ctx context.Context) error {
	store, closeStore, err := openStore(ctx, c.RunCmd.Cfg, c.store)
	if err != nil {
		return err
	}
	defer closeStore()

	out := ecdysis.CobraCmdFromContext(ctx).OutOrStdout()
	for _, p := range c.args.Partitions {
		if err := store.Reset(ctx, p); err != nil {
			return cerrors.Errorf("failed to reset checkpoint of partition %d: %w", p, err)
		}
		_, _ = fmt.Fprintf(out, "checkpoint of partition %d reset\n", p)
	}
	return nil
}
