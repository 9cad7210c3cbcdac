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
	"io"
	"strconv"

	"github.com/alexeyco/simpletable"
	"github.com/conduitio/hubflow/cmd/hubflow/root/run"
	"github.com/conduitio/hubflow/pkg/checkpoint"
	"github.com/conduitio/hubflow/pkg/cursor"
	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/conduitio/ecdysis"
)

var (
	_ ecdysis.CommandWithExecute = (*ListCommand)(nil)
	_ ecdysis.CommandWithAliases = (*ListCommand)(nil)
	_ ecdysis.CommandWithDocs    = (*ListCommand)(nil)
	_ ecdysis.CommandWithFlags   = (*ListCommand)(nil)
	_ ecdysis.CommandWithConfig  = (*ListCommand)(nil)
)

type ListCommand struct {
	RunCmd *run.RunCommand
	// store overrides the configured checkpoint store.
	store checkpoint.Store
}

func (c *ListCommand) Docs() ecdysis.Docs {
	return ecdysis.Docs{
		Short: "List the checkpoints of the configured consumer",
		Long: `Lists the last acknowledged offset of every partition that has a checkpoint. A
restarted pipeline continues reading each partition at the offset shown in NEXT.`,
		Example: "hubflow checkpoints ls --checkpoints.type sqlite --checkpoints.sqlite.path ./data",
	}
}

func (c *ListCommand) Aliases() []string { return []string{"ls"} }

func (c *ListCommand) Usage() string { return "list" }

func (c *ListCommand) Config() ecdysis.Config { return c.RunCmd.Config() }

func (c *ListCommand) Flags() []ecdysis.Flag { return c.RunCmd.Flags() }

func (c *ListCommand) Execute(ctx context.Context) error {
	store, closeStore, err := openStore(ctx, c.RunCmd.Cfg, c.store)
	if err != nil {
		return err
	}
	defer closeStore()

	positions, err := store.List(ctx)
	if err != nil {
		return cerrors.Errorf("failed to list checkpoints: %w", err)
	}

	return displayCheckpoints(ecdysis.CobraCmdFromContext(ctx).OutOrStdout(), positions)
}

func displayCheckpoints(out io.Writer, positions []cursor.Position) error {
	if len(positions) == 0 {
		return nil
	}

	table := simpletable.New()
	table.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "PARTITION"},
			{Align: simpletable.AlignCenter, Text: "OFFSET"},
			{Align: simpletable.AlignCenter, Text: "NEXT"},
		},
	}

	for _, p := range positions {
		r := []*simpletable.Cell{
			{Align: simpletable.AlignRight, Text: strconv.Itoa(p.Partition)},
			{Align: simpletable.AlignRight, Text: strconv.FormatInt(p.Offset, 10)},
			{Align: simpletable.AlignRight, Text: strconv.FormatInt(p.Next(), 10)},
		}
		table.Body.Cells = append(table.Body.Cells, r)
	}
	table.SetStyle(simpletable.StyleCompact)
	_, err := fmt.Fprintln(out, table.String())
	return err
}
