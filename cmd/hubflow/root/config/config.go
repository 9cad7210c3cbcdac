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

package config

import (
	"context"
	"fmt"
	"io"
	"reflect"

	"github.com/conduitio/hubflow/cmd/hubflow/root/run"
	"github.com/conduitio/ecdysis"
)

var (
	_ ecdysis.CommandWithExecute = (*ConfigCommand)(nil)
	_ ecdysis.CommandWithDocs    = (*ConfigCommand)(nil)
	_ ecdysis.CommandWithFlags   = (*ConfigCommand)(nil)
	_ ecdysis.CommandWithConfig  = (*ConfigCommand)(nil)
)

type ConfigCommand struct {
	RunCmd *run.RunCommand
}

func (c *ConfigCommand) Config() ecdysis.Config {
	return c.RunCmd.Config()
}

func (c *ConfigCommand) Flags() []ecdysis.Flag {
	return c.RunCmd.Flags()
}

func (c *ConfigCommand) Docs() ecdysis.Docs {
	return ecdysis.Docs{
		Short: "Shows the configuration to be used when running hubflow.",
		Long: `hubflow runs based on the default configuration jointly with a provided configuration
file (optional), the set environment variables, and the flags used. This command
shows the configuration that will be used.`,
	}
}

func (c *ConfigCommand) Usage() string { return "config" }

func (c *ConfigCommand) Execute(ctx context.Context) error {
	out := ecdysis.CobraCmdFromContext(ctx).OutOrStdout()
	return printStruct(out, reflect.ValueOf(c.RunCmd.Cfg))
}

// printStruct prints all fields with a long tag as "name: value", empty values
// are skipped.
func printStruct(out io.Writer, v reflect.Value) error {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if fieldValue.Kind() == reflect.Struct {
			if err := printStruct(out, fieldValue); err != nil {
				return err
			}
			continue
		}

		longName := field.Tag.Get("long")
		if longName == "" {
			continue
		}
		value := fmt.Sprintf("%v", fieldValue.Interface())
		if value == "" {
			continue
		}
		if _, err := fmt.Fprintf(out, "%s: %s\n", longName, value); err != nil {
			return err
		}
	}
	return nil
}
