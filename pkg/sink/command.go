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

package sink

import (
	"context"

	"github.com/conduitio/hubflow/pkg/foundation/log"
	"github.com/conduitio/hubflow/pkg/pipeline"
)

// CommandSender sends a command to a device.
type CommandSender interface {
	Send(ctx context.Context, deviceID, name string, props map[string]string) error
}

// Command is an effect that sends the same command to the device a record
// originates from.
type Command[T any] struct {
	sender CommandSender
	name   string
	props  map[string]string
}

func NewCommand[T any](s CommandSender, name string, props map[string]string) *Command[T] {
	return &Command[T]{
		sender: s,
		name:   name,
		props:  props,
	}
}

func (c *Command[T]) Type() string { return "command" }

func (c *Command[T]) Apply(ctx context.Context, rec pipeline.Record[T]) error {
	return c.sender.Send(ctx, rec.Message.DeviceID, c.name, c.props)
}

// LogSender is a CommandSender that only logs the commands.
type LogSender struct {
	logger log.CtxLogger
}

func NewLogSender(logger log.CtxLogger) *LogSender {
	return &LogSender{logger: logger.WithComponent("sink.LogSender")}
}

func (s *LogSender) Send(ctx context.Context, deviceID, name string, props map[string]string) error {
	s.logger.Info(ctx).
		Str(log.DeviceIDField, deviceID).
		Str(log.CommandNameField, name).
		Interface("properties", props).
		Msg("sending command")
	return nil
}
