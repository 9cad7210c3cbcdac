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

package log

const (
	ComponentField = "component"
	AttemptField   = "attempt"
	DurationField  = "duration"

	PartitionField     = "partition"
	OffsetField        = "offset"
	CheckpointField    = "checkpoint"
	DeviceIDField      = "device_id"
	SchemaTagField     = "schema_tag"
	StageField         = "stage"
	SkipReasonField    = "skip_reason"
	DecisionField      = "decision"
	PolicyStateField   = "policy_state"
	CommandNameField   = "command"
	ConsumerField      = "consumer"
	HubTypeField       = "hub_type"
	StoreTypeField     = "store_type"
	ServerAddressField = "address"
	RunIDField         = "run_id"
	PipelineIDField    = "pipeline_id"
)
