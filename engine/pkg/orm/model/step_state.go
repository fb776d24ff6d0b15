// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package model

// StepType tells which kind of step machine a StepState belongs to.
type StepType = string

// Defines all step types
const (
	StepTypeResolver StepType = "resolver"
	StepTypePipeline StepType = "pipeline"
)

// StepState is the persisted state of a resumable step machine. State
// holds the json encoded state and is rewritten after every mutating step.
type StepState struct {
	Model
	ID    string   `json:"id" gorm:"column:id;type:varchar(128) not null;uniqueIndex:uidx_sid"`
	Type  StepType `json:"type" gorm:"column:step_type;type:varchar(32) not null;index:idx_type"`
	State []byte   `json:"state" gorm:"column:state;type:longblob"`
}

// StepStateUpdateColumns is the columns rewritten by an upsert.
var StepStateUpdateColumns = []string{"updated_at", "state"}
