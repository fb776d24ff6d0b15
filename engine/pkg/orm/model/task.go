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

import (
	"encoding/json"

	engineModel "github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/pkg/errors"
)

// TaskRecord is the persisted form of a submitted task. The description and
// inputs are kept so that a restarted process can recover resolvers and
// report lost jobs.
type TaskRecord struct {
	Model
	ID           engineModel.TaskID     `json:"id" gorm:"column:id;type:varchar(128) not null;uniqueIndex:uidx_tid"`
	Kind         engineModel.TaskKind   `json:"kind" gorm:"column:kind;type:tinyint not null"`
	JobType      string                 `json:"job-type" gorm:"column:job_type;type:varchar(128) not null"`
	Status       engineModel.TaskStatus `json:"status" gorm:"column:status;type:tinyint not null;index:idx_status"`
	Description  []byte                 `json:"description" gorm:"column:description;type:longblob"`
	Inputs       []byte                 `json:"inputs" gorm:"column:inputs;type:longblob"`
	Outputs      []byte                 `json:"outputs" gorm:"column:outputs;type:longblob"`
	ErrorMessage string                 `json:"error-message" gorm:"column:error_message;type:text"`
}

// NewTaskRecord builds a running task record for desc.
func NewTaskRecord(
	id engineModel.TaskID, desc *engineModel.JobDescription, inputs map[string]engineModel.Artifact,
) (*TaskRecord, error) {
	descBytes, err := json.Marshal(desc)
	if err != nil {
		return nil, errors.Trace(err)
	}
	inputBytes, err := json.Marshal(inputs)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &TaskRecord{
		ID:          id,
		Kind:        desc.Kind,
		JobType:     desc.JobType,
		Status:      engineModel.TaskStatusRunning,
		Description: descBytes,
		Inputs:      inputBytes,
	}, nil
}

// ToHandle converts the record to the read-only handle view.
func (r *TaskRecord) ToHandle() (*engineModel.TaskHandle, error) {
	h := &engineModel.TaskHandle{
		ID:           r.ID,
		Kind:         r.Kind,
		JobType:      r.JobType,
		Status:       r.Status,
		ErrorMessage: r.ErrorMessage,
	}
	if len(r.Outputs) > 0 {
		if err := json.Unmarshal(r.Outputs, &h.Outputs); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return h, nil
}

// JobDescription decodes the persisted description.
func (r *TaskRecord) JobDescription() (*engineModel.JobDescription, error) {
	var desc engineModel.JobDescription
	if err := json.Unmarshal(r.Description, &desc); err != nil {
		return nil, errors.Trace(err)
	}
	return &desc, nil
}

// InputArtifacts decodes the persisted inputs.
func (r *TaskRecord) InputArtifacts() (map[string]engineModel.Artifact, error) {
	var inputs map[string]engineModel.Artifact
	if len(r.Inputs) == 0 {
		return inputs, nil
	}
	if err := json.Unmarshal(r.Inputs, &inputs); err != nil {
		return nil, errors.Trace(err)
	}
	return inputs, nil
}

// EncodeOutputs encodes outputs for the outputs column.
func EncodeOutputs(outputs map[string]engineModel.Artifact) ([]byte, error) {
	if len(outputs) == 0 {
		return nil, nil
	}
	bytes, err := json.Marshal(outputs)
	return bytes, errors.Trace(err)
}
