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
	"fmt"

	"github.com/pingcap/depflow/pkg/errors"
)

type (
	// TaskID identifies a submitted unit of work, either a terminal job or
	// a resolver instance. It is assigned at submission and never changes.
	TaskID = string
	// TaskStatus is the monotonic status of a task.
	TaskStatus int8
	// TaskKind tells terminal jobs apart from resolver instances.
	TaskKind int8
)

// Defines all task statuses.
// NOTICE: DO NOT CHANGE the values, they are persisted in the metastore.
const (
	TaskStatusRunning = TaskStatus(iota + 1)
	TaskStatusFinishedOk
	TaskStatusFinishedFailed
)

// Defines all task kinds.
// NOTICE: DO NOT CHANGE the values, they are persisted in the metastore.
const (
	// TaskKindTerminal is a leaf unit of actual work.
	TaskKindTerminal = TaskKind(iota + 1)
	// TaskKindResolver is a resolver instance. Its real contribution is
	// the job it eventually dispatches.
	TaskKindResolver
)

// DependentIDOutput is the single designated output of a resolver
// instance. Its value is the TaskID of the dispatched job.
const DependentIDOutput = "dependent_id"

var statusStringify = [...]string{
	0:                        "",
	TaskStatusRunning:        "Running",
	TaskStatusFinishedOk:     "FinishedOk",
	TaskStatusFinishedFailed: "FinishedFailed",
}

var kindStringify = [...]string{
	0:                "",
	TaskKindTerminal: "Terminal",
	TaskKindResolver: "Resolver",
}

var (
	toTaskStatus map[string]TaskStatus
	toTaskKind   map[string]TaskKind
)

func init() {
	toTaskStatus = make(map[string]TaskStatus, len(statusStringify))
	for i, s := range statusStringify {
		toTaskStatus[s] = TaskStatus(i)
	}
	toTaskKind = make(map[string]TaskKind, len(kindStringify))
	for i, s := range kindStringify {
		toTaskKind[s] = TaskKind(i)
	}
}

// String implements fmt.Stringer interface
func (s TaskStatus) String() string {
	if int(s) >= len(statusStringify) || s < 0 {
		return fmt.Sprintf("Unknown TaskStatus %d", s)
	}
	return statusStringify[s]
}

// IsTerminal returns whether no further transition can happen.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusFinishedOk || s == TaskStatusFinishedFailed
}

// MarshalJSON marshals the enum as a quoted json string
func (s TaskStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON unmashals a quoted json string to the enum value
func (s *TaskStatus) UnmarshalJSON(b []byte) error {
	var j string
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	status, err := ParseTaskStatus(j)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// ParseTaskStatus converts the string form of a status back to the enum.
func ParseTaskStatus(str string) (TaskStatus, error) {
	s, ok := toTaskStatus[str]
	if !ok || s == 0 {
		return 0, errors.Errorf("Unknown TaskStatus %s", str)
	}
	return s, nil
}

// String implements fmt.Stringer interface
func (k TaskKind) String() string {
	if int(k) >= len(kindStringify) || k < 0 {
		return fmt.Sprintf("Unknown TaskKind %d", k)
	}
	return kindStringify[k]
}

// MarshalJSON marshals the enum as a quoted json string
func (k TaskKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON unmashals a quoted json string to the enum value
func (k *TaskKind) UnmarshalJSON(b []byte) error {
	var (
		j  string
		ok bool
	)
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*k, ok = toTaskKind[j]
	if !ok || *k == 0 {
		return errors.Errorf("Unknown TaskKind %s", j)
	}
	return nil
}

// TaskHandle is a read-only snapshot of one submitted task. The job
// execution service owns the underlying record; holders of a TaskHandle
// only poll it.
type TaskHandle struct {
	ID      TaskID     `json:"id"`
	Kind    TaskKind   `json:"kind"`
	JobType string     `json:"job-type"`
	Status  TaskStatus `json:"status"`

	// Outputs is only set once Status is TaskStatusFinishedOk.
	Outputs      map[string]Artifact `json:"outputs,omitempty"`
	ErrorMessage string              `json:"error-message,omitempty"`
}

// IsTerminal returns whether the task has finished, successfully or not.
func (h *TaskHandle) IsTerminal() bool {
	return h.Status.IsTerminal()
}

// Output returns the named output of a successfully finished task.
func (h *TaskHandle) Output(name string) (Artifact, bool) {
	if h.Status != TaskStatusFinishedOk {
		return Artifact{}, false
	}
	a, ok := h.Outputs[name]
	return a, ok
}

// DependentID returns the id of the job a finished resolver instance
// dispatched.
func (h *TaskHandle) DependentID() (TaskID, error) {
	if h.Kind != TaskKindResolver {
		return "", errors.ErrInvalidArgument.GenWithStackByArgs(
			fmt.Sprintf("task %s is not a resolver instance", h.ID))
	}
	a, ok := h.Output(DependentIDOutput)
	if !ok {
		return "", errors.ErrMissingOutput.GenWithStackByArgs(h.ID, DependentIDOutput)
	}
	var id TaskID
	if err := a.Decode(&id); err != nil {
		return "", errors.Trace(err)
	}
	return id, nil
}

// Clone returns a deep copy of the handle.
func (h *TaskHandle) Clone() *TaskHandle {
	ret := *h
	if h.Outputs != nil {
		ret.Outputs = make(map[string]Artifact, len(h.Outputs))
		for k, v := range h.Outputs {
			ret.Outputs[k] = v
		}
	}
	return &ret
}
