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

package jobsvc

import (
	"context"

	"github.com/pingcap/depflow/engine/model"
)

//go:generate mockgen -source service.go -destination mock/service_mock.go -package mock

// Service is the job execution service. It owns every TaskHandle, callers
// only submit descriptions and poll handles.
type Service interface {
	// Submit starts the described task asynchronously and returns its
	// handle, normally Running. Submitting a description whose ID is
	// already known is a no-op returning the existing handle.
	Submit(ctx context.Context, desc *model.JobDescription, inputs map[string]model.Artifact) (*model.TaskHandle, error)
	// GetHandle returns a snapshot of the task, ErrTaskNotFound if unknown.
	GetHandle(ctx context.Context, id model.TaskID) (*model.TaskHandle, error)
}

// Launcher starts tasks of one non-terminal kind. The task record is
// already persisted as Running when Launch is called, the launcher must
// eventually finish it through a Finisher.
type Launcher interface {
	Launch(ctx context.Context, id model.TaskID, desc *model.JobDescription, inputs map[string]model.Artifact) error
}

// Finisher moves a running task to a terminal status.
type Finisher interface {
	FinishOk(ctx context.Context, id model.TaskID, outputs map[string]model.Artifact) error
	FinishFailed(ctx context.Context, id model.TaskID, reason error) error
}
