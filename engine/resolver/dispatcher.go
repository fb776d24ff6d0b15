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

package resolver

import (
	"context"

	"github.com/pingcap/depflow/engine/jobsvc"
	"github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/pkg/errors"
)

// Dispatcher submits the target job of a complete resolver.
type Dispatcher struct {
	svc jobsvc.Service
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(svc jobsvc.Service) *Dispatcher {
	return &Dispatcher{svc: svc}
}

// Dispatch submits target with the collected inputs under the
// preallocated dependent id, so dispatching the same state twice submits
// one job. The target may itself describe a resolver.
func (d *Dispatcher) Dispatch(
	ctx context.Context, state *ResolverState, target model.JobDescription,
) (*model.TaskHandle, error) {
	if !state.Complete() {
		return nil, errors.ErrResolverNotComplete.GenWithStackByArgs(state.SelfID)
	}
	desc := target.WithID(state.DependentID)
	h, err := d.svc.Submit(ctx, &desc, state.Collected)
	if err != nil {
		return nil, errors.Trace(err)
	}
	dispatchCounter.WithLabelValues(desc.JobType).Inc()
	return h, nil
}
