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
	"encoding/json"
	"sort"
	"time"

	"github.com/pingcap/depflow/engine/jobsvc"
	"github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/engine/pkg/logutil"
	"github.com/pingcap/depflow/engine/pkg/orm"
	ormModel "github.com/pingcap/depflow/engine/pkg/orm/model"
	"github.com/pingcap/depflow/pkg/errors"
	"go.uber.org/zap"
)

// persistedRun is the json layout of a resolver run in the step state
// table.
type persistedRun struct {
	Target model.JobDescription `json:"target"`
	State  *ResolverState       `json:"state"`
}

// Run drives one resolver instance. It owns its ResolverState and the
// handle of the resolver, Step must not be called concurrently.
type Run struct {
	id     model.TaskID
	target model.JobDescription
	state  *ResolverState

	svc        jobsvc.Service
	finisher   jobsvc.Finisher
	store      orm.StepStateClient
	dispatcher *Dispatcher
	logger     *zap.Logger

	done   bool
	result error
}

func newRun(
	id model.TaskID,
	target model.JobDescription,
	state *ResolverState,
	svc jobsvc.Service,
	finisher jobsvc.Finisher,
	store orm.StepStateClient,
) *Run {
	return &Run{
		id:         id,
		target:     target,
		state:      state,
		svc:        svc,
		finisher:   finisher,
		store:      store,
		dispatcher: NewDispatcher(svc),
		logger:     logutil.NewLogger4Resolver(id),
	}
}

// ID returns the task id of the resolver instance.
func (r *Run) ID() string {
	return r.id
}

// State returns the current state. Callers must not modify it.
func (r *Run) State() *ResolverState {
	return r.state
}

// Result returns the failure of a finished run, nil if it dispatched its
// target.
func (r *Run) Result() error {
	return r.result
}

// Step advances the run by one request/await pass and dispatches the
// target once every dependency is resolved. It returns done once the
// resolver handle is terminal, with the failure reason if the resolver
// failed. An error with done unset is an I/O failure and the step is
// retried by the next call.
func (r *Run) Step(ctx context.Context) (done bool, err error) {
	if r.done {
		return true, nil
	}
	startTime := time.Now()
	defer func() {
		stepDurationHistogram.Observe(time.Since(startTime).Seconds())
	}()

	if r.result == nil && !r.state.Dispatched {
		mutated, err := r.resolve(ctx)
		if err != nil && !isFatal(err) {
			return false, err
		}
		if err != nil {
			r.result = err
		} else if mutated {
			if err := r.persist(ctx); err != nil {
				return false, err
			}
		}
	}

	switch {
	case r.result != nil:
		if err := r.fail(ctx, r.result); err != nil {
			return false, err
		}
		return true, r.result
	case r.state.Dispatched:
		if err := r.finish(ctx); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, nil
	}
}

// resolve runs the request phase, the await phase and, when the state
// becomes complete, the dispatch.
func (r *Run) resolve(ctx context.Context) (bool, error) {
	requested := r.state.Request()
	for _, req := range requested {
		r.logger.Info("awaiting dependency",
			zap.String("task-id", req.TaskID), zap.Int("link-id", req.LinkID))
	}

	handles := make(map[model.TaskID]*model.TaskHandle, len(r.state.Pending))
	for _, id := range r.state.PendingIDs() {
		h, err := r.svc.GetHandle(ctx, id)
		if err != nil {
			return false, errors.Trace(err)
		}
		handles[id] = h
	}

	chainLen := r.chainLen()
	changed, err := r.state.Observe(handles)
	if err != nil {
		return false, err
	}
	if n := r.chainLen() - chainLen; n > 0 {
		chaseCounter.Add(float64(n))
		r.logger.Info("dependency is a resolver, chase its dependent",
			zap.Any("not-yet-requested", r.state.NotYetRequested))
	}
	mutated := len(requested) > 0 || changed

	if r.state.Complete() {
		h, err := r.dispatcher.Dispatch(ctx, r.state, r.target)
		if err != nil {
			return mutated, err
		}
		r.state.Dispatched = true
		mutated = true
		r.logger.Info("dependent dispatched",
			zap.String("dependent-id", h.ID),
			zap.String("job-type", h.JobType),
			zap.Strings("inputs", inputNames(r.state.Collected)))
	}
	return mutated, nil
}

func (r *Run) chainLen() int {
	n := 0
	for _, chain := range r.state.Chains {
		n += len(chain)
	}
	return n
}

func (r *Run) finish(ctx context.Context) error {
	out, err := model.NewArtifact(r.id+"/"+model.DependentIDOutput, model.DependentIDOutput, r.state.DependentID)
	if err != nil {
		return err
	}
	err = r.finisher.FinishOk(ctx, r.id, map[string]model.Artifact{model.DependentIDOutput: out})
	if err != nil && !errors.Is(err, errors.ErrStatusRegression) {
		return err
	}
	r.logger.Info("resolver finished", zap.String("dependent-id", r.state.DependentID))
	runFinishedCounter.WithLabelValues("ok").Inc()
	return r.cleanup(ctx)
}

func (r *Run) fail(ctx context.Context, reason error) error {
	r.logger.Warn("resolver failed, no dependent is dispatched", zap.Error(reason))
	r.result = reason
	err := r.finisher.FinishFailed(ctx, r.id, reason)
	if err != nil && !errors.Is(err, errors.ErrStatusRegression) {
		return err
	}
	runFinishedCounter.WithLabelValues("failed").Inc()
	return r.cleanup(ctx)
}

func (r *Run) cleanup(ctx context.Context) error {
	r.done = true
	activeRunsGauge.Dec()
	if _, err := r.store.DeleteStepState(ctx, r.id); err != nil {
		// the state is dropped on the next recovery
		r.logger.Warn("delete resolver state failed", zap.Error(err))
	}
	return nil
}

func (r *Run) persist(ctx context.Context) error {
	bytes, err := json.Marshal(&persistedRun{Target: r.target, State: r.state})
	if err != nil {
		return errors.Trace(err)
	}
	return r.store.UpsertStepState(ctx, &ormModel.StepState{
		ID:    r.id,
		Type:  ormModel.StepTypeResolver,
		State: bytes,
	})
}

func decodeRun(st *ormModel.StepState) (*persistedRun, error) {
	var pr persistedRun
	if err := json.Unmarshal(st.State, &pr); err != nil {
		return nil, errors.Trace(err)
	}
	if pr.State == nil {
		return nil, errors.ErrInvalidArgument.GenWithStackByArgs("resolver state of " + st.ID + " is empty")
	}
	return &pr, nil
}

// isFatal tells errors that end the run from I/O errors worth retrying.
func isFatal(err error) bool {
	return !errors.Is(err, errors.ErrMetaOpFail) && !errors.Is(err, errors.ErrServiceClosed)
}

func inputNames(inputs map[string]model.Artifact) []string {
	ret := make([]string, 0, len(inputs))
	for name := range inputs {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}
