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

	"github.com/pingcap/depflow/engine/eventloop"
	"github.com/pingcap/depflow/engine/jobsvc"
	"github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/engine/pkg/orm"
	ormModel "github.com/pingcap/depflow/engine/pkg/orm/model"
	"github.com/pingcap/depflow/engine/pkg/uuid"
	"github.com/pingcap/depflow/pkg/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Manager launches resolver instances submitted to the job execution
// service and schedules their runs. It implements jobsvc.Launcher for
// model.TaskKindResolver.
type Manager struct {
	svc      jobsvc.Service
	finisher jobsvc.Finisher
	tasks    orm.TaskClient
	store    orm.StepStateClient
	sched    *eventloop.Scheduler
	idGen    uuid.Generator

	maxChaseDepth int
}

var _ jobsvc.Launcher = (*Manager)(nil)

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithMaxChaseDepth bounds the number of resolvers chased per link.
func WithMaxChaseDepth(depth int) ManagerOption {
	return func(m *Manager) {
		m.maxChaseDepth = depth
	}
}

// WithIDGenerator sets the generator of dependent ids.
func WithIDGenerator(idGen uuid.Generator) ManagerOption {
	return func(m *Manager) {
		m.idGen = idGen
	}
}

// NewManager creates a Manager. metaCli persists resolver states and is
// scanned on Recover.
func NewManager(
	svc jobsvc.Service,
	finisher jobsvc.Finisher,
	metaCli orm.Client,
	sched *eventloop.Scheduler,
	opts ...ManagerOption,
) *Manager {
	m := &Manager{
		svc:           svc,
		finisher:      finisher,
		tasks:         metaCli,
		store:         metaCli,
		sched:         sched,
		idGen:         uuid.NewGenerator(),
		maxChaseDepth: DefaultMaxChaseDepth,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Launch implements jobsvc.Launcher.Launch. The initial state is persisted
// before the run is scheduled, so a run that dispatched anything can
// always be recovered.
func (m *Manager) Launch(
	ctx context.Context, id model.TaskID, desc *model.JobDescription, inputs map[string]model.Artifact,
) error {
	if desc.Kind != model.TaskKindResolver || desc.Resolve == nil {
		return errors.ErrInvalidArgument.GenWithStackByArgs("task " + id + " is not a resolver")
	}
	dependentID := desc.Resolve.Target.ID
	if dependentID == "" {
		dependentID = m.idGen.NewString()
	}
	state, err := NewResolverState(id, dependentID, desc.Resolve, inputs, m.maxChaseDepth)
	if err != nil {
		return err
	}
	run := newRun(id, desc.Resolve.Target, state, m.svc, m.finisher, m.store)
	if err := run.persist(ctx); err != nil {
		return err
	}
	m.schedule(run)
	return nil
}

// Recover reloads the runs left by a previous process. States whose
// resolver is already terminal or unknown are dropped. Running resolvers
// without a state never dispatched anything and are launched again.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	states, err := m.store.QueryStepStatesByType(ctx, ormModel.StepTypeResolver)
	if err != nil {
		return 0, err
	}
	recovered := 0
	withState := make(map[model.TaskID]struct{}, len(states))
	for _, st := range states {
		withState[st.ID] = struct{}{}
		h, err := m.svc.GetHandle(ctx, st.ID)
		if err != nil && !errors.Is(err, errors.ErrTaskNotFound) {
			return recovered, err
		}
		if err != nil || h.IsTerminal() {
			log.Info("drop stale resolver state", zap.String("resolver-id", st.ID))
			if _, err := m.store.DeleteStepState(ctx, st.ID); err != nil {
				return recovered, err
			}
			continue
		}
		pr, err := decodeRun(st)
		if err != nil {
			return recovered, err
		}
		if m.schedule(newRun(st.ID, pr.Target, pr.State, m.svc, m.finisher, m.store)) {
			recovered++
		}
	}

	recs, err := m.tasks.QueryTasksByStatus(ctx, model.TaskStatusRunning)
	if err != nil {
		return recovered, err
	}
	for _, rec := range recs {
		if rec.Kind != model.TaskKindResolver {
			continue
		}
		if _, ok := withState[rec.ID]; ok {
			continue
		}
		desc, err := rec.JobDescription()
		if err != nil {
			return recovered, err
		}
		inputs, err := rec.InputArtifacts()
		if err != nil {
			return recovered, err
		}
		if err := m.Launch(ctx, rec.ID, desc, inputs); err != nil {
			log.Warn("relaunch resolver failed", zap.String("resolver-id", rec.ID), zap.Error(err))
			if ferr := m.finisher.FinishFailed(ctx, rec.ID, err); ferr != nil {
				return recovered, ferr
			}
			continue
		}
		recovered++
	}
	log.Info("resolver runs recovered", zap.Int("count", recovered))
	return recovered, nil
}

func (m *Manager) schedule(run *Run) bool {
	if !m.sched.Add(run) {
		log.Warn("resolver run is already scheduled", zap.String("resolver-id", run.ID()))
		return false
	}
	activeRunsGauge.Inc()
	return true
}
