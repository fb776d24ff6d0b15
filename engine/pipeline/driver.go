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

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pingcap/depflow/engine/jobsvc"
	"github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/engine/pkg/logutil"
	"github.com/pingcap/depflow/engine/pkg/orm"
	ormModel "github.com/pingcap/depflow/engine/pkg/orm/model"
	"github.com/pingcap/depflow/pkg/errors"
	"go.uber.org/zap"
)

// maxSettleDepth bounds the resolver chain followed by Settled.
const maxSettleDepth = 64

// Driver submits the bakery stages iteration by iteration. Every stage
// after the first iterations is a resolver waiting on earlier stages, so
// the driver only gates on the bake stage of the current iteration.
type Driver struct {
	state *State

	svc    jobsvc.Service
	data   *jobsvc.DataRegistry
	store  orm.StepStateClient
	logger *zap.Logger

	// ids already chased to a FinishedOk job
	settled map[model.TaskID]struct{}
}

// NewDriver creates the driver id or resumes it from its persisted state.
// start and end are ignored when resuming.
func NewDriver(
	ctx context.Context,
	id string,
	start, end int,
	svc jobsvc.Service,
	data *jobsvc.DataRegistry,
	store orm.StepStateClient,
) (*Driver, error) {
	if id == "" {
		return nil, errors.ErrInvalidArgument.GenWithStackByArgs("pipeline id is empty")
	}
	if start < 1 {
		return nil, errors.ErrInvalidArgument.GenWithStackByArgs(
			fmt.Sprintf("start iteration %d is less than 1", start))
	}
	d := &Driver{
		svc:     svc,
		data:    data,
		store:   store,
		logger:  logutil.NewLogger4Pipeline(id),
		settled: make(map[model.TaskID]struct{}),
	}

	st, err := store.GetStepStateByID(ctx, id)
	switch {
	case err == nil:
		var state State
		if err := json.Unmarshal(st.State, &state); err != nil {
			return nil, errors.Trace(err)
		}
		if state.Start != start || state.End != end {
			d.logger.Warn("resume pipeline with persisted bounds",
				zap.Int("start-iteration", state.Start), zap.Int("end-iteration", state.End))
		}
		d.state = &state
		d.logger.Info("pipeline resumed",
			zap.Stringer("phase", state.Phase), zap.Int("iteration", state.Iteration))
	case orm.IsNotFoundError(err):
		d.state = newState(id, start, end)
	default:
		return nil, err
	}
	return d, nil
}

// ID implements eventloop.Stepper.ID.
func (d *Driver) ID() string {
	return "pipeline/" + d.state.ID
}

// State returns the current state. Callers must not modify it.
func (d *Driver) State() *State {
	return d.state
}

// Step implements eventloop.Stepper.Step.
func (d *Driver) Step(ctx context.Context) (bool, error) {
	var err error
	switch d.state.Phase {
	case PhaseInit:
		err = d.init(ctx)
	case PhaseIterationRunning:
		err = d.iterate(ctx)
	case PhaseDone:
		return true, d.Err()
	default:
		err = errors.ErrInvalidArgument.GenWithStackByArgs("unknown pipeline phase " + d.state.Phase.String())
	}
	if err == nil {
		return d.state.Phase == PhaseDone, nil
	}
	if errors.Is(err, errors.ErrMetaOpFail) || errors.Is(err, errors.ErrServiceClosed) {
		return false, err
	}
	return d.fail(ctx, err)
}

// Err returns the failure of a finished driver.
func (d *Driver) Err() error {
	if d.state.Error == "" {
		return nil
	}
	return errors.ErrPipelineFailed.GenWithStackByArgs(d.state.ID, d.state.Error)
}

func (d *Driver) init(ctx context.Context) error {
	seeds := make(map[string]model.Artifact, len(seedLabels))
	for _, label := range seedLabels {
		a, err := d.data.GetOrCreate(ctx, label)
		if err != nil {
			return err
		}
		seeds[label] = a
	}
	d.state.Seeds = seeds
	d.state.Phase = PhaseIterationRunning
	d.state.Iteration = d.state.Start
	d.logger.Info("pipeline started",
		zap.Int("start-iteration", d.state.Start), zap.Int("end-iteration", d.state.End))
	return d.persist(ctx)
}

func (d *Driver) iterate(ctx context.Context) error {
	if err := d.checkWatched(ctx); err != nil {
		return err
	}
	if d.state.Iteration > d.state.End {
		d.state.Phase = PhaseDone
		pipelineResultCounter.WithLabelValues("ok").Inc()
		d.logger.Info("pipeline done", zap.Int("iterations", d.state.Iterations()))
		return d.persist(ctx)
	}

	if !d.state.InProgress {
		if err := d.submitIteration(ctx); err != nil {
			return err
		}
		return d.persist(ctx)
	}

	bakeID, _ := d.state.Last(StageBakeBread, 1)
	if d.watched(bakeID) {
		return nil
	}
	d.logger.Info("bread baked", zap.Int("iteration", d.state.Iteration))
	iterationCounter.Inc()
	d.state.Iteration++
	d.state.InProgress = false
	return d.persist(ctx)
}

// checkWatched drops watched ids that finished ok and fails on the first
// failed one.
func (d *Driver) checkWatched(ctx context.Context) error {
	if len(d.state.Watch) == 0 {
		return nil
	}
	remaining := make([]model.TaskID, 0, len(d.state.Watch))
	for _, id := range d.state.Watch {
		h, err := d.svc.GetHandle(ctx, id)
		if err != nil {
			return err
		}
		switch h.Status {
		case model.TaskStatusFinishedOk:
		case model.TaskStatusFinishedFailed:
			return errors.ErrDependencyFailed.GenWithStackByArgs(id)
		default:
			remaining = append(remaining, id)
		}
	}
	d.state.Watch = remaining
	return nil
}

func (d *Driver) watched(id model.TaskID) bool {
	for _, w := range d.state.Watch {
		if w == id {
			return true
		}
	}
	return false
}

// stageID returns the deterministic id of a stage submission, so that
// repeating a submission after a restart is a no-op.
func (d *Driver) stageID(stage string) model.TaskID {
	return fmt.Sprintf("%s/%d/%s", d.state.ID, d.state.Iteration, strings.TrimPrefix(stage, "bakery."))
}

func (d *Driver) target(stage string) model.JobDescription {
	return model.NewTerminalDescription(stage).
		WithID(d.stageID(stage)+"/job").
		WithLabel("pipeline", d.state.ID).
		WithLabel("iteration", fmt.Sprint(d.state.Iteration))
}

// submitIteration submits the six stages of the current iteration.
func (d *Driver) submitIteration(ctx context.Context) error {
	k := d.state.Relative()
	ids := make(map[string]model.TaskID, len(Stages))
	seeds := d.state.Seeds

	var err error
	if k <= 2 {
		ids[StageBuyIngredients], err = d.submitDirect(ctx, StageBuyIngredients,
			map[string]model.Artifact{"money": seeds[SeedMoney]})
	} else {
		sellID, _ := d.state.Last(StageSellBread, 2)
		ids[StageBuyIngredients], err = d.submitResolver(ctx, StageBuyIngredients,
			[]model.DependencyLink{model.Link(sellID, model.Map("money", "money"))}, nil)
	}
	if err != nil {
		return err
	}

	if k <= 1 {
		ids[StagePreHeatOven], err = d.submitDirect(ctx, StagePreHeatOven,
			map[string]model.Artifact{"oven_cold": seeds[SeedOvenCold]})
	} else {
		cleanID, _ := d.state.Last(StageCleanOven, 1)
		ids[StagePreHeatOven], err = d.submitResolver(ctx, StagePreHeatOven,
			[]model.DependencyLink{model.Link(cleanID, model.Map("oven_cold", "oven_cold"))}, nil)
	}
	if err != nil {
		return err
	}

	ids[StageMakeDough], err = d.submitResolver(ctx, StageMakeDough,
		[]model.DependencyLink{
			model.Link(ids[StageBuyIngredients], model.Same("flour", "water", "salt")...),
		}, nil)
	if err != nil {
		return err
	}

	bakeDeps := []model.DependencyLink{
		model.Link(ids[StagePreHeatOven], model.Map("oven_hot", "oven_hot")),
		model.Link(ids[StageMakeDough], model.Map("dough", "dough")),
	}
	var passThrough map[string]model.Artifact
	if k > 1 {
		cleanID, _ := d.state.Last(StageCleanOven, 1)
		bakeDeps = append(bakeDeps, model.Link(cleanID, model.Map("oven_clean", "oven_clean")))
	} else {
		passThrough = map[string]model.Artifact{"oven_clean": seeds[SeedOvenClean]}
	}
	ids[StageBakeBread], err = d.submitResolver(ctx, StageBakeBread, bakeDeps, passThrough)
	if err != nil {
		return err
	}

	ids[StageCleanOven], err = d.submitResolver(ctx, StageCleanOven,
		[]model.DependencyLink{
			model.Link(ids[StagePreHeatOven], model.Map("oven_hot", "oven_hot")),
			model.Link(ids[StageBakeBread], model.Map("oven_dirty", "oven_dirty")),
		}, nil)
	if err != nil {
		return err
	}

	ids[StageSellBread], err = d.submitResolver(ctx, StageSellBread,
		[]model.DependencyLink{model.Link(ids[StageBakeBread], model.Map("bread", "bread"))}, nil)
	if err != nil {
		return err
	}

	for _, stage := range Stages {
		d.state.Submitted[stage] = append(d.state.Submitted[stage], ids[stage])
		d.state.Watch = append(d.state.Watch, ids[stage])
	}
	d.state.InProgress = true
	d.logger.Info("iteration submitted",
		zap.Int("iteration", d.state.Iteration), zap.Int("relative-iteration", k))
	return nil
}

func (d *Driver) submitDirect(
	ctx context.Context, stage string, inputs map[string]model.Artifact,
) (model.TaskID, error) {
	desc := d.target(stage).WithID(d.stageID(stage))
	h, err := d.svc.Submit(ctx, &desc, inputs)
	if err != nil {
		return "", err
	}
	stageSubmittedCounter.WithLabelValues(stage, model.TaskKindTerminal.String()).Inc()
	return h.ID, nil
}

func (d *Driver) submitResolver(
	ctx context.Context, stage string, deps []model.DependencyLink, passThrough map[string]model.Artifact,
) (model.TaskID, error) {
	desc := model.NewResolverDescription(d.target(stage), deps, passThrough).WithID(d.stageID(stage))
	h, err := d.svc.Submit(ctx, &desc, nil)
	if err != nil {
		return "", err
	}
	stageSubmittedCounter.WithLabelValues(stage, model.TaskKindResolver.String()).Inc()
	return h.ID, nil
}

// Settled reports whether every submitted stage has been chased to a
// terminal job that finished ok. A failed stage is returned as an error.
func (d *Driver) Settled(ctx context.Context) (bool, error) {
	if err := d.Err(); err != nil {
		return false, err
	}
	for _, stage := range Stages {
		for _, id := range d.state.Submitted[stage] {
			if _, ok := d.settled[id]; ok {
				continue
			}
			ok, err := d.chase(ctx, id)
			if err != nil || !ok {
				return false, err
			}
			d.settled[id] = struct{}{}
		}
	}
	return true, nil
}

func (d *Driver) chase(ctx context.Context, id model.TaskID) (bool, error) {
	for i := 0; i <= maxSettleDepth; i++ {
		h, err := d.svc.GetHandle(ctx, id)
		if err != nil {
			return false, err
		}
		if !h.IsTerminal() {
			return false, nil
		}
		if h.Status == model.TaskStatusFinishedFailed {
			return false, errors.ErrDependencyFailed.GenWithStackByArgs(id)
		}
		if h.Kind != model.TaskKindResolver {
			return true, nil
		}
		if id, err = h.DependentID(); err != nil {
			return false, err
		}
	}
	return false, errors.ErrCyclicDependency.GenWithStackByArgs(id)
}

func (d *Driver) fail(ctx context.Context, reason error) (bool, error) {
	d.logger.Warn("pipeline failed", zap.Int("iteration", d.state.Iteration), zap.Error(reason))
	d.state.Phase = PhaseDone
	d.state.Error = reason.Error()
	pipelineResultCounter.WithLabelValues("failed").Inc()
	if err := d.persist(ctx); err != nil {
		d.logger.Warn("persist pipeline state failed", zap.Error(err))
	}
	return true, reason
}

func (d *Driver) persist(ctx context.Context) error {
	bytes, err := json.Marshal(d.state)
	if err != nil {
		return errors.Trace(err)
	}
	return d.store.UpsertStepState(ctx, &ormModel.StepState{
		ID:    d.state.ID,
		Type:  ormModel.StepTypePipeline,
		State: bytes,
	})
}
