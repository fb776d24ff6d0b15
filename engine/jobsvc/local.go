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
	"sync"
	"time"

	"github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/engine/pkg/logutil"
	"github.com/pingcap/depflow/engine/pkg/orm"
	ormModel "github.com/pingcap/depflow/engine/pkg/orm/model"
	"github.com/pingcap/depflow/engine/pkg/uuid"
	"github.com/pingcap/depflow/pkg/errors"
	plogutil "github.com/pingcap/depflow/pkg/logutil"
	"github.com/pingcap/depflow/pkg/retry"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	defaultWorkerConcurrency = 4
	finishTaskTimeout        = 10 * time.Second

	finishBackoffBaseDelayInMs = 10
	finishBackoffMaxDelayInMs  = 1000
)

// Option customizes a LocalService.
type Option func(*LocalService)

// WithIDGenerator sets the generator of task and artifact ids.
func WithIDGenerator(idGen uuid.Generator) Option {
	return func(s *LocalService) {
		s.idGen = idGen
	}
}

// LocalService is an in-process Service. Terminal jobs run on goroutines
// bounded by a weighted semaphore, other kinds are handed to launchers.
// Every handle lives in the metastore.
type LocalService struct {
	metaCli  orm.TaskClient
	registry Registry
	idGen    uuid.Generator
	sem      *semaphore.Weighted
	logger   *zap.Logger

	mu        sync.RWMutex
	launchers map[model.TaskKind]Launcher

	ctx     context.Context
	cancel  context.CancelFunc
	eg      errgroup.Group
	closed  atomic.Bool
	running atomic.Int64
}

var (
	_ Service  = (*LocalService)(nil)
	_ Finisher = (*LocalService)(nil)
)

// NewLocalService creates a LocalService running at most concurrency
// terminal jobs at a time.
func NewLocalService(metaCli orm.TaskClient, registry Registry, concurrency int, opts ...Option) *LocalService {
	if concurrency <= 0 {
		concurrency = defaultWorkerConcurrency
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &LocalService{
		metaCli:   metaCli,
		registry:  registry,
		idGen:     uuid.NewGenerator(),
		sem:       semaphore.NewWeighted(int64(concurrency)),
		logger:    logutil.NewLogger4Service(),
		launchers: make(map[model.TaskKind]Launcher),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterLauncher sets the launcher of a non-terminal task kind.
func (s *LocalService) RegisterLauncher(kind model.TaskKind, launcher Launcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launchers[kind] = launcher
}

func (s *LocalService) getLauncher(kind model.TaskKind) (Launcher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	launcher, ok := s.launchers[kind]
	if !ok {
		return nil, errors.ErrLauncherNotFound.GenWithStackByArgs(kind.String())
	}
	return launcher, nil
}

// MarkLostJobs fails every terminal job left Running by a previous
// process. It must be called before the first Submit.
func (s *LocalService) MarkLostJobs(ctx context.Context) (int, error) {
	recs, err := s.metaCli.QueryTasksByStatus(ctx, model.TaskStatusRunning)
	if err != nil {
		return 0, err
	}
	lost := 0
	for _, rec := range recs {
		if rec.Kind != model.TaskKindTerminal {
			continue
		}
		err := s.FinishFailed(ctx, rec.ID, errors.ErrJobLost.GenWithStackByArgs(rec.ID))
		if err != nil && !errors.Is(err, errors.ErrStatusRegression) {
			return lost, err
		}
		s.logger.Warn("job lost on restart",
			zap.String("job-id", rec.ID), zap.String("job-type", rec.JobType))
		lost++
	}
	return lost, nil
}

// Submit implements Service.Submit
func (s *LocalService) Submit(
	ctx context.Context, desc *model.JobDescription, inputs map[string]model.Artifact,
) (*model.TaskHandle, error) {
	if s.closed.Load() {
		return nil, errors.ErrServiceClosed.GenWithStackByArgs()
	}
	if desc == nil {
		return nil, errors.ErrInvalidArgument.GenWithStackByArgs("job description is nil")
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	var (
		fn       JobFunc
		launcher Launcher
		err      error
	)
	switch desc.Kind {
	case model.TaskKindTerminal:
		fn, err = s.registry.GetJobFunc(desc.JobType)
	default:
		launcher, err = s.getLauncher(desc.Kind)
	}
	if err != nil {
		return nil, err
	}

	id := desc.ID
	if id == "" {
		id = s.idGen.NewString()
	}
	rec, err := ormModel.NewTaskRecord(id, desc, inputs)
	if err != nil {
		return nil, err
	}
	created, err := s.metaCli.InsertTask(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !created {
		s.logger.Info("task already submitted, skip",
			zap.String("task-id", id), zap.Stringer("kind", desc.Kind))
		return s.GetHandle(ctx, id)
	}
	taskSubmittedCounter.WithLabelValues(desc.Kind.String()).Inc()
	s.logger.Info("task submitted",
		zap.String("task-id", id),
		zap.Stringer("kind", desc.Kind),
		zap.String("job-type", desc.JobType))

	if fn != nil {
		s.startJob(id, desc.JobType, fn, inputs)
	} else if err := launcher.Launch(ctx, id, desc, inputs); err != nil {
		s.logger.Warn("launch task failed", zap.String("task-id", id), zap.Error(err))
		return nil, multierr.Append(err, s.FinishFailed(ctx, id, err))
	}
	return rec.ToHandle()
}

// GetHandle implements Service.GetHandle
func (s *LocalService) GetHandle(ctx context.Context, id model.TaskID) (*model.TaskHandle, error) {
	rec, err := s.metaCli.GetTaskByID(ctx, id)
	if err != nil {
		if orm.IsNotFoundError(err) {
			return nil, errors.ErrTaskNotFound.GenWithStackByArgs(id)
		}
		return nil, err
	}
	return rec.ToHandle()
}

// ListHandles returns every known handle in submission order.
func (s *LocalService) ListHandles(ctx context.Context) ([]*model.TaskHandle, error) {
	recs, err := s.metaCli.QueryTasks(ctx)
	if err != nil {
		return nil, err
	}
	ret := make([]*model.TaskHandle, 0, len(recs))
	for _, rec := range recs {
		h, err := rec.ToHandle()
		if err != nil {
			return nil, err
		}
		ret = append(ret, h)
	}
	return ret, nil
}

// FinishOk implements Finisher.FinishOk
func (s *LocalService) FinishOk(ctx context.Context, id model.TaskID, outputs map[string]model.Artifact) error {
	if err := s.metaCli.FinishTask(ctx, id, model.TaskStatusFinishedOk, outputs, ""); err != nil {
		return err
	}
	taskFinishedCounter.WithLabelValues(model.TaskStatusFinishedOk.String()).Inc()
	return nil
}

// FinishFailed implements Finisher.FinishFailed
func (s *LocalService) FinishFailed(ctx context.Context, id model.TaskID, reason error) error {
	msg := "unknown error"
	if reason != nil {
		msg = reason.Error()
	}
	if err := s.metaCli.FinishTask(ctx, id, model.TaskStatusFinishedFailed, nil, msg); err != nil {
		return err
	}
	taskFinishedCounter.WithLabelValues(model.TaskStatusFinishedFailed.String()).Inc()
	return nil
}

// RunningJobs returns the number of terminal jobs not yet finished.
func (s *LocalService) RunningJobs() int64 {
	return s.running.Load()
}

// Close cancels running jobs and waits for them to exit.
func (s *LocalService) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()
	return s.eg.Wait()
}

func (s *LocalService) startJob(id model.TaskID, jobType string, fn JobFunc, inputs map[string]model.Artifact) {
	s.running.Inc()
	runningJobGauge.Inc()
	s.eg.Go(func() error {
		defer func() {
			s.running.Dec()
			runningJobGauge.Dec()
		}()

		logger := logutil.NewLogger4Job(jobType, id)
		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			s.finishJob(id, nil, errors.Trace(err), logger)
			return nil
		}
		defer s.sem.Release(1)

		startTime := time.Now()
		outputs, err := s.runJob(plogutil.NewContextWithLogger(s.ctx, logger), fn, inputs)
		jobDurationHistogram.WithLabelValues(jobType).Observe(time.Since(startTime).Seconds())
		s.finishJob(id, outputs, err, logger)
		return nil
	})
}

func (s *LocalService) runJob(
	ctx context.Context, fn JobFunc, inputs map[string]model.Artifact,
) (outputs map[string]model.Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.ErrUnknown.GenWithStack("job panicked: %v", r)
		}
	}()

	values, err := fn(ctx, inputs)
	if err != nil {
		return nil, err
	}
	outputs = make(map[string]model.Artifact, len(values))
	for name, v := range values {
		if a, ok := v.(model.Artifact); ok {
			outputs[name] = a
			continue
		}
		a, err := model.NewArtifact(s.idGen.NewString(), name, v)
		if err != nil {
			return nil, err
		}
		outputs[name] = a
	}
	return outputs, nil
}

func (s *LocalService) finishJob(
	id model.TaskID, outputs map[string]model.Artifact, jobErr error, logger *zap.Logger,
) {
	ctx, cancel := context.WithTimeout(context.Background(), finishTaskTimeout)
	defer cancel()

	finish := func() error {
		return s.FinishOk(ctx, id, outputs)
	}
	if jobErr != nil {
		logger.Warn("job failed", zap.Error(jobErr))
		finish = func() error {
			return s.FinishFailed(ctx, id, jobErr)
		}
	} else {
		logger.Info("job finished", zap.Int("outputs", len(outputs)))
	}
	err := retry.Do(ctx, finish,
		retry.WithBackoffBaseDelay(finishBackoffBaseDelayInMs),
		retry.WithBackoffMaxDelay(finishBackoffMaxDelayInMs),
		retry.WithInfiniteTries(),
		retry.WithIsRetryableErr(isRetryableMetaErr))
	if err != nil {
		logger.Error("record job status failed", zap.Error(err))
	}
}

// isRetryableMetaErr reports whether a status write may succeed when
// tried again.
func isRetryableMetaErr(err error) bool {
	return errors.Is(err, errors.ErrMetaOpFail)
}
