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
package server

import (
	"context"

	"github.com/pingcap/depflow/engine/config"
	"github.com/pingcap/depflow/engine/eventloop"
	"github.com/pingcap/depflow/engine/jobsvc"
	"github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/engine/pipeline"
	"github.com/pingcap/depflow/engine/pkg/clock"
	"github.com/pingcap/depflow/engine/pkg/orm"
	"github.com/pingcap/depflow/engine/pkg/uuid"
	"github.com/pingcap/depflow/engine/resolver"
	"github.com/pingcap/depflow/pkg/errors"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Server drives one pipeline on a local job execution service backed by
// the metastore. Everything left by a previous process with the same
// metastore is recovered on Run.
type Server struct {
	cfg *config.Config
	clk clock.Clock

	metaCli orm.Client
	svc     *jobsvc.LocalService
	sched   *eventloop.Scheduler
	manager *resolver.Manager
	driver  *pipeline.Driver

	finished atomic.Bool
}

// NewServer creates a Server from an adjusted config.
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil || cfg.MetaConf == nil {
		return nil, errors.ErrInvalidArgument.GenWithStackByArgs("server config is incomplete")
	}
	return &Server{
		cfg: cfg,
		clk: clock.New(),
	}, nil
}

// Run recovers the persisted state, then runs the pipeline until every
// stage it submitted has settled. It returns nil once the pipeline
// finished ok, the pipeline failure, or the error that stopped it.
func (s *Server) Run(ctx context.Context) error {
	if err := s.init(ctx); err != nil {
		return multierr.Append(err, s.Stop())
	}
	defer func() {
		if err := s.Stop(); err != nil {
			log.L().Warn("stop server failed", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	wg, ctx := errgroup.WithContext(ctx)

	driverDone := make(chan error, 1)
	s.sched.OnDone(func(id string, err error) {
		if id == s.driver.ID() {
			driverDone <- err
		}
	})
	s.sched.Add(s.driver)

	runner := eventloop.NewRunner(s.sched,
		eventloop.WithClock(s.clk),
		eventloop.WithTickInterval(s.cfg.Scheduler.TickInterval))
	wg.Go(func() error {
		return runner.Run(ctx)
	})

	wg.Go(func() error {
		if err := s.waitPipeline(ctx, driverDone); err != nil {
			return err
		}
		s.finished.Store(true)
		cancel()
		return nil
	})

	if s.cfg.StatusAddr != "" {
		wg.Go(func() error {
			return s.serveStatus(ctx)
		})
	}

	err := wg.Wait()
	if s.finished.Load() {
		return nil
	}
	return err
}

func (s *Server) init(ctx context.Context) error {
	var err error
	cfg := s.cfg
	s.metaCli, err = orm.NewClient(ctx, cfg.MetaConf)
	if err != nil {
		return err
	}

	reg := jobsvc.NewRegistry()
	if err := pipeline.RegisterStages(reg, pipeline.StageFuncs(s.clk, cfg.Pipeline.StageDuration)); err != nil {
		return err
	}
	s.svc = jobsvc.NewLocalService(s.metaCli, reg, cfg.Executor.WorkerConcurrency)
	lost, err := s.svc.MarkLostJobs(ctx)
	if err != nil {
		return err
	}

	s.sched = eventloop.NewScheduler(cfg.Pipeline.ID)
	s.manager = resolver.NewManager(s.svc, s.svc, s.metaCli, s.sched,
		resolver.WithMaxChaseDepth(cfg.Scheduler.MaxChaseDepth))
	s.svc.RegisterLauncher(model.TaskKindResolver, s.manager)
	recovered, err := s.manager.Recover(ctx)
	if err != nil {
		return err
	}

	data := jobsvc.NewDataRegistry(s.metaCli, uuid.NewGenerator(), pipeline.SeedFactory)
	s.driver, err = pipeline.NewDriver(ctx, cfg.Pipeline.ID,
		cfg.Pipeline.StartIteration, cfg.Pipeline.EndIteration, s.svc, data, s.metaCli)
	if err != nil {
		return err
	}

	log.L().Info("server initialized",
		zap.String("pipeline-id", cfg.Pipeline.ID),
		zap.Int("lost-jobs", lost),
		zap.Int("recovered-resolvers", recovered))
	return nil
}

// waitPipeline returns once the driver has finished and every stage it
// submitted was chased to a job that finished ok.
func (s *Server) waitPipeline(ctx context.Context, driverDone <-chan error) error {
	select {
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	case err := <-driverDone:
		if err != nil {
			return err
		}
	}

	ticker := s.clk.Ticker(s.cfg.Scheduler.TickInterval)
	defer ticker.Stop()
	for {
		ok, err := s.driver.Settled(ctx)
		switch {
		case err == nil && ok:
			log.L().Info("pipeline settled",
				zap.String("pipeline-id", s.cfg.Pipeline.ID),
				zap.Int("iterations", s.driver.State().Iterations()))
			return nil
		case errors.Is(err, errors.ErrMetaOpFail):
			log.L().Warn("check pipeline settled failed", zap.Error(err))
		case err != nil:
			return err
		}

		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case <-ticker.C:
		}
	}
}

// Stop releases the job execution service and the metastore. It is safe
// to call on a partially initialized server.
func (s *Server) Stop() error {
	var err error
	if s.svc != nil {
		err = multierr.Append(err, s.svc.Close())
	}
	if s.metaCli != nil {
		err = multierr.Append(err, s.metaCli.Close())
		s.metaCli = nil
	}
	return err
}
