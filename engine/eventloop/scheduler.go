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

package eventloop

import (
	"context"
	"sort"
	"sync"

	"github.com/pingcap/depflow/engine/pkg/clock"
	"github.com/pingcap/depflow/pkg/errors"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Scheduler cooperatively drives steppers. Every tick each registered
// stepper is stepped once, in id order. Steppers added during a tick are
// first stepped on the next tick.
type Scheduler struct {
	id  string
	clk clock.Clock

	mu       sync.Mutex
	steppers map[string]Stepper
	// fired when a stepper is removed
	doneCbs []func(id string, err error)

	ticks  atomic.Int64
	closed atomic.Bool
}

// NewScheduler creates an empty Scheduler.
func NewScheduler(id string) *Scheduler {
	return &Scheduler{
		id:       id,
		clk:      clock.New(),
		steppers: make(map[string]Stepper),
	}
}

// OnDone registers a callback invoked with the id and the last error of
// every stepper that leaves the scheduler.
func (s *Scheduler) OnDone(cb func(id string, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doneCbs = append(s.doneCbs, cb)
}

// Add registers st. It returns false if a stepper with the same id is
// already registered or the scheduler is closed.
func (s *Scheduler) Add(st Stepper) bool {
	if s.closed.Load() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.steppers[st.ID()]; ok {
		return false
	}
	s.steppers[st.ID()] = st
	activeSteppersGauge.WithLabelValues(s.id).Set(float64(len(s.steppers)))
	return true
}

// Has returns whether a stepper with id is registered.
func (s *Scheduler) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.steppers[id]
	return ok
}

// Len returns the number of registered steppers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steppers)
}

// Ticks returns how many ticks have completed.
func (s *Scheduler) Ticks() int64 {
	return s.ticks.Load()
}

// Tick steps every registered stepper once. The lock is not held while
// stepping, so Step may call Add.
func (s *Scheduler) Tick(ctx context.Context) error {
	if s.closed.Load() {
		return errors.ErrSchedulerClosed.GenWithStackByArgs()
	}
	startTime := s.clk.Now()

	s.mu.Lock()
	batch := make([]Stepper, 0, len(s.steppers))
	for _, st := range s.steppers {
		batch = append(batch, st)
	}
	s.mu.Unlock()
	sort.Slice(batch, func(i, j int) bool { return batch[i].ID() < batch[j].ID() })

	type finished struct {
		id  string
		err error
	}
	var done []finished
	for _, st := range batch {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		ok, err := st.Step(ctx)
		if ok {
			if err != nil {
				log.Warn("stepper exited with error",
					zap.String("scheduler", s.id),
					zap.String("stepper", st.ID()), zap.Error(err))
			}
			done = append(done, finished{id: st.ID(), err: err})
			continue
		}
		if err != nil {
			stepErrorCounter.WithLabelValues(s.id).Inc()
			log.Warn("step failed, will retry",
				zap.String("scheduler", s.id),
				zap.String("stepper", st.ID()), zap.Error(err))
		}
	}

	if len(done) > 0 {
		s.mu.Lock()
		for _, d := range done {
			delete(s.steppers, d.id)
		}
		cbs := s.doneCbs
		activeSteppersGauge.WithLabelValues(s.id).Set(float64(len(s.steppers)))
		s.mu.Unlock()
		for _, d := range done {
			for _, cb := range cbs {
				cb(d.id, d.err)
			}
		}
	}

	s.ticks.Inc()
	tickDurationHistogram.WithLabelValues(s.id).Observe(s.clk.Since(startTime).Seconds())
	return nil
}

// Init implements Task.Init.
func (s *Scheduler) Init(_ context.Context) error {
	log.Info("scheduler started", zap.String("scheduler", s.id), zap.Int("steppers", s.Len()))
	return nil
}

// Poll implements Task.Poll.
func (s *Scheduler) Poll(ctx context.Context) error {
	return s.Tick(ctx)
}

// Close implements Task.Close. Registered steppers are dropped, their
// persisted state is picked up again by the next recovery.
func (s *Scheduler) Close(_ context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	remaining := len(s.steppers)
	s.steppers = make(map[string]Stepper)
	s.mu.Unlock()
	activeSteppersGauge.DeleteLabelValues(s.id)
	log.Info("scheduler closed", zap.String("scheduler", s.id), zap.Int("dropped-steppers", remaining))
	return nil
}

// ID implements Task.ID.
func (s *Scheduler) ID() string {
	return s.id
}

// RunUntilIdle ticks until no stepper is left or maxTicks is reached. It
// returns the number of ticks done.
func (s *Scheduler) RunUntilIdle(ctx context.Context, maxTicks int) (int, error) {
	for i := 0; i < maxTicks; i++ {
		if s.Len() == 0 {
			return i, nil
		}
		if err := s.Tick(ctx); err != nil {
			return i, err
		}
	}
	if s.Len() != 0 {
		return maxTicks, errors.ErrUnknown.GenWithStack(
			"scheduler %s still has %d steppers after %d ticks", s.id, s.Len(), maxTicks)
	}
	return maxTicks, nil
}

