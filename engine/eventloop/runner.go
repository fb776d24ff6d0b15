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
	"fmt"
	"time"

	"github.com/pingcap/depflow/engine/pkg/clock"
	"github.com/pingcap/depflow/pkg/errors"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// DefaultTickInterval is the interval between two polls of a Task.
const DefaultTickInterval = 50 * time.Millisecond

// Runner runs a Task.
type Runner[T Task] struct {
	task T

	alreadyRun atomic.Bool

	clk          clock.Clock
	tickInterval time.Duration
}

// RunnerOption customizes a Runner.
type RunnerOption func(*runnerOptions)

type runnerOptions struct {
	clk          clock.Clock
	tickInterval time.Duration
}

// WithClock sets the clock driving the ticker.
func WithClock(clk clock.Clock) RunnerOption {
	return func(o *runnerOptions) {
		o.clk = clk
	}
}

// WithTickInterval sets the interval between two polls.
func WithTickInterval(d time.Duration) RunnerOption {
	return func(o *runnerOptions) {
		if d > 0 {
			o.tickInterval = d
		}
	}
}

// NewRunner returns a new Runner.
func NewRunner[T Task](t T, opts ...RunnerOption) *Runner[T] {
	o := &runnerOptions{
		clk:          clock.New(),
		tickInterval: DefaultTickInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Runner[T]{
		task:         t,
		clk:          o.clk,
		tickInterval: o.tickInterval,
	}
}

// Run drives the task until ctx is canceled or Poll fails. Cancelling
// the ctx stops the task immediately. Close is always called.
func (r *Runner[R]) Run(ctx context.Context) error {
	if r.alreadyRun.Swap(true) {
		panic(fmt.Sprintf("duplicate calls to Run: %s", r.task.ID()))
	}

	err := r.doRun(ctx)
	if err == nil {
		panic(fmt.Sprintf("unexpected exiting with nil error: %s", r.task.ID()))
	}

	if closeErr := r.task.Close(context.Background()); closeErr != nil {
		log.Warn("Closing task returned error",
			zap.String("label", r.task.ID()), zap.Error(closeErr))
	}
	return err
}

func (r *Runner[R]) doRun(ctx context.Context) error {
	if err := r.task.Init(ctx); err != nil {
		return errors.Trace(err)
	}

	ticker := r.clk.Ticker(r.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case <-ticker.C:
			if err := r.task.Poll(ctx); err != nil {
				return errors.Trace(err)
			}
		}
	}
}

// IsCanceledError checks whether the runner exited because its context
// was canceled, which is the normal way of stopping it.
func IsCanceledError(errIn error) bool {
	return errors.Is(errIn, context.Canceled)
}
