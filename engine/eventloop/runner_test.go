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
	"sync"
	"testing"
	"time"

	"github.com/pingcap/depflow/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type toyTaskStatus = int32

const (
	toyTaskUninit = toyTaskStatus(iota + 1)
	toyTaskRunning
	toyTaskClosed
)

type toyTask struct {
	mock.Mock

	t      *testing.T
	status atomic.Int32

	injectedErrCh chan error
}

func newToyTask(t *testing.T) *toyTask {
	return &toyTask{
		t:             t,
		status:        *atomic.NewInt32(toyTaskUninit),
		injectedErrCh: make(chan error, 1),
	}
}

func (t *toyTask) Init(ctx context.Context) error {
	require.True(t.t, t.status.CAS(toyTaskUninit, toyTaskRunning))

	args := t.Called(ctx)
	return args.Error(0)
}

func (t *toyTask) Poll(ctx context.Context) error {
	require.Equal(t.t, toyTaskRunning, t.status.Load())

	select {
	case err := <-t.injectedErrCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (t *toyTask) Close(ctx context.Context) error {
	require.True(t.t, t.status.CAS(toyTaskRunning, toyTaskClosed))

	args := t.Called(ctx)
	return args.Error(0)
}

func (t *toyTask) ID() string {
	return "toy"
}

func TestRunnerNormalPath(t *testing.T) {
	t.Parallel()

	task := newToyTask(t)
	runner := NewRunner(task, WithTickInterval(10*time.Millisecond))

	errIn := errors.New("injected error")

	task.On("Init", mock.Anything).Return(nil).Once()
	task.On("Close", mock.Anything).Return(nil).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		err := runner.Run(context.Background())
		require.Error(t, err)
		require.Regexp(t, "injected error", err)
	}()

	require.Eventually(t, func() bool {
		return task.status.Load() == toyTaskRunning
	}, 1*time.Second, 10*time.Millisecond)

	task.injectedErrCh <- errIn

	require.Eventually(t, func() bool {
		return task.status.Load() == toyTaskClosed
	}, 1*time.Second, 10*time.Millisecond)

	wg.Wait()
	task.AssertExpectations(t)
}

func TestRunnerInitFailed(t *testing.T) {
	t.Parallel()

	task := newToyTask(t)
	runner := NewRunner(task)

	task.On("Init", mock.Anything).Return(errors.New("init failed")).Once()
	task.On("Close", mock.Anything).Return(nil).Once()

	err := runner.Run(context.Background())
	require.Regexp(t, "init failed", err)
	task.AssertExpectations(t)
}

func TestRunnerContextCanceled(t *testing.T) {
	t.Parallel()

	task := newToyTask(t)
	runner := NewRunner(task)

	task.On("Init", mock.Anything).Return(nil).Once()
	task.On("Close", mock.Anything).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	err := runner.Run(ctx)
	require.Error(t, err)
	require.True(t, IsCanceledError(err))
	require.Panics(t, func() {
		_ = runner.Run(ctx)
	})
	task.AssertExpectations(t)
}

func TestRunnerDrivesScheduler(t *testing.T) {
	t.Parallel()

	s := NewScheduler("test-runner")
	st := &countingStepper{id: "x", doneAt: 3}
	require.True(t, s.Add(st))
	finished := make(chan string, 1)
	s.OnDone(func(id string, _ error) {
		finished <- id
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- NewRunner(s, WithTickInterval(5*time.Millisecond)).Run(ctx)
	}()

	select {
	case id := <-finished:
		require.Equal(t, "x", id)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "stepper is not finished")
	}
	cancel()
	require.True(t, IsCanceledError(<-errCh))
	require.False(t, s.Add(&countingStepper{id: "y", doneAt: 1}))
}
