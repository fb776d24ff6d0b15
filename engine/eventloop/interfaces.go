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
)

// Task is driven by a Runner: Init once, then Poll on every tick until
// Poll returns an error, then Close.
type Task interface {
	// Init is called before entering the loop calling Poll.
	Init(ctx context.Context) error

	// Poll is called periodically until an error is returned.
	Poll(ctx context.Context) error

	// Close does necessary clean up. It is called exactly once, after the
	// loop exits for any reason.
	Close(ctx context.Context) error

	// ID returns an identifier for the Task.
	ID() string
}

// Stepper is a resumable unit of work advanced by a Scheduler. Step must
// not block on other steppers, it observes their progress through shared
// state and returns.
type Stepper interface {
	// ID identifies the stepper, a Scheduler holds at most one stepper
	// per id.
	ID() string

	// Step does one bounded amount of work. done reports that the stepper
	// must not be stepped again. A non-nil error with done unset is
	// treated as transient and the step is retried on the next tick.
	Step(ctx context.Context) (done bool, err error)
}
