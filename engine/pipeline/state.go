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

	"github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/pkg/errors"
)

// Phase is the phase of a pipeline driver.
type Phase int8

// Defines all phases of a pipeline driver
const (
	PhaseInit Phase = iota + 1
	PhaseIterationRunning
	PhaseDone
)

var phaseNames = map[Phase]string{
	PhaseInit:             "Init",
	PhaseIterationRunning: "IterationRunning",
	PhaseDone:             "Done",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "Unknown"
}

// MarshalJSON implements json.Marshaler.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Phase) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Trace(err)
	}
	for phase, name := range phaseNames {
		if name == s {
			*p = phase
			return nil
		}
	}
	return errors.ErrInvalidArgument.GenWithStackByArgs("unknown pipeline phase " + s)
}

// Labels of the seed artifacts in the data registry.
const (
	SeedMoney       = "seed_money"
	SeedOvenCold    = "oven_cold_start"
	SeedOvenClean   = "oven_clean_start"
	defaultSeedUnit = 1
)

var seedLabels = []string{SeedMoney, SeedOvenCold, SeedOvenClean}

// SeedFactory creates the value of a seed artifact. It is meant to back
// the data registry used by drivers.
func SeedFactory(_ context.Context, label string) (interface{}, error) {
	for _, l := range seedLabels {
		if l == label {
			return defaultSeedUnit, nil
		}
	}
	return nil, errors.ErrInvalidArgument.GenWithStackByArgs("unknown seed label " + label)
}

// State is the persisted progress of a pipeline driver. Submitted holds,
// per stage job type, the id submitted for each iteration so far, which
// is either a terminal job or a resolver.
type State struct {
	ID         string                    `json:"id"`
	Phase      Phase                     `json:"phase"`
	Start      int                       `json:"start-iteration"`
	End        int                       `json:"end-iteration"`
	Iteration  int                       `json:"iteration"`
	Seeds      map[string]model.Artifact `json:"seeds,omitempty"`
	Submitted  map[string][]model.TaskID `json:"submitted"`
	InProgress bool                      `json:"in-progress"`

	// Watch is every submitted id not yet seen FinishedOk.
	Watch []model.TaskID `json:"watch,omitempty"`
	Error string         `json:"error,omitempty"`
}

func newState(id string, start, end int) *State {
	return &State{
		ID:        id,
		Phase:     PhaseInit,
		Start:     start,
		End:       end,
		Submitted: make(map[string][]model.TaskID, len(Stages)),
	}
}

// Relative returns the 1-based number of the current iteration counted
// from the start iteration.
func (s *State) Relative() int {
	return s.Iteration - s.Start + 1
}

// Last returns the id submitted for stage back iterations ago, with
// back = 1 being the latest.
func (s *State) Last(stage string, back int) (model.TaskID, bool) {
	ids := s.Submitted[stage]
	if back <= 0 || len(ids) < back {
		return "", false
	}
	return ids[len(ids)-back], true
}

// Iterations returns the number of iterations submitted.
func (s *State) Iterations() int {
	return len(s.Submitted[StageBakeBread])
}
