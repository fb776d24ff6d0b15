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
	"github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/pkg/errors"
)

// DefaultMaxChaseDepth bounds how many resolver instances one link may
// chase through before the chain is treated as cyclic.
const DefaultMaxChaseDepth = 64

// Resolution is one entry of the resolution table: an id that must reach a
// terminal status and the link whose mapping applies to its outputs. Ids
// discovered by chasing a resolver keep the link of the id they replace.
type Resolution struct {
	TaskID model.TaskID `json:"task-id"`
	LinkID model.LinkID `json:"link-id"`
}

// ResolverState is the persisted progress of one resolver instance. Its
// methods never do I/O, Run feeds them handle snapshots.
//
// The state is complete iff NotYetRequested and Pending are both empty.
type ResolverState struct {
	SelfID       model.TaskID           `json:"self-id"`
	DependentID  model.TaskID           `json:"dependent-id"`
	Dependencies []model.DependencyLink `json:"dependencies"`

	NotYetRequested []Resolution `json:"not-yet-requested"`
	Pending         []Resolution `json:"pending"`
	// Chains holds, per link, every id visited while chasing resolvers.
	Chains    map[model.LinkID][]model.TaskID `json:"chains"`
	Collected map[string]model.Artifact       `json:"collected"`

	MaxChaseDepth int  `json:"max-chase-depth"`
	Dispatched    bool `json:"dispatched"`
}

// NewResolverState initializes the state of resolver selfID. inputs are
// handed over by the submitter and are treated like pass-through inputs.
// The id of the job to dispatch is allocated up front so that dispatching
// is idempotent across restarts.
func NewResolverState(
	selfID, dependentID model.TaskID,
	spec *model.ResolveSpec,
	inputs map[string]model.Artifact,
	maxChaseDepth int,
) (*ResolverState, error) {
	if spec == nil || len(spec.Dependencies) == 0 {
		return nil, errors.ErrEmptyDependencies.GenWithStackByArgs()
	}
	if maxChaseDepth <= 0 {
		maxChaseDepth = DefaultMaxChaseDepth
	}

	s := &ResolverState{
		SelfID:          selfID,
		DependentID:     dependentID,
		Dependencies:    spec.Dependencies,
		NotYetRequested: make([]Resolution, 0, len(spec.Dependencies)),
		Pending:         make([]Resolution, 0, len(spec.Dependencies)),
		Chains:          make(map[model.LinkID][]model.TaskID, len(spec.Dependencies)),
		Collected:       make(map[string]model.Artifact, len(spec.PassThrough)+len(inputs)),
		MaxChaseDepth:   maxChaseDepth,
	}

	for name, a := range spec.PassThrough {
		s.Collected[name] = a
	}
	for name, a := range inputs {
		if _, ok := s.Collected[name]; ok {
			return nil, errors.ErrDuplicateInputBinding.GenWithStackByArgs(name)
		}
		s.Collected[name] = a
	}

	// Every input a link will ever bind is known up front, so clashes
	// are reported before waiting on anything.
	bound := make(map[string]struct{}, len(s.Collected))
	for name := range s.Collected {
		bound[name] = struct{}{}
	}
	for linkID, link := range spec.Dependencies {
		if link.UpstreamID == selfID {
			return nil, errors.ErrCyclicDependency.GenWithStackByArgs(selfID)
		}
		for _, m := range link.Outputs {
			if _, ok := bound[m.Input]; ok {
				return nil, errors.ErrDuplicateInputBinding.GenWithStackByArgs(m.Input)
			}
			bound[m.Input] = struct{}{}
		}
		s.NotYetRequested = append(s.NotYetRequested, Resolution{TaskID: link.UpstreamID, LinkID: linkID})
		s.Chains[linkID] = []model.TaskID{link.UpstreamID}
	}
	return s, nil
}

// Complete returns whether every dependency has been resolved.
func (s *ResolverState) Complete() bool {
	return len(s.NotYetRequested) == 0 && len(s.Pending) == 0
}

// ResolutionTable returns every id discovered so far with the link it
// resolves.
func (s *ResolverState) ResolutionTable() map[model.TaskID]model.LinkID {
	ret := make(map[model.TaskID]model.LinkID)
	for linkID, chain := range s.Chains {
		for _, id := range chain {
			ret[id] = linkID
		}
	}
	return ret
}

// Request moves every not yet requested id to the pending queue, keeping
// their order, and returns the moved entries.
func (s *ResolverState) Request() []Resolution {
	if len(s.NotYetRequested) == 0 {
		return nil
	}
	requested := s.NotYetRequested
	s.Pending = append(s.Pending, requested...)
	s.NotYetRequested = make([]Resolution, 0)
	return requested
}

// PendingIDs returns the distinct pending ids in queue order.
func (s *ResolverState) PendingIDs() []model.TaskID {
	seen := make(map[model.TaskID]struct{}, len(s.Pending))
	ret := make([]model.TaskID, 0, len(s.Pending))
	for _, r := range s.Pending {
		if _, ok := seen[r.TaskID]; ok {
			continue
		}
		seen[r.TaskID] = struct{}{}
		ret = append(ret, r.TaskID)
	}
	return ret
}

// Observe drains every pending entry whose handle is terminal, in queue
// order. Resolvers that finished are replaced by the job they dispatched,
// which is requested by the next Request. Terminal jobs contribute their
// outputs through the mapping of their link. It returns whether the state
// changed. Handles missing from handles or still running stay pending.
//
// After an error the state must be discarded.
func (s *ResolverState) Observe(handles map[model.TaskID]*model.TaskHandle) (bool, error) {
	if len(s.Pending) == 0 {
		return false, nil
	}

	remaining := make([]Resolution, 0, len(s.Pending))
	changed := false
	for _, r := range s.Pending {
		h, ok := handles[r.TaskID]
		if !ok || !h.IsTerminal() {
			remaining = append(remaining, r)
			continue
		}
		if h.Status != model.TaskStatusFinishedOk {
			return false, errors.ErrDependencyFailed.GenWithStackByArgs(r.TaskID)
		}

		switch h.Kind {
		case model.TaskKindResolver:
			if err := s.chase(r, h); err != nil {
				return false, err
			}
		case model.TaskKindTerminal:
			if err := s.collect(r, h); err != nil {
				return false, err
			}
		default:
			return false, errors.ErrInvalidArgument.GenWithStackByArgs(
				"task " + r.TaskID + " has unknown kind " + h.Kind.String())
		}
		changed = true
	}
	s.Pending = remaining
	return changed, nil
}

func (s *ResolverState) chase(r Resolution, h *model.TaskHandle) error {
	next, err := h.DependentID()
	if err != nil {
		return err
	}
	chain := s.Chains[r.LinkID]
	if next == s.SelfID {
		return errors.ErrCyclicDependency.GenWithStackByArgs(next)
	}
	for _, visited := range chain {
		if visited == next {
			return errors.ErrCyclicDependency.GenWithStackByArgs(next)
		}
	}
	// the first element of a chain is the upstream of the link itself
	if len(chain) > s.MaxChaseDepth {
		return errors.ErrCyclicDependency.GenWithStackByArgs(next)
	}
	s.Chains[r.LinkID] = append(chain, next)
	s.NotYetRequested = append(s.NotYetRequested, Resolution{TaskID: next, LinkID: r.LinkID})
	return nil
}

func (s *ResolverState) collect(r Resolution, h *model.TaskHandle) error {
	link := s.Dependencies[r.LinkID]
	for _, m := range link.Outputs {
		a, ok := h.Outputs[m.Output]
		if !ok {
			return errors.ErrMissingOutput.GenWithStackByArgs(r.TaskID, m.Output)
		}
		if _, dup := s.Collected[m.Input]; dup {
			return errors.ErrDuplicateInputBinding.GenWithStackByArgs(m.Input)
		}
		s.Collected[m.Input] = a
	}
	return nil
}
