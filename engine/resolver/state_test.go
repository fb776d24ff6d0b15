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
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/pkg/errors"
	"github.com/stretchr/testify/require"
)

func okTerminal(id model.TaskID, outputs map[string]interface{}) *model.TaskHandle {
	h := &model.TaskHandle{
		ID:      id,
		Kind:    model.TaskKindTerminal,
		Status:  model.TaskStatusFinishedOk,
		Outputs: make(map[string]model.Artifact, len(outputs)),
	}
	for name, v := range outputs {
		h.Outputs[name] = model.MustNewArtifact(id+"/"+name, name, v)
	}
	return h
}

func okResolver(id, dependentID model.TaskID) *model.TaskHandle {
	return &model.TaskHandle{
		ID:     id,
		Kind:   model.TaskKindResolver,
		Status: model.TaskStatusFinishedOk,
		Outputs: map[string]model.Artifact{
			model.DependentIDOutput: model.MustNewArtifact(id+"/dep", model.DependentIDOutput, dependentID),
		},
	}
}

func running(id model.TaskID, kind model.TaskKind) *model.TaskHandle {
	return &model.TaskHandle{ID: id, Kind: kind, Status: model.TaskStatusRunning}
}

func handles(hs ...*model.TaskHandle) map[model.TaskID]*model.TaskHandle {
	ret := make(map[model.TaskID]*model.TaskHandle, len(hs))
	for _, h := range hs {
		ret[h.ID] = h
	}
	return ret
}

func decodeInt(t *testing.T, a model.Artifact) int {
	var v int
	require.NoError(t, a.Decode(&v))
	return v
}

func spec(deps ...model.DependencyLink) *model.ResolveSpec {
	return &model.ResolveSpec{
		Dependencies: deps,
		Target:       model.NewTerminalDescription("consume"),
	}
}

func TestNewResolverStateErrors(t *testing.T) {
	t.Parallel()

	_, err := NewResolverState("r", "d", spec(), nil, 0)
	require.True(t, errors.Is(err, errors.ErrEmptyDependencies))
	_, err = NewResolverState("r", "d", nil, nil, 0)
	require.True(t, errors.Is(err, errors.ErrEmptyDependencies))

	_, err = NewResolverState("r", "d", spec(model.Link("r")), nil, 0)
	require.True(t, errors.Is(err, errors.ErrCyclicDependency))

	s := spec(model.Link("x", model.Map("a", "in")), model.Link("y", model.Map("b", "in")))
	_, err = NewResolverState("r", "d", s, nil, 0)
	require.True(t, errors.Is(err, errors.ErrDuplicateInputBinding))

	s = spec(model.Link("x", model.Map("a", "in")))
	s.PassThrough = map[string]model.Artifact{"in": model.MustNewArtifact("p", "in", 1)}
	_, err = NewResolverState("r", "d", s, nil, 0)
	require.True(t, errors.Is(err, errors.ErrDuplicateInputBinding))

	s = spec(model.Link("x"))
	s.PassThrough = map[string]model.Artifact{"seed": model.MustNewArtifact("p", "seed", 1)}
	_, err = NewResolverState("r", "d", s, map[string]model.Artifact{"seed": model.MustNewArtifact("q", "seed", 2)}, 0)
	require.True(t, errors.Is(err, errors.ErrDuplicateInputBinding))

	st, err := NewResolverState("r", "d", spec(model.Link("x")), nil, 0)
	require.NoError(t, err)
	require.Equal(t, DefaultMaxChaseDepth, st.MaxChaseDepth)
	require.False(t, st.Complete())
}

func TestResolveDirectTerminal(t *testing.T) {
	t.Parallel()

	st, err := NewResolverState("r", "d", spec(model.Link("x", model.Map("a", "in1"))), nil, 0)
	require.NoError(t, err)

	requested := st.Request()
	require.Equal(t, []Resolution{{TaskID: "x", LinkID: 0}}, requested)
	require.Empty(t, st.Request())
	require.Equal(t, []model.TaskID{"x"}, st.PendingIDs())

	// nothing is drained while x is running
	changed, err := st.Observe(handles(running("x", model.TaskKindTerminal)))
	require.NoError(t, err)
	require.False(t, changed)
	require.False(t, st.Complete())

	changed, err = st.Observe(handles(okTerminal("x", map[string]interface{}{"a": 42})))
	require.NoError(t, err)
	require.True(t, changed)
	require.True(t, st.Complete())
	require.Len(t, st.Collected, 1)
	require.Equal(t, 42, decodeInt(t, st.Collected["in1"]))

	// a complete state is a fixed point
	require.Empty(t, st.Request())
	changed, err = st.Observe(handles(okTerminal("x", map[string]interface{}{"a": 1})))
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 42, decodeInt(t, st.Collected["in1"]))
}

func TestResolveChaseThroughResolver(t *testing.T) {
	t.Parallel()

	st, err := NewResolverState("r", "d", spec(model.Link("R", model.Map("b", "in2"))), nil, 0)
	require.NoError(t, err)
	st.Request()

	changed, err := st.Observe(handles(okResolver("R", "Y")))
	require.NoError(t, err)
	require.True(t, changed)
	// the dependent of R is requested on the next pass
	require.Empty(t, st.Pending)
	require.Equal(t, []Resolution{{TaskID: "Y", LinkID: 0}}, st.NotYetRequested)
	require.False(t, st.Complete())
	want := map[model.TaskID]model.LinkID{"R": 0, "Y": 0}
	require.Equal(t, want, st.ResolutionTable(), cmp.Diff(want, st.ResolutionTable()))

	require.Equal(t, []Resolution{{TaskID: "Y", LinkID: 0}}, st.Request())
	changed, err = st.Observe(handles(okTerminal("Y", map[string]interface{}{"b": "hi"})))
	require.NoError(t, err)
	require.True(t, changed)
	require.True(t, st.Complete())
	var v string
	require.NoError(t, st.Collected["in2"].Decode(&v))
	require.Equal(t, "hi", v)
}

func TestResolveSharedUpstream(t *testing.T) {
	t.Parallel()

	s := spec(
		model.Link("x", model.Map("a", "in1")),
		model.Link("x", model.Map("a", "in2")),
	)
	st, err := NewResolverState("r", "d", s, nil, 0)
	require.NoError(t, err)
	require.Len(t, st.Request(), 2)
	require.Equal(t, []model.TaskID{"x"}, st.PendingIDs())

	_, err = st.Observe(handles(okTerminal("x", map[string]interface{}{"a": 7})))
	require.NoError(t, err)
	require.True(t, st.Complete())
	require.Equal(t, 7, decodeInt(t, st.Collected["in1"]))
	require.Equal(t, 7, decodeInt(t, st.Collected["in2"]))
}

func TestResolveConvergingChains(t *testing.T) {
	t.Parallel()

	s := spec(
		model.Link("R1", model.Map("a", "in1")),
		model.Link("R2", model.Map("a", "in2")),
	)
	st, err := NewResolverState("r", "d", s, nil, 0)
	require.NoError(t, err)
	st.Request()
	_, err = st.Observe(handles(okResolver("R1", "Z"), okResolver("R2", "Z")))
	require.NoError(t, err)
	require.Len(t, st.Request(), 2)
	_, err = st.Observe(handles(okTerminal("Z", map[string]interface{}{"a": 3})))
	require.NoError(t, err)
	require.True(t, st.Complete())
	require.Equal(t, 3, decodeInt(t, st.Collected["in1"]))
	require.Equal(t, 3, decodeInt(t, st.Collected["in2"]))
}

func TestResolvePartialProgress(t *testing.T) {
	t.Parallel()

	s := spec(
		model.Link("x", model.Map("a", "in1")),
		model.Link("y"),
	)
	st, err := NewResolverState("r", "d", s, nil, 0)
	require.NoError(t, err)
	st.Request()

	changed, err := st.Observe(handles(
		okTerminal("x", map[string]interface{}{"a": 1}),
		running("y", model.TaskKindTerminal),
	))
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, []Resolution{{TaskID: "y", LinkID: 1}}, st.Pending)

	// ordering-only links contribute nothing
	_, err = st.Observe(handles(okTerminal("y", map[string]interface{}{"b": 2})))
	require.NoError(t, err)
	require.True(t, st.Complete())
	require.Len(t, st.Collected, 1)
}

func TestResolveFailures(t *testing.T) {
	t.Parallel()

	t.Run("dependency failed", func(t *testing.T) {
		st, err := NewResolverState("r", "d", spec(model.Link("x")), nil, 0)
		require.NoError(t, err)
		st.Request()
		failed := &model.TaskHandle{ID: "x", Kind: model.TaskKindTerminal, Status: model.TaskStatusFinishedFailed}
		_, err = st.Observe(handles(failed))
		require.True(t, errors.IsDependencyFailure(err))
		require.Regexp(t, "x", err)
	})

	t.Run("missing output", func(t *testing.T) {
		st, err := NewResolverState("r", "d", spec(model.Link("x", model.Map("a", "in"))), nil, 0)
		require.NoError(t, err)
		st.Request()
		_, err = st.Observe(handles(okTerminal("x", map[string]interface{}{"b": 1})))
		require.True(t, errors.Is(err, errors.ErrMissingOutput))
		require.True(t, errors.IsSpecificationError(err))
	})

	t.Run("cycle back to self", func(t *testing.T) {
		st, err := NewResolverState("r", "d", spec(model.Link("R")), nil, 0)
		require.NoError(t, err)
		st.Request()
		_, err = st.Observe(handles(okResolver("R", "r")))
		require.True(t, errors.Is(err, errors.ErrCyclicDependency))
	})

	t.Run("cycle within chain", func(t *testing.T) {
		st, err := NewResolverState("r", "d", spec(model.Link("R1")), nil, 0)
		require.NoError(t, err)
		st.Request()
		_, err = st.Observe(handles(okResolver("R1", "R2")))
		require.NoError(t, err)
		st.Request()
		_, err = st.Observe(handles(okResolver("R2", "R1")))
		require.True(t, errors.Is(err, errors.ErrCyclicDependency))
	})

	t.Run("chase depth exceeded", func(t *testing.T) {
		st, err := NewResolverState("r", "d", spec(model.Link("R0")), nil, 2)
		require.NoError(t, err)
		st.Request()
		_, err = st.Observe(handles(okResolver("R0", "R1")))
		require.NoError(t, err)
		st.Request()
		_, err = st.Observe(handles(okResolver("R1", "R2")))
		require.NoError(t, err)
		st.Request()
		_, err = st.Observe(handles(okResolver("R2", "R3")))
		require.True(t, errors.Is(err, errors.ErrCyclicDependency))
	})

	t.Run("resolver without dependent id", func(t *testing.T) {
		st, err := NewResolverState("r", "d", spec(model.Link("R")), nil, 0)
		require.NoError(t, err)
		st.Request()
		h := okResolver("R", "Y")
		h.Outputs = nil
		_, err = st.Observe(handles(h))
		require.True(t, errors.Is(err, errors.ErrMissingOutput))
	})
}

func resolveInOrder(t *testing.T, s *model.ResolveSpec, batches ...[]*model.TaskHandle) *ResolverState {
	st, err := NewResolverState("r", "d", s, nil, 0)
	require.NoError(t, err)
	for _, batch := range batches {
		st.Request()
		_, err := st.Observe(handles(batch...))
		require.NoError(t, err)
	}
	require.True(t, st.Complete())
	return st
}

func TestResolveOrderIndependent(t *testing.T) {
	t.Parallel()

	s := spec(
		model.Link("X", model.Map("a", "in1")),
		model.Link("R", model.Map("b", "in2")),
		model.Link("Z", model.Map("c", "in3")),
	)
	x := okTerminal("X", map[string]interface{}{"a": 1})
	y := okTerminal("Y", map[string]interface{}{"b": 2})
	z := okTerminal("Z", map[string]interface{}{"c": 3})
	r := okResolver("R", "Y")

	first := resolveInOrder(t, s,
		[]*model.TaskHandle{x, running("R", model.TaskKindResolver), running("Z", model.TaskKindTerminal)},
		[]*model.TaskHandle{r, running("Z", model.TaskKindTerminal)},
		[]*model.TaskHandle{y},
		[]*model.TaskHandle{z},
	)
	second := resolveInOrder(t, s,
		[]*model.TaskHandle{z, running("R", model.TaskKindResolver), running("X", model.TaskKindTerminal)},
		[]*model.TaskHandle{r, running("X", model.TaskKindTerminal)},
		[]*model.TaskHandle{running("Y", model.TaskKindTerminal), x},
		[]*model.TaskHandle{y},
	)

	require.Len(t, first.Collected, 3)
	require.Equal(t, first.Collected, second.Collected, cmp.Diff(first.Collected, second.Collected))
	require.Equal(t, 1, decodeInt(t, second.Collected["in1"]))
	require.Equal(t, 2, decodeInt(t, second.Collected["in2"]))
	require.Equal(t, 3, decodeInt(t, second.Collected["in3"]))
}

func TestResolveFailFast(t *testing.T) {
	t.Parallel()

	s := spec(
		model.Link("x", model.Map("a", "in1")),
		model.Link("y", model.Map("b", "in2")),
		model.Link("z", model.Map("c", "in3")),
	)
	st, err := NewResolverState("r", "d", s, nil, 0)
	require.NoError(t, err)
	st.Request()

	// siblings are still running or not even visible yet
	failed := &model.TaskHandle{ID: "y", Kind: model.TaskKindTerminal, Status: model.TaskStatusFinishedFailed}
	_, err = st.Observe(handles(running("x", model.TaskKindTerminal), failed))
	require.True(t, errors.IsDependencyFailure(err))
	require.Regexp(t, "task ID y", err)
}

func TestResolveUnchangedStateIsFixedPoint(t *testing.T) {
	t.Parallel()

	s := spec(
		model.Link("x", model.Map("a", "in1")),
		model.Link("y", model.Map("b", "in2")),
	)
	st, err := NewResolverState("r", "d", s, nil, 0)
	require.NoError(t, err)
	st.Request()

	snapshot := func() string {
		b, err := json.Marshal(st)
		require.NoError(t, err)
		return string(b)
	}

	before := snapshot()
	for i := 0; i < 3; i++ {
		require.Empty(t, st.Request())
		changed, err := st.Observe(handles(running("x", model.TaskKindTerminal), running("y", model.TaskKindTerminal)))
		require.NoError(t, err)
		require.False(t, changed)
		changed, err = st.Observe(nil)
		require.NoError(t, err)
		require.False(t, changed)
		require.Equal(t, before, snapshot())
	}

	// a drained id is never collected again
	xDone := okTerminal("x", map[string]interface{}{"a": 7})
	changed, err := st.Observe(handles(xDone, running("y", model.TaskKindTerminal)))
	require.NoError(t, err)
	require.True(t, changed)
	before = snapshot()
	for i := 0; i < 3; i++ {
		require.Empty(t, st.Request())
		changed, err = st.Observe(handles(xDone, running("y", model.TaskKindTerminal)))
		require.NoError(t, err)
		require.False(t, changed)
		require.Equal(t, before, snapshot())
	}
	require.Equal(t, []model.TaskID{"y"}, st.PendingIDs())
	require.Equal(t, 7, decodeInt(t, st.Collected["in1"]))
}

func TestResolvePassThroughAndInputs(t *testing.T) {
	t.Parallel()

	s := spec(model.Link("x", model.Map("a", "in1")))
	s.PassThrough = map[string]model.Artifact{"seed": model.MustNewArtifact("p", "seed", 5)}
	st, err := NewResolverState("r", "d", s, map[string]model.Artifact{"extra": model.MustNewArtifact("e", "extra", 6)}, 0)
	require.NoError(t, err)
	st.Request()
	_, err = st.Observe(handles(okTerminal("x", map[string]interface{}{"a": 4})))
	require.NoError(t, err)
	require.True(t, st.Complete())
	require.Equal(t, 5, decodeInt(t, st.Collected["seed"]))
	require.Equal(t, 6, decodeInt(t, st.Collected["extra"]))
	require.Equal(t, 4, decodeInt(t, st.Collected["in1"]))
}
