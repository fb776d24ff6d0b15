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

package model

import (
	"encoding/json"
	"testing"

	"github.com/pingcap/depflow/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestTaskStatusJSON(t *testing.T) {
	t.Parallel()

	for _, s := range []TaskStatus{TaskStatusRunning, TaskStatusFinishedOk, TaskStatusFinishedFailed} {
		bytes, err := json.Marshal(s)
		require.NoError(t, err)
		require.Equal(t, `"`+s.String()+`"`, string(bytes))
		var s2 TaskStatus
		require.NoError(t, json.Unmarshal(bytes, &s2))
		require.Equal(t, s, s2)
	}

	var s TaskStatus
	require.Error(t, json.Unmarshal([]byte(`"Paused"`), &s))
	require.Error(t, json.Unmarshal([]byte(`""`), &s))
	require.Equal(t, "Unknown TaskStatus 10", TaskStatus(10).String())

	s, err := ParseTaskStatus("FinishedFailed")
	require.NoError(t, err)
	require.Equal(t, TaskStatusFinishedFailed, s)
	_, err = ParseTaskStatus("")
	require.Error(t, err)

	require.False(t, TaskStatusRunning.IsTerminal())
	require.True(t, TaskStatusFinishedOk.IsTerminal())
	require.True(t, TaskStatusFinishedFailed.IsTerminal())
}

func TestTaskKindJSON(t *testing.T) {
	t.Parallel()

	bytes, err := json.Marshal(TaskKindResolver)
	require.NoError(t, err)
	require.Equal(t, `"Resolver"`, string(bytes))
	var k TaskKind
	require.NoError(t, json.Unmarshal([]byte(`"Terminal"`), &k))
	require.Equal(t, TaskKindTerminal, k)
	require.Error(t, json.Unmarshal([]byte(`"Unknown"`), &k))
}

func TestTaskHandleOutputs(t *testing.T) {
	t.Parallel()

	dep := MustNewArtifact("a-1", DependentIDOutput, "job-1")
	h := &TaskHandle{
		ID:      "resolver-1",
		Kind:    TaskKindResolver,
		Status:  TaskStatusRunning,
		Outputs: map[string]Artifact{DependentIDOutput: dep},
	}
	// outputs are hidden until the task finished ok
	_, ok := h.Output(DependentIDOutput)
	require.False(t, ok)
	_, err := h.DependentID()
	require.True(t, errors.Is(err, errors.ErrMissingOutput))

	h.Status = TaskStatusFinishedOk
	id, err := h.DependentID()
	require.NoError(t, err)
	require.Equal(t, "job-1", id)

	cloned := h.Clone()
	cloned.Outputs["other"] = dep
	require.Len(t, h.Outputs, 1)

	terminal := &TaskHandle{ID: "job-1", Kind: TaskKindTerminal, Status: TaskStatusFinishedOk}
	_, err = terminal.DependentID()
	require.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestArtifact(t *testing.T) {
	t.Parallel()

	a := MustNewArtifact("a-1", "flour", map[string]int{"kg": 2})
	var v map[string]int
	require.NoError(t, a.Decode(&v))
	require.Equal(t, 2, v["kg"])
	require.True(t, a.Equal(MustNewArtifact("a-1", "flour", map[string]int{"kg": 2})))
	require.False(t, a.Equal(MustNewArtifact("a-2", "flour", map[string]int{"kg": 2})))

	require.Error(t, Artifact{ID: "empty"}.Decode(&v))
	_, err := NewArtifact("bad", "", make(chan int))
	require.Error(t, err)
}

func TestJobDescriptionValidate(t *testing.T) {
	t.Parallel()

	terminal := NewTerminalDescription("bake")
	require.NoError(t, terminal.Validate())

	resolver := NewResolverDescription(terminal, []DependencyLink{
		Link("heat-1", Map("oven_hot", "oven_hot")),
		Link("dough-1", Same("dough")...),
	}, nil)
	require.NoError(t, resolver.Validate())
	require.Equal(t, "bake", resolver.JobType)

	nested := NewResolverDescription(resolver, []DependencyLink{Link("buy-1")}, nil)
	require.NoError(t, nested.Validate())

	cases := []struct {
		desc JobDescription
		err  *errors.Error
	}{
		{JobDescription{Kind: TaskKindTerminal}, errors.ErrInvalidArgument},
		{JobDescription{Kind: TaskKindTerminal, JobType: "x", Resolve: &ResolveSpec{}}, errors.ErrInvalidArgument},
		{JobDescription{Kind: TaskKindResolver, JobType: "x"}, errors.ErrInvalidArgument},
		{NewResolverDescription(terminal, nil, nil), errors.ErrEmptyDependencies},
		{NewResolverDescription(terminal, []DependencyLink{Link("")}, nil), errors.ErrInvalidArgument},
		{NewResolverDescription(NewTerminalDescription(""), []DependencyLink{Link("a")}, nil), errors.ErrInvalidArgument},
		{JobDescription{JobType: "x"}, errors.ErrInvalidArgument},
	}
	for _, tc := range cases {
		err := tc.desc.Validate()
		require.Error(t, err)
		require.True(t, errors.Is(err, tc.err), "%v", err)
	}
}

func TestJobDescriptionCopyHelpers(t *testing.T) {
	t.Parallel()

	d := NewTerminalDescription("sell").WithLabel("iteration", "1")
	d2 := d.WithLabel("stage", "sell").WithID("sell-1")
	require.Equal(t, map[string]string{"iteration": "1"}, d.Labels)
	require.Equal(t, "sell", d2.Labels["stage"])
	require.Equal(t, "sell-1", d2.ID)
	require.Empty(t, d.ID)
}
