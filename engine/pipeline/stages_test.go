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
	"testing"
	"time"

	"github.com/pingcap/depflow/engine/jobsvc"
	"github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/engine/pkg/clock"
	"github.com/pingcap/depflow/pkg/errors"
	"github.com/stretchr/testify/require"
)

func stageInputs(names ...string) map[string]model.Artifact {
	ret := make(map[string]model.Artifact, len(names))
	for _, n := range names {
		ret[n] = model.MustNewArtifact(n, n, 1)
	}
	return ret
}

func TestStageFuncs(t *testing.T) {
	t.Parallel()

	funcs := StageFuncs(clock.New(), 0)
	require.Len(t, funcs, len(Stages))

	out, err := funcs[StagePreHeatOven](context.Background(), stageInputs("oven_cold"))
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"oven_hot": ovenTemperature}, out)

	out, err = funcs[StageBakeBread](context.Background(), stageInputs("oven_clean", "oven_hot", "dough"))
	require.NoError(t, err)
	require.Contains(t, out, "bread")
	require.Contains(t, out, "oven_dirty")

	_, err = funcs[StageMakeDough](context.Background(), stageInputs("flour", "water"))
	require.True(t, errors.Is(err, errors.ErrInvalidArgument))
	require.Regexp(t, "salt", err)
}

func TestStageFuncWaitsOnClock(t *testing.T) {
	t.Parallel()

	clk := clock.NewMock()
	fn := StageFuncs(clk, time.Second)[StageSellBread]

	type result struct {
		out map[string]interface{}
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		out, err := fn(context.Background(), stageInputs("bread"))
		resCh <- result{out, err}
	}()

	require.Eventually(t, func() bool {
		clk.Add(time.Second)
		select {
		case res := <-resCh:
			require.NoError(t, res.err)
			require.Equal(t, map[string]interface{}{"money": 1}, res.out)
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStageFuncCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fn := StageFuncs(clock.New(), time.Hour)[StageBuyIngredients]
	_, err := fn(ctx, stageInputs("money"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRegisterStages(t *testing.T) {
	t.Parallel()

	reg := jobsvc.NewRegistry()
	funcs := StageFuncs(clock.New(), 0)
	require.NoError(t, RegisterStages(reg, funcs))
	require.Len(t, reg.JobTypes(), len(Stages))

	err := RegisterStages(reg, funcs)
	require.True(t, errors.Is(err, errors.ErrDuplicateJobType))

	delete(funcs, StageCleanOven)
	err = RegisterStages(jobsvc.NewRegistry(), funcs)
	require.True(t, errors.Is(err, errors.ErrJobTypeNotFound))
}

func TestStateHelpers(t *testing.T) {
	t.Parallel()

	st := newState("p", 4, 8)
	st.Iteration = 6
	require.Equal(t, 3, st.Relative())

	_, ok := st.Last(StageSellBread, 1)
	require.False(t, ok)
	st.Submitted[StageSellBread] = []model.TaskID{"s1", "s2", "s3"}
	id, ok := st.Last(StageSellBread, 2)
	require.True(t, ok)
	require.Equal(t, "s2", id)
	_, ok = st.Last(StageSellBread, 4)
	require.False(t, ok)
	_, ok = st.Last(StageSellBread, 0)
	require.False(t, ok)
}

func TestPhaseJSON(t *testing.T) {
	t.Parallel()

	for _, p := range []Phase{PhaseInit, PhaseIterationRunning, PhaseDone} {
		b, err := json.Marshal(p)
		require.NoError(t, err)
		var got Phase
		require.NoError(t, json.Unmarshal(b, &got))
		require.Equal(t, p, got)
	}
	b, err := json.Marshal(PhaseIterationRunning)
	require.NoError(t, err)
	require.Equal(t, `"IterationRunning"`, string(b))

	var p Phase
	require.Error(t, json.Unmarshal([]byte(`"Baking"`), &p))
}

func TestSeedFactory(t *testing.T) {
	t.Parallel()

	v, err := SeedFactory(context.Background(), SeedMoney)
	require.NoError(t, err)
	require.Equal(t, defaultSeedUnit, v)
	_, err = SeedFactory(context.Background(), "unknown")
	require.True(t, errors.Is(err, errors.ErrInvalidArgument))
}
