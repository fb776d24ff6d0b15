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
	"time"

	"github.com/pingcap/depflow/engine/jobsvc"
	"github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/engine/pkg/clock"
	"github.com/pingcap/depflow/pkg/errors"
	"github.com/pingcap/depflow/pkg/logutil"
	"go.uber.org/zap"
)

// Job types of the six bakery stages.
const (
	StageBuyIngredients = "bakery.buy_ingredients"
	StagePreHeatOven    = "bakery.pre_heat_oven"
	StageMakeDough      = "bakery.make_dough"
	StageBakeBread      = "bakery.bake_bread"
	StageCleanOven      = "bakery.clean_oven"
	StageSellBread      = "bakery.sell_bread"
)

// Stages lists the stage job types in submission order.
var Stages = []string{
	StageBuyIngredients,
	StagePreHeatOven,
	StageMakeDough,
	StageBakeBread,
	StageCleanOven,
	StageSellBread,
}

// ovenTemperature is the value of the oven_hot output.
const ovenTemperature = 180

type stageDef struct {
	report  []string
	inputs  []string
	outputs map[string]interface{}
}

var stageDefs = map[string]stageDef{
	StageBuyIngredients: {
		report:  []string{"buying flour, salt and water"},
		inputs:  []string{"money"},
		outputs: map[string]interface{}{"flour": 1, "water": 1, "salt": 1},
	},
	StagePreHeatOven: {
		report:  []string{"heating the oven"},
		inputs:  []string{"oven_cold"},
		outputs: map[string]interface{}{"oven_hot": ovenTemperature},
	},
	StageMakeDough: {
		report: []string{
			"mixing ingredients", "letting the dough rise",
			"kneading the dough", "letting the dough rise",
		},
		inputs:  []string{"flour", "water", "salt"},
		outputs: map[string]interface{}{"dough": 1},
	},
	StageBakeBread: {
		report:  []string{"baking the bread"},
		inputs:  []string{"oven_clean", "oven_hot", "dough"},
		outputs: map[string]interface{}{"oven_dirty": 1, "bread": 1},
	},
	StageCleanOven: {
		report:  []string{"cleaning the oven"},
		inputs:  []string{"oven_dirty", "oven_hot"},
		outputs: map[string]interface{}{"oven_cold": 1, "oven_clean": 1},
	},
	StageSellBread: {
		report:  []string{"selling bread for money"},
		inputs:  []string{"bread"},
		outputs: map[string]interface{}{"money": 1},
	},
}

// StageFuncs returns the job functions of every stage. Each reported
// activity of a stage takes stageDuration on clk.
func StageFuncs(clk clock.Clock, stageDuration time.Duration) map[string]jobsvc.JobFunc {
	ret := make(map[string]jobsvc.JobFunc, len(stageDefs))
	for tp, def := range stageDefs {
		ret[tp] = newStageFunc(clk, stageDuration, def)
	}
	return ret
}

// RegisterStages registers funcs, as returned by StageFuncs, to reg.
func RegisterStages(reg jobsvc.Registry, funcs map[string]jobsvc.JobFunc) error {
	for _, tp := range Stages {
		fn, ok := funcs[tp]
		if !ok {
			return errors.ErrJobTypeNotFound.GenWithStackByArgs(tp)
		}
		if err := reg.RegisterJobType(tp, fn); err != nil {
			return err
		}
	}
	return nil
}

func newStageFunc(clk clock.Clock, d time.Duration, def stageDef) jobsvc.JobFunc {
	return func(ctx context.Context, inputs map[string]model.Artifact) (map[string]interface{}, error) {
		for _, name := range def.inputs {
			if _, ok := inputs[name]; !ok {
				return nil, errors.ErrInvalidArgument.GenWithStackByArgs("missing stage input " + name)
			}
		}
		logger := logutil.FromContext(ctx)
		for _, activity := range def.report {
			logger.Info(activity, zap.Int("inputs", len(inputs)))
			if d <= 0 {
				continue
			}
			select {
			case <-ctx.Done():
				return nil, errors.Trace(ctx.Err())
			case <-clk.After(d):
			}
		}
		outputs := make(map[string]interface{}, len(def.outputs))
		for name, v := range def.outputs {
			outputs[name] = v
		}
		return outputs, nil
	}
}
