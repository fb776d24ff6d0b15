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
	"github.com/pingcap/depflow/engine/pkg/promutil"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	pipelineFactory  = promutil.NewFactory4Component("pipeline")
	iterationCounter = pipelineFactory.NewCounter(
		prometheus.CounterOpts{
			Namespace: "depflow",
			Subsystem: "pipeline",
			Name:      "iteration_total",
			Help:      "number of iterations whose bread was baked",
		})
	stageSubmittedCounter = pipelineFactory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "depflow",
			Subsystem: "pipeline",
			Name:      "stage_submitted_total",
			Help:      "number of submitted stages",
		}, []string{"stage", "kind"})
	pipelineResultCounter = pipelineFactory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "depflow",
			Subsystem: "pipeline",
			Name:      "finished_total",
			Help:      "number of finished pipeline drivers, by result",
		}, []string{"result"})
)
