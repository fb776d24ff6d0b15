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
	"github.com/pingcap/depflow/engine/pkg/promutil"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	resolverFactory = promutil.NewFactory4Component("resolver")
	activeRunsGauge = resolverFactory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "depflow",
			Subsystem: "resolver",
			Name:      "active_runs",
			Help:      "number of resolver runs waiting on dependencies",
		})
	chaseCounter = resolverFactory.NewCounter(
		prometheus.CounterOpts{
			Namespace: "depflow",
			Subsystem: "resolver",
			Name:      "chase_total",
			Help:      "number of resolver instances replaced by their dependent",
		})
	dispatchCounter = resolverFactory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "depflow",
			Subsystem: "resolver",
			Name:      "dispatch_total",
			Help:      "number of dispatched dependent jobs",
		}, []string{"job_type"})
	runFinishedCounter = resolverFactory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "depflow",
			Subsystem: "resolver",
			Name:      "run_finished_total",
			Help:      "number of finished resolver runs, by result",
		}, []string{"result"})
	stepDurationHistogram = resolverFactory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "depflow",
			Subsystem: "resolver",
			Name:      "step_duration_seconds",
			Help:      "duration of one resolver step",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 18), // 0.1ms ~ 13s
		})
)
