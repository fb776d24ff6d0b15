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
	"github.com/pingcap/depflow/engine/pkg/promutil"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	schedulerFactory    = promutil.NewFactory4Component("scheduler")
	activeSteppersGauge = schedulerFactory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "depflow",
			Subsystem: "scheduler",
			Name:      "active_steppers",
			Help:      "number of steppers registered in a scheduler",
		}, []string{"scheduler"})
	stepErrorCounter = schedulerFactory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "depflow",
			Subsystem: "scheduler",
			Name:      "step_error_total",
			Help:      "total number of transient step errors",
		}, []string{"scheduler"})
	tickDurationHistogram = schedulerFactory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "depflow",
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Bucketed histogram of the duration of one scheduler tick",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"scheduler"})
)

