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

package jobsvc

import (
	"github.com/pingcap/depflow/engine/pkg/promutil"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsvcFactory        = promutil.NewFactory4Component("jobsvc")
	taskSubmittedCounter = jobsvcFactory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "depflow",
			Subsystem: "jobsvc",
			Name:      "task_submitted_total",
			Help:      "number of tasks accepted by the job execution service",
		}, []string{"kind"})
	taskFinishedCounter = jobsvcFactory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "depflow",
			Subsystem: "jobsvc",
			Name:      "task_finished_total",
			Help:      "number of tasks moved to a terminal status",
		}, []string{"status"})
	runningJobGauge = jobsvcFactory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "depflow",
			Subsystem: "jobsvc",
			Name:      "running_jobs",
			Help:      "number of terminal jobs waiting for or holding an executor slot",
		})
	jobDurationHistogram = jobsvcFactory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "depflow",
			Subsystem: "jobsvc",
			Name:      "job_duration_seconds",
			Help:      "duration of terminal job bodies",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 20), // 1ms ~ 524s
		}, []string{"job_type"})
)
