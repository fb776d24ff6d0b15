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

package logutil

import (
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

const (
	// constFieldComponentKey is used to recognize the emitting component
	constFieldComponentKey = "component"
	// constFieldResolverKey is used to recognize one resolver instance
	constFieldResolverKey = "resolver_id"
	// constFieldPipelineKey is used to recognize one pipeline driver
	constFieldPipelineKey = "pipeline_id"
	// constFieldJobKey is used to recognize one terminal job
	constFieldJobKey = "job_id"
	// constFieldJobTypeKey is used to recognize jobs of the same job type
	constFieldJobTypeKey = "job_type"
)

// NewLogger4Resolver return a new logger for a resolver instance
func NewLogger4Resolver(resolverID string) *zap.Logger {
	return log.L().With(
		zap.String(constFieldComponentKey, "resolver"),
		zap.String(constFieldResolverKey, resolverID),
	)
}

// NewLogger4Pipeline return a new logger for a pipeline driver
func NewLogger4Pipeline(pipelineID string) *zap.Logger {
	return log.L().With(
		zap.String(constFieldComponentKey, "pipeline"),
		zap.String(constFieldPipelineKey, pipelineID),
	)
}

// NewLogger4Job return a new logger for a terminal job
func NewLogger4Job(jobType string, jobID string) *zap.Logger {
	return log.L().With(
		zap.String(constFieldComponentKey, "executor"),
		zap.String(constFieldJobTypeKey, jobType),
		zap.String(constFieldJobKey, jobID),
	)
}

// NewLogger4Service return a new logger for the job execution service
func NewLogger4Service() *zap.Logger {
	return log.L().With(
		zap.String(constFieldComponentKey, "jobsvc"),
	)
}
