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

package errors

import (
	"github.com/pingcap/errors"
)

// all dependency flow errors
var (
	// general errors
	ErrUnknown = errors.Normalize(
		"unknown error",
		errors.RFCCodeText("DFLOW:ErrUnknown"),
	)
	ErrInvalidArgument = errors.Normalize(
		"invalid argument: %s",
		errors.RFCCodeText("DFLOW:ErrInvalidArgument"),
	)
	ErrInvalidCliParameter = errors.Normalize(
		"invalid cli parameters",
		errors.RFCCodeText("DFLOW:ErrInvalidCliParameter"),
	)

	// config related errors
	ErrConfigDecodeFail = errors.Normalize(
		"decode config file failed",
		errors.RFCCodeText("DFLOW:ErrConfigDecodeFail"),
	)
	ErrConfigUnknownItem = errors.Normalize(
		"config contains unknown configuration options: %s",
		errors.RFCCodeText("DFLOW:ErrConfigUnknownItem"),
	)

	// resolver related errors
	ErrDependencyFailed = errors.Normalize(
		"dependency did not finish successfully: task ID %s",
		errors.RFCCodeText("DFLOW:ErrDependencyFailed"),
	)
	ErrDuplicateInputBinding = errors.Normalize(
		"input is bound more than once: input %s",
		errors.RFCCodeText("DFLOW:ErrDuplicateInputBinding"),
	)
	ErrCyclicDependency = errors.Normalize(
		"cyclic dependency detected: task ID %s",
		errors.RFCCodeText("DFLOW:ErrCyclicDependency"),
	)
	ErrMissingOutput = errors.Normalize(
		"dependency has no such output: task ID %s, output %s",
		errors.RFCCodeText("DFLOW:ErrMissingOutput"),
	)
	ErrResolverNotComplete = errors.Normalize(
		"resolver has unresolved dependencies: resolver ID %s",
		errors.RFCCodeText("DFLOW:ErrResolverNotComplete"),
	)
	ErrEmptyDependencies = errors.Normalize(
		"resolver needs at least one dependency",
		errors.RFCCodeText("DFLOW:ErrEmptyDependencies"),
	)

	// job execution service related errors
	ErrTaskNotFound = errors.Normalize(
		"task is not found: task ID %s",
		errors.RFCCodeText("DFLOW:ErrTaskNotFound"),
	)
	ErrJobTypeNotFound = errors.Normalize(
		"job type is not found: type %s",
		errors.RFCCodeText("DFLOW:ErrJobTypeNotFound"),
	)
	ErrDuplicateJobType = errors.Normalize(
		"job type is registered more than once: type %s",
		errors.RFCCodeText("DFLOW:ErrDuplicateJobType"),
	)
	ErrLauncherNotFound = errors.Normalize(
		"no launcher is registered for task kind %s",
		errors.RFCCodeText("DFLOW:ErrLauncherNotFound"),
	)
	ErrStatusRegression = errors.Normalize(
		"task status can only move from running to a terminal status: task ID %s",
		errors.RFCCodeText("DFLOW:ErrStatusRegression"),
	)
	ErrJobLost = errors.Normalize(
		"job was running when the previous process exited: task ID %s",
		errors.RFCCodeText("DFLOW:ErrJobLost"),
	)
	ErrServiceClosed = errors.Normalize(
		"job execution service is closed",
		errors.RFCCodeText("DFLOW:ErrServiceClosed"),
	)

	// pipeline related errors
	ErrPipelineFailed = errors.Normalize(
		"pipeline %s failed: %s",
		errors.RFCCodeText("DFLOW:ErrPipelineFailed"),
	)

	// metastore related errors
	ErrMetaNewClientFail = errors.Normalize(
		"create meta client fail",
		errors.RFCCodeText("DFLOW:ErrMetaNewClientFail"),
	)
	ErrMetaOpFail = errors.Normalize(
		"meta operation fail",
		errors.RFCCodeText("DFLOW:ErrMetaOpFail"),
	)
	ErrMetaParamsInvalid = errors.Normalize(
		"meta params invalid:%s",
		errors.RFCCodeText("DFLOW:ErrMetaParamsInvalid"),
	)
	ErrMetaEntryNotFound = errors.Normalize(
		"meta entry not found",
		errors.RFCCodeText("DFLOW:ErrMetaEntryNotFound"),
	)

	// retry related errors
	ErrReachMaxTry = errors.Normalize(
		"reach maximum try: %s, error: %s",
		errors.RFCCodeText("DFLOW:ErrReachMaxTry"),
	)

	// server related errors
	ErrServeHTTP = errors.Normalize(
		"serve status http failed",
		errors.RFCCodeText("DFLOW:ErrServeHTTP"),
	)

	// event loop related errors
	ErrSchedulerClosed = errors.Normalize(
		"step scheduler is closed",
		errors.RFCCodeText("DFLOW:ErrSchedulerClosed"),
	)
)
