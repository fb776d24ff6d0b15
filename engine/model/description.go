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
	"fmt"

	"github.com/pingcap/depflow/pkg/errors"
)

// OutputMapping routes one named output of an upstream task into one named
// input of the dependent job.
type OutputMapping struct {
	Output string `json:"output"`
	Input  string `json:"input"`
}

// Map is a shorthand for OutputMapping{Output: output, Input: input}.
func Map(output, input string) OutputMapping {
	return OutputMapping{Output: output, Input: input}
}

// Same maps every name onto an input with the same name.
func Same(names ...string) []OutputMapping {
	ret := make([]OutputMapping, 0, len(names))
	for _, n := range names {
		ret = append(ret, Map(n, n))
	}
	return ret
}

// LinkID is the position of a dependency link in a resolver's
// dependency list.
type LinkID = int

// DependencyLink is one entry of a resolver's dependency specification.
// An empty Outputs list only orders the dependent job after the upstream
// task.
type DependencyLink struct {
	UpstreamID TaskID          `json:"upstream-id"`
	Outputs    []OutputMapping `json:"outputs,omitempty"`
}

// Link builds a DependencyLink.
func Link(upstream TaskID, mappings ...OutputMapping) DependencyLink {
	return DependencyLink{UpstreamID: upstream, Outputs: mappings}
}

// JobDescription fully describes a job to submit. A resolver
// description carries a ResolveSpec and wraps the description of the
// job it dispatches once every dependency is resolved.
type JobDescription struct {
	// ID is optional. When set, submission is idempotent on it.
	ID      TaskID            `json:"id,omitempty"`
	Kind    TaskKind          `json:"kind"`
	JobType string            `json:"job-type"`
	Labels  map[string]string `json:"labels,omitempty"`

	Resolve *ResolveSpec `json:"resolve,omitempty"`
}

// ResolveSpec is the input of a resolver instance.
type ResolveSpec struct {
	Dependencies []DependencyLink `json:"dependencies"`
	// PassThrough inputs are handed to the target unchanged.
	PassThrough map[string]Artifact `json:"pass-through,omitempty"`
	Target      JobDescription      `json:"target"`
}

// NewTerminalDescription describes a terminal job of the given type.
func NewTerminalDescription(jobType string) JobDescription {
	return JobDescription{Kind: TaskKindTerminal, JobType: jobType}
}

// NewResolverDescription describes a resolver instance that dispatches
// target once all deps are resolved.
func NewResolverDescription(
	target JobDescription, deps []DependencyLink, passThrough map[string]Artifact,
) JobDescription {
	return JobDescription{
		Kind:    TaskKindResolver,
		JobType: target.JobType,
		Labels:  target.Labels,
		Resolve: &ResolveSpec{
			Dependencies: deps,
			PassThrough:  passThrough,
			Target:       target,
		},
	}
}

// WithID returns a copy of the description with a preallocated ID.
func (d JobDescription) WithID(id TaskID) JobDescription {
	d.ID = id
	return d
}

// WithLabel returns a copy of the description with one more label.
func (d JobDescription) WithLabel(key, value string) JobDescription {
	labels := make(map[string]string, len(d.Labels)+1)
	for k, v := range d.Labels {
		labels[k] = v
	}
	labels[key] = value
	d.Labels = labels
	return d
}

// Validate checks the static shape of the description. Dependency
// semantics such as duplicate input bindings are checked by the resolver.
func (d *JobDescription) Validate() error {
	switch d.Kind {
	case TaskKindTerminal:
		if d.JobType == "" {
			return errors.ErrInvalidArgument.GenWithStackByArgs("terminal job without job type")
		}
		if d.Resolve != nil {
			return errors.ErrInvalidArgument.GenWithStackByArgs("terminal job with resolve spec")
		}
		return nil
	case TaskKindResolver:
		if d.Resolve == nil {
			return errors.ErrInvalidArgument.GenWithStackByArgs("resolver without resolve spec")
		}
		if len(d.Resolve.Dependencies) == 0 {
			return errors.ErrEmptyDependencies.GenWithStackByArgs()
		}
		for i, link := range d.Resolve.Dependencies {
			if link.UpstreamID == "" {
				return errors.ErrInvalidArgument.GenWithStackByArgs(
					fmt.Sprintf("dependency link %d has no upstream", i))
			}
		}
		return d.Resolve.Target.Validate()
	default:
		return errors.ErrInvalidArgument.GenWithStackByArgs(
			fmt.Sprintf("unknown task kind %d", d.Kind))
	}
}
