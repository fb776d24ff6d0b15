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
	"bytes"
	"encoding/json"

	"github.com/pingcap/depflow/pkg/errors"
)

// Artifact is an opaque data reference flowing along a dependency link.
// Resolvers never inspect Value, they only copy artifacts from upstream
// outputs into downstream inputs.
type Artifact struct {
	ID    string          `json:"id"`
	Label string          `json:"label,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// NewArtifact encodes v as the artifact value.
func NewArtifact(id string, label string, v interface{}) (Artifact, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Artifact{}, errors.Trace(err)
	}
	return Artifact{ID: id, Label: label, Value: raw}, nil
}

// MustNewArtifact is like NewArtifact but panics on encoding errors.
func MustNewArtifact(id string, label string, v interface{}) Artifact {
	a, err := NewArtifact(id, label, v)
	if err != nil {
		panic(err)
	}
	return a
}

// Decode decodes the artifact value into v.
func (a Artifact) Decode(v interface{}) error {
	if len(a.Value) == 0 {
		return errors.ErrInvalidArgument.GenWithStackByArgs("artifact " + a.ID + " has no value")
	}
	return errors.Trace(json.Unmarshal(a.Value, v))
}

// Equal returns whether two artifacts refer to the same data.
func (a Artifact) Equal(other Artifact) bool {
	return a.ID == other.ID && a.Label == other.Label && bytes.Equal(a.Value, other.Value)
}
