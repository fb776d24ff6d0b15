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
	engineModel "github.com/pingcap/depflow/engine/model"
)

// ArtifactRecord is a labeled artifact of the data registry. Labels are
// unique, a label is bound to its first artifact forever.
type ArtifactRecord struct {
	Model
	ID    string `json:"id" gorm:"column:id;type:varchar(128) not null;uniqueIndex:uidx_aid"`
	Label string `json:"label" gorm:"column:label;type:varchar(128) not null;uniqueIndex:uidx_label"`
	Value []byte `json:"value" gorm:"column:value;type:longblob"`
}

// ToArtifact converts the record to an Artifact.
func (r *ArtifactRecord) ToArtifact() engineModel.Artifact {
	return engineModel.Artifact{ID: r.ID, Label: r.Label, Value: r.Value}
}

// NewArtifactRecord converts an Artifact to a record.
func NewArtifactRecord(a engineModel.Artifact) *ArtifactRecord {
	return &ArtifactRecord{ID: a.ID, Label: a.Label, Value: a.Value}
}
