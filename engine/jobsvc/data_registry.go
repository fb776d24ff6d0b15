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
	"context"

	"github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/engine/pkg/orm"
	ormModel "github.com/pingcap/depflow/engine/pkg/orm/model"
	"github.com/pingcap/depflow/engine/pkg/uuid"
	"github.com/pingcap/depflow/pkg/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// ArtifactFactory produces the value of a labeled artifact the first time
// the label is requested.
type ArtifactFactory func(ctx context.Context, label string) (interface{}, error)

// DataRegistry looks up artifacts by label and creates missing ones.
type DataRegistry struct {
	metaCli orm.ArtifactClient
	idGen   uuid.Generator
	factory ArtifactFactory
}

// NewDataRegistry creates a DataRegistry. factory is used for labels that
// are not yet registered.
func NewDataRegistry(metaCli orm.ArtifactClient, idGen uuid.Generator, factory ArtifactFactory) *DataRegistry {
	return &DataRegistry{
		metaCli: metaCli,
		idGen:   idGen,
		factory: factory,
	}
}

// GetOrCreate returns the artifact bound to label, creating it with the
// factory if needed. Concurrent callers always observe the same artifact.
func (r *DataRegistry) GetOrCreate(ctx context.Context, label string) (model.Artifact, error) {
	rec, err := r.metaCli.GetArtifactByLabel(ctx, label)
	if err == nil {
		return rec.ToArtifact(), nil
	}
	if !orm.IsNotFoundError(err) {
		return model.Artifact{}, err
	}

	value, err := r.factory(ctx, label)
	if err != nil {
		return model.Artifact{}, errors.Trace(err)
	}
	artifact, err := model.NewArtifact(r.idGen.NewString(), label, value)
	if err != nil {
		return model.Artifact{}, err
	}
	created, err := r.metaCli.InsertArtifact(ctx, ormModel.NewArtifactRecord(artifact))
	if err != nil {
		return model.Artifact{}, err
	}
	if created {
		log.L().Info("artifact created",
			zap.String("label", label), zap.String("artifact-id", artifact.ID))
		return artifact, nil
	}

	// lost the race, the label is bound to another artifact
	rec, err = r.metaCli.GetArtifactByLabel(ctx, label)
	if err != nil {
		return model.Artifact{}, err
	}
	return rec.ToArtifact(), nil
}
