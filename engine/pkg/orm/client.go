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

package orm

import (
	"context"
	"database/sql"

	"github.com/glebarez/sqlite"
	engineModel "github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/engine/pkg/orm/model"
	"github.com/pingcap/depflow/pkg/errors"
	"github.com/pingcap/depflow/pkg/logutil"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var globalModels = []interface{}{
	&model.TaskRecord{},
	&model.StepState{},
	&model.ArtifactRecord{},
}

// Client defines an interface that has the ability to manage every kind of
// logic abstraction in metastore, including task records and step states
type Client interface {
	// Initialize creates all tables in the backend
	Initialize(ctx context.Context) error
	// Close releases the underlying connection
	Close() error
	// TaskClient is the interface to operate task records.
	TaskClient
	// StepStateClient is the interface to operate step states.
	StepStateClient
	// ArtifactClient is the interface to operate labeled artifacts.
	ArtifactClient
}

// TaskClient defines interface that manages task records in metastore
type TaskClient interface {
	// InsertTask inserts a running task record. It returns false without
	// error if a record with the same id already exists.
	InsertTask(ctx context.Context, task *model.TaskRecord) (bool, error)
	// FinishTask moves a running task to a terminal status. Moving a task
	// that is not running returns ErrStatusRegression.
	FinishTask(ctx context.Context, taskID engineModel.TaskID, status engineModel.TaskStatus,
		outputs map[string]engineModel.Artifact, errMsg string) error

	GetTaskByID(ctx context.Context, taskID engineModel.TaskID) (*model.TaskRecord, error)
	QueryTasks(ctx context.Context) ([]*model.TaskRecord, error)
	QueryTasksByStatus(ctx context.Context, status engineModel.TaskStatus) ([]*model.TaskRecord, error)
}

// StepStateClient defines interface that manages persisted step states
type StepStateClient interface {
	UpsertStepState(ctx context.Context, state *model.StepState) error
	GetStepStateByID(ctx context.Context, id string) (*model.StepState, error)
	QueryStepStatesByType(ctx context.Context, tp model.StepType) ([]*model.StepState, error)
	DeleteStepState(ctx context.Context, id string) (Result, error)
}

// ArtifactClient defines interface that manages labeled artifacts
type ArtifactClient interface {
	// InsertArtifact inserts the artifact unless its label is taken. It
	// returns false without error if the label is taken.
	InsertArtifact(ctx context.Context, artifact *model.ArtifactRecord) (bool, error)
	GetArtifactByLabel(ctx context.Context, label string) (*model.ArtifactRecord, error)
}

// NewClient return the client to operate metastore
func NewClient(ctx context.Context, cfg *StoreConfig) (Client, error) {
	if cfg == nil {
		return nil, errors.ErrMetaParamsInvalid.GenWithStackByArgs("input store config is nil")
	}

	var dialector gorm.Dialector
	switch cfg.StoreType {
	case StoreTypeSQLite:
		dialector = sqlite.Open(cfg.DSN)
	case StoreTypeMySQL:
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, errors.ErrMetaParamsInvalid.GenWithStackByArgs("unknown store type " + cfg.StoreType)
	}

	db, err := openGormDB(dialector, NewOrmLogger(log.L(),
		WithSlowThreshold(cfg.SlowThreshold), WithIgnoreTraceRecordNotFoundErr()))
	if err != nil {
		log.L().Error("create gorm client fail",
			zap.String("store-type", cfg.StoreType),
			zap.String("dsn", logutil.HideSensitive(cfg.DSN)),
			zap.Error(err))
		return nil, err
	}
	if cfg.StoreType == StoreTypeSQLite {
		// sqlite allows only one writer, serialize all access on a
		// single connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.ErrMetaNewClientFail.Wrap(err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	cli := &metaOpsClient{db: db}
	if err := cli.Initialize(ctx); err != nil {
		cli.Close()
		return nil, err
	}
	log.L().Info("metastore client created",
		zap.String("store-type", cfg.StoreType),
		zap.String("dsn", logutil.HideSensitive(cfg.DSN)))
	return cli, nil
}

// newClientWithConn builds a mysql flavored client on an existing
// connection without creating tables.
func newClientWithConn(conn *sql.DB) (*metaOpsClient, error) {
	db, err := openGormDB(mysql.New(mysql.Config{
		Conn:                      conn,
		SkipInitializeWithVersion: false,
	}), NewOrmLogger(log.L()))
	if err != nil {
		return nil, err
	}
	return &metaOpsClient{db: db}, nil
}

func openGormDB(dialector gorm.Dialector, lg logger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 lg,
	})
	if err != nil {
		return nil, errors.ErrMetaNewClientFail.Wrap(err)
	}
	return db, nil
}

// metaOpsClient is the meta operations client for metastore
type metaOpsClient struct {
	// gorm claim to be thread safe
	db *gorm.DB
}

// Initialize will create all related tables in SQL backend
func (c *metaOpsClient) Initialize(ctx context.Context) error {
	if err := c.db.WithContext(ctx).AutoMigrate(globalModels...); err != nil {
		return errors.ErrMetaOpFail.Wrap(err)
	}
	return nil
}

func (c *metaOpsClient) Close() error {
	impl, err := c.db.DB()
	if err != nil {
		return errors.ErrMetaOpFail.Wrap(err)
	}
	if impl != nil {
		if err := impl.Close(); err != nil {
			return errors.ErrMetaOpFail.Wrap(err)
		}
	}
	return nil
}

// ///////////////////////////// Task Operation
// InsertTask insert the task record if absent
func (c *metaOpsClient) InsertTask(ctx context.Context, task *model.TaskRecord) (bool, error) {
	if task == nil {
		return false, errors.ErrMetaParamsInvalid.GenWithStackByArgs("input task record is nil")
	}

	result := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(task)
	if result.Error != nil {
		return false, errors.ErrMetaOpFail.Wrap(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FinishTask sets the terminal status of a running task
func (c *metaOpsClient) FinishTask(
	ctx context.Context, taskID engineModel.TaskID, status engineModel.TaskStatus,
	outputs map[string]engineModel.Artifact, errMsg string,
) error {
	if !status.IsTerminal() {
		return errors.ErrMetaParamsInvalid.GenWithStackByArgs("finish task with status " + status.String())
	}
	outputBytes, err := model.EncodeOutputs(outputs)
	if err != nil {
		return errors.ErrMetaParamsInvalid.Wrap(err).GenWithStackByArgs("outputs can not be encoded")
	}

	result := c.db.WithContext(ctx).
		Model(&model.TaskRecord{}).
		Where("id = ? AND status = ?", taskID, engineModel.TaskStatusRunning).
		Updates(model.KeyValueMap{
			"status":        status,
			"outputs":       outputBytes,
			"error_message": errMsg,
		})
	if result.Error != nil {
		return errors.ErrMetaOpFail.Wrap(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// either the task does not exist or it is already terminal
	if _, err := c.GetTaskByID(ctx, taskID); err != nil {
		return err
	}
	return errors.ErrStatusRegression.GenWithStackByArgs(taskID)
}

// GetTaskByID query task record by taskID
func (c *metaOpsClient) GetTaskByID(ctx context.Context, taskID engineModel.TaskID) (*model.TaskRecord, error) {
	var task model.TaskRecord
	if err := c.db.WithContext(ctx).
		Where("id = ?", taskID).
		First(&task).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrMetaEntryNotFound.Wrap(err)
		}

		return nil, errors.ErrMetaOpFail.Wrap(err)
	}

	return &task, nil
}

// QueryTasks query all task records in submission order
func (c *metaOpsClient) QueryTasks(ctx context.Context) ([]*model.TaskRecord, error) {
	var tasks []*model.TaskRecord
	if err := c.db.WithContext(ctx).
		Order("seq_id").
		Find(&tasks).Error; err != nil {
		return nil, errors.ErrMetaOpFail.Wrap(err)
	}

	return tasks, nil
}

// QueryTasksByStatus query task records with the given status in
// submission order
func (c *metaOpsClient) QueryTasksByStatus(
	ctx context.Context, status engineModel.TaskStatus,
) ([]*model.TaskRecord, error) {
	var tasks []*model.TaskRecord
	if err := c.db.WithContext(ctx).
		Where("status = ?", status).
		Order("seq_id").
		Find(&tasks).Error; err != nil {
		return nil, errors.ErrMetaOpFail.Wrap(err)
	}

	return tasks, nil
}

// ///////////////////////////// Step State Operation
// UpsertStepState upsert the step state
func (c *metaOpsClient) UpsertStepState(ctx context.Context, state *model.StepState) error {
	if state == nil {
		return errors.ErrMetaParamsInvalid.GenWithStackByArgs("input step state is nil")
	}

	if err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(model.StepStateUpdateColumns),
		}).Create(state).Error; err != nil {
		return errors.ErrMetaOpFail.Wrap(err)
	}

	return nil
}

// GetStepStateByID query step state by id
func (c *metaOpsClient) GetStepStateByID(ctx context.Context, id string) (*model.StepState, error) {
	var state model.StepState
	if err := c.db.WithContext(ctx).
		Where("id = ?", id).
		First(&state).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrMetaEntryNotFound.Wrap(err)
		}

		return nil, errors.ErrMetaOpFail.Wrap(err)
	}

	return &state, nil
}

// QueryStepStatesByType query all step states of a type in creation order
func (c *metaOpsClient) QueryStepStatesByType(ctx context.Context, tp model.StepType) ([]*model.StepState, error) {
	var states []*model.StepState
	if err := c.db.WithContext(ctx).
		Where("step_type = ?", tp).
		Order("seq_id").
		Find(&states).Error; err != nil {
		return nil, errors.ErrMetaOpFail.Wrap(err)
	}

	return states, nil
}

// DeleteStepState delete the step state
func (c *metaOpsClient) DeleteStepState(ctx context.Context, id string) (Result, error) {
	result := c.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.StepState{})
	if result.Error != nil {
		return nil, errors.ErrMetaOpFail.Wrap(result.Error)
	}

	return &ormResult{rowsAffected: result.RowsAffected}, nil
}

// ///////////////////////////// Artifact Operation
// InsertArtifact insert the artifact if its label is free
func (c *metaOpsClient) InsertArtifact(ctx context.Context, artifact *model.ArtifactRecord) (bool, error) {
	if artifact == nil {
		return false, errors.ErrMetaParamsInvalid.GenWithStackByArgs("input artifact is nil")
	}

	result := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(artifact)
	if result.Error != nil {
		return false, errors.ErrMetaOpFail.Wrap(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetArtifactByLabel query artifact by label
func (c *metaOpsClient) GetArtifactByLabel(ctx context.Context, label string) (*model.ArtifactRecord, error) {
	var artifact model.ArtifactRecord
	if err := c.db.WithContext(ctx).
		Where("label = ?", label).
		First(&artifact).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrMetaEntryNotFound.Wrap(err)
		}

		return nil, errors.ErrMetaOpFail.Wrap(err)
	}

	return &artifact, nil
}

// Result defines a query result interface
type Result interface {
	RowsAffected() int64
}

type ormResult struct {
	rowsAffected int64
}

// RowsAffected return the affected rows of an execution
func (r ormResult) RowsAffected() int64 {
	return r.rowsAffected
}
