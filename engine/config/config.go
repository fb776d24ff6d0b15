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

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/depflow/engine/pkg/orm"
	"github.com/pingcap/depflow/pkg/errors"
	"github.com/pingcap/depflow/pkg/logutil"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

const (
	defaultTickInterval      = "50ms"
	defaultMaxChaseDepth     = 64
	defaultWorkerConcurrency = 8
	defaultPipelineID        = "bakery"
	defaultStartIteration    = 1
	defaultEndIteration      = 3
	defaultStageDuration     = "1s"
)

// SchedulerConfig configures the step scheduler and resolver runs.
type SchedulerConfig struct {
	TickIntervalStr string `toml:"tick-interval" json:"tick-interval"`
	MaxChaseDepth   int    `toml:"max-chase-depth" json:"max-chase-depth"`

	TickInterval time.Duration `toml:"-" json:"-"`
}

// ExecutorConfig configures the local job execution service.
type ExecutorConfig struct {
	WorkerConcurrency int `toml:"worker-concurrency" json:"worker-concurrency"`
}

// PipelineConfig configures the bakery pipeline driver.
type PipelineConfig struct {
	ID               string `toml:"id" json:"id"`
	StartIteration   int    `toml:"start-iteration" json:"start-iteration"`
	EndIteration     int    `toml:"end-iteration" json:"end-iteration"`
	StageDurationStr string `toml:"stage-duration" json:"stage-duration"`

	StageDuration time.Duration `toml:"-" json:"-"`
}

// Config is the configuration of a depflow process.
type Config struct {
	LogConf  logutil.Config   `toml:"log" json:"log"`
	MetaConf *orm.StoreConfig `toml:"metastore" json:"metastore"`

	Scheduler SchedulerConfig `toml:"scheduler" json:"scheduler"`
	Executor  ExecutorConfig  `toml:"executor" json:"executor"`
	Pipeline  PipelineConfig  `toml:"pipeline" json:"pipeline"`

	// StatusAddr serves metrics when set.
	StatusAddr string `toml:"status-addr" json:"status-addr"`
}

// GetDefaultConfig returns a default config
func GetDefaultConfig() *Config {
	return &Config{
		LogConf: logutil.Config{
			Level: "info",
			File:  "",
		},
		MetaConf: orm.DefaultStoreConfig(),
		Scheduler: SchedulerConfig{
			TickIntervalStr: defaultTickInterval,
			MaxChaseDepth:   defaultMaxChaseDepth,
		},
		Executor: ExecutorConfig{
			WorkerConcurrency: defaultWorkerConcurrency,
		},
		Pipeline: PipelineConfig{
			ID:               defaultPipelineID,
			StartIteration:   defaultStartIteration,
			EndIteration:     defaultEndIteration,
			StageDurationStr: defaultStageDuration,
		},
	}
}

func (c *Config) String() string {
	cfg, err := json.Marshal(c)
	if err != nil {
		log.L().Error("marshal to json", zap.Reflect("depflow config", c), logutil.ShortError(err))
	}
	return string(cfg)
}

// Toml returns TOML format representation of config.
func (c *Config) Toml() (string, error) {
	var b bytes.Buffer

	err := toml.NewEncoder(&b).Encode(c)
	if err != nil {
		log.L().Error("fail to marshal config to toml", logutil.ShortError(err))
		return "", errors.Trace(err)
	}

	return b.String(), nil
}

// Adjust parses duration items, fills defaults and validates the config.
func (c *Config) Adjust() (err error) {
	c.LogConf.Adjust()
	if c.MetaConf == nil {
		c.MetaConf = orm.DefaultStoreConfig()
	}
	if err := c.MetaConf.Adjust(); err != nil {
		return err
	}

	if c.Scheduler.TickIntervalStr == "" {
		c.Scheduler.TickIntervalStr = defaultTickInterval
	}
	c.Scheduler.TickInterval, err = time.ParseDuration(c.Scheduler.TickIntervalStr)
	if err != nil {
		return errors.ErrInvalidArgument.Wrap(err).GenWithStackByArgs("scheduler.tick-interval")
	}
	if c.Scheduler.TickInterval <= 0 {
		return errors.ErrInvalidArgument.GenWithStackByArgs("scheduler.tick-interval must be positive")
	}
	if c.Scheduler.MaxChaseDepth <= 0 {
		c.Scheduler.MaxChaseDepth = defaultMaxChaseDepth
	}
	if c.Executor.WorkerConcurrency <= 0 {
		c.Executor.WorkerConcurrency = defaultWorkerConcurrency
	}

	if c.Pipeline.ID == "" {
		c.Pipeline.ID = defaultPipelineID
	}
	if c.Pipeline.StageDurationStr == "" {
		c.Pipeline.StageDurationStr = defaultStageDuration
	}
	c.Pipeline.StageDuration, err = time.ParseDuration(c.Pipeline.StageDurationStr)
	if err != nil {
		return errors.ErrInvalidArgument.Wrap(err).GenWithStackByArgs("pipeline.stage-duration")
	}
	if c.Pipeline.StageDuration < 0 {
		return errors.ErrInvalidArgument.GenWithStackByArgs("pipeline.stage-duration must not be negative")
	}
	if c.Pipeline.StartIteration < 1 {
		return errors.ErrInvalidArgument.GenWithStackByArgs(
			fmt.Sprintf("pipeline.start-iteration %d is less than 1", c.Pipeline.StartIteration))
	}
	if c.Pipeline.EndIteration < c.Pipeline.StartIteration {
		return errors.ErrInvalidArgument.GenWithStackByArgs(
			fmt.Sprintf("pipeline.end-iteration %d is less than start-iteration %d",
				c.Pipeline.EndIteration, c.Pipeline.StartIteration))
	}
	return nil
}

// ConfigFromFile loads config from file and merges items into Config.
func (c *Config) ConfigFromFile(path string) error {
	metaData, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.WrapError(errors.ErrConfigDecodeFail, err)
	}
	return checkUndecodedItems(metaData)
}

func (c *Config) configFromString(data string) error {
	metaData, err := toml.Decode(data, c)
	if err != nil {
		return errors.WrapError(errors.ErrConfigDecodeFail, err)
	}
	return checkUndecodedItems(metaData)
}

func checkUndecodedItems(metaData toml.MetaData) error {
	undecoded := metaData.Undecoded()
	if len(undecoded) > 0 {
		var undecodedItems []string
		for _, item := range undecoded {
			undecodedItems = append(undecodedItems, item.String())
		}
		return errors.ErrConfigUnknownItem.GenWithStackByArgs(strings.Join(undecodedItems, ","))
	}
	return nil
}
