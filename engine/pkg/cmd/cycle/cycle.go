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
package cycle

import (
	"os"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/pingcap/depflow/engine/config"
	"github.com/pingcap/depflow/engine/eventloop"
	"github.com/pingcap/depflow/engine/pkg/cmd/util"
	"github.com/pingcap/depflow/engine/pkg/orm"
	"github.com/pingcap/depflow/engine/server"
	"github.com/pingcap/depflow/pkg/errors"
	"github.com/pingcap/depflow/pkg/logutil"
	"github.com/pingcap/depflow/pkg/version"
	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// options defines flags for the `cycle` command.
type options struct {
	cfg            *config.Config
	configFilePath string
}

// newOptions creates new options for the `cycle` command.
func newOptions() *options {
	return &options{
		cfg: config.GetDefaultConfig(),
	}
}

// addFlags receives a *cobra.Command reference and binds
// flags related to template printing to it.
func (o *options) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.cfg.Pipeline.ID, "pipeline-id", o.cfg.Pipeline.ID, "id of the pipeline, reuse it to resume")
	cmd.Flags().IntVar(&o.cfg.Pipeline.StartIteration, "start-iteration", o.cfg.Pipeline.StartIteration, "first iteration to run")
	cmd.Flags().IntVar(&o.cfg.Pipeline.EndIteration, "end-iteration", o.cfg.Pipeline.EndIteration, "last iteration to run")
	cmd.Flags().StringVar(&o.cfg.Pipeline.StageDurationStr, "stage-duration", o.cfg.Pipeline.StageDurationStr, "duration of each stage activity")
	cmd.Flags().IntVar(&o.cfg.Executor.WorkerConcurrency, "worker-concurrency", o.cfg.Executor.WorkerConcurrency, "max number of jobs running at once")
	cmd.Flags().StringVar(&o.cfg.Scheduler.TickIntervalStr, "tick-interval", o.cfg.Scheduler.TickIntervalStr, "interval between scheduler ticks")

	cmd.Flags().StringVar(&o.cfg.MetaConf.StoreType, "store-type", o.cfg.MetaConf.StoreType, "metastore type (sqlite|mysql)")
	cmd.Flags().StringVar(&o.cfg.MetaConf.DSN, "meta-dsn", o.cfg.MetaConf.DSN, "metastore data source name")
	cmd.Flags().StringVar(&o.cfg.StatusAddr, "status-addr", o.cfg.StatusAddr, "address serving metrics and task status, empty to disable")

	cmd.Flags().StringVar(&o.configFilePath, "config", "", "Path of the configuration file")
	cmd.Flags().StringVar(&o.cfg.LogConf.File, "log-file", o.cfg.LogConf.File, "log file path")
	cmd.Flags().StringVar(&o.cfg.LogConf.Level, "log-level", o.cfg.LogConf.Level, "log level (etc: debug|info|warn|error)")
}

// complete adapts from the command line args and config file to the data required.
func (o *options) complete(cmd *cobra.Command) error {
	cfg := config.GetDefaultConfig()
	if len(o.configFilePath) > 0 {
		if err := cfg.ConfigFromFile(o.configFilePath); err != nil {
			return err
		}
	}

	cmd.Flags().Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "pipeline-id":
			cfg.Pipeline.ID = o.cfg.Pipeline.ID
		case "start-iteration":
			cfg.Pipeline.StartIteration = o.cfg.Pipeline.StartIteration
		case "end-iteration":
			cfg.Pipeline.EndIteration = o.cfg.Pipeline.EndIteration
		case "stage-duration":
			cfg.Pipeline.StageDurationStr = o.cfg.Pipeline.StageDurationStr
		case "worker-concurrency":
			cfg.Executor.WorkerConcurrency = o.cfg.Executor.WorkerConcurrency
		case "tick-interval":
			cfg.Scheduler.TickIntervalStr = o.cfg.Scheduler.TickIntervalStr
		case "store-type":
			cfg.MetaConf.StoreType = o.cfg.MetaConf.StoreType
		case "meta-dsn":
			cfg.MetaConf.DSN = o.cfg.MetaConf.DSN
		case "status-addr":
			cfg.StatusAddr = o.cfg.StatusAddr
		case "config":
			// do nothing
		case "log-file":
			cfg.LogConf.File = o.cfg.LogConf.File
		case "log-level":
			cfg.LogConf.Level = o.cfg.LogConf.Level
		default:
			log.Panic("unknown flag, please report a bug", zap.String("flagName", flag.Name))
		}
	})

	if err := cfg.Adjust(); err != nil {
		return errors.Trace(err)
	}
	if cfg.MetaConf.StoreType == orm.StoreTypeSQLite && strings.Contains(cfg.MetaConf.DSN, "mode=memory") {
		cmd.Printf(color.HiYellowString("[WARN] the metastore is in memory, " +
			"the pipeline can not be resumed after this process exits.\n"))
	}

	o.cfg = cfg
	return nil
}

// run runs the cycle cmd.
func (o *options) run(cmd *cobra.Command) error {
	if err := logutil.InitLogger(&o.cfg.LogConf); err != nil {
		return errors.Trace(err)
	}
	version.LogVersionInfo("depflow cycle")
	log.Info("cycle config", zap.Stringer("config", o.cfg))
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := util.InitCmd(cmd)
	defer cancel()

	srv, err := server.NewServer(o.cfg)
	if err != nil {
		return errors.Trace(err)
	}
	start := time.Now()
	err = srv.Run(ctx)
	if err != nil && !eventloop.IsCanceledError(err) {
		log.Error("run pipeline with error", zap.Error(err))
		return err
	}
	if err != nil {
		log.Info("pipeline interrupted, run again with the same metastore to resume",
			zap.String("pipeline-id", o.cfg.Pipeline.ID))
		return nil
	}
	elapsed := units.HumanDuration(time.Since(start))
	log.Info("pipeline finished",
		zap.String("pipeline-id", o.cfg.Pipeline.ID), zap.String("elapsed", elapsed))
	cmd.Printf("pipeline %s finished in %s\n", o.cfg.Pipeline.ID, elapsed)
	return nil
}

// NewCmdCycle creates the `cycle` command.
func NewCmdCycle() *cobra.Command {
	o := newOptions()

	command := &cobra.Command{
		Use:   "cycle",
		Short: "Run the bakery pipeline over a range of iterations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.complete(cmd); err != nil {
				return err
			}
			return o.run(cmd)
		},
	}

	o.addFlags(command)

	return command
}
