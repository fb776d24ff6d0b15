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
package task

import (
	"context"

	"github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/engine/pkg/cmd/util"
	"github.com/pingcap/depflow/pkg/errors"
	"github.com/spf13/cobra"
)

// queryTaskOptions defines flags for task query.
type queryTaskOptions struct {
	generalOpts *taskGeneralOptions

	taskID string
}

// newQueryTaskOptions creates new query task options.
func newQueryTaskOptions(generalOpts *taskGeneralOptions) *queryTaskOptions {
	return &queryTaskOptions{generalOpts: generalOpts}
}

// addFlags receives a *cobra.Command reference and binds
// flags related to template printing to it.
func (o *queryTaskOptions) addFlags(cmd *cobra.Command) {
	if o == nil {
		return
	}

	cmd.Flags().StringVar(&o.taskID, "id", "", "task id")
	_ = cmd.MarkFlagRequired("id")
}

// run the `task query` command.
func (o *queryTaskOptions) run(ctx context.Context, cmd *cobra.Command) error {
	if o.taskID == "" {
		return errors.ErrInvalidCliParameter.GenWithStack("task id can't be empty")
	}
	cli, err := o.generalOpts.openMetastore(ctx, cmd)
	if err != nil {
		return err
	}
	defer cli.Close()

	rec, err := cli.GetTaskByID(ctx, o.taskID)
	if err != nil {
		return err
	}
	h, err := rec.ToHandle()
	if err != nil {
		return err
	}
	return util.JSONPrint(cmd, struct {
		*model.TaskHandle
		Dependent model.TaskID `json:"dependent-id,omitempty"`
	}{TaskHandle: h, Dependent: dependentOf(h)})
}

// dependentOf returns the job dispatched by a finished resolver.
func dependentOf(h *model.TaskHandle) model.TaskID {
	if h.Kind != model.TaskKindResolver || h.Status != model.TaskStatusFinishedOk {
		return ""
	}
	id, err := h.DependentID()
	if err != nil {
		return ""
	}
	return id
}

// newCmdQueryTask creates the `task query` command.
func newCmdQueryTask(generalOpts *taskGeneralOptions) *cobra.Command {
	o := newQueryTaskOptions(generalOpts)

	command := &cobra.Command{
		Use:   "query",
		Short: "Query a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := util.InitCmd(cmd)
			defer cancel()
			return o.run(ctx, cmd)
		},
	}

	o.addFlags(command)

	return command
}
