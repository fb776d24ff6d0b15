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
	ormModel "github.com/pingcap/depflow/engine/pkg/orm/model"
	"github.com/pingcap/depflow/pkg/errors"
	"github.com/spf13/cobra"
)

// listTaskOptions defines flags for task list.
type listTaskOptions struct {
	generalOpts *taskGeneralOptions

	status string
}

// newListTaskOptions creates new list task options.
func newListTaskOptions(generalOpts *taskGeneralOptions) *listTaskOptions {
	return &listTaskOptions{generalOpts: generalOpts}
}

// addFlags receives a *cobra.Command reference and binds
// flags related to template printing to it.
func (o *listTaskOptions) addFlags(cmd *cobra.Command) {
	if o == nil {
		return
	}

	cmd.Flags().StringVar(&o.status, "status", "", "only list tasks in this status (Running|FinishedOk|FinishedFailed)")
}

// run the `task list` command.
func (o *listTaskOptions) run(ctx context.Context, cmd *cobra.Command) error {
	var (
		status model.TaskStatus
		err    error
	)
	if o.status != "" {
		if status, err = model.ParseTaskStatus(o.status); err != nil {
			return errors.ErrInvalidCliParameter.Wrap(err).GenWithStack("invalid status %s", o.status)
		}
	}

	cli, err := o.generalOpts.openMetastore(ctx, cmd)
	if err != nil {
		return err
	}
	defer cli.Close()

	var recs []*ormModel.TaskRecord
	if status == 0 {
		recs, err = cli.QueryTasks(ctx)
	} else {
		recs, err = cli.QueryTasksByStatus(ctx, status)
	}
	if err != nil {
		return err
	}

	handles := make([]*model.TaskHandle, 0, len(recs))
	for _, rec := range recs {
		h, err := rec.ToHandle()
		if err != nil {
			return err
		}
		handles = append(handles, h)
	}
	return util.JSONPrint(cmd, handles)
}

// newCmdListTask creates the `task list` command.
func newCmdListTask(generalOpts *taskGeneralOptions) *cobra.Command {
	o := newListTaskOptions(generalOpts)

	command := &cobra.Command{
		Use:   "list",
		Short: "List tasks in submission order",
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
