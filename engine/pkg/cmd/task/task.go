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
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"
	"github.com/mattn/go-shellwords"
	"github.com/pingcap/depflow/engine/config"
	"github.com/pingcap/depflow/engine/pkg/orm"
	"github.com/pingcap/depflow/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// taskGeneralOptions defines the metastore shared by task subcommands.
type taskGeneralOptions struct {
	interact bool

	configFilePath string
	storeType      string
	dsn            string
}

func newTaskGeneralOptions() *taskGeneralOptions {
	return &taskGeneralOptions{}
}

// addFlags receives a *cobra.Command reference and binds
// flags related to template printing to it.
func (o *taskGeneralOptions) addFlags(cmd *cobra.Command) {
	if o == nil {
		return
	}
	defaultStore := orm.DefaultStoreConfig()
	cmd.PersistentFlags().BoolVarP(&o.interact, "interact", "i", false, "Run task commands with readline")
	cmd.PersistentFlags().StringVar(&o.configFilePath, "config", "", "Path of the configuration file")
	cmd.PersistentFlags().StringVar(&o.storeType, "store-type", defaultStore.StoreType, "metastore type (sqlite|mysql)")
	cmd.PersistentFlags().StringVar(&o.dsn, "meta-dsn", defaultStore.DSN, "metastore data source name")
}

// storeConfig merges the config file with the metastore flags.
func (o *taskGeneralOptions) storeConfig(cmd *cobra.Command) (*orm.StoreConfig, error) {
	cfg := config.GetDefaultConfig()
	if len(o.configFilePath) > 0 {
		if err := cfg.ConfigFromFile(o.configFilePath); err != nil {
			return nil, err
		}
	}
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "store-type":
			cfg.MetaConf.StoreType = o.storeType
		case "meta-dsn":
			cfg.MetaConf.DSN = o.dsn
		}
	})
	if err := cfg.MetaConf.Adjust(); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg.MetaConf, nil
}

// openMetastore opens the metastore described by the flags.
func (o *taskGeneralOptions) openMetastore(ctx context.Context, cmd *cobra.Command) (orm.Client, error) {
	storeCfg, err := o.storeConfig(cmd)
	if err != nil {
		return nil, err
	}
	return orm.NewClient(ctx, storeCfg)
}

// NewCmdTask creates the `task` command.
func NewCmdTask() *cobra.Command {
	o := newTaskGeneralOptions()

	cmds := &cobra.Command{
		Use:   "task",
		Short: "Inspect tasks recorded in the metastore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Whether to run interactively or not.
			if o.interact {
				return run(cmd)
			}
			return cmd.Help()
		},
	}

	o.addFlags(cmds)
	cmds.AddCommand(newCmdQueryTask(o))
	cmds.AddCommand(newCmdListTask(o))

	return cmds
}

func run(parent *cobra.Command) error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            "\033[31m»\033[0m ",
		HistoryFile:       filepath.Join(os.TempDir(), "depflow-readline.tmp"),
		InterruptPrompt:   "^C",
		EOFPrompt:         "^D",
		HistorySearchFold: true,
	})
	if err != nil {
		return errors.Trace(err)
	}
	defer l.Close()

	for {
		line, err := l.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			continue
		}
		if line == "exit" {
			return nil
		}
		args, err := shellwords.Parse(line)
		if err != nil {
			fmt.Fprintf(parent.OutOrStdout(), "parse command err: %v\n", err)
			continue
		}

		command := NewCmdTask()
		command.SetArgs(args)
		command.SetOut(parent.OutOrStdout())
		command.SetErr(parent.OutOrStdout())
		if err = command.Execute(); err != nil {
			command.Println(err)
		}
	}
}
