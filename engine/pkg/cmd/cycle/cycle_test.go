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
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestCompleteMergesConfigFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depflow.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
status-addr = "127.0.0.1:8300"

[pipeline]
id = "from-file"
start-iteration = 2
end-iteration = 5
stage-duration = "10ms"
`), 0o644))

	cmd := new(cobra.Command)
	o := newOptions()
	o.addFlags(cmd)
	require.Nil(t, cmd.ParseFlags([]string{
		"--config=" + path,
		"--end-iteration=4",
		"--log-level=warn",
	}))
	require.NoError(t, o.complete(cmd))

	require.Equal(t, "from-file", o.cfg.Pipeline.ID)
	require.Equal(t, 2, o.cfg.Pipeline.StartIteration)
	require.Equal(t, 4, o.cfg.Pipeline.EndIteration)
	require.Equal(t, 10*time.Millisecond, o.cfg.Pipeline.StageDuration)
	require.Equal(t, "127.0.0.1:8300", o.cfg.StatusAddr)
	require.Equal(t, "warn", o.cfg.LogConf.Level)
}

func TestCompleteRejectsInvalidRange(t *testing.T) {
	cmd := new(cobra.Command)
	o := newOptions()
	o.addFlags(cmd)
	require.Nil(t, cmd.ParseFlags([]string{"--start-iteration=3", "--end-iteration=2"}))
	require.Regexp(t, ".*end-iteration 2 is less than start-iteration 3.*", o.complete(cmd).Error())

	cmd = new(cobra.Command)
	o = newOptions()
	o.addFlags(cmd)
	require.Nil(t, cmd.ParseFlags([]string{"--config=" + filepath.Join(t.TempDir(), "missing.toml")}))
	require.Error(t, o.complete(cmd))
}

func TestCompleteWarnsInMemoryStore(t *testing.T) {
	cmd := new(cobra.Command)
	var out bytes.Buffer
	cmd.SetOut(&out)
	o := newOptions()
	o.addFlags(cmd)
	require.Nil(t, cmd.ParseFlags([]string{"--meta-dsn=file:x.db?mode=memory&cache=shared"}))
	require.NoError(t, o.complete(cmd))
	require.Contains(t, out.String(), "[WARN] the metastore is in memory")
}

func TestCycleRunsPipeline(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?cache=shared", filepath.Join(t.TempDir(), "meta.db"))
	args := []string{
		"--meta-dsn=" + dsn,
		"--stage-duration=0s",
		"--tick-interval=5ms",
		"--start-iteration=1",
		"--end-iteration=1",
	}

	cmd := NewCmdCycle()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "pipeline bakery finished")
}
