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
	"regexp"
	"testing"
	"time"

	"github.com/pingcap/depflow/pkg/errors"
	"github.com/pingcap/log"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestLoggerOpt(t *testing.T) {
	t.Parallel()

	var op loggerOption
	WithSlowThreshold(30 * time.Second)(&op)
	require.Equal(t, 30*time.Second, op.slowThreshold)

	require.False(t, op.ignoreTraceRecordNotFoundErr)
	WithIgnoreTraceRecordNotFoundErr()(&op)
	require.True(t, op.ignoreTraceRecordNotFoundErr)
}

func TestNewOrmLogger(t *testing.T) {
	t.Parallel()

	var buffer zaptest.Buffer
	zapLg, _, err := log.InitLoggerWithWriteSyncer(&log.Config{Level: "warn"}, &buffer, nil)
	require.NoError(t, err)

	lg := NewOrmLogger(zapLg, WithSlowThreshold(3*time.Second), WithIgnoreTraceRecordNotFoundErr())
	lg.Info(context.TODO(), "%s test", "info")
	require.Equal(t, 0, len(buffer.Lines()))

	lg.Warn(context.TODO(), "%s test", "warn")
	require.Regexp(t, regexp.QuoteMeta("warn test"), buffer.Stripped())
	require.Regexp(t, regexp.QuoteMeta("[component=metastore]"), buffer.Stripped())
	buffer.Reset()

	lg.Error(context.TODO(), "%s test", "error")
	require.Regexp(t, regexp.QuoteMeta("error test"), buffer.Stripped())
	buffer.Reset()

	fc := func() (sql string, rowsAffected int64) { return "sql test", 10 }
	lg.Trace(context.TODO(), time.Now(), fc, nil)
	require.Equal(t, 0, len(buffer.Lines()))

	lg.Trace(context.TODO(), time.Now().Add(-10*time.Second), fc, nil)
	require.Regexp(t, regexp.MustCompile(`\["slow log"\] \[component=metastore\] \[elapsed=10.*s\] \[sql="sql test"\] \[affected-rows=10\]`), buffer.Stripped())
	buffer.Reset()

	lg.Trace(context.TODO(), time.Now(), fc, errors.New("error test"))
	require.Regexp(t, regexp.QuoteMeta("[ERROR]"), buffer.Stripped())
	require.Regexp(t, regexp.QuoteMeta(`[error="error test"]`), buffer.Stripped())
	buffer.Reset()

	lg.Trace(context.TODO(), time.Now(), fc, gorm.ErrRecordNotFound)
	// expect no log here because it's a debug log
	require.Equal(t, 0, len(buffer.Lines()))

	silent := lg.LogMode(logger.Silent)
	silent.Error(context.TODO(), "%s test", "error")
	silent.Trace(context.TODO(), time.Now(), fc, errors.New("error test"))
	require.Equal(t, 0, len(buffer.Lines()))

	// LogMode returns a copy
	lg.Error(context.TODO(), "%s test", "error")
	require.Equal(t, 1, len(buffer.Lines()))
}
