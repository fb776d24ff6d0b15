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
	"fmt"
	"time"

	"github.com/pingcap/depflow/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type loggerOption struct {
	slowThreshold                time.Duration
	ignoreTraceRecordNotFoundErr bool
}

type optionFunc func(*loggerOption)

// WithSlowThreshold sets the slow log threshold for gorm log
func WithSlowThreshold(thres time.Duration) optionFunc {
	return func(op *loggerOption) {
		op.slowThreshold = thres
	}
}

// WithIgnoreTraceRecordNotFoundErr sets if ignore 'record not found' error for trace
func WithIgnoreTraceRecordNotFoundErr() optionFunc {
	return func(op *loggerOption) {
		op.ignoreTraceRecordNotFoundErr = true
	}
}

// NewOrmLogger returns a logger which implements logger.Interface on top
// of a zap logger. Statements are traced at debug level.
func NewOrmLogger(lg *zap.Logger, opts ...optionFunc) logger.Interface {
	var op loggerOption
	for _, opt := range opts {
		opt(&op)
	}

	return &ormLogger{
		op:    op,
		lg:    lg.With(zap.String("component", "metastore")),
		level: logger.Info,
	}
}

type ormLogger struct {
	op    loggerOption
	lg    *zap.Logger
	level logger.LogLevel
}

// LogMode returns a copy which drops messages below level.
func (l *ormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.level = level
	return &newLogger
}

func (l *ormLogger) Info(ctx context.Context, format string, args ...interface{}) {
	if l.level >= logger.Info {
		l.lg.Info(fmt.Sprintf(format, args...))
	}
}

func (l *ormLogger) Warn(ctx context.Context, format string, args ...interface{}) {
	if l.level >= logger.Warn {
		l.lg.Warn(fmt.Sprintf(format, args...))
	}
}

func (l *ormLogger) Error(ctx context.Context, format string, args ...interface{}) {
	if l.level >= logger.Error {
		l.lg.Error(fmt.Sprintf(format, args...))
	}
}

func (l *ormLogger) Trace(ctx context.Context, begin time.Time, resFunc func() (sql string, rowsAffected int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := resFunc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("affected-rows", rows),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	switch {
	case err != nil && (!errors.Is(err, gorm.ErrRecordNotFound) || !l.op.ignoreTraceRecordNotFoundErr):
		l.lg.Error("trace log", fields...)
	case l.op.slowThreshold != 0 && elapsed > l.op.slowThreshold:
		l.lg.Warn("slow log", fields...)
	default:
		l.lg.Debug("trace log", fields...)
	}
}
