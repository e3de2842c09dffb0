// Copyright 2025 Stagecraft Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stagecrafthq/stagecraft/pkg/logger"
)

// gormLoggerAdapter routes gorm SQL logging through the engine logger.
type gormLoggerAdapter struct {
	config gormlogger.Config
	level  gormlogger.LogLevel
}

// NewGormLoggerAdapter creates a gorm logger backed by the engine logger.
func NewGormLoggerAdapter(config gormlogger.Config, level gormlogger.LogLevel) gormlogger.Interface {
	return &gormLoggerAdapter{config: config, level: level}
}

func (l *gormLoggerAdapter) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLoggerAdapter) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		logger.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormLoggerAdapter) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		logger.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormLoggerAdapter) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		logger.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormLoggerAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error &&
		!(l.config.IgnoreRecordNotFoundError && errors.Is(err, gorm.ErrRecordNotFound)):
		sql, rows := fc()
		logger.ErrorContext(ctx, "sql error", "error", err, "elapsed", elapsed, "rows", rows, "sql", sql)
	case l.config.SlowThreshold > 0 && elapsed > l.config.SlowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		logger.WarnContext(ctx, "slow sql", "threshold", l.config.SlowThreshold, "elapsed", elapsed, "rows", rows, "sql", sql)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		logger.InfoContext(ctx, "sql trace", "elapsed", elapsed, "rows", rows, "sql", sql)
	}
}
