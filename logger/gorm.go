/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	gorlog "gorm.io/gorm/logger"
)

type gormBridge struct {
	l              *Logger
	ignoreNotFound bool
	slowThreshold  time.Duration
}

// NewGormLogger adapts Logger to gorm's logger.Interface so every query the
// DB pool runs funnels through the same rotated sink as everything else,
// instead of GORM's own stdout logger.
func (l *Logger) NewGormLogger(ignoreRecordNotFoundError bool, slowThreshold time.Duration) gorlog.Interface {
	return &gormBridge{l: l, ignoreNotFound: ignoreRecordNotFoundError, slowThreshold: slowThreshold}
}

func (g *gormBridge) LogMode(level gorlog.LogLevel) gorlog.Interface {
	switch level {
	case gorlog.Silent:
		g.l.SetLevel(FatalLevel + 1)
	case gorlog.Info:
		g.l.SetLevel(InfoLevel)
	case gorlog.Warn:
		g.l.SetLevel(WarnLevel)
	case gorlog.Error:
		g.l.SetLevel(ErrorLevel)
	}
	return g
}

func (g *gormBridge) Info(ctx context.Context, s string, args ...interface{}) {
	g.l.Info(s, args...)
}

func (g *gormBridge) Warn(ctx context.Context, s string, args ...interface{}) {
	g.l.Warning(s, args...)
}

func (g *gormBridge) Error(ctx context.Context, s string, args ...interface{}) {
	g.l.Error(s, args...)
}

func (g *gormBridge) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && (!errors.Is(err, gorlog.ErrRecordNotFound) || !g.ignoreNotFound):
		g.l.Error(fmt.Sprintf("[%s] %s (rows=%d): %v", elapsed, sql, rows, err))
	case g.slowThreshold != 0 && elapsed > g.slowThreshold:
		g.l.Warning(fmt.Sprintf("SLOW SQL >= %s: [%s] %s (rows=%d)", g.slowThreshold, elapsed, sql, rows))
	default:
		g.l.Debug(fmt.Sprintf("[%s] %s (rows=%d)", elapsed, sql, rows))
	}
}
