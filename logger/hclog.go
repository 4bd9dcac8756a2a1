/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
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
	"io"
	"log"

	"github.com/hashicorp/go-hclog"
)

type bridgeHCLog struct {
	l *Logger
}

// NewHashicorpHCLog adapts Logger to the hclog.Logger interface so
// third-party libraries that expect hclog (e.g. some database drivers) can
// log through the same rotated/queued sink as the rest of the engine.
func (l *Logger) NewHashicorpHCLog() hclog.Logger {
	return &bridgeHCLog{l: l}
}

func (b *bridgeHCLog) Log(level hclog.Level, msg string, args ...interface{}) {
	switch level {
	case hclog.Trace, hclog.Debug:
		b.l.Debug(msg, args...)
	case hclog.Info:
		b.l.Info(msg, args...)
	case hclog.Warn:
		b.l.Warning(msg, args...)
	case hclog.Error:
		b.l.Error(msg, args...)
	}
}

func (b *bridgeHCLog) Trace(msg string, args ...interface{}) { b.l.Debug(msg, args...) }
func (b *bridgeHCLog) Debug(msg string, args ...interface{}) { b.l.Debug(msg, args...) }
func (b *bridgeHCLog) Info(msg string, args ...interface{})  { b.l.Info(msg, args...) }
func (b *bridgeHCLog) Warn(msg string, args ...interface{})  { b.l.Warning(msg, args...) }
func (b *bridgeHCLog) Error(msg string, args ...interface{}) { b.l.Error(msg, args...) }

func (b *bridgeHCLog) IsTrace() bool { return b.l.GetLevel() <= DebugLevel }
func (b *bridgeHCLog) IsDebug() bool { return b.l.GetLevel() <= DebugLevel }
func (b *bridgeHCLog) IsInfo() bool  { return b.l.GetLevel() <= InfoLevel }
func (b *bridgeHCLog) IsWarn() bool  { return b.l.GetLevel() <= WarnLevel }
func (b *bridgeHCLog) IsError() bool { return b.l.GetLevel() <= ErrorLevel }

func (b *bridgeHCLog) ImpliedArgs() []interface{} { return nil }

func (b *bridgeHCLog) With(args ...interface{}) hclog.Logger { return b }

func (b *bridgeHCLog) Name() string { return "lightwebserver" }

func (b *bridgeHCLog) Named(name string) hclog.Logger { return b }

func (b *bridgeHCLog) ResetNamed(name string) hclog.Logger { return b }

func (b *bridgeHCLog) SetLevel(level hclog.Level) {}

func (b *bridgeHCLog) GetLevel() hclog.Level { return hclog.Info }
func (b *bridgeHCLog) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(b.l, "", 0)
}
func (b *bridgeHCLog) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	return b.l
}

var _ hclog.Logger = (*bridgeHCLog)(nil)
