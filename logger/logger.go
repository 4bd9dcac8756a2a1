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

// Package logger is the process-wide singleton log sink: synchronous by
// default, or asynchronous (backed by a bounded queue.Queue and a dedicated
// writer goroutine) when configured with a queue size. Rotation happens
// before every write, switching files when the calendar day changes or the
// line count crosses a 50,000-line cap.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zyue2022/LightWebServer/queue"
)

const linesPerFile = 50000

// Options configures a Logger at construction time.
type Options struct {
	Level     Level
	Dir       string
	Suffix    string // e.g. ".log"
	QueueSize int    // 0 selects synchronous mode
	Console   bool   // additionally echo to stderr, colorized by level
}

// Logger is the engine's async/sync log sink. The zero value is not usable;
// build one with New.
type Logger struct {
	mu        sync.Mutex
	level     Level
	dir       string
	suffix    string
	console   bool
	file      *os.File
	day       string
	splitIdx  int
	lineCount int

	async bool
	q     *queue.Queue[string]
	wg    sync.WaitGroup
	done  chan struct{}
}

// New builds and opens a Logger per opt. Async mode is enabled whenever
// opt.QueueSize > 0, spawning the dedicated writer goroutine that drains the
// queue and writes each line to the current file.
func New(opt Options) (*Logger, error) {
	if opt.Suffix == "" {
		opt.Suffix = ".log"
	}
	if opt.Dir == "" {
		opt.Dir = "./log"
	}

	l := &Logger{
		level:   opt.Level,
		dir:     opt.Dir,
		suffix:  opt.Suffix,
		console: opt.Console,
	}

	if err := os.MkdirAll(l.dir, 0777); err != nil {
		return nil, ErrOpenLogDir(err)
	}

	if err := l.rotateLocked(); err != nil {
		return nil, err
	}

	if opt.QueueSize > 0 {
		l.async = true
		l.q = queue.New[string](opt.QueueSize)
		l.done = make(chan struct{})
		l.wg.Add(1)
		go l.writerLoop()
	}

	return l, nil
}

// SetLevel changes the minimum level of log message accepted.
func (l *Logger) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = lvl
}

// GetLevel returns the minimum accepted level.
func (l *Logger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *Logger) fileName() string {
	if l.splitIdx == 0 {
		return filepath.Join(l.dir, l.day+l.suffix)
	}
	return filepath.Join(l.dir, fmt.Sprintf("%s-%d%s", l.day, l.splitIdx, l.suffix))
}

// rotateLocked must be called with l.mu held. It reopens the backing file
// when the calendar day has changed or the 50,000-line cap was crossed.
func (l *Logger) rotateLocked() error {
	today := time.Now().Format("2006_01_02")

	needRotate := l.file == nil
	if today != l.day {
		l.day = today
		l.splitIdx = 0
		l.lineCount = 0
		needRotate = true
	} else if l.lineCount > 0 && l.lineCount%linesPerFile == 0 {
		l.splitIdx++
		needRotate = true
	}

	if !needRotate {
		return nil
	}

	if l.file != nil {
		_ = l.file.Sync()
		_ = l.file.Close()
	}

	f, err := os.OpenFile(l.fileName(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return ErrOpenLogFile(err)
	}
	l.file = f
	return nil
}

func (l *Logger) formatLine(lvl Level, message string, args ...interface{}) string {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	tag := lvl.String()
	line := fmt.Sprintf("%s [%s] %s\n", time.Now().Format("2006-01-02 15:04:05.000"), tag, message)

	if l.console {
		fmt.Fprintf(os.Stderr, "%s [%s] %s\n", time.Now().Format("15:04:05"), lvl.colorize(tag), message)
	}
	return line
}

// Write satisfies io.Writer so other libraries (logrus, hclog, gorm) can use
// the Logger as their output sink. Bytes written this way bypass level
// filtering: the caller already decided the message is worth keeping.
func (l *Logger) Write(p []byte) (int, error) {
	l.enqueueOrWriteSync(string(p))
	return len(p), nil
}

// Close flushes and shuts down the logger. In async mode it closes the queue
// and waits for the writer goroutine to drain it.
func (l *Logger) Close() error {
	if l.async {
		l.q.Close()
		l.wg.Wait()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Sync()
		return l.file.Close()
	}
	return nil
}

// Flush forces the current file to sync. In async mode it also nudges the
// writer goroutine by waiting for the queue to drain.
func (l *Logger) Flush() {
	if l.async {
		for !l.q.Empty() {
			time.Sleep(time.Millisecond)
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Sync()
	}
}

func (l *Logger) enqueueOrWriteSync(line string) {
	if l.async {
		if !l.q.TryPush(line) {
			l.writeSync(line)
		}
		return
	}
	l.writeSync(line)
}

func (l *Logger) writeSync(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.rotateLocked()
	if l.file != nil {
		_, _ = l.file.WriteString(line)
	}
	l.lineCount++
}

func (l *Logger) writerLoop() {
	defer l.wg.Done()
	for {
		line, ok := l.q.Pop()
		if !ok {
			return
		}
		l.writeSync(line)
	}
}

func (l *Logger) log(lvl Level, message string, args ...interface{}) {
	if lvl < l.GetLevel() {
		return
	}
	l.enqueueOrWriteSync(l.formatLine(lvl, message, args...))
}

func (l *Logger) Debug(message string, args ...interface{})   { l.log(DebugLevel, message, args...) }
func (l *Logger) Info(message string, args ...interface{})    { l.log(InfoLevel, message, args...) }
func (l *Logger) Warning(message string, args ...interface{}) { l.log(WarnLevel, message, args...) }
func (l *Logger) Error(message string, args ...interface{})   { l.log(ErrorLevel, message, args...) }

// Fatal logs at FatalLevel, flushes, then terminates the process.
func (l *Logger) Fatal(message string, args ...interface{}) {
	l.log(FatalLevel, message, args...)
	l.Flush()
	os.Exit(1)
}
