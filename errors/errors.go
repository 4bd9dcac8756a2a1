/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package errors provides a small error-code/trace system shared by every
// component of the engine (buffer, queue, timer, reactor, http, server...).
// Each component owns a range of codes so a bare numeric code is enough to
// tell which subsystem raised it.
package errors

import (
	"fmt"
	"runtime"
)

// CodeError is a numeric classification for an Error, similar in spirit to
// an HTTP status code: callers branch on it instead of string-matching.
type CodeError uint16

const UnknownError CodeError = 0

// Per-component code ranges. Every component gets 100 codes of headroom.
const (
	MinPkgBuffer     CodeError = 100
	MinPkgQueue      CodeError = 200
	MinPkgLogger     CodeError = 300
	MinPkgThreadPool CodeError = 400
	MinPkgDBPool     CodeError = 500
	MinPkgTimer      CodeError = 600
	MinPkgReactor    CodeError = 700
	MinPkgHTTP       CodeError = 800
	MinPkgConnection CodeError = 900
	MinPkgServer     CodeError = 1000
	MinPkgConfig     CodeError = 1100
)

// Error extends the standard error with a numeric code, an optional parent
// chain, and the call site that raised it.
type Error interface {
	error
	Code() CodeError
	IsCode(code CodeError) bool
	GetParent() []error
	Add(parent ...error)
	GetTrace() string
}

type ers struct {
	code    CodeError
	message string
	parent  []error
	trace   runtime.Frame
}

// New registers a reusable error kind: calling the returned function attaches
// a parent error (may be nil) and captures the call site.
func New(code CodeError, message string) func(parent error) Error {
	return func(parent error) Error {
		e := &ers{
			code:    code,
			message: message,
		}

		if pc, file, line, ok := runtime.Caller(1); ok {
			e.trace = runtime.Frame{PC: pc, File: file, Line: line}
		}

		if parent != nil {
			e.parent = []error{parent}
		}

		return e
	}
}

func (e *ers) Error() string {
	if e == nil {
		return ""
	} else if len(e.parent) == 0 {
		return e.message
	}

	msg := e.message
	for _, p := range e.parent {
		if p == nil {
			continue
		}
		msg += ": " + p.Error()
	}
	return msg
}

func (e *ers) Code() CodeError {
	if e == nil {
		return UnknownError
	}
	return e.code
}

func (e *ers) IsCode(code CodeError) bool {
	return e != nil && e.code == code
}

func (e *ers) GetParent() []error {
	if e == nil {
		return nil
	}
	return e.parent
}

func (e *ers) Add(parent ...error) {
	for _, p := range parent {
		if p != nil {
			e.parent = append(e.parent, p)
		}
	}
}

func (e *ers) GetTrace() string {
	if e == nil || e.trace.PC == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", e.trace.File, e.trace.Line)
}
