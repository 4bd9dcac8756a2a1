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

package httpserver

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zyue2022/LightWebServer/buffer"
	"golang.org/x/sys/unix"
)

var statusText = map[int]string{
	200: "OK",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
}

func statusLine(code int) string {
	text, ok := statusText[code]
	if !ok {
		code, text = 400, statusText[400]
	}
	return fmt.Sprintf("HTTP/1.1 %d %s\r\n", code, text)
}

var errorPage = map[int]string{
	400: "/400.html",
	403: "/403.html",
	404: "/404.html",
}

// Response builds the status line, headers, and mapped file body for one
// HTTP reply. The zero value is not usable; build one with NewResponse.
type Response struct {
	srcDir      string
	path        string
	isKeepAlive bool
	statusCode  int

	mapped []byte
}

// NewResponse starts a fresh response targeting srcDir+path at the given
// status and keep-alive policy. It holds no mapping yet; releasing a prior
// response's mapping is the caller's job (see Connection.Process).
func NewResponse(srcDir, path string, isKeepAlive bool, statusCode int) *Response {
	return &Response{srcDir: srcDir, path: path, isKeepAlive: isKeepAlive, statusCode: statusCode}
}

// MakeResponse resolves the target file, finalizes the status code, appends
// the status line and headers to buf, and memory-maps the body for the
// caller to scatter alongside the header bytes.
func (r *Response) MakeResponse(buf *buffer.Buffer) error {
	fullPath := filepath.Join(r.srcDir, r.path)

	info, statErr := os.Stat(fullPath)
	switch {
	case statErr != nil:
		r.statusCode = 404
	case info.Mode().Perm()&0004 == 0:
		r.statusCode = 403
	case info.IsDir():
		r.statusCode = 400
	}

	if r.statusCode != 200 {
		info = nil
		if alt, ok := errorPage[r.statusCode]; ok {
			if altInfo, err := os.Stat(filepath.Join(r.srcDir, alt)); err == nil && !altInfo.IsDir() {
				r.path = alt
				fullPath = filepath.Join(r.srcDir, alt)
				info = altInfo
			}
		}
	}

	body := r.inlineErrorBodyBytes()
	if info != nil {
		if err := r.mapFile(fullPath, int(info.Size())); err == nil {
			body = nil
		}
	}

	buf.AppendString(statusLine(r.statusCode))
	if body != nil {
		r.appendHeaders(buf, int64(len(body)))
		buf.Append(body)
	} else {
		r.appendHeaders(buf, int64(r.FileLen()))
	}

	return nil
}

func (r *Response) appendHeaders(buf *buffer.Buffer, contentLength int64) {
	if r.isKeepAlive {
		buf.AppendString("Connection: keep-alive\r\n")
		buf.AppendString("keep-alive: timeout=120, max=6\r\n")
	} else {
		buf.AppendString("Connection: close\r\n")
	}
	buf.AppendString(fmt.Sprintf("Content-type: %s\r\n", mimeFor(r.path)))
	buf.AppendString(fmt.Sprintf("Content-length: %d\r\n\r\n", contentLength))
}

// inlineErrorBodyBytes is the fallback body used when no error page exists
// on disk (or the target file cannot be opened or mapped).
func (r *Response) inlineErrorBodyBytes() []byte {
	code := r.statusCode
	text, ok := statusText[code]
	if !ok {
		code, text = 400, statusText[400]
	}
	return []byte(fmt.Sprintf(
		"<html><title>Error</title><body bgcolor=\"ffffff\">%d : %s\n<p>File NotFound!</p><hr></body></html>",
		code, text))
}

func (r *Response) mapFile(fullPath string, size int) error {
	if size == 0 {
		r.mapped = []byte{}
		return nil
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return ErrOpenFile(err)
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return ErrMmap(err)
	}
	r.mapped = data
	return nil
}

// File returns the mapped body, or nil if none is mapped.
func (r *Response) File() []byte { return r.mapped }

// FileLen returns the length of the mapped body.
func (r *Response) FileLen() int { return len(r.mapped) }

// UnmapFile releases the mapping. Idempotent.
func (r *Response) UnmapFile() {
	if len(r.mapped) == 0 {
		r.mapped = nil
		return
	}
	_ = unix.Munmap(r.mapped)
	r.mapped = nil
}
