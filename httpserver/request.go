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
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/zyue2022/LightWebServer/buffer"
	"github.com/zyue2022/LightWebServer/dbpool"
)

// ParseState is the request parser's state machine position.
type ParseState int

const (
	StateRequestLine ParseState = iota
	StateHeader
	StateBody
	StateFinish
)

// ParseResult is what parse(buffer) reports back to the connection driving it.
type ParseResult int

const (
	NoRequest ParseResult = iota
	GetRequest
	BadRequest
	InternalError
)

var (
	requestLineRe = regexp.MustCompile(`^(\S+) (\S+) HTTP/(\S+)$`)
	headerLineRe  = regexp.MustCompile(`^([^:]*): ?(.*)$`)
)

// htmlSuffixRewrite lists the bare paths that gain a .html suffix during
// canonicalization, matching the static site this engine serves.
var htmlSuffixRewrite = map[string]bool{
	"/index":    true,
	"/register": true,
	"/login":    true,
	"/welcome":  true,
	"/video":    true,
	"/picture":  true,
}

// Request holds the incremental parse state for one HTTP request and the
// fields recovered from it.
type Request struct {
	state ParseState

	Method  string
	Path    string
	Version string
	Headers map[string]string
	Form    map[string]string

	body bytes.Buffer
}

// NewRequest returns a Request ready to parse a fresh message.
func NewRequest() *Request {
	return &Request{
		state:   StateRequestLine,
		Headers: make(map[string]string),
	}
}

// Reset reinitializes r for the next request on a keep-alive connection.
func (r *Request) Reset() {
	r.state = StateRequestLine
	r.Method = ""
	r.Path = ""
	r.Version = ""
	r.Headers = make(map[string]string)
	r.Form = nil
	r.body.Reset()
}

// KeepAlive reports whether the parsed request wants the connection kept
// open: Connection: keep-alive and HTTP/1.1.
func (r *Request) KeepAlive() bool {
	return r.Headers["Connection"] == "keep-alive" && r.Version == "1.1"
}

// Parse drives the state machine across whatever new bytes buf holds,
// consuming complete lines/body bytes as it goes and leaving any trailing
// partial line untouched for the next call.
func (r *Request) Parse(buf *buffer.Buffer) ParseResult {
	if r.state == StateFinish {
		r.Reset()
	}

	for r.state != StateFinish {
		switch r.state {
		case StateRequestLine:
			line, ok := nextLine(buf)
			if !ok {
				return NoRequest
			}
			if !r.parseRequestLine(line) {
				return BadRequest
			}
			r.state = StateHeader

		case StateHeader:
			line, ok := nextLine(buf)
			if !ok {
				return NoRequest
			}
			m := headerLineRe.FindStringSubmatch(line)
			if m == nil {
				// The empty line separating headers from body misses the
				// header regex, ending the header section.
				r.state = StateBody
				if r.Method == "GET" {
					r.state = StateFinish
					return GetRequest
				}
				continue
			}
			r.Headers[m[1]] = m[2]

		case StateBody:
			if !r.consumeBody(buf) {
				return NoRequest
			}
			r.finishBody()
			r.state = StateFinish
			return GetRequest
		}
	}

	return GetRequest
}

// nextLine pops one CRLF-terminated line (sans the CRLF) from buf, or
// reports false if no full line is available yet.
func nextLine(buf *buffer.Buffer) (string, bool) {
	readable := buf.BeginRead()
	idx := bytes.Index(readable, []byte("\r\n"))
	if idx < 0 {
		return "", false
	}
	line := buf.Retrieve(idx)
	buf.HasRead(2) // consume the CRLF itself
	return string(line), true
}

func (r *Request) parseRequestLine(line string) bool {
	m := requestLineRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	r.Method = m[1]
	r.Path = canonicalizePath(m[2])
	r.Version = m[3]
	return true
}

func canonicalizePath(p string) string {
	if p == "/" {
		return "/index.html"
	}
	if htmlSuffixRewrite[p] {
		return p + ".html"
	}
	return p
}

// consumeBody moves readable bytes into the body until Content-Length is
// satisfied, reporting whether the body is complete.
func (r *Request) consumeBody(buf *buffer.Buffer) bool {
	lenStr, has := r.Headers["Content-Length"]
	if !has {
		return true
	}
	want, err := strconv.Atoi(strings.TrimSpace(lenStr))
	if err != nil || want < 0 {
		want = 0
	}

	need := want - r.body.Len()
	if need <= 0 {
		return true
	}

	have := buf.ReadableBytes()
	if have == 0 {
		return false
	}
	take := need
	if take > have {
		take = have
	}
	r.body.Write(buf.Retrieve(take))

	return r.body.Len() >= want
}

func (r *Request) finishBody() {
	if r.Headers["Content-Type"] == "application/x-www-form-urlencoded" {
		r.Form = decodeForm(r.body.String())
	}
}

// decodeForm implements the engine's bespoke application/x-www-form-urlencoded
// decoder: split on '&', then '=' within each pair, '+' becomes space and
// %HH becomes the corresponding byte. A pair missing the '=' still yields a
// trailing key with an empty value.
func decodeForm(body string) map[string]string {
	out := make(map[string]string)
	if body == "" {
		return out
	}
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		out[decodeFormValue(k)] = decodeFormValue(v)
	}
	return out
}

func decodeFormValue(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '+':
			b.WriteByte(' ')
		case s[i] == '%' && i+2 < len(s):
			if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// ApplyLoginRegister runs the login/register routing the default HTML pages
// trigger: on a POST to register.html/login.html it calls VerifyUser against
// pool and rewrites Path to welcome.html or error.html per the outcome. Any
// other method or path is left untouched.
func (r *Request) ApplyLoginRegister(pool *dbpool.Pool) error {
	if r.Method != "POST" {
		return nil
	}
	isLogin := r.Path == "/login.html"
	if !isLogin && r.Path != "/register.html" {
		return nil
	}

	ok, err := dbpool.VerifyUser(pool, r.Form["username"], r.Form["password"], isLogin)
	if err != nil {
		return err
	}
	if ok {
		r.Path = "/welcome.html"
	} else {
		r.Path = "/error.html"
	}
	return nil
}
