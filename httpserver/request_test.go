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
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zyue2022/LightWebServer/buffer"
	"github.com/zyue2022/LightWebServer/dbpool"
)

func feed(buf *buffer.Buffer, s string) {
	buf.AppendString(s)
}

func TestRequest_GetRequestRootRewritesToIndex(t *testing.T) {
	buf := buffer.New(0)
	feed(buf, "GET / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")

	r := NewRequest()
	result := r.Parse(buf)

	require.Equal(t, GetRequest, result)
	assert.Equal(t, "/index.html", r.Path)
	assert.True(t, r.KeepAlive())
}

func TestRequest_BareNameGetsHTMLSuffix(t *testing.T) {
	buf := buffer.New(0)
	feed(buf, "GET /login HTTP/1.1\r\n\r\n")

	r := NewRequest()
	result := r.Parse(buf)

	require.Equal(t, GetRequest, result)
	assert.Equal(t, "/login.html", r.Path)
}

func TestRequest_MalformedRequestLineIsBadRequest(t *testing.T) {
	buf := buffer.New(0)
	feed(buf, "GARBAGE\r\n\r\n")

	r := NewRequest()
	assert.Equal(t, BadRequest, r.Parse(buf))
}

func TestRequest_IncompleteRequestLineWaitsForMoreBytes(t *testing.T) {
	buf := buffer.New(0)
	feed(buf, "GET /index.html HTTP/1.1")

	r := NewRequest()
	assert.Equal(t, NoRequest, r.Parse(buf))

	feed(buf, "\r\n\r\n")
	assert.Equal(t, GetRequest, r.Parse(buf))
}

func TestRequest_PostWaitsForFullBody(t *testing.T) {
	buf := buffer.New(0)
	feed(buf, "POST /login.html HTTP/1.1\r\nContent-Length: 24\r\nContent-Type: application/x-www-form-urlencoded\r\n\r\nusername=bob&passwo")

	r := NewRequest()
	assert.Equal(t, NoRequest, r.Parse(buf))

	feed(buf, "rd=hi")
	result := r.Parse(buf)
	require.Equal(t, GetRequest, result)
	assert.Equal(t, "bob", r.Form["username"])
	assert.Equal(t, "hi", r.Form["password"])
}

func TestDecodeForm_PlusAndPercentEscapes(t *testing.T) {
	form := decodeForm("name=John+Doe&note=a%2Bb%20c")
	assert.Equal(t, "John Doe", form["name"])
	assert.Equal(t, "a+b c", form["note"])
}

func TestDecodeForm_TrailingKeyWithoutValue(t *testing.T) {
	form := decodeForm("a=1&flag")
	assert.Equal(t, "1", form["a"])
	assert.Equal(t, "", form["flag"])
}

func loginPool(t *testing.T) *dbpool.Pool {
	t.Helper()
	p, err := dbpool.Open(dbpool.Config{Driver: "sqlite", DBName: "file::memory:?cache=shared", Size: 1})
	require.NoError(t, err)
	t.Cleanup(p.Close)

	l, err := dbpool.Acquire(p)
	require.NoError(t, err)
	defer l.Release()
	require.NoError(t, l.DB().AutoMigrate(&dbpool.User{}))
	require.NoError(t, l.DB().Create(&dbpool.User{Username: "alice", Password: "pw1"}).Error)
	return p
}

func parsePost(t *testing.T, target, form string) *Request {
	t.Helper()
	buf := buffer.New(0)
	feed(buf, "POST "+target+" HTTP/1.1\r\nHost: x\r\nContent-Length: "+
		strconv.Itoa(len(form))+"\r\nContent-Type: application/x-www-form-urlencoded\r\n\r\n"+form)

	r := NewRequest()
	require.Equal(t, GetRequest, r.Parse(buf))
	return r
}

func TestRequest_PostLoginSuccessRewritesToWelcome(t *testing.T) {
	p := loginPool(t)

	r := parsePost(t, "/login.html", "username=alice&password=pw1")
	require.NoError(t, r.ApplyLoginRegister(p))
	assert.Equal(t, "/welcome.html", r.Path)
}

func TestRequest_PostLoginWrongPasswordRewritesToError(t *testing.T) {
	p := loginPool(t)

	r := parsePost(t, "/login.html", "username=alice&password=nope")
	require.NoError(t, r.ApplyLoginRegister(p))
	assert.Equal(t, "/error.html", r.Path)
}

func TestRequest_PostRegisterDuplicateRewritesToError(t *testing.T) {
	p := loginPool(t)

	r := parsePost(t, "/register.html", "username=alice&password=pw2")
	require.NoError(t, r.ApplyLoginRegister(p))
	assert.Equal(t, "/error.html", r.Path)
}

func TestRequest_GetLoginPageIsServedWithoutVerification(t *testing.T) {
	buf := buffer.New(0)
	feed(buf, "GET /login HTTP/1.1\r\n\r\n")

	r := NewRequest()
	require.Equal(t, GetRequest, r.Parse(buf))
	require.NoError(t, r.ApplyLoginRegister(nil))
	assert.Equal(t, "/login.html", r.Path)
}
