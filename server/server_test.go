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

package server

import (
	"bufio"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zyue2022/LightWebServer/config"
	"github.com/zyue2022/LightWebServer/logger"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// startServer boots a full server over sqlite and a temp doc root holding
// index.html, returning the address to dial.
func startServer(t *testing.T, timeoutMs int) string {
	t.Helper()

	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "index.html"), []byte("hello world"), 0644))

	log, err := logger.New(logger.Options{Level: logger.ErrorLevel, Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	cfg := config.Default()
	cfg.Port = freePort(t)
	cfg.SQLDriver = "sqlite"
	cfg.DBName = "file::memory:?cache=shared"
	cfg.SQLConnNum = 1
	cfg.ThreadNum = 2
	cfg.SrcDir = srcDir
	cfg.TimeoutMs = timeoutMs

	s, err := New(cfg, log)
	require.NoError(t, err)
	go s.Run()
	t.Cleanup(s.Shutdown)

	time.Sleep(50 * time.Millisecond)
	return "127.0.0.1:" + strconv.Itoa(cfg.Port)
}

// readResponse consumes one status line, the headers, and exactly
// Content-length body bytes off r.
func readResponse(t *testing.T, r *bufio.Reader) (status, body string) {
	t.Helper()

	status, err := r.ReadString('\n')
	require.NoError(t, err)

	contentLen := 0
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
		if v, ok := strings.CutPrefix(strings.ToLower(line), "content-length:"); ok {
			contentLen, err = strconv.Atoi(strings.TrimSpace(v))
			require.NoError(t, err)
		}
	}

	buf := make([]byte, contentLen)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	return status, string(buf)
}

func TestServer_ServesStaticFileEndToEnd(t *testing.T) {
	addr := startServer(t, 0)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	status, body := readResponse(t, bufio.NewReader(conn))
	assert.Contains(t, status, "200 OK")
	assert.Equal(t, "hello world", body)
}

func TestServer_KeepAliveServesSecondRequest(t *testing.T) {
	addr := startServer(t, 60000)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	reader := bufio.NewReader(conn)
	req := []byte("GET / HTTP/1.1\r\nHost: x\r\nConnection: keep-alive\r\n\r\n")

	for i := 0; i < 2; i++ {
		_, err = conn.Write(req)
		require.NoError(t, err)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		status, body := readResponse(t, reader)
		assert.Contains(t, status, "200 OK", "request %d", i+1)
		assert.Equal(t, "hello world", body, "request %d", i+1)
	}
}

func TestServer_IdleConnectionIsClosedByTimer(t *testing.T) {
	addr := startServer(t, 100)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	// Send nothing; the idle timer should tear the connection down.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}
