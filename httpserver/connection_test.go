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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestConnection_ReadProcessWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("hello"), 0644))

	fdServer, fdClient := socketPair(t)

	c := NewConnection(dir, nil)
	c.Init(fdServer, nil, false)

	req := "GET / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n"
	_, err := unix.Write(fdClient, []byte(req))
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, errno := c.Read()
	require.NoError(t, errno)

	ready := c.Process()
	require.True(t, ready)
	assert.True(t, c.KeepAlive())

	_, werr := c.Write()
	require.NoError(t, werr)

	out := make([]byte, 4096)
	n, err := unix.Read(fdClient, out)
	require.NoError(t, err)
	response := string(out[:n])
	assert.Contains(t, response, "HTTP/1.1 200 OK")
	assert.Contains(t, response, "hello")
}

func TestConnection_CloseConnIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	fdServer, _ := socketPair(t)

	c := NewConnection(dir, nil)
	c.Init(fdServer, nil, false)

	before := UserCount()
	c.CloseConn()
	c.CloseConn()
	assert.Equal(t, before-1, UserCount())
}

// TestConnection_AdvancePartialHeaderWriteDoesNotLeaveStalePrefix exercises
// the two-segment (header + mmap'd file) drain across several partial
// writev-sized advances, the shape a large file body produces when the
// socket's send buffer can't absorb it in one call. It guards against the
// write buffer's read cursor under-advancing while iov[0] still refers to
// the header, which would leave a stale readable prefix in writeBuf for the
// next keep-alive response to be appended after.
func TestConnection_AdvancePartialHeaderWriteDoesNotLeaveStalePrefix(t *testing.T) {
	dir := t.TempDir()
	c := NewConnection(dir, nil)
	c.Init(0, nil, false)

	header := "HTTP/1.1 200 OK\r\nContent-length: 5\r\n\r\n"
	c.writeBuf.AppendString(header)
	file := []byte("hello")

	c.iovBase[0] = c.writeBuf.BeginRead()
	c.iovBase[1] = file
	c.iovCount = 2

	// Partial write: only part of the header segment goes out.
	c.advance(10)
	assert.Equal(t, len(header)-10, c.writeBuf.ReadableBytes(),
		"writeBuf's read cursor must advance with a partial header write")
	assert.Equal(t, 2, c.iovCount)

	// Drain the rest of the header in one go; iov[1] (the file) gets promoted to iov[0].
	c.advance(len(header) - 10)
	assert.Equal(t, 0, c.writeBuf.ReadableBytes())
	assert.Equal(t, 1, c.iovCount)
	assert.Equal(t, file, c.iovBase[0])

	// Partial write of the promoted file segment must not perturb writeBuf,
	// which is already fully drained.
	c.advance(3)
	assert.Equal(t, 0, c.writeBuf.ReadableBytes())
	assert.Equal(t, []byte("lo"), c.iovBase[0])

	c.advance(2)
	assert.Equal(t, 0, c.iovCount)
	assert.Equal(t, 0, c.writeBuf.ReadableBytes())

	// A subsequent response appended for the next keep-alive request must
	// not inherit any stale bytes left over from the drained header.
	c.writeBuf.AppendString("HTTP/1.1 200 OK\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK\r\n\r\n", string(c.writeBuf.BeginRead()))
}

func TestConnection_BadRequestClosesWithoutKeepAlive(t *testing.T) {
	dir := t.TempDir()
	fdServer, fdClient := socketPair(t)

	c := NewConnection(dir, nil)
	c.Init(fdServer, nil, false)

	_, err := unix.Write(fdClient, []byte("NOT A REQUEST\r\n\r\n"))
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	_, errno := c.Read()
	require.NoError(t, errno)

	ready := c.Process()
	require.True(t, ready)
	assert.False(t, c.KeepAlive())
}
