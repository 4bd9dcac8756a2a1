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
	"net"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/zyue2022/LightWebServer/buffer"
	"github.com/zyue2022/LightWebServer/dbpool"
)

// userCount is the process-wide count of live connections, incremented in
// Init and decremented in CloseConn. It feeds the busy-server sentinel in
// the accept path.
var userCount int64

// UserCount returns the number of currently live connections.
func UserCount() int64 { return atomic.LoadInt64(&userCount) }

// Connection is one accepted socket's read/write state: its buffers, the
// in-flight request/response pair, and the two-segment write vector used to
// scatter the header bytes and the mmap'd file body in a single writev.
type Connection struct {
	fd     int
	connID string
	addr   net.Addr
	isET   bool
	srcDir string
	pool   *dbpool.Pool

	readBuf  *buffer.Buffer
	writeBuf *buffer.Buffer

	req  *Request
	resp *Response

	iovBase  [2][]byte
	iovCount int

	closed bool
}

// NewConnection builds a Connection ready for Init.
func NewConnection(srcDir string, pool *dbpool.Pool) *Connection {
	return &Connection{
		srcDir:   srcDir,
		pool:     pool,
		readBuf:  buffer.New(buffer.DefaultInitialCapacity),
		writeBuf: buffer.New(buffer.DefaultInitialCapacity),
		req:      NewRequest(),
	}
}

// Init (re)binds the connection to fd/addr, resets both buffers and parser
// state, and accounts for the new user.
func (c *Connection) Init(fd int, addr net.Addr, isET bool) {
	c.fd = fd
	c.connID = uuid.NewString()
	c.addr = addr
	c.isET = isET
	c.readBuf.ClearAll()
	c.writeBuf.ClearAll()
	c.req.Reset()
	c.resp = nil
	c.iovCount = 0
	c.closed = false
	atomic.AddInt64(&userCount, 1)
}

// Fd returns the connection's file descriptor.
func (c *Connection) Fd() int { return c.fd }

// ConnID returns the connection's trace identifier, minted fresh in Init and
// stable for the connection's lifetime, used to correlate log lines for one
// accepted socket across the thread pool's worker goroutines.
func (c *Connection) ConnID() string { return c.connID }

// Read pulls bytes off the socket into the read buffer: once if level-
// triggered, repeatedly (until EAGAIN or EOF) if edge-triggered. It returns
// the last syscall's errno, which the caller inspects to distinguish
// would-block from a real error or orderly close.
func (c *Connection) Read() (n int64, errno error) {
	for {
		var m int64
		m, errno = c.readBuf.ReadFromFD(c.fd)
		n += m
		if !c.isET {
			return n, errno
		}
		if m <= 0 {
			return n, errno
		}
	}
}

// Process runs one parse+build cycle. It returns true when a response was
// produced and is ready to write, false when more bytes are needed before a
// request can be recognized.
func (c *Connection) Process() bool {
	result := c.req.Parse(c.readBuf)
	if result == NoRequest {
		return false
	}

	// Re-initializing the response must release the prior request's mapping,
	// or a keep-alive connection leaks one mapped file per request served.
	if c.resp != nil {
		c.resp.UnmapFile()
	}

	switch result {
	case GetRequest:
		if err := c.req.ApplyLoginRegister(c.pool); err != nil {
			c.resp = NewResponse(c.srcDir, "/error.html", c.req.KeepAlive(), 200)
		} else {
			c.resp = NewResponse(c.srcDir, c.req.Path, c.req.KeepAlive(), 200)
		}

	default: // BadRequest, InternalError
		c.resp = NewResponse(c.srcDir, c.req.Path, false, 400)
	}

	_ = c.resp.MakeResponse(c.writeBuf)
	c.buildIov()
	return true
}

func (c *Connection) buildIov() {
	c.iovBase[0] = c.writeBuf.BeginRead()
	if c.resp.FileLen() > 0 {
		c.iovBase[1] = c.resp.File()
		c.iovCount = 2
	} else {
		c.iovCount = 1
	}
}

// KeepAlive reports whether the in-flight request wants the connection kept
// open.
func (c *Connection) KeepAlive() bool {
	return c.req.KeepAlive()
}

// Write drains the write vector with repeated writev calls, advancing the
// header and file segments independently as each writev call reports bytes
// consumed. It returns once nothing remains or the syscall errors.
func (c *Connection) Write() (remaining int, errno error) {
	for {
		total := c.totalIovLen()
		if total == 0 {
			return 0, nil
		}

		iov := c.currentIov()
		n, err := unix.Writev(c.fd, iov)
		if err != nil {
			return total, err
		}
		if n <= 0 {
			return total, nil
		}

		c.advance(n)
	}
}

func (c *Connection) totalIovLen() int {
	total := 0
	for i := 0; i < c.iovCount; i++ {
		total += len(c.iovBase[i])
	}
	return total
}

func (c *Connection) currentIov() [][]byte {
	return c.iovBase[:c.iovCount]
}

func (c *Connection) advance(n int) {
	for n > 0 && c.iovCount > 0 {
		seg := c.iovBase[0]
		if n >= len(seg) {
			n -= len(seg)
			c.writeBuf.HasRead(len(seg))
			c.iovBase[0] = nil

			if c.iovCount == 2 {
				c.iovBase[0] = c.iovBase[1]
				c.iovBase[1] = nil
			}
			c.iovCount--
		} else {
			c.iovBase[0] = seg[n:]
			c.writeBuf.HasRead(n)
			n = 0
		}
	}
}

// CloseConn unmaps the response file (if any), closes the fd once, and
// decrements the live-connection count. Safe to call more than once.
func (c *Connection) CloseConn() {
	if c.closed {
		return
	}
	c.closed = true

	if c.resp != nil {
		c.resp.UnmapFile()
	}
	_ = unix.Close(c.fd)
	atomic.AddInt64(&userCount, -1)
}
