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

package buffer

import (
	"golang.org/x/sys/unix"
)

// ReadFromFD performs a single scatter-read syscall into [writePos:capacity]
// plus a 64KiB stack segment, so one syscall can absorb more than the current
// capacity. It returns the raw syscall count and errno, matching the fd-level
// contract the connection layer expects: the byte count is the syscall return
// value unchanged, errors are reported out-of-band.
func (b *Buffer) ReadFromFD(fd int) (int64, error) {
	extra := make([]byte, scatterExtra)
	iov := [][]byte{b.BeginWrite(), extra}

	n, err := unix.Readv(fd, iov)
	if n <= 0 {
		return int64(n), err
	}

	writable := b.WritableBytes()
	if n <= writable {
		b.HasWritten(n)
	} else {
		b.HasWritten(writable)
		b.Append(extra[:n-writable])
	}

	return int64(n), err
}
