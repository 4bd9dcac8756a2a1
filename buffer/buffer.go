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

// Package buffer implements the growable, cursor-based byte container each
// connection uses for its read and write side. It is not safe for concurrent
// use by more than one goroutine: the one-shot reactor protocol guarantees a
// connection's buffers are only ever touched by the single worker currently
// scheduled for that fd.
package buffer

const (
	// DefaultInitialCapacity matches the size a fresh connection buffer is
	// allocated with; small enough that most requests/responses never grow it.
	DefaultInitialCapacity = 1024

	// scatterExtra is the size of the stack-resident second segment used by
	// ReadFromFD so one syscall can absorb more than the current capacity.
	scatterExtra = 64 * 1024
)

// Buffer is a byte container with three indices: 0 <= readPos <= writePos <=
// len(buf). [readPos:writePos] is readable, [writePos:] is writable, and
// [0:readPos] is the reclaimable prefix left behind by prior reads.
type Buffer struct {
	buf      []byte
	readPos  int
	writePos int
}

// New allocates a Buffer with the given initial capacity. A non-positive
// size falls back to DefaultInitialCapacity.
func New(initialCapacity int) *Buffer {
	if initialCapacity <= 0 {
		initialCapacity = DefaultInitialCapacity
	}
	return &Buffer{buf: make([]byte, initialCapacity)}
}

// ReadableBytes returns the number of bytes available to read.
func (b *Buffer) ReadableBytes() int { return b.writePos - b.readPos }

// WritableBytes returns the number of bytes that can be written without growing.
func (b *Buffer) WritableBytes() int { return len(b.buf) - b.writePos }

// PrependableBytes returns the size of the reclaimable prefix before readPos.
func (b *Buffer) PrependableBytes() int { return b.readPos }

// Capacity returns the total backing size.
func (b *Buffer) Capacity() int { return len(b.buf) }

// BeginRead returns the current readable slice without consuming it.
func (b *Buffer) BeginRead() []byte { return b.buf[b.readPos:b.writePos] }

// BeginWrite returns the current writable slice (length WritableBytes()).
func (b *Buffer) BeginWrite() []byte { return b.buf[b.writePos:len(b.buf)] }

// HasRead advances the read cursor by n bytes, consuming them.
func (b *Buffer) HasRead(n int) {
	if n <= 0 {
		return
	}
	if n >= b.ReadableBytes() {
		b.readPos = b.writePos
		return
	}
	b.readPos += n
}

// HasWritten advances the write cursor by n bytes after an external writer
// (e.g. ReadFromFD) filled BeginWrite() directly.
func (b *Buffer) HasWritten(n int) {
	if n <= 0 {
		return
	}
	b.writePos += n
}

// RetrieveUntil consumes bytes up to (but excluding) end, an absolute pointer
// into BeginRead()'s backing slice, and returns the consumed segment.
func (b *Buffer) RetrieveUntil(end int) []byte {
	n := end - b.readPos
	if n < 0 {
		n = 0
	}
	out := make([]byte, n)
	copy(out, b.buf[b.readPos:b.readPos+n])
	b.HasRead(n)
	return out
}

// Retrieve consumes and returns n bytes of readable data.
func (b *Buffer) Retrieve(n int) []byte {
	if n > b.ReadableBytes() {
		n = b.ReadableBytes()
	}
	out := make([]byte, n)
	copy(out, b.buf[b.readPos:b.readPos+n])
	b.HasRead(n)
	return out
}

// RetrieveAllToString consumes the whole readable region and returns it as a string.
func (b *Buffer) RetrieveAllToString() string {
	s := string(b.buf[b.readPos:b.writePos])
	b.ClearAll()
	return s
}

// ClearAll resets both cursors to zero without releasing the backing array.
func (b *Buffer) ClearAll() {
	b.readPos = 0
	b.writePos = 0
}

// EnsureWritable guarantees WritableBytes() >= n, compacting the buffer in
// place when the reclaimable prefix makes room, or growing it otherwise.
func (b *Buffer) EnsureWritable(n int) {
	if n < 0 {
		n = 0
	}
	if b.WritableBytes() >= n {
		return
	}

	if b.PrependableBytes()+b.WritableBytes() >= n {
		readable := b.ReadableBytes()
		copy(b.buf, b.buf[b.readPos:b.writePos])
		b.readPos = 0
		b.writePos = readable
		return
	}

	grown := make([]byte, b.writePos+n+1)
	copy(grown, b.buf[:b.writePos])
	b.buf = grown
}

// Append writes data to the buffer, growing it first if necessary.
func (b *Buffer) Append(data []byte) {
	b.EnsureWritable(len(data))
	copy(b.BeginWrite(), data)
	b.HasWritten(len(data))
}

// AppendString is a convenience wrapper around Append.
func (b *Buffer) AppendString(s string) {
	b.Append([]byte(s))
}
