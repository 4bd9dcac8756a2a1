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

// Package queue implements a bounded, closeable MPMC FIFO guarded by a mutex
// and a pair of condition variables (one for producers waiting on space, one
// for consumers waiting on data). The async logger builds on it; the thread
// pool keeps its own task list and does not use it.
package queue

import (
	"sync"
	"time"
)

// Queue is a bounded FIFO of T. The zero value is not usable; build one with New.
type Queue[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond
	items    []T
	capacity int
	closed   bool
}

// New creates a Queue bounded at capacity items. A non-positive capacity is
// treated as 1, since a zero-capacity blocking queue can never be pushed to.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	q := &Queue[T]{capacity: capacity}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push blocks while the queue is full, then appends item. It returns false
// without blocking if the queue is already closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	for len(q.items) >= q.capacity && !q.closed {
		q.notFull.Wait()
	}

	if q.closed {
		return false
	}

	q.items = append(q.items, item)
	q.notEmpty.Signal()
	return true
}

// TryPush appends item without blocking. It returns false if the queue is
// full or closed.
func (q *Queue[T]) TryPush(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.items) >= q.capacity {
		return false
	}

	q.items = append(q.items, item)
	q.notEmpty.Signal()
	return true
}

// Pop blocks while the queue is empty. It returns (zero, false) once the
// queue is closed and fully drained.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	if len(q.items) == 0 {
		var zero T
		return zero, false
	}

	item := q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()
	return item, true
}

// PopTimeout blocks until an item is available, the queue closes, or timeout
// elapses, whichever happens first. It returns false on timeout.
func (q *Queue[T]) PopTimeout(timeout time.Duration) (T, bool) {
	deadline := time.Now().Add(timeout)
	done := make(chan struct{})
	var woke bool

	// sync.Cond has no native timed wait, so a helper goroutine nudges the
	// condvar once the deadline passes.
	go func() {
		select {
		case <-time.After(timeout):
			q.mu.Lock()
			woke = true
			q.notEmpty.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		if time.Now().After(deadline) {
			var zero T
			return zero, false
		}
		q.notEmpty.Wait()
		if woke && len(q.items) == 0 {
			var zero T
			return zero, false
		}
	}

	if len(q.items) == 0 {
		var zero T
		return zero, false
	}

	item := q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()
	return item, true
}

// Size returns the current element count.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Full reports whether the queue is at capacity.
func (q *Queue[T]) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) >= q.capacity
}

// Empty reports whether the queue currently holds no items.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Clear discards all queued items without closing the queue.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.notFull.Broadcast()
}

// Close wakes every waiter and marks the queue closed. Pops continue to
// succeed until the queue drains, after which they return false.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
