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

// Package timer implements the min-heap idle-connection timer: an indexed
// binary heap ordered by expiry, keyed by fd, supporting O(log n) insertion,
// adjustment (on every read/write), and expiry firing from the main reactor
// loop between successive Wait calls.
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Node is a single pending expiry: a connection fd, its deadline, and the
// callback to run (close the connection) once that deadline passes.
type Node struct {
	Fd        int
	ExpiresAt time.Time
	OnExpire  func()
	index     int
}

type nodeHeap []*Node

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	return h[i].ExpiresAt.Before(h[j].ExpiresAt)
}
func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *nodeHeap) Push(x any) {
	n := x.(*Node)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *nodeHeap) Pop() any {
	old := *h
	l := len(old)
	n := old[l-1]
	old[l-1] = nil
	n.index = -1
	*h = old[:l-1]
	return n
}

// Heap is the fd-indexed min-heap timer. now defaults to time.Now but tests
// substitute a fake clock to exercise expiry ordering deterministically; the
// clock must be monotonic so wall-clock adjustments never resurrect an
// already-expired entry.
type Heap struct {
	mu  sync.Mutex
	h   nodeHeap
	ref map[int]*Node
	now func() time.Time
}

// New returns an empty Heap.
func New() *Heap {
	return &Heap{
		ref: make(map[int]*Node),
		now: time.Now,
	}
}

// SetClock overrides the time source; used by tests only.
func (t *Heap) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Add inserts a new expiry for fd, or resets it if fd is already tracked.
func (t *Heap) Add(fd int, timeout time.Duration, cb func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	expires := t.now().Add(timeout)

	if n, ok := t.ref[fd]; ok {
		n.ExpiresAt = expires
		n.OnExpire = cb
		heap.Fix(&t.h, n.index)
		return
	}

	n := &Node{Fd: fd, ExpiresAt: expires, OnExpire: cb}
	heap.Push(&t.h, n)
	t.ref[fd] = n
}

// Adjust resets fd's expiry to now+timeout. It is a no-op if fd is untracked.
func (t *Heap) Adjust(fd int, timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.ref[fd]
	if !ok {
		return
	}
	n.ExpiresAt = t.now().Add(timeout)
	heap.Fix(&t.h, n.index)
}

// Del removes fd's pending expiry without firing its callback.
func (t *Heap) Del(fd int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remove(fd)
}

func (t *Heap) remove(fd int) {
	n, ok := t.ref[fd]
	if !ok {
		return
	}
	heap.Remove(&t.h, n.index)
	delete(t.ref, fd)
}

// DoWork runs fd's callback immediately, then removes it from the heap.
func (t *Heap) DoWork(fd int) {
	t.mu.Lock()
	n, ok := t.ref[fd]
	if ok {
		t.remove(fd)
	}
	t.mu.Unlock()

	if ok && n.OnExpire != nil {
		n.OnExpire()
	}
}

// Pop removes the root entry without firing its callback.
func (t *Heap) Pop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.h) == 0 {
		return
	}
	n := heap.Pop(&t.h).(*Node)
	delete(t.ref, n.Fd)
}

// Tick fires every expired root in non-decreasing deadline order, stopping at
// the first entry whose deadline is still in the future.
func (t *Heap) Tick() {
	for {
		t.mu.Lock()
		if len(t.h) == 0 || t.h[0].ExpiresAt.After(t.now()) {
			t.mu.Unlock()
			return
		}
		n := heap.Pop(&t.h).(*Node)
		delete(t.ref, n.Fd)
		t.mu.Unlock()

		if n.OnExpire != nil {
			n.OnExpire()
		}
	}
}

// GetNextTick fires due callbacks via Tick, then reports how many
// milliseconds until the next expiry: 0 if the new root is already past due,
// -1 if the heap is empty.
func (t *Heap) GetNextTick() int {
	t.Tick()

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.h) == 0 {
		return -1
	}

	until := t.h[0].ExpiresAt.Sub(t.now())
	if until <= 0 {
		return 0
	}
	return int(until.Milliseconds())
}

// Len returns the number of tracked entries.
func (t *Heap) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.h)
}
