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

package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueue_PushPopOrder(t *testing.T) {
	q := New[int](4)
	for i := 0; i < 4; i++ {
		assert.True(t, q.Push(i))
	}
	assert.True(t, q.Full())
	for i := 0; i < 4; i++ {
		v, ok := q.Pop()
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.True(t, q.Empty())
}

func TestQueue_PushBlocksUntilSpace(t *testing.T) {
	q := New[int](1)
	assert.True(t, q.Push(1))

	done := make(chan struct{})
	go func() {
		assert.True(t, q.Push(2))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("push on full queue should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	_, _ = q.Pop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push did not unblock after pop freed space")
	}
}

func TestQueue_CloseDrainsThenFalse(t *testing.T) {
	q := New[int](4)
	q.Push(1)
	q.Push(2)
	q.Close()

	v, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.Pop()
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = q.Pop()
	assert.False(t, ok, "pop on closed+empty queue must return false")

	assert.False(t, q.Push(3), "push after close must not block or succeed")
}

func TestQueue_PopTimeout(t *testing.T) {
	q := New[int](1)
	_, ok := q.PopTimeout(20 * time.Millisecond)
	assert.False(t, ok)

	q.Push(7)
	v, ok := q.PopTimeout(time.Second)
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestQueue_ConcurrentProducersConsumers(t *testing.T) {
	q := New[int](8)
	const n = 200
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Push(i)
		}
		q.Close()
	}()

	sum := 0
	go func() {
		defer wg.Done()
		for {
			v, ok := q.Pop()
			if !ok {
				return
			}
			sum += v
		}
	}()

	wg.Wait()
	assert.Equal(t, n*(n-1)/2, sum)
}
