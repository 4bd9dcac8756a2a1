/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

package dbpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	p, err := Open(Config{Driver: "sqlite", DBName: "file::memory:?cache=shared", Size: size})
	require.NoError(t, err)
	t.Cleanup(p.Close)

	l, err := Acquire(p)
	require.NoError(t, err)
	require.NoError(t, l.DB().AutoMigrate(&User{}))
	l.Release()

	return p
}

func TestPool_GetPutRoundTrip(t *testing.T) {
	p := openTestPool(t, 2)

	assert.Equal(t, 2, p.Free())

	l1, err := Acquire(p)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Free())

	l1.Release()
	assert.Equal(t, 2, p.Free())
}

func TestPool_GetBlocksUntilReleased(t *testing.T) {
	p := openTestPool(t, 1)

	l1, err := Acquire(p)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		l2, err := Acquire(p)
		require.NoError(t, err)
		l2.Release()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second acquire should have blocked while the only connection is leased")
	default:
	}

	l1.Release()
	<-done
}

func TestPool_ReleaseIsIdempotent(t *testing.T) {
	p := openTestPool(t, 1)

	l, err := Acquire(p)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, p.Free())
}

func TestPool_CloseRejectsFurtherAcquire(t *testing.T) {
	p := openTestPool(t, 1)
	p.Close()

	_, err := Acquire(p)
	assert.Error(t, err)
}

func TestVerifyUser_RegisterThenLogin(t *testing.T) {
	p := openTestPool(t, 2)

	ok, err := VerifyUser(p, "alice", "s3cret", false)
	require.NoError(t, err)
	assert.True(t, ok, "first registration should succeed")

	ok, err = VerifyUser(p, "alice", "other", false)
	require.NoError(t, err)
	assert.False(t, ok, "duplicate registration should fail")

	ok, err = VerifyUser(p, "alice", "s3cret", true)
	require.NoError(t, err)
	assert.True(t, ok, "login with correct password should succeed")

	ok, err = VerifyUser(p, "alice", "wrong", true)
	require.NoError(t, err)
	assert.False(t, ok, "login with wrong password should fail")
}

func TestVerifyUser_EmptyCredentialsFail(t *testing.T) {
	p := openTestPool(t, 1)

	ok, err := VerifyUser(p, "", "pwd", true)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = VerifyUser(p, "name", "", false)
	require.NoError(t, err)
	assert.False(t, ok)
}
