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

package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestReactor_AddWaitReadable(t *testing.T) {
	r, err := New(8)
	require.NoError(t, err)
	defer r.Close()

	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	readFd, writeFd := fds[0], fds[1]
	defer unix.Close(readFd)
	defer unix.Close(writeFd)

	require.NoError(t, r.AddFd(readFd, Readable))

	_, err = unix.Write(writeFd, []byte("hi"))
	require.NoError(t, err)

	n, err := r.Wait(1000)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, readFd, r.GetEventFd(0))
	assert.NotZero(t, r.GetEvents(0)&Readable)
}

func TestReactor_OneShotRequiresRearm(t *testing.T) {
	r, err := New(8)
	require.NoError(t, err)
	defer r.Close()

	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	readFd, writeFd := fds[0], fds[1]
	defer unix.Close(readFd)
	defer unix.Close(writeFd)

	require.NoError(t, r.AddFd(readFd, Readable|OneShot))

	_, err = unix.Write(writeFd, []byte("x"))
	require.NoError(t, err)

	n, err := r.Wait(1000)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	buf := make([]byte, 1)
	_, _ = unix.Read(readFd, buf)

	_, err = unix.Write(writeFd, []byte("y"))
	require.NoError(t, err)

	n, err = r.Wait(200)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "one-shot fd must not fire again before a ModFd re-arm")

	require.NoError(t, r.ModFd(readFd, Readable|OneShot))

	n, err = r.Wait(1000)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "rearmed fd should fire again")
}

func TestReactor_DelFdStopsDelivery(t *testing.T) {
	r, err := New(8)
	require.NoError(t, err)
	defer r.Close()

	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	readFd, writeFd := fds[0], fds[1]
	defer unix.Close(readFd)
	defer unix.Close(writeFd)

	require.NoError(t, r.AddFd(readFd, Readable))
	require.NoError(t, r.DelFd(readFd))

	_, err = unix.Write(writeFd, []byte("z"))
	require.NoError(t, err)

	n, err := r.Wait(200)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
