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

// Package reactor wraps Linux epoll behind the readiness-reactor interface
// the engine's accept loop drives: addFd/modFd/delFd/wait plus by-index
// access into the last wait's event batch.
package reactor

import (
	"golang.org/x/sys/unix"
)

// Event flags, named after the readable/writable/peer-hung-up/error/
// edge-triggered/one-shot vocabulary the engine's reactor interface uses.
const (
	Readable      uint32 = unix.EPOLLIN
	Writable      uint32 = unix.EPOLLOUT
	PeerHungUp    uint32 = unix.EPOLLRDHUP
	ErrorEvent    uint32 = unix.EPOLLERR
	EdgeTriggered uint32 = unix.EPOLLET
	OneShot       uint32 = unix.EPOLLONESHOT
)

// Reactor is a thin wrapper over an epoll instance. The zero value is not
// usable; build one with New.
type Reactor struct {
	epfd   int
	events []unix.EpollEvent
}

// New creates an epoll instance sized to hold up to maxEvents per Wait call.
func New(maxEvents int) (*Reactor, error) {
	if maxEvents <= 0 {
		maxEvents = 1024
	}

	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, ErrCreate(err)
	}

	return &Reactor{
		epfd:   fd,
		events: make([]unix.EpollEvent, maxEvents),
	}, nil
}

// AddFd registers fd for the given event mask.
func (r *Reactor) AddFd(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return ErrAddFd(err)
	}
	return nil
}

// ModFd changes the event mask for fd, used to re-arm a one-shot
// registration after every delivered event.
func (r *Reactor) ModFd(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return ErrModFd(err)
	}
	return nil
}

// DelFd stops monitoring fd.
func (r *Reactor) DelFd(fd int) error {
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return ErrDelFd(err)
	}
	return nil
}

// Wait blocks (up to timeoutMS, or indefinitely if negative) for readiness
// events and returns how many landed in this reactor's batch. EINTR is
// treated as "no events yet" rather than an error, since a signal arriving
// mid-wait is not a reactor failure.
func (r *Reactor) Wait(timeoutMS int) (int, error) {
	n, err := unix.EpollWait(r.epfd, r.events, timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, ErrWait(err)
	}
	return n, nil
}

// GetEventFd returns the file descriptor for the i-th event in the last
// Wait's batch.
func (r *Reactor) GetEventFd(i int) int {
	return int(r.events[i].Fd)
}

// GetEvents returns the raw event mask for the i-th event in the last Wait's
// batch.
func (r *Reactor) GetEvents(i int) uint32 {
	return r.events[i].Events
}

// Close releases the underlying epoll file descriptor.
func (r *Reactor) Close() error {
	return unix.Close(r.epfd)
}
