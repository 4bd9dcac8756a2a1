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

// Package server wires the reactor, heap timer, thread pool, DB pool, and
// logger into the single-process accept/event loop: one goroutine runs the
// loop and is the sole caller of Wait, Accept, and the timer's Add/Adjust/
// Tick, while the thread pool's workers run onRead/onProcess/onWrite for
// whichever connection the one-shot protocol just handed them. A worker that
// closes a connection also deletes its timer entry and reactor registration
// itself; the timer's own mutex serializes that with the loop goroutine.
package server

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/zyue2022/LightWebServer/config"
	"github.com/zyue2022/LightWebServer/dbpool"
	"github.com/zyue2022/LightWebServer/httpserver"
	"github.com/zyue2022/LightWebServer/logger"
	"github.com/zyue2022/LightWebServer/reactor"
	"github.com/zyue2022/LightWebServer/threadpool"
	"github.com/zyue2022/LightWebServer/timer"
)

func durationMs(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// MaxFD is the full-connections sentinel: once this many connections are
// live, new accepts get "Server busy!" and an immediate close.
const MaxFD = 65536

// Server owns every component the engine wires together and runs the
// accept/event loop.
type Server struct {
	cfg config.Config
	log *logger.Logger

	reactor *reactor.Reactor
	timer   *timer.Heap
	pool    *threadpool.Pool
	db      *dbpool.Pool

	listenFd    int
	srcDir      string
	connEvents  uint32
	listenEvent uint32

	mu    sync.Mutex
	users map[int]*httpserver.Connection

	closed atomic.Bool
}

// New constructs and wires every component per cfg: DB pool, reactor, timer,
// thread pool, and the listening socket (bound, reuseaddr'd, optionally
// lingered, non-blocking, registered with the reactor).
func New(cfg config.Config, log *logger.Logger) (*Server, error) {
	db, err := dbpool.Open(dbpool.Config{
		Driver:     cfg.SQLDriver,
		Host:       cfg.SQLHost,
		Port:       cfg.SQLPort,
		User:       cfg.SQLUser,
		Password:   cfg.SQLPwd,
		DBName:     cfg.DBName,
		Size:       cfg.SQLConnNum,
		GormLogger: log.NewGormLogger(true, 0),
	})
	if err != nil {
		return nil, err
	}

	rx, err := reactor.New(1024)
	if err != nil {
		db.Close()
		return nil, err
	}

	fd, err := listen(cfg.Port, cfg.OpenLinger)
	if err != nil {
		db.Close()
		_ = rx.Close()
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		reactor: rx,
		timer:   timer.New(),
		pool:    threadpool.New(cfg.ThreadNum),
		db:      db,

		listenFd: fd,
		srcDir:   cfg.SrcDir,
		users:    make(map[int]*httpserver.Connection),
	}

	s.listenEvent = reactor.PeerHungUp
	s.connEvents = reactor.OneShot | reactor.PeerHungUp
	if cfg.ListenEdgeTriggered() {
		s.listenEvent |= reactor.EdgeTriggered
	}
	if cfg.ConnEdgeTriggered() {
		s.connEvents |= reactor.EdgeTriggered
	}

	if err = rx.AddFd(fd, s.listenEvent|reactor.Readable); err != nil {
		s.Shutdown()
		return nil, ErrAddListen(err)
	}

	log.Info("server init: port=%d threadNum=%d sqlConnNum=%d srcDir=%s", cfg.Port, cfg.ThreadNum, cfg.SQLConnNum, cfg.SrcDir)
	return s, nil
}

// Run drives the accept/event loop until Shutdown is called.
func (s *Server) Run() {
	for !s.closed.Load() {
		timeoutMs := -1
		if s.cfg.TimeoutMs > 0 {
			timeoutMs = s.timer.GetNextTick()
		}

		n, err := s.reactor.Wait(timeoutMs)
		if err != nil {
			s.log.Error("reactor wait failed: %v", err)
			continue
		}

		for i := 0; i < n; i++ {
			fd := s.reactor.GetEventFd(i)
			events := s.reactor.GetEvents(i)

			switch {
			case fd == s.listenFd:
				s.dealListen()

			case events&(reactor.PeerHungUp|reactor.ErrorEvent) != 0:
				s.closeConn(fd)

			case events&reactor.Readable != 0:
				s.dealRead(fd)

			case events&reactor.Writable != 0:
				s.dealWrite(fd)
			}
		}
	}
}

func (s *Server) dealListen() {
	for {
		fd, sa, err := unix.Accept(s.listenFd)
		if err != nil {
			return
		}

		if httpserver.UserCount() >= MaxFD {
			_, _ = unix.Write(fd, []byte("Server busy!"))
			_ = unix.Close(fd)
			s.log.Warning("connection rejected: at capacity")
		} else {
			s.addClient(fd, sa)
		}

		if !s.cfg.ListenEdgeTriggered() {
			return
		}
	}
}

func (s *Server) addClient(fd int, sa unix.Sockaddr) {
	_ = unix.SetNonblock(fd, true)

	conn := httpserver.NewConnection(s.srcDir, s.db)
	conn.Init(fd, sockaddrToNetAddr(sa), s.cfg.ConnEdgeTriggered())

	s.mu.Lock()
	s.users[fd] = conn
	s.mu.Unlock()

	if err := s.reactor.AddFd(fd, s.connEvents|reactor.Readable); err != nil {
		s.log.Warning("client[%d] register failed: %v", fd, err)
		s.closeConn(fd)
		return
	}

	if s.cfg.TimeoutMs > 0 {
		s.timer.Add(fd, durationMs(s.cfg.TimeoutMs), func() { s.closeConn(fd) })
	}

	s.log.Info("client[%d] in conn=%s", fd, conn.ConnID())
}

func (s *Server) dealRead(fd int) {
	s.extendTimer(fd)
	conn := s.get(fd)
	if conn == nil {
		return
	}
	s.pool.AddTask(func() { s.onRead(conn) })
}

func (s *Server) dealWrite(fd int) {
	s.extendTimer(fd)
	conn := s.get(fd)
	if conn == nil {
		return
	}
	s.pool.AddTask(func() { s.onWrite(conn) })
}

func (s *Server) onRead(conn *httpserver.Connection) {
	n, err := conn.Read()
	if n == 0 || (err != nil && err != unix.EAGAIN) {
		s.closeConn(conn.Fd())
		return
	}
	s.onProcess(conn)
}

func (s *Server) onProcess(conn *httpserver.Connection) {
	ready := conn.Process()
	if ready {
		_ = s.reactor.ModFd(conn.Fd(), s.connEvents|reactor.Writable)
	} else {
		_ = s.reactor.ModFd(conn.Fd(), s.connEvents|reactor.Readable)
	}
}

func (s *Server) onWrite(conn *httpserver.Connection) {
	remaining, err := conn.Write()

	if remaining == 0 {
		if conn.KeepAlive() {
			_ = s.reactor.ModFd(conn.Fd(), s.connEvents|reactor.Readable)
			return
		}
	} else if err == unix.EAGAIN {
		_ = s.reactor.ModFd(conn.Fd(), s.connEvents|reactor.Writable)
		return
	}

	s.closeConn(conn.Fd())
}

func (s *Server) extendTimer(fd int) {
	if s.cfg.TimeoutMs > 0 {
		s.timer.Adjust(fd, durationMs(s.cfg.TimeoutMs))
	}
}

func (s *Server) get(fd int) *httpserver.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[fd]
}

func (s *Server) closeConn(fd int) {
	s.mu.Lock()
	conn, ok := s.users[fd]
	if ok {
		delete(s.users, fd)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	s.log.Info("client[%d] quit conn=%s", fd, conn.ConnID())
	_ = s.reactor.DelFd(fd)
	s.timer.Del(fd)
	conn.CloseConn()
}

// Shutdown stops the event loop, closes the listening socket, drains the
// thread pool, and closes the DB pool.
func (s *Server) Shutdown() {
	s.closed.Store(true)
	_ = unix.Close(s.listenFd)
	s.pool.Close()
	s.db.Close()
}
