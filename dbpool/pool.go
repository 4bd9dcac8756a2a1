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

// Package dbpool is a semaphore-gated pool of fixed size holding independent
// *gorm.DB handles, each pinned to a single underlying connection so the
// semaphore count always matches the number of connections actually open.
package dbpool

import (
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config describes how to open the backing connections. Driver selects the
// gorm dialector: "mysql" for production, "sqlite" for tests and local runs.
type Config struct {
	Driver   string // "mysql" or "sqlite"
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	Size     int // number of connections to open, also the semaphore count

	// GormLogger, when non-nil, replaces gorm's default logger for every
	// handle opened by the pool.
	GormLogger logger.Interface
}

// Pool is the DB connection pool singleton. The zero value is not usable;
// build one with Open.
type Pool struct {
	mu   sync.Mutex
	free []*gorm.DB
	sem  chan struct{}

	closed bool
}

// Open dials cfg.Size independent connections and returns a Pool with its
// semaphore preloaded to cfg.Size.
func Open(cfg Config) (*Pool, error) {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}

	p := &Pool{
		free: make([]*gorm.DB, 0, cfg.Size),
		sem:  make(chan struct{}, cfg.Size),
	}

	for i := 0; i < cfg.Size; i++ {
		db, err := openOne(cfg)
		if err != nil {
			p.closeAll()
			return nil, ErrOpenConn(err)
		}
		p.free = append(p.free, db)
		p.sem <- struct{}{}
	}

	return p, nil
}

func openOne(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqliteDialector(cfg.DBName)
	default:
		dialector = mysqlDialector(cfg)
	}

	gcfg := &gorm.Config{}
	if cfg.GormLogger != nil {
		gcfg.Logger = cfg.GormLogger
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Each handle backs exactly one semaphore slot: database/sql's own
	// pooling would let a single handle silently exceed the slot it was
	// issued for.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err = sqlDB.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

// Get blocks on the semaphore then pops one handle under the mutex. Returns
// false once the pool has been closed and drained.
func (p *Pool) Get() (*gorm.DB, bool) {
	if _, ok := <-p.sem; !ok {
		return nil, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return nil, false
	}
	n := len(p.free) - 1
	db := p.free[n]
	p.free = p.free[:n]
	return db, true
}

// Put returns a handle to the pool and signals the semaphore. The send
// happens under the mutex so it cannot race a concurrent Close closing the
// channel; it cannot block there either, since the lease being returned is
// holding the slot it refills.
func (p *Pool) Put(db *gorm.DB) {
	if db == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.free = append(p.free, db)
	p.sem <- struct{}{}
}

// Lease is a scoped acquisition: Acquire takes a handle out of the pool,
// Release (idempotent) returns it, and a deferred Release covers every exit
// path including error returns.
type Lease struct {
	pool *Pool
	db   *gorm.DB
	once sync.Once
}

// Acquire blocks until a connection is available. It returns a nil Lease and
// ErrPoolClosed if acquisition failed because the pool is closed.
func Acquire(p *Pool) (*Lease, error) {
	db, ok := p.Get()
	if !ok {
		return nil, ErrPoolClosed(nil)
	}
	return &Lease{pool: p, db: db}, nil
}

// DB returns the leased handle.
func (l *Lease) DB() *gorm.DB { return l.db }

// Release returns the handle to the pool. Safe to call multiple times and
// safe to defer immediately after Acquire succeeds.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.pool.Put(l.db)
	})
}

// Free reports the number of connections currently idle in the pool.
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Ping acquires a connection, pings it, and releases it - a liveness probe
// that does not disturb the pool's accounting on either success or failure.
func (p *Pool) Ping() error {
	l, err := Acquire(p)
	if err != nil {
		return err
	}
	defer l.Release()

	sqlDB, err := l.DB().DB()
	if err != nil {
		return ErrPing(err)
	}
	return sqlDB.Ping()
}

func (p *Pool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, db := range p.free {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	p.free = nil
}

// Close closes every connection currently idle in the pool and marks it
// closed; in-flight leases still release safely but their Put becomes a
// no-op and the semaphore is not refilled. Safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.sem)
	p.closeAll()
}
