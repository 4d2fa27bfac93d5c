package snmp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/icsnexus/otcollector/models"
)

// poolEntry is a single idle connection together with the time it was
// returned, as in the teacher's poller.ConnectionPool.
type poolEntry struct {
	conn       *gosnmp.GoSNMP
	returnedAt time.Time
}

// targetPool is the per-target idle stack and concurrency semaphore.
type targetPool struct {
	mu   sync.Mutex
	idle []poolEntry

	sem chan struct{}
}

// connectionPool manages gosnmp sessions keyed by target host, generalizing
// the teacher's poller.ConnectionPool from config.DeviceConfig-keying to
// models.Target-keying.
type connectionPool struct {
	maxIdle     int
	idleTimeout time.Duration
	timeout     time.Duration
	logger      *slog.Logger

	mu    sync.RWMutex
	pools map[string]*targetPool

	closed chan struct{}
}

func newConnectionPool(timeout time.Duration, logger *slog.Logger) *connectionPool {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &connectionPool{
		maxIdle:     2,
		idleTimeout: 5 * time.Minute,
		timeout:     timeout,
		logger:      logger,
		pools:       make(map[string]*targetPool),
		closed:      make(chan struct{}),
	}
}

// get acquires a session for target, reusing an idle one if available.
func (p *connectionPool) get(ctx context.Context, target models.Target) (*gosnmp.GoSNMP, error) {
	tp := p.getOrCreatePool(target.Host)

	select {
	case <-p.closed:
		return nil, fmt.Errorf("snmp: connection pool closed")
	default:
	}

	select {
	case tp.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, fmt.Errorf("snmp: connection pool closed")
	}

	if conn := p.popIdle(tp); conn != nil {
		return conn, nil
	}

	conn, err := newSession(target, p.timeout)
	if err != nil {
		<-tp.sem
		return nil, err
	}
	return conn, nil
}

// put returns a connection to the idle pool for reuse.
func (p *connectionPool) put(host string, conn *gosnmp.GoSNMP) {
	tp := p.getPool(host)
	if tp == nil {
		if conn.Conn != nil {
			_ = conn.Conn.Close()
		}
		return
	}
	defer func() { <-tp.sem }()

	tp.mu.Lock()
	defer tp.mu.Unlock()
	if len(tp.idle) >= p.maxIdle {
		if conn.Conn != nil {
			_ = conn.Conn.Close()
		}
		return
	}
	tp.idle = append(tp.idle, poolEntry{conn: conn, returnedAt: time.Now()})
}

// discard closes a connection known to be broken, without returning it to
// the idle pool.
func (p *connectionPool) discard(host string, conn *gosnmp.GoSNMP) {
	if conn.Conn != nil {
		_ = conn.Conn.Close()
	}
	if tp := p.getPool(host); tp != nil {
		<-tp.sem
	}
}

// close drains all idle connections and rejects future get calls.
func (p *connectionPool) close() error {
	select {
	case <-p.closed:
		return nil
	default:
	}
	close(p.closed)

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tp := range p.pools {
		tp.mu.Lock()
		for _, e := range tp.idle {
			if e.conn.Conn != nil {
				_ = e.conn.Conn.Close()
			}
		}
		tp.idle = nil
		tp.mu.Unlock()
	}
	return nil
}

func (p *connectionPool) getOrCreatePool(host string) *targetPool {
	p.mu.RLock()
	tp, ok := p.pools[host]
	p.mu.RUnlock()
	if ok {
		return tp
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tp, ok = p.pools[host]; ok {
		return tp
	}
	tp = &targetPool{
		idle: make([]poolEntry, 0, p.maxIdle),
		sem:  make(chan struct{}, 4),
	}
	p.pools[host] = tp
	return tp
}

func (p *connectionPool) getPool(host string) *targetPool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pools[host]
}

func (p *connectionPool) popIdle(tp *targetPool) *gosnmp.GoSNMP {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	for len(tp.idle) > 0 {
		n := len(tp.idle) - 1
		entry := tp.idle[n]
		tp.idle = tp.idle[:n]
		if p.idleTimeout > 0 && time.Since(entry.returnedAt) > p.idleTimeout {
			if entry.conn.Conn != nil {
				_ = entry.conn.Conn.Close()
			}
			continue
		}
		return entry.conn
	}
	return nil
}

type noopWriter struct{}

func (noopWriter) Write(b []byte) (int, error) { return len(b), nil }
