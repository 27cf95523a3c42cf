// Package transport also provides Pool, a per-endpoint bounded pool of
// multiplexed ClientTransport connections (spec.md §4.3).
//
// Unlike a borrow-once-per-request pool, each pooled ClientTransport is
// itself multiplexed — many concurrent calls can share one transport — so
// the pool's job is purely to bound the number of live TCP connections per
// endpoint and hand transports out fairly, not to serialize access to them.
//
// Design: a buffered channel as a natural FIFO queue, the same idiom the
// connection pool used for its borrow/return channel, generalized here to
// support context-aware acquisition. Acquire returns a transport directly,
// not a future; at the bound the caller blocks until a release or ctx ends.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"airpc/protocol"
)

// DefaultMaxConnsPerEndpoint is the default bound on live transports per
// endpoint.
const DefaultMaxConnsPerEndpoint = 10

// Dialer creates the raw connection a new transport will wrap.
type Dialer func(ctx context.Context) (net.Conn, error)

// Pool manages a bounded set of ClientTransport connections to a single
// endpoint, created lazily and handed out round-trip per Acquire/Release.
type Pool struct {
	mu       sync.Mutex
	idle     chan *ClientTransport
	addr     string
	maxConns int
	curConns int
	dialer   Dialer
	serializer protocol.SerializerType
	closed   bool
}

// NewPool creates a transport pool for addr with the given bound. maxConns
// <= 0 falls back to DefaultMaxConnsPerEndpoint.
func NewPool(addr string, maxConns int, serializer protocol.SerializerType, dialer Dialer) *Pool {
	if maxConns <= 0 {
		maxConns = DefaultMaxConnsPerEndpoint
	}
	return &Pool{
		idle:       make(chan *ClientTransport, maxConns),
		addr:       addr,
		maxConns:   maxConns,
		serializer: serializer,
		dialer:     dialer,
	}
}

// Acquire returns an idle transport if one is available, creates a new one
// if the pool is under its bound, or waits (honoring ctx) for one to be
// released. It never creates more than maxConns transports; at the bound
// the calling goroutine blocks on the buffered idle channel.
func (p *Pool) Acquire(ctx context.Context) (*ClientTransport, error) {
	select {
	case t, ok := <-p.idle:
		if !ok {
			return nil, fmt.Errorf("transport: pool for %s is closed", p.addr)
		}
		if t.Closed() {
			p.dropOne()
			return p.createNew(ctx)
		}
		return t, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("transport: pool for %s is closed", p.addr)
	}
	if p.curConns < p.maxConns {
		p.curConns++
		p.mu.Unlock()
		t, err := p.dial(ctx)
		if err != nil {
			p.mu.Lock()
			p.curConns--
			p.mu.Unlock()
			return nil, err
		}
		return t, nil
	}
	p.mu.Unlock()

	select {
	case t, ok := <-p.idle:
		if !ok {
			return nil, fmt.Errorf("transport: pool for %s is closed", p.addr)
		}
		if t.Closed() {
			p.dropOne()
			return p.createNew(ctx)
		}
		return t, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a transport to the pool. A closed transport is dropped
// and its slot freed rather than recycled.
func (p *Pool) Release(t *ClientTransport) {
	if t == nil {
		return
	}
	if t.Closed() {
		p.dropOne()
		return
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		t.Close()
		return
	}

	select {
	case p.idle <- t:
	default:
		// Idle channel is at capacity (shouldn't happen since it's sized to
		// maxConns and curConns never exceeds it), drop defensively.
		t.Close()
		p.dropOne()
	}
}

// createNew allocates a fresh slot and dials, used after discovering a
// dead transport while draining the idle channel.
func (p *Pool) createNew(ctx context.Context) (*ClientTransport, error) {
	p.mu.Lock()
	if p.curConns >= p.maxConns {
		p.mu.Unlock()
		return nil, fmt.Errorf("transport: pool for %s exhausted", p.addr)
	}
	p.curConns++
	p.mu.Unlock()

	t, err := p.dial(ctx)
	if err != nil {
		p.mu.Lock()
		p.curConns--
		p.mu.Unlock()
		return nil, err
	}
	return t, nil
}

func (p *Pool) dial(ctx context.Context) (*ClientTransport, error) {
	conn, err := p.dialer(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", p.addr, err)
	}
	return NewClientTransport(conn, p.serializer), nil
}

func (p *Pool) dropOne() {
	p.mu.Lock()
	p.curConns--
	p.mu.Unlock()
}

// Occupancy reports the current live-connection count and the configured
// bound, for debug introspection.
func (p *Pool) Occupancy() (cur, max int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.curConns, p.maxConns
}

// Close closes the pool and every idle transport it currently holds.
// Transports already checked out by callers are closed as they're released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.idle)
	for t := range p.idle {
		t.Close()
	}
	return nil
}
