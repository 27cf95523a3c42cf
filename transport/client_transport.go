// Package transport implements the client-side transport layer with
// multiplexing and heartbeat.
//
// ClientTransport enables multiple concurrent RPC calls over a single TCP
// connection. Each request gets a unique message ID, and a background
// goroutine (recvLoop) continuously reads frames and routes them to the
// correct caller via the correlation table.
//
//	goroutine-1 ──Send(id=1)──┐
//	goroutine-2 ──Send(id=2)──┼──→ single TCP conn ──→ Server
//	goroutine-3 ──Send(id=3)──┘
//
//	recvLoop:  ←── response(id=2) → pending[2] chan ← response → goroutine-2 wakes up
package transport

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"airpc/codec"
	"airpc/message"
	"airpc/protocol"
)

// ClientTransport manages a single multiplexed TCP connection to one
// endpoint. Message IDs are scoped per connection: a counter local to this
// transport, not a process-global sequence.
type ClientTransport struct {
	conn       net.Conn
	serializer protocol.SerializerType
	codec      codec.Codec

	seq     atomic.Uint32
	pending correlationTable

	sendMu chan struct{} // 1-buffered channel used as a write-serializing lock

	closed atomic.Bool
}

// NewClientTransport creates a transport for the given connection and
// starts the background recvLoop and heartbeatLoop goroutines.
func NewClientTransport(conn net.Conn, serializer protocol.SerializerType) *ClientTransport {
	t := &ClientTransport{
		conn:       conn,
		serializer: serializer,
		codec:      codec.Get(serializer),
		sendMu:     make(chan struct{}, 1),
	}
	t.sendMu <- struct{}{}
	go t.recvLoop()
	go t.heartbeatLoop(30 * time.Second)
	return t
}

// Send serializes and writes req as a request frame, returning a channel
// that will receive the matching response. The caller must read from the
// channel exactly once; closing/abandoning it without reading leaks
// nothing since the channel is buffered and GC'd once unreferenced.
func (t *ClientTransport) Send(req *message.Request) (<-chan *message.Response, error) {
	if t.closed.Load() {
		return nil, fmt.Errorf("transport: connection closed")
	}

	msgID := t.seq.Add(1)
	body, err := t.codec.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("transport: encode request: %w", err)
	}

	header := &protocol.Header{
		Serializer: t.serializer,
		MsgType:    protocol.MsgTypeRequest,
		MsgID:      msgID,
		BodyLen:    uint32(len(body)),
	}

	respCh := t.pending.register(msgID)

	<-t.sendMu
	err = protocol.Encode(t.conn, header, body)
	t.sendMu <- struct{}{}

	if err != nil {
		t.pending.cancel(msgID)
		return nil, fmt.Errorf("transport: write frame: %w", err)
	}
	return respCh, nil
}

// recvLoop runs in a dedicated goroutine, continuously reading frames from
// the connection. TCP is a byte stream — reads must be sequential to
// correctly parse frame boundaries, so there is exactly one reader per
// connection.
func (t *ClientTransport) recvLoop() {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			// Covers the bad-magic/unsupported-version case too: protocol.Decode
			// never resynchronizes on a malformed frame, so the only correct
			// response here is to tear the connection down, not just mark it.
			t.closed.Store(true)
			t.pending.failAll(fmt.Errorf("transport: connection broken: %w", err))
			t.conn.Close()
			return
		}

		switch header.MsgType {
		case protocol.MsgTypeResponse:
			resp := &message.Response{}
			if err := t.codec.Decode(body, resp); err != nil {
				continue
			}
			t.pending.complete(header.MsgID, resp)
		case protocol.MsgTypeHeartbeatResponse:
			// Liveness only; nothing is waiting on a heartbeat's message ID.
		}
	}
}

// heartbeatLoop sends periodic heartbeat frames so a silently-dead peer
// (e.g. behind a NAT that dropped the mapping) is detected by the next
// failed write rather than by an open-ended read timeout.
func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if t.closed.Load() {
			return
		}
		req := &message.Request{Heartbeat: true}
		body, err := t.codec.Encode(req)
		if err != nil {
			continue
		}
		header := &protocol.Header{
			Serializer: t.serializer,
			MsgType:    protocol.MsgTypeHeartbeatRequest,
			MsgID:      t.seq.Add(1),
			BodyLen:    uint32(len(body)),
		}
		<-t.sendMu
		err = protocol.Encode(t.conn, header, body)
		t.sendMu <- struct{}{}
		if err != nil {
			t.closed.Store(true)
			t.pending.failAll(fmt.Errorf("transport: heartbeat write failed: %w", err))
			t.conn.Close()
			return
		}
	}
}

// Conn returns the underlying TCP connection.
func (t *ClientTransport) Conn() net.Conn { return t.conn }

// Closed reports whether the transport has observed a broken connection.
func (t *ClientTransport) Closed() bool { return t.closed.Load() }

// Close closes the underlying connection and fails any pending callers.
func (t *ClientTransport) Close() error {
	t.closed.Store(true)
	t.pending.failAll(fmt.Errorf("transport: closed locally"))
	return t.conn.Close()
}
