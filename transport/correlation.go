package transport

import (
	"sync"

	"airpc/message"
)

// correlationTable tracks in-flight requests on a single multiplexed
// connection, keyed by message ID. It is the piece that lets many
// goroutines share one TCP connection: each caller registers before
// writing its frame, and the connection's single reader goroutine
// completes the matching entry as responses arrive in arbitrary order.
type correlationTable struct {
	pending sync.Map // map[uint32]chan *message.Response
}

// register creates and stores a buffered response channel for msgID.
// Buffered so the reader goroutine never blocks delivering a response,
// even if the original caller has already given up (e.g. on timeout).
func (c *correlationTable) register(msgID uint32) <-chan *message.Response {
	ch := make(chan *message.Response, 1)
	c.pending.Store(msgID, ch)
	return ch
}

// cancel removes a registration without delivering a response, used when
// the write that would have produced a matching reply itself failed.
func (c *correlationTable) cancel(msgID uint32) {
	c.pending.Delete(msgID)
}

// complete delivers resp to the caller waiting on msgID, if any is still
// registered. Returns false if no caller was waiting (already timed out
// or the ID is unknown).
func (c *correlationTable) complete(msgID uint32, resp *message.Response) bool {
	v, ok := c.pending.LoadAndDelete(msgID)
	if !ok {
		return false
	}
	v.(chan *message.Response) <- resp
	return true
}

// failAll delivers a synthetic error response to every still-pending
// caller, used when the underlying connection breaks.
func (c *correlationTable) failAll(err error) {
	c.pending.Range(func(key, value any) bool {
		value.(chan *message.Response) <- &message.Response{Error: err.Error()}
		return true
	})
	c.pending.Clear()
}
