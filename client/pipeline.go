package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"airpc/message"
	"airpc/rpcerr"
)

// attempt runs a single pass of the call pipeline of spec.md §4.7, steps
// 1-9: discover, balance, admit, acquire, send, await, record. The retry
// loop around it lives in Call.
func (c *Client) attempt(ctx context.Context, serviceName string, req *message.Request) (*message.Response, error) {
	// Step 1: discover endpoints
	instances, err := c.registry.Discover(serviceName)
	if err != nil {
		return nil, rpcerr.New(rpcerr.KindIoError, fmt.Errorf("discover %s: %w", serviceName, err))
	}
	if len(instances) == 0 {
		return nil, rpcerr.NoProvider(serviceName)
	}

	// Step 2: select an endpoint
	inst, err := c.balancer.Pick(instances)
	if err != nil {
		return nil, rpcerr.New(rpcerr.KindIoError, fmt.Errorf("pick endpoint: %w", err))
	}
	addr := inst.Addr()
	key := inst.Endpoint.Key(serviceName)

	// Step 3: fetch/create breaker and adaptive timeout for this key
	br := c.breakers.Get(key)
	to := c.timeouts.Get(key)

	// Step 4: admission control
	if !br.AllowRequest() {
		return nil, rpcerr.CircuitOpen(key)
	}

	// Step 5: acquire a pooled connection
	pool := c.poolFor(addr)
	t, err := pool.Acquire(ctx)
	if err != nil {
		br.RecordFailure()
		c.balancer.RecordResult(addr, err, 0)
		return nil, rpcerr.New(classifyDialErr(err), fmt.Errorf("acquire connection to %s: %w", addr, err))
	}

	// Step 6: assign a msgId (transport-local) and write the framed request
	start := time.Now()
	respCh, err := t.Send(req)
	if err != nil {
		pool.Release(t)
		br.RecordFailure()
		c.balancer.RecordResult(addr, err, 0)
		return nil, rpcerr.New(classifyDialErr(err), fmt.Errorf("send request to %s: %w", addr, err))
	}

	// Step 7: await completion with the adaptive deadline
	deadline := to.Timeout()
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case resp := <-respCh:
		// Step 8: release regardless of outcome, then record the terminal state
		pool.Release(t)
		duration := time.Since(start)
		if resp.Error != "" {
			br.RecordFailure()
			c.balancer.RecordResult(addr, errors.New(resp.Error), duration)
			return resp, rpcerr.New(rpcerr.KindBusiness, errors.New(resp.Error))
		}
		br.RecordSuccess(duration)
		to.RecordLatency(duration.Milliseconds())
		c.balancer.RecordResult(addr, nil, duration)
		return resp, nil
	case <-timer.C:
		// Step 9: exception before response
		pool.Release(t)
		br.RecordFailure()
		timeoutErr := fmt.Errorf("call to %s timed out after %s", addr, deadline)
		c.balancer.RecordResult(addr, timeoutErr, time.Since(start))
		return nil, rpcerr.New(rpcerr.KindTimeout, timeoutErr)
	case <-ctx.Done():
		pool.Release(t)
		br.RecordFailure()
		c.balancer.RecordResult(addr, ctx.Err(), time.Since(start))
		return nil, rpcerr.New(rpcerr.KindIoError, ctx.Err())
	}
}

// classifyDialErr distinguishes a refused connection from a general I/O
// failure when acquiring/dialing a pooled transport fails. net.OpError
// wraps the underlying syscall error without a portable typed sentinel
// across platforms, so this matches on the error text, the same way
// rpcerr.ClassifyText classifies response error strings.
func classifyDialErr(err error) rpcerr.Kind {
	if strings.Contains(strings.ToLower(err.Error()), "connection refused") {
		return rpcerr.KindConnectionRefused
	}
	return rpcerr.KindIoError
}
