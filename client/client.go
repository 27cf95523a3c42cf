// Package client implements the RPC client: service discovery, load
// balancing, circuit breaking, adaptive timeouts, and a resilience-wrapped
// retrying call pipeline over a shared per-endpoint transport pool.
//
// Call flow (spec.md §4.7/§4.8), wrapped in a retry loop:
//
//	Call(service, method, args, reply)
//	  → Registry.Discover(service)    → get instance list from etcd
//	  → Balancer.Pick(instances)      → select one endpoint
//	  → breaker.AllowRequest()        → admission control
//	  → pool.Acquire(ctx)             → borrow a multiplexed transport
//	  → transport.Send()              → write framed request, get response channel
//	  → <-channel (adaptive deadline) → wait for response
//	  → record breaker/timeout outcome, retry on a retryable failure
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"airpc/loadbalance"
	"airpc/message"
	"airpc/protocol"
	"airpc/registry"
	"airpc/resilience/breaker"
	"airpc/resilience/timeout"
	"airpc/rpcerr"
	"airpc/transport"
)

// Client manages the full RPC call lifecycle: discovery → balancing →
// breaker/timeout admission → pooled transport → retrying pipeline.
type Client struct {
	registry   registry.Registry
	balancer   loadbalance.Balancer
	serializer protocol.SerializerType
	poolSize   int

	poolsMu sync.Mutex
	pools   map[string]*transport.Pool

	breakers *breaker.Registry
	timeouts *timeout.Registry

	retry RetryConfig
}

// NewClient creates a client with the given registry, load balancer,
// wire serializer, and per-endpoint connection pool size. Breaker and
// adaptive-timeout registries are created with spec.md's defaults; use
// WithRetryConfig to override the retry policy.
func NewClient(reg registry.Registry, bal loadbalance.Balancer, serializer protocol.SerializerType, poolSize int) *Client {
	return &Client{
		registry:   reg,
		balancer:   bal,
		serializer: serializer,
		poolSize:   poolSize,
		pools:      make(map[string]*transport.Pool),
		breakers:   breaker.NewRegistry(breaker.DefaultConfig()),
		timeouts:   timeout.NewRegistry(),
		retry:      DefaultRetryConfig(),
	}
}

// WithRetryConfig overrides the default retry policy and returns the
// client for chaining.
func (c *Client) WithRetryConfig(cfg RetryConfig) *Client {
	c.retry = cfg
	return c
}

// poolFor returns the transport pool for addr, creating it on first use.
func (c *Client) poolFor(addr string) *transport.Pool {
	c.poolsMu.Lock()
	defer c.poolsMu.Unlock()
	if p, ok := c.pools[addr]; ok {
		return p
	}
	dialer := func(ctx context.Context) (net.Conn, error) {
		d := net.Dialer{}
		return d.DialContext(ctx, "tcp", addr)
	}
	p := transport.NewPool(addr, c.poolSize, c.serializer, dialer)
	c.pools[addr] = p
	return p
}

// Call performs a resilience-wrapped RPC call: discover, balance, admit,
// acquire, send, await, record, retry (spec.md §4.7). On a *CircuitOpen*
// failure it propagates immediately without retrying; on any other
// retryable failure it retries up to retry.MaxAttempts, re-running
// discovery/selection on every attempt so a failing endpoint can be
// routed around.
func (c *Client) Call(ctx context.Context, serviceName, methodName string, args any, reply any) error {
	params, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("client: marshal args: %w", err)
	}
	req := &message.Request{
		RequestID:  uuid.NewString(),
		ClassName:  serviceName,
		MethodName: methodName,
		Params:     params,
	}

	var lastErr error
	for i := 0; i < c.retry.MaxAttempts; i++ {
		resp, err := c.attempt(ctx, serviceName, req)
		if err == nil {
			if len(resp.Result) == 0 {
				return nil
			}
			return json.Unmarshal(resp.Result, reply)
		}

		if rpcerr.ClassifyOf(err) == rpcerr.KindCircuitOpen {
			return err
		}

		lastErr = err
		if !rpcerr.IsRetryable(err, c.retry.RetryOnTimeout) {
			return err
		}
		if i == c.retry.MaxAttempts-1 {
			break
		}

		delay := c.retry.calculateDelay(i)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return rpcerr.RetryExhausted(lastErr)
}

// CallDirect bypasses discovery, the load balancer, the circuit breaker,
// and the retry loop entirely, talking to addr directly over a pooled
// transport. It exists for administrative/health-check calls that must
// reach one specific endpoint regardless of its breaker state.
func (c *Client) CallDirect(ctx context.Context, addr, serviceName, methodName string, args any, reply any) error {
	params, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("client: marshal args: %w", err)
	}
	req := &message.Request{
		RequestID:  uuid.NewString(),
		ClassName:  serviceName,
		MethodName: methodName,
		Params:     params,
	}

	pool := c.poolFor(addr)
	t, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("client: acquire connection to %s: %w", addr, err)
	}
	defer pool.Release(t)

	respCh, err := t.Send(req)
	if err != nil {
		return fmt.Errorf("client: send request to %s: %w", addr, err)
	}

	select {
	case resp := <-respCh:
		if resp.Error != "" {
			return errors.New(resp.Error)
		}
		if len(resp.Result) == 0 {
			return nil
		}
		return json.Unmarshal(resp.Result, reply)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PoolStats reports the live/configured connection count for each
// endpoint this client has dialed, for debug introspection.
type PoolStats struct {
	Cur int
	Max int
}

// PoolStats returns a snapshot of every endpoint pool's occupancy.
func (c *Client) PoolStats() map[string]PoolStats {
	c.poolsMu.Lock()
	defer c.poolsMu.Unlock()
	out := make(map[string]PoolStats, len(c.pools))
	for addr, p := range c.pools {
		cur, max := p.Occupancy()
		out[addr] = PoolStats{Cur: cur, Max: max}
	}
	return out
}

// Close closes every pooled transport this client has opened.
func (c *Client) Close() error {
	c.poolsMu.Lock()
	defer c.poolsMu.Unlock()
	for _, p := range c.pools {
		p.Close()
	}
	c.balancer = nil
	return nil
}
