package client

import (
	"context"
	"testing"
	"time"

	"airpc/endpoint"
	"airpc/loadbalance"
	"airpc/middleware"
	"airpc/protocol"
	"airpc/registry"
	"airpc/resilience/breaker"
	"airpc/rpcerr"
	"airpc/server"
)

type Args struct {
	A, B int
}

type Reply struct {
	Result int
}

type Arith struct{}

func (a *Arith) Add(args *Args, reply *Reply) error {
	reply.Result = args.A + args.B
	return nil
}

func (a *Arith) Fail(args *Args, reply *Reply) error {
	return errAlwaysFails
}

type arithError struct{}

func (*arithError) Error() string { return "arith: intentional failure" }

var errAlwaysFails = &arithError{}

// MockRegistry is an in-memory registry.Registry, the same hand-rolled
// style the teacher used in place of a real etcd dependency for tests.
type MockRegistry struct {
	instances map[string][]registry.ServiceInstance
}

func NewMockRegistry() *MockRegistry {
	return &MockRegistry{instances: make(map[string][]registry.ServiceInstance)}
}

func (m *MockRegistry) Register(serviceName string, inst registry.ServiceInstance, ttl int64) error {
	m.instances[serviceName] = append(m.instances[serviceName], inst)
	return nil
}

func (m *MockRegistry) Deregister(serviceName string, addr string) error {
	insts := m.instances[serviceName]
	for i, inst := range insts {
		if inst.Addr() == addr {
			m.instances[serviceName] = append(insts[:i], insts[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockRegistry) Discover(serviceName string) ([]registry.ServiceInstance, error) {
	return m.instances[serviceName], nil
}

func (m *MockRegistry) Watch(serviceName string) <-chan []registry.ServiceInstance {
	return nil
}

func mustEndpoint(t *testing.T, addr string) endpoint.Endpoint {
	t.Helper()
	ep, err := endpoint.Parse(addr)
	if err != nil {
		t.Fatalf("parse endpoint %q: %v", addr, err)
	}
	return ep
}

func TestClientWithRegistryAndLB(t *testing.T) {
	svr := server.NewServer()
	svr.Use(middleware.LoggingMiddleware())
	if err := svr.Register(&Arith{}); err != nil {
		t.Fatal(err)
	}
	go svr.Serve("tcp", ":18080", "", nil)
	time.Sleep(100 * time.Millisecond)

	reg := NewMockRegistry()
	reg.Register("Arith", registry.ServiceInstance{Endpoint: mustEndpoint(t, "127.0.0.1:18080"), Weight: 1}, 10)

	c := NewClient(reg, &loadbalance.RoundRobinBalancer{}, protocol.DefaultSerializer, 4)
	defer c.Close()

	reply := &Reply{}
	if err := c.Call(context.Background(), "Arith", "Add", &Args{A: 1, B: 2}, reply); err != nil {
		t.Fatal(err)
	}
	if reply.Result != 3 {
		t.Fatalf("expect 3, got %v", reply.Result)
	}

	reply2 := &Reply{}
	if err := c.Call(context.Background(), "Arith", "Add", &Args{A: 10, B: 20}, reply2); err != nil {
		t.Fatal(err)
	}
	if reply2.Result != 30 {
		t.Fatalf("expect 30, got %v", reply2.Result)
	}
}

func TestClientMultipleInstances(t *testing.T) {
	svr1 := server.NewServer()
	svr1.Register(&Arith{})
	go svr1.Serve("tcp", ":18081", "", nil)

	svr2 := server.NewServer()
	svr2.Register(&Arith{})
	go svr2.Serve("tcp", ":18082", "", nil)

	time.Sleep(100 * time.Millisecond)

	reg := NewMockRegistry()
	reg.Register("Arith", registry.ServiceInstance{Endpoint: mustEndpoint(t, "127.0.0.1:18081"), Weight: 1}, 10)
	reg.Register("Arith", registry.ServiceInstance{Endpoint: mustEndpoint(t, "127.0.0.1:18082"), Weight: 1}, 10)

	c := NewClient(reg, &loadbalance.RoundRobinBalancer{}, protocol.DefaultSerializer, 4)
	defer c.Close()

	for i := 0; i < 10; i++ {
		reply := &Reply{}
		if err := c.Call(context.Background(), "Arith", "Add", &Args{A: i, B: i}, reply); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		if reply.Result != i*2 {
			t.Fatalf("request %d: expect %d, got %d", i, i*2, reply.Result)
		}
	}
}

func TestClientNoProviderFailsFast(t *testing.T) {
	reg := NewMockRegistry()
	c := NewClient(reg, &loadbalance.RoundRobinBalancer{}, protocol.DefaultSerializer, 4)
	defer c.Close()

	var reply Reply
	err := c.Call(context.Background(), "Nonexistent", "Add", &Args{A: 1, B: 1}, &reply)
	if err == nil {
		t.Fatal("expect error for a service with no registered instances")
	}
	if rpcerr.ClassifyOf(err) != rpcerr.KindNoProvider {
		t.Fatalf("expect KindNoProvider (not retried), got %v (%v)", rpcerr.ClassifyOf(err), err)
	}
}

func TestClientBusinessErrorPropagatesWithoutRetry(t *testing.T) {
	svr := server.NewServer()
	svr.Register(&Arith{})
	go svr.Serve("tcp", ":18083", "", nil)
	time.Sleep(100 * time.Millisecond)

	reg := NewMockRegistry()
	reg.Register("Arith", registry.ServiceInstance{Endpoint: mustEndpoint(t, "127.0.0.1:18083"), Weight: 1}, 10)

	c := NewClient(reg, &loadbalance.RoundRobinBalancer{}, protocol.DefaultSerializer, 4)
	defer c.Close()

	var reply Reply
	err := c.Call(context.Background(), "Arith", "Fail", &Args{A: 1, B: 1}, &reply)
	if err == nil {
		t.Fatal("expect the business error to propagate")
	}
	if rpcerr.ClassifyOf(err) != rpcerr.KindBusiness {
		t.Fatalf("expect KindBusiness, got %v (%v)", rpcerr.ClassifyOf(err), err)
	}
}

// TestClientCircuitOpenFailsFastWithoutRetry is the literal scenario of
// spec.md §8 #8: a call whose endpoint's breaker is already OPEN fails
// with CircuitOpen on the first attempt and never sleeps for backoff.
func TestClientCircuitOpenFailsFastWithoutRetry(t *testing.T) {
	svr := server.NewServer()
	svr.Register(&Arith{})
	go svr.Serve("tcp", ":18085", "", nil)
	defer svr.Shutdown(3 * time.Second)
	time.Sleep(100 * time.Millisecond)

	reg := NewMockRegistry()
	ep := mustEndpoint(t, "127.0.0.1:18085")
	reg.Register("Arith", registry.ServiceInstance{Endpoint: ep, Weight: 1}, 10)

	c := NewClient(reg, &loadbalance.RoundRobinBalancer{}, protocol.DefaultSerializer, 4)
	defer c.Close()

	c.breakers.Get(ep.Key("Arith")).ForceState(breaker.Open)

	start := time.Now()
	var reply Reply
	err := c.Call(context.Background(), "Arith", "Add", &Args{A: 1, B: 1}, &reply)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expect CircuitOpen error")
	}
	if rpcerr.ClassifyOf(err) != rpcerr.KindCircuitOpen {
		t.Fatalf("expect KindCircuitOpen, got %v (%v)", rpcerr.ClassifyOf(err), err)
	}
	// With retry.BaseDelay=100ms, a single backoff sleep would already push
	// this past 50ms; failing fast means we stay well under it.
	if elapsed > 50*time.Millisecond {
		t.Fatalf("expect immediate failure with no backoff sleep, took %s", elapsed)
	}
}

func TestClientCallDirectBypassesBreaker(t *testing.T) {
	svr := server.NewServer()
	svr.Register(&Arith{})
	go svr.Serve("tcp", ":18084", "", nil)
	time.Sleep(100 * time.Millisecond)

	reg := NewMockRegistry()
	c := NewClient(reg, &loadbalance.RoundRobinBalancer{}, protocol.DefaultSerializer, 4)
	defer c.Close()

	var reply Reply
	if err := c.CallDirect(context.Background(), "127.0.0.1:18084", "Arith", "Add", &Args{A: 4, B: 5}, &reply); err != nil {
		t.Fatalf("CallDirect failed: %v", err)
	}
	if reply.Result != 9 {
		t.Fatalf("expect 9, got %v", reply.Result)
	}
}
