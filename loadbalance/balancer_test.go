package loadbalance

import (
	"fmt"
	"testing"

	"airpc/endpoint"
	"airpc/registry"
	"airpc/resilience/breaker"
)

func testInstances() []registry.ServiceInstance {
	return []registry.ServiceInstance{
		{Endpoint: endpoint.Endpoint{Host: "127.0.0.1", Port: 8001}, Weight: 10, Version: "1.0"},
		{Endpoint: endpoint.Endpoint{Host: "127.0.0.1", Port: 8002}, Weight: 5, Version: "1.0"},
		{Endpoint: endpoint.Endpoint{Host: "127.0.0.1", Port: 8003}, Weight: 10, Version: "1.0"},
	}
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}
	instances := testInstances()

	results := make([]string, 3)
	for i := 0; i < 3; i++ {
		inst, err := b.Pick(instances)
		if err != nil {
			t.Fatal(err)
		}
		results[i] = inst.Addr()
	}

	inst, _ := b.Pick(instances)
	if inst.Addr() != results[0] {
		t.Fatalf("expect wrap around to %s, got %s", results[0], inst.Addr())
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobinBalancer{}
	_, err := b.Pick([]registry.ServiceInstance{})
	if err == nil {
		t.Fatal("expect error for empty instances")
	}
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}
	instances := testInstances()

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		inst, err := b.Pick(instances)
		if err != nil {
			t.Fatal(err)
		}
		counts[inst.Addr()]++
	}

	ratio := float64(counts["127.0.0.1:8001"]) / float64(counts["127.0.0.1:8002"])
	if ratio < 1.5 || ratio > 2.5 {
		t.Fatalf("weight ratio 8001/8002 = %.2f, expect ~2.0", ratio)
	}
}

func TestConsistentHash(t *testing.T) {
	instances := testInstances()
	b := NewConsistentHashBalancer()
	for i := range instances {
		b.Add(&instances[i])
	}

	inst1, _ := b.Pick("user-123")
	inst2, _ := b.Pick("user-123")
	if inst1.Addr() != inst2.Addr() {
		t.Fatalf("same key mapped to different instances: %s vs %s", inst1.Addr(), inst2.Addr())
	}

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		inst, _ := b.Pick(fmt.Sprintf("key-%d", i))
		seen[inst.Addr()] = true
	}

	if len(seen) < 2 {
		t.Fatalf("expect at least 2 different instances, got %d", len(seen))
	}
}

func TestPredictiveBalancerSingleInstanceShortCircuits(t *testing.T) {
	b := NewPredictiveBalancer("http://127.0.0.1:0/predict")
	defer b.Stop()

	instances := testInstances()[:1]
	inst, err := b.Pick(instances)
	if err != nil {
		t.Fatal(err)
	}
	if inst.Addr() != instances[0].Addr() {
		t.Fatalf("expect the sole instance returned, got %s", inst.Addr())
	}
}

func TestPredictiveBalancerExcludesOpenBreaker(t *testing.T) {
	b := NewPredictiveBalancer("http://127.0.0.1:0/predict")
	defer b.Stop()

	instances := testInstances()
	b.cache.publish(map[string]float64{
		"127.0.0.1:8001": 1.0,
		"127.0.0.1:8002": 1.0,
		"127.0.0.1:8003": 1.0,
	})
	b.BreakerFor("127.0.0.1:8002").ForceState(breaker.Open)

	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		inst, err := b.Pick(instances)
		if err != nil {
			t.Fatal(err)
		}
		counts[inst.Addr()]++
	}
	if counts["127.0.0.1:8002"] != 0 {
		t.Fatalf("expect OPEN breaker endpoint to receive 0 selections, got %d", counts["127.0.0.1:8002"])
	}
}

func TestPredictiveBalancerAllWeightsZeroFallsBackUniform(t *testing.T) {
	b := NewPredictiveBalancer("http://127.0.0.1:0/predict")
	defer b.Stop()

	instances := testInstances()
	b.cache.publish(map[string]float64{
		"127.0.0.1:8001": 0,
		"127.0.0.1:8002": 0,
		"127.0.0.1:8003": 0,
	})

	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		inst, err := b.Pick(instances)
		if err != nil {
			t.Fatal(err)
		}
		counts[inst.Addr()]++
	}
	for _, addr := range []string{"127.0.0.1:8001", "127.0.0.1:8002", "127.0.0.1:8003"} {
		if counts[addr] < 250 || counts[addr] > 450 {
			t.Fatalf("expect roughly uniform fallback for %s, got %d/1000", addr, counts[addr])
		}
	}
}

func TestFactoryResolvesNamedStrategies(t *testing.T) {
	f := NewFactory("")
	defer f.Stop()

	if _, err := f.Get("random"); err != nil {
		t.Fatalf("expect random to resolve: %v", err)
	}
	if _, err := f.Get(""); err != nil {
		t.Fatalf("expect empty name to resolve to random: %v", err)
	}
	if _, err := f.Get("aipredictive"); err != nil {
		t.Fatalf("expect aipredictive to resolve: %v", err)
	}
	if _, err := f.Get("nonexistent"); err == nil {
		t.Fatal("expect unknown strategy name to error")
	}
}
