package metrics

import "testing"

func TestWindowRates(t *testing.T) {
	w := New(100)
	for i := 0; i < 6; i++ {
		w.RecordSuccess(false)
	}
	for i := 0; i < 4; i++ {
		w.RecordFailure()
	}
	snap := w.Snapshot()
	if snap.TotalCalls != 10 {
		t.Fatalf("expect 10 total calls, got %d", snap.TotalCalls)
	}
	if snap.FailureRate != 0.4 {
		t.Fatalf("expect failure rate 0.4, got %f", snap.FailureRate)
	}
}

func TestWindowTrimPreservesRate(t *testing.T) {
	w := New(10)
	for i := 0; i < 5; i++ {
		w.RecordFailure()
	}
	for i := 0; i < 15; i++ {
		w.RecordSuccess(false)
	}
	snap := w.Snapshot()
	if snap.TotalCalls > 10 {
		t.Fatalf("expect window trimmed to size 10, got %d", snap.TotalCalls)
	}
	if snap.FailureRate <= 0 {
		t.Fatalf("expect trim to preserve a nonzero failure rate, got %f", snap.FailureRate)
	}
}

func TestWindowReset(t *testing.T) {
	w := New(100)
	w.RecordFailure()
	w.Reset()
	snap := w.Snapshot()
	if snap.TotalCalls != 0 || snap.FailedCalls != 0 {
		t.Fatalf("expect reset window, got %+v", snap)
	}
}

func TestLatencyWindowPercentile(t *testing.T) {
	lw := NewLatencyWindow(1000)
	for i := 0; i < 100; i++ {
		lw.Record(100)
	}
	p99 := lw.Percentile(0.99)
	if p99 != 100 {
		t.Fatalf("expect P99 == 100, got %d", p99)
	}
}

func TestLatencyWindowWraps(t *testing.T) {
	lw := NewLatencyWindow(10)
	for i := 1; i <= 25; i++ {
		lw.Record(int64(i))
	}
	if lw.Count() != 10 {
		t.Fatalf("expect count capped at capacity 10, got %d", lw.Count())
	}
	// Only the last 10 samples (16..25) should remain.
	p100 := lw.Percentile(1.0)
	if p100 != 25 {
		t.Fatalf("expect max latency 25 after wrap, got %d", p100)
	}
}

func TestLatencyWindowEmpty(t *testing.T) {
	lw := NewLatencyWindow(10)
	if got := lw.Percentile(0.99); got != 0 {
		t.Fatalf("expect 0 for empty window, got %d", got)
	}
}
