package rpcerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryableTable(t *testing.T) {
	cases := []struct {
		name           string
		err            error
		retryOnTimeout bool
		want           bool
	}{
		{"circuit open never retries", CircuitOpen("svc@h:1"), true, false},
		{"connection refused always retries", New(KindConnectionRefused, errors.New("dial refused")), false, true},
		{"io error retries", New(KindIoError, errors.New("reset")), false, true},
		{"timeout retries when enabled", New(KindTimeout, errors.New("deadline")), true, true},
		{"timeout does not retry when disabled", New(KindTimeout, errors.New("deadline")), false, false},
		{"business error never retries", New(KindBusiness, errors.New("bad args")), true, false},
		{"protocol violation never retries", New(KindProtocolViolation, errors.New("bad magic")), true, false},
		{"unclassified treated as io error", errors.New("boom"), false, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsRetryable(c.err, c.retryOnTimeout); got != c.want {
				t.Fatalf("IsRetryable(%v, %v) = %v, want %v", c.err, c.retryOnTimeout, got, c.want)
			}
		})
	}
}

func TestIsRetryableWalksWrappedCause(t *testing.T) {
	wrapped := fmt.Errorf("dial tcp: %w", New(KindConnectionRefused, errors.New("econnrefused")))
	if !IsRetryable(wrapped, false) {
		t.Fatal("expect wrapped ConnectionRefused to be retryable")
	}
}

func TestClassifyOf(t *testing.T) {
	if ClassifyOf(CircuitOpen("k")) != KindCircuitOpen {
		t.Fatal("expect KindCircuitOpen")
	}
	if ClassifyOf(errors.New("plain")) != KindIoError {
		t.Fatal("expect unclassified errors to default to KindIoError")
	}
}
