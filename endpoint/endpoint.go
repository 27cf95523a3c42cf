// Package endpoint defines the network address identity shared by the
// balancer, breaker registry, adaptive-timeout registry, and connection pool.
package endpoint

import (
	"fmt"
	"net"
	"strconv"
)

// Endpoint is a reachable (host, port) pair. Two endpoints with the same
// Host and Port are the same entity and share all per-endpoint state —
// breakers, adaptive timeouts, and pools are keyed off Key(), not identity.
type Endpoint struct {
	Host string
	Port int
}

// String renders the endpoint as "host:port", the form the prediction
// service and the weight cache both key on.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Key builds the endpoint key used to register breakers and adaptive
// timeouts: "service@host:port".
func (e Endpoint) Key(service string) string {
	return service + "@" + e.String()
}

// Parse splits a "host:port" string into an Endpoint.
func Parse(addr string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("endpoint: invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("endpoint: invalid port in %q: %w", addr, err)
	}
	return Endpoint{Host: host, Port: port}, nil
}
