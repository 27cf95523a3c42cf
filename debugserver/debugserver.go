// Package debugserver exposes a minimal read-only HTTP surface over the
// in-process breaker, adaptive-timeout, pool, and weight-cache state — an
// operability supplement to spec.md, not one of its subsystems (metrics
// export and logging backends remain explicitly out of scope per spec.md
// §1's Non-goals).
//
// Endpoints:
//
//	GET /debug/breakers  - per-endpoint circuit breaker state
//	GET /debug/timeouts  - per-endpoint adaptive timeout (ms)
//	GET /debug/pools     - per-endpoint connection pool occupancy
//	GET /debug/weights   - predictive balancer's last published weights
//
// Every endpoint renders a go-pretty table for text/plain requests (the
// default) and falls back to JSON when the client asks for it via
// "?format=json", mirroring the teacher's preference for plain, readable
// output over a heavier templating layer.
package debugserver

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/jedib0t/go-pretty/v6/table"

	"airpc/client"
	"airpc/loadbalance"
	"airpc/resilience/breaker"
	"airpc/resilience/timeout"
)

// Server wires the introspection endpoints against a fixed set of
// registries/balancer/client, all of which are safe for concurrent reads.
type Server struct {
	Breakers  *breaker.Registry
	Timeouts  *timeout.Registry
	Predictor *loadbalance.PredictiveBalancer // nil if the "aipredictive" strategy isn't in use
	Client    *client.Client

	router *mux.Router
}

// New builds a debugserver.Server. Any field may be left nil/zero; the
// corresponding endpoint then reports an empty table rather than erroring.
func New(breakers *breaker.Registry, timeouts *timeout.Registry, predictor *loadbalance.PredictiveBalancer, c *client.Client) *Server {
	s := &Server{Breakers: breakers, Timeouts: timeouts, Predictor: predictor, Client: c}
	r := mux.NewRouter()
	r.HandleFunc("/debug/breakers", s.handleBreakers).Methods(http.MethodGet)
	r.HandleFunc("/debug/timeouts", s.handleTimeouts).Methods(http.MethodGet)
	r.HandleFunc("/debug/pools", s.handlePools).Methods(http.MethodGet)
	r.HandleFunc("/debug/weights", s.handleWeights).Methods(http.MethodGet)
	s.router = r
	return s
}

// Handler returns the underlying http.Handler for use with http.Serve or
// httptest.NewServer.
func (s *Server) Handler() http.Handler { return s.router }

func wantsJSON(r *http.Request) bool {
	return r.URL.Query().Get("format") == "json"
}

func (s *Server) handleBreakers(w http.ResponseWriter, r *http.Request) {
	snap := map[string]breaker.State{}
	if s.Breakers != nil {
		snap = s.Breakers.Snapshot()
	}
	if wantsJSON(r) {
		writeJSON(w, snap)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Endpoint Key", "State"})
	for _, k := range sortedKeys(snap) {
		t.AppendRow(table.Row{k, snap[k].String()})
	}
	t.Render()
}

func (s *Server) handleTimeouts(w http.ResponseWriter, r *http.Request) {
	snap := map[string]int64{}
	if s.Timeouts != nil {
		snap = s.Timeouts.Snapshot()
	}
	if wantsJSON(r) {
		writeJSON(w, snap)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Endpoint Key", "Timeout (ms)"})
	for _, k := range sortedKeysInt64(snap) {
		t.AppendRow(table.Row{k, snap[k]})
	}
	t.Render()
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	snap := map[string]client.PoolStats{}
	if s.Client != nil {
		snap = s.Client.PoolStats()
	}
	if wantsJSON(r) {
		writeJSON(w, snap)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Address", "Live", "Max"})
	for _, addr := range sortedKeysPoolStats(snap) {
		ps := snap[addr]
		t.AppendRow(table.Row{addr, ps.Cur, ps.Max})
	}
	t.Render()
}

func (s *Server) handleWeights(w http.ResponseWriter, r *http.Request) {
	snap := map[string]float64{}
	if s.Predictor != nil {
		snap = s.Predictor.WeightSnapshot()
	}
	if wantsJSON(r) {
		writeJSON(w, snap)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Address", "Weight"})
	for _, addr := range sortedKeysFloat64(snap) {
		t.AppendRow(table.Row{addr, snap[addr]})
	}
	t.Render()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func sortedKeys(m map[string]breaker.State) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysInt64(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysFloat64(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysPoolStats(m map[string]client.PoolStats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
