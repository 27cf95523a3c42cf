package loadbalance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cristalhq/hedgedhttp"
)

// Predictor queries an external HTTP prediction service for endpoint health
// scores, per spec.md §6: POST a JSON array of "host:port" strings, receive
// a JSON object mapping the same strings to non-negative scores.
type Predictor struct {
	url    string
	client *http.Client
}

// NewPredictor builds a Predictor against the given prediction-service URL.
// The underlying client is wrapped with hedgedhttp so a slow primary
// response is covered by a second parallel request rather than stalling
// the whole refresh task — connect/read budgets match spec.md §6
// (connect ≤ 3s, read ≤ 5s, enforced here as one overall 5s timeout).
func NewPredictor(url string) *Predictor {
	base := &http.Client{Timeout: 5 * time.Second}
	hedged, err := hedgedhttp.NewClient(2*time.Second, 2, base)
	if err != nil {
		hedged = base
	}
	return &Predictor{url: url, client: hedged}
}

// Predict asks the prediction service for scores for the given "host:port"
// addresses. Any non-2xx response or decode failure is surfaced as an
// error — callers fall back to uniform weights on failure, per spec.md §4.6.
func (p *Predictor) Predict(ctx context.Context, addrs []string) (map[string]float64, error) {
	body, err := json.Marshal(addrs)
	if err != nil {
		return nil, fmt.Errorf("loadbalance: encode predictor request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("loadbalance: build predictor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("loadbalance: predictor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("loadbalance: predictor returned status %d", resp.StatusCode)
	}

	var scores map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return nil, fmt.Errorf("loadbalance: decode predictor response: %w", err)
	}
	return scores, nil
}
