// Package normalizer calls the external text-standardization service and
// appends its output to the cumulative artifact.
package normalizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the standardization service over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Result is the service's standardized rendering of one program string.
type Result struct {
	StandardizedProgram    string `json:"standardized_program"`
	StandardizedUniversity string `json:"standardized_university"`
}

type request struct {
	Text string `json:"text"`
}

// NewClient builds a Client against the service endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Normalize sends one free-text program string and returns the two
// standardized fields.
func (c *Client) Normalize(ctx context.Context, text string) (Result, error) {
	payload, err := json.Marshal(request{Text: text})
	if err != nil {
		return Result{}, fmt.Errorf("marshal normalize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build normalize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("call normalizer: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read normalizer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("normalizer returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return Result{}, fmt.Errorf("decode normalizer response: %w", err)
	}
	return result, nil
}
