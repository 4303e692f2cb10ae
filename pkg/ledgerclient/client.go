/**
 * @description
 * This package provides a client for communicating with the main ledger
 * service. It encapsulates the wallet top-up sync call made after a local
 * wallet credit, and classifies failures so the dispatcher can tell a
 * retryable outage from a terminal rejection.
 */
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the main ledger service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new ledger service client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// TopUpRequest defines the request payload for the wallet top-up sync call.
// Amount is in kobo; the ledger service owns its own unit conversion.
type TopUpRequest struct {
	UserID      string `json:"userId"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	Source      string `json:"source"`
	Description string `json:"description,omitempty"`
}

// TopUpResponse defines the response from the wallet top-up sync call.
type TopUpResponse struct {
	Success          bool     `json:"success"`
	NewBalance       *float64 `json:"newBalance,omitempty"`
	AlreadyProcessed bool     `json:"alreadyProcessed,omitempty"`
}

// APIError is returned when the ledger service responds with a non-2xx
// status. The dispatcher uses Retryable to decide whether to try again.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger service returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure is worth another attempt. Rate
// limiting and server-side errors are transient; any other 4xx means the
// ledger service rejected the request and retrying cannot help.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// TopUpWallet calls the main ledger service to mirror a local wallet credit.
// Transport errors are returned as-is (and are retryable); HTTP errors are
// returned as *APIError.
func (c *Client) TopUpWallet(ctx context.Context, reqBody TopUpRequest) (*TopUpResponse, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("ledger service base url is empty")
	}

	url := fmt.Sprintf("%s/wallet/top-up", c.baseURL)

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("X-Internal-API-Key", strings.TrimSpace(c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to ledger service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var response TopUpResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// A 2xx status alone is not a confirmation. Only an explicit success or
	// already-processed acknowledgment terminates the sync; anything else is
	// treated as a transient refusal so the retry burst (and eventually the
	// failed-sync store) keeps the obligation alive.
	if !response.Success && !response.AlreadyProcessed {
		return nil, fmt.Errorf("ledger service did not confirm top-up for reference %s", reqBody.Reference)
	}

	return &response, nil
}
