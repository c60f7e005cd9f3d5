package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Responder is the control surface shared by the HTTP client and in-process callers
type Responder interface {
	Status(ctx context.Context) (*StatusResponse, error)
	SetOnline(ctx context.Context) (*StateChangeResponse, error)
	SetOffline(ctx context.Context) (*StateChangeResponse, error)
	Pending(ctx context.Context, limit int) (*PendingResponse, error)
	ClearPending(ctx context.Context) (int, error)
	History(ctx context.Context, limit int) (*HistoryResponse, error)
}

var _ Responder = (*Client)(nil)

// Client talks to a running responder's control API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the control API on localhost:port
func NewClient(port int) *Client {
	return NewClientWithBaseURL(fmt.Sprintf("http://127.0.0.1:%d", port))
}

// NewClientWithBaseURL creates a client for an explicit base URL
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Health reports whether the API answers
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Status returns the responder status
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetOnline switches the responder online
func (c *Client) SetOnline(ctx context.Context) (*StateChangeResponse, error) {
	var resp StateChangeResponse
	if err := c.do(ctx, http.MethodPost, "/api/online", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetOffline switches the responder offline
func (c *Client) SetOffline(ctx context.Context) (*StateChangeResponse, error) {
	var resp StateChangeResponse
	if err := c.do(ctx, http.MethodPost, "/api/offline", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pending returns up to limit pending messages
func (c *Client) Pending(ctx context.Context, limit int) (*PendingResponse, error) {
	var resp PendingResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/pending?limit=%d", limit), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearPending empties the pending log
func (c *Client) ClearPending(ctx context.Context) (int, error) {
	var resp ClearResponse
	if err := c.do(ctx, http.MethodDelete, "/api/pending", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Cleared, nil
}

// History returns the most recent archived messages
func (c *Client) History(ctx context.Context, limit int) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/history?limit=%d", limit), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ============ HTTP Helpers ============

func (c *Client) do(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
