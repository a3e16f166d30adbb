// Package api is the REST client for the marketplace backend. It seeds
// initial chat state (conversation list, message history, contacts); all
// live updates arrive over the websocket channel instead.
package api

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

const defaultTimeout = 30 * time.Second

// TokenSource supplies the current access token. The session manager
// implements it; requests always read the token at call time so a
// re-login mid-flight picks up the new credential.
type TokenSource interface {
	Token() string
}

// Error is a non-2xx backend response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Client talks to the marketplace REST API.
type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  TokenSource
}

// New creates a REST client rooted at serverURL (the /api prefix is added
// per request).
func New(serverURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		httpc:   &http.Client{Timeout: defaultTimeout},
		tokens:  tokens,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api"+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return &Error{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage pulls the backend's message field out of an error body.
// NestJS sends either a string or an array of validation messages.
func errorMessage(data []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Message == nil {
		return "request failed"
	}
	var single string
	if err := json.Unmarshal(payload.Message, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(payload.Message, &many); err == nil {
		return strings.Join(many, ", ")
	}
	return "request failed"
}
