// ABOUTME: HTTP client for the lantern-server session API
// ABOUTME: Wraps creation and status endpoints with typed requests

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lanternlink/lantern/internal/server"
	"github.com/lanternlink/lantern/internal/session"
)

const requestTimeout = 10 * time.Second

// apiClient talks to the lantern-server HTTP API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// CreateSession creates a plain capture session bound to the given chat.
func (c *apiClient) CreateSession(ctx context.Context, label, chatID string) (*server.CreateSessionResponse, error) {
	var resp server.CreateSessionResponse
	err := c.postJSON(ctx, "/create",
		server.CreateSessionRequest{Label: label, ChatID: chatID}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateWrapped creates a session whose page embeds the target URL.
func (c *apiClient) CreateWrapped(ctx context.Context, targetURL, label, chatID string) (*server.CreateSessionResponse, error) {
	var resp server.CreateSessionResponse
	err := c.postJSON(ctx, "/wrap_create",
		server.CreateWrappedRequest{TargetURL: targetURL, Label: label, ChatID: chatID}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionData fetches the full record for a token.
func (c *apiClient) SessionData(ctx context.Context, token string) (*session.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/session_data/"+token, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching session data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var rec session.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding session data: %w", err)
	}
	return &rec, nil
}

func (c *apiClient) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// apiError extracts the server's JSON error envelope when present.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, envelope.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
