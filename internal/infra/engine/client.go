// Package engine talks to the execution engine that runs agent sessions.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agentteam/internal/app/agentteam"
	sharederrors "agentteam/internal/shared/errors"
	"agentteam/internal/shared/logging"
	"agentteam/internal/shared/utils/id"
)

const maxErrorBody = 4 << 10

// Client launches and cancels sessions over the engine's HTTP API:
//
//	POST {base}/sessions               body LaunchRequest, reply {"runID": "..."}
//	POST {base}/sessions/{id}/cancel
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  logging.Logger
}

// NewClient builds a client for baseURL. A zero timeout defaults to 30s.
func NewClient(baseURL, token string, timeout time.Duration, logger logging.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logging.OrNop(logger),
	}
}

type launchResponse struct {
	RunID string `json:"runID"`
}

// Launch starts a session and returns its run id.
func (c *Client) Launch(ctx context.Context, req agentteam.LaunchRequest) (string, error) {
	var out launchResponse
	if err := c.do(ctx, http.MethodPost, "/sessions", req, &out); err != nil {
		return "", err
	}
	return out.RunID, nil
}

// Cancel asks the engine to stop a session.
func (c *Client) Cancel(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(sessionID)+"/cancel", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return sharederrors.NewPermanent(err, "encode engine request")
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return sharederrors.NewPermanent(err, "build engine request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if logID := id.LogIDFromContext(ctx); logID != "" {
		req.Header.Set("X-Log-Id", logID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("engine %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("engine %s %s returned %d", method, path, resp.StatusCode)
		return sharederrors.FromHTTPStatus(resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return sharederrors.NewPermanent(err, "decode engine response")
	}
	return nil
}
