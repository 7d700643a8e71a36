package main

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

	serverHTTP "agentteam/internal/delivery/server/http"
)

type apiClient struct {
	base string
	http *http.Client
}

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func newAPIClient(base string, timeout time.Duration) *apiClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &apiClient{
		base: strings.TrimRight(strings.TrimSpace(base), "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *apiClient) endpoint(path string, query url.Values) string {
	u := c.base + serverHTTP.APIPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// get decodes into out and returns the raw body for json output.
func (c *apiClient) get(ctx context.Context, path string, query url.Values, out any) ([]byte, error) {
	return c.do(ctx, http.MethodGet, c.endpoint(path, query), nil, out)
}

func (c *apiClient) post(ctx context.Context, path string, body, out any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, c.endpoint(path, nil), body, out)
}

func (c *apiClient) do(ctx context.Context, method, target string, body, out any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return raw, decodeAPIError(resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return raw, fmt.Errorf("decode response: %w", err)
		}
	}
	return raw, nil
}

func decodeAPIError(status int, raw []byte) error {
	var failure struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &failure) == nil && (failure.Code != "" || failure.Error != "") {
		return &apiError{Status: status, Code: failure.Code, Message: failure.Error}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &apiError{Status: status, Message: msg}
}

// streamURL maps the HTTP base onto the websocket event endpoint.
func (c *apiClient) streamURL(sessionID string, replay bool) (string, error) {
	u, err := url.Parse(c.endpoint("/events/ws", nil))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := url.Values{}
	if sessionID != "" {
		q.Set("sessionID", sessionID)
	}
	if replay {
		q.Set("replay", "true")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
