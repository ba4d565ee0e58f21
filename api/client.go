package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const requestIDHeader = "X-Request-ID"

// authInjector adds the bearer token and a fresh request id to every request.
type authInjector struct {
	token string
	next  http.RoundTripper
}

func (t *authInjector) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	if req.Header.Get(requestIDHeader) == "" {
		req.Header.Set(requestIDHeader, uuid.NewString())
	}
	return t.next.RoundTrip(req)
}

// Client talks to the question backend.
type Client struct {
	HttpClient  *http.Client
	questionURL string
}

// NewClient returns a client for questionURL authenticated with token.
func NewClient(questionURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		HttpClient: &http.Client{
			Timeout:   timeout,
			Transport: &authInjector{token: token, next: http.DefaultTransport},
		},
		questionURL: strings.TrimRight(questionURL, "/"),
	}
}

// Configured reports whether a backend URL was set.
func (c *Client) Configured() bool { return c.questionURL != "" }

// StatusError is a non-2xx backend response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend responded %d", e.StatusCode)
	}
	return fmt.Sprintf("backend responded %d: %s", e.StatusCode, e.Message)
}

var ErrNotConfigured = errors.New("api: question backend url is not configured")

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.questionURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	se := &StatusError{StatusCode: resp.StatusCode}
	var errBody struct {
		Message string `json:"message"`
	}
	if raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil {
		if json.Unmarshal(raw, &errBody) == nil && errBody.Message != "" {
			se.Message = errBody.Message
		} else {
			se.Message = strings.TrimSpace(string(raw))
		}
	}
	log.Warn().Str("module", "api").Str("path", path).Int("status", se.StatusCode).Str("message", se.Message).Msg("backend request failed")
	return se
}
