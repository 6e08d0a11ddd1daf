package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ferrors "github.com/a3tai/mcp-form-filler/internal/errors"
)

const (
	defaultTimeout  = 60 * time.Second
	maxResponseBody = 64 * 1024
)

// Client posts payloads to the email-sending endpoint
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithTimeout sets the request timeout of the default client
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient.Timeout = d
		}
	}
}

// NewClient creates a client for endpoint
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SendResult is the collaborator's acknowledgement
type SendResult struct {
	StatusCode int    `json:"status_code"`
	ID         string `json:"id,omitempty"`
	Message    string `json:"message,omitempty"`
}

type response struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Send posts p as JSON. A non-2xx status or an error field in the response
// body yields a transport error carrying the collaborator's own message
// when it sent one.
func (c *Client) Send(ctx context.Context, p *Payload) (*SendResult, error) {
	if c.endpoint == "" {
		return nil, ferrors.New(ferrors.ErrorTypeTransport, "dispatch endpoint is not configured")
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrorTypeTransport, "failed to build dispatch request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ferrors.Wrap(ferrors.ErrorTypeCancelled, "submission cancelled", ctx.Err())
		}
		return nil, ferrors.Wrap(ferrors.ErrorTypeTransport, "failed to reach email service", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrorTypeTransport, "failed to read email service response", err)
	}

	var decoded response
	_ = json.Unmarshal(respBody, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || decoded.Error != "" {
		if msg := strings.TrimSpace(decoded.Error); msg != "" {
			return nil, ferrors.New(ferrors.ErrorTypeTransport, msg)
		}
		return nil, ferrors.Newf(ferrors.ErrorTypeTransport, "email service failed (status %d)", resp.StatusCode)
	}

	return &SendResult{
		StatusCode: resp.StatusCode,
		ID:         decoded.ID,
		Message:    decoded.Message,
	}, nil
}
