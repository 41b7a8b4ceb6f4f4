// Package client talks to the SUNABOT chat endpoints over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sunabot/sunabot/backend/internal/model/chat"
)

// Endpoint paths.
const (
	EndpointDirect   = "/chat_directo"
	EndpointRespond  = "/responder"
	EndpointPremium  = "/responder_copilot"
	EndpointContinue = "/continuar"
)

const maxResponseBytes = 4 << 20

// HTTPError is a non-2xx answer from an endpoint. Message and Answer carry
// the error body when the server sent one.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Answer     string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.StatusCode)
}

// Client posts queries to a SUNABOT server. Requests are never retried.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		logger:  log.With().Str("component", "client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChatDirect posts to /chat_directo.
func (c *Client) ChatDirect(ctx context.Context, req chat.DirectRequest) (chat.Reply, error) {
	return c.post(ctx, EndpointDirect, req)
}

// Respond posts to /responder.
func (c *Client) Respond(ctx context.Context, req chat.QueryRequest) (chat.Reply, error) {
	return c.post(ctx, EndpointRespond, req)
}

// RespondPremium posts to /responder_copilot.
func (c *Client) RespondPremium(ctx context.Context, req chat.QueryRequest) (chat.Reply, error) {
	return c.post(ctx, EndpointPremium, req)
}

// Continue posts to /continuar.
func (c *Client) Continue(ctx context.Context, req chat.ContinueRequest) (chat.Reply, error) {
	return c.post(ctx, EndpointContinue, req)
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) (chat.Reply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return chat.Reply{}, fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return chat.Reply{}, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return chat.Reply{}, fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return chat.Reply{}, fmt.Errorf("read %s response: %w", endpoint, err)
	}

	var reply chat.Reply
	decodeErr := json.Unmarshal(data, &reply)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{Endpoint: endpoint, StatusCode: resp.StatusCode}
		if decodeErr == nil {
			httpErr.Message = reply.Error
			httpErr.Answer = reply.Answer
		}
		c.logger.Warn().Str("endpoint", endpoint).Int("status", resp.StatusCode).Str("error", httpErr.Message).Msg("request failed")
		return chat.Reply{}, httpErr
	}
	if decodeErr != nil {
		return chat.Reply{}, fmt.Errorf("decode %s response: %w", endpoint, decodeErr)
	}
	return reply, nil
}
