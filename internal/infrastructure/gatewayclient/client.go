// Package gatewayclient drives the session endpoints of a remote gateway
// over HTTP.
package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hilthontt/relay/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	alreadyExistsMessage = "Bot already exists"
	notFoundMessage      = "Bot not found"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) Provision(ctx context.Context, identity, password string) (domain.ProvisionResult, error) {
	resp, status, err := c.post(ctx, "/bots/add", domain.LoginRequest{Username: identity, Password: password})
	if err != nil {
		return domain.ProvisionCreated, err
	}

	switch {
	case status == http.StatusOK && resp.Message == alreadyExistsMessage:
		return domain.ProvisionAlreadyExists, nil
	case status == http.StatusOK:
		return domain.ProvisionCreated, nil
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		return domain.ProvisionCreated, fmt.Errorf("%w: %s", domain.ErrAuthentication, resp.Error)
	default:
		return domain.ProvisionCreated, fmt.Errorf("provision %s: unexpected status %d: %s", identity, status, resp.Error)
	}
}

func (c *Client) SendMessage(ctx context.Context, identity, roomID, body string) error {
	resp, status, err := c.post(ctx, "/messages/send", domain.ChatReply{Username: identity, RoomID: roomID, Message: body})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}

	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return domain.ErrSessionNotFound
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrDelivery, status, resp.Error)
	}
}

// Remove reports false when the remote gateway did not know identity.
func (c *Client) Remove(ctx context.Context, identity string) (bool, error) {
	resp, status, err := c.post(ctx, "/bots/remove", map[string]string{"username": identity})
	if err != nil {
		return false, err
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("remove %s: unexpected status %d: %s", identity, status, resp.Error)
	}
	return resp.Message != notFoundMessage, nil
}

func (c *Client) List(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/bots", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request /bots failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list bots: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Bots []string `json:"bots"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode bot list: %w", err)
	}
	return out.Bots, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (messageResponse, int, error) {
	var out messageResponse

	data, err := json.Marshal(body)
	if err != nil {
		return out, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return out, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return out, 0, fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return out, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	_ = json.Unmarshal(raw, &out)

	return out, resp.StatusCode, nil
}
