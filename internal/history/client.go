// Package history consumes the external message-history REST API.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yaohuangguan/orion-chat/internal/wire"
)

// Client fetches channel history. Both calls are plain request/response;
// pagination of old history is the backend's concern.
type Client struct {
	baseURL string
	selfID  string
	http    *http.Client
}

// NewClient builds a history client for the given API base URL. selfID
// identifies the requesting user for private-history lookups.
func NewClient(baseURL, selfID string) *Client {
	return &Client{
		baseURL: baseURL,
		selfID:  selfID,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// PublicHistory returns the public room's messages ascending by timestamp.
func (c *Client) PublicHistory(ctx context.Context, roomKey string) ([]wire.Message, error) {
	endpoint := fmt.Sprintf("%s/history/public/%s", c.baseURL, url.PathEscape(roomKey))
	return c.fetch(ctx, "public", endpoint)
}

// PrivateHistory returns the 1:1 conversation with the given peer.
func (c *Client) PrivateHistory(ctx context.Context, peerID string) ([]wire.Message, error) {
	endpoint := fmt.Sprintf("%s/history/private/%s?self=%s",
		c.baseURL, url.PathEscape(peerID), url.QueryEscape(c.selfID))
	return c.fetch(ctx, "private", endpoint)
}

func (c *Client) fetch(ctx context.Context, kind, endpoint string) ([]wire.Message, error) {
	ctx, span := otel.Tracer("orion-chat/history").Start(ctx, "history.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("chat.channel_kind", kind))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s history: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s history: unexpected status %d", kind, resp.StatusCode)
	}

	var body struct {
		Messages []wire.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode %s history: %w", kind, err)
	}
	return body.Messages, nil
}
