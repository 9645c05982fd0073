// Package directory consumes the external user-directory REST API that
// populates the selectable-peer list. It is not part of the routing core.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// User is one directory entry.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"displayName"`
	Email    string `json:"email,omitempty"`
	PhotoURL string `json:"photoUrl,omitempty"`
}

// Client lists known users page by page.
type Client struct {
	baseURL  string
	pageSize int
	http     *http.Client
}

// NewClient builds a directory client; pageSize falls back to 50 when
// non-positive.
func NewClient(baseURL string, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Client{
		baseURL:  baseURL,
		pageSize: pageSize,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// ListUsers fetches one page (1-based). The second return reports whether
// more pages remain.
func (c *Client) ListUsers(ctx context.Context, page int) ([]User, bool, error) {
	endpoint := fmt.Sprintf("%s/users?page=%d&page_size=%d", c.baseURL, page, c.pageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build directory request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("list users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("list users: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Users   []User `json:"users"`
		HasMore bool   `json:"has_more"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, fmt.Errorf("decode user page: %w", err)
	}
	return body.Users, body.HasMore, nil
}

// AllUsers drains the directory page by page.
func (c *Client) AllUsers(ctx context.Context) ([]User, error) {
	var all []User
	for page := 1; ; page++ {
		users, more, err := c.ListUsers(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, users...)
		if !more {
			return all, nil
		}
	}
}
