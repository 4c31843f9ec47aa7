package posts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainpost "vinci/internal/domain/post"
)

// Client implements post.Store against the external post service over HTTP.
type Client struct {
	BaseURL string
	Client  *http.Client
	Logger  *slog.Logger
}

type postPayload struct {
	ID       string `json:"id"`
	AuthorID string `json:"author_id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

type snapshotPayload struct {
	PendingIDs  []string `json:"pending_ids"`
	AcceptedIDs []string `json:"accepted_ids"`
}

func (c *Client) GetPost(ctx context.Context, id string) (*domainpost.Post, error) {
	if c == nil || c.Client == nil {
		return nil, errors.New("posts: http client not configured")
	}
	if c.BaseURL == "" {
		return nil, errors.New("posts: base url not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/internal/posts/%s", strings.TrimRight(c.BaseURL, "/"), id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		err = fmt.Errorf("posts: post service unavailable (%s)", c.BaseURL)
		c.logError("get post failed", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domainpost.ErrPostNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("posts: post service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		c.logError("get post returned error", err)
		return nil, err
	}

	var payload postPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logError("post decode failed", err)
		return nil, err
	}
	return &domainpost.Post{
		ID:       payload.ID,
		AuthorID: payload.AuthorID,
		Title:    payload.Title,
		Category: payload.Category,
	}, nil
}

func (c *Client) SetInterestSnapshot(ctx context.Context, id string, pendingIDs, acceptedIDs []string) error {
	if c == nil || c.Client == nil {
		return errors.New("posts: http client not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	body, err := json.Marshal(snapshotPayload{PendingIDs: pendingIDs, AcceptedIDs: acceptedIDs})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/internal/posts/%s/interest-snapshot", strings.TrimRight(c.BaseURL, "/"), id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		err = fmt.Errorf("posts: post service unavailable (%s)", c.BaseURL)
		c.logError("snapshot update failed", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domainpost.ErrPostNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("posts: post service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		c.logError("snapshot update returned error", err)
		return err
	}
	return nil
}

func (c *Client) logError(msg string, err error) {
	if c.Logger != nil {
		c.Logger.Error(msg, "error", err)
	}
}

var _ domainpost.Store = (*Client)(nil)
