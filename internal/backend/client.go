// Package backend is the REST client for the taskdeck backend: task
// persistence, chat channels and messages, file upload, share links and
// the user directory. The engine treats these endpoints as opaque
// request/response boundaries with no retry policy; a failed request
// surfaces an error and leaves caller state unchanged.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/taskdeck/taskdeck/internal/chat"
	"github.com/taskdeck/taskdeck/internal/people"
	"github.com/taskdeck/taskdeck/internal/share"
	"github.com/taskdeck/taskdeck/internal/task"
)

// ClientConfig holds the configuration for connecting to the backend.
type ClientConfig struct {
	// BaseURL is the backend base URL (e.g. "https://desk.example.com").
	BaseURL string
	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration
	// Logger receives request-level debug logging.
	Logger *slog.Logger
}

// Client wraps the backend HTTP API.
type Client struct {
	base string
	http *http.Client
	log  *slog.Logger
}

// NewClient creates a backend client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger,
	}, nil
}

// StatusError reports a non-success HTTP response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// do issues a JSON request and decodes the response into out (when out
// is non-nil and the response has a body).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s %s response: %w", method, path, err)
	}
	return nil
}

// UpdateTodo persists a full task record and returns the normalized
// saved copy.
func (c *Client) UpdateTodo(ctx context.Context, t *task.Task) (*task.Task, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPut, "/api/todos", nil, t, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		// Backend echoed nothing; the submitted record is authoritative.
		return t.Clone(), nil
	}
	saved, err := task.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode saved task: %w", err)
	}
	return saved, nil
}

// GetTodo fetches one task record, normalized.
func (c *Client) GetTodo(ctx context.Context, id string) (*task.Task, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/todos/"+url.PathEscape(id), nil, nil, &raw); err != nil {
		return nil, err
	}
	return task.Decode(raw)
}

// ListChannels lists the channels visible to a user.
func (c *Client) ListChannels(ctx context.Context, userID string) ([]chat.Channel, error) {
	q := url.Values{"user_id": {userID}}
	var out []chat.Channel
	if err := c.do(ctx, http.MethodGet, "/api/chats", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateChannel provisions a new discussion channel.
func (c *Client) CreateChannel(ctx context.Context, req chat.CreateChannelRequest) (*chat.Channel, error) {
	var out chat.Channel
	if err := c.do(ctx, http.MethodPost, "/api/chats", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteChannel removes a channel. Used on task completion/archival
// teardown.
func (c *Client) DeleteChannel(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodDelete, "/api/chats/"+url.PathEscape(chatID), nil, nil, nil)
}

// ListMessages returns a channel's full message list.
func (c *Client) ListMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	var out []chat.Message
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+url.PathEscape(chatID)+"/messages", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PostMessage posts a new message to a channel.
func (c *Client) PostMessage(ctx context.Context, chatID string, req chat.PostMessageRequest) (*chat.Message, error) {
	var out chat.Message
	if err := c.do(ctx, http.MethodPost, "/api/chats/"+url.PathEscape(chatID)+"/messages", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EditMessage updates a message's content in place.
func (c *Client) EditMessage(ctx context.Context, messageID, content string) (*chat.Message, error) {
	body := map[string]string{"content": content}
	var out chat.Message
	if err := c.do(ctx, http.MethodPatch, "/api/messages/"+url.PathEscape(messageID), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/api/messages/"+url.PathEscape(messageID), nil, nil, nil)
}

// UploadResult is the backend's answer to a file upload.
type UploadResult struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// UploadFile sends one file as multipart form data.
func (c *Client) UploadFile(ctx context.Context, filename string, content io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("read upload %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Method: http.MethodPost, Path: "/api/upload", StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	var out UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parse upload response: %w", err)
	}
	return &out, nil
}

// ListShareLinks lists grants filtered server-side by resource.
func (c *Client) ListShareLinks(ctx context.Context, resourceType, resourceID string) ([]share.Grant, error) {
	q := url.Values{
		"resource_type": {resourceType},
		"resource_id":   {resourceID},
	}
	var out []share.Grant
	if err := c.do(ctx, http.MethodGet, "/api/share", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateShareLink creates an access grant.
func (c *Client) CreateShareLink(ctx context.Context, req share.CreateRequest) (*share.Grant, error) {
	var out share.Grant
	if err := c.do(ctx, http.MethodPost, "/api/share", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteShareLink revokes an access grant.
func (c *Client) DeleteShareLink(ctx context.Context, linkID string) error {
	q := url.Values{"link_id": {linkID}}
	return c.do(ctx, http.MethodDelete, "/api/share", q, nil, nil)
}

// ListUsers fetches the contact directory.
func (c *Client) ListUsers(ctx context.Context) ([]people.Person, error) {
	var out []people.Person
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
