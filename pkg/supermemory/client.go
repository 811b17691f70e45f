// Package supermemory is a small client for the Supermemory document API,
// the semantic store that receives a searchable copy of every task.
package supermemory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const DefaultBaseURL = "https://api.supermemory.ai/v3"

var ErrMissingAPIKey = errors.New("SUPERMEMORY_API_KEY not found, set the environment variable or add it to the keys file")

// Document is a stored memory.
type Document struct {
	ID       string                 `json:"id,omitempty"`
	Content  string                 `json:"content,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Score    float64                `json:"score,omitempty"`
	Status   string                 `json:"status,omitempty"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supermemory API error: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the Supermemory API with bearer authentication.
type Client struct {
	baseURL string
	space   string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithSpace sets the namespace documents are stored in. "default" means none.
func WithSpace(space string) Option {
	return func(c *Client) { c.space = space }
}

// NewClient creates a client authenticated with apiKey.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = 30 * time.Second

	c := &Client{baseURL: DefaultBaseURL, http: httpClient}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) metadata(tags []string) map[string]interface{} {
	md := map[string]interface{}{}
	if len(tags) > 0 {
		md["tags"] = tags
	}
	if c.space != "" && c.space != "default" {
		md["space"] = c.space
	}
	if len(md) == 0 {
		return nil
	}
	return md
}

// Store saves a new memory.
func (c *Client) Store(ctx context.Context, content string, tags []string) (*Document, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("memory content cannot be empty")
	}
	payload := map[string]interface{}{"content": content}
	if md := c.metadata(tags); md != nil {
		payload["metadata"] = md
	}
	var doc Document
	if err := c.do(ctx, http.MethodPost, "/documents", payload, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SearchOptions narrows a Search.
type SearchOptions struct {
	Limit int
	Tags  []string
}

type listResponse struct {
	Results   []Document `json:"results"`
	Documents []Document `json:"documents"`
	Memories  []Document `json:"memories"`
}

func (r listResponse) items() []Document {
	switch {
	case r.Results != nil:
		return r.Results
	case r.Documents != nil:
		return r.Documents
	default:
		return r.Memories
	}
}

// Search finds memories similar to query. Some deployments only accept the
// POST form, so a failed GET is retried as POST.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) ([]Document, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(opts.Limit))
	if c.space != "" && c.space != "default" {
		q.Set("space", c.space)
	}
	if len(opts.Tags) > 0 {
		q.Set("tags", strings.Join(opts.Tags, ","))
	}

	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "/documents/search?"+q.Encode(), nil, &resp); err == nil {
		return resp.items(), nil
	}

	body := map[string]interface{}{
		"query": query,
		"limit": opts.Limit,
		"space": c.spaceOrDefault(),
		"tags":  opts.Tags,
	}
	resp = listResponse{}
	if err := c.do(ctx, http.MethodPost, "/documents/search", body, &resp); err != nil {
		return nil, err
	}
	return resp.items(), nil
}

// List returns stored memories, optionally filtered by a single tag.
func (c *Client) List(ctx context.Context, tag string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 100
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if c.space != "" && c.space != "default" {
		q.Set("space", c.space)
	}
	if tag != "" {
		q.Set("tag", tag)
	}
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "/documents?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.items(), nil
}

func (c *Client) Get(ctx context.Context, id string) (*Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Update replaces the content and/or tags of a memory.
func (c *Client) Update(ctx context.Context, id, content string, tags []string) (*Document, error) {
	updates := map[string]interface{}{}
	if content != "" {
		updates["content"] = content
	}
	if len(tags) > 0 {
		updates["metadata"] = map[string]interface{}{"tags": tags}
	}
	var doc Document
	if err := c.do(ctx, http.MethodPatch, "/documents/"+url.PathEscape(id), updates, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, nil)
}

// Ping stores a connection-test document and returns its id.
func (c *Client) Ping(ctx context.Context) (string, error) {
	doc, err := c.Store(ctx, "Supermemory connection test - "+time.Now().UTC().Format(time.RFC3339), []string{"test", "connection"})
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (c *Client) spaceOrDefault() string {
	if c.space == "" {
		return "default"
	}
	return c.space
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("supermemory request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
