// Package client is the HTTP transport used by the search coordinator and the
// terminal front end.
package client

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

	"postfeed/models"
)

// ErrInvalidResponse is returned when a body does not have the envelope shape.
var ErrInvalidResponse = errors.New("invalid response shape")

// StatusError reports a non-success HTTP status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP error: %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP error: %d %s", e.StatusCode, e.Message)
}

// APIError is a well-formed envelope with success=false.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "request failed"
	}
	return e.Message
}

// CreateRequest is the body of a create call.
type CreateRequest struct {
	Title    string   `json:"title"`
	Slug     string   `json:"slug"`
	Excerpt  string   `json:"excerpt"`
	Image    string   `json:"image"`
	Featured bool     `json:"featured"`
	Tags     []string `json:"tags"`
}

// Client talks to the posts API rooted at BaseURL.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a client for baseURL using a default http.Client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// ListFeatured fetches the featured posts matching q. A single post in data
// is returned as a one-element list.
func (c *Client) ListFeatured(ctx context.Context, q string) ([]models.Post, error) {
	target := c.BaseURL + "/posts"
	if q != "" {
		target += "?q=" + url.QueryEscape(q)
	}

	env, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	data := bytes.TrimSpace(env.Data)
	switch {
	case len(data) > 0 && data[0] == '[':
		var posts []models.Post
		if err := json.Unmarshal(data, &posts); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		if posts == nil {
			posts = []models.Post{}
		}
		return posts, nil
	case len(data) > 0 && data[0] == '{':
		var post models.Post
		if err := json.Unmarshal(data, &post); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return []models.Post{post}, nil
	default:
		return nil, fmt.Errorf("%w: data is neither a list nor a post", ErrInvalidResponse)
	}
}

// Get fetches a single post by id.
func (c *Client) Get(ctx context.Context, id int) (models.Post, error) {
	env, err := c.do(ctx, http.MethodGet, c.BaseURL+"/posts?id="+strconv.Itoa(id), nil)
	if err != nil {
		return models.Post{}, err
	}
	return decodePost(env)
}

// Create posts a new record and returns it as stored.
func (c *Client) Create(ctx context.Context, in CreateRequest) (models.Post, error) {
	if in.Tags == nil {
		in.Tags = []string{}
	}
	body, err := json.Marshal(in)
	if err != nil {
		return models.Post{}, err
	}
	env, err := c.do(ctx, http.MethodPost, c.BaseURL+"/posts", body)
	if err != nil {
		return models.Post{}, err
	}
	return decodePost(env)
}

func decodePost(env envelope) (models.Post, error) {
	var post models.Post
	if err := json.Unmarshal(env.Data, &post); err != nil {
		return models.Post{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return post, nil
}

func (c *Client) do(ctx context.Context, method, target string, body []byte) (envelope, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return envelope{}, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// Surface cancellation as the bare context error so callers can tell
		// supersession from network failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return envelope{}, ctxErr
		}
		return envelope{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return envelope{}, ctxErr
		}
		return envelope{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		var env envelope
		if json.Unmarshal(raw, &env) == nil && env.Error != "" {
			msg = env.Error
		}
		return envelope{}, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if env.Success == nil {
		return envelope{}, fmt.Errorf("%w: missing success flag", ErrInvalidResponse)
	}
	if !*env.Success {
		return envelope{}, &APIError{Message: env.Error}
	}
	return env, nil
}

// ParseTags splits a comma-separated tag field, dropping blanks.
func ParseTags(field string) []string {
	tags := []string{}
	for _, t := range strings.Split(field, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
