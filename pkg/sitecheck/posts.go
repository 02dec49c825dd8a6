package sitecheck

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

	"go.uber.org/zap"
)

// ErrNotJSON is returned when the posts endpoint answers with a non-JSON
// Content-Type.
var ErrNotJSON = errors.New("response is not JSON")

// Post is a single entry of the posts collection. Fields are kept raw so
// that type errors surface as validation failures instead of decode errors.
type Post struct {
	ID     json.RawMessage `json:"id"`
	UserID json.RawMessage `json:"userId"`
	Title  json.RawMessage `json:"title"`
	Body   json.RawMessage `json:"body"`
}

// PostsClient fetches and validates posts from a REST endpoint.
type PostsClient struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewPostsClient creates a client for the posts collection at url.
// A nil httpClient uses a client with a 30 second timeout.
func NewPostsClient(url string, httpClient *http.Client, logger *zap.Logger) *PostsClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostsClient{url: url, client: httpClient, logger: logger}
}

// FetchPosts GETs the collection. Non-2xx responses and responses without an
// application/json Content-Type are errors.
func (c *PostsClient) FetchPosts(ctx context.Context) ([]Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GET %s: unexpected status %s", c.url, resp.Status)
	}
	if err := ValidateJSONResponse(resp); err != nil {
		return nil, err
	}

	var posts []Post
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}

	c.logger.Debug("fetched posts", zap.String("url", c.url), zap.Int("count", len(posts)))
	return posts, nil
}

// ValidateJSONResponse checks that resp declares a JSON body.
func ValidateJSONResponse(resp *http.Response) error {
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return fmt.Errorf("%w: Expected JSON response but got Content-Type: %s", ErrNotJSON, contentType)
	}
	return nil
}

// Validate fetches the collection and validates every post, logging each
// failure.
func (c *PostsClient) Validate(ctx context.Context) ([]PostResult, error) {
	posts, err := c.FetchPosts(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]PostResult, 0, len(posts))
	for _, p := range posts {
		r := ValidatePost(p)
		if !r.Valid() {
			c.logger.Warn(r.Message(), zap.String("post_id", r.ID), zap.Strings("reasons", r.Reasons))
		}
		results = append(results, r)
	}
	return results, nil
}

// ValidatePost applies the post rules:
//   - userId is a JSON integer
//   - title is not the empty string
//   - body is not the empty string
//
// Reasons are reported in that order.
func ValidatePost(p Post) PostResult {
	r := PostResult{ID: rawString(p.ID)}

	if !isJSONInteger(p.UserID) {
		r.Reasons = append(r.Reasons, "userId is not an integer")
	}
	if isEmptyField(p.Title) {
		r.Reasons = append(r.Reasons, "title is empty")
	}
	if isEmptyField(p.Body) {
		r.Reasons = append(r.Reasons, "body is empty")
	}
	return r
}

// isJSONInteger reports whether raw is a number literal without fraction or
// exponent.
func isJSONInteger(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	if len(b) > 0 && b[0] == '-' {
		b = b[1:]
	}
	if len(b) == 0 {
		return false
	}
	for _, ch := range b {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// isEmptyField reports whether raw is absent or the empty string. Values of
// other types are not empty.
func isEmptyField(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) == 0 || bytes.Equal(b, []byte(`""`))
}

// rawString renders an id for messages: strings unquoted, anything else as
// its JSON text.
func rawString(raw json.RawMessage) string {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 {
		return "<none>"
	}
	var s string
	if json.Unmarshal(b, &s) == nil {
		return s
	}
	return string(b)
}
