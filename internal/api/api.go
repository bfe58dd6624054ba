// Package api is the HTTP collaborator for the WaniKani v2 API. It issues
// conditional GETs with the stored watermark state, classifies responses
// into the outcomes the sync layer cares about (not modified, page of
// resources, auth failure, rate limit, other error), and submits pending
// reviews.
//
// The package performs no caching and holds no state beyond the token; the
// sync orchestrator owns watermarks and retries.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/wanicli/wani/internal/wanidata"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.wanikani.com/v2"

// revision pins the API payload shapes this client decodes.
const revision = "20170710"

// Client talks to the WaniKani API with one personal access token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for the production API.
func New(token string) *Client {
	return NewWithClient(token, DefaultBaseURL, &http.Client{Timeout: 30 * time.Second})
}

// NewWithClient returns a client with a custom base URL and HTTP client.
// Tests use this to point at a stub server.
func NewWithClient(token, baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, token: token, http: hc}
}

// Page is one successfully fetched response plus the freshness headers the
// sync layer persists as the new watermark.
type Page struct {
	// NotModified is true for a 304: the stored watermark is still fresh
	// and Resp is nil.
	NotModified bool

	Resp *wanidata.Resp

	ETag         string
	LastModified string
}

// ConditionalGet fetches an endpoint path (e.g. "/subjects"), attaching
// If-None-Match when an etag is stored and an updated_after query
// parameter when a timestamp watermark is stored.
func (c *Client) ConditionalGet(ctx context.Context, path, etag string, updatedAfter *time.Time) (*Page, error) {
	u := c.baseURL + path
	if updatedAfter != nil {
		q := url.Values{}
		q.Set("updated_after", updatedAfter.UTC().Format(time.RFC3339))
		u += "?" + q.Encode()
	}
	return c.GetURL(ctx, u, etag)
}

// GetURL fetches an absolute URL with conditional headers. The sync layer
// uses this to follow pagination cursors, which arrive as absolute URLs
// with the query string already baked in.
func (c *Client) GetURL(ctx context.Context, rawURL, etag string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	return c.do(req)
}

// CreateReview submits a pending review. On success the response carries
// the server-assigned review resource and the refreshed assignment under
// resources_updated.
func (c *Client) CreateReview(ctx context.Context, r *wanidata.NewReview) (*wanidata.Resp, error) {
	body, err := r.EncodeWire()
	if err != nil {
		return nil, fmt.Errorf("failed to encode review for assignment %d: %w", r.AssignmentID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reviews", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	page, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return page.Resp, nil
}

// do sends the request and classifies the response.
func (c *Client) do(req *http.Request) (*Page, error) {
	req.Header.Set("Wanikani-Revision", revision)
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &TransportError{Err: err}
		}
		decoded, err := wanidata.DecodeResp(body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
		}
		return &Page{
			Resp:         decoded,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}, nil

	case http.StatusNotModified:
		return &Page{
			NotModified:  true,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}, nil

	case http.StatusUnauthorized:
		return nil, &AuthError{Status: resp.StatusCode}

	case http.StatusTooManyRequests:
		return nil, &RateLimitError{Limit: wanidata.RateLimitFromHeaders(resp.Header)}

	default:
		return nil, &HTTPError{Status: resp.StatusCode}
	}
}
