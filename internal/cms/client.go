// Package cms talks to the headless CMS REST API.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"baf-site/internal/config"
	"baf-site/internal/logger"
	"baf-site/internal/metrics"
	"baf-site/internal/util"
)

// StatusError is returned for any non-2xx CMS response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("cms: http %d", e.Status)
	}
	return fmt.Sprintf("cms: http %d: %s", e.Status, e.Body)
}

// Message extracts a Payload-style {"message": ...} or {"errors":[{"message":...}]} text.
func (e *StatusError) Message() string {
	var body struct {
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal([]byte(e.Body), &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if len(body.Errors) > 0 && body.Errors[0].Message != "" {
			return body.Errors[0].Message
		}
	}
	return http.StatusText(e.Status)
}

var ErrUnauthorized = errors.New("cms: admin token required")

type Client struct {
	baseURL *url.URL
	http    *http.Client
	ep      config.Endpoints
	log     *logger.Logger
	metrics *metrics.Metrics
}

// New builds a client from config. The underlying *http.Client is created once
// and shared by every request.
func New(cfg config.CMS, log *logger.Logger, m *metrics.Metrics) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("cms base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("cms base url must be absolute, got %q", cfg.BaseURL)
	}
	to := cfg.Timeout
	if to <= 0 {
		to = 15 * time.Second
	}
	headers := map[string]string{"Accept": "application/json"}
	if cfg.UserAgent != "" {
		headers["User-Agent"] = cfg.UserAgent
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL: base,
		http:    util.NewHTTPClient(to, headers),
		ep:      cfg.Endpoints,
		log:     log.With("component", "cms"),
		metrics: m,
	}, nil
}

// ErrInvalidEndpoint marks an endpoint path that cannot be resolved against the base URL.
var ErrInvalidEndpoint = errors.New("cms: invalid endpoint")

// resolve joins an endpoint path (which may carry a query string) onto the base URL.
func (c *Client) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidEndpoint)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidEndpoint, path, err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return "", fmt.Errorf("%w %q: must be relative to the base url", ErrInvalidEndpoint, path)
	}
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

// Validate resolves the read endpoints a content bundle is built from, so a
// bad path is reported once instead of as four failed reads.
func (c *Client) Validate() error {
	for _, ep := range []struct{ name, path string }{
		{CollectionAbout, c.ep.About},
		{CollectionEvents, c.ep.Events},
		{CollectionBrands, c.ep.Brands},
		{CollectionCatalog, c.ep.Catalog},
	} {
		if _, err := c.resolve(ep.path); err != nil {
			return fmt.Errorf("%s endpoint: %w", ep.name, err)
		}
	}
	return nil
}

// do sends req and returns the body of a 2xx response.
func (c *Client) do(req *http.Request, collection string) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(collection, "error", time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.metrics.ObserveRequest(collection, "error", time.Since(start))
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveRequest(collection, "error", time.Since(start))
		return nil, err
	}
	c.metrics.ObserveRequest(collection, "ok", time.Since(start))
	return raw, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	return http.NewRequestWithContext(ctx, method, u, body)
}

// List GETs a collection endpoint and returns its documents.
// A missing or empty docs array is no content, not an error.
func (c *Client) List(ctx context.Context, collection, path string) ([]map[string]any, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	raw, err := c.do(req, collection)
	if err != nil {
		return nil, err
	}
	return decodeDocs(raw)
}

// decodeDocs accepts the paginated envelope {"docs":[...]} or a bare array.
func decodeDocs(raw []byte) ([]map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []map[string]any{}, nil
	}
	if raw[0] == '[' {
		var arr []map[string]any
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, fmt.Errorf("cms: decode array: %w", err)
		}
		return arr, nil
	}
	var env struct {
		Docs []map[string]any `json:"docs"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("cms: decode envelope: %w", err)
	}
	if env.Docs == nil {
		return []map[string]any{}, nil
	}
	return env.Docs, nil
}

// decodeDoc accepts a single document, or Payload's {"doc": {...}} mutation reply.
func decodeDoc(raw []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("cms: decode document: %w", err)
	}
	if inner, ok := m["doc"].(map[string]any); ok {
		return inner, nil
	}
	return m, nil
}
