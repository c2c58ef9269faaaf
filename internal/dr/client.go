// Package dr is a small client for the parts of the DataRobot REST API (v2) that
// register external data connections: datastores, credentials, datasources and datasets.
package dr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultStatusTimeout      = 10 * time.Minute
	defaultStatusPollInterval = 2 * time.Second
	maxErrorBodyBytes         = 512
)

// APIError is returned for any non-2xx response from DataRobot.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes] + "..."
	}
	return fmt.Sprintf("DataRobot API %s %s failed: %d %s: %s",
		e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode), body)
}

// IsNotFound reports whether err is a DataRobot 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to one DataRobot endpoint with one API token.
type Client struct {
	endpoint   *url.URL
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	statusTimeout      time.Duration
	statusPollInterval time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Redirect following is disabled on a
// copy of it so async status redirects can be observed.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			copied := *hc
			c.httpClient = &copied
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStatusTimeout bounds how long async jobs (dataset creation) are waited for.
func WithStatusTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.statusTimeout = d
		}
	}
}

func WithStatusPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.statusPollInterval = d
		}
	}
}

func defaultHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   5 * time.Minute,
	}
}

// NewClient returns a client for endpoint, e.g. https://app.datarobot.com/api/v2.
func NewClient(endpoint string, token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, errors.New("a DataRobot API token is required")
	}
	u, err := normalizeEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	c := &Client{
		endpoint:           u,
		token:              token,
		httpClient:         defaultHTTPClient(),
		logger:             slog.Default(),
		statusTimeout:      defaultStatusTimeout,
		statusPollInterval: defaultStatusPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c, nil
}

// normalizeEndpoint validates the endpoint and ensures a trailing slash so relative
// resource paths resolve underneath it.
func normalizeEndpoint(endpoint string) (*url.URL, error) {
	endpoint = strings.TrimSpace(endpoint)
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid DataRobot endpoint %q", endpoint)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// Endpoint returns the API endpoint without a trailing slash.
func (c *Client) Endpoint() string {
	return strings.TrimSuffix(c.endpoint.String(), "/")
}

func (c *Client) Token() string {
	return c.token
}

// resolve turns a resource path ("credentials/") or an absolute URL (pagination and
// status links) into a request URL.
func (c *Client) resolve(path string, query url.Values) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", path, err)
	}
	u := c.endpoint.ResolveReference(ref)
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

type rawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (c *Client) doRaw(ctx context.Context, method, path string, query url.Values, body any) (*rawResponse, string, error) {
	reqURL, err := c.resolve(path, query)
	if err != nil {
		return nil, "", err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, reqURL, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, reqURL, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, reqURL, fmt.Errorf("request failed: %w", err)
	}
	defer c.closeBody(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, reqURL, fmt.Errorf("failed to read response: %w", err)
	}
	c.logger.Debug("datarobot request", "method", method, "url", reqURL, "status", resp.StatusCode)
	return &rawResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}, reqURL, nil
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (*rawResponse, error) {
	resp, reqURL, err := c.doRaw(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, &APIError{Method: method, URL: reqURL, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	if out != nil && len(bytes.TrimSpace(resp.Body)) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return resp, fmt.Errorf("failed to unmarshal response from %s: %w", reqURL, err)
		}
	}
	return resp, nil
}

// closeBody closes the response body, logging (not failing) on error.
func (c *Client) closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		c.logger.Warn("error closing response body", "error", err)
	}
}

type page[T any] struct {
	Data  []T    `json:"data"`
	Next  string `json:"next"`
	Count int    `json:"count"`
}

// listAll fetches every page of a list endpoint by following its next links.
func listAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var all []T
	next := path
	for next != "" {
		var p page[T]
		if _, err := c.do(ctx, http.MethodGet, next, query, nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Data...)
		next = p.Next
		// next links already carry the query string
		query = nil
	}
	return all, nil
}
