// Package quay is a client for the Quay registry management API.
package quay

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alevsk/quay-ops/internal/logger"
)

const (
	apiPrefix      = "/api/v1"
	userAgent      = "quay-ops/1.0"
	defaultTimeout = 30 * time.Second
	// maxErrorBody bounds how much of an error response is kept
	maxErrorBody = 4096
)

// ErrNoServer is returned by New when no server is configured
var ErrNoServer = errors.New("registry server is not set")

// APIError is a non-2xx answer of the management API
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is an APIError with status 404
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is an APIError with status 401 or 403
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized) || hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Client talks to one registry instance
type Client struct {
	baseURL    *url.URL
	token      string
	username   string
	password   string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithToken sets the OAuth token sent as a bearer token
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithBasicAuth authenticates with the account password. It is used
// before an OAuth token exists and is ignored once a token is set.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithInsecureSkipVerify disables certificate verification
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Client) {
		if !skip {
			return
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // requested by skip_tls_verify
		c.httpClient = &http.Client{Timeout: defaultTimeout, Transport: transport}
	}
}

// New creates a client for server. A server without a scheme is reached
// over https.
func New(server string, opts ...Option) (*Client, error) {
	server = strings.TrimSuffix(strings.TrimSpace(server), "/")
	if server == "" {
		return nil, ErrNoServer
	}
	if !strings.Contains(server, "://") {
		server = "https://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("invalid registry server %q: %w", server, err)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Host returns the registry host, as used in image references
func (c *Client) Host() string {
	return c.baseURL.Host
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + apiPrefix + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends one request. in, when set, is sent as JSON; out, when set,
// receives the decoded response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	return c.send(ctx, method, path, query, in, out, true)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, in, out interface{}, auth bool) error {
	target := c.endpoint(path, query)

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case !auth:
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}

	logger.Debug().Str("method", method).Str("url", target).Msg("registry api request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		event := logger.Warn()
		if resp.StatusCode == http.StatusNotFound {
			event = logger.Debug()
		}
		event.Str("method", method).Str("url", target).Int("status", resp.StatusCode).Str("body", apiErr.Body).Msg("registry api error")
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding %s %s: %w", method, target, err)
	}
	return nil
}
