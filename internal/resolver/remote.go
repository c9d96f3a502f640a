package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/alevsk/quay-ops/internal/renderer"
)

// defaultHTTPClient is the default HTTP client used by RemoteYAMLResolver
// This can be overridden for testing
var defaultHTTPClient = &http.Client{
	Timeout: defaultHTTPTimeout,
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("too many redirects")
		}
		return nil
	},
}

// Default timeout for HTTP requests
const defaultHTTPTimeout = 30 * time.Second

// RemoteYAMLResolver implements SourceResolver for a YAML file served over HTTP/HTTPS
type RemoteYAMLResolver struct {
	source string
	opts   *Options
	client *http.Client
}

// isValidURL checks if a string is a valid URL
func isValidURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// NewRemoteYAMLResolver creates a new RemoteYAMLResolver
func NewRemoteYAMLResolver(source string, opts *Options, client *http.Client) (*RemoteYAMLResolver, error) {
	if !isValidURL(source) {
		return nil, fmt.Errorf("invalid URL: %s", source)
	}
	if client == nil {
		client = defaultHTTPClient
	}

	r := &RemoteYAMLResolver{
		source: source,
		opts:   opts,
		client: client,
	}
	if !r.CanResolve(source) {
		return nil, fmt.Errorf("URL does not point to a YAML file: %s", source)
	}
	return r, nil
}

// CanResolve checks if this resolver can handle the given source
func (r *RemoteYAMLResolver) CanResolve(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	ext := strings.ToLower(path.Ext(u.Path))
	return ext == ".yaml" || ext == ".yml"
}

// Resolve processes the source and returns the rendered manifests
func (r *RemoteYAMLResolver) Resolve(ctx context.Context) (*renderer.Result, *ResolverMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.source, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/yaml,text/yaml,text/plain")
	req.Header.Set("User-Agent", "quay-ops/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("HTTP request failed with status: %s", resp.Status)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	rndr := newYAMLRenderer(r.opts)
	if err := rndr.AddFile(r.source, content); err != nil {
		return nil, nil, err
	}
	result, err := rndr.Render(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	result.Source = r.source

	return result, &ResolverMetadata{
		Name:    result.Name,
		Version: result.Version,
		Type:    SourceTypeRemote,
		Path:    r.source,
		Size:    int64(len(content)),
		ModTime: time.Now(),
		Extra: map[string]interface{}{
			"manifests": len(result.Manifests),
			"warnings":  result.Warnings,
		},
	}, nil
}
