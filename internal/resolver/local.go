package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alevsk/quay-ops/internal/renderer"
)

// LocalYAMLResolver implements SourceResolver for local YAML files
type LocalYAMLResolver struct {
	source string
	opts   *Options
}

// NewLocalYAMLResolver creates a new LocalYAMLResolver
func NewLocalYAMLResolver(source string, opts *Options) *LocalYAMLResolver {
	return &LocalYAMLResolver{
		source: source,
		opts:   opts,
	}
}

func newYAMLRenderer(opts *Options) renderer.Renderer {
	r := renderer.NewYAMLRenderer()
	// SetOptions only rejects nil
	_ = r.SetOptions(opts.rendererOptions())
	return r
}

// CanResolve checks if this resolver can handle the given source
func (r *LocalYAMLResolver) CanResolve(source string) bool {
	if _, err := os.Stat(source); err != nil {
		return false
	}

	ext := strings.ToLower(filepath.Ext(source))
	return ext == ".yaml" || ext == ".yml"
}

// Resolve processes the source and returns the rendered manifests
func (r *LocalYAMLResolver) Resolve(ctx context.Context) (*renderer.Result, *ResolverMetadata, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}

	info, err := os.Stat(r.source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, nil, fmt.Errorf("not a regular file: %s", r.source)
	}

	content, err := os.ReadFile(r.source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}

	rndr := newYAMLRenderer(r.opts)
	if err := rndr.AddFile(filepath.Base(r.source), content); err != nil {
		return nil, nil, err
	}
	result, err := rndr.Render(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	result.Source = r.source

	return result, &ResolverMetadata{
		Name:    r.source,
		Version: result.Version,
		Type:    SourceTypeFile,
		Path:    r.source,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Extra: map[string]interface{}{
			"manifests": len(result.Manifests),
			"warnings":  result.Warnings,
		},
	}, nil
}

// isValidYAML performs basic YAML validation
// This is a simple check for common YAML markers
func isValidYAML(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false
	}

	hasMarker := strings.Contains(trimmed, ":") || // key-value pairs
		strings.Contains(trimmed, "- ") || // array items
		strings.Contains(trimmed, "---") // document separator

	return hasMarker
}
