// Package resolver finds manifest sources (a file, a URL, an ordered
// folder of files, a kustomize directory or a helm chart) and renders them.
package resolver

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alevsk/quay-ops/internal/renderer"
)

// Options configures how sources are resolved
type Options struct {
	// FollowSymlinks determines if symlinks should be followed during directory traversal
	FollowSymlinks bool
	// ValidateYAML requires apiVersion, kind and metadata.name on every document
	ValidateYAML bool
	// Namespace and Values are passed to the helm renderer
	Namespace string
	Values    string
}

// DefaultOptions returns the default resolver options
func DefaultOptions() *Options {
	return &Options{ValidateYAML: true}
}

func (o *Options) rendererOptions() *renderer.Options {
	opts := renderer.DefaultOptions()
	if o == nil {
		return opts
	}
	opts.ValidateOutput = o.ValidateYAML
	if o.Namespace != "" {
		opts.Namespace = o.Namespace
	}
	opts.Values = o.Values
	return opts
}

// String returns the string representation of a SourceType
func (st SourceType) String() string {
	switch st {
	case SourceTypeFile:
		return "file"
	case SourceTypeRemote:
		return "remote"
	case SourceTypeFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// SourceResolver defines the interface that all source resolvers must implement
type SourceResolver interface {
	// CanResolve checks if this resolver can handle the given source
	CanResolve(source string) bool

	// Resolve reads the source and returns its manifests in source order
	Resolve(ctx context.Context) (*renderer.Result, *ResolverMetadata, error)
}

// ResolverFactory creates the appropriate resolver for a given source
func ResolverFactory(source string, opts *Options) (SourceResolver, error) {
	if source == "" {
		return nil, fmt.Errorf("empty source")
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return NewRemoteYAMLResolver(source, opts, nil)
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("failed to access source %s: %w", source, err)
	}
	if info.IsDir() {
		return NewFolderResolver(source, opts), nil
	}

	r := NewLocalYAMLResolver(source, opts)
	if !r.CanResolve(source) {
		return nil, fmt.Errorf("unsupported source %s: expected a .yaml/.yml file or a directory", source)
	}
	return r, nil
}
