// Package ingestor loads the ordered manifest list for a rollout
package ingestor

import (
	"context"
	"fmt"
	"time"

	"github.com/alevsk/quay-ops/internal/logger"
	"github.com/alevsk/quay-ops/internal/resolver"
	"github.com/alevsk/quay-ops/internal/types"
)

// Options holds configuration for the ingestor
type Options struct {
	// FollowSymlinks determines if symlinks should be followed during directory traversal
	FollowSymlinks bool
	// ValidateYAML enables strict manifest validation during ingestion
	ValidateYAML bool
	// Namespace and Values are used when the source is a helm chart
	Namespace string
	Values    string
}

// DefaultOptions returns the default ingestor options
func DefaultOptions() *Options {
	return &Options{
		FollowSymlinks: false,
		ValidateYAML:   true,
	}
}

// Ingestor reads manifest sources
type Ingestor struct {
	opts *Options
}

// New creates a new Ingestor with the given options
func New(opts *Options) *Ingestor {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Ingestor{
		opts: opts,
	}
}

// Error types for ingestion operations
var (
	ErrInvalidSource = fmt.Errorf("invalid source")
	ErrNoManifests   = fmt.Errorf("no manifests found")
)

// Result represents the outcome of an ingestion operation
type Result struct {
	Source    string
	Renderer  string
	Manifests []*types.Manifest
	Warnings  []string
	Timestamp int64
}

// Ingest resolves the source and returns its manifests in apply order
func (i *Ingestor) Ingest(ctx context.Context, source string) (*Result, error) {
	if source == "" {
		return nil, ErrInvalidSource
	}

	opts := &resolver.Options{
		ValidateYAML:   i.opts.ValidateYAML,
		FollowSymlinks: i.opts.FollowSymlinks,
		Namespace:      i.opts.Namespace,
		Values:         i.opts.Values,
	}
	r, err := resolver.ResolverFactory(source, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	rendered, metadata, err := r.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if len(rendered.Manifests) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoManifests, source)
	}

	for _, w := range rendered.Warnings {
		logger.Warn().Str("source", source).Msg(w)
	}
	logger.Debug().
		Str("source", metadata.Path).
		Str("renderer", metadata.RendererType.String()).
		Int("manifests", len(rendered.Manifests)).
		Msg("manifests loaded")

	return &Result{
		Source:    metadata.Path,
		Renderer:  metadata.RendererType.String(),
		Manifests: rendered.Manifests,
		Warnings:  rendered.Warnings,
		Timestamp: time.Now().Unix(),
	}, nil
}
