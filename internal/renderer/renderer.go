// Package renderer turns manifest sources (plain YAML, kustomize
// directories and helm charts) into ordered cluster object definitions.
package renderer

import (
	"context"
	"fmt"

	"github.com/alevsk/quay-ops/internal/types"
)

// Options contains configuration options for renderers
type Options struct {
	// ValidateOutput requires every document to carry apiVersion, kind and
	// metadata.name
	ValidateOutput bool
	// IncludeSource records the originating file on each manifest
	IncludeSource bool
	// Namespace is the release namespace used when rendering a helm chart
	Namespace string
	// Values is a path to a values.yaml file used for rendering a helm chart
	Values string
}

// DefaultOptions returns a new Options with default values
func DefaultOptions() *Options {
	return &Options{
		ValidateOutput: true,
		IncludeSource:  true,
		Namespace:      "default",
	}
}

// Result is an alias for types.Result
type Result = types.Result

// Manifest is an alias for types.Manifest
type Manifest = types.Manifest

// Error types for the renderer package
var (
	ErrInvalidInput     = fmt.Errorf("invalid input")
	ErrInvalidFormat    = fmt.Errorf("invalid format")
	ErrValidationFailed = fmt.Errorf("validation failed")
)

// Renderer defines the interface for manifest renderers.
// Implementations convert their input into manifests in the order the
// source defines them.
type Renderer interface {
	// Render processes the input data and returns rendered manifests.
	// The context can be used to cancel long-running render operations.
	Render(ctx context.Context, input []byte) (*Result, error)

	// Validate checks if the input can be handled by this renderer.
	Validate(input []byte) error

	// SetOptions configures the renderer with the provided options.
	// Invalid options will return an error and leave the configuration unchanged.
	SetOptions(opts *Options) error

	// GetOptions returns the current renderer options.
	GetOptions() *Options

	// AddFile adds a file to the renderer's context
	AddFile(name string, content []byte) error
}
