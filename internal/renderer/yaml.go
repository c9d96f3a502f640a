package renderer

import (
	"bytes"
	"context"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"
	"sync"

	yaml "gopkg.in/yaml.v3"
)

// YAMLRenderer implements the Renderer interface for YAML/JSON files.
// Files added with AddFile are rendered in the order they were added,
// followed by the input passed to Render.
type YAMLRenderer struct {
	opts  *Options
	files []namedFile
	mux   sync.Mutex
}

type namedFile struct {
	name    string
	content []byte
}

// NewYAMLRenderer creates a new YAMLRenderer with default options
func NewYAMLRenderer() *YAMLRenderer {
	return &YAMLRenderer{
		opts: DefaultOptions(),
	}
}

// Render processes YAML input and returns the manifests it defines
func (r *YAMLRenderer) Render(ctx context.Context, input []byte) (*Result, error) {
	r.mux.Lock()
	files := append([]namedFile(nil), r.files...)
	r.mux.Unlock()
	if len(input) > 0 {
		files = append(files, namedFile{content: input})
	}
	if len(files) == 0 {
		return nil, ErrInvalidInput
	}

	hash := sha512.New()
	result := &Result{
		Manifests: make([]*Manifest, 0),
	}

	for _, f := range files {
		if err := r.Validate(f.content); err != nil {
			return nil, fmt.Errorf("%s: validation failed: %w", f.name, err)
		}
		hash.Write(f.content)

		source := ""
		if r.opts.IncludeSource {
			source = f.name
		}
		manifests, warnings, err := decodeManifests(ctx, f.content, source, r.opts.ValidateOutput)
		if err != nil {
			return nil, err
		}
		result.Manifests = append(result.Manifests, manifests...)
		result.Warnings = append(result.Warnings, warnings...)
	}

	result.Version = fmt.Sprintf("sha512:%x", hash.Sum(nil))
	return result, nil
}

// Validate checks if the input is valid YAML
func (r *YAMLRenderer) Validate(input []byte) error {
	if len(input) == 0 {
		return ErrInvalidInput
	}

	decoder := yaml.NewDecoder(bytes.NewReader(input))
	docCount := 0

	for {
		var obj interface{}
		err := decoder.Decode(&obj)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}

		switch v := obj.(type) {
		case map[string]interface{}:
			docCount++
		case nil:
			// empty document between separators
		default:
			return fmt.Errorf("%w: document must be a YAML map, got %T", ErrInvalidFormat, v)
		}
	}

	if docCount == 0 {
		return fmt.Errorf("%w: no valid YAML documents found", ErrInvalidFormat)
	}

	return nil
}

// SetOptions configures the renderer with the provided options
func (r *YAMLRenderer) SetOptions(opts *Options) error {
	if opts == nil {
		return ErrInvalidInput
	}
	r.opts = opts
	return nil
}

// GetOptions returns the current renderer options
func (r *YAMLRenderer) GetOptions() *Options {
	return r.opts
}

// AddFile queues a file for rendering
func (r *YAMLRenderer) AddFile(name string, content []byte) error {
	if name == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if content == nil {
		return fmt.Errorf("file content cannot be nil")
	}
	r.mux.Lock()
	defer r.mux.Unlock()
	r.files = append(r.files, namedFile{name: name, content: content})
	return nil
}
