package renderer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/chartutil"
	"helm.sh/helm/v3/pkg/engine"
)

// HelmRenderer implements Renderer for Helm charts. A chart is either the
// packaged archive passed to Render or the chart files added with AddFile.
type HelmRenderer struct {
	opts  *Options
	files map[string][]byte
	mux   sync.RWMutex
}

// NewHelmRenderer creates a new HelmRenderer
func NewHelmRenderer(opts *Options) *HelmRenderer {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HelmRenderer{
		opts:  opts,
		files: make(map[string][]byte),
	}
}

// Validate checks if the input (or the added files) form a loadable chart
func (r *HelmRenderer) Validate(input []byte) error {
	if _, err := r.load(input); err != nil {
		return fmt.Errorf("invalid helm chart: %w", err)
	}
	return nil
}

func (r *HelmRenderer) load(input []byte) (*chart.Chart, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()

	if len(r.files) == 0 {
		if len(input) == 0 {
			return nil, ErrInvalidInput
		}
		return loader.LoadArchive(bytes.NewReader(input))
	}

	names := make([]string, 0, len(r.files))
	for name := range r.files {
		names = append(names, name)
	}
	sort.Strings(names)

	files := make([]*loader.BufferedFile, 0, len(names))
	for _, name := range names {
		files = append(files, &loader.BufferedFile{Name: path.Clean(strings.ReplaceAll(name, "\\", "/")), Data: r.files[name]})
	}
	return loader.LoadFiles(files)
}

// Render processes a Helm chart and returns the rendered manifests. Templates
// are emitted in lexical order of their path.
func (r *HelmRenderer) Render(ctx context.Context, input []byte) (*Result, error) {
	chrt, err := r.load(input)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart: %w", err)
	}

	values := map[string]interface{}{}
	if r.opts.Values != "" {
		values, err = chartutil.ReadValuesFile(r.opts.Values)
		if err != nil {
			return nil, fmt.Errorf("failed to read values %s: %w", r.opts.Values, err)
		}
	}

	namespace := r.opts.Namespace
	if namespace == "" {
		namespace = "default"
	}
	options := chartutil.ReleaseOptions{
		Name:      chrt.Name(),
		Namespace: namespace,
		Revision:  1,
		IsInstall: true,
	}

	valuesToRender, err := chartutil.ToRenderValues(chrt, values, options, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart values: %w", err)
	}

	renderer := engine.Engine{
		LintMode: false,
		Strict:   true,
	}

	rendered, err := renderer.Render(chrt, valuesToRender)
	if err != nil {
		return nil, fmt.Errorf("failed to render templates: %w", err)
	}

	names := make([]string, 0, len(rendered))
	for name := range rendered {
		ext := strings.ToLower(path.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	result := &Result{
		Name:      chrt.Name(),
		Version:   chrt.Metadata.Version,
		Manifests: make([]*Manifest, 0),
		Warnings:  make([]string, 0),
	}

	for _, name := range names {
		content := rendered[name]
		if strings.TrimSpace(content) == "" {
			continue
		}

		source := ""
		if r.opts.IncludeSource {
			source = name
		}
		manifests, warnings, err := decodeManifests(ctx, []byte(content), source, r.opts.ValidateOutput)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		result.Manifests = append(result.Manifests, manifests...)
		result.Warnings = append(result.Warnings, warnings...)
	}

	return result, nil
}

// SetOptions configures the renderer with the provided options
func (r *HelmRenderer) SetOptions(opts *Options) error {
	if opts == nil {
		return fmt.Errorf("options cannot be nil")
	}
	r.opts = opts
	return nil
}

// GetOptions returns the current renderer options
func (r *HelmRenderer) GetOptions() *Options {
	return r.opts
}

// AddFile adds a chart file, named relative to the chart root
func (r *HelmRenderer) AddFile(name string, content []byte) error {
	if name == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if content == nil {
		return fmt.Errorf("file content cannot be nil")
	}
	r.mux.Lock()
	defer r.mux.Unlock()
	r.files[name] = content
	return nil
}
