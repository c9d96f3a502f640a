package renderer

import (
	"context"
	"crypto/sha512"
	"fmt"
	"path/filepath"
	"sync"

	yaml "gopkg.in/yaml.v3"
	"sigs.k8s.io/kustomize/api/krusty"
	"sigs.k8s.io/kustomize/kyaml/filesys"
)

// KustomizeRenderer implements Renderer for Kustomize manifests
type KustomizeRenderer struct {
	opts  *Options
	files map[string][]byte // Map to store files where key is the file name and value is the content
	mux   sync.RWMutex      // Mutex to protect concurrent access to files map
}

// NewKustomizeRenderer creates a new KustomizeRenderer
func NewKustomizeRenderer(opts *Options) *KustomizeRenderer {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &KustomizeRenderer{
		opts:  opts,
		files: make(map[string][]byte),
	}
}

// Render builds the kustomization held in the added files. The input is
// the kustomization file itself and is only used as the result name.
func (r *KustomizeRenderer) Render(ctx context.Context, kustomization []byte) (*Result, error) {
	fs := filesys.MakeFsInMemory()

	r.mux.RLock()
	for name, content := range r.files {
		dir := filepath.Dir("/" + name)
		if err := fs.MkdirAll(dir); err != nil {
			r.mux.RUnlock()
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		if err := fs.WriteFile("/"+name, content); err != nil {
			r.mux.RUnlock()
			return nil, fmt.Errorf("failed to write file %s: %w", name, err)
		}
	}
	r.mux.RUnlock()

	k := krusty.MakeKustomizer(
		krusty.MakeDefaultOptions(),
	)

	resources, err := k.Run(fs, "/")
	if err != nil {
		return nil, fmt.Errorf("failed to build resources: %w", err)
	}

	yamlData, err := resources.AsYaml()
	if err != nil {
		return nil, fmt.Errorf("failed to convert resources to yaml: %w", err)
	}

	hash := sha512.Sum512(yamlData)
	result := &Result{
		Version: fmt.Sprintf("sha512:%x", hash),
	}
	if name, ok := kustomizationName(kustomization); ok {
		result.Name = name
	}

	source := ""
	if r.opts.IncludeSource {
		source = "kustomization.yaml"
	}
	manifests, warnings, err := decodeManifests(ctx, yamlData, source, r.opts.ValidateOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	result.Manifests = manifests
	result.Warnings = warnings

	return result, nil
}

// Validate checks if the input can be handled by this renderer
func (r *KustomizeRenderer) Validate(input []byte) error {
	var obj map[string]interface{}
	if err := yaml.Unmarshal(input, &obj); err != nil {
		return fmt.Errorf("%w: invalid yaml", ErrInvalidInput)
	}

	if kind, ok := obj["kind"].(string); !ok || kind != "Kustomization" {
		return fmt.Errorf("%w: not a kustomization file", ErrInvalidInput)
	}

	return nil
}

// SetOptions configures the renderer with the provided options
func (r *KustomizeRenderer) SetOptions(opts *Options) error {
	if opts == nil {
		return fmt.Errorf("options cannot be nil")
	}
	r.opts = opts
	return nil
}

// GetOptions returns the current renderer options
func (r *KustomizeRenderer) GetOptions() *Options {
	return r.opts
}

// AddFile adds a file to the renderer's context in a thread-safe manner
func (r *KustomizeRenderer) AddFile(name string, content []byte) error {
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

func kustomizationName(input []byte) (string, bool) {
	var obj struct {
		Metadata struct {
			Name string `yaml:"name"`
		} `yaml:"metadata"`
	}
	if err := yaml.Unmarshal(input, &obj); err != nil || obj.Metadata.Name == "" {
		return "", false
	}
	return obj.Metadata.Name, true
}
