package resolver

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alevsk/quay-ops/internal/renderer"
)

// FolderResolver implements SourceResolver for directories. A directory
// holding a Chart.yaml or kustomization.yaml is rendered as a whole;
// otherwise every YAML file is rendered in lexical path order, so numeric
// filename prefixes decide the apply order.
type FolderResolver struct {
	source string
	opts   *Options
}

// NewFolderResolver creates a new FolderResolver
func NewFolderResolver(source string, opts *Options) *FolderResolver {
	return &FolderResolver{
		source: source,
		opts:   opts,
	}
}

// CanResolve checks if this resolver can handle the given source
func (r *FolderResolver) CanResolve(source string) bool {
	info, err := os.Stat(source)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// yamlFile represents a YAML file found in the directory
type yamlFile struct {
	path     string
	relPath  string
	size     int64
	contents []byte
}

// Resolve processes the source directory and returns the rendered manifests
func (r *FolderResolver) Resolve(ctx context.Context) (*renderer.Result, *ResolverMetadata, error) {
	info, err := os.Stat(r.source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("not a directory: %s", r.source)
	}

	rendererType, mainFile, err := DetectRendererType(r.source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to detect renderer type: %w", err)
	}

	rndr, err := GetRendererForType(rendererType, r.opts.rendererOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get renderer: %w", err)
	}

	// Helm charts and kustomizations need every file, not only YAML
	allFiles := rendererType != RendererTypeYAML
	files, err := r.collect(ctx, allFiles)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no YAML files found in directory %s", r.source)
	}

	var totalSize int64
	var main []byte
	for _, f := range files {
		if err := rndr.AddFile(f.relPath, f.contents); err != nil {
			return nil, nil, fmt.Errorf("failed to add file %s: %w", f.relPath, err)
		}
		if f.relPath == mainFile {
			main = f.contents
		}
		totalSize += f.size
	}

	result, err := rndr.Render(ctx, main)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render %s: %w", r.source, err)
	}
	result.Source = r.source

	return result, &ResolverMetadata{
		Name:         result.Name,
		Version:      result.Version,
		Type:         SourceTypeFolder,
		RendererType: rendererType,
		Path:         r.source,
		Size:         totalSize,
		ModTime:      time.Now(),
		Extra: map[string]interface{}{
			"manifests": len(result.Manifests),
			"warnings":  result.Warnings,
		},
	}, nil
}

// collect walks the directory in lexical order. Symlinks are followed when
// enabled, visiting each target once.
func (r *FolderResolver) collect(ctx context.Context, allFiles bool) ([]yamlFile, error) {
	var files []yamlFile
	visited := make(map[string]bool)

	var walk func(root, relBase string) error
	walk = func(root, relBase string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return fmt.Errorf("failed to get relative path for %s: %w", path, err)
			}
			rel = filepath.ToSlash(filepath.Join(relBase, rel))

			if d.Type()&os.ModeSymlink != 0 {
				if r.opts == nil || !r.opts.FollowSymlinks {
					return nil
				}
				target, err := filepath.EvalSymlinks(path)
				if err != nil {
					return fmt.Errorf("failed to evaluate symlink %s: %w", path, err)
				}
				if visited[target] {
					return nil
				}
				visited[target] = true
				targetInfo, err := os.Stat(target)
				if err != nil {
					return fmt.Errorf("failed to stat symlink target %s: %w", target, err)
				}
				if targetInfo.IsDir() {
					return walk(target, rel)
				}
				return r.addFile(&files, target, rel, allFiles)
			}

			if d.IsDir() {
				return nil
			}
			return r.addFile(&files, path, rel, allFiles)
		})
	}

	if err := walk(r.source, ""); err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	return files, nil
}

func (r *FolderResolver) addFile(files *[]yamlFile, path, rel string, allFiles bool) error {
	ext := strings.ToLower(filepath.Ext(path))
	isYAML := ext == ".yaml" || ext == ".yml"
	if !allFiles && !isYAML {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}
	if isYAML && !allFiles && !isValidYAML(string(contents)) {
		return nil
	}

	*files = append(*files, yamlFile{
		path:     path,
		relPath:  rel,
		size:     info.Size(),
		contents: contents,
	})
	return nil
}
