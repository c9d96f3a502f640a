package renderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	yaml "gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	sigsyaml "sigs.k8s.io/yaml"
)

// decodeManifests splits a multi-document YAML stream into manifests,
// keeping document order. Documents that cannot be decoded become warnings.
func decodeManifests(ctx context.Context, input []byte, source string, validate bool) ([]*Manifest, []string, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(input))
	manifests := make([]*Manifest, 0)
	var warnings []string

	for docNum := 1; ; docNum++ {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		var obj map[string]interface{}
		err := decoder.Decode(&obj)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s document %d: %v", ErrInvalidFormat, source, docNum, err)
		}

		// Skip empty documents
		if len(obj) == 0 {
			continue
		}

		if validate {
			if err := validateObject(obj); err != nil {
				return nil, nil, fmt.Errorf("%s document %d: %w", source, docNum, err)
			}
		}

		raw, err := yaml.Marshal(obj)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s document %d: failed to encode: %v", source, docNum, err))
			continue
		}

		manifest, err := manifestFromYAML(raw, source)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s document %d: %v", source, docNum, err))
			continue
		}
		manifests = append(manifests, manifest)
	}

	return manifests, warnings, nil
}

// manifestFromYAML builds a manifest from a single YAML document. Going
// through JSON gives unstructured content its usual int64/float64 numbers.
func manifestFromYAML(raw []byte, source string) (*Manifest, error) {
	data, err := sigsyaml.YAMLToJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to JSON: %w", err)
	}

	obj := &unstructured.Unstructured{}
	if err := obj.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("failed to decode object: %w", err)
	}

	manifest := &Manifest{
		Kind:       obj.GetKind(),
		APIVersion: obj.GetAPIVersion(),
		Name:       obj.GetName(),
		Namespace:  obj.GetNamespace(),
		Source:     source,
		Raw:        raw,
		Object:     obj,
	}
	if replicas, found, err := unstructured.NestedInt64(obj.Object, "spec", "replicas"); err == nil && found {
		r := int(replicas)
		manifest.Replicas = &r
	}
	return manifest, nil
}

func validateObject(obj map[string]interface{}) error {
	for _, field := range []string{"apiVersion", "kind", "metadata"} {
		if _, ok := obj[field]; !ok {
			return fmt.Errorf("missing required field '%s': %w", field, ErrValidationFailed)
		}
	}

	metadata, ok := obj["metadata"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid metadata structure: %w", ErrValidationFailed)
	}
	if name, ok := metadata["name"].(string); !ok || name == "" {
		return fmt.Errorf("missing or invalid metadata.name: %w", ErrValidationFailed)
	}
	return nil
}
