package renderer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestHelmRenderer(t *testing.T) {
	chartFile := []byte(`apiVersion: v2
name: quay-bootstrap
version: 0.1.0`)

	tests := []struct {
		name      string
		files     map[string][]byte
		values    string
		wantErr   bool
		wantNames []string
	}{
		{
			name: "templates rendered in path order",
			files: map[string][]byte{
				"Chart.yaml":  chartFile,
				"values.yaml": []byte("namespace: quay\n"),
				"templates/02-registry.yaml": []byte(`apiVersion: quay.redhat.com/v1
kind: QuayRegistry
metadata:
  name: registry
  namespace: {{ .Values.namespace }}`),
				"templates/01-namespace.yaml": []byte(`apiVersion: v1
kind: Namespace
metadata:
  name: {{ .Values.namespace }}`),
				"templates/NOTES.txt": []byte("installed"),
			},
			wantNames: []string{"quay", "registry"},
		},
		{
			name: "values file overrides defaults",
			files: map[string][]byte{
				"Chart.yaml":  chartFile,
				"values.yaml": []byte("namespace: quay\n"),
				"templates/namespace.yaml": []byte(`apiVersion: v1
kind: Namespace
metadata:
  name: {{ .Values.namespace }}`),
			},
			values:    "namespace: registry-dr\n",
			wantNames: []string{"registry-dr"},
		},
		{
			name:    "invalid chart",
			files:   map[string][]byte{"invalid.yaml": []byte("not a helm chart")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			if tt.values != "" {
				opts.Values = filepath.Join(t.TempDir(), "values.yaml")
				if err := os.WriteFile(opts.Values, []byte(tt.values), 0600); err != nil {
					t.Fatal(err)
				}
			}
			r := NewHelmRenderer(opts)

			for name, content := range tt.files {
				if err := r.AddFile(name, content); err != nil {
					t.Fatalf("failed to add file %s: %v", name, err)
				}
			}

			err := r.Validate(nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HelmRenderer.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			result, err := r.Render(context.Background(), nil)
			if err != nil {
				t.Fatalf("HelmRenderer.Render() error = %v", err)
			}
			if result.Name != "quay-bootstrap" {
				t.Errorf("expected chart name quay-bootstrap, got %s", result.Name)
			}

			if len(result.Manifests) != len(tt.wantNames) {
				t.Fatalf("expected %d manifests, got %d", len(tt.wantNames), len(result.Manifests))
			}
			for i, m := range result.Manifests {
				if m.Name != tt.wantNames[i] {
					t.Errorf("manifest %d: expected %s, got %s", i, tt.wantNames[i], m.Name)
				}
			}
		})
	}
}

func TestHelmRenderer_Errors(t *testing.T) {
	r := NewHelmRenderer(DefaultOptions())

	if err := r.AddFile("", []byte("content")); err == nil {
		t.Error("expected error for empty file name")
	}
	if err := r.AddFile("file.yaml", nil); err == nil {
		t.Error("expected error for nil file content")
	}
	if err := r.SetOptions(nil); err == nil {
		t.Error("expected error when setting nil options")
	}
	if err := r.Validate(nil); err == nil {
		t.Error("expected error validating an empty chart")
	}
}
