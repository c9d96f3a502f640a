package resolver

import "testing"

func TestDetectRendererType(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		want     RendererType
		wantMain string
	}{
		{
			name:     "helm chart",
			files:    map[string]string{"Chart.yaml": "name: x", "templates/a.yaml": "a: b"},
			want:     RendererTypeHelm,
			wantMain: "Chart.yaml",
		},
		{
			name:     "kustomize",
			files:    map[string]string{"kustomization.yml": "kind: Kustomization"},
			want:     RendererTypeKustomize,
			wantMain: "kustomization.yml",
		},
		{
			name:  "plain yaml",
			files: map[string]string{"01-a.yaml": "a: b"},
			want:  RendererTypeYAML,
		},
		{
			name:  "directory named like a chart file",
			files: map[string]string{"Chart.yaml/inner.yaml": "a: b"},
			want:  RendererTypeYAML,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := createTempDir(t, tt.files)
			got, main, err := DetectRendererType(dir)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("DetectRendererType() = %v, want %v", got, tt.want)
			}
			if main != tt.wantMain {
				t.Errorf("DetectRendererType() main = %q, want %q", main, tt.wantMain)
			}
		})
	}
}

func TestGetRendererForType(t *testing.T) {
	for _, typ := range []RendererType{RendererTypeYAML, RendererTypeHelm, RendererTypeKustomize} {
		if r, err := GetRendererForType(typ, nil); err != nil || r == nil {
			t.Errorf("GetRendererForType(%v) = %v, %v", typ, r, err)
		}
	}
	if _, err := GetRendererForType(RendererType(42), nil); err == nil {
		t.Error("expected error for unknown renderer type")
	}
}
