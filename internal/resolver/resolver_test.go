package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestResolverFactory(t *testing.T) {
	dir := createTempDir(t, map[string]string{
		"a.yaml": manifestDoc("Namespace", "quay"),
		"b.txt":  "text",
	})

	tests := []struct {
		name    string
		source  string
		want    string
		wantErr bool
	}{
		{name: "empty", source: "", wantErr: true},
		{name: "folder", source: dir, want: "*resolver.FolderResolver"},
		{name: "file", source: filepath.Join(dir, "a.yaml"), want: "*resolver.LocalYAMLResolver"},
		{name: "unsupported file", source: filepath.Join(dir, "b.txt"), wantErr: true},
		{name: "missing", source: filepath.Join(dir, "missing.yaml"), wantErr: true},
		{name: "remote", source: "https://example.com/manifests.yaml", want: "*resolver.RemoteYAMLResolver"},
		{name: "remote non yaml", source: "https://example.com/manifests.txt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ResolverFactory(tt.source, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolverFactory() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := typeName(r); got != tt.want {
				t.Errorf("ResolverFactory() = %s, want %s", got, tt.want)
			}
		})
	}
}

func typeName(r SourceResolver) string {
	switch r.(type) {
	case *FolderResolver:
		return "*resolver.FolderResolver"
	case *LocalYAMLResolver:
		return "*resolver.LocalYAMLResolver"
	case *RemoteYAMLResolver:
		return "*resolver.RemoteYAMLResolver"
	default:
		return "unknown"
	}
}

func TestLocalYAMLResolver(t *testing.T) {
	dir := createTempDir(t, map[string]string{
		"manifests.yaml": manifestDoc("Namespace", "quay") + "---\n" + manifestDoc("Secret", "init"),
		"broken.yaml":    "kind: [",
	})

	r := NewLocalYAMLResolver(filepath.Join(dir, "manifests.yaml"), DefaultOptions())
	result, meta, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Manifests) != 2 || result.Manifests[1].Kind != "Secret" {
		t.Errorf("unexpected manifests %v", result.Manifests)
	}
	if meta.Type != SourceTypeFile || meta.Type.String() != "file" {
		t.Errorf("unexpected metadata type %v", meta.Type)
	}

	// resolving twice yields the same manifests
	again, _, err := r.Resolve(context.Background())
	if err != nil || len(again.Manifests) != 2 {
		t.Errorf("second resolve returned %v, %v", again, err)
	}

	if _, _, err := NewLocalYAMLResolver(filepath.Join(dir, "broken.yaml"), nil).Resolve(context.Background()); err == nil {
		t.Error("expected error for broken YAML")
	}
}

func TestRemoteYAMLResolver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.yaml":
			_, _ = w.Write([]byte(manifestDoc("Namespace", "quay")))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	r, err := NewRemoteYAMLResolver(server.URL+"/ok.yaml", nil, server.Client())
	if err != nil {
		t.Fatal(err)
	}
	result, meta, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Manifests) != 1 || meta.Type != SourceTypeRemote {
		t.Errorf("unexpected result %v %+v", result.Manifests, meta)
	}

	missing, err := NewRemoteYAMLResolver(server.URL+"/missing.yaml", nil, server.Client())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := missing.Resolve(context.Background()); err == nil {
		t.Error("expected error for 404")
	}

	if _, err := NewRemoteYAMLResolver("not-a-url", nil, nil); err == nil {
		t.Error("expected error for invalid URL")
	}
}
