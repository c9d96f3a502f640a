package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripScheme(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://quay.example.com", "quay.example.com"},
		{"http://quay.example.com:8080/org/app:v1", "quay.example.com:8080/org/app:v1"},
		{"quay.example.com/org/app:v1", "quay.example.com/org/app:v1"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, StripScheme(tt.in))
		})
	}
}

func TestHost(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"r1.example/a/b:v1", "r1.example"},
		{"https://r1.example/a/b:v1", "r1.example"},
		{"127.0.0.1:5000/a/b:v1", "127.0.0.1:5000"},
		{"library/busybox:latest", "index.docker.io"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, Host(tt.ref))
		})
	}
}

func TestReference(t *testing.T) {
	assert.Equal(t, "r2.example/team1/app:v1", Reference("https://r2.example/", "team1/app", "v1"))
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(EngineRegistry, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Registry{}, engine)

	_, err = NewEngine("podman", Options{})
	assert.Error(t, err)
}

func TestRegistryHost(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"quay.example.com", "quay.example.com"},
		{"https://quay.example.com/", "quay.example.com"},
		{"http://127.0.0.1:8080", "127.0.0.1:8080"},
		{"docker.io", "index.docker.io"},
	}
	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			assert.Equal(t, tt.want, RegistryHost(tt.server))
		})
	}
}
