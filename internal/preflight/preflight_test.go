package preflight

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver map[string][]string

func (f fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	if addrs, ok := f[host]; ok {
		return addrs, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

type fakeDialer struct {
	open   map[string]bool
	dialed []string
}

func (f *fakeDialer) DialContext(_ context.Context, _, address string) (net.Conn, error) {
	f.dialed = append(f.dialed, address)
	if !f.open[address] {
		return nil, errors.New("connection refused")
	}
	client, server := net.Pipe()
	_ = server.Close()
	return client, nil
}

func TestSplitServer(t *testing.T) {
	tests := []struct {
		server   string
		wantHost string
		wantPort string
	}{
		{"quay.example.com", "quay.example.com", "443"},
		{"https://quay.example.com/", "quay.example.com", "443"},
		{"https://quay.example.com:8443/api", "quay.example.com", "8443"},
		{"10.0.0.5:5000", "10.0.0.5", "5000"},
	}
	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			host, port := SplitServer(tt.server)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}

func TestCheck(t *testing.T) {
	resolver := fakeResolver{
		"primary.example":   {"10.0.0.1"},
		"secondary.example": {"10.0.0.2"},
	}

	tests := []struct {
		name      string
		server    string
		open      map[string]bool
		wantStage Stage
	}{
		{name: "reachable", server: "https://primary.example", open: map[string]bool{"primary.example:443": true}},
		{name: "unresolvable", server: "missing.example", wantStage: StageDNS},
		{name: "port closed", server: "secondary.example:8443", open: map[string]bool{"secondary.example:443": true}, wantStage: StageTCP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer := &fakeDialer{open: tt.open}
			c := New(WithResolver(resolver), WithDialer(dialer))

			err := c.Check(context.Background(), tt.server)
			if tt.wantStage == "" {
				require.NoError(t, err)
				return
			}
			var pfErr *Error
			require.ErrorAs(t, err, &pfErr)
			assert.Equal(t, tt.wantStage, pfErr.Stage)
			if tt.wantStage == StageDNS {
				assert.Empty(t, dialer.dialed)
			}
		})
	}
}

func TestCheckAll(t *testing.T) {
	resolver := fakeResolver{"primary.example": {"10.0.0.1"}, "secondary.example": {"10.0.0.2"}}

	c := New(WithResolver(resolver), WithDialer(&fakeDialer{open: map[string]bool{
		"primary.example:443":   true,
		"secondary.example:443": true,
	}}))
	require.NoError(t, c.CheckAll(context.Background(), "primary.example", "secondary.example"))

	c = New(WithResolver(resolver), WithDialer(&fakeDialer{open: map[string]bool{"primary.example:443": true}}))
	err := c.CheckAll(context.Background(), "primary.example", "secondary.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secondary.example")
}

func TestCheckLocalListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	addr := ln.Addr().String()
	c := New()
	require.NoError(t, c.Check(context.Background(), "https://"+addr))

	require.NoError(t, ln.Close())
	err = c.Check(context.Background(), addr)
	var pfErr *Error
	require.ErrorAs(t, err, &pfErr)
	assert.Equal(t, StageTCP, pfErr.Stage)
}
