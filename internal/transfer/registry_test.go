package transfer

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-containerregistry/pkg/name"
	ggcrregistry "github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(ggcrregistry.New())
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestRegistryTransfer(t *testing.T) {
	source := newTestRegistry(t)
	target := newTestRegistry(t)

	img, err := random.Image(1024, 2)
	require.NoError(t, err)
	srcRef := source + "/team1/app:v1"
	ref, err := name.ParseReference(srcRef)
	require.NoError(t, err)
	require.NoError(t, remote.Write(ref, img))

	e := NewRegistry(Options{})
	ctx := context.Background()
	dstRef := target + "/team1/app:v1"

	require.NoError(t, e.Pull(ctx, srcRef))
	require.NoError(t, e.Tag(ctx, srcRef, dstRef))
	assert.Equal(t, 2, e.held())
	require.NoError(t, e.Push(ctx, dstRef))
	assert.Zero(t, e.held())

	pushed, err := name.ParseReference(dstRef)
	require.NoError(t, err)
	desc, err := remote.Head(pushed)
	require.NoError(t, err)

	wantDigest, err := img.Digest()
	require.NoError(t, err)
	assert.Equal(t, wantDigest, desc.Digest)
}

func TestRegistryFailedPushKeepsImage(t *testing.T) {
	source := newTestRegistry(t)
	img, err := random.Image(512, 1)
	require.NoError(t, err)
	srcRef := source + "/team1/app:v1"
	ref, err := name.ParseReference(srcRef)
	require.NoError(t, err)
	require.NoError(t, remote.Write(ref, img))

	e := NewRegistry(Options{})
	ctx := context.Background()
	dstRef := "127.0.0.1:1/team1/app:v1"

	require.NoError(t, e.Pull(ctx, srcRef))
	require.NoError(t, e.Tag(ctx, srcRef, dstRef))
	require.Error(t, e.Push(ctx, dstRef))
	// a retry can push again
	assert.Equal(t, 2, e.held())
}

func TestRegistryPullMissing(t *testing.T) {
	source := newTestRegistry(t)
	e := NewRegistry(Options{})

	err := e.Pull(context.Background(), source+"/team1/missing:v1")
	var transferErr *TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, OpPull, transferErr.Op)
}

func TestRegistryTagWithoutPull(t *testing.T) {
	e := NewRegistry(Options{})

	err := e.Tag(context.Background(), "r1.example/a/b:v1", "r2.example/a/b:v1")
	assert.ErrorIs(t, err, ErrNotPulled)

	err = e.Push(context.Background(), "r2.example/a/b:v1")
	assert.ErrorIs(t, err, ErrNotPulled)
}
