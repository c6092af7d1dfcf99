package remote

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aweris/assetsync"
	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(registry.New())
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func publishItem(name string, content []byte) PublishItem {
	return PublishItem{
		Descriptor: assetsync.ResourceDescriptor{
			Name: name, Hash: assetsync.ContentHash(content), Size: int64(len(content)),
		},
		Content: content,
	}
}

func TestOCIRemotePublishAndFetch(t *testing.T) {
	ctx := context.Background()
	host := newTestRegistry(t)

	items := []PublishItem{
		publishItem("textures/stone.dac", []byte(strings.Repeat("stone", 200))),
		publishItem("empty.dac", []byte{}),
		publishItem("copy.dac", []byte(strings.Repeat("stone", 200))),
	}

	pub, err := NewOCIRemote(host+"/assets/game:v1", StaticAuthenticator{})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, items))

	rm, err := NewOCIRemote(host+"/assets/game:v1", nil)
	require.NoError(t, err)

	manifest, err := rm.FetchManifest(ctx)
	require.NoError(t, err)
	require.Len(t, manifest, 3)
	for i, item := range items {
		assert.Equal(t, item.Descriptor, manifest[i])
	}

	for _, item := range items {
		data, err := rm.FetchContent(ctx, item.Descriptor.Name)
		require.NoError(t, err, item.Descriptor.Name)
		assert.Equal(t, item.Content, data)
		assert.NoError(t, assetsync.VerifyDigest.Verify(item.Descriptor, data))
	}

	_, err = rm.FetchContent(ctx, "missing.dac")
	assert.ErrorIs(t, err, assetsync.ErrResourceNotFound)
}

func TestOCIRemoteFetchContentLoadsManifest(t *testing.T) {
	ctx := context.Background()
	host := newTestRegistry(t)

	pub, err := NewOCIRemote(host+"/assets/game", nil)
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, []PublishItem{publishItem("a.dac", []byte("alpha"))}))

	rm, err := NewOCIRemote(host+"/assets/game:latest", nil)
	require.NoError(t, err)

	data, err := rm.FetchContent(ctx, "a.dac")
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), data)
}

func TestOCIRemoteMissingImage(t *testing.T) {
	host := newTestRegistry(t)

	rm, err := NewOCIRemote(host+"/assets/none:v1", nil)
	require.NoError(t, err)

	_, err = rm.FetchManifest(context.Background())
	assert.Error(t, err)
}

func TestNewOCIRemoteValidatesRef(t *testing.T) {
	_, err := NewOCIRemote("", nil)
	assert.Error(t, err)

	_, err = NewOCIRemote("UPPER/Case:tag", nil)
	assert.Error(t, err)

	rm, err := NewOCIRemote("localhost:5000/assets", nil)
	require.NoError(t, err)
	assert.Equal(t, "localhost:5000", rm.Registry())
	assert.Equal(t, "localhost:5000/assets:latest", rm.String())
}
