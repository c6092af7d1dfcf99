package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aweris/assetsync"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/klauspost/compress/zstd"
	"go.trai.ch/zerr"
)

// ManifestLabel is the image config label holding the JSON resource list.
const ManifestLabel = "dev.assetsync.manifest"

// DefaultConcurrency bounds parallel layer uploads.
const DefaultConcurrency = 4

// ociEntry is one resource in the manifest label.
type ociEntry struct {
	assetsync.ResourceDescriptor
	Layer string `json:"layer"`
}

// OCIRemote serves a manifest and content from an OCI image.
// Each resource is one zstd layer; the config label maps names to layer digests.
type OCIRemote struct {
	ref         name.Reference
	auth        Authenticator
	concurrency int

	mu     sync.Mutex
	img    v1.Image
	layers map[string]v1.Hash
}

// NewOCIRemote creates a remote from a standard Docker ref (e.g., "ttl.sh/assets/game:main")
func NewOCIRemote(imageRef string, auth Authenticator) (*OCIRemote, error) {
	if imageRef == "" {
		return nil, errors.New("image ref required")
	}
	ref, err := name.ParseReference(imageRef, name.WithDefaultTag("latest"))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "invalid image ref"), "ref", imageRef)
	}
	return &OCIRemote{ref: ref, auth: auth, concurrency: DefaultConcurrency}, nil
}

// SetConcurrency sets the number of parallel layer uploads.
func (r *OCIRemote) SetConcurrency(n int) {
	if n > 0 {
		r.concurrency = n
	}
}

func (r *OCIRemote) String() string   { return r.ref.String() }
func (r *OCIRemote) Registry() string { return r.ref.Context().RegistryStr() }

// blobLayer implements v1.Layer with zstd compression for remote transfer
type blobLayer struct {
	compressed   []byte
	uncompressed []byte
}

var zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithZeroFrames(true))

var zstdDecoder, _ = zstd.NewReader(nil)

func newBlobLayer(data []byte) *blobLayer {
	return &blobLayer{
		compressed:   zstdEncoder.EncodeAll(data, nil),
		uncompressed: data,
	}
}

func (l *blobLayer) Digest() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.compressed))
	return h, err
}

func (l *blobLayer) DiffID() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.uncompressed))
	return h, err
}

func (l *blobLayer) Compressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.compressed)), nil
}
func (l *blobLayer) Uncompressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.uncompressed)), nil
}
func (l *blobLayer) Size() (int64, error)                { return int64(len(l.compressed)), nil }
func (l *blobLayer) MediaType() (types.MediaType, error) { return types.OCILayerZStd, nil }

// FetchManifest pulls the image and returns the resources in its manifest label.
// The image is kept for the FetchContent calls of the same pass.
func (r *OCIRemote) FetchManifest(ctx context.Context) ([]assetsync.ResourceDescriptor, error) {
	img, err := remote.Image(r.ref, r.remoteOptions(ctx)...)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to fetch image"), "ref", r.ref.String())
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read image config")
	}

	raw, ok := cfg.Config.Labels[ManifestLabel]
	if !ok {
		return nil, zerr.With(fmt.Errorf("missing %s label", ManifestLabel), "ref", r.ref.String())
	}

	var entries []ociEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, zerr.Wrap(err, "failed to parse manifest label")
	}

	layers := make(map[string]v1.Hash, len(entries))
	out := make([]assetsync.ResourceDescriptor, 0, len(entries))
	for _, e := range entries {
		h, err := v1.NewHash(e.Layer)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "invalid layer digest"), "resource", e.Name)
		}
		layers[e.Name] = h
		out = append(out, e.ResourceDescriptor)
	}

	r.mu.Lock()
	r.img = img
	r.layers = layers
	r.mu.Unlock()

	return out, nil
}

// FetchContent decodes the layer recorded for name.
func (r *OCIRemote) FetchContent(ctx context.Context, name string) ([]byte, error) {
	r.mu.Lock()
	img, layers := r.img, r.layers
	r.mu.Unlock()

	if img == nil {
		if _, err := r.FetchManifest(ctx); err != nil {
			return nil, err
		}
		r.mu.Lock()
		img, layers = r.img, r.layers
		r.mu.Unlock()
	}

	digest, ok := layers[name]
	if !ok {
		return nil, zerr.With(zerr.Wrap(assetsync.ErrResourceNotFound, "no layer for resource"), "resource", name)
	}

	layer, err := img.LayerByDigest(digest)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to resolve layer"), "resource", name)
	}

	rc, err := layer.Compressed()
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to open layer"), "resource", name)
	}
	compressed, err := io.ReadAll(rc)
	if cerr := rc.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read layer"), "resource", name)
	}

	data, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to decode layer"), "resource", name)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// PublishItem is one resource to upload.
type PublishItem struct {
	Descriptor assetsync.ResourceDescriptor
	Content    []byte
}

// Publish builds an image with one layer per item and pushes it to the ref.
func (r *OCIRemote) Publish(ctx context.Context, items []PublishItem) error {
	entries := make([]ociEntry, 0, len(items))
	layers := make([]v1.Layer, 0, len(items))
	seen := make(map[v1.Hash]bool, len(items))

	for _, item := range items {
		layer := newBlobLayer(item.Content)
		digest, err := layer.Digest()
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to digest layer"), "resource", item.Descriptor.Name)
		}
		entries = append(entries, ociEntry{ResourceDescriptor: item.Descriptor, Layer: digest.String()})
		if !seen[digest] {
			seen[digest] = true
			layers = append(layers, layer)
		}
	}

	img, err := buildImage(layers, entries)
	if err != nil {
		return zerr.Wrap(err, "failed to build image")
	}

	options := append(r.remoteOptions(ctx), remote.WithJobs(r.concurrency))
	if err := remote.Write(r.ref, img, options...); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to push image"), "ref", r.ref.String())
	}
	return nil
}

func buildImage(layers []v1.Layer, entries []ociEntry) (v1.Image, error) {
	img := empty.Image

	if len(layers) > 0 {
		var err error
		img, err = mutate.AppendLayers(img, layers...)
		if err != nil {
			return nil, err
		}
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, err
	}

	manifestJSON, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}

	cfg = cfg.DeepCopy()
	cfg.Config.Labels = map[string]string{ManifestLabel: string(manifestJSON)}

	return mutate.ConfigFile(img, cfg)
}

func (r *OCIRemote) remoteOptions(ctx context.Context) []remote.Option {
	options := []remote.Option{remote.WithContext(ctx)}
	if r.auth != nil {
		username, password, err := r.auth.Authenticate(r.Registry())
		if err == nil && username != "" {
			return append(options, remote.WithAuth(&authn.Basic{
				Username: username,
				Password: password,
			}))
		}
	}
	return append(options, remote.WithAuthFromKeychain(authn.DefaultKeychain))
}
