package assetsync

import "context"

// CacheStore is the durable map from resource name to CacheRecord.
// Put must be atomic per record: readers never observe a half-written record.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=internal/mocks/mock_store.go -package=mocks
type CacheStore interface {
	// GetAll returns a snapshot of every record. It may be empty.
	GetAll(ctx context.Context) ([]CacheRecord, error)

	// Put creates or replaces the record with the same name.
	Put(ctx context.Context, record CacheRecord) error
}

// RecordDeleter is implemented by stores that support the opt-in prune pass.
type RecordDeleter interface {
	Delete(ctx context.Context, name string) error
}

// ManifestClient fetches the authoritative list of remote resources.
type ManifestClient interface {
	FetchManifest(ctx context.Context) ([]ResourceDescriptor, error)
}

// ContentFetcher fetches the bytes of one resource.
// It must be safe to call concurrently for distinct names.
type ContentFetcher interface {
	FetchContent(ctx context.Context, name string) ([]byte, error)
}

// Remote is a source that serves both the manifest and the content.
type Remote interface {
	ManifestClient
	ContentFetcher
}
