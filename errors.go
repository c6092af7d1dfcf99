package assetsync

import "go.trai.ch/zerr"

var (
	// ErrManifestUnavailable is returned when the remote manifest could not be fetched
	// or was malformed. The pass is aborted before any store mutation.
	ErrManifestUnavailable = zerr.New("assetsync: manifest unavailable")

	// ErrDuplicateResource is wrapped by ErrManifestUnavailable when two descriptors share a name.
	ErrDuplicateResource = zerr.New("assetsync: duplicate resource name")

	// ErrInvalidDescriptor is wrapped by ErrManifestUnavailable for empty names or negative sizes.
	ErrInvalidDescriptor = zerr.New("assetsync: invalid resource descriptor")

	// ErrStoreUnavailable is returned when the local records could not be read.
	ErrStoreUnavailable = zerr.New("assetsync: cache store unavailable")

	// ErrSyncCancelled is returned when the context is done before the merge phase.
	ErrSyncCancelled = zerr.New("assetsync: synchronization cancelled")

	// ErrContentFetchFailed marks a report entry whose download failed.
	ErrContentFetchFailed = zerr.New("assetsync: content fetch failed")

	// ErrContentMismatch is returned when downloaded bytes fail size or digest verification.
	ErrContentMismatch = zerr.New("assetsync: content does not match descriptor")

	// ErrStorePutFailed marks a report entry whose content could not be persisted.
	ErrStorePutFailed = zerr.New("assetsync: store put failed")

	// ErrResourceNotFound is returned by fetchers when the remote has no such resource.
	// Retry wrappers treat it as fatal.
	ErrResourceNotFound = zerr.New("assetsync: resource not found")

	// ErrPruneUnsupported is returned by Prune when the store cannot delete records.
	ErrPruneUnsupported = zerr.New("assetsync: store does not support deletion")
)
