// Package assetsync keeps a local cache of named binary resources in step with a remote manifest.
//
// A synchronization pass loads every local record, fetches the remote manifest (name, hash, size),
// downloads only the stale resources through a bounded worker pool and persists the merged records.
// A resource is stale when it has no local record, when its hash or size differ, or when its content
// is absent. Content that is already cached is never discarded because a newer download failed.
//
// Basic usage:
//
//	st, _ := store.NewLocalStore("~/.local/share/assetsync", store.LocalOptions{})
//	rm, _ := remote.NewHTTPClient("http://127.0.0.1:8080/api", nil)
//
//	s := assetsync.New(st, rm, remote.NewRetryFetcher(rm, remote.RetryOptions{}),
//	    assetsync.WithConcurrency(8),
//	    assetsync.WithVerification(assetsync.VerifyDigest),
//	)
//
//	report, err := s.Synchronize(ctx)
//	if errors.Is(err, assetsync.ErrManifestUnavailable) {
//	    // proceed with the previously cached state, or retry later
//	}
//	for _, e := range report.Failed() {
//	    fmt.Println(e.Descriptor.Name, e.Outcome, e.Err)
//	}
//
// Records for names that disappeared from the manifest are kept. Remove them with the opt-in
// Prune pass:
//
//	removed, err := s.Prune(ctx)
package assetsync
