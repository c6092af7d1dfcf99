package assetsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"go.trai.ch/zerr"
)

// Synchronizer reconciles a CacheStore against a remote manifest.
type Synchronizer struct {
	store    CacheStore
	manifest ManifestClient
	fetcher  ContentFetcher
	opts     *Options
}

// New creates a Synchronizer. All collaborators are required.
func New(store CacheStore, manifest ManifestClient, fetcher ContentFetcher, opts ...Option) *Synchronizer {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &Synchronizer{
		store:    store,
		manifest: manifest,
		fetcher:  fetcher,
		opts:     options,
	}
}

type fetchResult struct {
	content []byte
	err     error
}

// Synchronize runs one pass: load local records, fetch the manifest, download
// stale content and persist the merged records.
//
// Only a manifest failure, a store read failure or cancellation before the
// merge phase return an error. Per-resource failures are reported in the Report.
func (s *Synchronizer) Synchronize(ctx context.Context) (*Report, error) {
	start := time.Now()
	log := s.opts.Logger.WithField("action", "synchronize")

	plan, err := s.Plan(ctx)
	if err != nil {
		log.WithError(err).Error("synchronization aborted")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"resources": len(plan.manifest),
		"fresh":     len(plan.Fresh),
		"stale":     len(plan.Stale),
		"orphans":   len(plan.Orphans),
	}).Info("computed plan")

	fetched := s.fetch(ctx, plan.Stale)

	// Merge never runs on a cancelled pass: the store keeps its previous state.
	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("%w: %w", ErrSyncCancelled, err)
		log.WithError(err).Warn("synchronization cancelled before merge")
		return nil, err
	}

	report := s.merge(ctx, plan, fetched)

	log.WithFields(logrus.Fields{
		"unchanged":       report.Count(OutcomeUnchanged),
		"updated":         report.Count(OutcomeUpdated),
		"download_failed": report.Count(OutcomeDownloadFailed),
		"store_failed":    report.Count(OutcomeStoreFailed),
		"duration":        time.Since(start).String(),
	}).Info("synchronization finished")

	return report, nil
}

// Plan loads local records and the manifest and returns the diff between them
// without downloading or writing anything.
func (s *Synchronizer) Plan(ctx context.Context) (*Plan, error) {
	local, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	manifest, err := s.fetchManifest(ctx)
	if err != nil {
		return nil, err
	}

	return Diff(local, manifest), nil
}

func (s *Synchronizer) fetchManifest(ctx context.Context) ([]ResourceDescriptor, error) {
	manifest, err := s.manifest.FetchManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestUnavailable, err)
	}
	if err := ValidateManifest(manifest); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestUnavailable, err)
	}
	return manifest, nil
}

// fetch downloads every stale descriptor through a bounded pool. Each task
// writes only its own slot; the call returns once every task resolved.
func (s *Synchronizer) fetch(ctx context.Context, stale []ResourceDescriptor) map[string]fetchResult {
	results := make([]fetchResult, len(stale))

	p := pool.New().WithMaxGoroutines(s.opts.Concurrency).WithContext(ctx)
	for i, d := range stale {
		p.Go(func(ctx context.Context) error {
			results[i] = s.fetchOne(ctx, d)
			return nil
		})
	}
	_ = p.Wait()

	byName := make(map[string]fetchResult, len(stale))
	for i, d := range stale {
		byName[d.Name] = results[i]
	}
	return byName
}

func (s *Synchronizer) fetchOne(ctx context.Context, d ResourceDescriptor) fetchResult {
	log := s.opts.Logger.WithFields(logrus.Fields{"action": "fetch", "resource": d.Name})

	content, err := s.fetcher.FetchContent(ctx, d.Name)
	if err == nil {
		err = s.opts.Verification.Verify(d, content)
	}
	if err != nil {
		err = zerr.With(fmt.Errorf("%w: %w", ErrContentFetchFailed, err), "resource", d.Name)
		log.WithError(err).Warn("content fetch failed")
		return fetchResult{err: err}
	}

	if content == nil {
		content = []byte{}
	}
	log.WithField("size", len(content)).Debug("content fetched")
	return fetchResult{content: content}
}

// merge builds and persists the next record for every manifest entry.
func (s *Synchronizer) merge(ctx context.Context, plan *Plan, fetched map[string]fetchResult) *Report {
	report := &Report{Entries: make([]ReportEntry, 0, len(plan.manifest))}

	for _, d := range plan.manifest {
		entry := ReportEntry{Descriptor: d}
		local, exists := plan.Local(d.Name)
		res, stale := fetched[d.Name]

		switch {
		case !stale:
			entry.Outcome = OutcomeUnchanged

		case res.err == nil:
			rec := CacheRecord{
				Name:       d.Name,
				Hash:       d.Hash,
				Size:       d.Size,
				Content:    res.content,
				HasContent: true,
			}
			if err := s.put(ctx, rec); err != nil {
				entry.Outcome = OutcomeStoreFailed
				entry.Err = err
			} else {
				entry.Outcome = OutcomeUpdated
			}

		default:
			entry.Outcome = OutcomeDownloadFailed
			entry.Err = res.err
			switch {
			case exists && local.HasContent:
				// Outdated content is still usable; keep it.
			case exists && local.Matches(d):
				// Placeholder already records this descriptor.
			default:
				placeholder := CacheRecord{Name: d.Name, Hash: d.Hash, Size: d.Size}
				if err := s.put(ctx, placeholder); err != nil {
					entry.Err = errors.Join(res.err, err)
				}
			}
		}

		report.Entries = append(report.Entries, entry)
	}

	return report
}

func (s *Synchronizer) put(ctx context.Context, rec CacheRecord) error {
	if err := s.store.Put(ctx, rec); err != nil {
		err = zerr.With(fmt.Errorf("%w: %w", ErrStorePutFailed, err), "resource", rec.Name)
		s.opts.Logger.WithFields(logrus.Fields{
			"action":   "put",
			"resource": rec.Name,
		}).WithError(err).Error("store put failed")
		return err
	}
	return nil
}

// Prune deletes local records whose name is no longer in the remote manifest.
// It is never run by Synchronize. A manifest failure aborts before any deletion.
func (s *Synchronizer) Prune(ctx context.Context) ([]string, error) {
	deleter, ok := s.store.(RecordDeleter)
	if !ok {
		return nil, ErrPruneUnsupported
	}

	plan, err := s.Plan(ctx)
	if err != nil {
		return nil, err
	}

	log := s.opts.Logger.WithField("action", "prune")
	var (
		removed []string
		errs    []error
	)
	for _, name := range plan.Orphans {
		if err := deleter.Delete(ctx, name); err != nil {
			errs = append(errs, zerr.With(zerr.Wrap(err, "delete orphan"), "resource", name))
			continue
		}
		removed = append(removed, name)
		log.WithField("resource", name).Info("removed orphan")
	}

	return removed, errors.Join(errs...)
}
