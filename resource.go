package assetsync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"go.trai.ch/zerr"
)

// ResourceDescriptor identifies one remote resource without its content.
type ResourceDescriptor struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// CacheRecord is the persisted form of a resource.
// HasContent is false for placeholders whose download never succeeded.
type CacheRecord struct {
	Name       string
	Hash       string
	Size       int64
	Content    []byte
	HasContent bool
}

// Matches reports whether the record carries the descriptor's identity.
func (r CacheRecord) Matches(d ResourceDescriptor) bool {
	return r.Name == d.Name && r.Hash == d.Hash && r.Size == d.Size
}

// Fresh reports whether the record satisfies d without a download.
func (r CacheRecord) Fresh(d ResourceDescriptor) bool {
	return r.Matches(d) && r.HasContent
}

// Outcome is the per-resource result of a synchronization pass.
type Outcome string

const (
	OutcomeUnchanged      Outcome = "unchanged"
	OutcomeUpdated        Outcome = "updated"
	OutcomeDownloadFailed Outcome = "downloadFailed"
	OutcomeStoreFailed    Outcome = "storeFailed"
)

// ReportEntry records what happened to one remote descriptor.
type ReportEntry struct {
	Descriptor ResourceDescriptor
	Outcome    Outcome
	Err        error
}

// Report summarizes a synchronization pass, in manifest order.
type Report struct {
	Entries []ReportEntry
}

// Outcome returns the outcome recorded for name.
func (r *Report) Outcome(name string) (Outcome, bool) {
	for _, e := range r.Entries {
		if e.Descriptor.Name == name {
			return e.Outcome, true
		}
	}
	return "", false
}

// Count returns how many entries ended with outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// Failed returns entries whose resource should be retried on the next pass.
func (r *Report) Failed() []ReportEntry {
	var failed []ReportEntry
	for _, e := range r.Entries {
		if e.Outcome == OutcomeDownloadFailed || e.Outcome == OutcomeStoreFailed {
			failed = append(failed, e)
		}
	}
	return failed
}

// Complete reports whether every resource is present and current.
func (r *Report) Complete() bool {
	return len(r.Failed()) == 0
}

func (r *Report) String() string {
	return fmt.Sprintf("%d resources: %d unchanged, %d updated, %d download failed, %d store failed",
		len(r.Entries),
		r.Count(OutcomeUnchanged),
		r.Count(OutcomeUpdated),
		r.Count(OutcomeDownloadFailed),
		r.Count(OutcomeStoreFailed))
}

// ValidateManifest checks descriptor names are non-empty and unique and sizes are non-negative.
func ValidateManifest(descriptors []ResourceDescriptor) error {
	seen := make(map[string]struct{}, len(descriptors))
	for _, d := range descriptors {
		if d.Name == "" {
			return zerr.With(zerr.Wrap(ErrInvalidDescriptor, "empty name"), "resource", d.Name)
		}
		if d.Size < 0 {
			return zerr.With(zerr.Wrap(ErrInvalidDescriptor, "negative size"), "resource", d.Name)
		}
		if _, dup := seen[d.Name]; dup {
			return zerr.With(zerr.Wrap(ErrDuplicateResource, "validate manifest"), "resource", d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return nil
}

// Verification selects how downloaded content is checked against its descriptor.
type Verification string

const (
	VerifyNone   Verification = "none"
	VerifySize   Verification = "size"
	VerifyDigest Verification = "digest"
)

// ParseVerification parses a configuration value.
func ParseVerification(s string) (Verification, error) {
	switch v := Verification(strings.ToLower(strings.TrimSpace(s))); v {
	case VerifyNone, VerifySize, VerifyDigest:
		return v, nil
	case "":
		return VerifySize, nil
	default:
		return "", fmt.Errorf("unknown verification mode %q", s)
	}
}

// Verify checks content against d according to mode.
func (mode Verification) Verify(d ResourceDescriptor, content []byte) error {
	if mode == VerifyNone {
		return nil
	}
	if int64(len(content)) != d.Size {
		err := zerr.With(zerr.Wrap(ErrContentMismatch, "size"), "expected", d.Size)
		return zerr.With(err, "actual", len(content))
	}
	if mode == VerifyDigest {
		if got := ContentHash(content); got != strings.TrimPrefix(strings.ToLower(d.Hash), digestPrefix) {
			err := zerr.With(zerr.Wrap(ErrContentMismatch, "digest"), "expected", d.Hash)
			return zerr.With(err, "actual", got)
		}
	}
	return nil
}

const digestPrefix = "sha256:"

// ContentHash returns the lowercase hex SHA-256 of data, the hash format served by the dev server.
func ContentHash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Names returns the sorted names of descriptors.
func Names(descriptors []ResourceDescriptor) []string {
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}
