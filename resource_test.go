package assetsync

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/zerr"
)

func TestCacheRecordFresh(t *testing.T) {
	d := ResourceDescriptor{Name: "a", Hash: "h", Size: 2}

	tests := []struct {
		name    string
		rec     CacheRecord
		matches bool
		fresh   bool
	}{
		{name: "identical", rec: CacheRecord{Name: "a", Hash: "h", Size: 2, Content: []byte("xy"), HasContent: true}, matches: true, fresh: true},
		{name: "placeholder", rec: CacheRecord{Name: "a", Hash: "h", Size: 2}, matches: true},
		{name: "hash differs", rec: CacheRecord{Name: "a", Hash: "g", Size: 2, HasContent: true}},
		{name: "size differs", rec: CacheRecord{Name: "a", Hash: "h", Size: 3, HasContent: true}},
		{name: "name differs", rec: CacheRecord{Name: "b", Hash: "h", Size: 2, HasContent: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.matches, tt.rec.Matches(d))
			assert.Equal(t, tt.fresh, tt.rec.Fresh(d))
		})
	}
}

func TestValidateManifest(t *testing.T) {
	assert.NoError(t, ValidateManifest(nil))
	assert.NoError(t, ValidateManifest([]ResourceDescriptor{{Name: "a"}, {Name: "b", Size: 0}}))

	err := ValidateManifest([]ResourceDescriptor{{Name: "a"}, {Name: "a"}})
	assert.ErrorIs(t, err, ErrDuplicateResource)

	var zerrErr *zerr.Error
	require.True(t, errors.As(err, &zerrErr))
	assert.Equal(t, "a", zerrErr.Metadata()["resource"])

	assert.ErrorIs(t, ValidateManifest([]ResourceDescriptor{{Name: ""}}), ErrInvalidDescriptor)
	assert.ErrorIs(t, ValidateManifest([]ResourceDescriptor{{Name: "a", Size: -1}}), ErrInvalidDescriptor)
}

func TestParseVerification(t *testing.T) {
	for in, want := range map[string]Verification{
		"":       VerifySize,
		"none":   VerifyNone,
		" SIZE ": VerifySize,
		"Digest": VerifyDigest,
	} {
		got, err := ParseVerification(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseVerification("crc32")
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	content := []byte("hello")
	sum := ContentHash(content)

	assert.NoError(t, VerifyNone.Verify(ResourceDescriptor{Size: 99}, content))
	assert.NoError(t, VerifySize.Verify(ResourceDescriptor{Hash: "anything", Size: 5}, content))
	assert.ErrorIs(t, VerifySize.Verify(ResourceDescriptor{Size: 4}, content), ErrContentMismatch)

	assert.NoError(t, VerifyDigest.Verify(ResourceDescriptor{Hash: sum, Size: 5}, content))
	assert.NoError(t, VerifyDigest.Verify(ResourceDescriptor{Hash: "sha256:" + strings.ToUpper(sum), Size: 5}, content))
	assert.ErrorIs(t, VerifyDigest.Verify(ResourceDescriptor{Hash: ContentHash(nil), Size: 5}, content), ErrContentMismatch)
}

func TestReport(t *testing.T) {
	r := &Report{Entries: []ReportEntry{
		{Descriptor: ResourceDescriptor{Name: "a"}, Outcome: OutcomeUnchanged},
		{Descriptor: ResourceDescriptor{Name: "b"}, Outcome: OutcomeUpdated},
		{Descriptor: ResourceDescriptor{Name: "c"}, Outcome: OutcomeDownloadFailed},
		{Descriptor: ResourceDescriptor{Name: "d"}, Outcome: OutcomeStoreFailed},
	}}

	o, ok := r.Outcome("c")
	assert.True(t, ok)
	assert.Equal(t, OutcomeDownloadFailed, o)

	_, ok = r.Outcome("zzz")
	assert.False(t, ok)

	assert.Equal(t, 1, r.Count(OutcomeUpdated))
	assert.Len(t, r.Failed(), 2)
	assert.False(t, r.Complete())
	assert.Equal(t, "4 resources: 1 unchanged, 1 updated, 1 download failed, 1 store failed", r.String())
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Names([]ResourceDescriptor{{Name: "b"}, {Name: "a"}}))
	assert.Empty(t, Names(nil))
}
