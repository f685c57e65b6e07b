package dedupe

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ct-watchtower/watchtower/internal/model"
)

func TestShouldEmitFirstTimeTrueSecondTimeFalse(t *testing.T) {
	s := New()
	rec := model.CertificateRecord{LogURL: "https://log.example/", CertIndex: 5}

	require.True(t, s.ShouldEmit(rec))
	require.False(t, s.ShouldEmit(rec))
}

func TestShouldEmitDifferentIndexDifferentKey(t *testing.T) {
	s := New()
	require.True(t, s.ShouldEmit(model.CertificateRecord{LogURL: "log", CertIndex: 1}))
	require.True(t, s.ShouldEmit(model.CertificateRecord{LogURL: "log", CertIndex: 2}))
}

func TestKeyForPrefersIndexOverFingerprint(t *testing.T) {
	key, alwaysUnique := KeyFor(model.CertificateRecord{LogURL: "log", CertIndex: 9, Fingerprint: "abc"})
	require.False(t, alwaysUnique)
	require.Equal(t, "idx:log:9", key)
}

func TestKeyForFallsBackToFingerprint(t *testing.T) {
	key, alwaysUnique := KeyFor(model.CertificateRecord{Fingerprint: "deadbeef"})
	require.False(t, alwaysUnique)
	require.Equal(t, "fp:deadbeef", key)
}

func TestKeyForAlwaysUniqueWhenNeitherKnown(t *testing.T) {
	_, alwaysUnique := KeyFor(model.CertificateRecord{})
	require.True(t, alwaysUnique)
}

func TestShouldEmitAlwaysUniqueNeverSuppresses(t *testing.T) {
	s := New()
	rec := model.CertificateRecord{}

	require.True(t, s.ShouldEmit(rec))
	require.True(t, s.ShouldEmit(rec))
	require.Equal(t, 0, s.Len())
}
