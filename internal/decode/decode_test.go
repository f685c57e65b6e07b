package decode

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// buildLeafInput assembles a minimal MerkleTreeLeaf prefix around a DER
// certificate, per the §4.5 layout: version, leaf_type, 8-byte timestamp,
// 2-byte entry_type, then (for x509_entry) a 24-bit length + DER.
func buildLeafInput(entryType uint16, der []byte) []byte {
	buf := make([]byte, leafPrefixLen)
	buf[0] = 0 // version
	buf[1] = 0 // leaf_type: timestamped_entry
	// bytes [2:10) timestamp, ignored by the decoder
	binary.BigEndian.PutUint16(buf[10:12], entryType)

	if entryType == 0 {
		length := len(der)
		buf = append(buf, byte(length>>16), byte(length>>8), byte(length))
		buf = append(buf, der...)
	}

	return buf
}

func selfSignedCert(t *testing.T, sans []string, notBefore, notAfter time.Time) []byte {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "leaf.example"},
		Issuer:       pkix.Name{CommonName: "Test Issuer"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		DNSNames:     sans,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return der
}

func TestDecodeRoundTrip(t *testing.T) {
	notBefore := time.Unix(1_700_000_000, 0).UTC()
	notAfter := time.Unix(1_731_536_000, 0).UTC()

	der := selfSignedCert(t, []string{"a.example", "b.example"}, notBefore, notAfter)
	sum := sha256.Sum256(der)
	wantFingerprint := hex.EncodeToString(sum[:])

	leaf := buildLeafInput(0, der)
	leafB64 := base64.StdEncoding.EncodeToString(leaf)

	rec, err := Decode(leafB64, "", 42, "https://log.example/", Options{ParsePrecerts: true})
	require.NoError(t, err)

	require.Equal(t, []string{"a.example", "b.example"}, rec.AllDomains)
	require.Equal(t, int64(42), rec.CertIndex)
	require.Equal(t, "https://log.example/", rec.LogURL)
	require.Equal(t, notBefore, rec.NotBefore.UTC())
	require.Equal(t, notAfter, rec.NotAfter.UTC())
	require.Equal(t, wantFingerprint, rec.Fingerprint)
	require.Len(t, rec.Fingerprint, 64)
	require.False(t, rec.IsPrecert)
}

func TestDecodeFallsBackToCommonName(t *testing.T) {
	notBefore := time.Now().Add(-time.Hour)
	notAfter := time.Now().Add(time.Hour)

	der := selfSignedCert(t, nil, notBefore, notAfter)
	leaf := buildLeafInput(0, der)
	leafB64 := base64.StdEncoding.EncodeToString(leaf)

	rec, err := Decode(leafB64, "", 0, "https://log.example/", Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"leaf.example"}, rec.AllDomains)
}

func TestDecodeUnknownEntryType(t *testing.T) {
	leaf := buildLeafInput(2, nil)
	leafB64 := base64.StdEncoding.EncodeToString(leaf)

	_, err := Decode(leafB64, "", 0, "log", Options{})
	require.ErrorIs(t, err, ErrUnknownEntryType)
}

func TestDecodeTruncatedBuffer(t *testing.T) {
	// Shorter than the 12-byte prefix.
	leafB64 := base64.StdEncoding.EncodeToString([]byte{0, 0, 0})

	_, err := Decode(leafB64, "", 0, "log", Options{})
	require.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeClampsTruncatedDER(t *testing.T) {
	der := selfSignedCert(t, []string{"a.example"}, time.Now(), time.Now().Add(time.Hour))
	leaf := buildLeafInput(0, der)
	// Truncate the buffer mid-DER; the decoder must clamp rather than
	// index out of range, and the subsequent X.509 parse fails cleanly.
	truncated := leaf[:len(leaf)-5]
	leafB64 := base64.StdEncoding.EncodeToString(truncated)

	_, err := Decode(leafB64, "", 0, "log", Options{})
	require.Error(t, err)
}

func TestDecodePrecertGating(t *testing.T) {
	notBefore := time.Now().Add(-time.Hour)
	notAfter := time.Now().Add(time.Hour)
	der := selfSignedCert(t, []string{"precert.example"}, notBefore, notAfter)

	// extra_data: 24-bit length + full DER (with CT poison in a real log;
	// the decoder doesn't require the poison extension to be present).
	length := len(der)
	extra := append([]byte{byte(length >> 16), byte(length >> 8), byte(length)}, der...)
	extraB64 := base64.StdEncoding.EncodeToString(extra)

	leaf := buildLeafInput(1, nil)
	leafB64 := base64.StdEncoding.EncodeToString(leaf)

	_, err := Decode(leafB64, extraB64, 7, "log", Options{ParsePrecerts: false})
	require.ErrorIs(t, err, ErrPrecertSkipped)

	rec, err := Decode(leafB64, extraB64, 7, "log", Options{ParsePrecerts: true})
	require.NoError(t, err)
	require.True(t, rec.IsPrecert)
	require.Equal(t, []string{"precert.example"}, rec.AllDomains)
}
