// Package decode turns a raw CT log entry (base64 leaf_input/extra_data)
// into a model.CertificateRecord, per RFC 6962's MerkleTreeLeaf layout.
package decode

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	ctx509 "github.com/google/certificate-transparency-go/x509"
	psl "golang.org/x/net/publicsuffix"

	"github.com/ct-watchtower/watchtower/internal/ctwire"
	"github.com/ct-watchtower/watchtower/internal/model"
)

// Error kinds. Per-entry decode failures are always logged-and-skipped by
// the caller; they are never fatal to a poller.
var (
	ErrBadBase64        = errors.New("decode: invalid base64")
	ErrTruncated        = errors.New("decode: truncated MerkleTreeLeaf")
	ErrUnknownEntryType = errors.New("decode: unknown entry type")
	ErrMalformedDER     = errors.New("decode: malformed DER")
	// ErrPrecertSkipped is returned when entry_type==1 and precert parsing
	// is disabled. Callers must treat this as a silent skip, not a warning.
	ErrPrecertSkipped = errors.New("decode: precertificate skipped (parsing disabled)")
)

// leafPrefixLen is version(1) + leaf_type(1) + timestamp(8) + entry_type(2).
const leafPrefixLen = 12

// Options configures decoding behavior.
type Options struct {
	ParsePrecerts bool
	// CAOwners optionally maps a lowercase-hex Authority Key Identifier to
	// a human-readable CA owner name, loaded once from CCADB at startup.
	// Nil disables CA-owner enrichment.
	CAOwners map[string]string
}

// Decode parses one CT log entry into a CertificateRecord.
func Decode(leafInputB64, extraDataB64 string, certIndex int64, logURL string, opts Options) (model.CertificateRecord, error) {
	leaf, err := base64.StdEncoding.DecodeString(leafInputB64)
	if err != nil {
		return model.CertificateRecord{}, fmt.Errorf("%w: %v", ErrBadBase64, err)
	}

	if len(leaf) < leafPrefixLen {
		return model.CertificateRecord{}, ErrTruncated
	}

	entryType := binary.BigEndian.Uint16(leaf[10:12])

	var der []byte

	switch entryType {
	case ctwire.EntryTypeX509:
		der, err = extractLeafDER(leaf)
		if err != nil {
			return model.CertificateRecord{}, err
		}
	case ctwire.EntryTypePrecert:
		if !opts.ParsePrecerts {
			return model.CertificateRecord{}, ErrPrecertSkipped
		}

		extra, err := base64.StdEncoding.DecodeString(extraDataB64)
		if err != nil {
			return model.CertificateRecord{}, fmt.Errorf("%w: %v", ErrBadBase64, err)
		}

		der, err = extractPrecertDER(extra)
		if err != nil {
			return model.CertificateRecord{}, err
		}
	default:
		return model.CertificateRecord{}, fmt.Errorf("%w: %d", ErrUnknownEntryType, entryType)
	}

	sum := sha256.Sum256(der)
	fingerprint := hex.EncodeToString(sum[:])

	cert, err := ctx509.ParseCertificate(der)
	if err != nil {
		return model.CertificateRecord{}, fmt.Errorf("%w: %v", ErrMalformedDER, err)
	}

	allDomains := make([]string, len(cert.DNSNames))
	copy(allDomains, cert.DNSNames)

	if len(allDomains) == 0 && cert.Subject.CommonName != "" {
		allDomains = []string{cert.Subject.CommonName}
	}

	issuer := cert.Issuer.CommonName
	if issuer == "" {
		issuer = cert.Issuer.String()
	}

	return model.CertificateRecord{
		AllDomains:          allDomains,
		CertIndex:           certIndex,
		LogURL:              logURL,
		SeenAt:              time.Now(),
		NotBefore:           cert.NotBefore,
		NotAfter:            cert.NotAfter,
		Fingerprint:         fingerprint,
		Issuer:              issuer,
		IsPrecert:           entryType == ctwire.EntryTypePrecert,
		RegisterableDomains: registrableDomains(allDomains),
		CAOwner:             caOwnerFor(cert.AuthorityKeyId, opts.CAOwners),
	}, nil
}

// caOwnerFor looks up the CA owner for an Authority Key Identifier in
// owners, keyed by lowercase hex. Returns "" when owners is nil or the key
// isn't found — enrichment is purely informational.
func caOwnerFor(authorityKeyID []byte, owners map[string]string) string {
	if owners == nil || len(authorityKeyID) == 0 {
		return ""
	}

	return owners[strings.ToLower(hex.EncodeToString(authorityKeyID))]
}

// extractLeafDER reads the 24-bit big-endian DER length at [12..15) and
// returns the DER certificate, clamping the end of the slice to the buffer
// length to tolerate truncated entries.
func extractLeafDER(leaf []byte) ([]byte, error) {
	if len(leaf) < 15 {
		return nil, ErrTruncated
	}

	length := uint24(leaf[12], leaf[13], leaf[14])
	end := 15 + length
	if end > len(leaf) {
		end = len(leaf)
	}

	if end <= 15 {
		return nil, ErrTruncated
	}

	return leaf[15:end], nil
}

// extractPrecertDER reads the 24-bit big-endian length at [0..3) of
// extra_data and returns the full DER certificate (carrying the CT poison
// extension) that follows.
func extractPrecertDER(extra []byte) ([]byte, error) {
	if len(extra) < 3 {
		return nil, ErrTruncated
	}

	length := uint24(extra[0], extra[1], extra[2])
	end := 3 + length
	if end > len(extra) {
		end = len(extra)
	}

	if end <= 3 {
		return nil, ErrTruncated
	}

	return extra[3:end], nil
}

func uint24(b0, b1, b2 byte) int {
	return int(b0)<<16 | int(b1)<<8 | int(b2)
}

// registrableDomains extracts the effective-TLD-plus-one for each domain,
// falling back to the domain itself when it's an IP or has no known
// public suffix. Purely informational; never affects matching or dedupe.
func registrableDomains(domains []string) []string {
	seen := make(map[string]bool, len(domains))
	result := make([]string, 0, len(domains))

	for _, d := range domains {
		host := strings.TrimPrefix(d, "*.")

		var reg string
		if net.ParseIP(host) != nil {
			reg = host
		} else if rd, err := psl.EffectiveTLDPlusOne(host); err == nil {
			reg = rd
		} else {
			reg = host
		}

		if !seen[reg] {
			seen[reg] = true
			result = append(result, reg)
		}
	}

	return result
}
