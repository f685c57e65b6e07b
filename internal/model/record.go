// Package model holds the data shapes shared across the decode, watchlist,
// coordinator and sink packages.
package model

import "time"

// CertificateRecord is a decoded CT log entry, normalized from the
// MerkleTreeLeaf / precertificate wire layout into the fields the rest of
// the pipeline consumes.
type CertificateRecord struct {
	AllDomains           []string
	CertIndex            int64
	LogURL               string
	SeenAt               time.Time
	NotBefore            time.Time
	NotAfter             time.Time
	Fingerprint          string
	Issuer               string
	IsPrecert            bool
	RegisterableDomains  []string
	// CAOwner is the CCADB-reported owner of the issuing CA, keyed by
	// Authority Key Identifier. Empty when enrichment is disabled or the
	// AKI isn't in the current CCADB snapshot.
	CAOwner string
}

// MatchRecord is the result emitted for a certificate whose SAN/CN matched
// the watchlist.
type MatchRecord struct {
	Timestamp     time.Time
	MatchedDomain string
	AllDomains    []string
	CertIndex     int64
	NotBefore     time.Time
	NotAfter      time.Time
	Fingerprint   string
	ProgramName   string
	Platform      string
	Issuer        string
	IsPrecert     bool
	LogURL        string
	SeenAt        time.Time
}
