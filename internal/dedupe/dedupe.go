// Package dedupe suppresses repeat emissions of the same certificate by
// cert index or fingerprint.
package dedupe

import (
	"fmt"
	"sync"

	"github.com/ct-watchtower/watchtower/internal/model"
)

// Set is a grow-only set of dedupe keys. Safe for concurrent use; the
// contract tolerates false negatives after an external eviction (none
// performed here) but never false positives.
type Set struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates an empty Set.
func New() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// KeyFor computes the DedupeKey for a record per §3: idx:<log_url>:<index>
// when cert_index is known, else fp:<fingerprint>, else always-unique.
// A non-empty LogURL stands in for "cert_index is known", since the decoder
// always sets the log URL and the index together.
func KeyFor(rec model.CertificateRecord) (key string, alwaysUnique bool) {
	if rec.LogURL != "" {
		return fmt.Sprintf("idx:%s:%d", rec.LogURL, rec.CertIndex), false
	}

	if rec.Fingerprint != "" {
		return fmt.Sprintf("fp:%s", rec.Fingerprint), false
	}

	return "", true
}

// ShouldEmit computes the record's key and atomically checks-then-inserts.
// Records with no stable key are always emitted.
func (s *Set) ShouldEmit(rec model.CertificateRecord) bool {
	key, alwaysUnique := KeyFor(rec)
	if alwaysUnique {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}

	s.seen[key] = struct{}{}

	return true
}

// Len reports the number of distinct keys seen so far.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.seen)
}
