package sink

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/ct-watchtower/watchtower/internal/model"
)

// JSONLines writes one JSON object per line, matching the §6 webhook
// payload shape plus platform, issuer, is_precert and log_url. SeenAt is
// not written.
type JSONLines struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{w: w}
}

type jsonLinePayload struct {
	MatchedDomain string   `json:"matched_domain"`
	AllDomains    []string `json:"all_domains"`
	CertIndex     int64    `json:"cert_index"`
	NotBefore     string   `json:"not_before,omitempty"`
	NotAfter      string   `json:"not_after,omitempty"`
	Fingerprint   string   `json:"fingerprint"`
	ProgramName   string   `json:"program_name,omitempty"`
	Platform      string   `json:"platform,omitempty"`
	Issuer        string   `json:"issuer,omitempty"`
	IsPrecert     bool     `json:"is_precert"`
	LogURL        string   `json:"log_url"`
	Timestamp     string   `json:"timestamp"`
}

func toPayload(rec model.MatchRecord) jsonLinePayload {
	return jsonLinePayload{
		MatchedDomain: rec.MatchedDomain,
		AllDomains:    rec.AllDomains,
		CertIndex:     rec.CertIndex,
		NotBefore:     formatTimeOrEmpty(rec.NotBefore),
		NotAfter:      formatTimeOrEmpty(rec.NotAfter),
		Fingerprint:   rec.Fingerprint,
		ProgramName:   rec.ProgramName,
		Platform:      rec.Platform,
		Issuer:        rec.Issuer,
		IsPrecert:     rec.IsPrecert,
		LogURL:        rec.LogURL,
		Timestamp:     rec.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (j *JSONLines) Emit(_ context.Context, rec model.MatchRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	enc := json.NewEncoder(j.w)

	return enc.Encode(toPayload(rec))
}

func (j *JSONLines) Flush(context.Context) error { return nil }
