package sink

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ct-watchtower/watchtower/internal/model"
)

// CSV writes one row per match, writing the header only before the first
// row. Fields containing a comma, quote, or newline are quoted per RFC 4180.
type CSV struct {
	mu          sync.Mutex
	w           io.Writer
	wroteHeader bool
}

func NewCSV(w io.Writer) *CSV {
	return &CSV{w: w}
}

var csvHeader = []string{
	"timestamp", "matched_domain", "all_domains", "cert_index",
	"not_before", "not_after", "fingerprint", "program_name",
	"platform", "issuer", "is_precert", "log_url",
}

func (c *CSV) Emit(_ context.Context, rec model.MatchRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.wroteHeader {
		if _, err := io.WriteString(c.w, strings.Join(csvHeader, ",")+"\n"); err != nil {
			return err
		}

		c.wroteHeader = true
	}

	fields := []string{
		rec.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		rec.MatchedDomain,
		strings.Join(rec.AllDomains, ";"),
		fmt.Sprintf("%d", rec.CertIndex),
		formatTimeOrEmpty(rec.NotBefore),
		formatTimeOrEmpty(rec.NotAfter),
		rec.Fingerprint,
		rec.ProgramName,
		rec.Platform,
		rec.Issuer,
		fmt.Sprintf("%t", rec.IsPrecert),
		rec.LogURL,
	}

	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = csvEscape(f)
	}

	_, err := io.WriteString(c.w, strings.Join(escaped, ",")+"\n")

	return err
}

func (c *CSV) Flush(context.Context) error { return nil }

func csvEscape(field string) string {
	if strings.ContainsAny(field, ",\"\n") {
		return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}

	return field
}

func formatTimeOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format("2006-01-02T15:04:05Z07:00")
}
