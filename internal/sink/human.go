package sink

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ct-watchtower/watchtower/internal/model"
)

// Human writes one line per match, optionally with ANSI color.
type Human struct {
	w     io.Writer
	color bool
}

// NewHuman creates a Human sink writing to w. color enables ANSI
// highlighting of the matched domain and program name.
func NewHuman(w io.Writer, color bool) *Human {
	return &Human{w: w, color: color}
}

const (
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiReset  = "\x1b[0m"
)

func (h *Human) Emit(_ context.Context, rec model.MatchRecord) error {
	domain := rec.MatchedDomain
	program := rec.ProgramName

	if h.color {
		domain = ansiGreen + domain + ansiReset

		if program != "" {
			program = ansiYellow + program + ansiReset
		}
	}

	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", rec.Timestamp.Format("2006-01-02T15:04:05Z07:00"), domain)

	if program != "" {
		fmt.Fprintf(&b, " (%s)", program)
	}

	fmt.Fprintf(&b, " idx=%d fp=%s", rec.CertIndex, rec.Fingerprint)

	if len(rec.AllDomains) > 1 {
		fmt.Fprintf(&b, " all=%s", strings.Join(rec.AllDomains, ","))
	}

	b.WriteByte('\n')

	_, err := io.WriteString(h.w, b.String())

	return err
}

func (h *Human) Flush(context.Context) error { return nil }
