// Package loglist fetches the public CT log manifest and selects which
// logs a run should monitor.
package loglist

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/certificate-transparency-go/loglist3"
)

// LifecycleState mirrors the loglist3 per-log lifecycle sub-states.
type LifecycleState string

const (
	StateUsable   LifecycleState = "usable"
	StateQualified LifecycleState = "qualified"
	StateReadonly LifecycleState = "readonly"
	StatePending  LifecycleState = "pending"
	StateRetired  LifecycleState = "retired"
	StateRejected LifecycleState = "rejected"
	StateUnknown  LifecycleState = "unknown"
)

// LogDescriptor is one monitored log, immutable for the lifetime of a run.
type LogDescriptor struct {
	URL          string
	Description  string
	OperatorName string
	State        LifecycleState
}

// Options controls manifest selection, per §4.4.
type Options struct {
	IncludeReadonly bool
	IncludeAll      bool
	IncludePending  bool
	AdditionalLogs  []string
	CustomLogs      []string
	MaxConcurrent   int
}

// FetchManifest downloads and parses the public log-list manifest at url.
func FetchManifest(ctx context.Context, url string) (*loglist3.LogList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("loglist: build request: %w", err)
	}

	hc := &http.Client{Timeout: 30 * time.Second}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("loglist: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("loglist: manifest fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("loglist: read body: %w", err)
	}

	list, err := loglist3.NewFromJSON(body)
	if err != nil {
		return nil, fmt.Errorf("loglist: parse manifest: %w", err)
	}

	return list, nil
}

// descriptorsFromManifest flattens the operator/log tree into descriptors,
// deriving each log's lifecycle sub-state.
func descriptorsFromManifest(list *loglist3.LogList) []LogDescriptor {
	var out []LogDescriptor

	for _, operator := range list.Operators {
		for _, l := range operator.Logs {
			out = append(out, LogDescriptor{
				URL:          NormalizeURL(l.URL),
				Description:  l.Description,
				OperatorName: operator.Name,
				State:        stateOf(l),
			})
		}
	}

	return out
}

func stateOf(l *loglist3.Log) LifecycleState {
	if l.State == nil {
		return StateUnknown
	}

	switch {
	case l.State.Usable != nil:
		return StateUsable
	case l.State.Qualified != nil:
		return StateQualified
	case l.State.Readonly != nil:
		return StateReadonly
	case l.State.Pending != nil:
		return StatePending
	case l.State.Retired != nil:
		return StateRetired
	case l.State.Rejected != nil:
		return StateRejected
	default:
		return StateUnknown
	}
}

// selected reports whether a descriptor is chosen per §4.4's boolean logic.
func selected(d LogDescriptor, opts Options) bool {
	if d.URL == "" {
		return false
	}

	if opts.IncludeAll {
		return true
	}

	if d.State == StateUsable || d.State == StateQualified {
		return true
	}

	if opts.IncludeReadonly && d.State == StateReadonly {
		return true
	}

	if opts.IncludePending && d.State == StatePending {
		return true
	}

	return false
}

// Select applies the §4.4 selection function to a fetched manifest, merges
// additional_logs, applies the custom_logs replace mode, and truncates to
// max_concurrent_logs.
func Select(list *loglist3.LogList, opts Options) []LogDescriptor {
	var chosen []LogDescriptor

	if len(opts.CustomLogs) > 0 {
		for _, url := range opts.CustomLogs {
			chosen = append(chosen, LogDescriptor{URL: NormalizeURL(url), State: StateUsable})
		}
	} else {
		for _, d := range descriptorsFromManifest(list) {
			if selected(d, opts) {
				chosen = append(chosen, d)
			}
		}

		chosen = mergeAdditional(chosen, opts.AdditionalLogs)
	}

	if opts.MaxConcurrent > 0 && len(chosen) > opts.MaxConcurrent {
		chosen = chosen[:opts.MaxConcurrent]
	}

	return chosen
}

func mergeAdditional(chosen []LogDescriptor, additional []string) []LogDescriptor {
	seen := make(map[string]bool, len(chosen))
	for _, d := range chosen {
		seen[d.URL] = true
	}

	for _, raw := range additional {
		url := NormalizeURL(raw)
		if seen[url] {
			continue
		}

		seen[url] = true
		chosen = append(chosen, LogDescriptor{URL: url, State: StateUsable})
	}

	return chosen
}

// NormalizeURL strips a trailing slash, keeping the scheme intact: the
// canonical get-sth/get-entries base.
func NormalizeURL(url string) string {
	return strings.TrimSuffix(url, "/")
}
