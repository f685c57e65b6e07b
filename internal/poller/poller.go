// Package poller drives the per-log state machine: fetch STH, compute a
// range, fetch and decode entries, push them onto the shared queue, and
// advance the cursor once each entry is accepted.
package poller

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ct-watchtower/watchtower/internal/cursor"
	"github.com/ct-watchtower/watchtower/internal/decode"
	"github.com/ct-watchtower/watchtower/internal/health"
	"github.com/ct-watchtower/watchtower/internal/logclient"
	"github.com/ct-watchtower/watchtower/internal/metrics"
	"github.com/ct-watchtower/watchtower/internal/model"
)

// Config holds the per-poller tunables, shared across all pollers of a run.
type Config struct {
	PollInterval  time.Duration
	BatchSize     int64
	MaxRetries    int
	ParsePrecerts bool
	// CAOwners optionally enriches each decoded record with its issuing
	// CA's CCADB-reported owner. Nil disables enrichment.
	CAOwners map[string]string
	// Operator labels this log's entries in the per-operator metrics
	// counter. Empty is fine — it just groups under an empty label.
	Operator string
}

// Poller runs one log's IDLE→FETCH_STH→...→SLEEP loop until ctx is cancelled.
type Poller struct {
	logURL string
	client *logclient.Client
	cursor cursor.Store
	health *health.Tracker
	queue  chan<- model.CertificateRecord
	cfg    Config
	log    *logrus.Logger
}

// New creates a Poller for one log. queue is the shared producer handle;
// the poller never closes it.
func New(logURL string, client *logclient.Client, store cursor.Store, tracker *health.Tracker, queue chan<- model.CertificateRecord, cfg Config, log *logrus.Logger) *Poller {
	return &Poller{
		logURL: logURL,
		client: client,
		cursor: store,
		health: tracker,
		queue:  queue,
		cfg:    cfg,
		log:    log,
	}
}

// Run blocks until ctx is cancelled, running the poll cycle on a fixed
// interval gated by the health tracker.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if p.health.ShouldPoll(p.logURL) {
			p.cycle(ctx)
		}

		if !p.sleep(ctx) {
			return
		}
	}
}

// sleep waits one poll interval, returning false if ctx was cancelled
// during the wait.
func (p *Poller) sleep(ctx context.Context) bool {
	timer := time.NewTimer(p.cfg.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// cycle runs one FETCH_STH → COMPUTE_RANGE → FETCH_RANGE → DECODE_ENTRIES →
// EMIT_AND_ADVANCE pass. Any step failure records a health failure and
// returns without advancing further than entries already accepted.
func (p *Poller) cycle(ctx context.Context) {
	sth, err := p.fetchSTH(ctx)
	if err != nil {
		p.health.RecordFailure(p.logURL, err.Error())
		return
	}

	start, ok, err := p.cursor.Load(ctx, p.logURL)
	if err != nil {
		p.log.WithError(err).WithField("log_url", p.logURL).Warn("cursor load failed, treating as empty")
		ok = false
	}

	if !ok {
		// No stored cursor: start at the current tip and persist it, so the
		// next cycle fetches whatever the log has appended since.
		start = int64(sth.TreeSize)

		if advErr := p.cursor.Advance(ctx, p.logURL, start); advErr != nil && p.log != nil {
			p.log.WithError(advErr).Warn("cursor advance failed")
		}
	}

	treeSize := int64(sth.TreeSize)
	if start >= treeSize {
		p.health.RecordSuccess(p.logURL)
		return
	}

	end := start + p.cfg.BatchSize - 1
	if end > treeSize-1 {
		end = treeSize - 1
	}

	entries, err := p.fetchEntries(ctx, start, end)
	if err != nil {
		p.health.RecordFailure(p.logURL, err.Error())
		return
	}

	if err := p.emitAndAdvance(ctx, start, entries); err != nil {
		if p.log != nil {
			p.log.WithError(err).WithField("log_url", p.logURL).Info("poller exiting: shutdown signaled")
		}

		return
	}

	p.health.RecordSuccess(p.logURL)
}

func (p *Poller) fetchSTH(ctx context.Context) (ctSTH, error) {
	var result ctSTH

	err := logclient.WithRetry(ctx, p.cfg.MaxRetries, func() error {
		s, e := p.client.GetSTH(ctx)
		if e != nil {
			return e
		}

		result.TreeSize = s.TreeSize

		return nil
	})

	return result, err
}

type ctSTH struct {
	TreeSize uint64
}

func (p *Poller) fetchEntries(ctx context.Context, start, end int64) ([]rawEntry, error) {
	var out []rawEntry

	retryErr := logclient.WithRetry(ctx, p.cfg.MaxRetries, func() error {
		entries, e := p.client.GetEntries(ctx, start, end)
		if e != nil {
			return e
		}

		out = make([]rawEntry, len(entries))
		for i, ent := range entries {
			out[i] = rawEntry{LeafInput: ent.LeafInput, ExtraData: ent.ExtraData}
		}

		return nil
	})

	return out, retryErr
}

type rawEntry struct {
	LeafInput string
	ExtraData string
}

// emitAndAdvance decodes each entry in order, skipping decode failures, and
// advances the cursor past each entry only after it's been accepted by the
// shared queue.
func (p *Poller) emitAndAdvance(ctx context.Context, start int64, entries []rawEntry) error {
	opts := decode.Options{ParsePrecerts: p.cfg.ParsePrecerts, CAOwners: p.cfg.CAOwners}

	for i, raw := range entries {
		index := start + int64(i)

		rec, err := decode.Decode(raw.LeafInput, raw.ExtraData, index, p.logURL, opts)
		if err != nil {
			if p.log != nil {
				p.log.WithError(err).WithField("log_url", p.logURL).WithField("cert_index", index).Debug("skipping entry")
			}

			if advErr := p.cursor.Advance(ctx, p.logURL, index+1); advErr != nil && p.log != nil {
				p.log.WithError(advErr).Warn("cursor advance failed")
			}

			continue
		}

		metrics.RecordEntry(p.cfg.Operator, p.logURL)

		select {
		case p.queue <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := p.cursor.Advance(ctx, p.logURL, index+1); err != nil && p.log != nil {
			p.log.WithError(err).Warn("cursor advance failed")
		}
	}

	return nil
}
