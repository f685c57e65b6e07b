// Package coordinator owns the shared queue, spawns one poller per log,
// and drains the queue on a single consumer that runs the dedupe →
// watchlist → root-filter → sink pipeline.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ct-watchtower/watchtower/internal/cursor"
	"github.com/ct-watchtower/watchtower/internal/dedupe"
	"github.com/ct-watchtower/watchtower/internal/health"
	"github.com/ct-watchtower/watchtower/internal/logclient"
	"github.com/ct-watchtower/watchtower/internal/metrics"
	"github.com/ct-watchtower/watchtower/internal/model"
	"github.com/ct-watchtower/watchtower/internal/poller"
	"github.com/ct-watchtower/watchtower/internal/rootfilter"
	"github.com/ct-watchtower/watchtower/internal/sink"
	"github.com/ct-watchtower/watchtower/internal/watchlist"
)

// queueCapacity is the shared bounded queue's fixed size, per §4.10.
const queueCapacity = 1000

// defaultStatsInterval is how often the coordinator logs a health summary
// when StatsInterval is unset.
const defaultStatsInterval = 5 * time.Minute

// Persister is the optional database-write collaborator; nil disables it.
type Persister interface {
	PersistMatch(ctx context.Context, rec model.MatchRecord) error
}

// Config bundles the Coordinator's collaborators.
type Config struct {
	LogURLs       []string
	Operators     map[string]string // log URL -> operator name, for metrics labeling only
	ClientFor     func(logURL string) *logclient.Client
	Cursor        cursor.Store
	Health        *health.Tracker
	Watchlist     *watchlist.Watchlist
	RootFilter    *rootfilter.Filter // nil disables root filtering
	DedupeEnabled bool
	Sinks         *sink.Fanout
	Persister     Persister // nil disables persistence
	PollerConfig  poller.Config
	Log           *logrus.Logger
	// StatsEnabled turns on the periodic health-summary log line (§7).
	StatsEnabled bool
	// StatsInterval overrides defaultStatsInterval when StatsEnabled is set.
	StatsInterval time.Duration
}

// Coordinator runs the full pipeline for the lifetime of a ctx.
type Coordinator struct {
	cfg    Config
	dedupe *dedupe.Set
	stats  Stats
	queue  chan model.CertificateRecord
}

// New constructs a Coordinator. Call Run to start it.
func New(cfg Config) *Coordinator {
	return &Coordinator{
		cfg:    cfg,
		dedupe: dedupe.New(),
		queue:  make(chan model.CertificateRecord, queueCapacity),
	}
}

// Run spawns one poller per configured log URL and drains the shared queue
// until every poller has exited (queue closed) or ctx is cancelled. Run
// blocks until shutdown completes and the final cursor flush is done.
func (c *Coordinator) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, url := range c.cfg.LogURLs {
		url := url

		pollerCfg := c.cfg.PollerConfig
		pollerCfg.Operator = c.cfg.Operators[url]

		p := poller.New(url, c.cfg.ClientFor(url), c.cfg.Cursor, c.cfg.Health, c.queue, pollerCfg, c.cfg.Log)

		wg.Add(1)

		go func() {
			defer wg.Done()
			p.Run(ctx)
		}()
	}

	done := make(chan struct{})

	go func() {
		wg.Wait()
		close(c.queue)
		close(done)
	}()

	statsInterval := c.cfg.StatsInterval
	if statsInterval <= 0 {
		statsInterval = defaultStatsInterval
	}

	summaryTicker := time.NewTicker(statsInterval)
	defer summaryTicker.Stop()

	for {
		select {
		case rec, ok := <-c.queue:
			if !ok {
				c.shutdown(ctx)
				return
			}

			c.process(ctx, rec)
		case <-summaryTicker.C:
			if c.cfg.StatsEnabled {
				c.logHealthSummary()
			}
		case <-ctx.Done():
			<-done
			c.shutdown(ctx)
			return
		}
	}
}

func (c *Coordinator) shutdown(ctx context.Context) {
	if err := c.cfg.Cursor.Flush(ctx); err != nil && c.cfg.Log != nil {
		c.cfg.Log.WithError(err).Warn("final cursor flush failed")
	}
}

// process runs one record through the §4.10 consumer-loop pipeline.
func (c *Coordinator) process(ctx context.Context, rec model.CertificateRecord) {
	c.stats.incProcessed()
	metrics.RecordProcessed()
	metrics.SetQueueDepth(len(c.queue))

	if c.cfg.DedupeEnabled && !c.dedupe.ShouldEmit(rec) {
		c.stats.incDropped()
		metrics.RecordDropped("dedupe")

		return
	}

	if len(rec.AllDomains) == 0 {
		c.stats.incDropped()
		metrics.RecordDropped("empty_domains")

		return
	}

	for _, d := range rec.AllDomains {
		if !c.cfg.Watchlist.MatchesDomain(d) {
			continue
		}

		if c.cfg.RootFilter != nil && !c.cfg.RootFilter.ShouldEmit(d) {
			continue
		}

		match := c.buildMatchRecord(rec, d)

		c.stats.incMatches()
		metrics.RecordMatch(match.ProgramName)

		if c.cfg.Sinks != nil {
			if err := c.cfg.Sinks.Emit(ctx, match); err != nil && c.cfg.Log != nil {
				c.cfg.Log.WithError(err).Warn("all sinks failed for match")
			}
		}

		if c.cfg.Persister != nil {
			if err := c.cfg.Persister.PersistMatch(ctx, match); err != nil && c.cfg.Log != nil {
				c.cfg.Log.WithError(err).Warn("persisting match failed")
			}
		}

		break
	}
}

func (c *Coordinator) buildMatchRecord(rec model.CertificateRecord, matchedDomain string) model.MatchRecord {
	program := c.cfg.Watchlist.ProgramForDomain(matchedDomain)

	m := model.MatchRecord{
		Timestamp:     time.Now(),
		MatchedDomain: matchedDomain,
		AllDomains:    rec.AllDomains,
		CertIndex:     rec.CertIndex,
		NotBefore:     rec.NotBefore,
		NotAfter:      rec.NotAfter,
		Fingerprint:   rec.Fingerprint,
		Issuer:        rec.Issuer,
		IsPrecert:     rec.IsPrecert,
		LogURL:        rec.LogURL,
		SeenAt:        rec.SeenAt,
	}

	if program != nil {
		m.ProgramName = program.Name
		m.Platform = program.Platform
	}

	return m
}

func (c *Coordinator) logHealthSummary() {
	if c.cfg.Log == nil {
		return
	}

	snap := c.stats.Snapshot()
	c.cfg.Log.WithFields(logrus.Fields{
		"processed": snap.Processed,
		"matches":   snap.Matches,
		"dropped":   snap.Dropped,
		"queue_len": len(c.queue),
	}).Info("coordinator health summary")

	for url, h := range c.cfg.Health.All() {
		if h.Status == health.Healthy {
			continue
		}

		fields := logrus.Fields{
			"log_url":              url,
			"status":               h.Status.String(),
			"consecutive_failures": h.ConsecutiveFailures,
			"backoff":              h.CurrentBackoff,
			"last_error":           h.LastErrorMessage,
		}

		c.cfg.Log.WithFields(fields).Warn("log unhealthy")
	}
}

// Stats returns a snapshot of the run's counters.
func (c *Coordinator) Stats() Snapshot {
	return c.stats.Snapshot()
}
