// Package health tracks per-log poll health and the exponential backoff
// schedule that governs when a failed log may be polled again. Degraded
// logs keep polling on every cycle.
package health

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ct-watchtower/watchtower/internal/metrics"
)

// Status is the derived health state of a log.
type Status int

const (
	Healthy Status = iota
	Degraded
	Failed
)

func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureThreshold is T in the backoff law: consecutive_failures >= T means Failed.
const FailureThreshold = 3

// maxBackoff caps the exponential backoff schedule at one hour.
const maxBackoff = time.Hour

// LogHealth is a snapshot of one log's health state.
type LogHealth struct {
	Status              Status
	ConsecutiveFailures int
	LastSuccessTime     time.Time
	LastFailureTime     time.Time
	LastErrorMessage    string
	CurrentBackoff      time.Duration
}

type entry struct {
	mu     sync.Mutex
	health LogHealth
}

// Tracker is the shared, per-log-URL health map. Many readers, single
// writer per log URL; each log URL's critical section is short.
type Tracker struct {
	log *logrus.Logger

	mu   sync.RWMutex
	byURL map[string]*entry
}

// NewTracker creates an empty Tracker.
func NewTracker(log *logrus.Logger) *Tracker {
	return &Tracker{
		log:   log,
		byURL: make(map[string]*entry),
	}
}

func (t *Tracker) entryFor(url string) *entry {
	t.mu.RLock()
	e, ok := t.byURL[url]
	t.mu.RUnlock()

	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok = t.byURL[url]; ok {
		return e
	}

	e = &entry{}
	t.byURL[url] = e

	return e
}

// BackoffFor returns the backoff duration after k consecutive failures.
func BackoffFor(k int) time.Duration {
	if k <= 0 {
		return 0
	}

	d := time.Duration(60) * time.Second * time.Duration(1<<uint(k-1))
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}

	return d
}

func deriveStatus(consecutiveFailures int) Status {
	switch {
	case consecutiveFailures == 0:
		return Healthy
	case consecutiveFailures < FailureThreshold:
		return Degraded
	default:
		return Failed
	}
}

// RecordSuccess resets all counters for the log and returns it to Healthy.
func (t *Tracker) RecordSuccess(url string) {
	e := t.entryFor(url)

	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.health.Status
	e.health.ConsecutiveFailures = 0
	e.health.CurrentBackoff = 0
	e.health.LastSuccessTime = time.Now()
	e.health.LastErrorMessage = ""
	e.health.Status = Healthy

	metrics.SetLogHealth(url, int(e.health.Status))

	if prev == Failed && t.log != nil {
		t.log.WithField("log_url", url).Info("log recovered, resuming normal polling")
	}
}

// RecordFailure increments the failure counter, recomputes status and
// backoff, and logs the transition at the appropriate level.
func (t *Tracker) RecordFailure(url, message string) {
	e := t.entryFor(url)

	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.health.Status
	e.health.ConsecutiveFailures++
	e.health.LastFailureTime = time.Now()
	e.health.LastErrorMessage = message
	e.health.CurrentBackoff = BackoffFor(e.health.ConsecutiveFailures)
	e.health.Status = deriveStatus(e.health.ConsecutiveFailures)

	metrics.SetLogHealth(url, int(e.health.Status))

	if t.log == nil {
		return
	}

	fields := logrus.Fields{"log_url": url, "consecutive_failures": e.health.ConsecutiveFailures, "error": message}

	switch {
	case prev != Degraded && e.health.Status == Degraded:
		t.log.WithFields(fields).Warn("log health degraded")
	case prev != Failed && e.health.Status == Failed:
		fields["backoff"] = e.health.CurrentBackoff
		t.log.WithFields(fields).Warn("log marked failed, backing off")
	default:
		t.log.WithFields(fields).Debug("log poll failed")
	}
}

// ShouldPoll reports whether the log may be polled now.
func (t *Tracker) ShouldPoll(url string) bool {
	e := t.entryFor(url)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.health.Status != Failed {
		return true
	}

	return time.Since(e.health.LastFailureTime) >= e.health.CurrentBackoff
}

// Snapshot returns a copy of one log's current health.
func (t *Tracker) Snapshot(url string) LogHealth {
	e := t.entryFor(url)

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.health
}

// All returns a copy of every tracked log's health, keyed by URL. Used by
// the periodic health summary.
func (t *Tracker) All() map[string]LogHealth {
	t.mu.RLock()
	urls := make([]string, 0, len(t.byURL))
	entries := make([]*entry, 0, len(t.byURL))

	for url, e := range t.byURL {
		urls = append(urls, url)
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	result := make(map[string]LogHealth, len(urls))

	for i, url := range urls {
		e := entries[i]
		e.mu.Lock()
		result[url] = e.health
		e.mu.Unlock()
	}

	return result
}
