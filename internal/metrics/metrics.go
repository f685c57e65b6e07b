// Package metrics exposes run counters and gauges via VictoriaMetrics'
// metrics library, in the same style the upstream certstream server wires
// its per-operator counters.
package metrics

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
)

var queueDepth int64

var queueDepthOnce sync.Once

// RecordEntry increments the per-operator, per-log entry counter.
func RecordEntry(operator, logURL string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`ctwatchtower_entries_total{operator=%q,log_url=%q}`, operator, logURL)).Inc()
}

// RecordMatch increments the per-program match counter.
func RecordMatch(program string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`ctwatchtower_matches_total{program=%q}`, program)).Inc()
}

// RecordProcessed increments the total-processed counter, regardless of
// whether the record matched anything.
func RecordProcessed() {
	metrics.GetOrCreateCounter(`ctwatchtower_processed_total`).Inc()
}

// RecordDropped increments the dropped-before-match counter, tagged by
// reason (dedupe, empty_domains).
func RecordDropped(reason string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`ctwatchtower_dropped_total{reason=%q}`, reason)).Inc()
}

// SetQueueDepth publishes the shared queue's current length.
func SetQueueDepth(depth int) {
	queueDepthOnce.Do(func() {
		metrics.GetOrCreateGauge(`ctwatchtower_queue_depth`, func() float64 {
			return float64(atomic.LoadInt64(&queueDepth))
		})
	})

	atomic.StoreInt64(&queueDepth, int64(depth))
}

var logHealthGauges sync.Map // log URL -> *int64

// SetLogHealth publishes a log's health as 0 (healthy), 1 (degraded), or 2 (failed).
func SetLogHealth(logURL string, status int) {
	v, loaded := logHealthGauges.LoadOrStore(logURL, new(int64))
	statusPtr := v.(*int64)

	atomic.StoreInt64(statusPtr, int64(status))

	if !loaded {
		metrics.GetOrCreateGauge(fmt.Sprintf(`ctwatchtower_log_health{log_url=%q}`, logURL), func() float64 {
			return float64(atomic.LoadInt64(statusPtr))
		})
	}
}

// WritePrometheus writes every registered metric in Prometheus exposition
// format to w, for use by the status server's /metrics handler.
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, true)
}
