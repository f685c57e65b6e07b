package metrics

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetQueueDepthPublishesCurrentValue(t *testing.T) {
	SetQueueDepth(42)

	var buf bytes.Buffer
	WritePrometheus(&buf)

	require.Contains(t, buf.String(), "ctwatchtower_queue_depth 42")

	SetQueueDepth(7)

	buf.Reset()
	WritePrometheus(&buf)
	require.Contains(t, buf.String(), "ctwatchtower_queue_depth 7")
}

func TestSetLogHealthPublishesPerLogGauge(t *testing.T) {
	SetLogHealth("https://log.example/ct", 2)

	var buf bytes.Buffer
	WritePrometheus(&buf)

	out := buf.String()
	require.True(t, strings.Contains(out, `ctwatchtower_log_health{log_url="https://log.example/ct"} 2`))

	SetLogHealth("https://log.example/ct", 0)

	buf.Reset()
	WritePrometheus(&buf)
	require.Contains(t, buf.String(), `ctwatchtower_log_health{log_url="https://log.example/ct"} 0`)
}

func TestRecordEntryAndRecordMatchIncrementCounters(t *testing.T) {
	RecordEntry("Let's Encrypt", "https://oak.example/ct")
	RecordMatch("acme-corp")
	RecordProcessed()
	RecordDropped("dedupe")

	var buf bytes.Buffer
	WritePrometheus(&buf)

	out := buf.String()
	require.Contains(t, out, "ctwatchtower_entries_total")
	require.Contains(t, out, "ctwatchtower_matches_total")
	require.Contains(t, out, "ctwatchtower_processed_total")
	require.Contains(t, out, "ctwatchtower_dropped_total")
}
