package health

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ct-watchtower/watchtower/internal/metrics"
)

func TestBackoffForLaw(t *testing.T) {
	require.Equal(t, time.Duration(0), BackoffFor(0))
	require.Equal(t, 60*time.Second, BackoffFor(1))
	require.Equal(t, 120*time.Second, BackoffFor(2))
	require.Equal(t, 240*time.Second, BackoffFor(3))
	require.Equal(t, 480*time.Second, BackoffFor(4))
	require.Equal(t, time.Hour, BackoffFor(20))
}

// TestThreeFailuresReachesFailedWith240sBackoff covers the S4 scenario: three
// consecutive failures flips the log to Failed with a 240s backoff, and
// ShouldPoll refuses right after the third failure. TestShouldPollBoundary
// covers the 239s/241s edges.
func TestThreeFailuresReachesFailedWith240sBackoff(t *testing.T) {
	tr := NewTracker(nil)

	tr.RecordFailure("log", "timeout")
	tr.RecordFailure("log", "timeout")
	tr.RecordFailure("log", "timeout")

	snap := tr.Snapshot("log")
	require.Equal(t, Failed, snap.Status)
	require.Equal(t, 3, snap.ConsecutiveFailures)
	require.Equal(t, 240*time.Second, snap.CurrentBackoff)

	// Force the clock backward by rewriting LastFailureTime directly isn't
	// exposed; instead verify the boundary via ShouldPoll immediately after
	// the third failure (elapsed ~= 0s, well under 240s) and via a
	// synthetic Tracker state at the edges.
	require.False(t, tr.ShouldPoll("log"))
}

func TestShouldPollBoundary(t *testing.T) {
	tr := NewTracker(nil)
	e := tr.entryFor("log")

	e.mu.Lock()
	e.health.Status = Failed
	e.health.ConsecutiveFailures = 3
	e.health.CurrentBackoff = 240 * time.Second
	e.health.LastFailureTime = time.Now().Add(-239 * time.Second)
	e.mu.Unlock()

	require.False(t, tr.ShouldPoll("log"))

	e.mu.Lock()
	e.health.LastFailureTime = time.Now().Add(-241 * time.Second)
	e.mu.Unlock()

	require.True(t, tr.ShouldPoll("log"))
}

func TestRecordSuccessResetsToHealthy(t *testing.T) {
	tr := NewTracker(nil)

	tr.RecordFailure("log", "err")
	tr.RecordFailure("log", "err")
	tr.RecordFailure("log", "err")
	require.Equal(t, Failed, tr.Snapshot("log").Status)

	tr.RecordSuccess("log")

	snap := tr.Snapshot("log")
	require.Equal(t, Healthy, snap.Status)
	require.Equal(t, 0, snap.ConsecutiveFailures)
	require.Equal(t, time.Duration(0), snap.CurrentBackoff)
}

func TestDegradedBeforeFailed(t *testing.T) {
	tr := NewTracker(nil)

	tr.RecordFailure("log", "err")
	require.Equal(t, Degraded, tr.Snapshot("log").Status)
	require.True(t, tr.ShouldPoll("log"), "degraded logs still poll immediately")

	tr.RecordFailure("log", "err")
	require.Equal(t, Degraded, tr.Snapshot("log").Status)
}

func TestUntrackedLogIsHealthyAndPollable(t *testing.T) {
	tr := NewTracker(nil)
	require.True(t, tr.ShouldPoll("unknown-log"))
	require.Equal(t, Healthy, tr.Snapshot("unknown-log").Status)
}

func TestRecordFailureAndSuccessPublishLogHealthGauge(t *testing.T) {
	tr := NewTracker(nil)
	const url = "https://gauge-test.example/ct"

	tr.RecordFailure(url, "err")
	tr.RecordFailure(url, "err")
	tr.RecordFailure(url, "err")

	var buf bytes.Buffer
	metrics.WritePrometheus(&buf)
	require.Contains(t, buf.String(), `ctwatchtower_log_health{log_url="`+url+`"} 2`)

	tr.RecordSuccess(url)

	buf.Reset()
	metrics.WritePrometheus(&buf)
	require.Contains(t, buf.String(), `ctwatchtower_log_health{log_url="`+url+`"} 0`)
}

func TestAllReturnsEveryTrackedLog(t *testing.T) {
	tr := NewTracker(nil)
	tr.RecordFailure("a", "x")
	tr.RecordSuccess("b")

	all := tr.All()
	require.Len(t, all, 2)
	require.Contains(t, all, "a")
	require.Contains(t, all, "b")
}
