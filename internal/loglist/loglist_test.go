package loglist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectedUsableAndQualifiedAlwaysIncluded(t *testing.T) {
	require.True(t, selected(LogDescriptor{URL: "https://a/", State: StateUsable}, Options{}))
	require.True(t, selected(LogDescriptor{URL: "https://a/", State: StateQualified}, Options{}))
	require.False(t, selected(LogDescriptor{URL: "https://a/", State: StateReadonly}, Options{}))
	require.False(t, selected(LogDescriptor{URL: "https://a/", State: StatePending}, Options{}))
}

func TestSelectedReadonlyRequiresFlag(t *testing.T) {
	d := LogDescriptor{URL: "https://a/", State: StateReadonly}
	require.False(t, selected(d, Options{}))
	require.True(t, selected(d, Options{IncludeReadonly: true}))
}

func TestSelectedPendingRequiresFlag(t *testing.T) {
	d := LogDescriptor{URL: "https://a/", State: StatePending}
	require.False(t, selected(d, Options{}))
	require.True(t, selected(d, Options{IncludePending: true}))
}

func TestSelectedIncludeAllOverridesEverything(t *testing.T) {
	d := LogDescriptor{URL: "https://a/", State: StateRetired}
	require.True(t, selected(d, Options{IncludeAll: true}))
}

func TestSelectedRejectsEmptyURL(t *testing.T) {
	require.False(t, selected(LogDescriptor{State: StateUsable}, Options{}))
}

func TestMergeAdditionalDedupesByExactURL(t *testing.T) {
	chosen := []LogDescriptor{{URL: "https://a.example"}}
	merged := mergeAdditional(chosen, []string{"https://a.example/", "https://b.example"})

	require.Len(t, merged, 2)
}

func TestSelectCustomLogsReplacesManifest(t *testing.T) {
	opts := Options{CustomLogs: []string{"https://custom.example/"}}
	got := Select(nil, opts)

	require.Len(t, got, 1)
	require.Equal(t, "https://custom.example", got[0].URL)
}

func TestSelectTruncatesToMaxConcurrent(t *testing.T) {
	opts := Options{CustomLogs: []string{"https://a", "https://b", "https://c"}, MaxConcurrent: 2}
	got := Select(nil, opts)
	require.Len(t, got, 2)
}

func TestNormalizeURLStripsTrailingSlash(t *testing.T) {
	require.Equal(t, "https://log.example", NormalizeURL("https://log.example/"))
	require.Equal(t, "https://log.example", NormalizeURL("https://log.example"))
}
