package watchlist

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchesPatternTable(t *testing.T) {
	require.True(t, matchesPattern("foo.example.com", "*.example.com"))
	require.False(t, matchesPattern("example.com", "*.example.com"), "wildcard pattern requires a subdomain")

	require.True(t, matchesPattern("example.com", ".example.com"))
	require.True(t, matchesPattern("foo.example.com", ".example.com"))

	require.True(t, matchesPattern("example.com", "example.com"))
	require.True(t, matchesPattern("foo.example.com", "example.com"))
	require.False(t, matchesPattern("notexample.com", "example.com"))
}

func TestMatchesDomainGlobalThenProgram(t *testing.T) {
	wl := New()
	wl.AddGlobalDomain("example.com")
	wl.AddDomainToProgram("other.test", "acme", "hackerone")

	require.True(t, wl.MatchesDomain("foo.example.com"))
	require.True(t, wl.MatchesDomain("other.test"))
	require.False(t, wl.MatchesDomain("unrelated.org"))
}

func TestMatchesDomainGlobalHostExactOnly(t *testing.T) {
	wl := New()
	wl.AddGlobalHost("exact.example.com")

	require.True(t, wl.MatchesDomain("exact.example.com"))
	require.False(t, wl.MatchesDomain("sub.exact.example.com"))
}

func TestProgramForDomainFirstMatchWins(t *testing.T) {
	wl := New()
	wl.AddDomainToProgram("shared.example.com", "first", "")
	wl.AddDomainToProgram("shared.example.com", "second", "")

	p := wl.ProgramForDomain("shared.example.com")
	require.NotNil(t, p)
	require.Equal(t, "first", p.Name)
}

func TestProgramForDomainNoneWhenOnlyGlobalMatches(t *testing.T) {
	wl := New()
	wl.AddGlobalDomain("example.com")
	wl.AddDomainToProgram("other.test", "acme", "")

	require.True(t, wl.MatchesDomain("example.com"))
	require.Nil(t, wl.ProgramForDomain("example.com"))
}

func TestAddDomainToProgramNoDuplicates(t *testing.T) {
	wl := New()
	wl.AddDomainToProgram("dup.example.com", "acme", "")
	wl.AddDomainToProgram("dup.example.com", "acme", "")

	p := wl.byName["acme"]
	require.Len(t, p.domains, 1)
}

func TestMatchesIPAndCIDR(t *testing.T) {
	wl := New()
	wl.AddGlobalIP(net.ParseIP("203.0.113.5"))

	_, network, err := net.ParseCIDR("198.51.100.0/24")
	require.NoError(t, err)
	wl.AddGlobalCIDR(network)

	require.True(t, wl.MatchesIP(net.ParseIP("203.0.113.5")))
	require.True(t, wl.MatchesIP(net.ParseIP("198.51.100.42")))
	require.False(t, wl.MatchesIP(net.ParseIP("192.0.2.1")))
}

func TestMatchesDomainCaseInsensitive(t *testing.T) {
	wl := New()
	wl.AddGlobalDomain("Example.COM")

	require.True(t, wl.MatchesDomain("FOO.EXAMPLE.COM"))
}
