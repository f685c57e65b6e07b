package platformsync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ct-watchtower/watchtower/internal/watchlist"
)

type stubSource struct {
	name     string
	programs []Program
	err      error
}

func (s *stubSource) Name() string { return s.name }
func (s *stubSource) FetchPrograms(context.Context) ([]Program, error) {
	return s.programs, s.err
}

func TestSyncAllAddsDomainsToWatchlist(t *testing.T) {
	wl := watchlist.New()
	src := &stubSource{name: "hackerone", programs: []Program{
		{Name: "acme", Platform: "hackerone", Domains: []string{"acme.example"}},
	}}

	m := New([]Source{src}, wl, 0, nil)
	m.SyncAll(context.Background())

	p := wl.ProgramForDomain("acme.example")
	require.NotNil(t, p)
	require.Equal(t, "acme", p.Name)
	require.Equal(t, "hackerone", p.Platform)
}

func TestSyncAllIsolatesFailingSource(t *testing.T) {
	wl := watchlist.New()
	failing := &stubSource{name: "broken", err: errors.New("down")}
	good := &stubSource{name: "ok", programs: []Program{{Name: "p", Domains: []string{"p.example"}}}}

	m := New([]Source{failing, good}, wl, 0, nil)
	m.SyncAll(context.Background())

	require.NotNil(t, wl.ProgramForDomain("p.example"))
}
