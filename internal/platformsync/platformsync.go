// Package platformsync periodically pulls program scope (domains, hosts)
// from external bug-bounty platforms and writes them into the watchlist,
// the single writer §5 allows for that shared structure.
package platformsync

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ct-watchtower/watchtower/internal/watchlist"
)

// Program is one platform-reported scope entry.
type Program struct {
	Name     string
	Platform string
	Domains  []string
	Hosts    []string
}

// Source fetches current program scope from one external platform.
type Source interface {
	Name() string
	FetchPrograms(ctx context.Context) ([]Program, error)
}

// Manager periodically syncs every configured Source into a Watchlist.
type Manager struct {
	sources      []Source
	watchlist    *watchlist.Watchlist
	syncInterval time.Duration
	log          *logrus.Logger
}

// New creates a Manager. syncInterval <= 0 disables periodic sync; callers
// may still invoke SyncAll directly.
func New(sources []Source, wl *watchlist.Watchlist, syncInterval time.Duration, log *logrus.Logger) *Manager {
	return &Manager{sources: sources, watchlist: wl, syncInterval: syncInterval, log: log}
}

// Run syncs immediately, then on every syncInterval tick, until ctx is
// cancelled.
func (m *Manager) Run(ctx context.Context) {
	m.SyncAll(ctx)

	if m.syncInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(m.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SyncAll(ctx)
		}
	}
}

// SyncAll pulls every source's current program list and merges it into the
// watchlist. One source's failure is logged and does not block the others.
func (m *Manager) SyncAll(ctx context.Context) {
	for _, src := range m.sources {
		if err := m.syncOne(ctx, src); err != nil && m.log != nil {
			m.log.WithError(err).WithField("platform", src.Name()).Warn("platform sync failed")
		}
	}
}

func (m *Manager) syncOne(ctx context.Context, src Source) error {
	programs, err := src.FetchPrograms(ctx)
	if err != nil {
		return err
	}

	added := 0

	for _, p := range programs {
		for _, d := range p.Domains {
			m.watchlist.AddDomainToProgram(d, p.Name, p.Platform)
			added++
		}
	}

	if m.log != nil {
		m.log.WithFields(logrus.Fields{"platform": src.Name(), "programs": len(programs), "domains_added": added}).Info("platform sync complete")
	}

	return nil
}
