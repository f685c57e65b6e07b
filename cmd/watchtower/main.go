// Command watchtower monitors public Certificate Transparency logs for
// certificates naming domains on a configured watchlist.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/ct-watchtower/watchtower/internal/config"
	"github.com/ct-watchtower/watchtower/internal/coordinator"
	"github.com/ct-watchtower/watchtower/internal/cursor"
	"github.com/ct-watchtower/watchtower/internal/decode"
	"github.com/ct-watchtower/watchtower/internal/health"
	"github.com/ct-watchtower/watchtower/internal/logclient"
	"github.com/ct-watchtower/watchtower/internal/loglist"
	"github.com/ct-watchtower/watchtower/internal/poller"
	"github.com/ct-watchtower/watchtower/internal/rootfilter"
	"github.com/ct-watchtower/watchtower/internal/sink"
	"github.com/ct-watchtower/watchtower/internal/statusserver"
	"github.com/ct-watchtower/watchtower/internal/storage"
	"github.com/ct-watchtower/watchtower/internal/watchlist"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("watchtower", pflag.ExitOnError)
	flags := config.BindFlags(fs)
	statusAddr := fs.String("status-addr", "", "optional address to serve /healthz, /metrics, /ws on (e.g. :8080)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}

	flags.Apply(&cfg)

	log := newLogger(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wl := buildWatchlist(cfg.Watchlist)

	var rf *rootfilter.Filter
	if cfg.RootFilter.Enabled {
		rf, err = rootfilter.FromFile(cfg.RootFilter.File)
		if err != nil {
			return fmt.Errorf("root filter: %w", err)
		}
	}

	cursorStore, err := buildCursorStore(ctx, cfg)
	if err != nil {
		return err
	}

	manifest, err := loglist.FetchManifest(ctx, cfg.CTLogs.LogListURL)
	if err != nil && len(cfg.CTLogs.CustomLogs) == 0 {
		return fmt.Errorf("log discovery: %w", err)
	}

	logs := loglist.Select(manifest, loglist.Options{
		IncludeReadonly: cfg.CTLogs.IncludeReadonly,
		IncludeAll:      cfg.CTLogs.IncludeAll,
		IncludePending:  cfg.CTLogs.IncludePending,
		AdditionalLogs:  cfg.CTLogs.AdditionalLogs,
		CustomLogs:      cfg.CTLogs.CustomLogs,
		MaxConcurrent:   cfg.CTLogs.MaxConcurrentLogs,
	})

	urls := make([]string, len(logs))
	operators := make(map[string]string, len(logs))

	for i, l := range logs {
		urls[i] = l.URL
		operators[l.URL] = l.OperatorName
	}

	sinkList, err := buildSinks(cfg)
	if err != nil {
		return err
	}

	var persister coordinator.Persister

	if cfg.Database.Enabled {
		store, err := storage.Open(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer store.Close()

		persister = store
	}

	tracker := health.NewTracker(log)

	var caOwners map[string]string

	if cfg.CTLogs.EnrichCAOwners {
		owners, err := decode.DownloadCAOwners(ctx, 18, 0)
		if err != nil {
			log.WithError(err).Warn("CCADB CA-owner enrichment unavailable, continuing without it")
		} else {
			caOwners = owners
			log.WithField("ca_count", len(owners)).Info("loaded CCADB CA-owner report")
		}
	}

	var hub *statusserver.Hub

	if *statusAddr != "" {
		hub = statusserver.NewHub()
		sinkList = append(sinkList, statusserver.NewSink(hub))
	}

	coord := coordinator.New(coordinator.Config{
		LogURLs:       urls,
		Operators:     operators,
		ClientFor:     func(url string) *logclient.Client { return logclient.New(url) },
		Cursor:        cursorStore,
		Health:        tracker,
		Watchlist:     wl,
		RootFilter:    rf,
		DedupeEnabled: cfg.DedupeEnabled,
		Sinks:         sink.NewFanout(log, sinkList...),
		Persister:     persister,
		PollerConfig: poller.Config{
			PollInterval:  cfg.CTLogs.PollInterval(),
			BatchSize:     cfg.CTLogs.BatchSize,
			MaxRetries:    3,
			ParsePrecerts: cfg.CTLogs.ParsePrecerts,
			CAOwners:      caOwners,
		},
		Log:           log,
		StatsEnabled:  cfg.StatsEnabled,
		StatsInterval: time.Duration(cfg.StatsInterval) * time.Second,
	})

	log.WithField("log_count", len(urls)).Info("starting watchtower")

	if hub != nil {
		hubStop := make(chan struct{})

		go hub.Run(hubStop)

		srv := statusserver.New(*statusAddr, hub, coord, log)

		go func() {
			if err := srv.ListenAndServe(ctx); err != nil {
				log.WithError(err).Warn("status server exited")
			}
		}()

		defer close(hubStop)
	}

	coord.Run(ctx)

	return nil
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}

	log.SetLevel(parsed)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return log
}

func buildWatchlist(cfg config.WatchlistConfig) *watchlist.Watchlist {
	wl := watchlist.New()

	for _, d := range cfg.Domains {
		wl.AddGlobalDomain(d)
	}

	for _, h := range cfg.Hosts {
		wl.AddGlobalHost(h)
	}

	for _, ipStr := range cfg.IPs {
		if ip := net.ParseIP(ipStr); ip != nil {
			wl.AddGlobalIP(ip)
		}
	}

	for _, cidrStr := range cfg.CIDRs {
		if _, network, err := net.ParseCIDR(cidrStr); err == nil {
			wl.AddGlobalCIDR(network)
		}
	}

	for _, p := range cfg.Programs {
		for _, d := range p.Domains {
			wl.AddDomainToProgram(d, p.Name, p.Platform)
		}
	}

	return wl
}

func buildCursorStore(ctx context.Context, cfg config.Config) (cursor.Store, error) {
	if cfg.CTLogs.StateBackend == "database" {
		return cursor.OpenRelationalStore(ctx, cfg.Database.URL)
	}

	return cursor.NewFileStore(nil, cfg.CTLogs.StateFile)
}

// buildSinks assembles the primary output sink (§6 output: human, json,
// csv, or silent, to stdout or --output-file) plus the optional webhook and
// pubsub sinks. The caller wraps the result in a Fanout, possibly after
// appending the status server's websocket sink.
func buildSinks(cfg config.Config) ([]sink.Sink, error) {
	var sinks []sink.Sink

	out, err := buildPrimarySink(cfg)
	if err != nil {
		return nil, err
	}

	sinks = append(sinks, out)

	if cfg.Webhook.URL != "" {
		sinks = append(sinks, sink.NewWebhook(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Webhook.WebhookTimeout()))
	}

	if cfg.PubSub.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.PubSub.Addr})
		sinks = append(sinks, sink.NewPubSub(client, cfg.PubSub.Channel, cfg.PubSub.ListKey, cfg.PubSub.MaxQueueSize))
	}

	return sinks, nil
}

// buildPrimarySink selects among human, json, csv, and silent per
// cfg.Output (default human), writing to cfg.OutputFile when set instead
// of stdout.
func buildPrimarySink(cfg config.Config) (sink.Sink, error) {
	w := os.Stdout
	color := isTerminal(os.Stdout)

	if cfg.OutputFile != "" {
		f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("output file: %w", err)
		}

		w = f
		color = false
	}

	switch cfg.Output {
	case "json":
		return sink.NewJSONLines(w), nil
	case "csv":
		return sink.NewCSV(w), nil
	case "silent":
		return sink.NewSilent(), nil
	case "", "human":
		return sink.NewHuman(w, color), nil
	default:
		return nil, fmt.Errorf("output: unknown format %q (want human, json, csv, or silent)", cfg.Output)
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}

	return (info.Mode() & os.ModeCharDevice) != 0
}
