// Package config loads the YAML configuration described in spec §6,
// pre-populated with defaults and overridable from the CLI.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// CTLogsConfig configures log discovery and polling.
type CTLogsConfig struct {
	PollIntervalSecs   int      `yaml:"poll_interval_secs"`
	BatchSize          int64    `yaml:"batch_size"`
	LogListURL         string   `yaml:"log_list_url"`
	CustomLogs         []string `yaml:"custom_logs"`
	AdditionalLogs     []string `yaml:"additional_logs"`
	StateFile          string   `yaml:"state_file"`
	MaxConcurrentLogs  int      `yaml:"max_concurrent_logs"`
	ParsePrecerts      bool     `yaml:"parse_precerts"`
	IncludeReadonly    bool     `yaml:"include_readonly_logs"`
	IncludeAll         bool     `yaml:"include_all_logs"`
	IncludePending     bool     `yaml:"include_pending"`
	StateBackend       string   `yaml:"state_backend"`
	// EnrichCAOwners fetches the CCADB intermediate-CA report at startup and
	// tags each decoded record with its issuing CA's reported owner. Purely
	// informational; failures to fetch are logged and never fatal.
	EnrichCAOwners bool `yaml:"enrich_ca_owners"`
}

// WebhookConfig configures the optional webhook sink.
type WebhookConfig struct {
	URL        string `yaml:"url"`
	Secret     string `yaml:"secret"`
	TimeoutSecs int   `yaml:"timeout_secs"`
}

// DatabaseConfig configures the optional Postgres persistence layer.
type DatabaseConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	MaxConnections int   `yaml:"max_connections"`
}

// ProgramConfig is one watchlist program entry.
type ProgramConfig struct {
	Name     string   `yaml:"name"`
	Platform string   `yaml:"platform"`
	Domains  []string `yaml:"domains"`
	Hosts    []string `yaml:"hosts"`
	IPs      []string `yaml:"ips"`
	CIDRs    []string `yaml:"cidrs"`
}

// WatchlistConfig is the global watchlist plus its programs.
type WatchlistConfig struct {
	Domains  []string        `yaml:"domains"`
	Hosts    []string        `yaml:"hosts"`
	IPs      []string        `yaml:"ips"`
	CIDRs    []string        `yaml:"cidrs"`
	Programs []ProgramConfig `yaml:"programs"`
}

// LoggingConfig configures logrus.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// RootFilterConfig configures the optional apex-domain allowlist.
type RootFilterConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

// PubSubConfig configures the optional Redis pub/sub sink.
type PubSubConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Addr         string `yaml:"addr"`
	Channel      string `yaml:"channel"`
	ListKey      string `yaml:"list_key"`
	MaxQueueSize int64  `yaml:"max_queue_size"`
}

// Config is the full run configuration.
type Config struct {
	CTLogs     CTLogsConfig     `yaml:"ct_logs"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Database   DatabaseConfig   `yaml:"database"`
	Watchlist  WatchlistConfig  `yaml:"watchlist"`
	Logging    LoggingConfig    `yaml:"logging"`
	RootFilter RootFilterConfig `yaml:"root_filter"`
	PubSub     PubSubConfig     `yaml:"pubsub"`
	DedupeEnabled bool          `yaml:"dedupe_enabled"`
	// Output selects the primary sink format: human, json, csv, or silent.
	Output string `yaml:"output"`
	// OutputFile, when non-empty, writes Output's sink to a file instead
	// of stdout.
	OutputFile string `yaml:"output_file"`
	// StatsEnabled periodically logs the processed/matches/dropped/queue_len
	// summary (§7); StatsInterval overrides the default 5-minute cadence.
	StatsEnabled  bool `yaml:"stats_enabled"`
	StatsInterval int  `yaml:"stats_interval_secs"`
}

// Default returns the configuration with every spec §6 default populated.
func Default() Config {
	return Config{
		CTLogs: CTLogsConfig{
			PollIntervalSecs:  10,
			BatchSize:         256,
			LogListURL:        "https://www.gstatic.com/ct/log_list/v3/all_logs_list.json",
			StateFile:         "ct-scout-state.toml",
			MaxConcurrentLogs: 100,
			ParsePrecerts:     true,
			StateBackend:      "file",
		},
		Database: DatabaseConfig{
			Enabled:        false,
			URL:            "postgresql://localhost/ctscout",
			MaxConnections: 20,
		},
		Webhook: WebhookConfig{
			TimeoutSecs: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		DedupeEnabled: true,
	}
}

// Load reads path (if non-empty and it exists) over top of Default().
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// PollInterval returns CTLogs.PollIntervalSecs as a time.Duration.
func (c CTLogsConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

// WebhookTimeout returns Webhook.TimeoutSecs as a time.Duration, defaulting
// to 5s when unset.
func (w WebhookConfig) WebhookTimeout() time.Duration {
	if w.TimeoutSecs <= 0 {
		return 5 * time.Second
	}

	return time.Duration(w.TimeoutSecs) * time.Second
}

// Flags holds the CLI overlay values bound to a Config by BindFlags. Only
// flags the user actually passed are applied over the loaded Config — see
// Apply.
type Flags struct {
	ConfigPath string

	WebhookURL     string
	WebhookSecret  string
	WebhookTimeout int
	NoWebhook      bool

	NoDedupe bool

	Stats         bool
	StatsInterval int

	RootDomains string

	Output     string
	OutputFile string

	Verbose bool
	Quiet   bool

	fs *pflag.FlagSet
}

// BindFlags registers the full CLI overlay: the config file path plus every
// flag §6 documents (webhook URL/secret/timeout, --no-webhook, --no-dedupe,
// --stats/--stats-interval, --root-domains, --output/--output-file,
// --verbose/--quiet). Call fs.Parse, then Apply to overlay onto a Config.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}

	fs.StringVarP(&f.ConfigPath, "config", "c", "", "path to the YAML configuration file")

	fs.StringVar(&f.WebhookURL, "webhook-url", "", "webhook sink URL")
	fs.StringVar(&f.WebhookSecret, "webhook-secret", "", "webhook HMAC signing secret")
	fs.IntVar(&f.WebhookTimeout, "webhook-timeout", 0, "webhook request timeout, in seconds")
	fs.BoolVar(&f.NoWebhook, "no-webhook", false, "disable the webhook sink even if configured")

	fs.BoolVar(&f.NoDedupe, "no-dedupe", false, "disable the dedupe set")

	fs.BoolVar(&f.Stats, "stats", false, "log a periodic processed/matches/dropped summary")
	fs.IntVar(&f.StatsInterval, "stats-interval", 0, "stats summary interval, in seconds")

	fs.StringVar(&f.RootDomains, "root-domains", "", "path to the root-domain allowlist file")

	fs.StringVar(&f.Output, "output", "", "output sink: human, json, csv, or silent")
	fs.StringVar(&f.OutputFile, "output-file", "", "write the output sink to this file instead of stdout")

	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "set logging level to debug")
	fs.BoolVarP(&f.Quiet, "quiet", "q", false, "set logging level to warn")

	return f
}

// Apply overlays every flag the user actually passed onto cfg. Call after
// fs.Parse.
func (f *Flags) Apply(cfg *Config) {
	changed := func(name string) bool {
		return f.fs != nil && f.fs.Changed(name)
	}

	if changed("webhook-url") {
		cfg.Webhook.URL = f.WebhookURL
	}

	if changed("webhook-secret") {
		cfg.Webhook.Secret = f.WebhookSecret
	}

	if changed("webhook-timeout") {
		cfg.Webhook.TimeoutSecs = f.WebhookTimeout
	}

	if f.NoWebhook {
		cfg.Webhook.URL = ""
	}

	if f.NoDedupe {
		cfg.DedupeEnabled = false
	}

	if changed("stats") {
		cfg.StatsEnabled = f.Stats
	}

	if changed("stats-interval") {
		cfg.StatsInterval = f.StatsInterval
	}

	if changed("root-domains") {
		cfg.RootFilter.Enabled = true
		cfg.RootFilter.File = f.RootDomains
	}

	if changed("output") {
		cfg.Output = f.Output
	}

	if changed("output-file") {
		cfg.OutputFile = f.OutputFile
	}

	if f.Verbose {
		cfg.Logging.Level = "debug"
	}

	if f.Quiet {
		cfg.Logging.Level = "warn"
	}
}
