// Package config aggregates every environment variable spec.md §6 names
// into one Config, built with the same fail-open loaders
// internal/pkg/config already provides: an unset or invalid value falls
// back to a documented default and is logged, never a startup error. It
// generalizes the teacher's single-purpose WorkerConfig (one CronSchedule
// field) to the full set of knobs the worker binary now wires: storage,
// fetch limits, summarizer credentials, and every alert channel.
package config

import (
	"log/slog"
	"time"

	pkgconfig "kybuzz/internal/pkg/config"
)

// Config is every environment-driven knob the worker binary reads at
// startup, grouped by the component it configures.
type Config struct {
	DBPath       string
	RSSUserAgent string
	LogLevel     string

	Cloudflare CloudflareConfig
	Ingest     IngestConfig
	Enrich     EnrichConfig
	Alert      AlertConfig

	// HealthPort and MetricsPort are not named in spec.md §6 — they exist
	// so the worker binary can run as a long-lived process under an
	// orchestrator the way the teacher's cmd/worker does (liveness probe
	// + Prometheus scrape target).
	HealthPort  int
	MetricsPort int
}

// CloudflareConfig holds the Workers AI summarizer credentials. AccountID
// and APIToken empty means no AI credentials configured — the Enrichment
// Worker falls back to summarizer.NoOp (spec.md §4.10 step 10).
type CloudflareConfig struct {
	AccountID    string
	APIToken     string
	SummaryModel string
}

// IngestConfig bounds the Ingestion Orchestrator (C9).
type IngestConfig struct {
	MaxFeedsPerRun  int
	MaxItemsPerFeed int
}

// EnrichConfig bounds the Enrichment Worker (C10).
type EnrichConfig struct {
	BatchSize   int
	Concurrency int
}

// AlertConfig configures Alerting (C12)'s cooldown and every channel.
type AlertConfig struct {
	CooldownHours int
	OnBreaking    bool

	SlackWebhookURL string

	EmailTo   string
	EmailFrom string

	PostmarkAPIToken string

	MailgunAPIKey string
	MailgunDomain string
}

const (
	defaultDBPath          = "kybuzz.db"
	defaultRSSUserAgent    = "KYBuzzBot/1.0 (+https://kybuzz.example/bot)"
	defaultLogLevel        = "info"
	defaultSummaryModel    = "@cf/meta/llama-3.1-8b-instruct"
	defaultMaxFeedsPerRun  = 200
	defaultMaxItemsPerFeed = 100
	defaultBodyBatchSize   = 10
	defaultBodyConcurrency = 3
	defaultCooldownHours   = 6
	defaultHealthPort      = 9091
	defaultMetricsPort     = 9090
)

// Load reads every spec.md §6 environment variable, falling back to
// defaults (with a logged warning) on any invalid value, and never
// returning an error — the same fail-open discipline the teacher's
// worker config loader used for its own single cron schedule.
func Load(logger *slog.Logger) *Config {
	cfg := &Config{
		DBPath:       pkgconfig.LoadEnvString("DB_PATH", defaultDBPath),
		RSSUserAgent: pkgconfig.LoadEnvString("RSS_USER_AGENT", defaultRSSUserAgent),
		LogLevel:     pkgconfig.LoadEnvString("LOG_LEVEL", defaultLogLevel),

		Cloudflare: CloudflareConfig{
			AccountID:    pkgconfig.LoadEnvString("CF_ACCOUNT_ID", ""),
			APIToken:     pkgconfig.LoadEnvString("CF_AI_API_TOKEN", ""),
			SummaryModel: pkgconfig.LoadEnvString("CF_SUMMARY_MODEL", defaultSummaryModel),
		},

		Alert: AlertConfig{
			SlackWebhookURL:  pkgconfig.LoadEnvString("SLACK_WEBHOOK_URL", ""),
			EmailTo:          pkgconfig.LoadEnvString("ALERT_EMAIL_TO", ""),
			EmailFrom:        pkgconfig.LoadEnvString("ALERT_EMAIL_FROM", ""),
			PostmarkAPIToken: pkgconfig.LoadEnvString("POSTMARK_API_TOKEN", ""),
			MailgunAPIKey:    pkgconfig.LoadEnvString("MAILGUN_API_KEY", ""),
			MailgunDomain:    pkgconfig.LoadEnvString("MAILGUN_DOMAIN", ""),
		},
	}

	cfg.Ingest.MaxFeedsPerRun = loadInt(logger, "MAX_FEEDS_PER_RUN", defaultMaxFeedsPerRun, 1, 5000)
	cfg.Ingest.MaxItemsPerFeed = loadInt(logger, "MAX_INGEST_ITEMS_PER_FEED", defaultMaxItemsPerFeed, 1, 2000)
	cfg.Enrich.BatchSize = loadInt(logger, "BODY_WORKER_BATCH", defaultBodyBatchSize, 1, 1000)
	cfg.Enrich.Concurrency = loadInt(logger, "BODY_WORKER_CONCURRENCY", defaultBodyConcurrency, 1, 64)
	cfg.Alert.CooldownHours = loadInt(logger, "ALERT_COOLDOWN_HOURS", defaultCooldownHours, 1, 168)
	cfg.HealthPort = loadInt(logger, "HEALTH_PORT", defaultHealthPort, 1, 65535)
	cfg.MetricsPort = loadInt(logger, "METRICS_PORT", defaultMetricsPort, 1, 65535)

	result := pkgconfig.LoadEnvBool("ALERT_ON_BREAKING", true)
	cfg.Alert.OnBreaking = result.Value.(bool)
	logFallback(logger, "ALERT_ON_BREAKING", result)

	return cfg
}

// CooldownDuration converts Alert.CooldownHours to a time.Duration for
// internal/usecase/alert.Service.Cooldown.
func (c *Config) CooldownDuration() time.Duration {
	return time.Duration(c.Alert.CooldownHours) * time.Hour
}

func loadInt(logger *slog.Logger, envKey string, defaultValue, min, max int) int {
	result := pkgconfig.LoadEnvInt(envKey, defaultValue, func(v int) error {
		return pkgconfig.ValidateIntRange(v, min, max)
	})
	logFallback(logger, envKey, result)
	return result.Value.(int)
}

func logFallback(logger *slog.Logger, envKey string, result pkgconfig.ConfigLoadResult) {
	if !result.FallbackApplied {
		return
	}
	for _, warning := range result.Warnings {
		logger.Warn("config: falling back to default", slog.String("env_key", envKey), slog.String("warning", warning))
	}
}
