package application

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/perpgate/perpgate/internal/derive"
	"github.com/perpgate/perpgate/internal/gates"
	"github.com/perpgate/perpgate/internal/ingest"
	"github.com/perpgate/perpgate/internal/kv"
	"github.com/perpgate/perpgate/internal/market"
	"github.com/perpgate/perpgate/internal/notify"
	"github.com/perpgate/perpgate/internal/persistence"
	"github.com/perpgate/perpgate/internal/persistence/postgres"
	"github.com/perpgate/perpgate/internal/telemetry"
)

// App owns every wired component. Construction is eager so a misconfigured
// deployment fails at startup, not on the first tick.
type App struct {
	Config   *Config
	Store    kv.Store
	Registry *prometheus.Registry
	Metrics  *telemetry.Metrics
	Source   market.Source
	Resolver *market.Resolver
	Ingestor *ingest.Ingestor
	Engine   *derive.Engine
	Pipeline *gates.Pipeline
	Notifier notify.Notifier
	Archive  persistence.AlertsRepo
	Alerter  *Alerter

	db *sqlx.DB
}

// NewApp wires the full dependency graph from configuration.
func NewApp(cfg *Config) (*App, error) {
	a := &App{Config: cfg, Registry: prometheus.NewRegistry()}
	a.Metrics = telemetry.New(a.Registry)

	switch cfg.KV.Backend {
	case "", "redis":
		a.Store = kv.NewRedis(cfg.KV.Addr, cfg.KV.DB)
	case "memory":
		a.Store = kv.NewMemory()
	default:
		return nil, fmt.Errorf("unknown kv backend %q", cfg.KV.Backend)
	}

	a.Source = market.NewOKX(cfg.OKXBaseURL)
	a.Resolver = market.NewResolver(a.Store, a.Source)
	a.Ingestor = ingest.New(a.Store, a.Source, a.Resolver, a.Metrics)
	a.Engine = derive.New(a.Store, a.Metrics)
	a.Pipeline = gates.NewPipeline(cfg.Gates, a.Store, a.Engine, a.Resolver, a.Metrics)

	a.Notifier = notify.Noop{}
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram, "")
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		a.Notifier = tg
	}

	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("alert archive: %w", err)
		}
		a.db = db
		a.Archive = postgres.NewAlertsRepo(db, 5*time.Second)
		log.Info().Msg("alert archive enabled")
	}

	a.Alerter = NewAlerter(a.Pipeline, a.Store, a.Notifier, a.Archive, a.Metrics)
	return a, nil
}

// Close releases held connections.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("archive close failed")
		}
	}
}
