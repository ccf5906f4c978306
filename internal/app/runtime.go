package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/slaug/slaug/internal/assettypes"
	"github.com/slaug/slaug/internal/config"
	"github.com/slaug/slaug/internal/connectors"
	"github.com/slaug/slaug/internal/connectors/slack"
	"github.com/slaug/slaug/internal/dedup"
	"github.com/slaug/slaug/internal/expander"
	"github.com/slaug/slaug/internal/format"
	"github.com/slaug/slaug/internal/httpapi"
	"github.com/slaug/slaug/internal/store"
	"github.com/slaug/slaug/internal/v1"
)

var refreshCronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Runtime owns the constructed components and their lifecycles. Everything is
// dependency-injected here; nothing in the pipeline reaches for globals.
type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	registry   *assettypes.Registry
	dedup      *dedup.Set
	client     *v1.Client
	expander   *expander.Service
	journal    *store.Store
	connectors []connectors.Connector
	httpServer *http.Server

	locRefresh cron.Schedule
}

func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := assettypes.NewRegistry(logger.With("component", "assettypes"))
	window := dedup.New(cfg.Memory, logger.With("component", "dedup"))
	client := v1.NewClient(cfg.V1BaseURL, cfg.V1AccessToken, logger.With("component", "v1"))
	formatter := format.New(cfg.V1BaseURL, registry.Localize)
	service := expander.New(registry, window, client, formatter, logger.With("component", "expander"))
	service.SetPerChannel(cfg.DedupPerChannel)

	r := &Runtime{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		dedup:    window,
		client:   client,
		expander: service,
	}

	if cfg.JournalDBPath != "" {
		journal, err := store.New(cfg.JournalDBPath)
		if err != nil {
			return nil, fmt.Errorf("open expansion journal: %w", err)
		}
		migrateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := journal.AutoMigrate(migrateCtx); err != nil {
			journal.Close()
			return nil, fmt.Errorf("migrate expansion journal: %w", err)
		}
		r.journal = journal
		service.SetJournal(journalAdapter{journal: journal})
	}

	if cfg.SlackRTMEnabled {
		r.connectors = append(r.connectors, slack.New(
			cfg.SlackRTMToken,
			cfg.SlackAPIBase,
			service,
			logger.With("component", "connector:slack-rtm"),
		))
	}

	if cfg.LocRefreshCron != "" {
		schedule, err := refreshCronParser.Parse(cfg.LocRefreshCron)
		if err != nil {
			logger.Warn("localization refresh disabled, bad cron expression",
				"expr", cfg.LocRefreshCron, "error", err)
		} else {
			r.locRefresh = schedule
		}
	}

	r.httpServer = &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Dependencies{
			Config:   cfg,
			Expander: service,
			Logger:   logger.With("component", "httpapi"),
		}),
	}

	return r, nil
}

func (r *Runtime) Close() error {
	if r.journal == nil {
		return nil
	}
	return r.journal.Close()
}

// journalAdapter bridges the expander's journal contract onto the store.
type journalAdapter struct {
	journal *store.Store
}

func (a journalAdapter) RecordExpansion(ctx context.Context, entry expander.JournalEntry) error {
	_, err := a.journal.InsertExpansion(ctx, store.InsertExpansionInput{
		AssetID: entry.AssetID,
		Number:  entry.Number,
		Channel: entry.Channel,
		Source:  entry.Source,
	})
	return err
}
