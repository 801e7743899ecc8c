// Package monitor wires the full daily cycle: load store, scrape,
// detect changes, persist, archive, notify. A crash between extraction
// and persistence loses that run's results, which is acceptable for a
// daily batch job; save failures never abort the run, since the
// in-memory results still feed the notification.
package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"lelongwatch/config"
	"lelongwatch/internal/archive"
	"lelongwatch/internal/detect"
	"lelongwatch/internal/extract"
	"lelongwatch/internal/fetch"
	"lelongwatch/internal/models"
	"lelongwatch/internal/scrape"
	"lelongwatch/internal/store"
	"lelongwatch/internal/summary"
	"lelongwatch/internal/telegram"
	"lelongwatch/internal/validate"
)

// Notifier is the notification collaborator.
type Notifier interface {
	Deliver(text string) error
}

// Result is what one monitoring run produced.
type Result struct {
	Current      map[string]models.PropertyRecord
	NewListings  map[string]models.PropertyRecord
	Changed      map[string]models.ChangedProperty
	Stats        *models.ScrapeStats
	TotalTracked int
}

// Monitor runs the daily cycle.
type Monitor struct {
	cfg          *config.Config
	logger       *logrus.Logger
	orchestrator *scrape.Orchestrator
	detector     *detect.Detector
	store        *store.Store
	archive      *archive.Archive
	formatter    *summary.Formatter
	notifier     Notifier
}

// New assembles a monitor from configuration. The archive is optional;
// a nil archive skips run archiving.
func New(cfg *config.Config, st *store.Store, arch *archive.Archive, notifier Notifier, logger *logrus.Logger) (*Monitor, error) {
	priceRules := validate.PriceRules{
		MinPrice:           cfg.Validation.MinPrice,
		MaxPrice:           cfg.Validation.MaxPrice,
		PromoteSubThousand: cfg.Validation.PromoteSubThousand,
	}

	extractor, err := extract.NewExtractor(priceRules, cfg.Scraping.BaseURL, logger)
	if err != nil {
		return nil, err
	}
	scanner := extract.NewScanner(extractor, logger)

	fetcher := fetch.NewClient(fetch.Options{
		UserAgent:      cfg.Scraping.UserAgent,
		RequestTimeout: cfg.Scraping.RequestTimeout,
		MaxRetries:     cfg.Scraping.MaxRetries,
		RetryBaseDelay: cfg.Scraping.RetryBaseDelay,
	}, logger)

	orchestrator := scrape.NewOrchestrator(fetcher, scanner, scrape.Options{
		SearchURL:               cfg.SearchURL(),
		RequestDelay:            cfg.Scraping.RequestDelay,
		TimeBudget:              cfg.Scraping.TimeBudget,
		MaxErrors:               cfg.Scraping.MaxErrors,
		CoverageCeiling:         cfg.Scraping.CoverageCeiling,
		MinPagesForCoverageStop: cfg.Scraping.MinPagesForCoverageStop,
		ResultsPerPage:          cfg.Scraping.ResultsPerPage,
		MaxPages:                cfg.Scraping.MaxPages,
		FallbackTotalResults:    cfg.Scraping.FallbackTotalResults,
		FallbackTotalPages:      cfg.Scraping.FallbackTotalPages,
	}, logger)

	return &Monitor{
		cfg:          cfg,
		logger:       logger,
		orchestrator: orchestrator,
		detector:     detect.NewDetector(logger),
		store:        st,
		archive:      arch,
		formatter:    &summary.Formatter{MarketPricePerSqft: cfg.Summary.MarketPricePerSqft},
		notifier:     notifier,
	}, nil
}

// NewWithTelegram builds the monitor with the standard Telegram notifier.
func NewWithTelegram(cfg *config.Config, st *store.Store, arch *archive.Archive, logger *logrus.Logger) (*Monitor, error) {
	notifier := telegram.NewNotifier(telegram.Config{
		BotToken:  cfg.Telegram.BotToken,
		ChatID:    cfg.Telegram.ChatID,
		IsEnabled: cfg.Telegram.IsEnabled,
	}, logger)
	return New(cfg, st, arch, notifier, logger)
}

// Run executes one monitoring cycle. A run that extracted nothing is a
// distinct failure (scrape.ErrNoListings), not an empty success; it
// still triggers a best-effort notification.
func (m *Monitor) Run(ctx context.Context) (*Result, error) {
	m.logger.Info("Starting daily property monitoring")
	now := time.Now()

	database := m.store.LoadProperties()
	m.logger.WithField("stored", len(database)).Info("Properties database loaded")

	if pruned := store.Prune(database, m.cfg.Storage.RetentionDays, now); pruned > 0 {
		m.logger.WithField("pruned", pruned).Info("Dropped stale store entries")
	}

	current, stats, err := m.orchestrator.Run(ctx)
	m.store.SaveProgress(stats)

	if err != nil {
		if errors.Is(err, scrape.ErrNoListings) {
			m.notify(m.formatter.NoListings(len(database)))
		} else {
			m.notify(m.formatter.RunError(err, now))
		}
		return nil, err
	}

	newListings, changed := m.detector.Detect(current, database)

	m.store.SaveProperties(database)

	daily := models.DailyStats{
		Date:              models.Timestamp(now),
		TotalListings:     len(current),
		TotalTracked:      len(database),
		NewListings:       len(newListings),
		ChangedProperties: len(changed),
	}
	m.store.SaveDailyStats(daily)

	scanRecord := buildScanRecord(now, newListings, changed)
	m.store.AppendScanRecord(scanRecord)

	if m.archive != nil {
		if err := m.archive.RecordRun(stats, daily, current, scanRecord.Changes); err != nil {
			m.logger.WithError(err).Error("Failed to archive run")
		}
	}

	m.notify(m.formatter.Daily(current, newListings, changed, len(database), stats, now))

	m.logger.WithFields(logrus.Fields{
		"total":   len(current),
		"tracked": len(database),
		"new":     len(newListings),
		"changed": len(changed),
	}).Info("Monitoring run complete")

	return &Result{
		Current:      current,
		NewListings:  newListings,
		Changed:      changed,
		Stats:        stats,
		TotalTracked: len(database),
	}, nil
}

// notify delivers best-effort; delivery failure is logged only.
func (m *Monitor) notify(text string) {
	if err := m.notifier.Deliver(text); err != nil {
		m.logger.WithError(err).Error("Failed to send notification")
	}
}

func buildScanRecord(now time.Time, newListings map[string]models.PropertyRecord, changed map[string]models.ChangedProperty) models.ScanRecord {
	record := models.ScanRecord{
		ScanDate:      models.Timestamp(now),
		NewListingIDs: []string{},
		Changes:       []models.ScanChange{},
	}
	for id := range newListings {
		record.NewListingIDs = append(record.NewListingIDs, id)
	}
	for id, entry := range changed {
		for _, change := range entry.Changes {
			record.Changes = append(record.Changes, models.ScanChange{
				PropertyID: id,
				Title:      entry.Property.Title,
				Field:      change.Field,
				OldValue:   change.OldValue,
				NewValue:   change.NewValue,
				ChangeDate: change.ChangeDate,
			})
		}
	}
	return record
}
