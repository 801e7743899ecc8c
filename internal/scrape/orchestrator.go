// Package scrape drives the page-by-page scan of the auction site.
// Pages are fetched one at a time with a politeness delay between
// requests: throughput is deliberately traded for determinism, and the
// run-local duplicate set assumes sequential observation.
package scrape

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"lelongwatch/internal/extract"
	"lelongwatch/internal/identity"
	"lelongwatch/internal/models"
)

// ErrNoListings reports a run that extracted nothing across all pages.
// Callers must not equate it with "zero new listings".
var ErrNoListings = errors.New("no listings extracted from any page")

// Stop reasons recorded in ScrapeStats.
const (
	StopReasonTime     = "Time limit"
	StopReasonErrors   = "Too many errors"
	StopReasonCoverage = "Coverage too high"
	StopReasonCancel   = "Cancelled"
)

// PageFetcher is the HTTP collaborator.
type PageFetcher interface {
	Get(ctx context.Context, url string, params map[string]string) ([]byte, error)
}

// Options are the orchestrator's run parameters.
type Options struct {
	SearchURL               string
	RequestDelay            time.Duration
	TimeBudget              time.Duration
	MaxErrors               int
	CoverageCeiling         float64
	MinPagesForCoverageStop int
	ResultsPerPage          int
	MaxPages                int
	FallbackTotalResults    int
	FallbackTotalPages      int
}

// Orchestrator owns one run's accumulator and stats.
type Orchestrator struct {
	fetcher PageFetcher
	scanner *extract.Scanner
	opts    Options
	logger  *logrus.Logger
}

func NewOrchestrator(fetcher PageFetcher, scanner *extract.Scanner, opts Options, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		fetcher: fetcher,
		scanner: scanner,
		opts:    opts,
		logger:  logger,
	}
}

// Run discovers pagination and scans every page, aggregating records
// keyed by record ID. Within a run, a later sighting of the same ID
// overwrites an earlier one. Per-page failures are logged into the
// stats and do not abort the loop unless the error breaker trips.
func (o *Orchestrator) Run(ctx context.Context) (map[string]models.PropertyRecord, *models.ScrapeStats, error) {
	start := time.Now()
	pagination := o.DiscoverPagination(ctx)

	stats := &models.ScrapeStats{
		StartedAt:    models.Timestamp(start),
		TotalResults: pagination.TotalResults,
		TotalPages:   pagination.TotalPages,
		Errors:       []string{},
	}

	accumulator := make(map[string]models.PropertyRecord)
	seenHashes := make(map[string]struct{})

	for page := 1; page <= pagination.TotalPages; page++ {
		if page > 1 {
			select {
			case <-ctx.Done():
				o.stop(stats, StopReasonCancel)
				return o.finish(accumulator, stats, start)
			case <-time.After(o.opts.RequestDelay):
			}
		}

		if err := o.scrapePage(ctx, page, accumulator, seenHashes, stats); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("page %d: %v", page, err))
			o.logger.WithError(err).WithField("page", page).Error("Page scrape failed")
		}
		stats.PagesCompleted = page
		stats.CoveragePercentage = stats.Coverage(len(accumulator))

		if reason := o.checkStop(ctx, start, stats); reason != "" {
			o.stop(stats, reason)
			break
		}
	}

	return o.finish(accumulator, stats, start)
}

func (o *Orchestrator) scrapePage(ctx context.Context, page int, accumulator map[string]models.PropertyRecord, seenHashes map[string]struct{}, stats *models.ScrapeStats) error {
	body, err := o.fetcher.Get(ctx, o.opts.SearchURL, map[string]string{"page": strconv.Itoa(page)})
	if err != nil {
		return err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse page: %w", err)
	}

	pageURL := fmt.Sprintf("%s&page=%d", o.opts.SearchURL, page)
	result := o.scanner.ScanPage(doc, page, pageURL, seenHashes)

	for _, record := range result.Records {
		id := identity.RecordID(record.Title, record.Location, record.Size)
		accumulator[id] = record
	}

	stats.PropertiesExtracted += result.Found
	stats.DuplicatesSkipped += result.Duplicates
	stats.InvalidSkipped += result.Invalid
	return nil
}

// checkStop evaluates the stop conditions. They are checked after each
// page, never mid-page.
func (o *Orchestrator) checkStop(ctx context.Context, start time.Time, stats *models.ScrapeStats) string {
	if ctx.Err() != nil {
		return StopReasonCancel
	}
	if time.Since(start) > o.opts.TimeBudget {
		return StopReasonTime
	}
	if len(stats.Errors) > o.opts.MaxErrors {
		return StopReasonErrors
	}
	if stats.PagesCompleted >= o.opts.MinPagesForCoverageStop && stats.CoveragePercentage > o.opts.CoverageCeiling {
		return StopReasonCoverage
	}
	return ""
}

func (o *Orchestrator) stop(stats *models.ScrapeStats, reason string) {
	stats.StoppedEarly = true
	stats.StopReason = reason
	o.logger.WithField("reason", reason).Warn("Scrape stopped early")
}

func (o *Orchestrator) finish(accumulator map[string]models.PropertyRecord, stats *models.ScrapeStats, start time.Time) (map[string]models.PropertyRecord, *models.ScrapeStats, error) {
	stats.CompletedAt = models.Timestamp(time.Now())
	stats.CoveragePercentage = stats.Coverage(len(accumulator))
	if processed := stats.PropertiesExtracted + stats.InvalidSkipped; processed > 0 {
		stats.SuccessRate = float64(stats.PropertiesExtracted) / float64(processed) * 100
	}

	o.logger.WithFields(logrus.Fields{
		"pages":      stats.PagesCompleted,
		"extracted":  stats.PropertiesExtracted,
		"duplicates": stats.DuplicatesSkipped,
		"invalid":    stats.InvalidSkipped,
		"coverage":   fmt.Sprintf("%.1f%%", stats.CoveragePercentage),
		"elapsed":    time.Since(start).String(),
	}).Info("Scrape run complete")

	if len(accumulator) == 0 {
		return accumulator, stats, ErrNoListings
	}
	return accumulator, stats, nil
}
