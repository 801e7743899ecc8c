package scrape

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lelongwatch/internal/extract"
	"lelongwatch/internal/validate"
)

// fakeFetcher serves canned HTML per page parameter and records calls.
type fakeFetcher struct {
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Get(_ context.Context, _ string, params map[string]string) ([]byte, error) {
	page := params["page"]
	f.calls = append(f.calls, page)
	body, ok := f.pages[page]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return []byte(body), nil
}

var thisYear = time.Now().Year()

func listing(title, price string) string {
	return fmt.Sprintf(`<div class="card"><div class="inner">
		<a href="/auction/555" title="%s">%s</a>
		<span>%s</span>
		<span>15 Sep %d (Mon)</span>
	</div></div>`, title, title, price, thisYear)
}

func resultsPage(totalResults int, maxPage int, listings ...string) string {
	body := fmt.Sprintf("<html><body><p>Result(s) : %d</p>", totalResults)
	if maxPage > 0 {
		body += fmt.Sprintf(`<a href="/search?page=%d">Last</a>`, maxPage)
	}
	for _, l := range listings {
		body += l
	}
	return body + "</body></html>"
}

func testOrchestrator(t *testing.T, fetcher PageFetcher, opts Options) *Orchestrator {
	t.Helper()
	logger := logrus.New()
	rules := validate.PriceRules{MinPrice: 50000, MaxPrice: 500000000, PromoteSubThousand: true}
	extractor, err := extract.NewExtractor(rules, "https://www.lelongtips.com.my", logger)
	require.NoError(t, err)
	return NewOrchestrator(fetcher, extract.NewScanner(extractor, logger), opts, logger)
}

func defaultOpts() Options {
	return Options{
		SearchURL:               "https://www.lelongtips.com.my/search?state=kl_sel",
		RequestDelay:            0,
		TimeBudget:              time.Minute,
		MaxErrors:               10,
		CoverageCeiling:         150,
		MinPagesForCoverageStop: 5,
		ResultsPerPage:          20,
		MaxPages:                120,
		FallbackTotalResults:    1650,
		FallbackTotalPages:      83,
	}
}

func TestDiscoverPagination_LinkedPages(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"1": resultsPage(1650, 83),
	}}
	o := testOrchestrator(t, fetcher, defaultOpts())

	p := o.DiscoverPagination(context.Background())
	assert.Equal(t, 1650, p.TotalResults)
	assert.Equal(t, 83, p.TotalPages)
}

func TestDiscoverPagination_EstimateFromTotal(t *testing.T) {
	// No page links, so the count is estimated from totals
	fetcher := &fakeFetcher{pages: map[string]string{
		"1": resultsPage(45, 0),
	}}
	o := testOrchestrator(t, fetcher, defaultOpts())

	p := o.DiscoverPagination(context.Background())
	assert.Equal(t, 45, p.TotalResults)
	assert.Equal(t, 3, p.TotalPages)
}

func TestDiscoverPagination_EstimateCapped(t *testing.T) {
	opts := defaultOpts()
	opts.MaxPages = 50
	fetcher := &fakeFetcher{pages: map[string]string{
		"1": resultsPage(100000, 0),
	}}
	o := testOrchestrator(t, fetcher, opts)

	p := o.DiscoverPagination(context.Background())
	assert.Equal(t, 50, p.TotalPages)
}

func TestDiscoverPagination_FetchFailureFallsBack(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}}
	o := testOrchestrator(t, fetcher, defaultOpts())

	p := o.DiscoverPagination(context.Background())
	assert.Equal(t, 1650, p.TotalResults)
	assert.Equal(t, 83, p.TotalPages)
}

func TestDiscoverPagination_NoCountFallsBack(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"1": "<html><body><p>Welcome</p></body></html>",
	}}
	o := testOrchestrator(t, fetcher, defaultOpts())

	p := o.DiscoverPagination(context.Background())
	assert.Equal(t, 1650, p.TotalResults)
	assert.Equal(t, 83, p.TotalPages)
}

func TestRun_AccumulatesAcrossPages(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"1": resultsPage(40, 2, listing("Menara ABC Office Suite", "RM204,000")),
		"2": resultsPage(40, 2, listing("Wisma DEF Shop Lot Klang", "RM880,000")),
	}}
	o := testOrchestrator(t, fetcher, defaultOpts())

	records, stats, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, records, 2)
	assert.Equal(t, 2, stats.PagesCompleted)
	assert.Equal(t, 2, stats.PropertiesExtracted)
	assert.Equal(t, float64(100), stats.SuccessRate)
	assert.False(t, stats.StoppedEarly)
	assert.Equal(t, 5.0, stats.CoveragePercentage)
}

func TestRun_LastSightingWins(t *testing.T) {
	// The same listing appears on both pages with a revised price. The
	// second sighting is not a run-local duplicate (price differs) and
	// must overwrite the first under the same record ID.
	fetcher := &fakeFetcher{pages: map[string]string{
		"1": resultsPage(40, 2, listing("Menara ABC Office Suite", "RM204,000")),
		"2": resultsPage(40, 2, listing("Menara ABC Office Suite", "RM195,000")),
	}}
	o := testOrchestrator(t, fetcher, defaultOpts())

	records, stats, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 1)
	for _, record := range records {
		assert.Equal(t, 195000, record.PriceValue)
	}
	assert.Equal(t, 2, stats.PropertiesExtracted)
}

func TestRun_PageErrorsAreNotFatal(t *testing.T) {
	// Page 2 fails; the run carries on and still returns page 1 and 3.
	fetcher := &fakeFetcher{pages: map[string]string{
		"1": resultsPage(60, 3, listing("Menara ABC Office Suite", "RM204,000")),
		"3": resultsPage(60, 3, listing("Wisma DEF Shop Lot Klang", "RM880,000")),
	}}
	o := testOrchestrator(t, fetcher, defaultOpts())

	records, stats, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, records, 2)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "page 2")
	assert.False(t, stats.StoppedEarly)
}

func TestRun_ErrorBreaker(t *testing.T) {
	opts := defaultOpts()
	opts.MaxErrors = 2
	// Page 1 parses but carries no listings; every later page fails.
	pages := map[string]string{"1": resultsPage(400, 20)}
	fetcher := &fakeFetcher{pages: pages}
	o := testOrchestrator(t, fetcher, opts)

	records, stats, err := o.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoListings)
	assert.Empty(t, records)
	assert.True(t, stats.StoppedEarly)
	assert.Equal(t, StopReasonErrors, stats.StopReason)
	// Breaker trips once errors exceed the limit, checked after the page
	assert.Len(t, stats.Errors, opts.MaxErrors+1)
	assert.Equal(t, 4, stats.PagesCompleted)
}

func TestRun_CoverageStop(t *testing.T) {
	opts := defaultOpts()
	opts.CoverageCeiling = 150
	opts.MinPagesForCoverageStop = 2

	// Total claims 1 result but every page yields a fresh record, so
	// coverage passes 150% as soon as the page floor is met.
	pages := map[string]string{"1": resultsPage(1, 10, listing("Menara ABC Office Suite", "RM204,000"))}
	for i := 2; i <= 10; i++ {
		pages[fmt.Sprintf("%d", i)] = resultsPage(1, 10, listing(fmt.Sprintf("Menara Blok %d Office Tower", i), "RM204,000"))
	}
	fetcher := &fakeFetcher{pages: pages}
	o := testOrchestrator(t, fetcher, opts)

	records, stats, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, stats.StoppedEarly)
	assert.Equal(t, StopReasonCoverage, stats.StopReason)
	assert.Equal(t, 2, stats.PagesCompleted)
	assert.Len(t, records, 2)
	assert.Greater(t, stats.CoveragePercentage, opts.CoverageCeiling)
}

func TestRun_NoListings(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"1": resultsPage(20, 1, "<div>nothing here</div>"),
	}}
	o := testOrchestrator(t, fetcher, defaultOpts())

	records, stats, err := o.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoListings)
	assert.Empty(t, records)
	assert.Equal(t, 1, stats.PagesCompleted)
}

func TestRun_ContextCancelled(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"1": resultsPage(40, 2, listing("Menara ABC Office Suite", "RM204,000")),
		"2": resultsPage(40, 2, listing("Wisma DEF Shop Lot Klang", "RM880,000")),
	}}
	o := testOrchestrator(t, fetcher, defaultOpts())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, stats, _ := o.Run(ctx)
	assert.True(t, stats.StoppedEarly)
	assert.Equal(t, StopReasonCancel, stats.StopReason)
	assert.LessOrEqual(t, len(records), 1)
}
