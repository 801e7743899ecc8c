package scrape

import (
	"bytes"
	"context"
	"math"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

var (
	totalResultsRe = regexp.MustCompile(`Result\(s\)\s*:\s*([\d,]+)`)
	commaRe        = regexp.MustCompile(`,`)
	pageParamRe    = regexp.MustCompile(`[?&]page=(\d+)`)
)

// Pagination is what discovery learned about the result set.
type Pagination struct {
	TotalResults int
	TotalPages   int
}

// DiscoverPagination parses the first results page for the total
// listing count and the highest page number linked anywhere on it.
// When no page links exist the page count is estimated from the
// per-page size, capped to bound pathological totals. On total
// failure it returns the configured fallback pair instead of an
// error: the orchestrator must always be able to proceed with a
// best-guess page count.
func (o *Orchestrator) DiscoverPagination(ctx context.Context) Pagination {
	fallback := Pagination{
		TotalResults: o.opts.FallbackTotalResults,
		TotalPages:   o.opts.FallbackTotalPages,
	}

	body, err := o.fetcher.Get(ctx, o.opts.SearchURL, map[string]string{"page": "1"})
	if err != nil {
		o.logger.WithError(err).Warn("Pagination discovery fetch failed, using fallback")
		return fallback
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		o.logger.WithError(err).Warn("Pagination discovery parse failed, using fallback")
		return fallback
	}

	totalResults := parseTotalResults(doc)
	if totalResults == 0 {
		o.logger.Warn("No result count found on first page, using fallback")
		return fallback
	}

	totalPages := maxLinkedPage(doc)
	if totalPages == 0 {
		totalPages = int(math.Ceil(float64(totalResults) / float64(o.opts.ResultsPerPage)))
		if totalPages > o.opts.MaxPages {
			totalPages = o.opts.MaxPages
		}
	}

	o.logger.WithFields(logrus.Fields{
		"total_results": totalResults,
		"total_pages":   totalPages,
	}).Info("Pagination discovered")

	return Pagination{TotalResults: totalResults, TotalPages: totalPages}
}

func parseTotalResults(doc *goquery.Document) int {
	m := totalResultsRe.FindStringSubmatch(doc.Text())
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(commaRe.ReplaceAllString(m[1], ""))
	if err != nil {
		return 0
	}
	return n
}

func maxLinkedPage(doc *goquery.Document) int {
	maxPage := 0
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := pageParamRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > maxPage {
			maxPage = n
		}
	})
	return maxPage
}
