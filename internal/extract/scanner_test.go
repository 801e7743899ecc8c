package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScanner(t *testing.T) *Scanner {
	t.Helper()
	return NewScanner(testExtractor(t), logrus.New())
}

func parsePage(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func listingHTML(title, price, date string) string {
	return fmt.Sprintf(`<div class="card">
		<div class="inner">
			<a href="/auction/111" title="%s">%s</a>
			<span class="price">%s</span>
			<span class="date">%s</span>
		</div>
	</div>`, title, title, price, date)
}

func TestScanPage_FindsListings(t *testing.T) {
	s := testScanner(t)
	date := fmt.Sprintf("15 Sep %d (Mon)", thisYear)
	page := "<html><body>" +
		listingHTML("Menara ABC Office Suite", "RM204,000", date) +
		listingHTML("Wisma DEF Shop Lot Klang", "RM880,000", date) +
		"</body></html>"

	seen := make(map[string]struct{})
	result := s.ScanPage(parsePage(t, page), 1, "https://page", seen)

	require.Len(t, result.Records, 2)
	assert.Equal(t, 2, result.Found)
	assert.Equal(t, 0, result.Duplicates)
	assert.Equal(t, 0, result.Invalid)
	assert.Equal(t, "Menara ABC Office Suite", result.Records[0].Title)
	assert.Equal(t, "Wisma DEF Shop Lot Klang", result.Records[1].Title)
	assert.Len(t, seen, 2)
}

func TestScanPage_ContainerNotWholePage(t *testing.T) {
	s := testScanner(t)
	date := fmt.Sprintf("15 Sep %d (Mon)", thisYear)
	// The price sits two levels below the card; the walk-up must stop at
	// the card, not swallow the sibling card's fields.
	page := "<html><body>" +
		listingHTML("Menara ABC Office Suite", "RM204,000", date) +
		listingHTML("Wisma DEF Shop Lot Klang", "RM880,000", date) +
		"</body></html>"

	result := s.ScanPage(parsePage(t, page), 1, "https://page", make(map[string]struct{}))

	require.Len(t, result.Records, 2)
	assert.Equal(t, 204000, result.Records[0].PriceValue)
	assert.Equal(t, 880000, result.Records[1].PriceValue)
}

func TestScanPage_DuplicateContainerSuppressed(t *testing.T) {
	s := testScanner(t)
	date := fmt.Sprintf("15 Sep %d (Mon)", thisYear)
	// Two price nodes inside the same card resolve to one container.
	page := fmt.Sprintf(`<html><body><div class="card">
		<a href="/auction/111" title="Menara ABC Office Suite">Menara ABC Office Suite</a>
		<span>RM204,000</span>
		<span>was RM300,000</span>
		<span>%s</span>
	</div></body></html>`, date)

	result := s.ScanPage(parsePage(t, page), 1, "https://page", make(map[string]struct{}))

	assert.Equal(t, 1, result.Found)
	assert.Len(t, result.Records, 1)
}

func TestScanPage_RunLocalDuplicate(t *testing.T) {
	s := testScanner(t)
	date := fmt.Sprintf("15 Sep %d (Mon)", thisYear)
	page := "<html><body>" + listingHTML("Menara ABC Office Suite", "RM204,000", date) + "</body></html>"

	seen := make(map[string]struct{})
	first := s.ScanPage(parsePage(t, page), 1, "https://page?page=1", seen)
	assert.Equal(t, 1, first.Found)

	// The same listing on a later page is a run-local duplicate.
	second := s.ScanPage(parsePage(t, page), 2, "https://page?page=2", seen)
	assert.Equal(t, 0, second.Found)
	assert.Equal(t, 1, second.Duplicates)
	assert.Empty(t, second.Records)
}

func TestScanPage_InvalidCounted(t *testing.T) {
	s := testScanner(t)
	date := fmt.Sprintf("15 Sep %d (Mon)", thisYear)
	page := "<html><body>" +
		listingHTML("Menara ABC Office Suite", "RM204,000", date) +
		// Price below the admissible floor
		listingHTML("Wisma DEF Shop Lot Klang", "RM20,000", date) +
		"</body></html>"

	result := s.ScanPage(parsePage(t, page), 1, "https://page", make(map[string]struct{}))

	assert.Equal(t, 1, result.Found)
	assert.Equal(t, 1, result.Invalid)
}

func TestScanPage_EmptyPage(t *testing.T) {
	s := testScanner(t)
	page := `<html><body><div>No results found</div></body></html>`

	result := s.ScanPage(parsePage(t, page), 1, "https://page", make(map[string]struct{}))

	assert.Empty(t, result.Records)
	assert.Equal(t, 0, result.Found)
	assert.Equal(t, 0, result.Invalid)
}

func TestFindContainer_DepthBound(t *testing.T) {
	date := fmt.Sprintf("15 Sep %d (Mon)", thisYear)
	// Date is more than maxAncestorDepth levels above the price node, so
	// no ancestor within the bound carries both fields.
	deep := "<span>RM204,000</span>"
	for i := 0; i < maxAncestorDepth+2; i++ {
		deep = "<div>" + deep + "</div>"
	}
	page := fmt.Sprintf(`<html><body><section><em>%s</em>%s</section></body></html>`, date, deep)

	doc := parsePage(t, page)
	priceNode := doc.Find("span")
	require.Equal(t, 1, priceNode.Length())
	assert.Nil(t, findContainer(priceNode))
}
