// Package extract turns noisy listing-page HTML into validated
// property records. The scanner locates candidate containers by
// walking up from price text nodes; the extractor resolves each
// container's fields with per-field fallbacks. Price and auction date
// are required — a listing without them is not actionable — while
// title, location, size and type degrade gracefully because the site's
// markup is irregular across listing templates.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"lelongwatch/internal/identity"
	"lelongwatch/internal/models"
	"lelongwatch/internal/validate"
)

// SkipReason classifies why a container produced no record. Explicit
// outcomes keep the scanner's counters driven by branching rather than
// recovered panics.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipNoPrice
	SkipInvalidPrice
	SkipNoDate
	SkipInvalidDate
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "none"
	case SkipNoPrice:
		return "no price"
	case SkipInvalidPrice:
		return "price out of range"
	case SkipNoDate:
		return "no auction date"
	case SkipInvalidDate:
		return "auction date rejected"
	default:
		return "unknown"
	}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Extractor resolves one listing container into a PropertyRecord.
type Extractor struct {
	logger     *logrus.Logger
	priceRules validate.PriceRules
	baseURL    *url.URL
	now        func() time.Time
}

// NewExtractor creates an extractor. baseURL is the site root used to
// resolve relative anchor hrefs.
func NewExtractor(priceRules validate.PriceRules, baseURL string, logger *logrus.Logger) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	return &Extractor{
		logger:     logger,
		priceRules: priceRules,
		baseURL:    base,
		now:        time.Now,
	}, nil
}

// Extract resolves a container into a record, or returns the reason it
// was skipped. pageNumber and index feed the synthetic placeholder
// title; pageURL is the fallback listing URL.
func (e *Extractor) Extract(container *goquery.Selection, pageNumber, index int, pageURL string) (*models.PropertyRecord, SkipReason) {
	text := flatten(container.Text())

	priceText := priceRe.FindString(text)
	if priceText == "" {
		return nil, SkipNoPrice
	}
	ok, priceValue := e.priceRules.Price(priceText)
	if !ok {
		e.logger.WithFields(logrus.Fields{
			"price": priceText,
			"value": priceValue,
			"page":  pageNumber,
		}).Debug("Price rejected by validation")
		return nil, SkipInvalidPrice
	}

	dateText := auctionDateRe.FindString(text)
	if dateText == "" {
		return nil, SkipNoDate
	}
	if !validate.AuctionDate(dateText) {
		e.logger.WithFields(logrus.Fields{
			"auction_date": dateText,
			"page":         pageNumber,
		}).Debug("Auction date rejected by validation")
		return nil, SkipInvalidDate
	}

	size := sizeRe.FindString(text)
	if size == "" {
		size = sizeNotSpecified
	}

	title, listingURL := e.resolveAnchor(container)
	if title == "" {
		title = matchTitle(text)
	}
	if title == "" {
		title = fmt.Sprintf("Property Listing P%d-%d", pageNumber, index)
	}
	if listingURL == "" {
		listingURL = pageURL
	}

	now := models.Timestamp(e.now())
	record := &models.PropertyRecord{
		Title:        title,
		Location:     matchLocation(text),
		Size:         size,
		PropertyType: matchPropertyType(title, text),
		Price:        priceText,
		PriceValue:   priceValue,
		AuctionDate:  dateText,
		ListingURL:   listingURL,
		URL:          listingURL,
		Discount:     discountRe.FindString(text),
		PageNumber:   pageNumber,
		FirstSeen:    now,
		LastUpdated:  now,
	}
	record.StableKey = identity.StableKey(record.Title, record.Location, record.Size)
	return record, SkipNone
}

// resolveAnchor returns the title and absolute URL of the first anchor
// that plausibly points at a per-listing detail page.
func (e *Extractor) resolveAnchor(container *goquery.Selection) (title, listingURL string) {
	container.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !plausibleDetailHref(href) {
			return true
		}

		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		resolved := e.baseURL.ResolveReference(ref).String()

		candidate := strings.TrimSpace(a.AttrOr("title", ""))
		if candidate == "" {
			candidate = flatten(a.Text())
		}
		if usableTitle(candidate) {
			title = candidate
			listingURL = resolved
			return false
		}

		// Keep the URL even when the anchor text is a generic label.
		if listingURL == "" {
			listingURL = resolved
		}
		return true
	})
	return title, listingURL
}

// plausibleDetailHref rejects placeholder, script and account links;
// a detail link has a real path, usually carrying a listing number.
func plausibleDetailHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return false
	}
	lower := strings.ToLower(href)
	for _, bad := range []string{"javascript:", "mailto:", "login", "signin", "sign-in", "register", "facebook.com", "whatsapp", "share"} {
		if strings.Contains(lower, bad) {
			return false
		}
	}
	return strings.ContainsAny(href, "0123456789") || strings.Count(strings.TrimPrefix(href, "/"), "/") >= 1
}

// usableTitle filters out navigation labels masquerading as titles.
func usableTitle(s string) bool {
	if len(s) < 10 {
		return false
	}
	lower := strings.ToLower(s)
	for _, generic := range []string{"view detail", "view listing", "more info", "click here", "read more"} {
		if strings.Contains(lower, generic) {
			return false
		}
	}
	return true
}

func matchTitle(text string) string {
	for _, re := range titlePatterns {
		if m := re.FindString(text); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

func matchLocation(text string) string {
	lower := strings.ToLower(text)
	for _, area := range knownLocations {
		if strings.Contains(lower, strings.ToLower(area)) {
			return area
		}
	}
	return fallbackLocation
}

func matchPropertyType(title, text string) string {
	haystack := strings.ToLower(title + " " + text)
	for _, tk := range typeKeywords {
		if strings.Contains(haystack, tk.keyword) {
			return tk.ptype
		}
	}
	return fallbackPropertyType
}

// flatten collapses all whitespace runs so regex matching is not
// broken by the markup's newlines and indentation.
func flatten(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
