// Package validate holds the field validators for extracted listing
// data. Price and auction date are the load-bearing fields of a
// listing; everything that reaches the store passes through here.
package validate

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	nonNumericRe = regexp.MustCompile(`[^\d.]`)

	// auctionDateRe matches the site's date rendering, e.g. "15 Sep 2025 (Mon)".
	auctionDateRe = regexp.MustCompile(`^(\d{1,2}) (Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec) (\d{4}) \((Mon|Tue|Wed|Thu|Fri|Sat|Sun)\)$`)
)

// PriceRules configures price validation.
type PriceRules struct {
	MinPrice int
	MaxPrice int

	// PromoteSubThousand multiplies parsed values below 1000 by 1000.
	// The site sometimes renders "RM350" meaning RM350,000; the rule is
	// a heuristic and can silently inflate a genuinely small price, so
	// it stays configurable.
	PromoteSubThousand bool
}

// Price parses and bounds-checks a price string such as "RM204,000".
// The returned value is populated even on rejection so callers can log
// what was out of range.
func (r PriceRules) Price(text string) (bool, int) {
	cleaned := nonNumericRe.ReplaceAllString(text, "")
	if cleaned == "" {
		return false, 0
	}

	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return false, 0
	}

	if r.PromoteSubThousand && parsed < 1000 {
		parsed *= 1000
	}

	value := int(parsed)
	if value < r.MinPrice || value > r.MaxPrice {
		return false, value
	}
	return true, value
}

// AuctionDate accepts only the exact "D Mon YYYY (Dow)" shape with a
// year in {current, current+1}. The literal weekday is trusted; no
// cross-check against the date is done.
func AuctionDate(text string) bool {
	return AuctionDateAt(text, time.Now())
}

// AuctionDateAt is AuctionDate with an explicit reference time.
func AuctionDateAt(text string, now time.Time) bool {
	m := auctionDateRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return false
	}

	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return false
	}

	year, err := strconv.Atoi(m[3])
	if err != nil {
		return false
	}
	return year == now.Year() || year == now.Year()+1
}
