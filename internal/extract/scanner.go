package extract

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"lelongwatch/internal/identity"
	"lelongwatch/internal/models"
)

// maxAncestorDepth bounds the upward walk from a price text node to
// its listing container.
const maxAncestorDepth = 10

// PageResult is what scanning one page produced.
type PageResult struct {
	Records    []models.PropertyRecord
	Found      int
	Duplicates int
	Invalid    int
}

// Scanner locates listing containers on a results page and runs the
// extractor over each. A container is the first ancestor of a price
// text node whose full text also carries an auction date.
type Scanner struct {
	extractor *Extractor
	logger    *logrus.Logger
}

func NewScanner(extractor *Extractor, logger *logrus.Logger) *Scanner {
	return &Scanner{extractor: extractor, logger: logger}
}

// ScanPage extracts all unique records from one page. seenHashes is
// the run-local duplicate set owned by the orchestrator; scanning is
// sequential, so sightings are observed in page order. A page with no
// price nodes is simply empty, not an error.
func (s *Scanner) ScanPage(doc *goquery.Document, pageNumber int, pageURL string, seenHashes map[string]struct{}) PageResult {
	result := PageResult{}
	containerSeen := make(map[string]struct{})

	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		if !priceRe.MatchString(ownText(sel)) {
			return
		}

		container := findContainer(sel)
		if container == nil {
			return
		}

		// Two price nodes inside one listing resolve to the same
		// ancestor; dedup containers by their rendered text.
		textHash := hashText(container.Text())
		if _, dup := containerSeen[textHash]; dup {
			return
		}
		containerSeen[textHash] = struct{}{}

		record, skip := s.extractor.Extract(container, pageNumber, len(containerSeen), pageURL)
		if skip != SkipNone {
			result.Invalid++
			return
		}

		runHash := identity.RunLocalHash(record.Title, record.Price, record.AuctionDate, record.Location, record.Size)
		if _, dup := seenHashes[runHash]; dup {
			result.Duplicates++
			return
		}
		seenHashes[runHash] = struct{}{}

		result.Records = append(result.Records, *record)
		result.Found++
	})

	s.logger.WithFields(logrus.Fields{
		"page":       pageNumber,
		"found":      result.Found,
		"duplicates": result.Duplicates,
		"invalid":    result.Invalid,
	}).Debug("Page scan complete")

	return result
}

// findContainer walks up from a price node until the subtree's text
// contains both a price and an auction date, stopping at the document
// root or the depth bound.
func findContainer(sel *goquery.Selection) *goquery.Selection {
	current := sel
	for depth := 0; depth <= maxAncestorDepth; depth++ {
		if current.Length() == 0 {
			return nil
		}
		text := current.Text()
		if priceRe.MatchString(text) && auctionDateRe.MatchString(text) {
			return current
		}
		current = current.Parent()
	}
	return nil
}

// ownText returns only the element's direct text nodes, so a price in
// a deep descendant does not make every ancestor a starting point.
func ownText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return b.String()
}

func hashText(text string) string {
	sum := sha1.Sum([]byte(flatten(text)))
	return hex.EncodeToString(sum[:])
}
