// Package identity derives the keys that let the monitor recognise a
// listing across runs. Price and auction date deliberately change over
// a listing's lifetime, so the stable key and record ID are built only
// from title, location and size; the run-local hash includes the
// volatile fields because its job is exact-snapshot dedup within one
// scan, not cross-run identity.
package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

const maxRecordIDLength = 100

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	punctRe      = regexp.MustCompile(`[^\w\s]`)
	digitsRe     = regexp.MustCompile(`\d+`)
)

// normalize lowercases, trims and collapses internal whitespace.
func normalize(s string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// normalizeSize keeps only the digit runs plus a coarse unit tag, so
// "1,323 sq.ft", "1323 sqft" and "1 323 sq ft" collapse together.
func normalizeSize(size string) string {
	digits := strings.Join(digitsRe.FindAllString(size, -1), "")
	if digits == "" {
		return "na"
	}
	tag := ""
	if strings.Contains(strings.ToLower(size), "sq") {
		tag = "sqft"
	}
	return digits + tag
}

// StableKey derives the cross-run identity of a listing from its
// stable fields only. Two records with the same stable key are the
// same logical listing even if price or auction date differ.
func StableKey(title, location, size string) string {
	return normalize(title) + "|" + normalize(location) + "|" + normalizeSize(size)
}

// RecordID derives the filesystem-safe store key for a listing. It is
// a pure function of the stable fields: a price or auction date change
// must never move a listing under a new ID, or every update would be
// misread as a new listing.
func RecordID(title, location, size string) string {
	cleaned := fmt.Sprintf("%s_%s_%s",
		punctRe.ReplaceAllString(title, ""),
		punctRe.ReplaceAllString(location, ""),
		punctRe.ReplaceAllString(size, ""),
	)
	id := strings.ToLower(whitespaceRe.ReplaceAllString(strings.TrimSpace(cleaned), "_"))
	if len(id) > maxRecordIDLength {
		id = id[:maxRecordIDLength]
	}
	return id
}

// RunLocalHash digests all five fields of a snapshot. Used only to
// suppress re-extracting the same DOM container twice within a scan.
func RunLocalHash(title, price, auctionDate, location, size string) string {
	sum := sha1.Sum([]byte(strings.Join([]string{title, price, auctionDate, location, size}, "|")))
	return hex.EncodeToString(sum[:])
}
