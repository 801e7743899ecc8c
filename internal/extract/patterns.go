package extract

import "regexp"

var (
	// priceRe matches the site's price rendering, e.g. "RM204,000".
	priceRe = regexp.MustCompile(`RM[\d,]+`)

	// auctionDateRe matches "15 Sep 2025 (Mon)" anywhere in a text blob.
	auctionDateRe = regexp.MustCompile(`\d{1,2} (?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec) \d{4} \((?:Mon|Tue|Wed|Thu|Fri|Sat|Sun)\)`)

	// sizeRe matches "1,323 sq.ft" and the looser variants the site uses.
	sizeRe = regexp.MustCompile(`(?i)[\d,]+(?:\.\d+)?\s*sq\.?\s*ft`)

	// discountRe matches the "-35%" discount badge.
	discountRe = regexp.MustCompile(`-\d{1,3}%`)
)

// titlePatterns are tried in order when no usable anchor title exists.
// Each matches a run of capitalised words ending in a building-type
// suffix, or a Malay place-name prefix followed by capitalised words.
var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Z][\w@&'.-]*(?:\s+[A-Z][\w@&'.-]*){0,4}\s+(?:Office|Tower|Plaza|Suites?|Business Centre)(?:\s+(?:Unit|Lot|Suite|Strata))?`),
	regexp.MustCompile(`[A-Z][\w@&'.-]*(?:\s+[A-Z][\w@&'.-]*){0,4}\s+(?:Shop|Retail|Mall|Arcade)(?:\s+(?:Lot|Unit|Space))?`),
	regexp.MustCompile(`[A-Z][\w@&'.-]*(?:\s+[A-Z][\w@&'.-]*){0,4}\s+(?:Factory|Warehouse|Industrial)(?:\s+(?:Unit|Lot|Park))?`),
	regexp.MustCompile(`[A-Z][\w@&'.-]*(?:\s+[A-Z][\w@&'.-]*){0,4}\s+(?:Land|Plot)(?:\s+(?:Lot|Parcel))?`),
	regexp.MustCompile(`(?:Taman|Bandar|Menara|Wisma|Kompleks|Pusat|Desa)\s+[A-Z][\w'-]*(?:\s+[A-Z][\w'-]*){0,3}`),
}

// knownLocations are tried in order; the first containment match wins,
// so more specific areas come before the blanket city and state names.
var knownLocations = []string{
	"Kuala Lumpur City Centre",
	"Mont Kiara",
	"Kota Damansara",
	"Bandar Utama",
	"Damansara",
	"Bangsar",
	"Petaling Jaya",
	"Subang Jaya",
	"Shah Alam",
	"Seri Kembangan",
	"Puchong",
	"Cheras",
	"Kepong",
	"Setapak",
	"Ampang",
	"Kajang",
	"Klang",
	"Rawang",
	"Semenyih",
	"Cyberjaya",
	"Putrajaya",
	"Kuala Lumpur",
	"Selangor",
}

// fallbackLocation covers the monitored region when no named area matches.
const fallbackLocation = "KL/Selangor"

// typeKeyword maps a containment keyword to a canonical property type.
// Table order is the tie-break: first match wins.
type typeKeyword struct {
	keyword string
	ptype   string
}

var typeKeywords = []typeKeyword{
	{"office", "Office"},
	{"factory", "Factory"},
	{"warehouse", "Warehouse"},
	{"shop", "Shop"},
	{"retail", "Retail"},
	{"mall", "Retail"},
	{"land", "Land"},
	{"hotel", "Hotel"},
	{"resort", "Resort"},
	{"condo", "Condominium"},
	{"apartment", "Apartment"},
	{"semi-d", "Semi-D"},
	{"bungalow", "Bungalow"},
	{"villa", "Villa"},
}

const fallbackPropertyType = "Commercial"

// sizeNotSpecified is the sentinel used when no size pattern matches.
// Size absence is not fatal, unlike price and auction date.
const sizeNotSpecified = "Size not specified"
