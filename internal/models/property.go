package models

import "time"

// PropertyRecord is one scraped listing snapshot.
type PropertyRecord struct {
	Title        string `json:"title"`
	Location     string `json:"location"`
	Size         string `json:"size"`
	PropertyType string `json:"property_type"`
	Price        string `json:"price"`
	PriceValue   int    `json:"price_value"`
	AuctionDate  string `json:"auction_date"`
	ListingURL   string `json:"listing_url"`
	URL          string `json:"url"`
	Discount     string `json:"discount,omitempty"`
	PageNumber   int    `json:"page_number"`
	FirstSeen    string `json:"first_seen"`
	LastUpdated  string `json:"last_updated"`
	StableKey    string `json:"stable_key"`
}

// PricePoint is one entry in a property's price history.
type PricePoint struct {
	Price string `json:"price"`
	Date  string `json:"date"`
}

// AuctionDatePoint is one entry in a property's auction date history.
type AuctionDatePoint struct {
	AuctionDate string `json:"auction_date"`
	Date        string `json:"date"`
}

// StoredProperty is the persisted envelope: the latest snapshot plus
// the accumulated history of its volatile fields.
type StoredProperty struct {
	PropertyRecord
	PriceHistory       []PricePoint       `json:"price_history"`
	AuctionDateHistory []AuctionDatePoint `json:"auction_date_history"`
}

// ChangeEntry describes one field-level change detected for a property.
type ChangeEntry struct {
	Type       string `json:"type"`
	Field      string `json:"field"`
	OldValue   string `json:"old_value"`
	NewValue   string `json:"new_value"`
	ChangeDate string `json:"change_date"`
}

// ChangedProperty bundles a changed listing with its change list and
// full history for downstream formatting.
type ChangedProperty struct {
	Property PropertyRecord `json:"property"`
	Changes  []ChangeEntry  `json:"changes"`
	History  History        `json:"history"`
}

// History carries the accumulated volatile-field histories of a listing.
type History struct {
	PriceHistory       []PricePoint       `json:"price_history"`
	AuctionDateHistory []AuctionDatePoint `json:"auction_date_history"`
}

// Timestamp formats a time the way record timestamps are stored.
func Timestamp(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.999999")
}
