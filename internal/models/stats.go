package models

// ScrapeStats are the ephemeral metrics of one scrape run. A snapshot
// is persisted as scraping_progress.json for the status bot.
type ScrapeStats struct {
	StartedAt           string   `json:"started_at"`
	CompletedAt         string   `json:"completed_at,omitempty"`
	TotalResults        int      `json:"total_results"`
	TotalPages          int      `json:"total_pages"`
	PagesCompleted      int      `json:"pages_completed"`
	PropertiesExtracted int      `json:"properties_extracted"`
	DuplicatesSkipped   int      `json:"duplicates_skipped"`
	InvalidSkipped      int      `json:"invalid_skipped"`
	SuccessRate         float64  `json:"success_rate"`
	CoveragePercentage  float64  `json:"coverage_percentage"`
	Errors              []string `json:"errors"`
	StoppedEarly        bool     `json:"stopped_early"`
	StopReason          string   `json:"stop_reason,omitempty"`
}

// Coverage returns extracted-unique-records / total-results as a
// percentage, guarding against a zero total.
func (s *ScrapeStats) Coverage(uniqueRecords int) float64 {
	if s.TotalResults == 0 {
		return 0
	}
	return float64(uniqueRecords) / float64(s.TotalResults) * 100
}

// ScanRecord is one entry in the changes.json journal: what one run
// found, in the shape the query bot reads.
type ScanRecord struct {
	ScanDate      string       `json:"scan_date"`
	NewListingIDs []string     `json:"new_listing_ids"`
	Changes       []ScanChange `json:"changes"`
}

// ScanChange is a flattened change entry tagged with its property.
type ScanChange struct {
	PropertyID string `json:"property_id"`
	Title      string `json:"title"`
	Field      string `json:"field"`
	OldValue   string `json:"old_value"`
	NewValue   string `json:"new_value"`
	ChangeDate string `json:"change_date"`
}

// DailyStats is the per-run summary persisted as daily_stats.json.
type DailyStats struct {
	Date              string `json:"date"`
	TotalListings     int    `json:"total_listings"`
	TotalTracked      int    `json:"total_tracked"`
	NewListings       int    `json:"new_listings"`
	ChangedProperties int    `json:"changed_properties"`
}
