package detect

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lelongwatch/internal/identity"
	"lelongwatch/internal/models"
)

func record(title, location, size, price, auctionDate, seen string) models.PropertyRecord {
	return models.PropertyRecord{
		Title:       title,
		Location:    location,
		Size:        size,
		Price:       price,
		AuctionDate: auctionDate,
		FirstSeen:   seen,
		LastUpdated: seen,
		StableKey:   identity.StableKey(title, location, size),
	}
}

func recordID(r models.PropertyRecord) string {
	return identity.RecordID(r.Title, r.Location, r.Size)
}

func TestDetect_NewListing(t *testing.T) {
	d := NewDetector(logrus.New())
	r := record("Menara ABC Office Suite", "Puchong", "1,323 sq.ft", "RM204,000", "15 Sep 2025 (Mon)", "2025-09-01T09:00:00")
	id := recordID(r)
	current := map[string]models.PropertyRecord{id: r}
	store := map[string]*models.StoredProperty{}

	newListings, changed := d.Detect(current, store)

	require.Contains(t, newListings, id)
	assert.Empty(t, changed)

	// Inserted with seeded histories
	entry := store[id]
	require.NotNil(t, entry)
	require.Len(t, entry.PriceHistory, 1)
	assert.Equal(t, "RM204,000", entry.PriceHistory[0].Price)
	require.Len(t, entry.AuctionDateHistory, 1)
	assert.Equal(t, "15 Sep 2025 (Mon)", entry.AuctionDateHistory[0].AuctionDate)
}

func TestDetect_Unchanged(t *testing.T) {
	d := NewDetector(logrus.New())
	r := record("Menara ABC Office Suite", "Puchong", "1,323 sq.ft", "RM204,000", "15 Sep 2025 (Mon)", "2025-09-01T09:00:00")
	id := recordID(r)
	store := map[string]*models.StoredProperty{}
	d.Detect(map[string]models.PropertyRecord{id: r}, store)

	// Same snapshot on the next run
	again := r
	again.LastUpdated = "2025-09-02T09:00:00"
	newListings, changed := d.Detect(map[string]models.PropertyRecord{id: again}, store)

	assert.Empty(t, newListings)
	assert.Empty(t, changed)
	assert.Len(t, store, 1)
	// Histories did not grow
	assert.Len(t, store[id].PriceHistory, 1)
	assert.Len(t, store[id].AuctionDateHistory, 1)
}

func TestDetect_PriceChange(t *testing.T) {
	d := NewDetector(logrus.New())
	r := record("Menara ABC Office Suite", "Puchong", "1,323 sq.ft", "RM204,000", "15 Sep 2025 (Mon)", "2025-09-01T09:00:00")
	id := recordID(r)
	store := map[string]*models.StoredProperty{}
	d.Detect(map[string]models.PropertyRecord{id: r}, store)

	updated := record("Menara ABC Office Suite", "Puchong", "1,323 sq.ft", "RM195,000", "15 Sep 2025 (Mon)", "2025-09-02T09:00:00")
	newListings, changed := d.Detect(map[string]models.PropertyRecord{id: updated}, store)

	// Update, not a new listing
	assert.Empty(t, newListings)
	require.Contains(t, changed, id)

	changes := changed[id].Changes
	require.Len(t, changes, 1)
	assert.Equal(t, TypePriceChange, changes[0].Type)
	assert.Equal(t, FieldPrice, changes[0].Field)
	assert.Equal(t, "RM204,000", changes[0].OldValue)
	assert.Equal(t, "RM195,000", changes[0].NewValue)
	assert.Equal(t, "2025-09-02T09:00:00", changes[0].ChangeDate)

	entry := store[id]
	require.Len(t, entry.PriceHistory, 2)
	assert.Equal(t, "RM195,000", entry.PriceHistory[1].Price)
	assert.Equal(t, "RM195,000", entry.Price)
	// first_seen survives the snapshot overwrite
	assert.Equal(t, "2025-09-01T09:00:00", entry.FirstSeen)
	assert.Equal(t, "2025-09-02T09:00:00", entry.LastUpdated)
}

func TestDetect_AuctionDateChange(t *testing.T) {
	d := NewDetector(logrus.New())
	r := record("Menara ABC Office Suite", "Puchong", "1,323 sq.ft", "RM204,000", "15 Sep 2025 (Mon)", "2025-09-01T09:00:00")
	id := recordID(r)
	store := map[string]*models.StoredProperty{}
	d.Detect(map[string]models.PropertyRecord{id: r}, store)

	updated := record("Menara ABC Office Suite", "Puchong", "1,323 sq.ft", "RM204,000", "20 Oct 2025 (Mon)", "2025-09-02T09:00:00")
	_, changed := d.Detect(map[string]models.PropertyRecord{id: updated}, store)

	require.Contains(t, changed, id)
	changes := changed[id].Changes
	require.Len(t, changes, 1)
	assert.Equal(t, TypeAuctionDateChange, changes[0].Type)
	assert.Equal(t, FieldAuctionDate, changes[0].Field)
	assert.Equal(t, "15 Sep 2025 (Mon)", changes[0].OldValue)
	assert.Equal(t, "20 Oct 2025 (Mon)", changes[0].NewValue)

	require.Len(t, store[id].AuctionDateHistory, 2)
}

func TestDetect_BothFieldsChange(t *testing.T) {
	d := NewDetector(logrus.New())
	r := record("Menara ABC Office Suite", "Puchong", "1,323 sq.ft", "RM204,000", "15 Sep 2025 (Mon)", "2025-09-01T09:00:00")
	id := recordID(r)
	store := map[string]*models.StoredProperty{}
	d.Detect(map[string]models.PropertyRecord{id: r}, store)

	updated := record("Menara ABC Office Suite", "Puchong", "1,323 sq.ft", "RM195,000", "20 Oct 2025 (Mon)", "2025-09-02T09:00:00")
	_, changed := d.Detect(map[string]models.PropertyRecord{id: updated}, store)

	require.Contains(t, changed, id)
	assert.Len(t, changed[id].Changes, 2)
}

func TestDetect_LazyHistorySeeding(t *testing.T) {
	d := NewDetector(logrus.New())
	// Legacy entry persisted before history tracking existed
	legacy := record("Menara ABC Office Suite", "Puchong", "1,323 sq.ft", "RM204,000", "15 Sep 2025 (Mon)", "2025-08-01T09:00:00")
	id := recordID(legacy)
	store := map[string]*models.StoredProperty{
		id: {PropertyRecord: legacy},
	}

	updated := record("Menara ABC Office Suite", "Puchong", "1,323 sq.ft", "RM195,000", "15 Sep 2025 (Mon)", "2025-09-02T09:00:00")
	_, changed := d.Detect(map[string]models.PropertyRecord{id: updated}, store)

	require.Contains(t, changed, id)
	entry := store[id]
	// Old value seeded with the entry's first_seen, then the new point
	require.Len(t, entry.PriceHistory, 2)
	assert.Equal(t, "RM204,000", entry.PriceHistory[0].Price)
	assert.Equal(t, "2025-08-01T09:00:00", entry.PriceHistory[0].Date)
	assert.Equal(t, "RM195,000", entry.PriceHistory[1].Price)
}

func TestDetect_StableKeyMatchAcrossLegacyID(t *testing.T) {
	d := NewDetector(logrus.New())
	// Stored under an old-style ID that leaked the price into the key,
	// and persisted without a stable key.
	stored := record("Menara ABC Office Suite", "Puchong", "1,323 sq.ft", "RM204,000", "15 Sep 2025 (Mon)", "2025-08-01T09:00:00")
	stored.StableKey = ""
	legacyID := "menara_abc_office_suite_puchong_1323_sqft_rm204000"
	store := map[string]*models.StoredProperty{
		legacyID: {PropertyRecord: stored},
	}

	updated := record("Menara ABC Office Suite", "Puchong", "1,323 sq.ft", "RM195,000", "15 Sep 2025 (Mon)", "2025-09-02T09:00:00")
	id := recordID(updated)
	require.NotEqual(t, legacyID, id)

	newListings, changed := d.Detect(map[string]models.PropertyRecord{id: updated}, store)

	// Matched through the stable key, so no phantom new listing
	assert.Empty(t, newListings)
	require.Contains(t, changed, legacyID)
	assert.Equal(t, "RM195,000", store[legacyID].Price)
}

func TestDetect_NiceTitleSurvivesPlaceholder(t *testing.T) {
	d := NewDetector(logrus.New())
	nice := record("Menara ABC Office Suite", "Puchong", "1,323 sq.ft", "RM204,000", "15 Sep 2025 (Mon)", "2025-09-01T09:00:00")
	id := recordID(nice)
	store := map[string]*models.StoredProperty{}
	d.Detect(map[string]models.PropertyRecord{id: nice}, store)

	// Later sighting failed title resolution and carries a placeholder.
	placeholder := record("Property Listing P3-7", "Puchong", "1,323 sq.ft", "RM195,000", "15 Sep 2025 (Mon)", "2025-09-02T09:00:00")
	_, changed := d.Detect(map[string]models.PropertyRecord{id: placeholder}, store)

	require.Contains(t, changed, id)
	entry := store[id]
	assert.Equal(t, "Menara ABC Office Suite", entry.Title)
	// Stable key still reflects the preserved title, not the placeholder
	assert.Equal(t, identity.StableKey("Menara ABC Office Suite", "Puchong", "1,323 sq.ft"), entry.StableKey)
	assert.Equal(t, "RM195,000", entry.Price)
}

func TestDetect_PlaceholderUpgradedToNiceTitle(t *testing.T) {
	d := NewDetector(logrus.New())
	placeholder := record("Property Listing P3-7", "Puchong", "1,323 sq.ft", "RM204,000", "15 Sep 2025 (Mon)", "2025-09-01T09:00:00")
	id := recordID(placeholder)
	store := map[string]*models.StoredProperty{}
	d.Detect(map[string]models.PropertyRecord{id: placeholder}, store)

	nice := record("Menara ABC Office Suite", "Puchong", "1,323 sq.ft", "RM204,000", "15 Sep 2025 (Mon)", "2025-09-02T09:00:00")
	niceID := recordID(nice)

	// Different title means a different record ID and stable key, so
	// this sighting legitimately starts a fresh entry.
	newListings, _ := d.Detect(map[string]models.PropertyRecord{niceID: nice}, store)
	assert.Contains(t, newListings, niceID)

	// A later placeholder sighting of the nice entry keeps the nice title
	again := record("Property Listing P5-2", "Puchong", "1,323 sq.ft", "RM204,000", "15 Sep 2025 (Mon)", "2025-09-03T09:00:00")
	d.Detect(map[string]models.PropertyRecord{niceID: again}, store)
	assert.Equal(t, "Menara ABC Office Suite", store[niceID].Title)
}
