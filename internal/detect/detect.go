// Package detect diffs one run's records against the persisted store.
// The store carries no durable external ID, so identity rests entirely
// on record IDs and stable keys being pure functions of the listing's
// stable fields (title, location, size).
package detect

import (
	"strings"

	"github.com/sirupsen/logrus"

	"lelongwatch/internal/identity"
	"lelongwatch/internal/models"
)

// Change type and field tags carried on change entries.
const (
	TypePriceChange       = "price_change"
	TypeAuctionDateChange = "auction_date_change"
	FieldPrice            = "Auction Price"
	FieldAuctionDate      = "Auction Date"
)

// Detector classifies the run's records as new, changed or unchanged
// and updates the store in place. It is the store's single writer for
// the duration of one run.
type Detector struct {
	logger *logrus.Logger
}

func NewDetector(logger *logrus.Logger) *Detector {
	return &Detector{logger: logger}
}

// Detect walks the current records against the store. New identities
// are inserted with seeded histories; matched ones have volatile-field
// changes recorded and appended to history, and their snapshot fields
// overwritten. first_seen and a previously resolved real title survive
// the overwrite.
func (d *Detector) Detect(current map[string]models.PropertyRecord, store map[string]*models.StoredProperty) (map[string]models.PropertyRecord, map[string]models.ChangedProperty) {
	newListings := make(map[string]models.PropertyRecord)
	changed := make(map[string]models.ChangedProperty)

	stableIndex := buildStableIndex(store)

	d.logger.WithFields(logrus.Fields{
		"current": len(current),
		"stored":  len(store),
	}).Info("Analyzing current records against store")

	for id, record := range current {
		storedID, existing := d.match(id, record, store, stableIndex)
		if existing == nil {
			newListings[id] = record
			store[id] = &models.StoredProperty{
				PropertyRecord: record,
				PriceHistory: []models.PricePoint{
					{Price: record.Price, Date: record.LastUpdated},
				},
				AuctionDateHistory: []models.AuctionDatePoint{
					{AuctionDate: record.AuctionDate, Date: record.LastUpdated},
				},
			}
			stableIndex[record.StableKey] = id
			d.logger.WithField("title", record.Title).Info("New property")
			continue
		}

		changes := d.applyChanges(record, existing)
		if len(changes) > 0 {
			changed[storedID] = models.ChangedProperty{
				Property: record,
				Changes:  changes,
				History: models.History{
					PriceHistory:       existing.PriceHistory,
					AuctionDateHistory: existing.AuctionDateHistory,
				},
			}
		}

		overwriteSnapshot(existing, record)
	}

	d.logger.WithFields(logrus.Fields{
		"new":     len(newListings),
		"changed": len(changed),
	}).Info("Analysis complete")

	return newListings, changed
}

// match finds the stored entry for a record: direct record-ID hit
// first, then the stable-key index (which also catches listings whose
// volatile fields leaked into a legacy ID).
func (d *Detector) match(id string, record models.PropertyRecord, store map[string]*models.StoredProperty, stableIndex map[string]string) (string, *models.StoredProperty) {
	if existing, ok := store[id]; ok {
		return id, existing
	}
	if storedID, ok := stableIndex[record.StableKey]; ok {
		if existing, ok := store[storedID]; ok {
			d.logger.WithFields(logrus.Fields{
				"record_id": id,
				"stored_id": storedID,
			}).Debug("Matched listing by stable key")
			return storedID, existing
		}
	}
	return "", nil
}

// applyChanges compares the volatile fields and appends history
// entries for each difference. Entries predating history tracking get
// their history lazily seeded from the prior snapshot.
func (d *Detector) applyChanges(record models.PropertyRecord, existing *models.StoredProperty) []models.ChangeEntry {
	var changes []models.ChangeEntry

	if record.Price != existing.Price {
		changes = append(changes, models.ChangeEntry{
			Type:       TypePriceChange,
			Field:      FieldPrice,
			OldValue:   existing.Price,
			NewValue:   record.Price,
			ChangeDate: record.LastUpdated,
		})

		if len(existing.PriceHistory) == 0 {
			existing.PriceHistory = []models.PricePoint{
				{Price: existing.Price, Date: firstSeenOr(existing, record)},
			}
		}
		existing.PriceHistory = append(existing.PriceHistory, models.PricePoint{
			Price: record.Price,
			Date:  record.LastUpdated,
		})

		d.logger.WithFields(logrus.Fields{
			"title": record.Title,
			"old":   existing.Price,
			"new":   record.Price,
		}).Info("Price change")
	}

	if record.AuctionDate != existing.AuctionDate {
		changes = append(changes, models.ChangeEntry{
			Type:       TypeAuctionDateChange,
			Field:      FieldAuctionDate,
			OldValue:   existing.AuctionDate,
			NewValue:   record.AuctionDate,
			ChangeDate: record.LastUpdated,
		})

		if len(existing.AuctionDateHistory) == 0 {
			existing.AuctionDateHistory = []models.AuctionDatePoint{
				{AuctionDate: existing.AuctionDate, Date: firstSeenOr(existing, record)},
			}
		}
		existing.AuctionDateHistory = append(existing.AuctionDateHistory, models.AuctionDatePoint{
			AuctionDate: record.AuctionDate,
			Date:        record.LastUpdated,
		})

		d.logger.WithFields(logrus.Fields{
			"title": record.Title,
			"old":   existing.AuctionDate,
			"new":   record.AuctionDate,
		}).Info("Auction date change")
	}

	return changes
}

// overwriteSnapshot replaces the stored fields with the current
// sighting, keeping the original first_seen and preferring an earlier
// real title over a later synthetic placeholder.
func overwriteSnapshot(existing *models.StoredProperty, record models.PropertyRecord) {
	firstSeen := existing.FirstSeen
	if firstSeen == "" {
		firstSeen = record.LastUpdated
	}

	title := record.Title
	if isPlaceholderTitle(title) && !isPlaceholderTitle(existing.Title) {
		title = existing.Title
	}

	existing.PropertyRecord = record
	existing.FirstSeen = firstSeen
	existing.Title = title
	if title != record.Title {
		existing.StableKey = identity.StableKey(title, record.Location, record.Size)
	}
}

// buildStableIndex maps stable key to record ID for every stored
// entry, computing keys on the fly for legacy entries lacking one.
func buildStableIndex(store map[string]*models.StoredProperty) map[string]string {
	index := make(map[string]string, len(store))
	for id, entry := range store {
		key := entry.StableKey
		if key == "" {
			key = identity.StableKey(entry.Title, entry.Location, entry.Size)
			entry.StableKey = key
		}
		index[key] = id
	}
	return index
}

func isPlaceholderTitle(title string) bool {
	return strings.HasPrefix(title, "Property Listing P")
}

func firstSeenOr(existing *models.StoredProperty, record models.PropertyRecord) string {
	if existing.FirstSeen != "" {
		return existing.FirstSeen
	}
	return record.LastUpdated
}
