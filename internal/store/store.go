// Package store persists the monitor's data files. Everything is a
// whole-file JSON read or write: no partial updates, no locking. A
// single run has a single writer, and load failures degrade to an
// empty value so a corrupt or missing file costs one run's history,
// never the run itself.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"lelongwatch/internal/models"
)

// Data file names inside the data directory.
const (
	PropertiesFile = "properties.json"
	ChangesFile    = "changes.json"
	DailyStatsFile = "daily_stats.json"
	ProgressFile   = "scraping_progress.json"
)

// Store reads and writes the JSON data files under one directory.
type Store struct {
	dataDir string
	logger  *logrus.Logger
}

func NewStore(dataDir string, logger *logrus.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Store{dataDir: dataDir, logger: logger}, nil
}

// LoadProperties returns the persisted property database. A missing or
// unreadable file yields an empty map: the run proceeds as if no
// history exists.
func (s *Store) LoadProperties() map[string]*models.StoredProperty {
	db := make(map[string]*models.StoredProperty)
	s.load(PropertiesFile, &db)
	if db == nil {
		db = make(map[string]*models.StoredProperty)
	}
	return db
}

// SaveProperties writes the property database. Failure is logged, not
// fatal: the in-memory results still feed the notification.
func (s *Store) SaveProperties(db map[string]*models.StoredProperty) bool {
	if !s.save(PropertiesFile, db) {
		return false
	}
	s.logger.WithField("properties", len(db)).Info("Properties database saved")
	return true
}

// LoadScanHistory returns the changes.json journal, oldest first.
func (s *Store) LoadScanHistory() []models.ScanRecord {
	var history []models.ScanRecord
	s.load(ChangesFile, &history)
	return history
}

// AppendScanRecord appends one run's outcome to the journal.
func (s *Store) AppendScanRecord(record models.ScanRecord) bool {
	history := s.LoadScanHistory()
	history = append(history, record)
	return s.save(ChangesFile, history)
}

// LoadDailyStats returns the latest run summary, or nil when absent.
func (s *Store) LoadDailyStats() *models.DailyStats {
	var stats models.DailyStats
	if !s.load(DailyStatsFile, &stats) {
		return nil
	}
	return &stats
}

func (s *Store) SaveDailyStats(stats models.DailyStats) bool {
	return s.save(DailyStatsFile, stats)
}

// LoadProgress returns the last run's stats snapshot, or nil.
func (s *Store) LoadProgress() *models.ScrapeStats {
	var stats models.ScrapeStats
	if !s.load(ProgressFile, &stats) {
		return nil
	}
	return &stats
}

func (s *Store) SaveProgress(stats *models.ScrapeStats) bool {
	return s.save(ProgressFile, stats)
}

// Prune drops entries not updated within retentionDays. Zero retention
// keeps everything forever.
func Prune(db map[string]*models.StoredProperty, retentionDays int, now time.Time) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	pruned := 0
	for id, entry := range db {
		updated, err := time.Parse("2006-01-02T15:04:05.999999", entry.LastUpdated)
		if err != nil {
			continue
		}
		if updated.Before(cutoff) {
			delete(db, id)
			pruned++
		}
	}
	return pruned
}

func (s *Store) load(name string, target interface{}) bool {
	path := filepath.Join(s.dataDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(err).WithField("file", name).Warn("Could not read data file")
		}
		return false
	}
	if err := json.Unmarshal(data, target); err != nil {
		s.logger.WithError(err).WithField("file", name).Warn("Could not parse data file")
		return false
	}
	return true
}

func (s *Store) save(name string, value interface{}) bool {
	path := filepath.Join(s.dataDir, name)
	f, err := os.Create(path)
	if err != nil {
		s.logger.WithError(err).WithField("file", name).Error("Could not create data file")
		return false
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		s.logger.WithError(err).WithField("file", name).Error("Could not write data file")
		return false
	}
	return true
}
