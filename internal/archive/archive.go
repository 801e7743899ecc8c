// Package archive mirrors each run's outcome into sqlite for ad-hoc
// querying and the HTTP API. The JSON store stays the source of truth
// for the monitor itself; the archive only accumulates run history.
package archive

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"lelongwatch/internal/models"
)

// Run is one archived monitoring run.
type Run struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	StartedAt           string    `json:"started_at"`
	CompletedAt         string    `json:"completed_at"`
	TotalResults        int       `json:"total_results"`
	TotalPages          int       `json:"total_pages"`
	PagesCompleted      int       `json:"pages_completed"`
	PropertiesExtracted int       `json:"properties_extracted"`
	DuplicatesSkipped   int       `json:"duplicates_skipped"`
	InvalidSkipped      int       `json:"invalid_skipped"`
	SuccessRate         float64   `json:"success_rate"`
	CoveragePercentage  float64   `json:"coverage_percentage"`
	StoppedEarly        bool      `json:"stopped_early"`
	StopReason          string    `json:"stop_reason"`
	TotalListings       int       `json:"total_listings"`
	TotalTracked        int       `json:"total_tracked"`
	NewListings         int       `json:"new_listings"`
	ChangedProperties   int       `json:"changed_properties"`
	CreatedAt           time.Time `json:"created_at"`
}

// Snapshot is one property as seen during one run.
type Snapshot struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	RunID        uint   `gorm:"index" json:"run_id"`
	RecordID     string `gorm:"index" json:"record_id"`
	Title        string `json:"title"`
	Location     string `json:"location"`
	Size         string `json:"size"`
	PropertyType string `json:"property_type"`
	Price        string `json:"price"`
	PriceValue   int    `json:"price_value"`
	AuctionDate  string `json:"auction_date"`
	ListingURL   string `json:"listing_url"`
	Discount     string `json:"discount"`
	PageNumber   int    `json:"page_number"`
}

// Change is one archived field-level change.
type Change struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	RunID      uint   `gorm:"index" json:"run_id"`
	RecordID   string `gorm:"index" json:"record_id"`
	Title      string `json:"title"`
	Field      string `json:"field"`
	OldValue   string `json:"old_value"`
	NewValue   string `json:"new_value"`
	ChangeDate string `json:"change_date"`
}

// Archive wraps the sqlite database.
type Archive struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func Open(path string, logger *logrus.Logger) (*Archive, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	if err := db.AutoMigrate(&Run{}, &Snapshot{}, &Change{}); err != nil {
		return nil, fmt.Errorf("failed to migrate archive schema: %w", err)
	}

	return &Archive{db: db, logger: logger}, nil
}

// RecordRun archives one run's stats, snapshots and changes in a
// single transaction.
func (a *Archive) RecordRun(stats *models.ScrapeStats, daily models.DailyStats, current map[string]models.PropertyRecord, changes []models.ScanChange) error {
	run := Run{
		StartedAt:           stats.StartedAt,
		CompletedAt:         stats.CompletedAt,
		TotalResults:        stats.TotalResults,
		TotalPages:          stats.TotalPages,
		PagesCompleted:      stats.PagesCompleted,
		PropertiesExtracted: stats.PropertiesExtracted,
		DuplicatesSkipped:   stats.DuplicatesSkipped,
		InvalidSkipped:      stats.InvalidSkipped,
		SuccessRate:         stats.SuccessRate,
		CoveragePercentage:  stats.CoveragePercentage,
		StoppedEarly:        stats.StoppedEarly,
		StopReason:          stats.StopReason,
		TotalListings:       daily.TotalListings,
		TotalTracked:        daily.TotalTracked,
		NewListings:         daily.NewListings,
		ChangedProperties:   daily.ChangedProperties,
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		for id, record := range current {
			snapshot := Snapshot{
				RunID:        run.ID,
				RecordID:     id,
				Title:        record.Title,
				Location:     record.Location,
				Size:         record.Size,
				PropertyType: record.PropertyType,
				Price:        record.Price,
				PriceValue:   record.PriceValue,
				AuctionDate:  record.AuctionDate,
				ListingURL:   record.ListingURL,
				Discount:     record.Discount,
				PageNumber:   record.PageNumber,
			}
			if err := tx.Create(&snapshot).Error; err != nil {
				return fmt.Errorf("failed to insert snapshot: %w", err)
			}
		}

		for _, c := range changes {
			change := Change{
				RunID:      run.ID,
				RecordID:   c.PropertyID,
				Title:      c.Title,
				Field:      c.Field,
				OldValue:   c.OldValue,
				NewValue:   c.NewValue,
				ChangeDate: c.ChangeDate,
			}
			if err := tx.Create(&change).Error; err != nil {
				return fmt.Errorf("failed to insert change: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.logger.WithFields(logrus.Fields{
		"run_id":    run.ID,
		"snapshots": len(current),
		"changes":   len(changes),
	}).Info("Run archived")
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (a *Archive) RecentRuns(limit int) ([]Run, error) {
	var runs []Run
	err := a.db.Order("id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// RunChanges returns the changes detected during one run.
func (a *Archive) RunChanges(runID uint) ([]Change, error) {
	var changes []Change
	err := a.db.Where("run_id = ?", runID).Order("id").Find(&changes).Error
	return changes, err
}

// PriceTrail returns every archived sighting of one record, oldest
// first, for price-over-time queries.
func (a *Archive) PriceTrail(recordID string) ([]Snapshot, error) {
	var snapshots []Snapshot
	err := a.db.Where("record_id = ?", recordID).Order("run_id").Find(&snapshots).Error
	return snapshots, err
}

// Close releases the underlying connection.
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
