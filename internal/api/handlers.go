// Package api exposes read-only HTTP queries over the persisted store
// and the run archive. It never mutates monitor data.
package api

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"lelongwatch/internal/archive"
	"lelongwatch/internal/models"
	"lelongwatch/internal/store"
)

type Handler struct {
	store   *store.Store
	archive *archive.Archive
	logger  *logrus.Logger
}

// PropertyFilters are the supported /api/properties query parameters.
type PropertyFilters struct {
	Type     string `form:"type"`
	Location string `form:"location"`
	MinPrice int    `form:"min_price"`
	MaxPrice int    `form:"max_price"`
	Limit    int    `form:"limit"`
}

func NewHandler(st *store.Store, arch *archive.Archive, logger *logrus.Logger) *Handler {
	return &Handler{store: st, archive: arch, logger: logger}
}

// GetProperties lists stored properties, filtered and price-sorted.
func (h *Handler) GetProperties(c *gin.Context) {
	var filters PropertyFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := h.store.LoadProperties()
	results := make([]*models.StoredProperty, 0, len(db))
	for _, prop := range db {
		if !matches(prop, filters) {
			continue
		}
		results = append(results, prop)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].PriceValue != results[j].PriceValue {
			return results[i].PriceValue < results[j].PriceValue
		}
		return results[i].Title < results[j].Title
	})

	if filters.Limit > 0 && len(results) > filters.Limit {
		results = results[:filters.Limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"count":      len(results),
		"properties": results,
	})
}

func matches(prop *models.StoredProperty, f PropertyFilters) bool {
	if f.Type != "" && !strings.Contains(strings.ToLower(prop.PropertyType), strings.ToLower(f.Type)) {
		return false
	}
	if f.Location != "" && !strings.Contains(strings.ToLower(prop.Location), strings.ToLower(f.Location)) {
		return false
	}
	if f.MinPrice > 0 && prop.PriceValue < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && prop.PriceValue > f.MaxPrice {
		return false
	}
	return true
}

// GetStats returns the latest daily summary and scrape progress.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"daily":    h.store.LoadDailyStats(),
		"progress": h.store.LoadProgress(),
	})
}

// GetChanges returns the most recent scan journal entries.
func (h *Handler) GetChanges(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	history := h.store.LoadScanHistory()
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{"scans": history})
}

// GetRuns returns archived run metrics, newest first.
func (h *Handler) GetRuns(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run archive unavailable"})
		return
	}
	limit := 30
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.archive.RecentRuns(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to query archived runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRunChanges returns the changes archived for one run.
func (h *Handler) GetRunChanges(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run archive unavailable"})
		return
	}

	runID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	changes, err := h.archive.RunChanges(uint(runID))
	if err != nil {
		h.logger.WithError(err).Error("Failed to query run changes")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query changes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"changes": changes})
}

// GetPriceTrail returns every archived sighting of one property.
func (h *Handler) GetPriceTrail(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run archive unavailable"})
		return
	}

	recordID := c.Param("record_id")
	snapshots, err := h.archive.PriceTrail(recordID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to query price trail")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query price trail"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}
