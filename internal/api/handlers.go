package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"hometracker/server/config"
	"hometracker/server/internal/ingest"
	"hometracker/server/internal/models"
	"hometracker/server/internal/pipeline"
	"hometracker/server/internal/storage"
)

type Handler struct {
	listings  storage.ListingStore
	archive   storage.ArchiveStore
	timelines storage.TimelineStore
	cities    storage.CityStore
	pipeline  *pipeline.Pipeline
	queue     *ingest.BatchQueue
	logger    *logrus.Logger
}

func NewHandler(
	listings storage.ListingStore,
	archive storage.ArchiveStore,
	timelines storage.TimelineStore,
	cities storage.CityStore,
	p *pipeline.Pipeline,
	queue *ingest.BatchQueue,
	logger *logrus.Logger,
) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		listings:  listings,
		archive:   archive,
		timelines: timelines,
		cities:    cities,
		pipeline:  p,
		queue:     queue,
		logger:    logger,
	}
}

// GetSummary returns the summary of the most recent pass.
func (h *Handler) GetSummary(c *gin.Context) {
	summary := h.pipeline.LastSummary()
	if summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No pass has completed yet"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetListings returns active listings, most recently scraped first.
func (h *Handler) GetListings(c *gin.Context) {
	limit := parseLimit(c, 100)
	listings, err := h.listings.List(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get listings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get listings"})
		return
	}
	c.JSON(http.StatusOK, listings)
}

// GetListing returns a single listing with its nested communities.
func (h *Handler) GetListing(c *gin.Context) {
	listingID := c.Param("listing_id")
	listing, err := h.listings.Get(listingID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get listing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get listing"})
		return
	}
	if listing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}

	communities, err := h.listings.CommunitiesFor(listingID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get communities")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get communities"})
		return
	}
	listing.Communities = communities

	c.JSON(http.StatusOK, listing)
}

// GetArchived returns recently archived listings.
func (h *Handler) GetArchived(c *gin.Context) {
	limit := parseLimit(c, 100)
	archived, err := h.archive.List(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get archived listings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get archived listings"})
		return
	}
	c.JSON(http.StatusOK, archived)
}

// GetTimeline returns the permanent price record for a community.
func (h *Handler) GetTimeline(c *gin.Context) {
	permanentID := c.Param("permanent_id")
	record, err := h.timelines.Get(permanentID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get price timeline")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get price timeline"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Price timeline not found"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetCities returns every city snapshot.
func (h *Handler) GetCities(c *gin.Context) {
	snapshots, err := h.cities.All()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get city snapshots")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get city snapshots"})
		return
	}
	c.JSON(http.StatusOK, snapshots)
}

// GetCityHistory returns the trailing daily average series for a city.
func (h *Handler) GetCityHistory(c *gin.Context) {
	cityID := c.Param("city_id")
	snapshot, err := h.cities.Get(cityID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get city snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get city snapshot"})
		return
	}
	if snapshot == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "City not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"city_id":        snapshot.CityID,
		"city":           snapshot.City,
		"county":         snapshot.County,
		"daily_averages": snapshot.DailyAverages,
	})
}

// GetRegions returns the supported regions.
func (h *Handler) GetRegions(c *gin.Context) {
	c.JSON(http.StatusOK, config.SupportedRegions)
}

// RunPass enqueues a posted batch for a full reconciliation pass.
func (h *Handler) RunPass(c *gin.Context) {
	var batch []*models.Listing
	if err := c.ShouldBindJSON(&batch); err != nil {
		h.logger.WithError(err).Error("Failed to parse batch")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid batch payload"})
		return
	}

	if err := h.queue.Push(batch); err != nil {
		h.logger.WithError(err).Error("Failed to enqueue batch")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":     "success",
		"message":    "Batch queued for processing",
		"batch_size": len(batch),
	})
}

// RemoveListing archives a listing on request, outside the scrape cycle.
func (h *Handler) RemoveListing(c *gin.Context) {
	listingID := c.Param("listing_id")
	listing, err := h.listings.Get(listingID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get listing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get listing"})
		return
	}
	if listing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}

	archived := h.pipeline.Archive(c.Request.Context(), []string{listingID}, models.ReasonExplicitlyRemoved)
	if archived == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to archive listing"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"listing_id": listingID,
	})
}

// SweepStale archives listings that have not been seen recently.
func (h *Handler) SweepStale(c *gin.Context) {
	archived := h.pipeline.SweepStale(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"archived": archived,
	})
}

func parseLimit(c *gin.Context, fallback int) int {
	limitStr := c.DefaultQuery("limit", strconv.Itoa(fallback))
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
