package archive

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"hometracker/server/internal/models"
	"hometracker/server/internal/storage"
)

// Archiver moves confirmed-missing listings into the archive store and
// propagates the archived status to their communities' permanent records.
// The move is a single logical operation: on partial failure the listing
// stays reachable in at least one store.
type Archiver struct {
	listings  storage.ListingStore
	archive   storage.ArchiveStore
	timelines storage.TimelineStore
	logger    *logrus.Logger
}

func NewArchiver(listings storage.ListingStore, archive storage.ArchiveStore, timelines storage.TimelineStore, logger *logrus.Logger) *Archiver {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Archiver{
		listings:  listings,
		archive:   archive,
		timelines: timelines,
		logger:    logger,
	}
}

// Archive moves each approved listing to the archive store with the given
// reason. Failures are per-listing; the rest of the set still completes.
func (a *Archiver) Archive(ctx context.Context, listingIDs []string, reason string) int {
	archived := 0
	for _, id := range listingIDs {
		if ctx.Err() != nil {
			break
		}
		moved, err := a.archiveOne(id, reason)
		if err != nil {
			a.logger.WithError(err).WithField("listing_id", id).Error("Failed to archive listing")
			continue
		}
		if moved {
			archived++
		}
	}

	if archived > 0 {
		a.logger.WithFields(logrus.Fields{
			"archived": archived,
			"reason":   reason,
		}).Info("Archived listings")
	}
	return archived
}

// archiveOne moves a single listing and reports whether anything was
// actually archived; a listing already gone from the active store is a
// no-op, not an archival.
func (a *Archiver) archiveOne(listingID, reason string) (bool, error) {
	listing, err := a.listings.Get(listingID)
	if err != nil {
		return false, err
	}
	if listing == nil {
		a.logger.WithField("listing_id", listingID).Warn("Listing already gone from active store")
		return false, nil
	}

	now := time.Now()
	row := &models.ArchivedListing{
		ListingID:         listing.ListingID,
		Status:            models.StatusArchived,
		DataSource:        listing.DataSource,
		Name:              listing.Name,
		URL:               listing.URL,
		Price:             listing.Price,
		Address:           listing.Address,
		RawData:           listing.RawData,
		ArchivedAt:        now,
		ArchiveReason:     reason,
		OriginalScrapedAt: listing.ScrapedAt,
		FirstScrapedAt:    listing.FirstScrapedAt,
	}

	if err := a.archive.Insert(row); err != nil {
		return false, err
	}
	if err := a.listings.Delete(listingID); err != nil {
		// The listing now exists in both stores; remove the archive copy
		// so it remains reachable in exactly one.
		if rollbackErr := a.archive.DeleteByListingID(listingID); rollbackErr != nil {
			a.logger.WithError(rollbackErr).WithField("listing_id", listingID).
				Warn("Listing left in both stores after failed delete")
		}
		return false, err
	}

	a.consolidateTimelines(listing.ListingID, reason, now)

	if err := a.listings.MarkCommunitiesArchived(listingID, now); err != nil {
		a.logger.WithError(err).WithField("listing_id", listingID).Error("Failed to archive community rows")
	}
	return true, nil
}

// consolidateTimelines flips listing_status on every permanent record under
// the listing. Each community flips independently; the price timelines are
// retained in full.
func (a *Archiver) consolidateTimelines(listingID, reason string, archivedAt time.Time) {
	records, err := a.timelines.ByListingID(listingID)
	if err != nil {
		a.logger.WithError(err).WithField("listing_id", listingID).Error("Failed to load permanent records for archival")
		return
	}
	if len(records) == 0 {
		a.logger.WithField("listing_id", listingID).Warn("No permanent price history found for archived listing")
		return
	}

	meta := models.ArchiveMetadata{ArchivedAt: archivedAt, ArchiveReason: reason}
	for _, record := range records {
		if err := a.timelines.MarkArchived(record.PermanentID, meta); err != nil {
			a.logger.WithError(err).WithField("permanent_id", record.PermanentID).Error("Failed to mark permanent record archived")
		}
	}

	a.logger.WithFields(logrus.Fields{
		"listing_id": listingID,
		"records":    len(records),
	}).Info("Consolidated permanent price history for archived listing")
}

// SweepStale archives listings not seen for the given number of days. This
// runs separately from the per-pass missing detection.
func (a *Archiver) SweepStale(ctx context.Context, maxAgeDays int) int {
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	stale, err := a.listings.StaleBefore(cutoff)
	if err != nil {
		a.logger.WithError(err).Error("Failed to detect stale listings")
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	a.logger.WithFields(logrus.Fields{
		"count":        len(stale),
		"max_age_days": maxAgeDays,
	}).Info("Found stale listings")

	ids := make([]string, len(stale))
	for i, listing := range stale {
		ids[i] = listing.ListingID
	}
	return a.Archive(ctx, ids, models.ReasonStale)
}
