package reconcile

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"hometracker/server/internal/models"
	"hometracker/server/internal/storage"
)

// Changes is the classification result of one reconciliation pass.
type Changes struct {
	New               []string
	Updated           []string
	Unchanged         []string
	RemovedCandidates []string

	// Existing is the size of the stored id set before the pass, used by
	// the archival guard to compute the missing fraction.
	Existing int
	Errors   int
}

// Reconciler diffs a scraped batch against the active store and persists
// the per-listing outcome. Write failures are isolated per entity.
type Reconciler struct {
	store  storage.ListingStore
	logger *logrus.Logger
}

func NewReconciler(store storage.ListingStore, logger *logrus.Logger) *Reconciler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Reconciler{store: store, logger: logger}
}

// Reconcile partitions the batch against existing ids and writes each
// listing according to its classification. The removed candidate set is
// returned for the archival guard; nothing is archived here.
func (r *Reconciler) Reconcile(ctx context.Context, batch []*models.Listing) (*Changes, error) {
	existingIDs, err := r.store.ExistingIDs()
	if err != nil {
		return nil, err
	}

	existing := make(map[string]struct{}, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = struct{}{}
	}

	current := make(map[string]struct{}, len(batch))
	changes := &Changes{Existing: len(existingIDs)}
	now := time.Now()

	for _, listing := range batch {
		if err := ctx.Err(); err != nil {
			return changes, err
		}

		if listing.ListingID == "" {
			r.logger.Warn("Skipping scraped record without listing id")
			changes.Errors++
			continue
		}
		if _, dup := current[listing.ListingID]; dup {
			r.logger.WithField("listing_id", listing.ListingID).Debug("Duplicate listing id in batch")
			continue
		}
		current[listing.ListingID] = struct{}{}

		if _, known := existing[listing.ListingID]; !known {
			r.insertNew(listing, now, changes)
			continue
		}
		r.reconcileExisting(listing, now, changes)
	}

	for _, id := range existingIDs {
		if _, seen := current[id]; !seen {
			changes.RemovedCandidates = append(changes.RemovedCandidates, id)
		}
	}

	r.logger.WithFields(logrus.Fields{
		"scraped":            len(current),
		"existing":           changes.Existing,
		"new":                len(changes.New),
		"updated":            len(changes.Updated),
		"unchanged":          len(changes.Unchanged),
		"removed_candidates": len(changes.RemovedCandidates),
		"errors":             changes.Errors,
	}).Info("Reconciliation complete")

	return changes, nil
}

func (r *Reconciler) insertNew(listing *models.Listing, now time.Time, changes *Changes) {
	listing.Status = models.StatusNew
	listing.ScrapedAt = now
	listing.FirstScrapedAt = now

	if err := r.store.Insert(listing); err != nil {
		r.logger.WithError(err).WithField("listing_id", listing.ListingID).Error("Failed to insert new listing")
		changes.Errors++
		return
	}
	if err := r.writeCommunities(listing, now); err != nil {
		r.logger.WithError(err).WithField("listing_id", listing.ListingID).Error("Failed to write communities")
		changes.Errors++
	}
	changes.New = append(changes.New, listing.ListingID)
}

func (r *Reconciler) reconcileExisting(listing *models.Listing, now time.Time, changes *Changes) {
	stored, err := r.store.Get(listing.ListingID)
	if err != nil || stored == nil {
		r.logger.WithError(err).WithField("listing_id", listing.ListingID).Error("Failed to load stored listing")
		changes.Errors++
		return
	}

	if !Changed(stored, listing) {
		if err := r.store.TouchScraped(listing.ListingID, now); err != nil {
			r.logger.WithError(err).WithField("listing_id", listing.ListingID).Error("Failed to bump scrape timestamp")
			changes.Errors++
			return
		}
		// Community prices move independently of the listing-level fields,
		// so the nested rows are rewritten even when the listing itself is
		// unchanged. Snapshots read the stored communities.
		if err := r.writeCommunities(listing, now); err != nil {
			r.logger.WithError(err).WithField("listing_id", listing.ListingID).Error("Failed to write communities")
			changes.Errors++
		}
		changes.Unchanged = append(changes.Unchanged, listing.ListingID)
		return
	}

	listing.Status = models.StatusUpdated
	listing.ScrapedAt = now
	listing.FirstScrapedAt = stored.FirstScrapedAt
	prevScraped := stored.ScrapedAt
	listing.PreviousScrapedAt = &prevScraped
	listing.PreviousDataSource = stored.DataSource

	if err := r.store.Replace(listing); err != nil {
		r.logger.WithError(err).WithField("listing_id", listing.ListingID).Error("Failed to replace updated listing")
		changes.Errors++
		return
	}
	if err := r.writeCommunities(listing, now); err != nil {
		r.logger.WithError(err).WithField("listing_id", listing.ListingID).Error("Failed to write communities")
		changes.Errors++
	}

	r.logger.WithFields(logrus.Fields{
		"listing_id":      listing.ListingID,
		"previous_source": stored.DataSource,
		"current_source":  listing.DataSource,
	}).Info("Listing updated")
	changes.Updated = append(changes.Updated, listing.ListingID)
}

func (r *Reconciler) writeCommunities(listing *models.Listing, now time.Time) error {
	if len(listing.Communities) == 0 {
		return nil
	}
	communities := make([]models.Community, 0, len(listing.Communities))
	for _, c := range listing.Communities {
		if c.CommunityID == "" {
			c.CommunityID = models.DeriveCommunityID(c.Name, c.URL)
		}
		if c.CommunityID == "" {
			r.logger.WithField("listing_id", listing.ListingID).Warn("Skipping community without derivable id")
			continue
		}
		c.ListingID = listing.ListingID
		c.ListingStatus = models.StatusActive
		c.ScrapedAt = now
		communities = append(communities, c)
	}
	return r.store.ReplaceCommunities(listing.ListingID, communities)
}
