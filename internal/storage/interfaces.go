package storage

import (
	"time"

	"hometracker/server/internal/models"
)

// ListingStore is the active entity collection keyed by listing id.
type ListingStore interface {
	ExistingIDs() ([]string, error)
	Count() (int64, error)
	Get(listingID string) (*models.Listing, error)
	List(limit int) ([]models.Listing, error)
	Insert(listing *models.Listing) error
	Replace(listing *models.Listing) error
	TouchScraped(listingID string, scrapedAt time.Time) error
	Delete(listingID string) error
	StaleBefore(cutoff time.Time) ([]models.Listing, error)

	ReplaceCommunities(listingID string, communities []models.Community) error
	CommunitiesFor(listingID string) ([]models.Community, error)
	ActiveCommunities() ([]models.Community, error)
	MarkCommunitiesArchived(listingID string, archivedAt time.Time) error
}

// ArchiveStore is the append-only archive collection.
type ArchiveStore interface {
	Insert(archived *models.ArchivedListing) error
	DeleteByListingID(listingID string) error
	List(limit int) ([]models.ArchivedListing, error)
}

// TimelineStore owns the permanent price history collection. Routine
// operation never deletes from it.
type TimelineStore interface {
	Get(permanentID string) (*models.PermanentRecord, error)
	Save(record *models.PermanentRecord) error
	All() ([]models.PermanentRecord, error)
	ByListingID(listingID string) ([]models.PermanentRecord, error)
	MarkArchived(permanentID string, meta models.ArchiveMetadata) error
}

// CityStore holds the per-city rollup snapshots.
type CityStore interface {
	Get(cityID string) (*models.CitySnapshot, error)
	Upsert(snapshot *models.CitySnapshot) error
	All() ([]models.CitySnapshot, error)
}
