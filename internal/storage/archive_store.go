package storage

import (
	"fmt"

	"gorm.io/gorm"

	"hometracker/server/internal/models"
)

// GormArchiveStore implements ArchiveStore over the archived_listings table.
type GormArchiveStore struct {
	db *gorm.DB
}

func NewArchiveStore(db *gorm.DB) *GormArchiveStore {
	return &GormArchiveStore{db: db}
}

func (s *GormArchiveStore) Insert(archived *models.ArchivedListing) error {
	if err := s.db.Create(archived).Error; err != nil {
		return fmt.Errorf("failed to insert archived listing %s: %w", archived.ListingID, err)
	}
	return nil
}

// DeleteByListingID undoes an archive insert when the corresponding active
// delete could not complete. It is not part of routine operation.
func (s *GormArchiveStore) DeleteByListingID(listingID string) error {
	if err := s.db.Delete(&models.ArchivedListing{}, "listing_id = ?", listingID).Error; err != nil {
		return fmt.Errorf("failed to delete archived listing %s: %w", listingID, err)
	}
	return nil
}

func (s *GormArchiveStore) List(limit int) ([]models.ArchivedListing, error) {
	var archived []models.ArchivedListing
	query := s.db.Order("archived_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&archived).Error; err != nil {
		return nil, fmt.Errorf("failed to list archived listings: %w", err)
	}
	return archived, nil
}
