package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"hometracker/server/internal/models"
)

// GormListingStore implements ListingStore over the listings and
// communities tables.
type GormListingStore struct {
	db *gorm.DB
}

func NewListingStore(db *gorm.DB) *GormListingStore {
	return &GormListingStore{db: db}
}

func (s *GormListingStore) ExistingIDs() ([]string, error) {
	var ids []string
	err := s.db.Model(&models.Listing{}).Pluck("listing_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load existing listing ids: %w", err)
	}
	return ids, nil
}

func (s *GormListingStore) Count() (int64, error) {
	var count int64
	err := s.db.Model(&models.Listing{}).Count(&count).Error
	return count, err
}

func (s *GormListingStore) Get(listingID string) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.First(&listing, "listing_id = ?", listingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load listing %s: %w", listingID, err)
	}
	return &listing, nil
}

func (s *GormListingStore) List(limit int) ([]models.Listing, error) {
	var listings []models.Listing
	query := s.db.Order("scraped_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, nil
}

func (s *GormListingStore) Insert(listing *models.Listing) error {
	if err := s.db.Create(listing).Error; err != nil {
		return fmt.Errorf("failed to insert listing %s: %w", listing.ListingID, err)
	}
	return nil
}

func (s *GormListingStore) Replace(listing *models.Listing) error {
	if err := s.db.Save(listing).Error; err != nil {
		return fmt.Errorf("failed to replace listing %s: %w", listing.ListingID, err)
	}
	return nil
}

func (s *GormListingStore) TouchScraped(listingID string, scrapedAt time.Time) error {
	err := s.db.Model(&models.Listing{}).
		Where("listing_id = ?", listingID).
		Updates(map[string]interface{}{
			"scraped_at": scrapedAt,
			"status":     models.StatusActive,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to touch listing %s: %w", listingID, err)
	}
	return nil
}

func (s *GormListingStore) Delete(listingID string) error {
	if err := s.db.Delete(&models.Listing{}, "listing_id = ?", listingID).Error; err != nil {
		return fmt.Errorf("failed to delete listing %s: %w", listingID, err)
	}
	return nil
}

func (s *GormListingStore) StaleBefore(cutoff time.Time) ([]models.Listing, error) {
	var listings []models.Listing
	err := s.db.Where("scraped_at < ?", cutoff).Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load stale listings: %w", err)
	}
	return listings, nil
}

// ReplaceCommunities swaps out the nested community rows for a listing in
// one transaction.
func (s *GormListingStore) ReplaceCommunities(listingID string, communities []models.Community) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Community{}, "listing_id = ?", listingID).Error; err != nil {
			return fmt.Errorf("failed to clear communities for %s: %w", listingID, err)
		}
		for i := range communities {
			communities[i].ListingID = listingID
			if err := tx.Create(&communities[i]).Error; err != nil {
				return fmt.Errorf("failed to insert community %s: %w", communities[i].CommunityID, err)
			}
		}
		return nil
	})
}

func (s *GormListingStore) CommunitiesFor(listingID string) ([]models.Community, error) {
	var communities []models.Community
	err := s.db.Where("listing_id = ?", listingID).Find(&communities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load communities for %s: %w", listingID, err)
	}
	return communities, nil
}

func (s *GormListingStore) ActiveCommunities() ([]models.Community, error) {
	var communities []models.Community
	err := s.db.Where("listing_status <> ?", models.StatusArchived).Find(&communities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active communities: %w", err)
	}
	return communities, nil
}

func (s *GormListingStore) MarkCommunitiesArchived(listingID string, archivedAt time.Time) error {
	err := s.db.Model(&models.Community{}).
		Where("listing_id = ?", listingID).
		Updates(map[string]interface{}{
			"listing_status": models.StatusArchived,
			"scraped_at":     archivedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to archive communities for %s: %w", listingID, err)
	}
	return nil
}
