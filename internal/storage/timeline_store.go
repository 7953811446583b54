package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"hometracker/server/internal/models"
)

// GormTimelineStore implements TimelineStore over the
// price_history_permanent table.
type GormTimelineStore struct {
	db *gorm.DB
}

func NewTimelineStore(db *gorm.DB) *GormTimelineStore {
	return &GormTimelineStore{db: db}
}

func (s *GormTimelineStore) Get(permanentID string) (*models.PermanentRecord, error) {
	var record models.PermanentRecord
	err := s.db.First(&record, "permanent_id = ?", permanentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load permanent record %s: %w", permanentID, err)
	}
	return &record, nil
}

// Save upserts the full record. Callers must hold the single-writer
// guarantee for the permanent id while calling this.
func (s *GormTimelineStore) Save(record *models.PermanentRecord) error {
	if err := s.db.Save(record).Error; err != nil {
		return fmt.Errorf("failed to save permanent record %s: %w", record.PermanentID, err)
	}
	return nil
}

func (s *GormTimelineStore) All() ([]models.PermanentRecord, error) {
	var records []models.PermanentRecord
	if err := s.db.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load permanent records: %w", err)
	}
	return records, nil
}

func (s *GormTimelineStore) ByListingID(listingID string) ([]models.PermanentRecord, error) {
	var records []models.PermanentRecord
	err := s.db.Where("listing_id = ?", listingID).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load permanent records for %s: %w", listingID, err)
	}
	return records, nil
}

// MarkArchived flips the listing status and attaches archive metadata. The
// timeline itself is untouched.
func (s *GormTimelineStore) MarkArchived(permanentID string, meta models.ArchiveMetadata) error {
	err := s.db.Model(&models.PermanentRecord{}).
		Where("permanent_id = ?", permanentID).
		Updates(map[string]interface{}{
			"listing_status":   models.StatusArchived,
			"archive_metadata": &meta,
			"last_updated":     meta.ArchivedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark permanent record %s archived: %w", permanentID, err)
	}
	return nil
}
