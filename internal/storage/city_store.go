package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"hometracker/server/internal/models"
)

// GormCityStore implements CityStore over the price_city_snapshot table.
type GormCityStore struct {
	db *gorm.DB
}

func NewCityStore(db *gorm.DB) *GormCityStore {
	return &GormCityStore{db: db}
}

func (s *GormCityStore) Get(cityID string) (*models.CitySnapshot, error) {
	var snapshot models.CitySnapshot
	err := s.db.First(&snapshot, "city_id = ?", cityID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load city snapshot %s: %w", cityID, err)
	}
	return &snapshot, nil
}

func (s *GormCityStore) Upsert(snapshot *models.CitySnapshot) error {
	if err := s.db.Save(snapshot).Error; err != nil {
		return fmt.Errorf("failed to upsert city snapshot %s: %w", snapshot.CityID, err)
	}
	return nil
}

func (s *GormCityStore) All() ([]models.CitySnapshot, error) {
	var snapshots []models.CitySnapshot
	if err := s.db.Order("city").Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("failed to load city snapshots: %w", err)
	}
	return snapshots, nil
}
