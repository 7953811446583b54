package models

import (
	"crypto/md5"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Accommodation categories split out in city metrics.
const (
	CategorySingleFamily = "Single Family Residence"
	CategoryCondominium  = "Condominium"
)

// CityMetrics holds the current numbers for one property type in a city.
type CityMetrics struct {
	Count          int                 `json:"count"`
	AvgPrice       *float64            `json:"avg_price"`
	MovingAverages map[string]*float64 `json:"moving_averages"`
	PercentChanges map[string]*float64 `json:"percent_changes"`
}

// CityMetricsSet splits current active metrics by property type.
type CityMetricsSet struct {
	SingleFamily CityMetrics `json:"sfr"`
	Condominium  CityMetrics `json:"condo"`
	Overall      CityMetrics `json:"overall"`
}

func (s CityMetricsSet) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *CityMetricsSet) Scan(value interface{}) error {
	if value == nil {
		*s = CityMetricsSet{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported type for CityMetricsSet: %T", value)
	}
}

// DailyCityAverage is one day of the rolling historical series. Listing
// counts reflect how many properties were known on that date, not today.
type DailyCityAverage struct {
	Date                string   `json:"date"`
	SFRAvgPrice         *float64 `json:"sfr_avg_price"`
	SFRListingCount     int      `json:"sfr_listing_count"`
	CondoAvgPrice       *float64 `json:"condo_avg_price"`
	CondoListingCount   int      `json:"condo_listing_count"`
	OverallAvgPrice     *float64 `json:"overall_avg_price"`
	OverallListingCount int      `json:"overall_listing_count"`
}

// DailyAverageList is the bounded trailing window of daily averages,
// ascending by date, stored as a JSON column.
type DailyAverageList []DailyCityAverage

func (l DailyAverageList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *DailyAverageList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for DailyAverageList: %T", value)
	}
}

// CitySnapshot is the rollup per (city, county[, region]).
type CitySnapshot struct {
	CityID string `gorm:"primaryKey" json:"city_id"`
	City   string `gorm:"index" json:"city"`
	County string `json:"county"`
	Region string `json:"region"`

	Current       CityMetricsSet   `gorm:"type:text" json:"current_active_metrics"`
	DailyAverages DailyAverageList `gorm:"type:text" json:"historical_daily_averages"`

	// Geographic extent of the member communities.
	MinLatitude  float64 `json:"min_latitude"`
	MinLongitude float64 `json:"min_longitude"`
	MaxLatitude  float64 `json:"max_latitude"`
	MaxLongitude float64 `json:"max_longitude"`
	CenterLat    float64 `json:"center_latitude"`
	CenterLng    float64 `json:"center_longitude"`

	LastSnapshotDate time.Time `json:"last_snapshot_date"`
	CreatedAt        time.Time `json:"created_at"`
}

func (CitySnapshot) TableName() string {
	return "price_city_snapshot"
}

// CityID derives the stable snapshot key. Region is part of the key only
// when present, so legacy two-part ids stay valid.
func CityID(city, county, region string) string {
	key := city + "_" + county
	if region != "" {
		key += "_" + region
	}
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}
