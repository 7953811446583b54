package models

import (
	"crypto/md5"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Timeline entry sources.
const (
	EntrySourceScrape          = "scrape"
	EntrySourceBackfill        = "backfill"
	EntrySourceForwardBackfill = "forward_backfill"
)

// Change classifications for a timeline entry.
const (
	ChangeIncrease = "increase"
	ChangeDecrease = "decrease"
	ChangeStable   = "stable"
)

// EntryContext captures the community state at the time an entry was written.
type EntryContext struct {
	BuildStatus      []string `json:"build_status"`
	BuildType        string   `json:"build_type"`
	ChangePercentage float64  `json:"change_percentage"`
}

// PriceTimelineEntry is one point in a community's permanent price history.
// A normalized timeline holds at most one entry per calendar day.
type PriceTimelineEntry struct {
	Date       time.Time    `json:"date"`
	Price      float64      `json:"price"`
	Currency   string       `json:"currency"`
	Source     string       `json:"source"`
	ChangeType string       `json:"change_type"`
	Context    EntryContext `json:"context"`
}

// Timeline is the ordered sequence of price entries, stored as a JSON column.
type Timeline []PriceTimelineEntry

func (t Timeline) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *Timeline) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("unsupported type for Timeline: %T", value)
	}
}

// AggregatedMetrics are derived from the full timeline on every update.
// Window maps are keyed like "7_day_average" / "7_day_change"; a nil value
// means no data fell inside that window.
type AggregatedMetrics struct {
	MostRecentPrice float64             `json:"most_recent_price"`
	MinPrice        float64             `json:"min_price"`
	MaxPrice        float64             `json:"max_price"`
	AveragePrice    float64             `json:"average_price"`
	DaysTracked     int                 `json:"days_tracked"`
	MovingAverages  map[string]*float64 `json:"moving_averages"`
	PercentChanges  map[string]*float64 `json:"percent_change_metrics"`
}

func (m AggregatedMetrics) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *AggregatedMetrics) Scan(value interface{}) error {
	if value == nil {
		*m = AggregatedMetrics{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type for AggregatedMetrics: %T", value)
	}
}

// ArchiveMetadata is set on a permanent record when its community is
// archived. The timeline itself is always retained.
type ArchiveMetadata struct {
	ArchivedAt    time.Time `json:"archived_at"`
	ArchiveReason string    `json:"archive_reason"`
}

func (m *ArchiveMetadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *ArchiveMetadata) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type for ArchiveMetadata: %T", value)
	}
}

// PermanentRecord is the durable price history for one community. It is
// created on the first snapshot and updated in place forever after; routine
// operation never deletes rows from this table.
type PermanentRecord struct {
	PermanentID string `gorm:"primaryKey" json:"permanent_property_id"`
	CommunityID string `gorm:"index" json:"community_id"`
	ListingID   string `gorm:"index" json:"original_listing_id"`

	CommunityName         string  `json:"community_name"`
	AccommodationCategory string  `json:"accommodation_category"`
	OfferedBy             string  `json:"offered_by"`
	StreetAddress         string  `json:"street_address"`
	City                  string  `gorm:"index" json:"city"`
	County                string  `gorm:"index" json:"county"`
	Region                string  `json:"region"`
	PostalCode            string  `json:"postal_code"`
	Latitude              float64 `json:"latitude"`
	Longitude             float64 `json:"longitude"`

	ListingStatus   string            `gorm:"index" json:"listing_status"`
	PriceTimeline   Timeline          `gorm:"type:text" json:"price_timeline"`
	Metrics         AggregatedMetrics `gorm:"type:text" json:"aggregated_metrics"`
	ArchiveMetadata *ArchiveMetadata  `gorm:"type:text" json:"archive_metadata,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

func (PermanentRecord) TableName() string {
	return "price_history_permanent"
}

// PermanentID derives the immutable record key from a community id. It is
// never regenerated from mutable fields like name or price.
func PermanentID(communityID string) string {
	sum := md5.Sum([]byte(communityID))
	return hex.EncodeToString(sum[:])
}
