package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Listing lifecycle statuses. A listing only ever leaves the active store
// through the archiver; "archived" rows live in the archive table.
const (
	StatusNew      = "new"
	StatusUpdated  = "updated"
	StatusActive   = "active"
	StatusArchived = "archived"
)

// SourceKind identifies the provenance of a scraped record. The comparator
// picks its comparable field set based on this, so the string tag from the
// supplier is converted exactly once at ingestion.
type SourceKind int

const (
	SourceUnknown SourceKind = iota
	SourceStructured
	SourceHTMLFallback
)

// SourceKindFromTag maps a supplier provenance tag to a SourceKind.
func SourceKindFromTag(tag string) SourceKind {
	switch tag {
	case "json_ld", "structured":
		return SourceStructured
	case "html_fallback":
		return SourceHTMLFallback
	default:
		return SourceUnknown
	}
}

func (k SourceKind) String() string {
	switch k {
	case SourceStructured:
		return "json_ld"
	case SourceHTMLFallback:
		return "html_fallback"
	default:
		return "unknown"
	}
}

// JSONMap stores an opaque structured payload as a JSON text column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
}

// StringList stores a set of string tags as a JSON text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
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
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}

// Listing is a top-level scraped property page in the active store.
type Listing struct {
	ListingID  string `gorm:"primaryKey" json:"listing_id"`
	Status     string `gorm:"index" json:"listing_status"`
	DataSource string `json:"data_source"`

	// Canonical comparable fields extracted by the supplier. Fields a
	// provenance cannot produce are left empty and compare as unknown.
	Name         string  `json:"name"`
	URL          string  `json:"url"`
	Price        string  `json:"price"`
	Availability string  `json:"availability"`
	Address      string  `json:"address"`
	Telephone    string  `json:"telephone"`
	Condition    string  `json:"condition"`
	RawData      JSONMap `gorm:"type:text" json:"raw_data"`

	ScrapedAt          time.Time  `gorm:"index" json:"scraped_at"`
	FirstScrapedAt     time.Time  `json:"first_scraped_at"`
	PreviousScrapedAt  *time.Time `json:"previous_scraped_at,omitempty"`
	PreviousDataSource string     `json:"previous_data_source,omitempty"`

	// Nested communities from the same scrape. Persisted separately; the
	// relation is a weak back-reference, not ownership.
	Communities []Community `gorm:"-" json:"communities,omitempty"`
}

func (Listing) TableName() string {
	return "listings"
}

// Community is an individually priced unit nested under a Listing.
type Community struct {
	CommunityID string `gorm:"primaryKey" json:"community_id"`
	ListingID   string `gorm:"index" json:"listing_id"`

	Name                  string     `json:"name"`
	URL                   string     `json:"url"`
	Price                 float64    `json:"price"`
	Currency              string     `json:"price_currency"`
	BuildStatus           StringList `gorm:"type:text" json:"build_status"`
	BuildType             string     `json:"build_type"`
	AccommodationCategory string     `json:"accommodation_category"`
	OfferedBy             string     `json:"offered_by"`

	StreetAddress string  `json:"street_address"`
	City          string  `gorm:"index" json:"city"`
	County        string  `json:"county"`
	Region        string  `json:"region"`
	PostalCode    string  `json:"postal_code"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`

	ListingStatus string    `gorm:"index" json:"listing_status"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

func (Community) TableName() string {
	return "communities"
}

// DeriveCommunityID builds the stable community identity from (url, name).
// The same pair must always yield the same id or timeline continuity breaks.
func DeriveCommunityID(name, url string) string {
	if name == "" || url == "" {
		return ""
	}
	clean := strings.NewReplacer(" ", "_", ",", "", ".", "").Replace(name)
	return url + "_" + clean
}

// ArchivedListing is an append-only copy of a listing moved out of the
// active store.
type ArchivedListing struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID         string    `gorm:"index" json:"listing_id"`
	Status            string    `json:"listing_status"`
	DataSource        string    `json:"data_source"`
	Name              string    `json:"name"`
	URL               string    `json:"url"`
	Price             string    `json:"price"`
	Address           string    `json:"address"`
	RawData           JSONMap   `gorm:"type:text" json:"raw_data"`
	ArchivedAt        time.Time `gorm:"index" json:"archived_at"`
	ArchiveReason     string    `json:"archive_reason"`
	OriginalScrapedAt time.Time `json:"original_scraped_at"`
	FirstScrapedAt    time.Time `json:"first_scraped_at"`
}

func (ArchivedListing) TableName() string {
	return "archived_listings"
}

// Archive reasons recorded on the archived copy.
const (
	ReasonMissingFromScrape = "missing-from-scrape"
	ReasonExplicitlyRemoved = "explicitly-removed"
	ReasonStale             = "stale"
)
