package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hometracker/server/internal/models"
)

type fakeTimelineStore struct {
	records map[string]*models.PermanentRecord
	getErr  error
}

func newFakeTimelineStore() *fakeTimelineStore {
	return &fakeTimelineStore{records: make(map[string]*models.PermanentRecord)}
}

func (f *fakeTimelineStore) Get(permanentID string) (*models.PermanentRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	record, ok := f.records[permanentID]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (f *fakeTimelineStore) Save(record *models.PermanentRecord) error {
	clone := *record
	f.records[record.PermanentID] = &clone
	return nil
}

func (f *fakeTimelineStore) All() ([]models.PermanentRecord, error) {
	var out []models.PermanentRecord
	for _, record := range f.records {
		out = append(out, *record)
	}
	return out, nil
}

func (f *fakeTimelineStore) ByListingID(listingID string) ([]models.PermanentRecord, error) {
	var out []models.PermanentRecord
	for _, record := range f.records {
		if record.ListingID == listingID {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (f *fakeTimelineStore) MarkArchived(permanentID string, meta models.ArchiveMetadata) error {
	record, ok := f.records[permanentID]
	if !ok {
		return errors.New("record not found")
	}
	record.ListingStatus = models.StatusArchived
	record.ArchiveMetadata = &meta
	return nil
}

func scrapeEntry(date time.Time, price float64) models.PriceTimelineEntry {
	return models.PriceTimelineEntry{
		Date:     date,
		Price:    price,
		Currency: "USD",
		Source:   models.EntrySourceScrape,
	}
}

func TestNormalize_DeduplicatesSameDayKeepingLatest(t *testing.T) {
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	epoch := day.AddDate(0, 0, -1)
	timeline := models.Timeline{
		scrapeEntry(day.Add(9*time.Hour), 500000),
		scrapeEntry(day.Add(17*time.Hour), 510000),
		scrapeEntry(day.Add(12*time.Hour), 505000),
	}

	normalized := Normalize(timeline, epoch, day)

	// Epoch day gets one backfilled entry; the observed day keeps only the
	// 17:00 observation.
	assert.Len(t, normalized, 2)
	last := normalized[len(normalized)-1]
	assert.Equal(t, 510000.0, last.Price)
	assert.Equal(t, 17, last.Date.Hour())
}

func TestNormalize_BackwardBackfillCoversEpochToFirstEntry(t *testing.T) {
	epoch := time.Date(2025, 9, 11, 0, 0, 0, 0, time.UTC)
	first := time.Date(2025, 9, 15, 10, 30, 0, 0, time.UTC)

	normalized := Normalize(models.Timeline{scrapeEntry(first, 480000)}, epoch, first)

	// 09-11 through 09-14 synthesized, 09-15 real.
	assert.Len(t, normalized, 5)
	for i, entry := range normalized[:4] {
		assert.Equal(t, models.EntrySourceBackfill, entry.Source)
		assert.Equal(t, 480000.0, entry.Price)
		assert.Equal(t, models.ChangeStable, entry.ChangeType)
		assert.Equal(t, epoch.AddDate(0, 0, i).Format("2006-01-02"), entry.Date.UTC().Format("2006-01-02"))
	}
	assert.Equal(t, models.EntrySourceScrape, normalized[4].Source)
}

func TestNormalize_ForwardBackfillExtendsToToday(t *testing.T) {
	epoch := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	observed := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	now := time.Date(2026, 8, 4, 14, 0, 0, 0, time.UTC)

	normalized := Normalize(models.Timeline{scrapeEntry(observed, 600000)}, epoch, now)

	assert.Len(t, normalized, 4)
	for _, entry := range normalized[1:] {
		assert.Equal(t, models.EntrySourceForwardBackfill, entry.Source)
		assert.Equal(t, 600000.0, entry.Price, "gap days carry the last known price")
	}
}

func TestNormalize_AscendingOrderAndOnePerDay(t *testing.T) {
	epoch := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	timeline := models.Timeline{
		scrapeEntry(time.Date(2026, 8, 7, 9, 0, 0, 0, time.UTC), 520000),
		scrapeEntry(time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC), 500000),
		scrapeEntry(time.Date(2026, 8, 3, 15, 0, 0, 0, time.UTC), 501000),
	}

	normalized := Normalize(timeline, epoch, now)

	// 08-01..08-02 backfilled, 08-03 and 08-07 real, 08-08..08-10 extended.
	assert.Len(t, normalized, 7)
	seen := make(map[string]bool)
	for i, entry := range normalized {
		key := entry.Date.UTC().Format("2006-01-02")
		assert.False(t, seen[key], "duplicate day %s", key)
		seen[key] = true
		if i > 0 {
			assert.True(t, normalized[i-1].Date.Before(entry.Date))
		}
	}
}

func TestNormalize_EmptyTimeline(t *testing.T) {
	assert.Empty(t, Normalize(nil, time.Now().AddDate(0, 0, -10), time.Now()))
}

func TestEngine_ApplyCreatesRecordWithDerivedIdentity(t *testing.T) {
	store := newFakeTimelineStore()
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	epoch := now.AddDate(0, 0, -3)
	engine := NewEngine(store, epoch, nil)

	community := models.Community{
		CommunityID:           "https://example.com/oaks_The_Oaks",
		ListingID:             "oaks",
		Name:                  "The Oaks",
		Price:                 500000,
		AccommodationCategory: models.CategorySingleFamily,
		City:                  "Ventura",
		County:                "Ventura County",
	}

	builder := NewBuilder(store, 5.0, nil)
	snap, err := builder.Build(community, now)
	assert.NoError(t, err)
	assert.NotNil(t, snap)

	assert.NoError(t, engine.Apply(snap, now))

	record, _ := store.Get(models.PermanentID(community.CommunityID))
	assert.NotNil(t, record)
	assert.Equal(t, community.CommunityID, record.CommunityID)
	assert.Equal(t, "Ventura", record.City)
	assert.Equal(t, models.StatusActive, record.ListingStatus)
	// Backfilled from the epoch through today.
	assert.Len(t, record.PriceTimeline, 4)
	assert.Equal(t, 500000.0, record.Metrics.MostRecentPrice)
}

func TestEngine_ApplyReactivatesArchivedRecord(t *testing.T) {
	store := newFakeTimelineStore()
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	engine := NewEngine(store, now.AddDate(0, 0, -1), nil)
	builder := NewBuilder(store, 5.0, nil)

	community := models.Community{
		CommunityID: "https://example.com/oaks_The_Oaks",
		ListingID:   "oaks-relisted",
		Name:        "The Oaks",
		Price:       510000,
	}
	permanentID := models.PermanentID(community.CommunityID)

	// The community was delisted earlier and its record archived.
	store.Save(&models.PermanentRecord{
		PermanentID:   permanentID,
		CommunityID:   community.CommunityID,
		ListingID:     "oaks",
		ListingStatus: models.StatusArchived,
		ArchiveMetadata: &models.ArchiveMetadata{
			ArchivedAt:    now.AddDate(0, 0, -30),
			ArchiveReason: models.ReasonMissingFromScrape,
		},
		PriceTimeline: models.Timeline{scrapeEntry(now.AddDate(0, 0, -31), 500000)},
	})

	snap, err := builder.Build(community, now)
	assert.NoError(t, err)
	assert.NoError(t, engine.Apply(snap, now))

	record, _ := store.Get(permanentID)
	assert.Equal(t, models.StatusActive, record.ListingStatus, "a relisted community comes back to market")
	assert.Nil(t, record.ArchiveMetadata)
	assert.Equal(t, "oaks-relisted", record.ListingID)
	assert.GreaterOrEqual(t, len(record.PriceTimeline), 2, "pre-archival history is retained")
}

func TestEngine_ApplyRefreshesLocationFields(t *testing.T) {
	store := newFakeTimelineStore()
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	engine := NewEngine(store, now, nil)
	builder := NewBuilder(store, 5.0, nil)

	// First snapshot arrived without location data.
	community := models.Community{
		CommunityID: "https://example.com/oaks_The_Oaks",
		ListingID:   "oaks",
		Name:        "The Oaks",
		Price:       500000,
	}
	snap, _ := builder.Build(community, now)
	assert.NoError(t, engine.Apply(snap, now))

	community.City = "Ventura"
	community.County = "Ventura County"
	community.Latitude = 34.28
	community.Longitude = -119.29
	snap, _ = builder.Build(community, now.Add(time.Hour))
	assert.NoError(t, engine.Apply(snap, now.Add(time.Hour)))

	record, _ := store.Get(models.PermanentID(community.CommunityID))
	assert.Equal(t, "Ventura", record.City)
	assert.Equal(t, "Ventura County", record.County)
	assert.Equal(t, 34.28, record.Latitude)
	assert.Equal(t, -119.29, record.Longitude)
}

func TestEngine_StablePriceOverThreeDailyRuns(t *testing.T) {
	store := newFakeTimelineStore()
	start := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	engine := NewEngine(store, start, nil)
	builder := NewBuilder(store, 5.0, nil)

	community := models.Community{
		CommunityID: "https://example.com/oaks_The_Oaks",
		ListingID:   "oaks",
		Name:        "The Oaks",
		Price:       500000,
	}

	for day := 0; day < 3; day++ {
		now := start.AddDate(0, 0, day)
		snap, err := builder.Build(community, now)
		assert.NoError(t, err)
		assert.NoError(t, engine.Apply(snap, now))
	}

	record, _ := store.Get(models.PermanentID(community.CommunityID))
	assert.Len(t, record.PriceTimeline, 3)
	for _, entry := range record.PriceTimeline {
		assert.Equal(t, 500000.0, entry.Price)
		assert.Equal(t, models.ChangeStable, entry.ChangeType)
	}
	assert.Equal(t, 500000.0, record.Metrics.AveragePrice)
	assert.Equal(t, 500000.0, record.Metrics.MinPrice)
	assert.Equal(t, 500000.0, record.Metrics.MaxPrice)
}

func TestEngine_ApplySameDayTwiceKeepsOneEntry(t *testing.T) {
	store := newFakeTimelineStore()
	morning := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	evening := morning.Add(8 * time.Hour)
	engine := NewEngine(store, morning, nil)
	builder := NewBuilder(store, 5.0, nil)

	community := models.Community{
		CommunityID: "https://example.com/oaks_The_Oaks",
		ListingID:   "oaks",
		Name:        "The Oaks",
		Price:       500000,
	}

	snap, _ := builder.Build(community, morning)
	assert.NoError(t, engine.Apply(snap, morning))

	community.Price = 505000
	snap, _ = builder.Build(community, evening)
	assert.NoError(t, engine.Apply(snap, evening))

	record, _ := store.Get(models.PermanentID(community.CommunityID))
	assert.Len(t, record.PriceTimeline, 1, "same-day observations collapse to one entry")
	assert.Equal(t, 505000.0, record.PriceTimeline[0].Price)
}
