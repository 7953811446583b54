package pricing

import (
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"hometracker/server/internal/models"
	"hometracker/server/internal/storage"
)

// Engine applies snapshots to the permanent timeline store. Each Apply is
// one read-modify-write of a single record; the caller guarantees no two
// workers hold the same permanent id concurrently.
type Engine struct {
	timelines storage.TimelineStore
	epoch     time.Time
	logger    *logrus.Logger
}

func NewEngine(timelines storage.TimelineStore, epoch time.Time, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Engine{timelines: timelines, epoch: epoch, logger: logger}
}

// Apply appends the snapshot to the community's timeline, normalizes it
// (dedup + backfill), recomputes the aggregated metrics and persists the
// record.
func (e *Engine) Apply(snap *Snapshot, now time.Time) error {
	record, err := e.timelines.Get(snap.PermanentID)
	if err != nil {
		return err
	}
	if record == nil {
		record = newRecord(snap, now)
	}

	entry := models.PriceTimelineEntry{
		Date:       snap.TakenAt,
		Price:      snap.Price,
		Currency:   snap.Currency,
		Source:     models.EntrySourceScrape,
		ChangeType: snap.ChangeType,
		Context: models.EntryContext{
			BuildStatus:      snap.Community.BuildStatus,
			BuildType:        snap.Community.BuildType,
			ChangePercentage: snap.ChangePercentage,
		},
	}

	record.PriceTimeline = Normalize(append(record.PriceTimeline, entry), e.epoch, now)
	record.Metrics = ComputeMetrics(record.PriceTimeline, now)
	record.LastUpdated = now

	// Keep the mutable community fields current; the permanent id never
	// changes.
	record.CommunityName = snap.Community.Name
	record.ListingID = snap.Community.ListingID
	record.AccommodationCategory = snap.Community.AccommodationCategory
	record.OfferedBy = snap.Community.OfferedBy
	record.StreetAddress = snap.Community.StreetAddress
	record.City = snap.Community.City
	record.County = snap.Community.County
	record.Region = snap.Community.Region
	record.PostalCode = snap.Community.PostalCode
	record.Latitude = snap.Community.Latitude
	record.Longitude = snap.Community.Longitude

	// A fresh snapshot means the community is back on the market; an
	// archived record reactivates.
	record.ListingStatus = models.StatusActive
	record.ArchiveMetadata = nil

	return e.timelines.Save(record)
}

func newRecord(snap *Snapshot, now time.Time) *models.PermanentRecord {
	c := snap.Community
	return &models.PermanentRecord{
		PermanentID:           snap.PermanentID,
		CommunityID:           c.CommunityID,
		ListingID:             c.ListingID,
		CommunityName:         c.Name,
		AccommodationCategory: c.AccommodationCategory,
		OfferedBy:             c.OfferedBy,
		StreetAddress:         c.StreetAddress,
		City:                  c.City,
		County:                c.County,
		Region:                c.Region,
		PostalCode:            c.PostalCode,
		Latitude:              c.Latitude,
		Longitude:             c.Longitude,
		ListingStatus:         models.StatusActive,
		CreatedAt:             now,
	}
}

// Normalize enforces the timeline invariants: at most one entry per
// calendar day (latest timestamp wins), backfill from the epoch date to the
// earliest real entry, extension from the latest real entry through today,
// ascending order.
func Normalize(timeline models.Timeline, epoch, now time.Time) models.Timeline {
	if len(timeline) == 0 {
		return timeline
	}

	// Deduplicate by calendar day, keeping the latest-timestamped entry.
	byDay := make(map[string]models.PriceTimelineEntry, len(timeline))
	for _, entry := range timeline {
		key := dayKey(entry.Date)
		kept, ok := byDay[key]
		if !ok || entry.Date.After(kept.Date) {
			byDay[key] = entry
		}
	}

	deduped := make(models.Timeline, 0, len(byDay))
	for _, entry := range byDay {
		deduped = append(deduped, entry)
	}
	sort.Slice(deduped, func(i, j int) bool { return deduped[i].Date.Before(deduped[j].Date) })

	earliest := deduped[0]
	latest := deduped[len(deduped)-1]

	// Backward backfill: one synthetic entry per missing day between the
	// epoch and the earliest real entry, at the earliest known price.
	var filled models.Timeline
	for day := dayStart(epoch); day.Before(dayStart(earliest.Date)); day = day.AddDate(0, 0, 1) {
		if _, exists := byDay[dayKey(day)]; exists {
			continue
		}
		filled = append(filled, syntheticEntry(earliest, day, models.EntrySourceBackfill))
	}

	// Forward backfill: extend from the latest entry through today at the
	// latest known price.
	for day := dayStart(latest.Date).AddDate(0, 0, 1); !day.After(dayStart(now)); day = day.AddDate(0, 0, 1) {
		if _, exists := byDay[dayKey(day)]; exists {
			continue
		}
		filled = append(filled, syntheticEntry(latest, day, models.EntrySourceForwardBackfill))
	}

	result := append(deduped, filled...)
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result
}

func syntheticEntry(template models.PriceTimelineEntry, day time.Time, source string) models.PriceTimelineEntry {
	return models.PriceTimelineEntry{
		Date:       day.Add(time.Duration(template.Date.Hour())*time.Hour + time.Duration(template.Date.Minute())*time.Minute),
		Price:      template.Price,
		Currency:   template.Currency,
		Source:     source,
		ChangeType: models.ChangeStable,
		Context: models.EntryContext{
			BuildStatus: template.Context.BuildStatus,
			BuildType:   template.Context.BuildType,
		},
	}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func dayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
