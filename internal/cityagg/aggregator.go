package cityagg

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"hometracker/server/internal/models"
	"hometracker/server/internal/pricing"
	"hometracker/server/internal/storage"
)

// Aggregator rolls all permanent records up into per-city snapshots.
// Current metrics come from active communities only; the historical daily
// series is reconstructed from every record (active and archived) so that
// listing counts for past dates reflect what was actually known then.
type Aggregator struct {
	timelines     storage.TimelineStore
	cities        storage.CityStore
	retentionDays int
	logger        *logrus.Logger
}

func NewAggregator(timelines storage.TimelineStore, cities storage.CityStore, retentionDays int, logger *logrus.Logger) *Aggregator {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Aggregator{
		timelines:     timelines,
		cities:        cities,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

type groupKey struct {
	City   string
	County string
	Region string
}

// Aggregate recomputes every city snapshot and returns the number of cities
// written. A failure in one city skips that city only.
func (a *Aggregator) Aggregate(ctx context.Context, now time.Time) (int, error) {
	records, err := a.timelines.All()
	if err != nil {
		return 0, err
	}

	groups := make(map[groupKey][]models.PermanentRecord)
	for _, record := range records {
		if record.City == "" && record.County == "" {
			continue
		}
		key := groupKey{City: record.City, County: record.County, Region: record.Region}
		groups[key] = append(groups[key], record)
	}

	written := 0
	for key, members := range groups {
		if ctx.Err() != nil {
			break
		}
		if err := a.aggregateCity(key, members, now); err != nil {
			a.logger.WithError(err).WithFields(logrus.Fields{
				"city":   key.City,
				"county": key.County,
			}).Error("Failed to aggregate city")
			continue
		}
		written++
	}

	a.logger.WithField("cities", written).Info("City aggregation complete")
	return written, nil
}

func (a *Aggregator) aggregateCity(key groupKey, members []models.PermanentRecord, now time.Time) error {
	cityID := models.CityID(key.City, key.County, key.Region)

	var active []models.PermanentRecord
	for _, record := range members {
		if record.ListingStatus != models.StatusArchived {
			active = append(active, record)
		}
	}

	snapshot := &models.CitySnapshot{
		CityID: cityID,
		City:   key.City,
		County: key.County,
		Region: key.Region,
		Current: models.CityMetricsSet{
			SingleFamily: metricsFor(filterByCategory(active, models.CategorySingleFamily), now),
			Condominium:  metricsFor(filterByCategory(active, models.CategoryCondominium), now),
			Overall:      metricsFor(active, now),
		},
		DailyAverages:    dailyAverages(members, now, a.retentionDays),
		LastSnapshotDate: now,
	}

	existing, err := a.cities.Get(cityID)
	if err != nil {
		return err
	}
	if existing != nil {
		snapshot.CreatedAt = existing.CreatedAt
		preserveHistoricalCounts(snapshot, existing, now)
	} else {
		snapshot.CreatedAt = now
	}

	applyBound(snapshot, members)

	return a.cities.Upsert(snapshot)
}

func filterByCategory(records []models.PermanentRecord, category string) []models.PermanentRecord {
	var out []models.PermanentRecord
	for _, record := range records {
		if record.AccommodationCategory == category {
			out = append(out, record)
		}
	}
	return out
}

// metricsFor pools the timeline points of the given records and computes
// the current block: count, average of most-recent prices, and windowed
// averages and percent changes over the pooled points.
func metricsFor(records []models.PermanentRecord, now time.Time) models.CityMetrics {
	metrics := models.CityMetrics{
		Count:          len(records),
		MovingAverages: make(map[string]*float64, len(pricing.MetricWindows)),
		PercentChanges: make(map[string]*float64, len(pricing.MetricWindows)),
	}
	if len(records) == 0 {
		for _, days := range pricing.MetricWindows {
			metrics.MovingAverages[windowAverageKey(days)] = nil
			metrics.PercentChanges[windowChangeKey(days)] = nil
		}
		return metrics
	}

	currentSum := 0.0
	var pooled []models.PriceTimelineEntry
	for _, record := range records {
		currentSum += record.Metrics.MostRecentPrice
		for _, entry := range record.PriceTimeline {
			if entry.Price > 0 {
				pooled = append(pooled, entry)
			}
		}
	}
	currentAvg := round2(currentSum / float64(len(records)))
	metrics.AvgPrice = &currentAvg

	for _, days := range pricing.MetricWindows {
		cutoff := now.AddDate(0, 0, -days)
		sum := 0.0
		count := 0
		for _, entry := range pooled {
			if !entry.Date.Before(cutoff) {
				sum += entry.Price
				count++
			}
		}
		if count == 0 {
			metrics.MovingAverages[windowAverageKey(days)] = nil
			metrics.PercentChanges[windowChangeKey(days)] = nil
			continue
		}
		avg := round2(sum / float64(count))
		metrics.MovingAverages[windowAverageKey(days)] = &avg
		change := round2((currentAvg - avg) / avg * 100)
		metrics.PercentChanges[windowChangeKey(days)] = &change
	}

	return metrics
}

// dailyAverages reconstructs the trailing daily series from all records. A
// property is counted on a date only if its timeline has an entry on or
// before that date, priced at its most recent entry as of then.
func dailyAverages(records []models.PermanentRecord, now time.Time, retentionDays int) models.DailyAverageList {
	dates := make(map[string]struct{})
	for _, record := range records {
		for _, entry := range record.PriceTimeline {
			dates[entry.Date.UTC().Format("2006-01-02")] = struct{}{}
		}
	}
	if len(dates) == 0 {
		return nil
	}

	sorted := make([]string, 0, len(dates))
	for date := range dates {
		sorted = append(sorted, date)
	}
	sort.Strings(sorted)
	if len(sorted) > retentionDays {
		sorted = sorted[len(sorted)-retentionDays:]
	}

	result := make(models.DailyAverageList, 0, len(sorted))
	for _, date := range sorted {
		var sfrPrices, condoPrices, allPrices []float64
		for _, record := range records {
			price, known := priceAsOf(record.PriceTimeline, date)
			if !known {
				continue
			}
			allPrices = append(allPrices, price)
			switch record.AccommodationCategory {
			case models.CategorySingleFamily:
				sfrPrices = append(sfrPrices, price)
			case models.CategoryCondominium:
				condoPrices = append(condoPrices, price)
			}
		}

		result = append(result, models.DailyCityAverage{
			Date:                date,
			SFRAvgPrice:         meanOf(sfrPrices),
			SFRListingCount:     len(sfrPrices),
			CondoAvgPrice:       meanOf(condoPrices),
			CondoListingCount:   len(condoPrices),
			OverallAvgPrice:     meanOf(allPrices),
			OverallListingCount: len(allPrices),
		})
	}
	return result
}

// priceAsOf returns the most recent positive price on or before the given
// calendar date, and whether the property was known at all by then.
func priceAsOf(timeline models.Timeline, date string) (float64, bool) {
	price := 0.0
	known := false
	for _, entry := range timeline {
		if entry.Date.UTC().Format("2006-01-02") > date {
			break
		}
		if entry.Price > 0 {
			price = entry.Price
			known = true
		}
	}
	return price, known
}

// preserveHistoricalCounts keeps previously persisted listing counts for
// past dates verbatim. Prices for past dates may be recomputed; only
// today's entry is fully rewritten.
func preserveHistoricalCounts(snapshot, existing *models.CitySnapshot, now time.Time) {
	today := now.UTC().Format("2006-01-02")
	persisted := make(map[string]models.DailyCityAverage, len(existing.DailyAverages))
	for _, day := range existing.DailyAverages {
		persisted[day.Date] = day
	}

	for i, day := range snapshot.DailyAverages {
		if day.Date == today {
			continue
		}
		prev, ok := persisted[day.Date]
		if !ok {
			continue
		}
		snapshot.DailyAverages[i].SFRListingCount = prev.SFRListingCount
		snapshot.DailyAverages[i].CondoListingCount = prev.CondoListingCount
		snapshot.DailyAverages[i].OverallListingCount = prev.OverallListingCount
	}
}

// applyBound records the geographic extent of the member communities.
func applyBound(snapshot *models.CitySnapshot, records []models.PermanentRecord) {
	var points orb.MultiPoint
	for _, record := range records {
		if record.Latitude == 0 && record.Longitude == 0 {
			continue
		}
		points = append(points, orb.Point{record.Longitude, record.Latitude})
	}
	if len(points) == 0 {
		return
	}

	bound := points.Bound()
	center := bound.Center()
	snapshot.MinLatitude = bound.Min.Lat()
	snapshot.MinLongitude = bound.Min.Lon()
	snapshot.MaxLatitude = bound.Max.Lat()
	snapshot.MaxLongitude = bound.Max.Lon()
	snapshot.CenterLat = center.Lat()
	snapshot.CenterLng = center.Lon()
}

func meanOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := round2(sum / float64(len(values)))
	return &mean
}

func windowAverageKey(days int) string {
	return fmt.Sprintf("%d_day_average", days)
}

func windowChangeKey(days int) string {
	return fmt.Sprintf("%d_day_change", days)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
