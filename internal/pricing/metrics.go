package pricing

import (
	"fmt"
	"time"

	"hometracker/server/internal/models"
)

// MetricWindows are the trailing windows, in days, that moving averages and
// percent changes are computed over.
var MetricWindows = []int{1, 7, 30, 90, 180, 365}

// ComputeMetrics derives the aggregated metrics from a normalized timeline.
// Window values are recomputed from the full timeline on every call rather
// than maintained incrementally.
func ComputeMetrics(timeline models.Timeline, now time.Time) models.AggregatedMetrics {
	metrics := models.AggregatedMetrics{
		MovingAverages: make(map[string]*float64, len(MetricWindows)),
		PercentChanges: make(map[string]*float64, len(MetricWindows)),
	}

	var priced models.Timeline
	for _, entry := range timeline {
		if entry.Price > 0 {
			priced = append(priced, entry)
		}
	}
	if len(priced) == 0 {
		for _, days := range MetricWindows {
			metrics.MovingAverages[averageKey(days)] = nil
			metrics.PercentChanges[changeKey(days)] = nil
		}
		return metrics
	}

	metrics.MostRecentPrice = priced[len(priced)-1].Price
	metrics.DaysTracked = len(priced)

	minPrice := priced[0].Price
	maxPrice := priced[0].Price
	sum := 0.0
	for _, entry := range priced {
		if entry.Price < minPrice {
			minPrice = entry.Price
		}
		if entry.Price > maxPrice {
			maxPrice = entry.Price
		}
		sum += entry.Price
	}
	metrics.MinPrice = minPrice
	metrics.MaxPrice = maxPrice
	metrics.AveragePrice = round2(sum / float64(len(priced)))

	for _, days := range MetricWindows {
		cutoff := now.AddDate(0, 0, -days)
		windowSum := 0.0
		windowCount := 0
		for _, entry := range priced {
			if !entry.Date.Before(cutoff) {
				windowSum += entry.Price
				windowCount++
			}
		}
		if windowCount == 0 {
			metrics.MovingAverages[averageKey(days)] = nil
			metrics.PercentChanges[changeKey(days)] = nil
			continue
		}

		windowAvg := round2(windowSum / float64(windowCount))
		metrics.MovingAverages[averageKey(days)] = &windowAvg

		change := round2((metrics.MostRecentPrice - windowAvg) / windowAvg * 100)
		metrics.PercentChanges[changeKey(days)] = &change
	}

	return metrics
}

func averageKey(days int) string {
	return fmt.Sprintf("%d_day_average", days)
}

func changeKey(days int) string {
	return fmt.Sprintf("%d_day_change", days)
}
