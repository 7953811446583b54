package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hometracker/server/internal/models"
)

func TestComputeMetrics_BasicAggregates(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	timeline := models.Timeline{
		scrapeEntry(now.AddDate(0, 0, -2), 500000),
		scrapeEntry(now.AddDate(0, 0, -1), 480000),
		scrapeEntry(now, 520000),
	}

	metrics := ComputeMetrics(timeline, now)

	assert.Equal(t, 520000.0, metrics.MostRecentPrice)
	assert.Equal(t, 480000.0, metrics.MinPrice)
	assert.Equal(t, 520000.0, metrics.MaxPrice)
	assert.Equal(t, 500000.0, metrics.AveragePrice)
	assert.Equal(t, 3, metrics.DaysTracked)
}

func TestComputeMetrics_WindowedAveragesAndChanges(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	timeline := models.Timeline{
		scrapeEntry(now.AddDate(0, 0, -40), 400000),
		scrapeEntry(now.AddDate(0, 0, -5), 500000),
		scrapeEntry(now, 550000),
	}

	metrics := ComputeMetrics(timeline, now)

	// 7-day window only sees the last two points.
	sevenDay := metrics.MovingAverages["7_day_average"]
	assert.NotNil(t, sevenDay)
	assert.Equal(t, 525000.0, *sevenDay)

	sevenDayChange := metrics.PercentChanges["7_day_change"]
	assert.NotNil(t, sevenDayChange)
	assert.Equal(t, 4.76, *sevenDayChange)

	// 90-day window sees all three.
	ninetyDay := metrics.MovingAverages["90_day_average"]
	assert.NotNil(t, ninetyDay)
	assert.Equal(t, 483333.33, *ninetyDay)
}

func TestComputeMetrics_EmptyWindowIsNil(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	timeline := models.Timeline{
		scrapeEntry(now.AddDate(0, 0, -10), 500000),
	}

	metrics := ComputeMetrics(timeline, now)

	assert.Nil(t, metrics.MovingAverages["1_day_average"])
	assert.Nil(t, metrics.PercentChanges["1_day_change"])
	assert.NotNil(t, metrics.MovingAverages["30_day_average"])
}

func TestComputeMetrics_IgnoresUnpricedEntries(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	timeline := models.Timeline{
		scrapeEntry(now.AddDate(0, 0, -1), 0),
		scrapeEntry(now, 500000),
	}

	metrics := ComputeMetrics(timeline, now)

	assert.Equal(t, 1, metrics.DaysTracked)
	assert.Equal(t, 500000.0, metrics.MinPrice)
}

func TestComputeMetrics_EmptyTimeline(t *testing.T) {
	metrics := ComputeMetrics(nil, time.Now())

	assert.Zero(t, metrics.MostRecentPrice)
	assert.Zero(t, metrics.DaysTracked)
	for _, days := range MetricWindows {
		assert.Nil(t, metrics.MovingAverages[averageKey(days)])
		assert.Nil(t, metrics.PercentChanges[changeKey(days)])
	}
}
