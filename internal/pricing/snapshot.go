package pricing

import (
	"math"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"hometracker/server/internal/models"
	"hometracker/server/internal/storage"
)

// Snapshot is one price observation for a community, with change metrics
// relative to the last permanent timeline entry.
type Snapshot struct {
	Community   models.Community
	PermanentID string
	Price       float64
	Currency    string
	TakenAt     time.Time

	PreviousPrice    float64
	ChangeAmount     float64
	ChangePercentage float64
	IsSignificant    bool
	ChangeType       string
}

// Builder computes per-community snapshots. The policy is an unconditional
// daily snapshot: every active community with a valid price produces one
// snapshot per run, and per-day deduplication in the timeline keeps storage
// bounded. This also gives the city aggregator a per-day data point for its
// historical listing counts.
type Builder struct {
	timelines             storage.TimelineStore
	significanceThreshold float64
	logger                *logrus.Logger
}

func NewBuilder(timelines storage.TimelineStore, significanceThreshold float64, logger *logrus.Logger) *Builder {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Builder{
		timelines:             timelines,
		significanceThreshold: significanceThreshold,
		logger:                logger,
	}
}

// Build returns the snapshot for a community, or nil if the community has
// no usable price.
func (b *Builder) Build(community models.Community, now time.Time) (*Snapshot, error) {
	if community.CommunityID == "" || community.Price <= 0 {
		return nil, nil
	}

	permanentID := models.PermanentID(community.CommunityID)
	record, err := b.timelines.Get(permanentID)
	if err != nil {
		return nil, err
	}

	previous := 0.0
	if record != nil && len(record.PriceTimeline) > 0 {
		previous = record.PriceTimeline[len(record.PriceTimeline)-1].Price
	}

	snap := &Snapshot{
		Community:     community,
		PermanentID:   permanentID,
		Price:         community.Price,
		Currency:      currencyOrDefault(community.Currency),
		TakenAt:       now,
		PreviousPrice: previous,
	}

	snap.ChangeAmount = snap.Price - previous
	if previous > 0 {
		snap.ChangePercentage = round2(snap.ChangeAmount / previous * 100)
	}
	snap.IsSignificant = math.Abs(snap.ChangePercentage) >= b.significanceThreshold
	snap.ChangeType = classifyChange(snap.ChangeAmount, previous)

	return snap, nil
}

func classifyChange(changeAmount, previous float64) string {
	switch {
	case previous == 0 || changeAmount == 0:
		return models.ChangeStable
	case changeAmount > 0:
		return models.ChangeIncrease
	default:
		return models.ChangeDecrease
	}
}

func currencyOrDefault(currency string) string {
	if currency == "" {
		return "USD"
	}
	return currency
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
