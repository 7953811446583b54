package pipeline

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"hometracker/server/config"
	"hometracker/server/internal/archive"
	"hometracker/server/internal/cityagg"
	"hometracker/server/internal/models"
	"hometracker/server/internal/pricing"
	"hometracker/server/internal/reconcile"
	"hometracker/server/internal/storage"
)

// Pipeline sequences one full pass: reconcile, guarded archival, price
// snapshots, city aggregation. Each stage is also exposed individually for
// the API layer.
type Pipeline struct {
	cfg    *config.Config
	logger *logrus.Logger

	reconciler *reconcile.Reconciler
	guard      *archive.Guard
	archiver   *archive.Archiver
	builder    *pricing.Builder
	engine     *pricing.Engine
	aggregator *cityagg.Aggregator
	listings   storage.ListingStore

	mu          sync.Mutex
	lastSummary *models.PassSummary
}

func New(
	cfg *config.Config,
	epoch time.Time,
	listings storage.ListingStore,
	archiveStore storage.ArchiveStore,
	timelines storage.TimelineStore,
	cities storage.CityStore,
	logger *logrus.Logger,
) *Pipeline {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		reconciler: reconcile.NewReconciler(listings, logger),
		guard:      archive.NewGuard(cfg.Reconcile.ArchivalThreshold, logger),
		archiver:   archive.NewArchiver(listings, archiveStore, timelines, logger),
		builder:    pricing.NewBuilder(timelines, cfg.Pricing.SignificanceThreshold, logger),
		engine:     pricing.NewEngine(timelines, epoch, logger),
		aggregator: cityagg.NewAggregator(timelines, cities, cfg.Aggregation.RetentionWindowDays, logger),
		listings:   listings,
	}
}

// Run executes one complete pass over a scraped batch and returns its
// summary. Errors inside a stage are isolated per entity; only a failure
// to read the stores at all aborts the pass.
func (p *Pipeline) Run(ctx context.Context, batch []*models.Listing) (*models.PassSummary, error) {
	now := time.Now()
	summary := &models.PassSummary{StartedAt: now, BatchSize: len(batch)}

	changes, err := p.reconciler.Reconcile(ctx, batch)
	if err != nil {
		return nil, err
	}
	summary.New = len(changes.New)
	summary.Updated = len(changes.Updated)
	summary.Unchanged = len(changes.Unchanged)
	summary.RemovedCandidates = len(changes.RemovedCandidates)
	summary.Errors += changes.Errors

	if len(changes.RemovedCandidates) > 0 {
		if p.guard.Approve(len(changes.RemovedCandidates), changes.Existing) {
			summary.Archived = p.archiver.Archive(ctx, changes.RemovedCandidates, models.ReasonMissingFromScrape)
		} else {
			summary.ArchivalVetoed = true
		}
	}

	snapshots, snapshotErrors := p.SnapshotPrices(ctx, now)
	summary.Snapshots = snapshots
	summary.Errors += snapshotErrors

	cities, err := p.aggregator.Aggregate(ctx, now)
	if err != nil {
		p.logger.WithError(err).Error("City aggregation failed")
		summary.Errors++
	}
	summary.Cities = cities

	summary.FinishedAt = time.Now()
	p.finishPass(summary)
	return summary, nil
}

func (p *Pipeline) finishPass(summary *models.PassSummary) {
	p.mu.Lock()
	p.lastSummary = summary
	p.mu.Unlock()

	fields := logrus.Fields{
		"batch_size":         summary.BatchSize,
		"new":                summary.New,
		"updated":            summary.Updated,
		"unchanged":          summary.Unchanged,
		"removed_candidates": summary.RemovedCandidates,
		"archival_vetoed":    summary.ArchivalVetoed,
		"archived":           summary.Archived,
		"snapshots":          summary.Snapshots,
		"cities":             summary.Cities,
		"errors":             summary.Errors,
		"duration":           summary.FinishedAt.Sub(summary.StartedAt).String(),
	}

	if summary.SuccessRatio() < p.cfg.Pass.SuccessRatioFloor {
		p.logger.WithFields(fields).Error("Pass finished below success ratio floor")
		return
	}
	p.logger.WithFields(fields).Info("Pass complete")
}

// Reconcile runs only the classification stage.
func (p *Pipeline) Reconcile(ctx context.Context, batch []*models.Listing) (*reconcile.Changes, error) {
	return p.reconciler.Reconcile(ctx, batch)
}

// Archive moves the approved listings into the archive store.
func (p *Pipeline) Archive(ctx context.Context, listingIDs []string, reason string) int {
	return p.archiver.Archive(ctx, listingIDs, reason)
}

// SweepStale archives listings unseen for the configured stale age.
func (p *Pipeline) SweepStale(ctx context.Context) int {
	return p.archiver.SweepStale(ctx, p.cfg.Reconcile.StaleAgeDays)
}

// AggregateCities recomputes every city snapshot.
func (p *Pipeline) AggregateCities(ctx context.Context, now time.Time) (int, error) {
	return p.aggregator.Aggregate(ctx, now)
}

// LastSummary returns the most recent pass summary, or nil before the
// first pass.
func (p *Pipeline) LastSummary() *models.PassSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSummary
}
