package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"hometracker/server/internal/ingest"
	"hometracker/server/internal/models"
	"hometracker/server/internal/pipeline"
)

// Scheduler manages periodic execution of reconciliation passes
type Scheduler struct {
	pipeline     *pipeline.Pipeline
	source       ingest.Source
	queue        *ingest.BatchQueue
	logger       *logrus.Logger
	interval     time.Duration
	stopChan     chan struct{}
	wg           sync.WaitGroup
	jobMutex     sync.Mutex // Ensures passes never overlap
	isStartupRun bool       // Tracks whether we're in startup run
}

// NewScheduler creates a new scheduler
func NewScheduler(p *pipeline.Pipeline, source ingest.Source, queue *ingest.BatchQueue, interval time.Duration, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Scheduler{
		pipeline:     p,
		source:       source,
		queue:        queue,
		logger:       logger,
		interval:     interval,
		stopChan:     make(chan struct{}),
		isStartupRun: true, // Initialize as true for startup
	}
}

// Start begins the scheduled tasks
func (s *Scheduler) Start() {
	s.queue.Subscribe(s.runPass)
	s.queue.Start()

	s.wg.Add(1)
	go s.runScheduler()
}

// runScheduler handles all scheduled tasks
func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	// Run the startup pass in a separate goroutine
	go func() {
		s.logger.Info("Running startup pass")
		s.drainSource()
		s.isStartupRun = false // Mark startup as complete
		s.logger.Info("Startup pass completed")
	}()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case t := <-ticker.C:
			s.executeScheduledJobs(t)
		}
	}
}

// executeScheduledJobs runs all jobs that are scheduled for the given time
func (s *Scheduler) executeScheduledJobs(t time.Time) {
	// Skip if we're still running the startup pass
	if s.isStartupRun {
		s.logger.Debug("Skipping scheduled jobs while startup is in progress")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"hour":   t.Hour(),
		"minute": t.Minute(),
	}).Debug("Checking scheduled jobs")

	// Check if it's time for the stale sweep (midnight)
	if t.Hour() == 0 && t.Minute() == 0 {
		s.logger.Info("Starting scheduled stale sweep")
		s.runStaleSweep()
		s.logger.Info("Completed scheduled stale sweep")
	}

	// Check if it's time to pull new batches
	intervalMinutes := int(s.interval / time.Minute)
	if intervalMinutes < 1 {
		intervalMinutes = 1
	}
	minuteOfDay := t.Hour()*60 + t.Minute()
	if minuteOfDay%intervalMinutes == 0 {
		s.logger.Info("Starting scheduled batch pull")
		s.drainSource()
		s.logger.Info("Completed scheduled batch pull")
	}
}

// drainSource pulls every pending batch from the source and enqueues it.
func (s *Scheduler) drainSource() {
	for {
		batch, err := s.source.Next()
		if err != nil {
			s.logger.WithError(err).Error("Failed to pull batch from source")
			return
		}
		if batch == nil {
			return
		}

		if err := s.queue.Push(batch); err != nil {
			s.logger.WithError(err).WithField("batch_size", len(batch)).Error("Failed to enqueue batch")
			return
		}
	}
}

// runPass executes one full reconciliation pass over a batch. Registered as
// the queue handler; the mutex keeps passes strictly sequential even if the
// queue ever grows more workers.
func (s *Scheduler) runPass(batch []*models.Listing) error {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	s.logger.WithField("batch_size", len(batch)).Info("Starting pass")
	summary, err := s.pipeline.Run(context.Background(), batch)
	if err != nil {
		s.logger.WithError(err).Error("Pass failed")
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"new":      summary.New,
		"updated":  summary.Updated,
		"archived": summary.Archived,
	}).Info("Pass completed successfully")
	return nil
}

// runStaleSweep archives listings that have not been seen for the configured
// stale age.
func (s *Scheduler) runStaleSweep() {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	archived := s.pipeline.SweepStale(context.Background())
	s.logger.WithField("archived", archived).Info("Stale sweep finished")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
