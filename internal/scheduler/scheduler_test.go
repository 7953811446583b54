package scheduler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hometracker/server/config"
	"hometracker/server/internal/database"
	"hometracker/server/internal/ingest"
	"hometracker/server/internal/pipeline"
	"hometracker/server/internal/storage"
)

func newTestScheduler(t *testing.T, batchDir string) (*Scheduler, storage.ListingStore) {
	t.Helper()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.Reconcile.ArchivalThreshold = 0.5
	cfg.Reconcile.StaleAgeDays = 3
	cfg.Pricing.SignificanceThreshold = 5.0
	cfg.Pricing.WorkerCount = 1
	cfg.Aggregation.RetentionWindowDays = 30
	cfg.Pass.SuccessRatioFloor = 0.5

	listings := storage.NewListingStore(db.GormDB())
	p := pipeline.New(
		cfg,
		time.Now().UTC().AddDate(0, 0, -1),
		listings,
		storage.NewArchiveStore(db.GormDB()),
		storage.NewTimelineStore(db.GormDB()),
		storage.NewCityStore(db.GormDB()),
		logrus.New(),
	)

	source, err := ingest.NewDirSource(batchDir, logrus.New())
	require.NoError(t, err)
	queue := ingest.NewBatchQueue(4, logrus.New())
	t.Cleanup(func() { queue.Close() })

	return NewScheduler(p, source, queue, time.Hour, logrus.New()), listings
}

func TestScheduler_StartupPassProcessesPendingBatches(t *testing.T) {
	batchDir := t.TempDir()
	payload := `[{"listing_id": "a", "data_source": "json_ld", "name": "Community a", "url": "https://example.com/a", "price": "$450,000"}]`
	require.NoError(t, os.WriteFile(filepath.Join(batchDir, "batch.json"), []byte(payload), 0644))

	sched, listings := newTestScheduler(t, batchDir)
	sched.Start()
	defer sched.Stop()

	// The startup pass drains the directory asynchronously.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if count, _ := listings.Count(); count == 1 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	count, err := listings.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestScheduler_DrainSourceEnqueuesEverything(t *testing.T) {
	batchDir := t.TempDir()
	for _, name := range []string{"one.json", "two.json"} {
		payload := `[{"listing_id": "` + name + `"}]`
		require.NoError(t, os.WriteFile(filepath.Join(batchDir, name), []byte(payload), 0644))
	}

	sched, _ := newTestScheduler(t, batchDir)

	// Without Start the queue has no consumer, so both batches stay
	// buffered.
	sched.drainSource()
	assert.Equal(t, 2, sched.queue.Len())
}

func TestScheduler_StopIsIdempotentlySafe(t *testing.T) {
	sched, _ := newTestScheduler(t, t.TempDir())
	sched.Start()

	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}
