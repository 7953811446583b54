package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	// Database configuration
	Database struct {
		// Path to the sqlite database file
		Path string `env:"DB_PATH" envDefault:"database/hometracker.db"`
	}

	// Reconciliation configuration
	Reconcile struct {
		// Fraction of existing listings that may go missing in one pass
		// before mass archival is vetoed
		ArchivalThreshold float64 `env:"ARCHIVAL_THRESHOLD" envDefault:"0.5"`

		// Days without a sighting before a listing is swept as stale
		StaleAgeDays int `env:"STALE_AGE_DAYS" envDefault:"3"`
	}

	// Price tracking configuration
	Pricing struct {
		// Earliest date backward backfill extends the timeline to
		BackfillEpochDate string `env:"BACKFILL_EPOCH_DATE" envDefault:"2025-09-11"`

		// Absolute percent change that marks a snapshot as significant
		SignificanceThreshold float64 `env:"SIGNIFICANCE_THRESHOLD" envDefault:"5.0"`

		// Number of concurrent snapshot workers
		WorkerCount int `env:"PRICING_WORKER_COUNT" envDefault:"4"`
	}

	// City aggregation configuration
	Aggregation struct {
		// Length of the historical daily averages window
		RetentionWindowDays int `env:"RETENTION_WINDOW_DAYS" envDefault:"30"`
	}

	// Batch ingestion configuration
	Ingest struct {
		// Directory watched for scrape batch files
		BatchDir string `env:"INGEST_BATCH_DIR" envDefault:"batches"`

		// Maximum number of queued batches before Push fails
		QueueSize int `env:"INGEST_QUEUE_SIZE" envDefault:"8"`
	}

	// Pass scheduling configuration
	Pass struct {
		// Minimum per-pass success ratio before the pass is flagged
		SuccessRatioFloor float64 `env:"SUCCESS_RATIO_FLOOR" envDefault:"0.5"`

		// Minutes between scheduled passes
		IntervalMinutes int `env:"PASS_INTERVAL_MINUTES" envDefault:"60"`
	}

	// HTTP API configuration
	API struct {
		Port string `env:"API_PORT" envDefault:"5250"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EpochDate parses the configured backfill epoch.
func (c *Config) EpochDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.Pricing.BackfillEpochDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid BACKFILL_EPOCH_DATE %q: %w", c.Pricing.BackfillEpochDate, err)
	}
	return t, nil
}
