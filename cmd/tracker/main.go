package main

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"hometracker/server/config"
	"hometracker/server/internal/api"
	"hometracker/server/internal/database"
	"hometracker/server/internal/ingest"
	"hometracker/server/internal/pipeline"
	"hometracker/server/internal/scheduler"
	"hometracker/server/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load .env if present; environment variables win either way
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	epoch, err := cfg.EpochDate()
	if err != nil {
		logger.WithError(err).Fatal("Invalid backfill epoch date")
	}

	logger.Infof("Using database at: %s", cfg.Database.Path)
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	listings := storage.NewListingStore(db.GormDB())
	archiveStore := storage.NewArchiveStore(db.GormDB())
	timelines := storage.NewTimelineStore(db.GormDB())
	cities := storage.NewCityStore(db.GormDB())

	p := pipeline.New(cfg, epoch, listings, archiveStore, timelines, cities, logger)

	source, err := ingest.NewDirSource(cfg.Ingest.BatchDir, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize batch source")
	}
	queue := ingest.NewBatchQueue(cfg.Ingest.QueueSize, logger)
	defer queue.Close()

	sched := scheduler.NewScheduler(p, source, queue, time.Duration(cfg.Pass.IntervalMinutes)*time.Minute, logger)
	sched.Start()
	defer sched.Stop()

	handler := api.NewHandler(listings, archiveStore, timelines, cities, p, queue, logger)

	router := gin.Default()
	router.Use(cors.Default())
	api.SetupRoutes(router, handler)

	logger.Infof("Starting server on port %s", cfg.API.Port)
	if err := router.Run(":" + cfg.API.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
