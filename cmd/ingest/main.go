package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/motionclinic/casematch/internal/config"
	"github.com/motionclinic/casematch/internal/logger"
	"github.com/motionclinic/casematch/internal/repository"
	"github.com/motionclinic/casematch/internal/service"
	"github.com/motionclinic/casematch/internal/source"
	"github.com/motionclinic/casematch/internal/source/patientcsv"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "casematch-ingest",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	sourceType := flag.String("source", "patientcsv", "Data source to ingest from")
	dataDir := flag.String("data-dir", "", "Override the source data directory")
	limit := flag.Int("limit", 0, "Maximum number of items to ingest (0 = no limit)")
	reset := flag.Bool("reset", false, "Delete existing records per category before ingesting")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	appLogger.WithFields(logger.Fields{
		"source": *sourceType,
		"limit":  *limit,
		"reset":  *reset,
	}).Info("Starting ingestion")

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	caseRepo := repository.NewCaseRepository(db)
	vectorRepo := repository.NewVectorRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional remote vector index
	var qdrantIndex *repository.QdrantIndex
	if cfg.Qdrant.Enabled {
		qdrantIndex, err = repository.NewQdrantIndex(&repository.QdrantConnectionConfig{
			Host:            cfg.Qdrant.Host,
			Port:            cfg.Qdrant.Port,
			Collection:      cfg.Qdrant.Collection,
			APIKey:          cfg.Qdrant.APIKey,
			UseTLS:          cfg.Qdrant.UseTLS,
			VectorDimension: cfg.Embedding.Dimensions,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize Qdrant index")
		}
		defer qdrantIndex.Close()

		if err := qdrantIndex.EnsureCollection(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure Qdrant collection")
		}
	}

	// Initialize encoder client
	encoder := service.NewEncoderService(&service.EncoderConfig{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})

	ingestService := service.NewIngestService(
		caseRepo,
		vectorRepo,
		qdrantIndex,
		encoder,
		appLogger,
		&service.IngestConfig{
			Workers:   cfg.Ingest.Workers,
			BatchSize: cfg.Ingest.BatchSize,
		},
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	// Get data source
	var src source.Source
	switch *sourceType {
	case "patientcsv":
		dir := cfg.Corpus.DataDir
		if *dataDir != "" {
			dir = *dataDir
		}
		src = patientcsv.NewAdapter(dir)
	default:
		appLogger.WithField("source", *sourceType).Fatal("Unknown source type")
	}

	// Optionally clear existing corpus data before re-ingesting
	if *reset {
		if err := resetCorpus(ctx, caseRepo, vectorRepo); err != nil {
			appLogger.WithError(err).Fatal("Failed to reset corpus")
		}
	}

	// Run ingestion
	stats, err := ingestService.IngestFromSource(ctx, src, *limit)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to ingest from source")
	}
	appLogger.WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"processed": stats.ProcessedItems,
		"failed":    stats.FailedItems,
	}).Info("Ingestion completed")
}

// resetCorpus removes all stored cases and vectors for every known category.
func resetCorpus(ctx context.Context, caseRepo *repository.CaseRepository, vectorRepo *repository.VectorRepository) error {
	categories, err := caseRepo.Categories(ctx)
	if err != nil {
		return err
	}
	for _, category := range categories {
		if err := caseRepo.DeleteByCategory(ctx, category); err != nil {
			return err
		}
		if err := vectorRepo.DeleteByCategory(ctx, category); err != nil {
			return err
		}
	}
	return nil
}
