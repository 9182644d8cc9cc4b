package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/motionclinic/casematch/internal/api"
	"github.com/motionclinic/casematch/internal/api/middleware"
	"github.com/motionclinic/casematch/internal/config"
	"github.com/motionclinic/casematch/internal/engine"
	"github.com/motionclinic/casematch/internal/logger"
	"github.com/motionclinic/casematch/internal/repository"
	"github.com/motionclinic/casematch/internal/service"
	"github.com/motionclinic/casematch/internal/storage"
)

func main() {
	// Initialize logger first (with env defaults)
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	caseRepo := repository.NewCaseRepository(db)
	vectorRepo := repository.NewVectorRepository(db)

	ctx := context.Background()

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

	// Initialize scan storage
	scanStorage, err := storage.NewStorage(&storage.Options{
		Provider: cfg.Storage.Provider,
		LocalDir: cfg.Storage.LocalDir,
		S3: storage.S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
		},
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize scan storage")
	}

	// Initialize external model clients
	encoder := service.NewEncoderService(&service.EncoderConfig{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})
	captioner := service.NewCaptionerService(&service.CaptionerConfig{
		Provider: cfg.Captioner.Provider,
		Model:    cfg.Captioner.Model,
		APIKey:   cfg.Captioner.APIKey,
		BaseURL:  cfg.Captioner.BaseURL,
	})

	// Load serving corpora
	loader := service.NewCorpusLoader(caseRepo, vectorRepo, qdrantIndex, appLogger)
	corpora, err := loader.LoadAll(ctx)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load corpora")
	}

	// Wire the evaluation pipeline
	policy := engine.Policy{
		MatchCutoff:      cfg.Engine.MatchCutoff,
		LooseCutoff:      cfg.Engine.LooseCutoff,
		RecoveryPass:     cfg.Engine.RecoveryPass,
		RecordedFallback: cfg.Engine.RecordedFallback,
		TopK:             cfg.Engine.TopK,
	}
	router := engine.NewRouter(policy, nil)
	evaluator := engine.NewEvaluator(encoder, captioner, corpora, router, policy)

	// Setup router
	ginRouter := api.SetupRouter(evaluator, caseRepo, scanStorage, appLogger, cfg.Server.Mode, middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: ginRouter,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
