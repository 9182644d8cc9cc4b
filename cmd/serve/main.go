package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/motionclinic/casematch/internal/config"
	"github.com/motionclinic/casematch/internal/engine"
	"github.com/motionclinic/casematch/internal/logger"
	"github.com/motionclinic/casematch/internal/repository"
	"github.com/motionclinic/casematch/internal/service"
	"github.com/motionclinic/casematch/internal/stream"
)

// serve mode: a parent process pipes line-delimited JSON queries through
// stdin and reads framed responses from stdout. Logs go to stderr so they
// never interleave with the response stream.
func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		Output:      os.Stderr,
		ServiceName: "casematch-serve",
	})
	logger.SetDefaultLogger(appLogger)

	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

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
	}

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

	loader := service.NewCorpusLoader(caseRepo, vectorRepo, qdrantIndex, appLogger)
	corpora, err := loader.LoadAll(ctx)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load corpora")
	}

	policy := engine.Policy{
		MatchCutoff:      cfg.Engine.MatchCutoff,
		LooseCutoff:      cfg.Engine.LooseCutoff,
		RecoveryPass:     cfg.Engine.RecoveryPass,
		RecordedFallback: cfg.Engine.RecordedFallback,
		TopK:             cfg.Engine.TopK,
	}
	router := engine.NewRouter(policy, nil)
	evaluator := engine.NewEvaluator(encoder, captioner, corpora, router, policy)

	// Cancel the stream loop on shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	appLogger.Info("Model ready, waiting for queries")

	processor := stream.NewProcessor(evaluator, appLogger)
	if err := processor.Run(ctx, os.Stdin, os.Stdout); err != nil && err != context.Canceled {
		appLogger.WithError(err).Fatal("Stream processing failed")
	}
}
