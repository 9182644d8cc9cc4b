package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/motionclinic/casematch/internal/domain"
	"github.com/motionclinic/casematch/internal/logger"
	"github.com/motionclinic/casematch/internal/repository"
	"github.com/motionclinic/casematch/internal/source"
)

// IngestService builds corpora from case data sources: it embeds the
// combined case text, persists the records in source order, and writes the
// label-vector index snapshot alongside them.
type IngestService struct {
	caseRepo   *repository.CaseRepository
	vectorRepo *repository.VectorRepository
	qdrant     *repository.QdrantIndex
	encoder    *EncoderService
	logger     *logger.Logger
	workers    int
	batchSize  int
}

// IngestConfig holds configuration for the ingest service.
type IngestConfig struct {
	Workers   int
	BatchSize int
}

// NewIngestService creates a new ingest service. qdrant may be nil when the
// remote index is disabled.
func NewIngestService(
	caseRepo *repository.CaseRepository,
	vectorRepo *repository.VectorRepository,
	qdrant *repository.QdrantIndex,
	encoder *EncoderService,
	log *logger.Logger,
	cfg *IngestConfig,
) *IngestService {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}
	return &IngestService{
		caseRepo:   caseRepo,
		vectorRepo: vectorRepo,
		qdrant:     qdrant,
		encoder:    encoder,
		logger:     log,
		workers:    workers,
		batchSize:  batchSize,
	}
}

// log returns a logger from context if available, otherwise the service logger.
func (s *IngestService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// IngestStats holds statistics for an ingestion run.
type IngestStats struct {
	TotalItems     int64
	ProcessedItems int64
	FailedItems    int64
	StartTime      time.Time
	EndTime        time.Time
}

// IngestFromSource ingests cases from a data source.
// Batches are embedded and persisted by a worker pool; record positions
// follow source order so rebuilt corpora keep identical tie-breaks.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - src: case data source.
//   - limit: maximum items to ingest; <= 0 means no limit.
// Returns:
//   - *IngestStats: counters for the run.
//   - error: non-nil on a fetch failure; per-item failures only count.
func (s *IngestService) IngestFromSource(ctx context.Context, src source.Source, limit int) (*IngestStats, error) {
	stats := &IngestStats{StartTime: time.Now()}

	s.log(ctx).WithFields(logger.Fields{
		"source": src.GetSourceID(),
		"limit":  limit,
	}).Info("starting ingestion")

	type positionedBatch struct {
		items     []source.CaseItem
		positions []int
	}
	batches := make(chan positionedBatch, s.workers)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batches {
				if err := s.processBatch(ctx, batch.items, batch.positions); err != nil {
					atomic.AddInt64(&stats.FailedItems, int64(len(batch.items)))
					s.log(ctx).WithError(err).Error("failed to process batch")
					continue
				}
				atomic.AddInt64(&stats.ProcessedItems, int64(len(batch.items)))
			}
		}()
	}

	cursor := ""
	nextPosition := map[string]int{}
	totalFetched := 0
	var fetchErr error
	for {
		if ctx.Err() != nil {
			fetchErr = ctx.Err()
			break
		}

		batchLimit := s.batchSize
		if limit > 0 {
			remaining := limit - totalFetched
			if remaining <= 0 {
				break
			}
			if batchLimit > remaining {
				batchLimit = remaining
			}
		}

		items, nextCursor, err := src.FetchBatch(ctx, cursor, batchLimit)
		if err != nil {
			fetchErr = fmt.Errorf("fetch batch: %w", err)
			break
		}
		if len(items) == 0 {
			break
		}

		atomic.AddInt64(&stats.TotalItems, int64(len(items)))
		totalFetched += len(items)

		positions := make([]int, len(items))
		for i, item := range items {
			positions[i] = nextPosition[item.Category]
			nextPosition[item.Category]++
		}
		batches <- positionedBatch{items: items, positions: positions}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	close(batches)
	wg.Wait()

	stats.EndTime = time.Now()
	s.log(ctx).WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"processed": stats.ProcessedItems,
		"failed":    stats.FailedItems,
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("ingestion finished")

	return stats, fetchErr
}

// processBatch embeds one batch and persists records plus index entries.
func (s *IngestService) processBatch(ctx context.Context, items []source.CaseItem, positions []int) error {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = CombinedText(item)
	}

	embeddings, err := s.encoder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	records := make([]domain.CaseRecord, len(items))
	vectors := make([]domain.LabelVector, len(items))
	for i, item := range items {
		id := item.SourceID
		if id == "" {
			id = uuid.NewString()
		}
		records[i] = domain.CaseRecord{
			ID:          id,
			Category:    item.Category,
			Label:       item.Label,
			PrimaryText: texts[i],
			Complaint:   item.Complaint,
			History:     item.History,
			Treatment:   item.Treatment,
			Medication:  item.Medication,
			Age:         item.Age,
			Embedding:   domain.FloatVector(embeddings[i]),
			Position:    positions[i],
		}
		vectors[i] = domain.LabelVector{
			ID:       id,
			Category: item.Category,
			Label:    item.Label,
			Vector:   domain.FloatVector(embeddings[i]),
			Position: positions[i],
		}
	}

	if err := s.caseRepo.CreateBatch(ctx, records); err != nil {
		return fmt.Errorf("persist cases: %w", err)
	}
	if err := s.vectorRepo.UpsertBatch(ctx, vectors); err != nil {
		return fmt.Errorf("persist label vectors: %w", err)
	}

	if s.qdrant != nil {
		for i, v := range vectors {
			pointID := v.ID
			if _, err := uuid.Parse(pointID); err != nil {
				pointID = uuid.NewString()
			}
			if err := s.qdrant.Upsert(ctx, pointID, embeddings[i], v.Category, v.Label); err != nil {
				return fmt.Errorf("upsert remote index: %w", err)
			}
		}
	}

	return nil
}

// CombinedText builds the retrieval text for one case, concatenating the
// clinical fields in a fixed order.
func CombinedText(item source.CaseItem) string {
	var b strings.Builder
	b.WriteString("Complaint: ")
	b.WriteString(item.Complaint)
	b.WriteString(". Diagnosis: ")
	b.WriteString(item.Label)
	b.WriteString(". History: ")
	b.WriteString(item.History)
	b.WriteString(". Treatment: ")
	b.WriteString(item.Treatment)
	b.WriteString(". Medications: ")
	b.WriteString(item.Medication)
	return b.String()
}
