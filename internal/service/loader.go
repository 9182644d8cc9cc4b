package service

import (
	"context"
	"fmt"

	"github.com/motionclinic/casematch/internal/domain"
	"github.com/motionclinic/casematch/internal/engine"
	"github.com/motionclinic/casematch/internal/logger"
	"github.com/motionclinic/casematch/internal/repository"
)

// CorpusLoader assembles per-category serving corpora from persisted case
// records and label-vector snapshots. Loading happens once at startup; the
// resulting corpora are immutable for the process lifetime.
type CorpusLoader struct {
	caseRepo   *repository.CaseRepository
	vectorRepo *repository.VectorRepository
	qdrant     *repository.QdrantIndex
	logger     *logger.Logger
}

// NewCorpusLoader creates a corpus loader. qdrant may be nil, in which case
// every category gets the exact in-memory index.
func NewCorpusLoader(
	caseRepo *repository.CaseRepository,
	vectorRepo *repository.VectorRepository,
	qdrant *repository.QdrantIndex,
	log *logger.Logger,
) *CorpusLoader {
	return &CorpusLoader{
		caseRepo:   caseRepo,
		vectorRepo: vectorRepo,
		qdrant:     qdrant,
		logger:     log,
	}
}

// LoadAll builds a corpus for every supported category. Categories with no
// stored cases still get an empty corpus so evaluation routes to the
// caption tier instead of failing corpus lookup.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - map[string]*engine.Corpus: corpora keyed by category.
//   - error: non-nil if loading any category fails.
func (l *CorpusLoader) LoadAll(ctx context.Context) (map[string]*engine.Corpus, error) {
	corpora := make(map[string]*engine.Corpus, len(domain.Categories))
	for _, category := range domain.Categories {
		corpus, err := l.Load(ctx, category)
		if err != nil {
			return nil, err
		}
		corpora[category] = corpus
	}
	return corpora, nil
}

// Load builds the serving corpus for one category.
func (l *CorpusLoader) Load(ctx context.Context, category string) (*engine.Corpus, error) {
	records, err := l.caseRepo.ListByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load cases for %q: %w", category, err)
	}

	snapshot, err := l.vectorRepo.ListByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load index snapshot for %q: %w", category, err)
	}

	var index engine.Searcher
	if l.qdrant != nil {
		index = l.qdrant.CategoryIndex(category, len(snapshot))
	} else {
		entries := make([]engine.IndexEntry, len(snapshot))
		for i, v := range snapshot {
			entries[i] = engine.IndexEntry{
				ID:     v.ID,
				Label:  v.Label,
				Vector: v.Vector,
			}
		}
		built, err := engine.BuildIndex(entries)
		if err != nil {
			return nil, fmt.Errorf("build index for %q: %w", category, err)
		}
		index = built
	}

	l.logger.WithFields(logger.Fields{
		logger.FieldCategory: category,
		"records":            len(records),
		"index_entries":      len(snapshot),
	}).Info("corpus loaded")

	return engine.NewCorpus(category, records, index), nil
}
