package repository

import (
	"context"
	"fmt"

	"github.com/motionclinic/casematch/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VectorRepository persists label-embedding index snapshots. A snapshot
// reloaded through ListByCategory must rebuild into an index with identical
// search rankings, which is why position ordering is mandatory here.
type VectorRepository struct {
	db *gorm.DB
}

// NewVectorRepository creates a new VectorRepository.
func NewVectorRepository(db *gorm.DB) *VectorRepository {
	return &VectorRepository{db: db}
}

// Upsert creates or updates one index entry keyed by ID.
func (r *VectorRepository) Upsert(ctx context.Context, vector *domain.LabelVector) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(vector).Error
}

// UpsertBatch persists a batch of index entries.
func (r *VectorRepository) UpsertBatch(ctx context.Context, vectors []domain.LabelVector) error {
	if len(vectors) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&vectors).Error
}

// ListByCategory retrieves a category's index snapshot in insertion order.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - category: imaging category.
// Returns:
//   - []domain.LabelVector: snapshot entries ordered by position.
//   - error: non-nil if the query fails.
func (r *VectorRepository) ListByCategory(ctx context.Context, category string) ([]domain.LabelVector, error) {
	var vectors []domain.LabelVector
	if err := r.db.WithContext(ctx).
		Where("category = ?", category).
		Order("position ASC").
		Find(&vectors).Error; err != nil {
		return nil, fmt.Errorf("failed to list label vectors for category %q: %w", category, err)
	}
	return vectors, nil
}

// CountByCategory counts stored index entries per category.
func (r *VectorRepository) CountByCategory(ctx context.Context, category string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.LabelVector{}).
		Where("category = ?", category).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteByCategory removes a category's snapshot, used on corpus rebuild.
func (r *VectorRepository) DeleteByCategory(ctx context.Context, category string) error {
	return r.db.WithContext(ctx).
		Where("category = ?", category).
		Delete(&domain.LabelVector{}).Error
}
