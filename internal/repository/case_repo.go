package repository

import (
	"context"
	"fmt"

	"github.com/motionclinic/casematch/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CaseRepository handles recorded-case persistence.
type CaseRepository struct {
	db *gorm.DB
}

// NewCaseRepository creates a new CaseRepository.
func NewCaseRepository(db *gorm.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// Create inserts a new case record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - record: case record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *CaseRepository) Create(ctx context.Context, record *domain.CaseRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// CreateBatch inserts a batch of case records in one statement.
func (r *CaseRepository) CreateBatch(ctx context.Context, records []domain.CaseRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&records).Error
}

// Upsert creates or updates a case record keyed by ID.
func (r *CaseRepository) Upsert(ctx context.Context, record *domain.CaseRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(record).Error
}

// GetByID retrieves a case record by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: record ID.
// Returns:
//   - *domain.CaseRecord: record if found.
//   - error: non-nil if lookup fails.
func (r *CaseRepository) GetByID(ctx context.Context, id string) (*domain.CaseRecord, error) {
	var record domain.CaseRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByCategory retrieves every record of one category in insertion order.
// Position ordering is what makes reloaded corpora reproduce the same
// ranking tie-breaks.
func (r *CaseRepository) ListByCategory(ctx context.Context, category string) ([]domain.CaseRecord, error) {
	var records []domain.CaseRecord
	if err := r.db.WithContext(ctx).
		Where("category = ?", category).
		Order("position ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list cases for category %q: %w", category, err)
	}
	return records, nil
}

// Categories retrieves all distinct categories with stored cases.
func (r *CaseRepository) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := r.db.WithContext(ctx).
		Model(&domain.CaseRecord{}).
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// CountByCategory counts stored cases per category.
func (r *CaseRepository) CountByCategory(ctx context.Context, category string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.CaseRecord{}).
		Where("category = ?", category).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// MaxPosition returns the highest insertion position for a category, or -1
// when the category has no records.
func (r *CaseRepository) MaxPosition(ctx context.Context, category string) (int, error) {
	var max *int
	if err := r.db.WithContext(ctx).
		Model(&domain.CaseRecord{}).
		Where("category = ?", category).
		Select("MAX(position)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	if max == nil {
		return -1, nil
	}
	return *max, nil
}

// DeleteByCategory removes every record of a category, used on corpus rebuild.
func (r *CaseRepository) DeleteByCategory(ctx context.Context, category string) error {
	return r.db.WithContext(ctx).
		Where("category = ?", category).
		Delete(&domain.CaseRecord{}).Error
}
