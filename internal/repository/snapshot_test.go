package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/motionclinic/casematch/internal/domain"
	"github.com/motionclinic/casematch/internal/engine"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err := db.AutoMigrate(&domain.CaseRecord{}, &domain.LabelVector{}); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func TestCaseRepository_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewCaseRepository(db)
	ctx := context.Background()

	age := 52
	record := &domain.CaseRecord{
		ID:         "case-1",
		Category:   domain.CategoryXRay,
		Label:      "Bone Fracture",
		Complaint:  "wrist pain",
		Treatment:  "cast for 6 weeks",
		Medication: "ibuprofen",
		Age:        &age,
		Embedding:  domain.FloatVector{0.1, 0.2, 0.3},
		Position:   0,
	}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "case-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Label != "Bone Fracture" {
		t.Errorf("Label = %q, want %q", got.Label, "Bone Fracture")
	}
	if got.Age == nil || *got.Age != 52 {
		t.Errorf("Age = %v, want 52", got.Age)
	}
	if len(got.Embedding) != 3 {
		t.Errorf("Embedding length = %d, want 3", len(got.Embedding))
	}

	count, err := repo.CountByCategory(ctx, domain.CategoryXRay)
	if err != nil {
		t.Fatalf("CountByCategory() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountByCategory() = %d, want 1", count)
	}
}

func TestCaseRepository_ListByCategoryOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewCaseRepository(db)
	ctx := context.Background()

	// Insert out of position order; listing must come back position-sorted.
	records := []domain.CaseRecord{
		{ID: "c", Category: domain.CategoryCT, Label: "Hernia", Position: 2},
		{ID: "a", Category: domain.CategoryCT, Label: "Tumor", Position: 0},
		{ID: "b", Category: domain.CategoryCT, Label: "Cyst", Position: 1},
		{ID: "x", Category: domain.CategoryXRay, Label: "Fracture", Position: 0},
	}
	if err := repo.CreateBatch(ctx, records); err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}

	got, err := repo.ListByCategory(ctx, domain.CategoryCT)
	if err != nil {
		t.Fatalf("ListByCategory() error = %v", err)
	}
	wantIDs := []string{"a", "b", "c"}
	if len(got) != len(wantIDs) {
		t.Fatalf("expected %d records, got %d", len(wantIDs), len(got))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("record %d: ID = %q, want %q", i, got[i].ID, id)
		}
	}

	maxPos, err := repo.MaxPosition(ctx, domain.CategoryCT)
	if err != nil {
		t.Fatalf("MaxPosition() error = %v", err)
	}
	if maxPos != 2 {
		t.Errorf("MaxPosition() = %d, want 2", maxPos)
	}

	emptyPos, err := repo.MaxPosition(ctx, domain.CategoryMRI)
	if err != nil {
		t.Fatalf("MaxPosition() error = %v", err)
	}
	if emptyPos != -1 {
		t.Errorf("MaxPosition() for empty category = %d, want -1", emptyPos)
	}
}

// TestSnapshotRoundTripPreservesRankings persists an index snapshot, reloads
// it, and checks that a rebuilt index ranks probes identically to the
// original, including insertion-order tie-breaks.
func TestSnapshotRoundTripPreservesRankings(t *testing.T) {
	db := newTestDB(t)
	repo := NewVectorRepository(db)
	ctx := context.Background()

	entries := []engine.IndexEntry{
		{ID: "v0", Label: "Bone Fracture", Vector: []float32{1, 0, 0}},
		{ID: "v1", Label: "Arthritis", Vector: []float32{0.9, 0.1, 0}},
		{ID: "v2", Label: "Pneumonia", Vector: []float32{0, 1, 0}},
		{ID: "v3", Label: "Scoliosis", Vector: []float32{0, 0.9, 0.1}},
		// Duplicate direction of v0: ties must keep insertion order.
		{ID: "v4", Label: "Osteoporosis", Vector: []float32{2, 0, 0}},
	}

	original, err := engine.BuildIndex(entries)
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}

	vectors := make([]domain.LabelVector, len(entries))
	for i, e := range entries {
		vectors[i] = domain.LabelVector{
			ID:       e.ID,
			Category: domain.CategoryXRay,
			Label:    e.Label,
			Vector:   domain.FloatVector(e.Vector),
			Position: i,
		}
	}
	if err := repo.UpsertBatch(ctx, vectors); err != nil {
		t.Fatalf("UpsertBatch() error = %v", err)
	}

	reloaded, err := repo.ListByCategory(ctx, domain.CategoryXRay)
	if err != nil {
		t.Fatalf("ListByCategory() error = %v", err)
	}
	rebuiltEntries := make([]engine.IndexEntry, len(reloaded))
	for i, v := range reloaded {
		rebuiltEntries[i] = engine.IndexEntry{ID: v.ID, Label: v.Label, Vector: v.Vector}
	}
	rebuilt, err := engine.BuildIndex(rebuiltEntries)
	if err != nil {
		t.Fatalf("BuildIndex() on reloaded snapshot error = %v", err)
	}

	probes := [][]float32{
		{1, 0, 0},
		{0.5, 0.5, 0},
		{0, 1, 0.2},
		{0.3, 0.3, 0.9},
	}
	for i, probe := range probes {
		t.Run(fmt.Sprintf("probe_%d", i), func(t *testing.T) {
			wantHits, err := original.Search(ctx, probe, len(entries))
			if err != nil {
				t.Fatalf("original Search() error = %v", err)
			}
			gotHits, err := rebuilt.Search(ctx, probe, len(entries))
			if err != nil {
				t.Fatalf("rebuilt Search() error = %v", err)
			}
			if len(gotHits) != len(wantHits) {
				t.Fatalf("hit count = %d, want %d", len(gotHits), len(wantHits))
			}
			for j := range wantHits {
				if gotHits[j].ID != wantHits[j].ID {
					t.Errorf("rank %d: ID = %q, want %q", j, gotHits[j].ID, wantHits[j].ID)
				}
				if gotHits[j].Score != wantHits[j].Score {
					t.Errorf("rank %d: Score = %v, want %v", j, gotHits[j].Score, wantHits[j].Score)
				}
			}
		})
	}
}

func TestVectorRepository_UpsertReplaces(t *testing.T) {
	db := newTestDB(t)
	repo := NewVectorRepository(db)
	ctx := context.Background()

	v := &domain.LabelVector{
		ID:       "v1",
		Category: domain.CategoryMRI,
		Label:    "Disc Herniation",
		Vector:   domain.FloatVector{1, 0},
		Position: 0,
	}
	if err := repo.Upsert(ctx, v); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	v.Label = "Meniscus Tear"
	if err := repo.Upsert(ctx, v); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	count, err := repo.CountByCategory(ctx, domain.CategoryMRI)
	if err != nil {
		t.Fatalf("CountByCategory() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountByCategory() = %d, want 1", count)
	}

	got, err := repo.ListByCategory(ctx, domain.CategoryMRI)
	if err != nil {
		t.Fatalf("ListByCategory() error = %v", err)
	}
	if got[0].Label != "Meniscus Tear" {
		t.Errorf("Label = %q, want %q", got[0].Label, "Meniscus Tear")
	}
}
