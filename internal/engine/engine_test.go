package engine

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/motionclinic/casematch/internal/domain"
)

// fakeEncoder maps query text to a fixed embedding.
type fakeEncoder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEncoder) EncodeText(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEncoder) EncodeImage(ctx context.Context, _ []byte, _ string) ([]float32, error) {
	return f.EncodeText(ctx, "image")
}

// fakeCaptioner returns a canned caption.
type fakeCaptioner struct {
	caption string
	err     error
}

func (f *fakeCaptioner) Caption(_ context.Context, _ Query) (string, error) {
	return f.caption, f.err
}

func buildCorpus(t *testing.T, category string, records []domain.CaseRecord) *Corpus {
	t.Helper()
	entries := make([]IndexEntry, 0, len(records))
	for _, r := range records {
		if len(r.Embedding) == 0 {
			continue
		}
		entries = append(entries, IndexEntry{ID: r.ID, Label: r.Label, Vector: r.Embedding})
	}
	ix, err := BuildIndex(entries)
	if err != nil {
		t.Fatalf("building index: %v", err)
	}
	return NewCorpus(category, records, ix)
}

func newTestEvaluator(t *testing.T, records []domain.CaseRecord, enc Encoder, cpt Captioner) *Evaluator {
	t.Helper()
	policy := DefaultPolicy()
	corpora := map[string]*Corpus{
		domain.CategoryXRay: buildCorpus(t, domain.CategoryXRay, records),
	}
	router := NewRouter(policy, rand.New(rand.NewSource(1)))
	return NewEvaluator(enc, cpt, corpora, router, policy)
}

func TestEvaluator_ExactMatchSingleRecord(t *testing.T) {
	records := []domain.CaseRecord{{
		ID:        "r1",
		Label:     "Pneumonia",
		Treatment: "Antibiotics",
		Embedding: domain.FloatVector{1, 0, 0},
		Position:  0,
	}}
	enc := &fakeEncoder{vectors: map[string][]float32{"chest pain and cough": {1, 0, 0}}}
	ev := newTestEvaluator(t, records, enc, nil)

	report, err := ev.Evaluate(context.Background(), Query{Text: "chest pain and cough"}, domain.CategoryXRay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Source != domain.TierDatasetMatch {
		t.Fatalf("expected DatasetMatch, got %s", report.Source)
	}
	if report.FinalDiagnosis != "Pneumonia" {
		t.Errorf("expected Pneumonia, got %q", report.FinalDiagnosis)
	}
	if report.SimilarityScore != "100.00%" {
		t.Errorf("expected 100.00%%, got %q", report.SimilarityScore)
	}
}

func TestEvaluator_UnresolvedLabelFallsBackToRecordedCase(t *testing.T) {
	// The index entry's label resolves against nothing in the record set,
	// so routing draws a recorded case instead.
	corpusRecords := []domain.CaseRecord{
		{ID: "r1", Label: "Arthritis", Position: 0},
		{ID: "r2", Label: "Hernia", Position: 1},
	}
	entries := []IndexEntry{{ID: "v1", Label: "Xyzzy123", Vector: []float32{1, 0, 0}}}
	ix, err := BuildIndex(entries)
	if err != nil {
		t.Fatalf("building index: %v", err)
	}

	policy := DefaultPolicy()
	corpora := map[string]*Corpus{
		domain.CategoryXRay: NewCorpus(domain.CategoryXRay, corpusRecords, ix),
	}
	ev := NewEvaluator(
		&fakeEncoder{vectors: map[string][]float32{"q": {1, 0, 0}}},
		nil,
		corpora,
		NewRouter(policy, rand.New(rand.NewSource(9))),
		policy,
	)

	report, err := ev.Evaluate(context.Background(), Query{Text: "q"}, domain.CategoryXRay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Source != domain.TierRandomFallback {
		t.Fatalf("expected RandomFallback, got %s", report.Source)
	}
	if report.FinalDiagnosis != "Arthritis" && report.FinalDiagnosis != "Hernia" {
		t.Errorf("expected a recorded diagnosis, got %q", report.FinalDiagnosis)
	}
}

func TestEvaluator_EmptyCorpusUsesCaption(t *testing.T) {
	ev := newTestEvaluator(t, nil,
		&fakeEncoder{},
		&fakeCaptioner{caption: "possible fracture of the wrist"},
	)

	report, err := ev.Evaluate(context.Background(), Query{Text: "wrist injury"}, domain.CategoryXRay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Source != domain.TierCaptionFallback {
		t.Fatalf("expected CaptionFallback, got %s", report.Source)
	}
	if report.FinalDiagnosis != "Fracture detected" {
		t.Errorf("expected Fracture detected, got %q", report.FinalDiagnosis)
	}
}

func TestEvaluator_AgeDecayReordersCandidates(t *testing.T) {
	// Both stored vectors are equally similar to the query; the age decay on
	// the first record pushes the second record to the top.
	queryAge := 30
	farAge := 90
	nearAge := 32
	records := []domain.CaseRecord{
		{ID: "r1", Label: "Arthritis", Age: &farAge, Embedding: domain.FloatVector{1, 0, 0}, Position: 0},
		{ID: "r2", Label: "Hernia", Age: &nearAge, Embedding: domain.FloatVector{1, 0, 0}, Position: 1},
	}
	enc := &fakeEncoder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	ev := newTestEvaluator(t, records, enc, nil)

	report, err := ev.Evaluate(context.Background(), Query{Text: "q", Age: &queryAge}, domain.CategoryXRay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Source != domain.TierDatasetMatch {
		t.Fatalf("expected DatasetMatch, got %s", report.Source)
	}
	if report.FinalDiagnosis != "Hernia" {
		t.Errorf("expected age-closer record to win, got %q", report.FinalDiagnosis)
	}
}

func TestEvaluator_SharedLabelUsesPerRecordAge(t *testing.T) {
	// Two records carry the same label but different ages. The decay must
	// come from the record behind each hit, not from the first record that
	// happens to share the label.
	queryAge := 30
	farAge := 90
	nearAge := 32
	records := []domain.CaseRecord{
		{ID: "r1", Label: "Arthritis", Age: &farAge, Embedding: domain.FloatVector{1, 0, 0}, Position: 0},
		{ID: "r2", Label: "Arthritis", Age: &nearAge, Embedding: domain.FloatVector{1, 0, 0}, Position: 1},
	}
	enc := &fakeEncoder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	ev := newTestEvaluator(t, records, enc, nil)

	report, err := ev.Evaluate(context.Background(), Query{Text: "q", Age: &queryAge}, domain.CategoryXRay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Source != domain.TierDatasetMatch {
		t.Fatalf("expected DatasetMatch, got %s", report.Source)
	}
	// The age-near record fuses to 1.0 * (1 - 0.2*2/10) = 0.96; resolving
	// every hit against the first "Arthritis" record would decay both to
	// the 0.2 floor instead.
	if report.SimilarityScore != "96.00%" {
		t.Errorf("expected 96.00%%, got %q", report.SimilarityScore)
	}
}

func TestEvaluator_UnknownCategory(t *testing.T) {
	ev := newTestEvaluator(t, nil, &fakeEncoder{}, nil)

	_, err := ev.Evaluate(context.Background(), Query{Text: "q"}, "ultrasound")
	if !errors.Is(err, domain.ErrCorpusNotFound) {
		t.Fatalf("expected corpus not found, got %v", err)
	}
}

func TestEvaluator_QueryWithoutContent(t *testing.T) {
	ev := newTestEvaluator(t, nil, &fakeEncoder{}, nil)

	_, err := ev.Evaluate(context.Background(), Query{}, domain.CategoryXRay)
	if !errors.Is(err, domain.ErrMalformedRequest) {
		t.Fatalf("expected malformed request, got %v", err)
	}
}

func TestEvaluator_EncoderFailurePropagates(t *testing.T) {
	enc := &fakeEncoder{err: domain.ErrEncoding}
	ev := newTestEvaluator(t, nil, enc, nil)

	_, err := ev.Evaluate(context.Background(), Query{Text: "q"}, domain.CategoryXRay)
	if !errors.Is(err, domain.ErrEncoding) {
		t.Fatalf("expected encoding error, got %v", err)
	}
}

func TestEvaluator_TieKeepsFirstInsertedRecord(t *testing.T) {
	// Identical vectors and no ages: scores tie exactly, so the record
	// inserted first must be returned.
	records := []domain.CaseRecord{
		{ID: "r1", Label: "Arthritis", Embedding: domain.FloatVector{0, 1, 0}, Position: 0},
		{ID: "r2", Label: "Hernia", Embedding: domain.FloatVector{0, 1, 0}, Position: 1},
	}
	enc := &fakeEncoder{vectors: map[string][]float32{"q": {0, 1, 0}}}
	ev := newTestEvaluator(t, records, enc, nil)

	report, err := ev.Evaluate(context.Background(), Query{Text: "q"}, domain.CategoryXRay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.FinalDiagnosis != "Arthritis" {
		t.Errorf("expected first-inserted record, got %q", report.FinalDiagnosis)
	}
}
