package engine

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/motionclinic/casematch/internal/domain"
)

func testCorpus(labels ...string) *Corpus {
	records := make([]domain.CaseRecord, len(labels))
	for i, l := range labels {
		records[i] = domain.CaseRecord{
			ID:       l,
			Label:    l,
			Position: i,
		}
	}
	return NewCorpus(domain.CategoryXRay, records, nil)
}

func TestRouter_DatasetMatch(t *testing.T) {
	corpus := testCorpus("Pneumonia")
	router := NewRouter(DefaultPolicy(), rand.New(rand.NewSource(1)))

	d, err := router.Decide(&Candidate{Label: "Pneumonia", FusedScore: 1.0}, corpus, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Tier != domain.TierDatasetMatch {
		t.Fatalf("expected DatasetMatch, got %s", d.Tier)
	}
	if d.Label != "Pneumonia" {
		t.Errorf("expected label Pneumonia, got %q", d.Label)
	}
	if d.Record == nil || d.Record.Label != "Pneumonia" {
		t.Error("expected the resolved record to be returned")
	}
	if d.Similarity != 1.0 {
		t.Errorf("expected similarity 1.0, got %f", d.Similarity)
	}
}

func TestRouter_UnresolvedLabelDrawsRecordedCase(t *testing.T) {
	corpus := testCorpus("Pneumonia", "Arthritis", "Bone Fracture")
	router := NewRouter(DefaultPolicy(), rand.New(rand.NewSource(42)))

	d, err := router.Decide(&Candidate{Label: "Xyzzy123", FusedScore: 0.12}, corpus, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Tier != domain.TierRandomFallback {
		t.Fatalf("expected RandomFallback, got %s", d.Tier)
	}
	if d.Record == nil {
		t.Fatal("expected a record drawn from the corpus")
	}
	if d.Record.Label != d.Label {
		t.Errorf("decision label %q does not match drawn record %q", d.Label, d.Record.Label)
	}
	if d.Similarity < 0 {
		t.Errorf("similarity must be clamped to >= 0, got %f", d.Similarity)
	}
}

func TestRouter_DeterministicUnderFixedSeed(t *testing.T) {
	corpus := testCorpus("Alpha", "Bravo", "Charlie", "Delta", "Echo")
	candidate := &Candidate{Label: "zzqq999", FusedScore: 0.1}

	first, err := NewRouter(DefaultPolicy(), rand.New(rand.NewSource(7))).Decide(candidate, corpus, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := NewRouter(DefaultPolicy(), rand.New(rand.NewSource(7))).Decide(candidate, corpus, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Tier != second.Tier {
		t.Errorf("tiers diverged under the same seed: %s vs %s", first.Tier, second.Tier)
	}
	if first.Record.ID != second.Record.ID {
		t.Errorf("records diverged under the same seed: %q vs %q", first.Record.ID, second.Record.ID)
	}
}

func TestRouter_RecordedFallbackDisabled(t *testing.T) {
	policy := DefaultPolicy()
	policy.RecordedFallback = false
	corpus := testCorpus("Pneumonia")
	router := NewRouter(policy, rand.New(rand.NewSource(1)))

	d, err := router.Decide(&Candidate{Label: "Xyzzy123", FusedScore: 0.12}, corpus, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Tier != domain.TierContextlessMatch {
		t.Fatalf("expected ContextlessMatch with fallback disabled, got %s", d.Tier)
	}
	if d.Label != "Xyzzy123" {
		t.Errorf("expected the retrieved label to be kept, got %q", d.Label)
	}
}

func TestRouter_NoCandidateDrawsRecordedCase(t *testing.T) {
	corpus := testCorpus("Pneumonia", "Arthritis")
	router := NewRouter(DefaultPolicy(), rand.New(rand.NewSource(3)))

	d, err := router.Decide(nil, corpus, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Tier != domain.TierRandomFallback {
		t.Fatalf("expected RandomFallback, got %s", d.Tier)
	}
	if d.Similarity != 0 {
		t.Errorf("expected similarity 0 without a candidate, got %f", d.Similarity)
	}
}

func TestRouter_EmptyCorpusFallsThroughToCaption(t *testing.T) {
	corpus := testCorpus()
	router := NewRouter(DefaultPolicy(), rand.New(rand.NewSource(1)))

	d, err := router.Decide(nil, corpus, func() (string, error) {
		return "possible fracture of the wrist", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Tier != domain.TierCaptionFallback {
		t.Fatalf("expected CaptionFallback, got %s", d.Tier)
	}
	if d.Label != "Fracture detected" {
		t.Errorf("expected keyword label, got %q", d.Label)
	}
}

func TestRouter_CaptionFailurePropagates(t *testing.T) {
	corpus := testCorpus()
	router := NewRouter(DefaultPolicy(), rand.New(rand.NewSource(1)))

	_, err := router.Decide(nil, corpus, func() (string, error) {
		return "", errors.New("model unavailable")
	})
	if !errors.Is(err, domain.ErrCaption) {
		t.Fatalf("expected caption error, got %v", err)
	}
}

func TestRouter_NegativeSimilarityClamped(t *testing.T) {
	corpus := testCorpus("Pneumonia")
	router := NewRouter(DefaultPolicy(), rand.New(rand.NewSource(1)))

	d, err := router.Decide(&Candidate{Label: "Pneumonia", FusedScore: -0.4}, corpus, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Similarity != 0 {
		t.Errorf("expected similarity clamped to 0, got %f", d.Similarity)
	}
}

func TestLabelFromCaption(t *testing.T) {
	tests := []struct {
		name    string
		caption string
		want    string
	}{
		{"fracture wins before broken and crack", "a broken wrist with a visible fracture crack", "Fracture detected"},
		{"pneumonia", "chest scan suggesting pneumonia", "Pneumonia"},
		{"case insensitive", "Severe SWELLING of the ankle", "Swelling"},
		{"multi word keyword", "signs of heart disease in the scan", "Heart disease"},
		{"no keyword", "a clear scan with no findings", GenericCaptionLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LabelFromCaption(tt.caption); got != tt.want {
				t.Errorf("LabelFromCaption(%q) = %q, want %q", tt.caption, got, tt.want)
			}
		})
	}
}
