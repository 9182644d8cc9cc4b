package engine

import (
	"strings"
	"testing"

	"github.com/motionclinic/casematch/internal/domain"
)

func TestAssembler_DatasetMatchUsesRecordFields(t *testing.T) {
	record := &domain.CaseRecord{
		Label:      "Pneumonia",
		Treatment:  "Antibiotics and rest",
		Medication: "Amoxicillin 500mg",
	}
	d := Decision{
		Tier:       domain.TierDatasetMatch,
		Record:     record,
		Label:      "Pneumonia",
		Similarity: 0.87,
	}

	r := Assembler{}.Build(d, domain.CategoryXRay)

	if r.FinalDiagnosis != "Pneumonia" {
		t.Errorf("expected record label, got %q", r.FinalDiagnosis)
	}
	if r.TreatmentPlan != "Antibiotics and rest" {
		t.Errorf("expected record treatment, got %q", r.TreatmentPlan)
	}
	if r.MedicationPrescribed != "Amoxicillin 500mg" {
		t.Errorf("expected record medication, got %q", r.MedicationPrescribed)
	}
	if !strings.Contains(r.Recommendations, "XRAY") {
		t.Errorf("expected category in recommendations, got %q", r.Recommendations)
	}
	if r.Source != domain.TierDatasetMatch {
		t.Errorf("expected source %s, got %s", domain.TierDatasetMatch, r.Source)
	}
	if r.SimilarityScore != "87.00%" {
		t.Errorf("expected 87.00%%, got %q", r.SimilarityScore)
	}
}

func TestAssembler_EmptySentinelsSubstituted(t *testing.T) {
	sentinels := []string{"", "N/A", "n/a", "na", "null", "None", "unknown", "-", "  "}

	for _, sentinel := range sentinels {
		t.Run("sentinel "+sentinel, func(t *testing.T) {
			d := Decision{
				Tier: domain.TierDatasetMatch,
				Record: &domain.CaseRecord{
					Label:      "Arthritis",
					Treatment:  sentinel,
					Medication: sentinel,
				},
			}
			r := Assembler{}.Build(d, domain.CategoryCT)

			if isEmptyField(r.TreatmentPlan) {
				t.Errorf("treatment %q leaked through for sentinel %q", r.TreatmentPlan, sentinel)
			}
			if r.TreatmentPlan != categoryDefaults[domain.CategoryCT] {
				t.Errorf("expected CT default phrase, got %q", r.TreatmentPlan)
			}
		})
	}
}

func TestAssembler_DefaultsCoverEveryCategory(t *testing.T) {
	for _, category := range domain.Categories {
		if _, ok := categoryDefaults[category]; !ok {
			t.Errorf("no default phrase for category %q", category)
		}
	}
}

func TestAssembler_UnknownCategoryGetsGenericDefault(t *testing.T) {
	d := Decision{Tier: domain.TierDatasetMatch, Record: &domain.CaseRecord{Label: "N/A"}}
	r := Assembler{}.Build(d, "ultrasound")
	if r.FinalDiagnosis != genericDefault {
		t.Errorf("expected generic default, got %q", r.FinalDiagnosis)
	}
}

func TestAssembler_ContextlessMatch(t *testing.T) {
	d := Decision{
		Tier:       domain.TierContextlessMatch,
		Label:      "Tuberculosis",
		Similarity: 0.42,
	}
	r := Assembler{}.Build(d, domain.CategoryMRI)

	if r.FinalDiagnosis != "Tuberculosis" {
		t.Errorf("expected retrieved label, got %q", r.FinalDiagnosis)
	}
	if !strings.Contains(r.Recommendations, "MRI specialist") {
		t.Errorf("expected specialist recommendation, got %q", r.Recommendations)
	}
	if r.FollowUp != "Schedule a follow-up appointment within 2-4 weeks." {
		t.Errorf("unexpected follow-up text: %q", r.FollowUp)
	}
}

func TestAssembler_CaptionFallback(t *testing.T) {
	d := Decision{
		Tier:  domain.TierCaptionFallback,
		Label: "Fracture detected",
	}
	r := Assembler{}.Build(d, domain.CategoryXRay)

	if r.FinalDiagnosis != "Fracture detected" {
		t.Errorf("expected caption label, got %q", r.FinalDiagnosis)
	}
	if !strings.Contains(r.Recommendations, "XRAY scan analysis") {
		t.Errorf("unexpected recommendations: %q", r.Recommendations)
	}
	if r.SimilarityScore != "0.00%" {
		t.Errorf("expected 0.00%%, got %q", r.SimilarityScore)
	}
}

func TestFormatSimilarity(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.0, "100.00%"},
		{0.3641, "36.41%"},
		{0, "0.00%"},
		{-0.5, "0.00%"},
	}
	for _, tt := range tests {
		if got := FormatSimilarity(tt.in); got != tt.want {
			t.Errorf("FormatSimilarity(%f) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
