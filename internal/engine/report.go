package engine

import (
	"fmt"
	"strings"

	"github.com/motionclinic/casematch/internal/domain"
)

// emptySentinels are field values treated as missing. Comparison happens
// after trimming and lower-casing.
var emptySentinels = map[string]struct{}{
	"":        {},
	"n/a":     {},
	"na":      {},
	"null":    {},
	"none":    {},
	"unknown": {},
	"-":       {},
}

// categoryDefaults substitutes for missing record fields, keyed by request
// category. Every supported category has an entry; unknown categories get
// the generic phrase.
var categoryDefaults = map[string]string{
	domain.CategoryXRay: "Clinical correlation with radiographic findings is advised.",
	domain.CategoryCT:   "Clinical correlation with CT findings is advised.",
	domain.CategoryMRI:  "Clinical correlation with MRI findings is advised.",
}

const genericDefault = "Further clinical evaluation is advised."

const prescriberNotice = "Medication should be prescribed by a qualified healthcare provider."

// Assembler turns a routing decision into the fixed-shape report returned
// to callers. It is stateless and safe for concurrent use.
type Assembler struct{}

// Build produces the structured report for one decision.
// Parameters:
//   - d: terminal routing decision.
//   - category: the request category, used for default substitution and
//     the category-specific advisory texts.
// Returns:
//   - domain.Report: five clinical fields, the provenance tier, and the
//     similarity formatted as a percentage string.
func (Assembler) Build(d Decision, category string) domain.Report {
	upper := strings.ToUpper(category)

	var report domain.Report
	switch d.Tier {
	case domain.TierDatasetMatch, domain.TierRandomFallback:
		report = domain.Report{
			FinalDiagnosis:       fieldOrDefault(recordLabel(d), category),
			TreatmentPlan:        fieldOrDefault(recordField(d, func(r *domain.CaseRecord) string { return r.Treatment }), category),
			MedicationPrescribed: fieldOrDefault(recordField(d, func(r *domain.CaseRecord) string { return r.Medication }), category),
			Recommendations:      fmt.Sprintf("Based on %s analysis, maintain physical therapy and regular checkups.", upper),
			FollowUp:             "Re-evaluate every 3-6 months.",
		}
	case domain.TierContextlessMatch:
		report = domain.Report{
			FinalDiagnosis:       fieldOrDefault(d.Label, category),
			TreatmentPlan:        "Based on the image analysis, consult with a specialist for proper treatment.",
			MedicationPrescribed: prescriberNotice,
			Recommendations:      fmt.Sprintf("Follow up with a %s specialist for detailed evaluation.", upper),
			FollowUp:             "Schedule a follow-up appointment within 2-4 weeks.",
		}
	default: // caption fallback
		report = domain.Report{
			FinalDiagnosis:       fieldOrDefault(d.Label, category),
			TreatmentPlan:        "Consult with a medical specialist for proper diagnosis and treatment.",
			MedicationPrescribed: prescriberNotice,
			Recommendations:      fmt.Sprintf("Based on the %s scan analysis, professional medical evaluation is advised.", upper),
			FollowUp:             "Schedule an appointment with a specialist for detailed analysis.",
		}
	}

	report.Source = d.Tier
	report.SimilarityScore = FormatSimilarity(d.Similarity)
	return report
}

// FormatSimilarity renders a similarity as a two-decimal percentage string.
func FormatSimilarity(s float64) string {
	return fmt.Sprintf("%.2f%%", clampScore(s)*100)
}

// fieldOrDefault substitutes the category default when value is empty or a
// known empty sentinel.
func fieldOrDefault(value, category string) string {
	if isEmptyField(value) {
		if phrase, ok := categoryDefaults[category]; ok {
			return phrase
		}
		return genericDefault
	}
	return strings.TrimSpace(value)
}

// isEmptyField reports whether value should be treated as missing.
func isEmptyField(value string) bool {
	_, ok := emptySentinels[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

func recordLabel(d Decision) string {
	if d.Record != nil {
		return d.Record.Label
	}
	return d.Label
}

func recordField(d Decision, get func(*domain.CaseRecord) string) string {
	if d.Record == nil {
		return ""
	}
	return get(d.Record)
}
