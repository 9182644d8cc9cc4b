package domain

// Tier names the strategy that produced a report. Every evaluation ends in
// exactly one tier.
type Tier string

const (
	// TierDatasetMatch means the retrieved label resolved against the case
	// dataset and the report carries that record's fields verbatim.
	TierDatasetMatch Tier = "Dataset Match"

	// TierRandomFallback means no dataset record resolved, so a recorded case
	// was drawn uniformly at random to avoid returning empty fields.
	TierRandomFallback Tier = "Random Fallback"

	// TierContextlessMatch means a label was retrieved but the report was
	// assembled from the label alone, without dataset context.
	TierContextlessMatch Tier = "Contextless Match"

	// TierCaptionFallback means no corpus data existed and the report label
	// came from keyword-matching a generated caption.
	TierCaptionFallback Tier = "Caption Fallback"
)

// Report is the fixed-shape structured answer returned for every query.
// Field names mirror the clinical report schema consumed downstream.
type Report struct {
	FinalDiagnosis       string `json:"final_diagnosis"`
	TreatmentPlan        string `json:"treatment_plan"`
	MedicationPrescribed string `json:"medication_prescribed"`
	Recommendations      string `json:"recommendations"`
	FollowUp             string `json:"follow_up"`
	Source               Tier   `json:"source"`
	SimilarityScore      string `json:"similarity_score"`
}
