package engine

import "strings"

// captionTerm maps a caption keyword to the clinical label it implies.
type captionTerm struct {
	keyword string
	label   string
}

// captionTerms is the fixed keyword table used on the caption fallback
// tier. Order is the tie-break: the first keyword found in the caption
// wins, so "fracture" beats "broken" and "crack".
var captionTerms = []captionTerm{
	{"fracture", "Fracture detected"},
	{"broken", "Fracture detected"},
	{"crack", "Fracture detected"},
	{"dislocation", "Joint dislocation"},
	{"sprain", "Ligament sprain"},
	{"strain", "Muscle strain"},
	{"arthritis", "Arthritis"},
	{"tumor", "Tumor detected"},
	{"cancer", "Cancerous growth"},
	{"infection", "Infection detected"},
	{"pneumonia", "Pneumonia"},
	{"tuberculosis", "Tuberculosis"},
	{"heart disease", "Heart disease"},
	{"stroke", "Stroke"},
	{"aneurysm", "Aneurysm"},
	{"hernia", "Hernia"},
	{"ulcer", "Ulcer"},
	{"inflammation", "Inflammation"},
	{"swelling", "Swelling"},
	{"edema", "Edema"},
}

// GenericCaptionLabel is returned when no keyword matches the caption.
const GenericCaptionLabel = "Image analysis completed. Professional evaluation recommended."

// LabelFromCaption derives a clinical label from a natural-language
// description by scanning the keyword table in order.
func LabelFromCaption(caption string) string {
	lower := strings.ToLower(caption)
	for _, term := range captionTerms {
		if strings.Contains(lower, term.keyword) {
			return term.label
		}
	}
	return GenericCaptionLabel
}
