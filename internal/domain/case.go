package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Categories supported by the engine. Each category carries its own
// independent corpus and vector index; there is no cross-category matching.
const (
	CategoryXRay = "xray"
	CategoryCT   = "ct"
	CategoryMRI  = "mri"
)

// Categories lists every supported imaging category in a fixed order.
var Categories = []string{CategoryXRay, CategoryCT, CategoryMRI}

// IsValidCategory reports whether category names a supported corpus.
func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// FloatVector is a custom type for storing embeddings as JSON in the database.
type FloatVector []float32

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded representation of the vector.
//   - error: non-nil if marshaling fails.
func (v FloatVector) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (v *FloatVector) Scan(value interface{}) error {
	if value == nil {
		*v = FloatVector{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan FloatVector")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, v)
}

// CaseRecord represents one recorded clinical case in the corpus.
// Records are created at corpus-build time and never mutated during serving;
// Position preserves corpus insertion order, which breaks ranking ties.
type CaseRecord struct {
	ID          string      `gorm:"type:text;primaryKey" json:"id"`
	Category    string      `gorm:"type:text;not null;index:idx_cases_category" json:"category"`
	Label       string      `gorm:"type:text;not null" json:"label"`
	PrimaryText string      `gorm:"type:text" json:"primary_text"`
	Complaint   string      `gorm:"type:text" json:"complaint,omitempty"`
	History     string      `gorm:"type:text" json:"history,omitempty"`
	Treatment   string      `gorm:"type:text" json:"treatment"`
	Medication  string      `gorm:"type:text" json:"medication"`
	Age         *int        `json:"age,omitempty"`
	Embedding   FloatVector `gorm:"type:text" json:"embedding,omitempty"`
	Position    int         `gorm:"not null;index:idx_cases_position" json:"position"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName returns the database table name for CaseRecord.
func (CaseRecord) TableName() string {
	return "case_records"
}

// LabelVector stores one entry of a category's label-embedding index.
// The index snapshot persisted through this table must reload into
// identical search rankings.
type LabelVector struct {
	ID        string      `gorm:"type:text;primaryKey" json:"id"`
	Category  string      `gorm:"type:text;not null;index:idx_label_vectors_category" json:"category"`
	Label     string      `gorm:"type:text;not null" json:"label"`
	Vector    FloatVector `gorm:"type:text;not null" json:"vector"`
	Position  int         `gorm:"not null" json:"position"`
	CreatedAt time.Time   `json:"created_at"`
}

// TableName returns the database table name for LabelVector.
func (LabelVector) TableName() string {
	return "label_vectors"
}
