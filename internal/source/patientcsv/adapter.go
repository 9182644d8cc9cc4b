package patientcsv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/motionclinic/casematch/internal/domain"
	"github.com/motionclinic/casematch/internal/source"
)

const (
	SourceID   = "patientcsv"
	SourceName = "Patient Records CSV"
)

// Column headers accepted in the CSV, including the misspelled and
// suffixed variants that appear in exported datasets.
var columnAliases = map[string]string{
	"complain":               "complaint",
	"complaint":              "complaint",
	"diagnosis":              "diagnosis",
	"history":                "history",
	"treatment plan":         "treatment",
	"treatment":              "treatment",
	"medications prescribed": "medication",
	"medications perscribed": "medication",
	"age":                    "age",
	"patient id":             "patient_id",
	"category":               "category",
}

// Adapter implements the Source interface for patient-record CSV exports.
// Files named <category>.csv (or carrying a Category column) feed their
// category's corpus; rows keep file order so corpus positions are stable
// across re-ingestion.
type Adapter struct {
	dataDir string
	items   []source.CaseItem
	loaded  bool
}

// NewAdapter creates a new patient CSV adapter rooted at dataDir.
func NewAdapter(dataDir string) *Adapter {
	return &Adapter{dataDir: dataDir}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return SourceID
}

// GetDisplayName returns a human-readable name for this source.
func (a *Adapter) GetDisplayName() string {
	return SourceName
}

// FetchBatch fetches a batch of case items.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.CaseItem, string, error) {
	_ = ctx
	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return nil, "", fmt.Errorf("failed to load items: %w", err)
		}
		a.loaded = true
	}

	startIndex := 0
	if cursor != "" {
		var err error
		startIndex, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", err)
		}
	}

	if startIndex >= len(a.items) {
		return []source.CaseItem{}, "", nil
	}

	endIndex := startIndex + limit
	if endIndex > len(a.items) {
		endIndex = len(a.items)
	}

	batch := a.items[startIndex:endIndex]
	nextCursor := ""
	if endIndex < len(a.items) {
		nextCursor = strconv.Itoa(endIndex)
	}

	return batch, nextCursor, nil
}

// loadItems reads every CSV under the data directory.
func (a *Adapter) loadItems() error {
	if _, err := os.Stat(a.dataDir); os.IsNotExist(err) {
		return fmt.Errorf("data directory does not exist: %s", a.dataDir)
	}

	files, err := filepath.Glob(filepath.Join(a.dataDir, "*.csv"))
	if err != nil {
		return err
	}

	a.items = nil
	for _, file := range files {
		if err := a.loadFile(file); err != nil {
			return fmt.Errorf("loading %s: %w", file, err)
		}
	}
	return nil
}

// loadFile parses one CSV file. The category falls back to the file name
// when no Category column exists.
func (a *Adapter) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	columns := mapColumns(header)
	if _, ok := columns["diagnosis"]; !ok {
		return fmt.Errorf("no diagnosis column in %s", filepath.Base(path))
	}

	fileCategory := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	row := 0
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		row++

		item := source.CaseItem{
			SourceID:   fmt.Sprintf("%s:%d", filepath.Base(path), row),
			Category:   fileCategory,
			Label:      field(record, columns, "diagnosis"),
			Complaint:  field(record, columns, "complaint"),
			History:    field(record, columns, "history"),
			Treatment:  field(record, columns, "treatment"),
			Medication: field(record, columns, "medication"),
		}
		if id := field(record, columns, "patient_id"); id != "" {
			item.SourceID = id
		}
		if cat := field(record, columns, "category"); cat != "" {
			item.Category = cat
		}
		if ageText := field(record, columns, "age"); ageText != "" {
			if age, err := strconv.Atoi(strings.TrimSpace(ageText)); err == nil {
				item.Age = &age
			}
		}

		if item.Label == "" || !domain.IsValidCategory(item.Category) {
			continue
		}
		a.items = append(a.items, item)
	}

	return nil
}

// mapColumns maps canonical field names to column indices, tolerating the
// alias spellings and trailing whitespace seen in real exports.
func mapColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		// Strip spreadsheet artifacts like "Patient id+G9E5A1:..."
		if idx := strings.IndexAny(key, "+"); idx > 0 {
			key = strings.TrimSpace(key[:idx])
		}
		if canonical, ok := columnAliases[key]; ok {
			if _, seen := columns[canonical]; !seen {
				columns[canonical] = i
			}
		}
	}
	return columns
}

func field(record []string, columns map[string]int, name string) string {
	i, ok := columns[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
