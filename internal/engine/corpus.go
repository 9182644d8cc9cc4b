package engine

import "github.com/motionclinic/casematch/internal/domain"

// Corpus holds one category's immutable serving state: the recorded cases
// in insertion order, the label-embedding index over them, and the
// vocabulary the fuzzy matcher resolves against. Loaded once per process
// and shared read-only across requests.
type Corpus struct {
	Category string
	Records  []domain.CaseRecord
	Index    Searcher

	vocabulary []string
	byLabel    map[string]int // normalized label -> first record index
	byID       map[string]int // record id -> record index
}

// NewCorpus builds the serving corpus for a category. The vocabulary is
// the record labels in record order, kept parallel to Records so a
// vocabulary index identifies its record directly.
func NewCorpus(category string, records []domain.CaseRecord, index Searcher) *Corpus {
	c := &Corpus{
		Category:   category,
		Records:    records,
		Index:      index,
		vocabulary: make([]string, len(records)),
		byLabel:    make(map[string]int, len(records)),
		byID:       make(map[string]int, len(records)),
	}
	for i, r := range records {
		c.vocabulary[i] = r.Label
		key := NormalizeLabel(r.Label)
		if _, seen := c.byLabel[key]; !seen {
			c.byLabel[key] = i
		}
		c.byID[r.ID] = i
	}
	return c
}

// Vocabulary returns the record labels in corpus iteration order.
func (c *Corpus) Vocabulary() []string {
	return c.vocabulary
}

// RecordAt returns the record behind a vocabulary index, or nil when out
// of range.
func (c *Corpus) RecordAt(i int) *domain.CaseRecord {
	if i < 0 || i >= len(c.Records) {
		return nil
	}
	return &c.Records[i]
}

// FirstByLabel returns the first record whose normalized label equals the
// normalized input, or nil.
func (c *Corpus) FirstByLabel(label string) *domain.CaseRecord {
	if i, ok := c.byLabel[NormalizeLabel(label)]; ok {
		return &c.Records[i]
	}
	return nil
}

// RecordByID returns the record with the given id, or nil. IDs are unique
// per corpus, so this resolves the exact record behind an index hit even
// when several records share a label.
func (c *Corpus) RecordByID(id string) *domain.CaseRecord {
	if i, ok := c.byID[id]; ok {
		return &c.Records[i]
	}
	return nil
}

// Empty reports whether the corpus has no records.
func (c *Corpus) Empty() bool {
	return len(c.Records) == 0
}
