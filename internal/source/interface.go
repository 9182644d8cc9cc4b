package source

import "context"

// CaseItem represents one clinical case from a data source before it is
// embedded and persisted.
type CaseItem struct {
	SourceID   string // Unique ID within the source
	Category   string // Imaging category (xray, ct, mri)
	Label      string // Diagnosis string
	Complaint  string
	History    string
	Treatment  string
	Medication string
	Age        *int
}

// Source defines the interface for clinical case data sources.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	GetSourceID() string

	// GetDisplayName returns a human-readable name for this source.
	GetDisplayName() string

	// FetchBatch fetches a batch of case items starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of items to fetch.
	// Returns:
	//   - items: batch of case items.
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []CaseItem, nextCursor string, err error)
}
