package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP or stream request ID (UUID)
	FieldRequestID = "request_id"

	// FieldIngestID is the corpus ingestion run ID
	FieldIngestID = "ingest_id"

	// FieldCategory is the imaging category being served
	FieldCategory = "category"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldTier is the routing tier that produced a report
	FieldTier = "tier"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSimilarity is the reported similarity score
	FieldSimilarity = "similarity"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
