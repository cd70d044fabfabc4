package domain

// Record is one logical row flowing through the pipeline. OriginalIndex is
// assigned once on ingest and is never reused or reordered, even across
// batches and even after the row has been split into chunks.
type Record struct {
	OriginalIndex int64
	Text          string
	Passthrough   map[string]string

	// ChunkPosition is -1 for an unchunked record, or the 0-based position
	// of this chunk within its parent's text for a chunked one.
	ChunkPosition int
}

// IsChunk reports whether this Record was produced by the chunker.
func (r Record) IsChunk() bool { return r.ChunkPosition >= 0 }

// Batch is an ordered, finite slice of Records of size <= configured
// batch_size. The orchestrator never holds more than one batch plus
// cross-batch state in memory.
type Batch struct {
	Records []Record
}

// Fingerprint is the 64-bit non-cryptographic hash of normalized text used
// for Stage-1 exact-duplicate detection.
type Fingerprint uint64

// Embedding is a fixed-dimension unit-norm vector produced by C6.
type Embedding []float32

// IndexEntry binds a dense, gap-free global_vector_id to the OriginalIndex
// of the Record it was computed from.
type IndexEntry struct {
	GlobalVectorID int
	OriginalIndex  int64
}

// DuplicateGroup is an equivalence class under the similarity predicate.
// Canonical is the member with the smallest OriginalIndex; Members holds
// every OriginalIndex in the group, canonical included.
type DuplicateGroup struct {
	Canonical int64
	Members   []int64
}

// AuditReason is the closed set of reasons a row can be dropped or
// suppressed, per the audit protocol.
type AuditReason string

const (
	ReasonExactDuplicate       AuditReason = "exact_duplicate"
	ReasonSemanticDuplicate    AuditReason = "semantic_duplicate"
	ReasonValidationEmpty      AuditReason = "validation_empty_or_null"
	ReasonValidationTooShort   AuditReason = "validation_too_short"
	ReasonSchemaMissingColumn  AuditReason = "schema_missing_column"
	ReasonSanitizationDropNull AuditReason = "sanitization_dropped_null"
)

// AuditEvent records why a row was dropped or suppressed. Events are
// append-only and ordered by detection time.
type AuditEvent struct {
	RowIndex int64       `json:"row_index"`
	Reason   AuditReason `json:"reason"`
	Details  string      `json:"details"`
}

// Stats aggregates run-wide counters. All fields are monotonic
// non-decreasing except as later stages reveal additional drops.
type Stats struct {
	OriginalRows int64 `json:"original_rows"`

	AfterSanitizationRows int64 `json:"after_sanitization_rows"`
	AfterChunkingRows     int64 `json:"after_chunking_rows"`
	AfterExactDedupRows   int64 `json:"after_exact_dedup_rows"`
	AfterSemanticDedupRows int64 `json:"after_semantic_dedup_rows"`
	AfterValidationRows   int64 `json:"after_validation_rows"`

	ExactDuplicatesRemoved    int64 `json:"exact_duplicates_removed"`
	SemanticDuplicatesRemoved int64 `json:"semantic_duplicates_removed"`

	TotalDropped      int64 `json:"total_dropped"`
	TotalDroppedChars int64 `json:"total_dropped_chars"`

	EstimatedAPISavingsUSD float64 `json:"estimated_api_savings"`
}

// FinalRows is the number of rows that survived to the output sink.
func (s Stats) FinalRows() int64 {
	return s.OriginalRows - s.TotalDropped
}
