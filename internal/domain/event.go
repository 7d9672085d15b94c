package domain

import (
	"time"

	"github.com/google/uuid"
)

// UniversalEvent is the canonical unit of ingested fact. It is created by the
// schema mapper, enriched by the classifier, and owned by the ledger store once
// persisted.
type UniversalEvent struct {
	EventID           uuid.UUID         `json:"event_id"`
	TenantID          uuid.UUID         `json:"tenant_id"`
	Timestamp         time.Time         `json:"timestamp"`
	SourceSystem      string            `json:"source_system"`
	Category          string            `json:"category"`
	SubCategory       string            `json:"sub_category"`
	ConfidenceScore   float64           `json:"confidence_score"`
	AIReasoning       string            `json:"ai_reasoning"`
	Amount            *float64          `json:"amount,omitempty"`
	EntityName        *string           `json:"entity_name,omitempty"`
	ReferenceID       *string           `json:"reference_id,omitempty"`
	RichData          map[string]string `json:"rich_data"`
	SchemaFingerprint string            `json:"schema_fingerprint"`
	Verified          bool              `json:"verified"`
	VerifiedBy        *string           `json:"verified_by,omitempty"`
	VerifiedAt        *time.Time        `json:"verified_at,omitempty"`
}

// NewUniversalEvent creates an event with a fresh id and the provenance fields
// every event carries. Timestamp defaults to ingestion time; the mapper
// overwrites it when the source row carries a parseable date.
func NewUniversalEvent(tenantID uuid.UUID, sourceSystem, fingerprint string) *UniversalEvent {
	return &UniversalEvent{
		EventID:           uuid.New(),
		TenantID:          tenantID,
		Timestamp:         time.Now().UTC(),
		SourceSystem:      sourceSystem,
		SchemaFingerprint: fingerprint,
		RichData:          map[string]string{},
	}
}

// MarkVerified records a human confirmation. Verified events are always routed
// to the trusted partition regardless of confidence.
func (e *UniversalEvent) MarkVerified(by string, at time.Time) {
	e.Verified = true
	e.VerifiedBy = &by
	e.VerifiedAt = &at
}

// QuarantineRecord wraps an event held for human review.
type QuarantineRecord struct {
	UniversalEvent
	QuarantineReason string `json:"quarantine_reason"`
	Status           string `json:"status"`
}

// StatusPendingReview marks quarantined events awaiting a human decision.
const StatusPendingReview = "pending_review"

// FailedRow captures a source row that could not become an event. Row defects
// are values reported per row, never errors that abort a batch.
type FailedRow struct {
	RowNumber int      `json:"row_number"`
	Reason    string   `json:"reason"`
	Raw       []string `json:"raw,omitempty"`
}

// IngestionSummary is the per-file result surfaced to callers. Partial success
// (some rows mapped, some rejected) is still a successful run.
type IngestionSummary struct {
	RowsProcessed    int         `json:"rows_processed"`
	EventsMapped     int         `json:"events_mapped"`
	GhostItems       int         `json:"ghost_items"`
	Duplicates       int         `json:"duplicates"`
	TrustedCount     int         `json:"trusted_count"`
	QuarantinedCount int         `json:"quarantined_count"`
	FailedRows       []FailedRow `json:"failed_rows"`
	HeaderRowIndex   int         `json:"header_row_index"`
	Fingerprint      string      `json:"schema_fingerprint"`
	StorageMode      string      `json:"storage_mode"`
}

// IngestionRun is the durable record of one processed file.
type IngestionRun struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	SourceSystem string    `json:"source_system"`
	FileName     string    `json:"file_name"`
	Status       string    `json:"status"`
	Summary      IngestionSummary
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
