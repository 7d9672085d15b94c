package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkapur/unipipe/internal/domain"
)

type ledgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository wires the primary ledger writer backed by pgxpool.
func NewLedgerRepository(pool *pgxpool.Pool) LedgerRepository {
	return &ledgerRepository{pool: pool}
}

func (r *ledgerRepository) InsertTrusted(ctx context.Context, events []*domain.UniversalEvent) error {
	if r.pool == nil {
		return fmt.Errorf("ledger repository not initialized")
	}
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, event := range events {
		richData, err := json.Marshal(event.RichData)
		if err != nil {
			return fmt.Errorf("failed to serialize rich data for event %s: %w", event.EventID, err)
		}
		batch.Queue(
			`INSERT INTO universal_events
			 (event_id, tenant_id, ts, source_system, category, sub_category, confidence_score,
			  ai_reasoning, amount, entity_name, reference_id, rich_data, schema_fingerprint,
			  verified, verified_by, verified_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			event.EventID, event.TenantID, event.Timestamp, event.SourceSystem,
			event.Category, event.SubCategory, event.ConfidenceScore,
			event.AIReasoning, event.Amount, event.EntityName, event.ReferenceID,
			richData, event.SchemaFingerprint,
			event.Verified, event.VerifiedBy, event.VerifiedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert trusted event: %w", err)
		}
	}

	return nil
}

func (r *ledgerRepository) InsertQuarantined(ctx context.Context, records []domain.QuarantineRecord) error {
	if r.pool == nil {
		return fmt.Errorf("ledger repository not initialized")
	}
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, record := range records {
		richData, err := json.Marshal(record.RichData)
		if err != nil {
			return fmt.Errorf("failed to serialize rich data for event %s: %w", record.EventID, err)
		}
		batch.Queue(
			`INSERT INTO quarantine_events
			 (event_id, tenant_id, ts, source_system, category, sub_category, confidence_score,
			  ai_reasoning, amount, entity_name, reference_id, rich_data, schema_fingerprint,
			  verified, verified_by, verified_at, quarantine_reason, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			record.EventID, record.TenantID, record.Timestamp, record.SourceSystem,
			record.Category, record.SubCategory, record.ConfidenceScore,
			record.AIReasoning, record.Amount, record.EntityName, record.ReferenceID,
			richData, record.SchemaFingerprint,
			record.Verified, record.VerifiedBy, record.VerifiedAt,
			record.QuarantineReason, record.Status,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert quarantined event: %w", err)
		}
	}

	return nil
}
