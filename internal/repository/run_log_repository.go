package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkapur/unipipe/internal/domain"
)

type ingestionRunRepository struct {
	pool *pgxpool.Pool
}

// NewIngestionRunRepository wires the per-file run log backed by pgxpool.
func NewIngestionRunRepository(pool *pgxpool.Pool) IngestionRunRepository {
	return &ingestionRunRepository{pool: pool}
}

func (r *ingestionRunRepository) Record(ctx context.Context, run domain.IngestionRun) error {
	if r.pool == nil {
		return fmt.Errorf("ingestion run repository not initialized")
	}

	failedRows, err := json.Marshal(run.Summary.FailedRows)
	if err != nil {
		return fmt.Errorf("failed to serialize failed rows: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO ingestion_runs
		 (id, tenant_id, source_system, file_name, status, rows_processed, events_mapped,
		  ghost_items, duplicates, trusted_count, quarantined_count, failed_rows, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		run.ID, run.TenantID, run.SourceSystem, run.FileName, run.Status,
		run.Summary.RowsProcessed, run.Summary.EventsMapped,
		run.Summary.GhostItems, run.Summary.Duplicates,
		run.Summary.TrustedCount, run.Summary.QuarantinedCount,
		failedRows, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to record ingestion run: %w", err)
	}

	return nil
}
