// Package repository provides the pgx-backed persistence layer. Consumers
// depend on these interfaces so tests can substitute stubs.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkapur/unipipe/internal/domain"
)

// LedgerRepository writes event partitions to the primary durable backend.
type LedgerRepository interface {
	InsertTrusted(ctx context.Context, events []*domain.UniversalEvent) error
	InsertQuarantined(ctx context.Context, records []domain.QuarantineRecord) error
}

// CategoryRegistryRepository is the append-only per-tenant registry log.
type CategoryRegistryRepository interface {
	Append(ctx context.Context, entries []domain.CategoryRegistryEntry) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.CategoryRegistryEntry, error)
}

// IngestionRunRepository records one durable row per processed file.
type IngestionRunRepository interface {
	Record(ctx context.Context, run domain.IngestionRun) error
}
