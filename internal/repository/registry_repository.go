package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkapur/unipipe/internal/domain"
)

type categoryRegistryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRegistryRepository wires the append-only registry log backed by
// pgxpool. Entries are never updated in place; reads fold the log in insert
// order.
func NewCategoryRegistryRepository(pool *pgxpool.Pool) CategoryRegistryRepository {
	return &categoryRegistryRepository{pool: pool}
}

func (r *categoryRegistryRepository) Append(ctx context.Context, entries []domain.CategoryRegistryEntry) error {
	if r.pool == nil {
		return fmt.Errorf("registry repository not initialized")
	}

	for _, entry := range entries {
		_, err := r.pool.Exec(
			ctx,
			`INSERT INTO category_registry
			 (category_id, tenant_id, name, is_provisional, is_official, is_active, source, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			entry.CategoryID, entry.TenantID, entry.Name,
			entry.IsProvisional, entry.IsOfficial, entry.IsActive,
			entry.Source, entry.CreatedAt, entry.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to append registry entry %q: %w", entry.Name, err)
		}
	}

	return nil
}

func (r *categoryRegistryRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.CategoryRegistryEntry, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("registry repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT category_id, tenant_id, name, is_provisional, is_official, is_active, source, created_at, updated_at
		 FROM category_registry
		 WHERE tenant_id = $1
		 ORDER BY id ASC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list registry entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.CategoryRegistryEntry{}
	for rows.Next() {
		var (
			entry     domain.CategoryRegistryEntry
			createdAt pgtype.Timestamptz
			updatedAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&entry.CategoryID,
			&entry.TenantID,
			&entry.Name,
			&entry.IsProvisional,
			&entry.IsOfficial,
			&entry.IsActive,
			&entry.Source,
			&createdAt,
			&updatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan registry entry: %w", scanErr)
		}
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			entry.UpdatedAt = updatedAt.Time
		}
		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate registry entries: %w", rowsErr)
	}

	return entries, nil
}
