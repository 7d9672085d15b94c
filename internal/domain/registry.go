package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DataKind classifies a tenant upload as transactional facts or reference data.
type DataKind string

const (
	// DataKindStream is continuously arriving transactional data.
	DataKindStream DataKind = "STREAM"
	// DataKindState is slowly changing reference / master data.
	DataKindState DataKind = "STATE"
)

// Registry entry sources.
const (
	RegistrySourceGhostLogic  = "ghost_logic"
	RegistrySourceStateUpsert = "state_upsert"
)

// CategoryRegistryEntry is one record in the append-only per-tenant registry
// log. The current state of a name is the latest entry carrying that name;
// entries are never updated in place, so audit history survives promotions.
type CategoryRegistryEntry struct {
	CategoryID    uuid.UUID `json:"category_id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	Name          string    `json:"name"`
	IsProvisional bool      `json:"is_provisional"`
	IsOfficial    bool      `json:"is_official"`
	IsActive      bool      `json:"is_active"`
	Source        string    `json:"source"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewProvisionalEntry creates a ghost entry for a name first seen in stream
// data.
func NewProvisionalEntry(tenantID uuid.UUID, name string) CategoryRegistryEntry {
	now := time.Now().UTC()
	return CategoryRegistryEntry{
		CategoryID:    uuid.New(),
		TenantID:      tenantID,
		Name:          name,
		IsProvisional: true,
		IsOfficial:    false,
		IsActive:      true,
		Source:        RegistrySourceGhostLogic,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewOfficialEntry creates an authoritative entry from state data. When
// promoting an existing provisional entry, firstSeen carries the original
// created_at so the record of first appearance is never lost.
func NewOfficialEntry(tenantID uuid.UUID, name string, firstSeen time.Time) CategoryRegistryEntry {
	now := time.Now().UTC()
	if firstSeen.IsZero() {
		firstSeen = now
	}
	return CategoryRegistryEntry{
		CategoryID:    uuid.New(),
		TenantID:      tenantID,
		Name:          name,
		IsProvisional: false,
		IsOfficial:    true,
		IsActive:      true,
		Source:        RegistrySourceStateUpsert,
		CreatedAt:     firstSeen,
		UpdatedAt:     now,
	}
}

// CanonicalName folds a registry name for case-insensitive comparison.
func CanonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
