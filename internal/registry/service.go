// Package registry maintains the per-tenant log of known entity names. Stream
// data auto-provisions ghost entries for unseen names; state data promotes or
// adds official entries. State is log-structured: the latest entry per
// case-folded name wins, and entries are never mutated in place.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nkapur/unipipe/internal/domain"
	"github.com/nkapur/unipipe/internal/repository"
)

// StateReport summarizes a state-data pass.
type StateReport struct {
	Promoted int `json:"promoted"`
	Added    int `json:"added"`
}

// Service folds the registry log and appends new entries under a per-tenant
// lock, so two concurrent files cannot both "discover" the same new entity.
type Service struct {
	repo   repository.CategoryRegistryRepository
	logger *zap.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewService wires the registry around any append-only log repository.
func NewService(repo repository.CategoryRegistryRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		logger: logger.Named("registry"),
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Service) tenantLock(tenantID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[tenantID] = lock
	}
	return lock
}

// Snapshot returns the current view: latest entry per case-folded name.
func (s *Service) Snapshot(ctx context.Context, tenantID uuid.UUID) (map[string]domain.CategoryRegistryEntry, error) {
	entries, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry snapshot: %w", err)
	}
	current := make(map[string]domain.CategoryRegistryEntry, len(entries))
	for _, entry := range entries {
		current[domain.CanonicalName(entry.Name)] = entry
	}
	return current, nil
}

// HandleStream creates exactly one provisional entry per distinct entity name
// referenced by the events but absent from the registry. Returns the number of
// ghost entries created.
func (s *Service) HandleStream(ctx context.Context, events []*domain.UniversalEvent, tenantID uuid.UUID) (int, error) {
	lock := s.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Snapshot(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	var created []domain.CategoryRegistryEntry
	seenInBatch := make(map[string]bool)

	for _, event := range events {
		if event.EntityName == nil {
			continue
		}
		name := *event.EntityName
		key := domain.CanonicalName(name)
		if key == "" || seenInBatch[key] {
			continue
		}
		if _, known := current[key]; known {
			continue
		}
		seenInBatch[key] = true
		created = append(created, domain.NewProvisionalEntry(tenantID, name))
	}

	if len(created) == 0 {
		return 0, nil
	}

	if err := s.repo.Append(ctx, created); err != nil {
		return 0, fmt.Errorf("failed to append ghost entries: %w", err)
	}

	s.logger.Info("provisioned ghost entries",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("count", len(created)))

	return len(created), nil
}

// HandleState upserts authoritative reference data: unseen names become
// official entries, provisional names are promoted to official with their
// original created_at preserved.
func (s *Service) HandleState(ctx context.Context, events []*domain.UniversalEvent, tenantID uuid.UUID) (StateReport, error) {
	lock := s.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	var report StateReport

	current, err := s.Snapshot(ctx, tenantID)
	if err != nil {
		return report, err
	}

	var appended []domain.CategoryRegistryEntry
	seenInBatch := make(map[string]bool)

	for _, event := range events {
		if event.EntityName == nil {
			continue
		}
		name := *event.EntityName
		key := domain.CanonicalName(name)
		if key == "" || seenInBatch[key] {
			continue
		}
		seenInBatch[key] = true

		existing, known := current[key]
		switch {
		case !known:
			appended = append(appended, domain.NewOfficialEntry(tenantID, name, event.Timestamp))
			report.Added++
		case existing.IsProvisional:
			appended = append(appended, domain.NewOfficialEntry(tenantID, existing.Name, existing.CreatedAt))
			report.Promoted++
		default:
			// Already official; nothing to record.
		}
	}

	if len(appended) == 0 {
		return report, nil
	}

	if err := s.repo.Append(ctx, appended); err != nil {
		return StateReport{}, fmt.Errorf("failed to append state entries: %w", err)
	}

	s.logger.Info("applied state upserts",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("added", report.Added),
		zap.Int("promoted", report.Promoted))

	return report, nil
}
