package registry

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/nkapur/unipipe/internal/domain"
	"github.com/nkapur/unipipe/internal/repository"
)

// FileRepository is the local-durable registry log used when no primary
// backend is available: one JSON entry per line, per tenant, append-only.
type FileRepository struct {
	dataDir string
	mu      sync.Mutex
}

const registryFileName = "registry.jsonl"

// NewFileRepository creates a file-backed log rooted at dataDir.
func NewFileRepository(dataDir string) repository.CategoryRegistryRepository {
	return &FileRepository{dataDir: dataDir}
}

func (r *FileRepository) path(tenantID uuid.UUID) string {
	return filepath.Join(r.dataDir, tenantID.String(), registryFileName)
}

func (r *FileRepository) Append(_ context.Context, entries []domain.CategoryRegistryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Entries in one batch share a tenant; the pipeline appends per tenant.
	tenantID := entries[0].TenantID
	path := r.path(tenantID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open registry log: %w", err)
	}
	defer func() { _ = file.Close() }()

	encoder := json.NewEncoder(file)
	for _, entry := range entries {
		if entry.TenantID != tenantID {
			return fmt.Errorf("mixed tenants in registry append batch")
		}
		if err := encoder.Encode(entry); err != nil {
			return fmt.Errorf("failed to append registry entry: %w", err)
		}
	}

	return file.Sync()
}

func (r *FileRepository) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]domain.CategoryRegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.Open(r.path(tenantID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.CategoryRegistryEntry{}, nil
		}
		return nil, fmt.Errorf("failed to open registry log: %w", err)
	}
	defer func() { _ = file.Close() }()

	var entries []domain.CategoryRegistryEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry domain.CategoryRegistryEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			// A torn final line from a crash mid-write is skipped, not fatal.
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read registry log: %w", err)
	}

	return entries, nil
}

// MemoryRepository is an in-process registry log for tests.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []domain.CategoryRegistryEntry
}

// NewMemoryRepository creates an empty in-memory log.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Append(_ context.Context, entries []domain.CategoryRegistryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *MemoryRepository) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]domain.CategoryRegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CategoryRegistryEntry
	for _, entry := range r.entries {
		if entry.TenantID == tenantID {
			out = append(out, entry)
		}
	}
	return out, nil
}
