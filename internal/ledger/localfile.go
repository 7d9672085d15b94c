package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// FileWriter is the local-durable backend: one JSON record per line, opened
// with O_APPEND so a crash mid-write loses at most the in-flight record.
type FileWriter struct {
	dataDir string
	mu      sync.Mutex
}

// File names under <dataDir>/<tenant>/.
const (
	ledgerFileName     = "ledger.jsonl"
	quarantineFileName = "quarantine.jsonl"
)

// NewFileWriter creates the writer rooted at dataDir.
func NewFileWriter(dataDir string) *FileWriter {
	return &FileWriter{dataDir: dataDir}
}

// AppendAll writes every record to the named partition file for the tenant.
func (w *FileWriter) AppendAll(tenantID uuid.UUID, fileName string, records []any) error {
	if len(records) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Join(w.dataDir, tenantID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	path := filepath.Join(dir, fileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	encoder := json.NewEncoder(file)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("failed to append record to %s: %w", path, err)
		}
	}

	return file.Sync()
}
