package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/nkapur/unipipe/internal/domain"
)

type failingPrimary struct {
	trustedCalls     int
	quarantinedCalls int
}

func (f *failingPrimary) InsertTrusted(_ context.Context, _ []*domain.UniversalEvent) error {
	f.trustedCalls++
	return errors.New("connection refused")
}

func (f *failingPrimary) InsertQuarantined(_ context.Context, _ []domain.QuarantineRecord) error {
	f.quarantinedCalls++
	return errors.New("connection refused")
}

type workingPrimary struct {
	trusted     []*domain.UniversalEvent
	quarantined []domain.QuarantineRecord
}

func (p *workingPrimary) InsertTrusted(_ context.Context, events []*domain.UniversalEvent) error {
	p.trusted = append(p.trusted, events...)
	return nil
}

func (p *workingPrimary) InsertQuarantined(_ context.Context, records []domain.QuarantineRecord) error {
	p.quarantined = append(p.quarantined, records...)
	return nil
}

func makeEvents(tenantID uuid.UUID, n int, confidence float64) []*domain.UniversalEvent {
	events := make([]*domain.UniversalEvent, n)
	for i := range events {
		event := domain.NewUniversalEvent(tenantID, "test", "fp")
		event.Category = "MISC"
		event.ConfidenceScore = confidence
		events[i] = event
	}
	return events
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			count++
		}
	}
	return count
}

func TestStoreModeSelection(t *testing.T) {
	dir := t.TempDir()

	local := NewStore(nil, NewFileWriter(dir), 0.85, nil)
	if local.Mode() != ModeLocalFile {
		t.Fatalf("expected jsonl mode, got %s", local.Mode())
	}

	primary := NewStore(&workingPrimary{}, NewFileWriter(dir), 0.85, nil)
	if primary.Mode() != ModePostgres {
		t.Fatalf("expected postgres mode, got %s", primary.Mode())
	}
}

func TestWriteBatchPrimarySuccess(t *testing.T) {
	tenantID := uuid.New()
	primary := &workingPrimary{}
	store := NewStore(primary, NewFileWriter(t.TempDir()), 0.85, nil)

	report, err := store.WriteBatch(context.Background(), makeEvents(tenantID, 3, 0.9), makeEvents(tenantID, 2, 0.1), tenantID)
	if err != nil {
		t.Fatalf("write batch failed: %v", err)
	}
	if report.TrustedCount != 3 || report.QuarantinedCount != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(primary.trusted) != 3 || len(primary.quarantined) != 2 {
		t.Fatalf("primary holds trusted=%d quarantined=%d", len(primary.trusted), len(primary.quarantined))
	}
	for _, record := range primary.quarantined {
		if record.Status != domain.StatusPendingReview {
			t.Fatalf("expected pending_review status, got %s", record.Status)
		}
		if record.QuarantineReason == "" {
			t.Fatal("expected a quarantine reason")
		}
	}
}

func TestWriteBatchFallsBackWithFullPartitions(t *testing.T) {
	tenantID := uuid.New()
	dir := t.TempDir()
	primary := &failingPrimary{}
	store := NewStore(primary, NewFileWriter(dir), 0.85, nil)

	trusted := makeEvents(tenantID, 5, 0.9)
	quarantined := makeEvents(tenantID, 3, 0.1)

	report, err := store.WriteBatch(context.Background(), trusted, quarantined, tenantID)
	if err != nil {
		t.Fatalf("expected fallback to absorb the failure, got %v", err)
	}
	if report.TrustedCount != 5 || report.QuarantinedCount != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}

	// The fallback must hold every record of each partition, never a subset.
	ledgerPath := filepath.Join(dir, tenantID.String(), ledgerFileName)
	quarantinePath := filepath.Join(dir, tenantID.String(), quarantineFileName)
	if got := countLines(t, ledgerPath); got != 5 {
		t.Fatalf("expected 5 ledger records in fallback, got %d", got)
	}
	if got := countLines(t, quarantinePath); got != 3 {
		t.Fatalf("expected 3 quarantine records in fallback, got %d", got)
	}
}

func TestWriteBatchLocalModeAppends(t *testing.T) {
	tenantID := uuid.New()
	dir := t.TempDir()
	store := NewStore(nil, NewFileWriter(dir), 0.85, nil)

	for i := 0; i < 2; i++ {
		if _, err := store.WriteBatch(context.Background(), makeEvents(tenantID, 2, 0.9), nil, tenantID); err != nil {
			t.Fatalf("write batch failed: %v", err)
		}
	}

	ledgerPath := filepath.Join(dir, tenantID.String(), ledgerFileName)
	if got := countLines(t, ledgerPath); got != 4 {
		t.Fatalf("expected 4 appended records, got %d", got)
	}

	// Every line must be an independently parseable record.
	file, err := os.Open(ledgerPath)
	if err != nil {
		t.Fatalf("failed to open ledger file: %v", err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event domain.UniversalEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("unparseable ledger line: %v", err)
		}
		if event.TenantID != tenantID {
			t.Fatalf("unexpected tenant on ledger line: %s", event.TenantID)
		}
	}
}

func TestWriteBatchQuarantineIndependentOfTrustedFailure(t *testing.T) {
	// Only the trusted partition fails in the primary; quarantine still
	// lands there while trusted is rewritten to the fallback.
	tenantID := uuid.New()
	dir := t.TempDir()
	primary := &trustedOnlyFailingPrimary{}
	store := NewStore(primary, NewFileWriter(dir), 0.85, nil)

	report, err := store.WriteBatch(context.Background(), makeEvents(tenantID, 2, 0.9), makeEvents(tenantID, 1, 0.1), tenantID)
	if err != nil {
		t.Fatalf("write batch failed: %v", err)
	}
	if report.TrustedCount != 2 || report.QuarantinedCount != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(primary.quarantined) != 1 {
		t.Fatalf("expected quarantine partition in primary, got %d", len(primary.quarantined))
	}
	if got := countLines(t, filepath.Join(dir, tenantID.String(), ledgerFileName)); got != 2 {
		t.Fatalf("expected 2 trusted records in fallback, got %d", got)
	}
}

type trustedOnlyFailingPrimary struct {
	quarantined []domain.QuarantineRecord
}

func (p *trustedOnlyFailingPrimary) InsertTrusted(_ context.Context, _ []*domain.UniversalEvent) error {
	return errors.New("partial insert error")
}

func (p *trustedOnlyFailingPrimary) InsertQuarantined(_ context.Context, records []domain.QuarantineRecord) error {
	p.quarantined = append(p.quarantined, records...)
	return nil
}
