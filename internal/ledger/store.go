// Package ledger persists routed event partitions. The store prefers the
// primary Postgres backend when one was discoverable at startup and falls back
// to append-only local files; any primary failure rewrites the whole affected
// partition to the fallback so nothing is partially lost.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nkapur/unipipe/internal/domain"
	"github.com/nkapur/unipipe/internal/repository"
	"github.com/nkapur/unipipe/internal/routing"
)

// Mode names the storage backend selected at construction.
type Mode string

const (
	// ModePostgres writes partitions to the primary database.
	ModePostgres Mode = "postgres"
	// ModeLocalFile writes partitions to newline-delimited local files.
	ModeLocalFile Mode = "jsonl"
)

// WriteReport summarizes one batch write.
type WriteReport struct {
	TrustedCount     int      `json:"trusted_count"`
	QuarantinedCount int      `json:"quarantined_count"`
	Details          []string `json:"details"`
}

// Store is the dual-mode durable sink for trusted and quarantined partitions.
type Store struct {
	primary   repository.LedgerRepository
	fallback  *FileWriter
	mode      Mode
	threshold float64
	timeout   time.Duration
	logger    *zap.Logger
}

// NewStore selects the mode once: primary when a ledger repository is
// supplied, local files otherwise. The choice is inspectable via Mode and is
// never re-evaluated per call.
func NewStore(primary repository.LedgerRepository, fallback *FileWriter, threshold float64, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = routing.DefaultConfidenceThreshold
	}
	mode := ModeLocalFile
	if primary != nil {
		mode = ModePostgres
	}
	return &Store{
		primary:   primary,
		fallback:  fallback,
		mode:      mode,
		threshold: threshold,
		timeout:   30 * time.Second,
		logger:    logger.Named("ledger"),
	}
}

// Mode reports the backend selected at construction.
func (s *Store) Mode() Mode {
	return s.mode
}

// WriteBatch persists both partitions. The partitions are independent
// destinations and are written concurrently; a failure in one never blocks
// the other. The returned error is non-nil only when a partition failed in
// both the primary and the fallback path, which is a data-loss risk surfaced
// to the caller's supervisor.
func (s *Store) WriteBatch(ctx context.Context, trusted, quarantined []*domain.UniversalEvent, tenantID uuid.UUID) (WriteReport, error) {
	report := WriteReport{Details: []string{}}

	var (
		wg             sync.WaitGroup
		mu             sync.Mutex
		trustedErr     error
		quarantinedErr error
	)

	addDetail := func(detail string) {
		mu.Lock()
		report.Details = append(report.Details, detail)
		mu.Unlock()
	}

	wg.Add(2)

	go func() {
		defer wg.Done()
		if len(trusted) == 0 {
			return
		}
		if err := s.writeTrusted(ctx, trusted, tenantID, addDetail); err != nil {
			trustedErr = err
		} else {
			mu.Lock()
			report.TrustedCount = len(trusted)
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if len(quarantined) == 0 {
			return
		}
		if err := s.writeQuarantined(ctx, quarantined, tenantID, addDetail); err != nil {
			quarantinedErr = err
		} else {
			mu.Lock()
			report.QuarantinedCount = len(quarantined)
			mu.Unlock()
		}
	}()

	wg.Wait()

	if trustedErr != nil || quarantinedErr != nil {
		s.logger.Error("batch write failed in primary and fallback paths",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("trusted", len(trusted)),
			zap.Int("quarantined", len(quarantined)),
			zap.NamedError("trusted_error", trustedErr),
			zap.NamedError("quarantined_error", quarantinedErr))
		if trustedErr != nil {
			return report, fmt.Errorf("trusted partition write failed: %w", trustedErr)
		}
		return report, fmt.Errorf("quarantine partition write failed: %w", quarantinedErr)
	}

	return report, nil
}

// writeTrusted tries the primary backend and, on any failure, rewrites the
// complete partition to the local fallback. Never a partial subset.
func (s *Store) writeTrusted(ctx context.Context, events []*domain.UniversalEvent, tenantID uuid.UUID, addDetail func(string)) error {
	if s.mode == ModePostgres {
		writeCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.primary.InsertTrusted(writeCtx, events)
		cancel()
		if err == nil {
			addDetail(fmt.Sprintf("trusted: %d events to postgres", len(events)))
			return nil
		}
		s.logger.Warn("primary write failed, falling back to local file",
			zap.String("partition", "trusted"),
			zap.Int("count", len(events)),
			zap.Error(err))
		addDetail(fmt.Sprintf("trusted: primary failed (%v), rewriting full partition to fallback", err))
	}

	records := make([]any, len(events))
	for i, event := range events {
		records[i] = event
	}
	if err := s.fallback.AppendAll(tenantID, ledgerFileName, records); err != nil {
		return err
	}
	addDetail(fmt.Sprintf("trusted: %d events to local file", len(events)))
	return nil
}

func (s *Store) writeQuarantined(ctx context.Context, events []*domain.UniversalEvent, tenantID uuid.UUID, addDetail func(string)) error {
	records := make([]domain.QuarantineRecord, len(events))
	for i, event := range events {
		records[i] = domain.QuarantineRecord{
			UniversalEvent:   *event,
			QuarantineReason: routing.QuarantineReason(event, s.threshold),
			Status:           domain.StatusPendingReview,
		}
	}

	if s.mode == ModePostgres {
		writeCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.primary.InsertQuarantined(writeCtx, records)
		cancel()
		if err == nil {
			addDetail(fmt.Sprintf("quarantine: %d events to postgres", len(records)))
			return nil
		}
		s.logger.Warn("primary write failed, falling back to local file",
			zap.String("partition", "quarantine"),
			zap.Int("count", len(records)),
			zap.Error(err))
		addDetail(fmt.Sprintf("quarantine: primary failed (%v), rewriting full partition to fallback", err))
	}

	raw := make([]any, len(records))
	for i := range records {
		raw[i] = records[i]
	}
	if err := s.fallback.AppendAll(tenantID, quarantineFileName, raw); err != nil {
		return err
	}
	addDetail(fmt.Sprintf("quarantine: %d events to local file", len(records)))
	return nil
}
