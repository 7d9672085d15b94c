// Package ingestion orchestrates the universal pipeline: raw grid → header
// detection → schema mapping → classification → ghost provisioning → routing →
// durable storage. A file either completes with a summary or fails with a
// human-readable reason; rejected rows are detail, not failure.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nkapur/unipipe/internal/classify"
	"github.com/nkapur/unipipe/internal/domain"
	"github.com/nkapur/unipipe/internal/ledger"
	"github.com/nkapur/unipipe/internal/mapping"
	"github.com/nkapur/unipipe/internal/registry"
	"github.com/nkapur/unipipe/internal/repository"
	"github.com/nkapur/unipipe/internal/routing"
	"github.com/nkapur/unipipe/internal/structure"
)

// Service runs the pipeline for one uploaded file at a time. Files are
// independent: cancelling one upload's context does not affect others.
type Service struct {
	detector   *structure.Detector
	mapper     *mapping.Mapper
	classifier *classify.Classifier
	registry   *registry.Service
	store      *ledger.Store
	runLog     repository.IngestionRunRepository
	judge      structure.HeaderJudge
	threshold  float64
	logger     *zap.Logger
}

// NewService wires the pipeline stages together. runLog and judge may be nil.
func NewService(
	detector *structure.Detector,
	mapper *mapping.Mapper,
	classifier *classify.Classifier,
	registrySvc *registry.Service,
	store *ledger.Store,
	runLog repository.IngestionRunRepository,
	judge structure.HeaderJudge,
	threshold float64,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = routing.DefaultConfidenceThreshold
	}
	return &Service{
		detector:   detector,
		mapper:     mapper,
		classifier: classifier,
		registry:   registrySvc,
		store:      store,
		runLog:     runLog,
		judge:      judge,
		threshold:  threshold,
		logger:     logger.Named("ingestion"),
	}
}

// Request describes one uploaded file.
type Request struct {
	TenantID     uuid.UUID
	SourceSystem string
	FileName     string
	DataKind     domain.DataKind
	Data         io.Reader
}

// Process runs the full pipeline for one file.
func (s *Service) Process(ctx context.Context, req Request) (domain.IngestionSummary, error) {
	summary := domain.IngestionSummary{FailedRows: []domain.FailedRow{}}

	if req.TenantID == uuid.Nil {
		return summary, s.fail(ctx, req, summary, errors.New("tenant id is required"))
	}
	if strings.TrimSpace(req.SourceSystem) == "" {
		return summary, s.fail(ctx, req, summary, errors.New("source system is required"))
	}
	if req.Data == nil {
		return summary, s.fail(ctx, req, summary, errors.New("data reader is required"))
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return summary, s.fail(ctx, req, summary, fmt.Errorf("failed to read upload: %w", err))
	}
	if len(payload) == 0 {
		return summary, s.fail(ctx, req, summary, errors.New("file is empty"))
	}

	grid, err := ParseGrid(req.FileName, payload)
	if err != nil {
		return summary, s.fail(ctx, req, summary, err)
	}
	if len(grid) == 0 {
		return summary, s.fail(ctx, req, summary, errors.New("no rows found in file"))
	}

	// Header detection never fails a file; the worst case is row 0.
	headerIndex := s.detector.FindHeaderRow(ctx, grid, s.judge)
	summary.HeaderRowIndex = headerIndex

	headers := grid[headerIndex]
	dataRows := make([][]string, 0, len(grid)-headerIndex-1)
	for _, row := range grid[headerIndex+1:] {
		dataRows = append(dataRows, padRow(row, len(headers)))
	}
	summary.RowsProcessed = len(dataRows)

	mapped := s.mapper.Map(headers, dataRows, req.TenantID, req.SourceSystem)
	summary.EventsMapped = len(mapped.ValidEvents)
	summary.Duplicates = mapped.Duplicates
	summary.FailedRows = mapped.FailedRows
	summary.Fingerprint = mapped.Fingerprint

	events := s.classifier.ClassifyAll(ctx, mapped.ValidEvents)

	trusted, quarantined := routing.Route(events, s.threshold)
	summary.TrustedCount = len(trusted)
	summary.QuarantinedCount = len(quarantined)

	switch req.DataKind {
	case domain.DataKindState:
		report, regErr := s.registry.HandleState(ctx, events, req.TenantID)
		if regErr != nil {
			s.logger.Warn("state upsert failed", zap.Error(regErr))
		}
		summary.GhostItems = report.Promoted
	default:
		ghosts, regErr := s.registry.HandleStream(ctx, trusted, req.TenantID)
		if regErr != nil {
			s.logger.Warn("ghost provisioning failed", zap.Error(regErr))
		}
		summary.GhostItems = ghosts
	}

	report, err := s.store.WriteBatch(ctx, trusted, quarantined, req.TenantID)
	summary.TrustedCount = report.TrustedCount
	summary.QuarantinedCount = report.QuarantinedCount
	summary.StorageMode = string(s.store.Mode())
	if err != nil {
		return summary, s.fail(ctx, req, summary, fmt.Errorf("storage failed: %w", err))
	}

	s.recordRun(ctx, req, summary, "completed", "")

	s.logger.Info("file processed",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("file", req.FileName),
		zap.Int("rows", summary.RowsProcessed),
		zap.Int("mapped", summary.EventsMapped),
		zap.Int("trusted", summary.TrustedCount),
		zap.Int("quarantined", summary.QuarantinedCount),
		zap.Int("ghosts", summary.GhostItems),
		zap.Int("duplicates", summary.Duplicates))

	return summary, nil
}

// Review re-submits a human-corrected event: it is marked verified, routed
// (verified events are always trusted), persisted, and fed back into the
// classifier cache.
func (s *Service) Review(ctx context.Context, event *domain.UniversalEvent, reviewedBy string) (domain.IngestionSummary, error) {
	summary := domain.IngestionSummary{FailedRows: []domain.FailedRow{}}

	if event == nil {
		return summary, errors.New("event is required")
	}
	if strings.TrimSpace(reviewedBy) == "" {
		return summary, errors.New("reviewer is required")
	}

	event.MarkVerified(reviewedBy, nowUTC())

	trusted, quarantined := routing.Route([]*domain.UniversalEvent{event}, s.threshold)
	report, err := s.store.WriteBatch(ctx, trusted, quarantined, event.TenantID)
	if err != nil {
		return summary, fmt.Errorf("failed to persist reviewed event: %w", err)
	}

	s.classifier.Learn(event)

	summary.EventsMapped = 1
	summary.TrustedCount = report.TrustedCount
	summary.QuarantinedCount = report.QuarantinedCount
	summary.StorageMode = string(s.store.Mode())
	return summary, nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// fail records the run as failed and returns the original error.
func (s *Service) fail(ctx context.Context, req Request, summary domain.IngestionSummary, err error) error {
	s.recordRun(ctx, req, summary, "failed", err.Error())
	return err
}

func (s *Service) recordRun(ctx context.Context, req Request, summary domain.IngestionSummary, status, errorMessage string) {
	run := domain.IngestionRun{
		ID:           uuid.New(),
		TenantID:     req.TenantID,
		SourceSystem: req.SourceSystem,
		FileName:     req.FileName,
		Status:       status,
		Summary:      summary,
		ErrorMessage: errorMessage,
		CreatedAt:    nowUTC(),
	}
	if s.runLog == nil {
		return
	}
	if err := s.runLog.Record(ctx, run); err != nil {
		s.logger.Warn("failed to record ingestion run", zap.Error(err))
	}
}
