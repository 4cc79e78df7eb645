// Package service contains the business logic layer: request validation,
// input path policy, session persistence, and the hand-off to the
// orchestrator. Handlers stay HTTP-only; the orchestrator stays
// storage-free; this layer connects them.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/analysis-engine/internal/analysis"
	"github.com/sakif/analysis-engine/internal/apperror"
	"github.com/sakif/analysis-engine/internal/metadata"
	"github.com/sakif/analysis-engine/internal/model"
	"github.com/sakif/analysis-engine/internal/repository"
)

// Validation constants.
const (
	MaxContextLength = 2000
	MaxContentLength = 100000 // ~100KB of result content
	MaxInputFiles    = 10
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Analyzer runs one interactive analysis session to completion. Satisfied
// by *analysis.Orchestrator; mocked in tests.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Report, error)
}

// AnalysisRequest is what callers submit. Content is optional free-form
// result text that gets profiled alongside the files; InputFiles are host
// paths which must live under the configured data root.
type AnalysisRequest struct {
	Context    string   `json:"context"`
	Content    string   `json:"content,omitempty"`
	InputFiles []string `json:"inputFiles,omitempty"`
}

// AnalysisService validates requests, runs sessions, and persists records.
type AnalysisService struct {
	repo     repository.AnalysisRepository
	analyzer Analyzer
	dataDir  string
	logger   *slog.Logger
}

// NewAnalysisService creates the service. analyzer may be nil when no
// execution backend is configured; every Analyze call then fails with
// ErrBackendUnavailable without touching storage.
func NewAnalysisService(repo repository.AnalysisRepository, analyzer Analyzer, dataDir string, logger *slog.Logger) *AnalysisService {
	return &AnalysisService{
		repo:     repo,
		analyzer: analyzer,
		dataDir:  dataDir,
		logger:   logger,
	}
}

// Analyze validates and runs one interactive analysis, persisting the
// session record before the run and its terminal state after.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalysisRequest) (*model.Analysis, error) {
	contextDesc := strings.TrimSpace(req.Context)
	if contextDesc == "" {
		return nil, apperror.ValidationFailed("context", "context description is required")
	}
	if len(contextDesc) > MaxContextLength {
		return nil, apperror.ValidationFailed("context",
			fmt.Sprintf("context description must be %d characters or less", MaxContextLength))
	}
	if len(req.Content) > MaxContentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxContentLength))
	}
	if len(req.InputFiles) > MaxInputFiles {
		return nil, apperror.ValidationFailed("inputFiles",
			fmt.Sprintf("at most %d input files per analysis", MaxInputFiles))
	}
	for _, path := range req.InputFiles {
		if !pathWithin(s.dataDir, path) {
			return nil, apperror.ValidationFailed("inputFiles",
				fmt.Sprintf("input file %s is outside the data directory", path))
		}
	}

	if s.analyzer == nil {
		return nil, apperror.BackendUnavailable("no sandbox execution backend is configured")
	}

	record := &model.Analysis{
		Context:    contextDesc,
		OutputName: "analysis_" + xid.New().String(),
		Status:     model.StatusRunning,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Error("failed to create analysis record",
			slog.String("context", contextDesc),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating analysis: %w", err)
	}

	// The planner sees only compact metadata, never file contents.
	datasetContext := strings.TrimSpace(req.Content)
	if blocks := metadata.ContextBlocks(req.InputFiles); blocks != "" {
		if datasetContext != "" {
			datasetContext += "\n\n"
		}
		datasetContext += blocks
	}

	s.logger.Info("analysis session starting",
		slog.String("id", record.ID),
		slog.Int("inputFiles", len(req.InputFiles)),
	)

	report, err := s.analyzer.Analyze(ctx, analysis.Request{
		Context:    contextDesc,
		Metadata:   datasetContext,
		InputFiles: req.InputFiles,
		OutputName: record.OutputName,
	})
	if err != nil {
		record.Status = model.StatusFailed
		record.Error = err.Error()
		s.completeRecord(record)
		s.logger.Warn("analysis session failed",
			slog.String("id", record.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("analysis %s: %w", record.ID, err)
	}

	record.Status = model.StatusSucceeded
	record.Report = report.Markdown()
	record.Charts = report.Charts
	s.completeRecord(record)

	s.logger.Info("analysis session succeeded",
		slog.String("id", record.ID),
		slog.Int("charts", len(record.Charts)),
	)
	return record, nil
}

// completeRecord persists the terminal state on a fresh context so the
// outcome is recorded even when the caller's context is already canceled.
func (s *AnalysisService) completeRecord(record *model.Analysis) {
	if err := s.repo.Complete(context.Background(), record); err != nil {
		s.logger.Error("failed to persist analysis outcome",
			slog.String("id", record.ID),
			slog.String("error", err.Error()),
		)
	}
}

// GetByID fetches one analysis record.
func (s *AnalysisService) GetByID(ctx context.Context, id string) (*model.Analysis, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.ValidationFailed("id", "analysis id is required")
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting analysis: %w", err)
	}
	return record, nil
}

// List returns analysis records, newest first.
func (s *AnalysisService) List(ctx context.Context, limit, offset int) ([]model.Analysis, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	records, err := s.repo.List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	return records, nil
}

// pathWithin reports whether path resolves inside root. Traversal is
// rejected up front, never discovered via a failed filesystem operation.
func pathWithin(root, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
