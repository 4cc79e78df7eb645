package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/analysis-engine/internal/apperror"
	"github.com/sakif/analysis-engine/internal/model"
	"github.com/sakif/analysis-engine/internal/repository"
)

// Compile-time check that *DB satisfies the repository interface.
var _ repository.AnalysisRepository = (*DB)(nil)

// Create inserts a new analysis record. The ID and CreatedAt are set on the
// passed struct; xid gives us sortable, URL-safe identifiers that double as
// collision-free output name components across concurrent analyses.
func (db *DB) Create(ctx context.Context, analysis *model.Analysis) error {
	analysis.ID = xid.New().String()
	analysis.CreatedAt = time.Now().UTC()
	if analysis.Status == "" {
		analysis.Status = model.StatusRunning
	}

	charts, err := json.Marshal(chartsOrEmpty(analysis.Charts))
	if err != nil {
		return fmt.Errorf("marshaling charts: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO analyses (id, context, output_name, status, report, charts, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		analysis.ID,
		analysis.Context,
		analysis.OutputName,
		string(analysis.Status),
		analysis.Report,
		string(charts),
		analysis.Error,
		analysis.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting analysis: %w", err)
	}
	return nil
}

// GetByID fetches a single analysis record.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Analysis, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, context, output_name, status, report, charts, error, created_at, completed_at
		FROM analyses WHERE id = ?`, id)

	analysis, err := scanAnalysis(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("analysis", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying analysis %s: %w", id, err)
	}
	return analysis, nil
}

// List returns analysis records, newest first.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Analysis, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, context, output_name, status, report, charts, error, created_at, completed_at
		FROM analyses ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	defer rows.Close()

	analyses := []model.Analysis{}
	for rows.Next() {
		analysis, err := scanAnalysis(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning analysis row: %w", err)
		}
		analyses = append(analyses, *analysis)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating analyses: %w", err)
	}
	return analyses, nil
}

// Complete records the terminal state of a session.
func (db *DB) Complete(ctx context.Context, analysis *model.Analysis) error {
	analysis.CompletedAt = time.Now().UTC()

	charts, err := json.Marshal(chartsOrEmpty(analysis.Charts))
	if err != nil {
		return fmt.Errorf("marshaling charts: %w", err)
	}

	res, err := db.conn.ExecContext(ctx, `
		UPDATE analyses SET status = ?, report = ?, charts = ?, error = ?, completed_at = ?
		WHERE id = ?`,
		string(analysis.Status),
		analysis.Report,
		string(charts),
		analysis.Error,
		analysis.CompletedAt,
		analysis.ID,
	)
	if err != nil {
		return fmt.Errorf("completing analysis %s: %w", analysis.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking completion of analysis %s: %w", analysis.ID, err)
	}
	if affected == 0 {
		return apperror.NotFound("analysis", analysis.ID)
	}
	return nil
}

// scanAnalysis reads one row regardless of whether it came from QueryRow or
// Rows; both expose the same Scan signature.
func scanAnalysis(scan func(dest ...any) error) (*model.Analysis, error) {
	var (
		analysis    model.Analysis
		status      string
		charts      string
		completedAt sql.NullTime
	)
	err := scan(
		&analysis.ID,
		&analysis.Context,
		&analysis.OutputName,
		&status,
		&analysis.Report,
		&charts,
		&analysis.Error,
		&analysis.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	analysis.Status = model.AnalysisStatus(status)
	if completedAt.Valid {
		analysis.CompletedAt = completedAt.Time
	}
	if err := json.Unmarshal([]byte(charts), &analysis.Charts); err != nil {
		return nil, fmt.Errorf("unmarshaling charts: %w", err)
	}
	return &analysis, nil
}

func chartsOrEmpty(charts []string) []string {
	if charts == nil {
		return []string{}
	}
	return charts
}
