package repository

import (
	"context"

	"github.com/sakif/analysis-engine/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// AnalysisRepository persists analysis session records. Implementations must
// be safe for concurrent use; sessions running in parallel share one
// repository instance.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *model.Analysis) error
	GetByID(ctx context.Context, id string) (*model.Analysis, error)
	List(ctx context.Context, opts ListOptions) ([]model.Analysis, error)
	// Complete records the terminal state of a session: the report and chart
	// paths for succeeded sessions, the error message for failed ones.
	Complete(ctx context.Context, analysis *model.Analysis) error
}
