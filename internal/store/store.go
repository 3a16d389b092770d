package store

import (
	"context"
	"time"

	"github.com/sells-group/invoice-triage/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	DocID        string          `json:"doc_id,omitempty"`
	Outcome      model.Outcome   `json:"outcome,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the triage pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, docID, source string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunDoc(ctx context.Context, runID, docID string) error
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Decisions
	SaveDecision(ctx context.Context, res *model.ProcessResult) error
	GetDecision(ctx context.Context, runID string) (*model.ProcessResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
