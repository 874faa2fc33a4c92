// Package store defines the Job Store contract (C3): persistence of Job
// documents with atomic, per-step positional updates. Two concrete
// backends satisfy it — store/mongo for production, store/badger for
// development and tests — selected by configuration.
package store

import (
	"context"
	"time"

	"github.com/ternarybob/meridian/internal/models"
)

// StepUpdate carries the fields handle_status / Dispatch may mutate on a
// single step. A nil pointer means "leave unchanged"; Outputs == nil
// means "leave unchanged" (the caller must pass an empty, non-nil map to
// clear outputs, which nothing in this design ever does).
type StepUpdate struct {
	Status       *models.Status
	Outputs      map[string]string
	StartedAt    *time.Time
	FinishedAt   *time.Time
	ErrorMessage *string
	ClearError   bool
	LogTail      []string
}

// Store is the Job Store contract (C3).
type Store interface {
	// Create inserts a new job. Returns a wrapped models.ErrDuplicateJob
	// if job.JobID already exists.
	Create(ctx context.Context, job *models.Job) error

	// Get returns the full job, or a wrapped models.ErrNotFound.
	Get(ctx context.Context, jobID string) (*models.Job, error)

	// UpdateJobStatus is last-writer-wins; updated_at is refreshed.
	UpdateJobStatus(ctx context.Context, jobID string, status models.Status) error

	// UpdateStep applies a positional subdocument update to exactly one
	// step of one job.
	UpdateStep(ctx context.Context, jobID, stepID string, update StepUpdate) error

	// GetStepOutputs returns a step's outputs map, empty if none.
	GetStepOutputs(ctx context.Context, jobID, stepID string) (map[string]string, error)

	Close() error
}
