// Package badger is the development/test Job Store backend: an embedded
// BadgerDB keyed by job_id, indexed via badgerhold. It is grounded on the
// module's prior embedded-database storage layer, adapted here to hold
// one whole Job aggregate document per key rather than many small
// record types, matching C3's "single-document atomic writes" contract.
package badger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/meridian/internal/models"
	"github.com/ternarybob/meridian/internal/store"
)

// Config configures the embedded database.
type Config struct {
	Path           string
	ResetOnStartup bool
}

// Store is a badgerhold-backed store.Store implementation.
type Store struct {
	db     *badgerhold.Store
	logger arbor.ILogger
}

// New opens (creating if necessary) the embedded database at cfg.Path.
func New(logger arbor.ILogger, cfg Config) (*Store, error) {
	if cfg.ResetOnStartup {
		if _, err := os.Stat(cfg.Path); err == nil {
			if err := os.RemoveAll(cfg.Path); err != nil {
				logger.Warn().Err(err).Str("path", cfg.Path).Msg("failed to reset badger store directory")
			}
		}
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("create badger parent dir: %w", err)
	}

	opts := badgerhold.DefaultOptions
	opts.Dir = cfg.Path
	opts.ValueDir = cfg.Path
	opts.Logger = nil

	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, job *models.Job) error {
	if job.JobID == "" {
		return fmt.Errorf("%w: job_id is required", models.ErrValidation)
	}
	var existing models.Job
	if err := s.db.Get(job.JobID, &existing); err == nil {
		return fmt.Errorf("%w: %s", models.ErrDuplicateJob, job.JobID)
	} else if err != badgerhold.ErrNotFound {
		return fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	if err := s.db.Insert(job.JobID, job); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: job %s", models.ErrNotFound, jobID)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	return &job, nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status models.Status) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	if err := s.db.Update(jobID, job); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	return nil
}

// UpdateStep performs a read-modify-write of the whole job document,
// mutating only the targeted step in place — badgerhold has no native
// positional array update, so the per-step atomicity guarantee instead
// comes from Badger's single-key transaction wrapping the whole document.
func (s *Store) UpdateStep(ctx context.Context, jobID, stepID string, update store.StepUpdate) error {
	txn := s.db.Badger().NewTransaction(true)
	defer txn.Discard()
	var job models.Job
	if err := s.db.TxGet(txn, jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("%w: job %s", models.ErrNotFound, jobID)
		}
		return fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	step := job.FindStepByID(stepID)
	if step == nil {
		return fmt.Errorf("%w: step %s in job %s", models.ErrNotFound, stepID, jobID)
	}

	if update.Status != nil {
		step.Status = *update.Status
	}
	if update.Outputs != nil {
		step.Outputs = update.Outputs
	}
	if update.StartedAt != nil {
		step.StartedAt = update.StartedAt
	}
	if update.FinishedAt != nil {
		step.FinishedAt = update.FinishedAt
	}
	if update.ClearError {
		step.ErrorMessage = ""
	} else if update.ErrorMessage != nil {
		step.ErrorMessage = *update.ErrorMessage
	}
	if update.LogTail != nil {
		step.LogTail = nil
		step.AppendLogTail(update.LogTail...)
	}

	job.UpdatedAt = time.Now().UTC()
	if err := s.db.TxUpdate(txn, jobID, &job); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	return nil
}

func (s *Store) GetStepOutputs(ctx context.Context, jobID, stepID string) (map[string]string, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job.GetStepOutputs(stepID), nil
}

// Raw exposes the underlying *badger.DB for diagnostics / metrics wiring.
func (s *Store) Raw() *badger.DB {
	return s.db.Badger()
}
