// Package orchestrator is the dispatch core (C6): turning submitted job
// graphs into step dispatches, and worker status events back into the
// next wave of dispatches, entirely as a function of the persisted job
// document (C3) — no in-memory scheduling state survives a restart.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/meridian/internal/common"
	"github.com/ternarybob/meridian/internal/models"
	"github.com/ternarybob/meridian/internal/queue"
	"github.com/ternarybob/meridian/internal/storage"
	"github.com/ternarybob/meridian/internal/store"
	"github.com/ternarybob/meridian/internal/template"
)

// Orchestrator implements create_job, retry, Dispatch and handle_status
// against a Store, a Queue, and a Layout.
type Orchestrator struct {
	store  store.Store
	queue  queue.Queue
	layout *storage.Layout
	logger arbor.ILogger
}

// New wires an Orchestrator to its three collaborators.
func New(s store.Store, q queue.Queue, layout *storage.Layout, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{store: s, queue: q, layout: layout, logger: logger}
}

// CreateJob builds a Job from req, rejects cyclic transition graphs,
// persists it, pre-creates its storage layout, and dispatches every
// initial step.
func (o *Orchestrator) CreateJob(ctx context.Context, req JobRequest) (*models.Job, error) {
	if len(req.Steps) == 0 {
		return nil, fmt.Errorf("%w: steps must not be empty", models.ErrValidation)
	}

	now := time.Now().UTC()
	job := &models.Job{
		JobID:     common.NewJobID(),
		UserID:    req.UserID,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	nameToID := make(map[string]string, len(req.Steps))
	for _, sr := range req.Steps {
		if _, dup := nameToID[sr.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate step name %q", models.ErrValidation, sr.Name)
		}
		id := common.NewStepID()
		nameToID[sr.Name] = id
		job.Steps = append(job.Steps, &models.Step{
			StepID:      id,
			Name:        sr.Name,
			Order:       len(job.Steps),
			Service:     sr.Service,
			CommandSpec: sr.CommandSpec,
			Inputs:      sr.Inputs,
			Outputs:     sr.Outputs,
			Status:      models.StatusPending,
		})
	}

	for _, tr := range req.StepTransitions {
		fromID, ok := nameToID[tr.FromStepName]
		if !ok {
			return nil, fmt.Errorf("%w: unknown from_step_name %q", models.ErrValidation, tr.FromStepName)
		}
		toID, ok := nameToID[tr.ToStepName]
		if !ok {
			return nil, fmt.Errorf("%w: unknown to_step_name %q", models.ErrValidation, tr.ToStepName)
		}
		job.StepTransitions = append(job.StepTransitions, models.Transition{
			FromStepID:           fromID,
			ToStepID:             toID,
			OutputToInputMapping: tr.OutputToInputMapping,
		})
	}

	if hasCycle(job) {
		return nil, fmt.Errorf("%w: step_transitions form a cycle", models.ErrValidation)
	}

	if err := o.store.Create(ctx, job); err != nil {
		return nil, err
	}

	if o.layout != nil {
		for _, s := range job.Steps {
			outputPaths := make([]string, 0, len(s.Outputs))
			for _, v := range s.Outputs {
				// Declared outputs may carry template tokens; only the
				// resolved form names a real directory.
				resolved, err := template.Resolve(v, job, s)
				if err != nil {
					o.logger.Warn().Err(err).Str("job_id", job.JobID).Str("step_id", s.StepID).Msg("skipping unresolvable output path during layout pre-creation")
					continue
				}
				outputPaths = append(outputPaths, resolved)
			}
			o.layout.EnsureStepDir(job.UserID, job.JobID, s.CompositeName(), outputPaths)
		}
	}

	// The job enters processing before any step is pushed, so a dispatch
	// failure (which marks the job failed) is never overwritten.
	if err := o.store.UpdateJobStatus(ctx, job.JobID, models.StatusProcessing); err != nil {
		return nil, err
	}
	job.Status = models.StatusProcessing

	for _, s := range job.InitialSteps() {
		if err := o.Dispatch(ctx, job, s); err != nil {
			o.logger.Error().Err(err).Str("job_id", job.JobID).Str("step_id", s.StepID).Msg("dispatch failed for initial step")
		}
	}

	return job, nil
}

// Get returns a job snapshot, or a wrapped models.ErrNotFound.
func (o *Orchestrator) Get(ctx context.Context, jobID string) (*models.Job, error) {
	return o.store.Get(ctx, jobID)
}

// RetryResult is the POST /jobs/{id}/retry response body.
type RetryResult struct {
	Status     models.Status `json:"status"`
	JobID      string        `json:"job_id"`
	ResumeStep string        `json:"resume_step"`
	StepIndex  int           `json:"step_index"`
}

// Retry resets the first not-yet-complete step back to pending and
// redispatches it. Completed earlier steps, and their recorded outputs,
// are left untouched.
func (o *Orchestrator) Retry(ctx context.Context, jobID string) (*RetryResult, error) {
	job, err := o.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == models.StatusComplete {
		return nil, fmt.Errorf("%w: job %s", models.ErrAlreadyComplete, jobID)
	}
	if job.Status == models.StatusProcessing {
		return nil, fmt.Errorf("%w: job %s", models.ErrInFlight, jobID)
	}

	var target *models.Step
	for _, s := range job.Steps {
		if s.Status != models.StatusComplete {
			target = s
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: job %s", models.ErrAlreadyComplete, jobID)
	}

	pending := models.StatusPending
	if err := o.store.UpdateStep(ctx, jobID, target.StepID, store.StepUpdate{Status: &pending, ClearError: true}); err != nil {
		return nil, err
	}
	target.Status = models.StatusPending
	target.ErrorMessage = ""

	if err := o.store.UpdateJobStatus(ctx, jobID, models.StatusProcessing); err != nil {
		return nil, err
	}
	job.Status = models.StatusProcessing

	if err := o.Dispatch(ctx, job, target); err != nil {
		return nil, err
	}

	return &RetryResult{Status: models.StatusProcessing, JobID: jobID, ResumeStep: target.Name, StepIndex: target.Order}, nil
}

// Dispatch atomically marks step processing, accumulates inputs mapped
// in from its completed predecessors, resolves templates in the input and
// output maps, and pushes a StepExecute onto the step's service queue.
// The CommandSpec's {{NAME}} placeholders are left for the worker.
//
// Marking the step processing before pushing is the double-dispatch
// guard: a concurrent evaluator that re-reads the job after this point
// sees processing and will not dispatch the same step again.
func (o *Orchestrator) Dispatch(ctx context.Context, job *models.Job, step *models.Step) error {
	processing := models.StatusProcessing
	now := time.Now().UTC()
	if err := o.store.UpdateStep(ctx, job.JobID, step.StepID, store.StepUpdate{Status: &processing, StartedAt: &now}); err != nil {
		return err
	}
	step.Status = models.StatusProcessing
	step.StartedAt = &now

	mappedInputs := make(map[string]string)
	for _, t := range job.InboundTransitions(step.StepID) {
		sourceOutputs, err := o.store.GetStepOutputs(ctx, job.JobID, t.FromStepID)
		if err != nil {
			return err
		}
		for k, v := range t.ApplyMapping(sourceOutputs) {
			mappedInputs[k] = v
		}
	}

	resolvedInputs := make(map[string]string, len(step.Inputs)+len(mappedInputs))
	for k, v := range step.Inputs {
		resolvedInputs[k] = v
	}
	for k, v := range mappedInputs {
		resolvedInputs[k] = v
	}

	for k, v := range resolvedInputs {
		r, err := template.Resolve(v, job, step)
		if err != nil {
			return o.failDispatch(ctx, job.JobID, step.StepID, err)
		}
		resolvedInputs[k] = r
	}
	resolvedOutputs := make(map[string]string, len(step.Outputs))
	for k, v := range step.Outputs {
		r, err := template.Resolve(v, job, step)
		if err != nil {
			return o.failDispatch(ctx, job.JobID, step.StepID, err)
		}
		resolvedOutputs[k] = r
	}

	envelope := models.StepExecute{
		JobID:         job.JobID,
		StepID:        step.StepID,
		StepName:      step.Name,
		Microservice:  step.Service,
		// CommandSpec still carries its {{NAME}} placeholders here; the
		// Worker Runtime resolves them against absolute materialized
		// paths (C2), not the storage-relative ones below.
		CommandSpec:   step.CommandSpec.Clone(),
		Inputs:        resolvedInputs,
		Outputs:       resolvedOutputs,
		CompositeName: step.CompositeName(),
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("%w: marshal StepExecute: %v", models.ErrStore, err)
	}
	return o.queue.Push(ctx, queue.RequestChannel(step.Service), body)
}

// failDispatch records an UnknownReference (or similarly unresolvable)
// dispatch-time failure the same way a worker-reported failure would be
// recorded, so the orchestrator observes it uniformly (§7).
func (o *Orchestrator) failDispatch(ctx context.Context, jobID, stepID string, cause error) error {
	failed := models.StatusFailed
	msg := cause.Error()
	if err := o.store.UpdateStep(ctx, jobID, stepID, store.StepUpdate{Status: &failed, ErrorMessage: &msg}); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Str("step_id", stepID).Msg("failed to record dispatch failure")
	}
	if err := o.store.UpdateJobStatus(ctx, jobID, models.StatusFailed); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to mark job failed")
	}
	return cause
}

// HandleStatus applies a worker-reported StepStatus to the store and
// branches on the reported status: complete triggers ready-set
// dispatch (and job completion once nothing remains), failed marks the
// whole job failed, processing is a no-op heartbeat.
func (o *Orchestrator) HandleStatus(ctx context.Context, event models.StepStatus) {
	if event.JobID == "" || event.StepID == "" || event.Status == "" {
		o.logger.Warn().Str("job_id", event.JobID).Str("step_id", event.StepID).Msg("dropping malformed status event")
		return
	}

	update := store.StepUpdate{Status: &event.Status}
	if event.Outputs != nil {
		update.Outputs = event.Outputs
	}
	if event.Status.IsTerminal() {
		now := time.Now().UTC()
		update.FinishedAt = &now
	}
	if event.Status == models.StatusFailed && event.ErrorMessage != "" {
		msg := event.ErrorMessage
		update.ErrorMessage = &msg
	}
	if len(event.LogTail) > 0 {
		update.LogTail = event.LogTail
	}

	if err := o.store.UpdateStep(ctx, event.JobID, event.StepID, update); err != nil {
		o.logger.Error().Err(err).Str("job_id", event.JobID).Str("step_id", event.StepID).Msg("failed to apply status update")
		return
	}

	if event.Status == models.StatusProcessing {
		return
	}

	job, err := o.store.Get(ctx, event.JobID)
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", event.JobID).Msg("failed to refetch job after status update")
		return
	}

	switch event.Status {
	case models.StatusComplete:
		o.dispatchReadySet(ctx, job)
	case models.StatusFailed:
		if err := o.store.UpdateJobStatus(ctx, job.JobID, models.StatusFailed); err != nil {
			o.logger.Error().Err(err).Str("job_id", job.JobID).Msg("failed to mark job failed")
		}
	}
}

func (o *Orchestrator) dispatchReadySet(ctx context.Context, job *models.Job) {
	ready := ReadySet(job)
	for _, s := range ready {
		if err := o.Dispatch(ctx, job, s); err != nil {
			o.logger.Error().Err(err).Str("job_id", job.JobID).Str("step_id", s.StepID).Msg("dispatch failed")
		}
	}
	if len(ready) == 0 && job.IsComplete() {
		if err := o.store.UpdateJobStatus(ctx, job.JobID, models.StatusComplete); err != nil {
			o.logger.Error().Err(err).Str("job_id", job.JobID).Msg("failed to mark job complete")
		}
	}
}

// ReadySet returns every step of job that is pending with every inbound
// transition's source step complete. Exported because it is a pure
// function of persisted state, independently testable and independently
// useful to an operator-facing status endpoint.
func ReadySet(job *models.Job) []*models.Step {
	var ready []*models.Step
	for _, s := range job.Steps {
		if s.Status != models.StatusPending {
			continue
		}
		allComplete := true
		for _, t := range job.InboundTransitions(s.StepID) {
			src := job.FindStepByID(t.FromStepID)
			if src == nil || src.Status != models.StatusComplete {
				allComplete = false
				break
			}
		}
		if allComplete {
			ready = append(ready, s)
		}
	}
	return ready
}
