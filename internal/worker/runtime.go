// Package worker is the Worker Runtime (C7): a single generic outer
// loop driven entirely by the StepExecute envelope's data, with no
// worker-side subclassing per service type. One Runtime instance per
// process, bound to exactly one service's request queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/meridian/internal/command"
	"github.com/ternarybob/meridian/internal/models"
	"github.com/ternarybob/meridian/internal/queue"
)

const (
	logTailCapacity    = 50
	defaultTimeout     = 300 * time.Second
	defaultPollTimeout = 5 * time.Second
	visibilityBeat     = 15 * time.Second
)

// Runtime is the generic worker outer loop.
type Runtime struct {
	Service     string
	StorageRoot string
	Queue       queue.Queue
	Runner      Runner
	Timeout     time.Duration
	Logger      arbor.ILogger
}

// New returns a Runtime for service, polling its "<service>_requests"
// channel and emitting status onto the shared status channel.
func New(service, storageRoot string, q queue.Queue, logger arbor.ILogger) *Runtime {
	return &Runtime{
		Service:     service,
		StorageRoot: storageRoot,
		Queue:       q,
		Runner:      ProcessRunner{},
		Timeout:     defaultTimeout,
		Logger:      logger,
	}
}

// Run blocks, popping envelopes from the service's request queue until
// ctx is cancelled. Queue errors are logged and retried after a short
// backoff rather than aborting the loop (§7: infrastructure errors are
// caught in the outer loop).
func (r *Runtime) Run(ctx context.Context) error {
	channel := queue.RequestChannel(r.Service)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg, err := r.Queue.Pop(ctx, channel, defaultPollTimeout)
		if err != nil {
			r.Logger.Error().Err(err).Str("channel", channel).Msg("queue pop failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		if msg == nil {
			continue
		}
		done := make(chan struct{})
		if msg.Extend != nil {
			go r.keepVisible(ctx, msg, done)
		}
		r.HandleEnvelope(ctx, msg.Body)
		close(done)
		if err := msg.Ack(ctx); err != nil {
			r.Logger.Warn().Err(err).Msg("failed to ack processed envelope")
		}
	}
}

// keepVisible periodically extends msg's visibility window while the
// handler (typically a long subprocess) is still running, so the queue
// backend does not redeliver the envelope to another worker mid-flight.
func (r *Runtime) keepVisible(ctx context.Context, msg *queue.Message, done <-chan struct{}) {
	ticker := time.NewTicker(visibilityBeat)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := msg.Extend(ctx, 2*visibilityBeat); err != nil {
				r.Logger.Warn().Err(err).Msg("failed to extend envelope visibility")
				return
			}
		}
	}
}

// HandleEnvelope runs the eight-step loop body for one popped
// StepExecute payload. Errors are never returned to the caller — every
// domain failure is converted to a StepStatus{failed} event so the
// orchestrator observes it uniformly.
func (r *Runtime) HandleEnvelope(ctx context.Context, body []byte) {
	var exec models.StepExecute
	if err := json.Unmarshal(body, &exec); err != nil {
		r.Logger.Error().Err(err).Msg("failed to parse StepExecute envelope")
		return
	}

	r.emit(ctx, models.StepStatus{
		EventType: models.EventStepProcessing,
		JobID:     exec.JobID, StepID: exec.StepID, StepName: exec.StepName,
		Status: models.StatusProcessing,
	})

	absInputs, absOutputs, err := r.materializePaths(exec.Inputs, exec.Outputs)
	if err != nil {
		r.fail(ctx, exec, err)
		return
	}

	scratchDir := r.scratchDir(exec.JobID, exec.StepID)
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		r.fail(ctx, exec, fmt.Errorf("%w: create scratch dir: %v", models.ErrCommandFailed, err))
		return
	}
	defer r.cleanupScratch(scratchDir)

	argv := renderArgv(exec.CommandSpec, absInputs, absOutputs)

	timeout := r.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	result, err := r.Runner.Run(ctx, argv, scratchDir, timeout)
	if err != nil {
		tail := []string{}
		if result != nil {
			tail = result.Tail
		}
		r.failWithTail(ctx, exec, fmt.Errorf("%w: %v", models.ErrCommandFailed, err), tail)
		return
	}

	relOutputs, anyMissing, err := r.validateOutputs(exec.Outputs, absOutputs)
	if err != nil {
		r.failWithTail(ctx, exec, err, result.Tail)
		return
	}
	if anyMissing {
		r.Logger.Warn().Str("job_id", exec.JobID).Str("step_id", exec.StepID).Msg("some declared outputs were not produced")
	}

	r.emit(ctx, models.StepStatus{
		EventType: models.EventStepComplete,
		JobID:     exec.JobID, StepID: exec.StepID, StepName: exec.StepName,
		Status: models.StatusComplete, Outputs: relOutputs, LogTail: result.Tail,
	})
}

// materializePaths resolves each of envelope's storage-relative input
// and output paths to absolute paths under StorageRoot. A missing input
// file fails MissingInput; output parent directories are created.
func (r *Runtime) materializePaths(inputs, outputs map[string]string) (absInputs, absOutputs map[string]string, err error) {
	absInputs = make(map[string]string, len(inputs))
	for key, rel := range inputs {
		abs := r.absolutePath(rel)
		if _, statErr := os.Stat(abs); statErr != nil {
			return nil, nil, fmt.Errorf("%w: input %q at %s", models.ErrMissingInput, key, abs)
		}
		absInputs[key] = abs
	}

	absOutputs = make(map[string]string, len(outputs))
	for key, rel := range outputs {
		abs := r.absolutePath(rel)
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			r.Logger.Warn().Err(err).Str("dir", filepath.Dir(abs)).Msg("failed to pre-create output parent directory")
		}
		absOutputs[key] = abs
	}
	return absInputs, absOutputs, nil
}

func (r *Runtime) absolutePath(relOrAbs string) string {
	if filepath.IsAbs(relOrAbs) {
		return relOrAbs
	}
	return filepath.Join(r.StorageRoot, relOrAbs)
}

// renderArgv produces the final argv: CommandSpec placeholders are
// resolved against absolute materialized paths (C2), then any
// resulting scalar value containing embedded spaces is split into
// multiple argv tokens (e.g. a "1024 512 1024" fftsettings value becomes
// three tokens).
func renderArgv(spec models.CommandSpec, absInputs, absOutputs map[string]string) []string {
	resolved := command.Resolve(spec, absInputs, absOutputs)
	argv := make([]string, 0, 1+2*len(resolved.Flags)+len(resolved.Args))
	argv = append(argv, resolved.Program)
	for _, f := range resolved.Flags {
		argv = append(argv, f.Name)
		argv = append(argv, splitScalar(f.Value)...)
	}
	for _, a := range resolved.Args {
		argv = append(argv, splitScalar(a)...)
	}
	return argv
}

func splitScalar(v any) []string {
	s, ok := v.(string)
	if !ok {
		return []string{fmt.Sprint(v)}
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return []string{""}
	}
	return fields
}

// validateOutputs checks each declared output exists and is non-empty.
// If none exist, it fails NoOutputs. If some are missing, it returns the
// rest with anyMissing=true for the caller to log a warning.
func (r *Runtime) validateOutputs(relOutputs, absOutputs map[string]string) (map[string]string, bool, error) {
	present := make(map[string]string, len(relOutputs))
	anyMissing := false
	for key, rel := range relOutputs {
		abs := absOutputs[key]
		info, err := os.Stat(abs)
		if err != nil || info.Size() == 0 {
			anyMissing = true
			continue
		}
		present[key] = rel
	}
	if len(relOutputs) > 0 && len(present) == 0 {
		return nil, false, fmt.Errorf("%w: none of %d declared outputs were produced", models.ErrNoOutputs, len(relOutputs))
	}
	return present, anyMissing, nil
}

// scratchDir is the per-step working directory the subprocess runs in.
// It is distinct from the step's shared output directory: cleanupScratch
// only ever removes this directory, never anything under the output
// path the step's outputs were validated against.
func (r *Runtime) scratchDir(jobID, stepID string) string {
	return filepath.Join(r.StorageRoot, "scratch", jobID, stepID)
}

func (r *Runtime) cleanupScratch(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		r.Logger.Warn().Err(err).Str("dir", dir).Msg("failed to clean up scratch directory")
	}
}

func (r *Runtime) fail(ctx context.Context, exec models.StepExecute, cause error) {
	r.failWithTail(ctx, exec, cause, nil)
}

func (r *Runtime) failWithTail(ctx context.Context, exec models.StepExecute, cause error, tail []string) {
	r.emit(ctx, models.StepStatus{
		EventType: models.EventStepFailed,
		JobID:     exec.JobID, StepID: exec.StepID, StepName: exec.StepName,
		Status: models.StatusFailed, ErrorMessage: cause.Error(), LogTail: tail,
	})
}

func (r *Runtime) emit(ctx context.Context, status models.StepStatus) {
	status.Timestamp = time.Now().UTC().Format(time.RFC3339)
	body, err := json.Marshal(status)
	if err != nil {
		r.Logger.Error().Err(err).Msg("failed to marshal StepStatus")
		return
	}
	if err := r.Queue.Push(ctx, queue.StatusChannel, body); err != nil {
		r.Logger.Error().Err(err).Msg("failed to publish StepStatus")
	}
}
